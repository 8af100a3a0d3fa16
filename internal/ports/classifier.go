package ports

import (
	"context"
)

// CategoricalEncoder maps raw categorical strings to the integer codes the
// classifier was trained with.
//
// Implementations:
//   - inference.LabelEncoder: sklearn LabelEncoder classes_ exported as JSON
//
// Thread Safety: Encoders are immutable after load and safe for concurrent use.
type CategoricalEncoder interface {
	// Field returns the feature column this encoder was fit on.
	Field() string

	// Encode returns the code for value.
	//
	// Returns:
	//   - code on success
	//   - *domain.UnknownCategoricalValueError if value was never seen
	Encode(value string) (int, error)

	// Classes returns the fitted vocabulary in code order.
	Classes() []string
}

// Classifier is the trained model consumed for inference.
//
// Implementations:
//   - inference.Forest: pure-Go random forest from exported tree arrays
//   - inference.ONNXClassifier: ONNX Runtime session (skl2onnx export)
//
// Thread Safety: Implementations MUST be safe for concurrent Predict() calls.
type Classifier interface {
	// Predict classifies one feature vector laid out in training column order.
	//
	// Contract:
	//   - MUST be deterministic for identical input
	//   - MUST NOT retain or modify the input slice
	Predict(ctx context.Context, features []float64) (string, error)

	// Classes returns the labels the model can produce.
	Classes() []string

	// Name identifies the backend for logging and metrics.
	Name() string
}

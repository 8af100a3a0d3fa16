package inference

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortEnv guards the process-wide ONNX Runtime environment.
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNXConfig configures the ONNX Runtime backend.
type ONNXConfig struct {
	ModelPath         string
	SharedLibraryPath string
	// Classes maps the model's integer label output back to class names.
	// Empty means the integer is returned as the label.
	Classes    []string
	NumThreads int
}

// ONNXClassifier runs a skl2onnx-exported classifier. The model must take a
// single float tensor [1, n_features] and produce an int64 label tensor.
type ONNXClassifier struct {
	session   *ort.DynamicAdvancedSession
	inputName string
	labelName string
	nFeatures int64
	classes   []string
	modelPath string
	destroyMu sync.Mutex
	destroyed bool
}

func NewONNXClassifier(cfg ONNXConfig) (*ONNXClassifier, error) {
	if err := initORT(cfg.SharedLibraryPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("onnx: expected 1 input, model has %d", len(inputs))
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}

	dims := inputs[0].Dimensions
	if len(dims) != 2 || dims[1] <= 0 {
		return nil, fmt.Errorf("onnx: expected input shape [N, features], got %v", dims)
	}

	labelName := outputs[0].Name
	for _, out := range outputs {
		if out.Name == "label" || out.Name == "output_label" {
			labelName = out.Name
			break
		}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("onnx: failed to set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{inputs[0].Name},
		[]string{labelName},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &ONNXClassifier{
		session:   session,
		inputName: inputs[0].Name,
		labelName: labelName,
		nFeatures: dims[1],
		classes:   cfg.Classes,
		modelPath: cfg.ModelPath,
	}, nil
}

func (c *ONNXClassifier) Predict(ctx context.Context, features []float64) (string, error) {
	if int64(len(features)) != c.nFeatures {
		return "", fmt.Errorf("expected %d features, got %d", c.nFeatures, len(features))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	x := make([]float32, len(features))
	for i, v := range features {
		x[i] = float32(v)
	}

	in, err := ort.NewTensor(ort.NewShape(1, c.nFeatures), x)
	if err != nil {
		return "", fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		return "", fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := c.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return "", fmt.Errorf("onnx: inference failed: %w", err)
	}

	idx := out.GetData()[0]
	if len(c.classes) == 0 {
		return strconv.FormatInt(idx, 10), nil
	}
	if idx < 0 || idx >= int64(len(c.classes)) {
		return "", fmt.Errorf("onnx: label index %d outside %d known classes", idx, len(c.classes))
	}
	return c.classes[idx], nil
}

func (c *ONNXClassifier) Classes() []string {
	out := make([]string, len(c.classes))
	copy(out, c.classes)
	return out
}

func (c *ONNXClassifier) Name() string { return "onnx" }

func (c *ONNXClassifier) Close() error {
	c.destroyMu.Lock()
	defer c.destroyMu.Unlock()
	if c.destroyed {
		return nil
	}
	c.destroyed = true
	return c.session.Destroy()
}

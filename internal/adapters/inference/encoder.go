// Package inference adapts the trained artifacts (label encoders and the
// classifier) to the ports used by the inference service.
//
// Artifact formats:
//   - Encoders: JSON {"field": "...", "classes": [...]}, the classes_ array
//     of a fitted sklearn LabelEncoder. Code = position in classes.
//   - Forest:   JSON export of a RandomForestClassifier, one entry per
//     estimator carrying the raw tree_ arrays (see forest.go).
//   - ONNX:     skl2onnx export with an int64 label output (see onnx.go).
package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/xoelrdgz/idsreplay/internal/domain"
)

// LabelEncoder is an immutable string -> code mapping.
type LabelEncoder struct {
	field   string
	classes []string
	index   map[string]int
}

type encoderFile struct {
	Field   string   `json:"field"`
	Classes []string `json:"classes"`
}

func NewLabelEncoder(field string, classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, errors.New("encoder has no classes")
	}
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("duplicate class %q", c)
		}
		index[c] = i
	}
	owned := make([]string, len(classes))
	copy(owned, classes)
	return &LabelEncoder{field: field, classes: owned, index: index}, nil
}

// LoadLabelEncoder reads an encoder artifact. When the file names a field it
// must match the expected one.
func LoadLabelEncoder(path, field string) (*LabelEncoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, encoderLoadErr(field, path, err)
	}

	var ef encoderFile
	if err := json.Unmarshal(data, &ef); err != nil {
		return nil, encoderLoadErr(field, path, fmt.Errorf("decode: %w", err))
	}
	if ef.Field != "" && ef.Field != field {
		return nil, encoderLoadErr(field, path, fmt.Errorf("artifact was fit on %q", ef.Field))
	}

	enc, err := NewLabelEncoder(field, ef.Classes)
	if err != nil {
		return nil, encoderLoadErr(field, path, err)
	}
	return enc, nil
}

func encoderLoadErr(field, path string, err error) error {
	return &domain.LoadError{Artifact: field + " encoder", Path: path, Err: err}
}

func (e *LabelEncoder) Field() string { return e.field }

func (e *LabelEncoder) Encode(value string) (int, error) {
	code, ok := e.index[value]
	if !ok {
		return 0, &domain.UnknownCategoricalValueError{Field: e.field, Value: value}
	}
	return code, nil
}

func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// WriteLabelEncoder stores an encoder in the artifact format.
func WriteLabelEncoder(path string, enc *LabelEncoder) error {
	data, err := json.MarshalIndent(encoderFile{Field: enc.field, Classes: enc.classes}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

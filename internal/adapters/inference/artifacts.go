package inference

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/idsreplay/internal/domain"
	"github.com/xoelrdgz/idsreplay/internal/ports"
)

const (
	FormatForest = "forest"
	FormatONNX   = "onnx"
)

// ArtifactPath is a file plus an optional pinned BLAKE3 digest.
type ArtifactPath struct {
	Path   string
	Digest string
}

type ArtifactsConfig struct {
	// Encoders is keyed by categorical column name.
	Encoders map[string]ArtifactPath
	Model    ArtifactPath
	Format   string
	ONNX     ONNXConfig
}

func DefaultArtifactsConfig() ArtifactsConfig {
	return ArtifactsConfig{
		Encoders: map[string]ArtifactPath{
			"protocol_type": {Path: "model/protocol_encoder.json"},
			"service":       {Path: "model/service_encoder.json"},
			"flag":          {Path: "model/flag_encoder.json"},
		},
		Model:  ArtifactPath{Path: "model/ids_randomforest_model.json"},
		Format: FormatForest,
	}
}

// Artifacts are the immutable inference inputs loaded at startup.
type Artifacts struct {
	Encoders   map[string]ports.CategoricalEncoder
	Classifier ports.Classifier
}

// Close releases native resources held by the classifier, if any.
func (a *Artifacts) Close() error {
	if c, ok := a.Classifier.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// LoadArtifacts loads one encoder per categorical column and the model.
// Every failure is a *domain.LoadError.
func LoadArtifacts(cfg ArtifactsConfig) (*Artifacts, error) {
	encoders := make(map[string]ports.CategoricalEncoder, len(domain.CategoricalColumns))
	for _, field := range domain.CategoricalColumns {
		ap, ok := cfg.Encoders[field]
		if !ok || ap.Path == "" {
			return nil, &domain.LoadError{Artifact: field + " encoder", Path: "", Err: fmt.Errorf("no path configured")}
		}
		if err := checkDigest(field+" encoder", ap); err != nil {
			return nil, err
		}
		enc, err := LoadLabelEncoder(ap.Path, field)
		if err != nil {
			return nil, err
		}
		encoders[field] = enc
		log.Debug().Str("field", field).Int("classes", len(enc.Classes())).Msg("Encoder loaded")
	}

	if err := checkDigest("model", cfg.Model); err != nil {
		return nil, err
	}

	var (
		clf ports.Classifier
		err error
	)
	switch cfg.Format {
	case FormatForest, "":
		var forest *Forest
		forest, err = LoadForest(cfg.Model.Path)
		if err == nil {
			log.Info().Int("trees", forest.TreeCount()).Strs("classes", forest.Classes()).Msg("Random forest loaded")
			clf = forest
		}
	case FormatONNX:
		onnxCfg := cfg.ONNX
		onnxCfg.ModelPath = cfg.Model.Path
		clf, err = NewONNXClassifier(onnxCfg)
	default:
		err = fmt.Errorf("unknown model format %q", cfg.Format)
	}
	if err != nil {
		return nil, &domain.LoadError{Artifact: "model", Path: cfg.Model.Path, Err: err}
	}

	return &Artifacts{Encoders: encoders, Classifier: clf}, nil
}

func checkDigest(artifact string, ap ArtifactPath) error {
	digest, err := VerifyDigest(ap.Path, ap.Digest)
	if err != nil {
		return &domain.LoadError{Artifact: artifact, Path: ap.Path, Err: err}
	}
	log.Debug().Str("artifact", artifact).Str("blake3", digest).Msg("Artifact digest")
	return nil
}

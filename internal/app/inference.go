package app

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"

	"github.com/xoelrdgz/idsreplay/internal/domain"
	"github.com/xoelrdgz/idsreplay/internal/ports"
	"github.com/xoelrdgz/idsreplay/pkg/lru"
)

// InferenceService turns a submitted feature row into a class label.
//
// Pipeline: drop label/attack_category, check every feature is present,
// encode the categorical columns, lay the values out in training order,
// call the classifier once.
type InferenceService struct {
	encoders   map[string]ports.CategoricalEncoder
	classifier ports.Classifier
	// cache memoizes labels by vector digest; nil when disabled.
	cache *lru.Cache[[32]byte, string]

	mu        sync.RWMutex
	observers []ports.PredictionObserver
}

// NewInferenceService requires an encoder for every categorical column.
func NewInferenceService(encoders map[string]ports.CategoricalEncoder, classifier ports.Classifier) (*InferenceService, error) {
	if classifier == nil {
		return nil, fmt.Errorf("no classifier")
	}
	owned := make(map[string]ports.CategoricalEncoder, len(encoders))
	for _, field := range domain.CategoricalColumns {
		enc, ok := encoders[field]
		if !ok || enc == nil {
			return nil, fmt.Errorf("no encoder for %s", field)
		}
		owned[field] = enc
	}
	return &InferenceService{encoders: owned, classifier: classifier}, nil
}

func (s *InferenceService) AddObserver(o ports.PredictionObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// EnableCache memoizes up to size labels. The classifier is deterministic,
// so replayed rows skip the model. size <= 0 disables the cache. Call
// before serving.
func (s *InferenceService) EnableCache(size int) {
	if size <= 0 {
		s.cache = nil
		return
	}
	s.cache = lru.New[[32]byte, string](size)
}

// CacheStats is the zero value when the cache is disabled.
func (s *InferenceService) CacheStats() lru.Stats {
	if s.cache == nil {
		return lru.Stats{}
	}
	return s.cache.Stats()
}

func (s *InferenceService) ModelName() string { return s.classifier.Name() }

func (s *InferenceService) Classes() []string { return s.classifier.Classes() }

// Predict classifies one row. Identical rows always yield identical labels.
//
// Errors:
//   - *domain.MalformedRowError for missing or non-numeric features
//   - *domain.UnknownCategoricalValueError for values an encoder never saw
//   - classifier errors, wrapped
func (s *InferenceService) Predict(ctx context.Context, row domain.FeatureRow) (domain.Prediction, error) {
	start := time.Now()

	x, err := s.Vectorize(row)
	if err == nil {
		var label string
		label, err = s.classify(ctx, x)
		if err == nil {
			elapsed := time.Since(start)
			s.notify(func(o ports.PredictionObserver) { o.OnPrediction(label, elapsed) })
			return domain.Prediction{Label: label, Model: s.classifier.Name(), Duration: elapsed}, nil
		}
		err = fmt.Errorf("%s: %w", s.classifier.Name(), err)
	}

	kind := domain.ErrorKind(err)
	log.Debug().Err(err).Str("kind", kind).Msg("Prediction failed")
	s.notify(func(o ports.PredictionObserver) { o.OnPredictionError(kind) })
	return domain.Prediction{}, err
}

func (s *InferenceService) classify(ctx context.Context, x []float64) (string, error) {
	if s.cache == nil {
		return s.classifier.Predict(ctx, x)
	}
	key := vectorKey(x)
	if label, ok := s.cache.Get(key); ok {
		return label, nil
	}
	label, err := s.classifier.Predict(ctx, x)
	if err != nil {
		return "", err
	}
	s.cache.Put(key, label)
	return label, nil
}

func vectorKey(x []float64) [32]byte {
	buf := make([]byte, 8*len(x))
	for i, v := range x {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return blake3.Sum256(buf)
}

// Vectorize builds the ordered feature vector for row.
func (s *InferenceService) Vectorize(row domain.FeatureRow) ([]float64, error) {
	stripped := row.Stripped()
	if missing := stripped.MissingFeatures(); len(missing) > 0 {
		return nil, &domain.MalformedRowError{Missing: missing}
	}

	x := make([]float64, domain.FeatureCount)
	for i, name := range domain.FeatureColumns {
		if enc, ok := s.encoders[name]; ok {
			raw, err := stripped.Categorical(name)
			if err != nil {
				return nil, err
			}
			code, err := enc.Encode(raw)
			if err != nil {
				return nil, err
			}
			x[i] = float64(code)
			continue
		}

		v, err := stripped.Numeric(name)
		if err != nil {
			return nil, err
		}
		x[i] = v
	}
	return x, nil
}

func (s *InferenceService) notify(fn func(ports.PredictionObserver)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.observers {
		fn(o)
	}
}

package input

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/idsreplay/internal/domain"
)

// SampleStore holds the immutable per-category collections and draws rows
// uniformly at random with replacement.
type SampleStore struct {
	collections map[domain.Category][]domain.FeatureRow

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewSampleStore(collections map[domain.Category][]domain.FeatureRow) *SampleStore {
	return NewSeededSampleStore(collections, time.Now().UnixNano())
}

func NewSeededSampleStore(collections map[domain.Category][]domain.FeatureRow, seed int64) *SampleStore {
	owned := make(map[domain.Category][]domain.FeatureRow, len(collections))
	for c, rows := range collections {
		owned[c] = rows
	}
	return &SampleStore{
		collections: owned,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// LoadSampleStore loads every dataset; any failure aborts the load.
func LoadSampleStore(ctx context.Context, specs []DatasetSpec) (*SampleStore, error) {
	collections := make(map[domain.Category][]domain.FeatureRow, len(specs))
	for _, spec := range specs {
		start := time.Now()
		rows, err := LoadDataset(ctx, spec)
		if err != nil {
			return nil, err
		}
		collections[spec.Category] = rows
		log.Info().
			Str("category", spec.Category.String()).
			Str("file", spec.Path).
			Int("rows", len(rows)).
			Dur("took", time.Since(start)).
			Msg("Sample dataset loaded")
	}
	return NewSampleStore(collections), nil
}

func (s *SampleStore) Sample(c domain.Category) (domain.FeatureRow, error) {
	rows := s.collections[c]
	if len(rows) == 0 {
		return nil, fmt.Errorf("no samples loaded for category %q", c)
	}

	s.rngMu.Lock()
	i := s.rng.Intn(len(rows))
	s.rngMu.Unlock()

	return rows[i], nil
}

func (s *SampleStore) Count(c domain.Category) int {
	return len(s.collections[c])
}

// Contains reports whether row is one of the collection's own rows.
func (s *SampleStore) Contains(c domain.Category, row domain.FeatureRow) bool {
	for _, candidate := range s.collections[c] {
		if sameRow(candidate, row) {
			return true
		}
	}
	return false
}

func sameRow(a, b domain.FeatureRow) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

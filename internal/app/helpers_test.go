package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/idsreplay/internal/adapters/inference"
	"github.com/xoelrdgz/idsreplay/internal/adapters/input"
	"github.com/xoelrdgz/idsreplay/internal/domain"
	"github.com/xoelrdgz/idsreplay/internal/testutil"
)

type fixture struct {
	paths     testutil.Paths
	store     *input.SampleStore
	inference *InferenceService
}

func newFixture(t *testing.T, rows int) *fixture {
	t.Helper()
	paths := testutil.WriteAll(t, rows)

	var specs []input.DatasetSpec
	for _, c := range domain.AllCategories() {
		specs = append(specs, input.DatasetSpec{Category: c, Path: paths.Datasets[c]})
	}
	store, err := input.LoadSampleStore(context.Background(), specs)
	require.NoError(t, err)

	cfg := inference.DefaultArtifactsConfig()
	for field, path := range paths.Encoders {
		cfg.Encoders[field] = inference.ArtifactPath{Path: path}
	}
	cfg.Model = inference.ArtifactPath{Path: paths.Model}
	artifacts, err := inference.LoadArtifacts(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = artifacts.Close() })

	svc, err := NewInferenceService(artifacts.Encoders, artifacts.Classifier)
	require.NoError(t, err)

	return &fixture{paths: paths, store: store, inference: svc}
}

// feedRecorder counts feed notifications.
type feedRecorder struct {
	mu        sync.Mutex
	publishes []domain.Category
	changes   [][2]domain.Category
	errors    int
}

func (r *feedRecorder) OnPublish(c domain.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishes = append(r.publishes, c)
}

func (r *feedRecorder) OnPublishError(error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}

func (r *feedRecorder) OnModeChange(from, to domain.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, [2]domain.Category{from, to})
}

func (r *feedRecorder) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors
}

// flakySource fails its first draws: the first by panicking, the next by
// returning an error.
type flakySource struct {
	rows  []domain.FeatureRow
	calls atomic.Int64
	fails int64
}

func (s *flakySource) Sample(domain.Category) (domain.FeatureRow, error) {
	n := s.calls.Add(1)
	switch {
	case n == 1 && s.fails > 0:
		panic("corrupt collection")
	case n <= s.fails:
		return nil, errors.New("draw failed")
	}
	return s.rows[0], nil
}

func (s *flakySource) Count(domain.Category) int { return len(s.rows) }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

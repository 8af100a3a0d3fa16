package input_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/idsreplay/internal/adapters/input"
	"github.com/xoelrdgz/idsreplay/internal/domain"
	"github.com/xoelrdgz/idsreplay/internal/testutil"
)

func loadFixtureStore(t *testing.T, rows int) *input.SampleStore {
	t.Helper()
	paths := testutil.WriteAll(t, rows)

	var specs []input.DatasetSpec
	for _, c := range domain.AllCategories() {
		specs = append(specs, input.DatasetSpec{Category: c, Path: paths.Datasets[c]})
	}
	store, err := input.LoadSampleStore(context.Background(), specs)
	require.NoError(t, err)
	return store
}

func TestSampleStore_SamplesOnlyFromCategory(t *testing.T) {
	store := loadFixtureStore(t, 8)

	for _, c := range domain.AllCategories() {
		assert.Equal(t, 8, store.Count(c))
		for i := 0; i < 50; i++ {
			row, err := store.Sample(c)
			require.NoError(t, err)
			assert.True(t, store.Contains(c, row), "category %s", c)
			assert.Equal(t, c.String(), row[domain.LabelField])
		}
	}
}

func TestSampleStore_DrawsWithReplacementAcrossRows(t *testing.T) {
	rows := testutil.CategoryRows(domain.CategoryProbe, 4)
	store := input.NewSeededSampleStore(map[domain.Category][]domain.FeatureRow{
		domain.CategoryProbe: rows,
	}, 42)

	seen := make(map[int64]int)
	for i := 0; i < 400; i++ {
		row, err := store.Sample(domain.CategoryProbe)
		require.NoError(t, err)
		seen[row["src_bytes"].(int64)]++
	}
	assert.Len(t, seen, 4)
}

func TestSampleStore_EmptyCategory(t *testing.T) {
	store := input.NewSampleStore(map[domain.Category][]domain.FeatureRow{})

	_, err := store.Sample(domain.CategoryU2R)
	assert.Error(t, err)
	assert.Equal(t, 0, store.Count(domain.CategoryU2R))
}

func TestSampleStore_ConcurrentSample(t *testing.T) {
	store := input.NewSampleStore(map[domain.Category][]domain.FeatureRow{
		domain.CategoryNormal: testutil.CategoryRows(domain.CategoryNormal, 16),
	})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if _, err := store.Sample(domain.CategoryNormal); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

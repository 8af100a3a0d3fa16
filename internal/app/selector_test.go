package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/idsreplay/internal/domain"
)

func TestCategorySelector_DefaultsToNormal(t *testing.T) {
	s := NewCategorySelector("")
	assert.Equal(t, domain.CategoryNormal, s.Current())
	assert.Equal(t, PolicyReject, s.Policy())
}

func TestCategorySelector_SetEachCategory(t *testing.T) {
	s := NewCategorySelector(PolicyReject)

	tests := []struct {
		input string
		want  domain.Category
	}{
		{"dos", domain.CategoryDoS},
		{"PROBE", domain.CategoryProbe},
		{"  R2l ", domain.CategoryR2L},
		{"u2r", domain.CategoryU2R},
		{"Normal", domain.CategoryNormal},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := s.Set(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want, s.Current())
		})
	}
}

func TestCategorySelector_RejectLeavesStateUnchanged(t *testing.T) {
	s := NewCategorySelector(PolicyReject)
	rec := &feedRecorder{}
	s.AddObserver(rec)

	_, err := s.Set("dos")
	require.NoError(t, err)

	for _, bad := range []string{"ddos", "", "normal;drop", "u2r2"} {
		got, err := s.Set(bad)
		require.Error(t, err, bad)
		assert.True(t, errors.Is(err, domain.ErrInvalidCategory))
		assert.Equal(t, domain.CategoryDoS, got)
		assert.Equal(t, domain.CategoryDoS, s.Current())
	}

	require.Len(t, rec.changes, 1)
	assert.Equal(t, [2]domain.Category{domain.CategoryNormal, domain.CategoryDoS}, rec.changes[0])
}

func TestCategorySelector_FallbackSwitchesToNormal(t *testing.T) {
	s := NewCategorySelector(PolicyFallback)

	_, err := s.Set("probe")
	require.NoError(t, err)

	got, err := s.Set("ddos")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryNormal, got)
	assert.Equal(t, domain.CategoryNormal, s.Current())
}

func TestParseUnknownCategoryPolicy(t *testing.T) {
	p, err := ParseUnknownCategoryPolicy("Fallback")
	require.NoError(t, err)
	assert.Equal(t, PolicyFallback, p)

	p, err = ParseUnknownCategoryPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyReject, p)

	_, err = ParseUnknownCategoryPolicy("ignore")
	assert.Error(t, err)
}

// gateObserver records changes and holds the first notification until
// release is closed.
type gateObserver struct {
	feedRecorder
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gateObserver) OnModeChange(from, to domain.Category) {
	g.feedRecorder.OnModeChange(from, to)
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
}

func TestCategorySelector_ConcurrentSetNotifiesInOrder(t *testing.T) {
	s := NewCategorySelector(PolicyReject)
	gate := &gateObserver{entered: make(chan struct{}), release: make(chan struct{})}
	s.AddObserver(gate)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := s.Set("dos")
		assert.NoError(t, err)
	}()
	<-gate.entered

	go func() {
		defer wg.Done()
		_, err := s.Set("probe")
		assert.NoError(t, err)
	}()
	time.Sleep(50 * time.Millisecond)

	gate.mu.Lock()
	assert.Len(t, gate.changes, 1, "second Set must wait for the first notification")
	gate.mu.Unlock()

	close(gate.release)
	wg.Wait()

	gate.mu.Lock()
	defer gate.mu.Unlock()
	require.Len(t, gate.changes, 2)
	assert.Equal(t, [2]domain.Category{domain.CategoryNormal, domain.CategoryDoS}, gate.changes[0])
	assert.Equal(t, [2]domain.Category{domain.CategoryDoS, domain.CategoryProbe}, gate.changes[1])
	assert.Equal(t, s.Current(), gate.changes[1][1])
}

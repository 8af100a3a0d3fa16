package client

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/idsreplay/internal/domain"
)

// ObservationSink receives every completed poll.
type ObservationSink interface {
	OnObservation(obs domain.Observation)
}

// Watcher polls /stream_data, submits each row to /predict and hands the
// result to its sinks, mimicking the demo dashboard.
type Watcher struct {
	client   *Client
	interval time.Duration
	sinks    []ObservationSink
	seq      atomic.Int64
	mode     atomic.Pointer[domain.Category]
}

func NewWatcher(c *Client, interval time.Duration, sinks ...ObservationSink) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	w := &Watcher{client: c, interval: interval, sinks: sinks}
	mode := domain.DefaultCategory
	w.mode.Store(&mode)
	return w
}

// SetAttackMode asks the server to switch category and remembers the
// accepted mode for labelling observations.
func (w *Watcher) SetAttackMode(ctx context.Context, mode string) (domain.Category, error) {
	if _, err := w.client.SetAttackMode(ctx, mode); err != nil {
		return "", err
	}
	c, err := domain.ParseCategory(mode)
	if err != nil {
		c = domain.DefaultCategory
	}
	w.mode.Store(&c)
	return c, nil
}

func (w *Watcher) Mode() domain.Category { return *w.mode.Load() }

// Run polls until ctx is cancelled. Poll failures are reported to the
// sinks as observations carrying Err.
func (w *Watcher) Run(ctx context.Context) error {
	if c, err := w.client.AttackMode(ctx); err == nil {
		w.mode.Store(&c)
	} else {
		log.Debug().Err(err).Msg("Could not read current attack mode")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if obs, ok := w.PollOnce(ctx); ok {
			for _, s := range w.sinks {
				s.OnObservation(obs)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce performs one fetch and predict round trip. ok is false when
// there was nothing to report: the feed has not published yet or ctx ended.
func (w *Watcher) PollOnce(ctx context.Context) (domain.Observation, bool) {
	obs := domain.Observation{At: time.Now(), Mode: w.Mode()}

	row, err := w.client.StreamData(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return obs, false
		}
		obs.Seq = w.seq.Add(1)
		obs.Err = err.Error()
		return obs, true
	}
	if len(row) == 0 {
		return obs, false
	}

	obs.Seq = w.seq.Add(1)
	obs.Row = row
	if label, ok := row[domain.LabelField].(string); ok {
		obs.Actual = label
	}

	start := time.Now()
	obs.Predicted, err = w.client.Predict(ctx, row.Stripped())
	obs.Latency = time.Since(start)
	if err != nil {
		obs.Err = err.Error()
	}
	return obs, true
}

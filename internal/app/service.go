package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/idsreplay/internal/domain"
	"github.com/xoelrdgz/idsreplay/internal/ports"
)

// StreamMode selects how the polling endpoint produces rows.
type StreamMode string

const (
	// StreamLatest returns the publisher's latest row, at most one interval stale.
	StreamLatest StreamMode = "latest"
	// StreamFresh draws a new row on every poll; the publisher slot is unused.
	StreamFresh StreamMode = "fresh"
)

func ParseStreamMode(s string) (StreamMode, error) {
	switch m := StreamMode(domain.NormalizeCategory(s)); m {
	case StreamLatest, StreamFresh:
		return m, nil
	case "":
		return StreamLatest, nil
	default:
		return "", fmt.Errorf("unknown stream mode %q (want latest or fresh)", s)
	}
}

type ServiceConfig struct {
	Interval        time.Duration
	StreamMode      StreamMode
	UnknownCategory UnknownCategoryPolicy
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Interval:        DefaultPublishInterval,
		StreamMode:      StreamLatest,
		UnknownCategory: PolicyReject,
	}
}

// HealthStatus is reported by the health endpoint.
type HealthStatus struct {
	Status      string    `json:"status"`
	AttackMode  string    `json:"attack_mode"`
	StreamMode  string    `json:"stream_mode"`
	Model       string    `json:"model"`
	FeedRunning bool      `json:"feed_running"`
	Publishes   int64     `json:"publishes"`
	LastSeq     uint64    `json:"last_seq"`
	LastPublish time.Time `json:"last_publish"`
	Uptime      string    `json:"uptime"`
}

func (h HealthStatus) Healthy() bool { return h.Status == "ok" }

// Service wires the category selector, live publisher and inference
// service together and owns their lifetime.
type Service struct {
	cfg       ServiceConfig
	source    ports.SampleSource
	selector  *CategorySelector
	publisher *Publisher
	inference *InferenceService
	metrics   *domain.ServiceMetrics
}

func NewService(cfg ServiceConfig, source ports.SampleSource, inference *InferenceService) *Service {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultPublishInterval
	}
	if cfg.StreamMode == "" {
		cfg.StreamMode = StreamLatest
	}

	metrics := domain.NewServiceMetrics()
	selector := NewCategorySelector(cfg.UnknownCategory)
	publisher := NewPublisher(source, selector, cfg.Interval)

	selector.AddObserver(metrics)
	publisher.AddObserver(metrics)
	inference.AddObserver(metrics)

	return &Service{
		cfg:       cfg,
		source:    source,
		selector:  selector,
		publisher: publisher,
		inference: inference,
		metrics:   metrics,
	}
}

// AddFeedObserver subscribes o to mode changes and publishes.
func (s *Service) AddFeedObserver(o ports.FeedObserver) {
	s.selector.AddObserver(o)
	s.publisher.AddObserver(o)
}

func (s *Service) AddPredictionObserver(o ports.PredictionObserver) {
	s.inference.AddObserver(o)
}

func (s *Service) Start(ctx context.Context) error {
	if err := s.publisher.Start(ctx); err != nil {
		return err
	}
	log.Info().
		Str("stream_mode", string(s.cfg.StreamMode)).
		Str("attack_mode", s.selector.Current().String()).
		Str("model", s.inference.ModelName()).
		Msg("Replay service started")
	return nil
}

// Run blocks until ctx is cancelled or Stop is called.
func (s *Service) Run(ctx context.Context) error {
	return s.publisher.Run(ctx)
}

func (s *Service) Stop() {
	s.publisher.Stop()
}

func (s *Service) SetAttackMode(name string) (domain.Category, error) {
	return s.selector.Set(name)
}

func (s *Service) AttackMode() domain.Category {
	return s.selector.Current()
}

func (s *Service) SetInterval(d time.Duration) error {
	return s.publisher.SetInterval(d)
}

func (s *Service) Interval() time.Duration {
	return s.publisher.Interval()
}

func (s *Service) StreamMode() StreamMode { return s.cfg.StreamMode }

// StreamRow answers a poll. In latest mode it returns the slot contents, or
// an empty row before the first publish. In fresh mode it draws a new row
// from the active category.
func (s *Service) StreamRow() (domain.FeatureRow, error) {
	if s.cfg.StreamMode == StreamFresh {
		c := s.selector.Current()
		if s.source.Count(c) == 0 {
			c = domain.DefaultCategory
		}
		row, err := s.source.Sample(c)
		if err != nil {
			return nil, err
		}
		return row.Clone(), nil
	}

	pub := s.publisher.Latest()
	if pub == nil {
		return domain.FeatureRow{}, nil
	}
	return pub.Row, nil
}

func (s *Service) Predict(ctx context.Context, row domain.FeatureRow) (domain.Prediction, error) {
	return s.inference.Predict(ctx, row)
}

func (s *Service) Classes() []string { return s.inference.Classes() }

func (s *Service) Metrics() domain.MetricsSnapshot {
	return s.metrics.GetSnapshot()
}

// InternalMetrics exposes the live counters for exporters.
func (s *Service) InternalMetrics() *domain.ServiceMetrics { return s.metrics }

// Health reports "ok" while the feed is running and, in latest mode, has
// published within the last three intervals.
func (s *Service) Health() HealthStatus {
	snap := s.metrics.GetSnapshot()
	h := HealthStatus{
		Status:      "ok",
		AttackMode:  s.selector.Current().String(),
		StreamMode:  string(s.cfg.StreamMode),
		Model:       s.inference.ModelName(),
		FeedRunning: s.publisher.IsRunning(),
		Publishes:   snap.Publishes,
		LastPublish: snap.LastPublish,
		Uptime:      snap.Uptime.Round(time.Second).String(),
	}
	if pub := s.publisher.Latest(); pub != nil {
		h.LastSeq = pub.Seq
	}

	switch {
	case !h.FeedRunning:
		h.Status = "stopped"
	case s.cfg.StreamMode == StreamLatest && time.Since(snap.LastPublish) > 3*s.publisher.Interval():
		h.Status = "stale"
	}
	return h
}

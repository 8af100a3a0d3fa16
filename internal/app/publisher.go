package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/idsreplay/internal/domain"
	"github.com/xoelrdgz/idsreplay/internal/ports"
)

const (
	DefaultPublishInterval = time.Second
	MinPublishInterval     = 10 * time.Millisecond
	MaxPublishInterval     = time.Hour
)

var ErrPublisherRunning = errors.New("publisher already running")

// Publication is one row written to the latest-row slot.
type Publication struct {
	Row      domain.FeatureRow
	Category domain.Category
	Seq      uint64
	At       time.Time
}

// Publisher replays one randomly drawn row of the active category into a
// single-slot holder on every tick. Readers always see a complete row; the
// most recent write wins.
type Publisher struct {
	source   ports.SampleSource
	selector *CategorySelector

	interval atomic.Int64
	latest   atomic.Pointer[Publication]
	seq      atomic.Uint64

	obsMu     sync.RWMutex
	observers []ports.FeedObserver

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewPublisher(source ports.SampleSource, selector *CategorySelector, interval time.Duration) *Publisher {
	p := &Publisher{source: source, selector: selector}
	if err := p.SetInterval(interval); err != nil {
		p.interval.Store(int64(DefaultPublishInterval))
	}
	return p
}

func (p *Publisher) AddObserver(o ports.FeedObserver) {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	p.observers = append(p.observers, o)
}

// SetInterval changes the wait between publishes. The new value applies
// from the next wait on.
func (p *Publisher) SetInterval(d time.Duration) error {
	if d < MinPublishInterval || d > MaxPublishInterval {
		return &ConfigValidationError{
			Field:  "feed.interval",
			Value:  d,
			Reason: fmt.Sprintf("must be between %s and %s", MinPublishInterval, MaxPublishInterval),
		}
	}
	p.interval.Store(int64(d))
	return nil
}

func (p *Publisher) Interval() time.Duration {
	return time.Duration(p.interval.Load())
}

// Latest returns the most recent publication, or nil before the first one.
func (p *Publisher) Latest() *Publication {
	return p.latest.Load()
}

func (p *Publisher) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start launches the loop in the background. Use Stop or cancel ctx to end it.
func (p *Publisher) Start(ctx context.Context) error {
	ctx, err := p.begin(ctx)
	if err != nil {
		return err
	}
	go p.loop(ctx)
	return nil
}

// Run publishes until ctx is cancelled or Stop is called.
func (p *Publisher) Run(ctx context.Context) error {
	ctx, err := p.begin(ctx)
	if err != nil {
		return err
	}
	p.loop(ctx)
	return nil
}

func (p *Publisher) begin(ctx context.Context) (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil, ErrPublisherRunning
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.running = true
	return ctx, nil
}

// Stop ends the loop and waits for it to exit. Safe to call more than once.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
}

func (p *Publisher) loop(ctx context.Context) {
	log.Info().Dur("interval", p.Interval()).Msg("Live publisher started")
	defer func() {
		p.mu.Lock()
		p.running = false
		p.cancel()
		close(p.done)
		p.mu.Unlock()
		log.Info().Uint64("published", p.seq.Load()).Msg("Live publisher stopped")
	}()

	for {
		if err := p.PublishOnce(); err != nil {
			log.Warn().Err(err).Msg("Publish skipped")
			p.notifyError(err)
		}

		timer := time.NewTimer(p.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// PublishOnce draws one row for the active category and stores it in the
// slot. A category with no loaded rows falls back to the default category.
// Panics inside the draw are recovered and returned as errors.
func (p *Publisher) PublishOnce() (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Publisher panic recovered")
			err = fmt.Errorf("publisher panic: %v", r)
		}
	}()

	c := p.selector.Current()
	if p.source.Count(c) == 0 && c != domain.DefaultCategory {
		log.Warn().Str("category", c.String()).Msg("No samples for category, using default")
		c = domain.DefaultCategory
	}

	row, err := p.source.Sample(c)
	if err != nil {
		return fmt.Errorf("sample %s: %w", c, err)
	}

	pub := &Publication{
		Row:      row.Clone(),
		Category: c,
		Seq:      p.seq.Add(1),
		At:       time.Now(),
	}
	p.latest.Store(pub)

	p.obsMu.RLock()
	defer p.obsMu.RUnlock()
	for _, o := range p.observers {
		o.OnPublish(c)
	}
	return nil
}

func (p *Publisher) notifyError(err error) {
	p.obsMu.RLock()
	defer p.obsMu.RUnlock()
	for _, o := range p.observers {
		o.OnPublishError(err)
	}
}

package app

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/idsreplay/internal/domain"
	"github.com/xoelrdgz/idsreplay/internal/ports"
	"github.com/xoelrdgz/idsreplay/pkg/sanitize"
)

// UnknownCategoryPolicy decides what Set does with a name outside the
// category enumeration.
type UnknownCategoryPolicy string

const (
	// PolicyReject returns an error and leaves the active category alone.
	PolicyReject UnknownCategoryPolicy = "reject"
	// PolicyFallback silently switches to the default category.
	PolicyFallback UnknownCategoryPolicy = "fallback"
)

func ParseUnknownCategoryPolicy(s string) (UnknownCategoryPolicy, error) {
	switch p := UnknownCategoryPolicy(domain.NormalizeCategory(s)); p {
	case PolicyReject, PolicyFallback:
		return p, nil
	case "":
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("unknown category policy %q (want reject or fallback)", s)
	}
}

// CategorySelector holds the process-wide active attack category.
//
// Current is a lock-free read. Set swaps the value atomically, so every
// observer notification carries the exact value it replaced.
type CategorySelector struct {
	current atomic.Pointer[domain.Category]
	policy  UnknownCategoryPolicy

	mu        sync.Mutex
	observers []ports.FeedObserver

	// setMu orders swaps and their notifications so observers see changes
	// in the order they were applied. Observers must not call Set.
	setMu sync.Mutex
}

func NewCategorySelector(policy UnknownCategoryPolicy) *CategorySelector {
	if policy == "" {
		policy = PolicyReject
	}
	s := &CategorySelector{policy: policy}
	initial := domain.DefaultCategory
	s.current.Store(&initial)
	return s
}

func (s *CategorySelector) AddObserver(o ports.FeedObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *CategorySelector) Policy() UnknownCategoryPolicy { return s.policy }

func (s *CategorySelector) Current() domain.Category {
	return *s.current.Load()
}

// Set parses name and makes it the active category.
//
// Under PolicyReject an unknown name returns *domain.InvalidCategoryError
// and the active category is unchanged. Under PolicyFallback the active
// category becomes domain.DefaultCategory and no error is returned.
func (s *CategorySelector) Set(name string) (domain.Category, error) {
	next, err := domain.ParseCategory(name)
	if err != nil {
		if s.policy != PolicyFallback {
			log.Warn().Str("attack_mode", sanitize.Token(name, 32)).Msg("Rejected unknown attack mode")
			return s.Current(), err
		}
		log.Warn().
			Str("attack_mode", sanitize.Token(name, 32)).
			Str("fallback", domain.DefaultCategory.String()).
			Msg("Unknown attack mode, falling back")
		next = domain.DefaultCategory
	}

	s.setMu.Lock()
	defer s.setMu.Unlock()

	s.mu.Lock()
	prev := *s.current.Swap(&next)
	observers := s.observers
	s.mu.Unlock()

	if prev != next {
		log.Info().Str("from", prev.String()).Str("to", next.String()).Msg("Attack mode changed")
	}
	for _, o := range observers {
		o.OnModeChange(prev, next)
	}
	return next, nil
}

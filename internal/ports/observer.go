package ports

import (
	"time"

	"github.com/xoelrdgz/idsreplay/internal/domain"
)

// PredictionObserver is notified once per inference request.
//
// Thread Safety: Implementations MUST be safe for concurrent calls.
type PredictionObserver interface {
	// OnPrediction is called after a successful prediction.
	OnPrediction(label string, elapsed time.Duration)

	// OnPredictionError is called with a short error kind
	// (see domain.ErrorKind) when inference fails.
	OnPredictionError(kind string)
}

// FeedObserver follows the live replay feed.
type FeedObserver interface {
	// OnPublish is called after the publisher replaced the latest row.
	OnPublish(c domain.Category)

	// OnPublishError is called when one publisher iteration failed and was
	// skipped.
	OnPublishError(err error)

	// OnModeChange is called after the active attack mode changed.
	OnModeChange(from, to domain.Category)
}

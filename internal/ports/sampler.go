// Package ports defines the primary and secondary port interfaces following
// hexagonal architecture (ports and adapters pattern).
//
// This package contains interfaces that define the contract between the core
// replay/inference logic and external infrastructure (sample datasets, fitted
// encoders, trained classifiers, observability sinks).
//
// Design Principles:
//   - Interfaces are small and focused
//   - Dependencies flow inward (core has no knowledge of file formats)
//   - Implementations provided by adapters in internal/adapters/
package ports

import (
	"github.com/xoelrdgz/idsreplay/internal/domain"
)

// SampleSource provides random access to per-category sample collections.
//
// Implementations:
//   - input.SampleStore: in-memory collections loaded from CSV / gzip CSV
//
// Thread Safety: Implementations MUST be safe for concurrent Sample() calls.
// The live publisher and polling handlers draw rows simultaneously.
type SampleSource interface {
	// Sample draws one row uniformly at random, with replacement, from the
	// collection of the given category.
	//
	// Returns:
	//   - The drawn row (shared, read-only)
	//   - Error if the category has no loaded rows
	Sample(c domain.Category) (domain.FeatureRow, error)

	// Count returns the number of rows loaded for a category.
	Count(c domain.Category) int
}

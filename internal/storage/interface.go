/*
Package storage implements the persistent recommendation history.

It owns every persisted row: the recommendations the engine made, the feedback
callers reported on them, and the context patterns learned from that feedback.
The SQLite implementation uses modernc.org/sqlite (pure Go, no CGo) through
sqlx. All writes are serialized; reads run concurrently under WAL snapshots.
*/
package storage

import (
	"context"
	"time"
)

// Store defines the persistence operations the engine depends on.
type Store interface {
	// AppendRecommendation inserts one record and returns its id.
	AppendRecommendation(ctx context.Context, rec RecommendationRecord) (int64, error)

	// AppendRecommendations inserts records in one transaction, all or none.
	AppendRecommendations(ctx context.Context, recs []RecommendationRecord) ([]int64, error)

	// RecordActivation marks a recommendation as activated.
	RecordActivation(ctx context.Context, id int64) error

	// RecordFeedback stores a helpfulness verdict and updates the learned
	// pattern in the same transaction. It returns the feedback row id.
	RecordFeedback(ctx context.Context, id int64, helpful bool, comment string) (int64, error)

	// QueryPatterns returns the learned patterns for a context hash.
	QueryPatterns(ctx context.Context, contextHash string) ([]ContextPattern, error)

	// GetRecommendation returns one record by id.
	GetRecommendation(ctx context.Context, id int64) (*RecommendationRecord, error)

	// ListRecommendations returns the most recent records, newest first.
	ListRecommendations(ctx context.Context, limit int) ([]RecommendationRecord, error)

	// ListFeedback returns the feedback rows for a recommendation, oldest first.
	ListFeedback(ctx context.Context, recommendationID int64) ([]FeedbackRecord, error)

	// ListPatterns returns learned patterns ordered by strength of use.
	ListPatterns(ctx context.Context, limit int) ([]ContextPattern, error)

	// Stats summarizes row counts.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the underlying database.
	Close() error
}

// PatternLearner computes pattern updates. The store calls it inside the
// write transaction, so implementations must be pure and fast.
//
// A pattern with ActivationCount == 0 has not been persisted yet.
type PatternLearner interface {
	// Activate applies a first activation of a recommendation made with
	// the given confidence.
	Activate(p *ContextPattern, observed float64, now time.Time)

	// Reinforce applies a helpful verdict.
	Reinforce(p *ContextPattern, observed float64, now time.Time)

	// Suppress applies an unhelpful verdict to an existing pattern.
	Suppress(p *ContextPattern)
}

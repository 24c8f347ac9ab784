package storage

import (
	"context"
)

// DisabledStore stands in when the database cannot be opened. Every call
// fails with a *PersistenceError carrying the original cause, which lets the
// engine keep recommending from static tables while reporting that history
// is not being kept.
type DisabledStore struct {
	cause error
}

// NewDisabled returns a store that reports cause on every operation.
func NewDisabled(cause error) *DisabledStore {
	return &DisabledStore{cause: cause}
}

func (d *DisabledStore) err(op string) error {
	return &PersistenceError{Op: op + " (store unavailable)", Err: d.cause}
}

func (d *DisabledStore) AppendRecommendation(context.Context, RecommendationRecord) (int64, error) {
	return 0, d.err("append recommendation")
}

func (d *DisabledStore) AppendRecommendations(context.Context, []RecommendationRecord) ([]int64, error) {
	return nil, d.err("append recommendation")
}

func (d *DisabledStore) RecordActivation(context.Context, int64) error {
	return d.err("record activation")
}

func (d *DisabledStore) RecordFeedback(context.Context, int64, bool, string) (int64, error) {
	return 0, d.err("record feedback")
}

func (d *DisabledStore) QueryPatterns(context.Context, string) ([]ContextPattern, error) {
	return nil, d.err("query patterns")
}

func (d *DisabledStore) GetRecommendation(context.Context, int64) (*RecommendationRecord, error) {
	return nil, d.err("get recommendation")
}

func (d *DisabledStore) ListRecommendations(context.Context, int) ([]RecommendationRecord, error) {
	return nil, d.err("list recommendations")
}

func (d *DisabledStore) ListFeedback(context.Context, int64) ([]FeedbackRecord, error) {
	return nil, d.err("list feedback")
}

func (d *DisabledStore) ListPatterns(context.Context, int) ([]ContextPattern, error) {
	return nil, d.err("list patterns")
}

func (d *DisabledStore) Stats(context.Context) (Stats, error) {
	return Stats{}, d.err("stats")
}

func (d *DisabledStore) Close() error {
	return nil
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*DisabledStore)(nil)
)

package storage

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/logger"
)

// RecordFeedback inserts a feedback row and applies the pattern learner in the
// same transaction: the feedback row and the pattern update commit together
// or not at all. An unknown recommendation id yields *NotFoundError and writes
// nothing.
func (s *SQLiteStore) RecordFeedback(ctx context.Context, id int64, helpful bool, comment string) (int64, error) {
	var feedbackID int64

	err := s.withWriteTx(ctx, "record feedback", func(tx *sqlx.Tx) error {
		rec, err := getRecommendation(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.now()

		var commentArg any
		if comment != "" {
			commentArg = comment
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO recommendation_feedback (recommendation_id, timestamp, helpful, comment)
			VALUES (?, ?, ?, ?)
		`, id, formatTime(now), helpful, commentArg)
		if err != nil {
			return errors.Wrap(err, "failed to insert feedback")
		}
		if feedbackID, err = res.LastInsertId(); err != nil {
			return errors.Wrap(err, "failed to read feedback id")
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE recommendations_history SET was_helpful = ? WHERE id = ?", helpful, id,
		); err != nil {
			return errors.Wrap(err, "failed to mirror feedback")
		}

		p, err := loadPattern(ctx, tx, rec.ContextHash, rec.SkillName)
		if err != nil {
			return err
		}

		if helpful {
			s.learner.Reinforce(p, rec.Confidence, now)
			return upsertPattern(ctx, tx, p)
		}

		if p.ActivationCount == 0 {
			logger.G(ctx).WithFields(map[string]any{
				"recommendation_id": id,
				"skill":             rec.SkillName,
			}).Debug("negative feedback without a learned pattern")
			return nil
		}
		s.learner.Suppress(p)
		return upsertPattern(ctx, tx, p)
	})
	if err != nil {
		return 0, err
	}
	return feedbackID, nil
}

// ListFeedback returns the feedback rows of a recommendation, oldest first.
func (s *SQLiteStore) ListFeedback(ctx context.Context, recommendationID int64) ([]FeedbackRecord, error) {
	var rows []feedbackRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, recommendation_id, timestamp, helpful, comment
		FROM recommendation_feedback
		WHERE recommendation_id = ?
		ORDER BY id ASC
	`, recommendationID); err != nil {
		return nil, persistErr("list feedback", err)
	}

	out := make([]FeedbackRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRecord())
	}
	return out, nil
}

package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/logger"
)

const insertRecommendation = `
	INSERT INTO recommendations_history (
		request_id, timestamp, skill_name, confidence, context_hash, source, reason
	) VALUES (?, ?, ?, ?, ?, ?, ?)
`

// AppendRecommendation inserts one record and returns its id.
func (s *SQLiteStore) AppendRecommendation(ctx context.Context, rec RecommendationRecord) (int64, error) {
	ids, err := s.AppendRecommendations(ctx, []RecommendationRecord{rec})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// AppendRecommendations inserts all records in a single transaction. Either
// every record is written or none is.
func (s *SQLiteStore) AppendRecommendations(ctx context.Context, recs []RecommendationRecord) ([]int64, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	for _, rec := range recs {
		if strings.TrimSpace(rec.SkillName) == "" {
			return nil, persistErr("append recommendation", errors.New("empty skill name"))
		}
	}

	ids := make([]int64, 0, len(recs))
	err := s.withWriteTx(ctx, "append recommendation", func(tx *sqlx.Tx) error {
		for _, rec := range recs {
			ts := rec.Timestamp
			if ts.IsZero() {
				ts = s.now()
			}
			res, err := tx.ExecContext(ctx, insertRecommendation,
				rec.RequestID,
				formatTime(ts),
				rec.SkillName,
				rec.Confidence,
				rec.ContextHash,
				rec.Source,
				rec.Reason,
			)
			if err != nil {
				return errors.Wrapf(err, "failed to insert recommendation for %s", rec.SkillName)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return errors.Wrap(err, "failed to read inserted id")
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// RecordActivation sets was_activated on an existing recommendation. The
// first activation of a recommendation also counts towards its context
// pattern; repeated activations of the same row are no-ops.
func (s *SQLiteStore) RecordActivation(ctx context.Context, id int64) error {
	return s.withWriteTx(ctx, "record activation", func(tx *sqlx.Tx) error {
		rec, err := getRecommendation(ctx, tx, id)
		if err != nil {
			return err
		}
		if rec.WasActivated != nil && *rec.WasActivated {
			logger.G(ctx).WithField("recommendation_id", id).Debug("recommendation already activated")
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE recommendations_history SET was_activated = 1 WHERE id = ?", id,
		); err != nil {
			return errors.Wrap(err, "failed to mark activation")
		}

		p, err := loadPattern(ctx, tx, rec.ContextHash, rec.SkillName)
		if err != nil {
			return err
		}
		s.learner.Activate(p, rec.Confidence, s.now())
		return upsertPattern(ctx, tx, p)
	})
}

// GetRecommendation returns one record by id, or *NotFoundError.
func (s *SQLiteStore) GetRecommendation(ctx context.Context, id int64) (*RecommendationRecord, error) {
	rec, err := getRecommendation(ctx, s.db, id)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, err
		}
		return nil, persistErr("get recommendation", err)
	}
	return rec, nil
}

// ListRecommendations returns up to limit records, newest first.
func (s *SQLiteStore) ListRecommendations(ctx context.Context, limit int) ([]RecommendationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []recommendationRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, request_id, timestamp, skill_name, confidence, context_hash,
		       source, reason, was_activated, was_helpful
		FROM recommendations_history
		ORDER BY id DESC
		LIMIT ?
	`, limit); err != nil {
		return nil, persistErr("list recommendations", err)
	}

	recs := make([]RecommendationRecord, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.toRecord())
	}
	return recs, nil
}

// Stats summarizes row counts across the three tables.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.GetContext(ctx, &st, `
		SELECT
			(SELECT COUNT(*) FROM recommendations_history) AS recommendations,
			(SELECT COUNT(*) FROM recommendations_history WHERE was_activated = 1) AS activated,
			(SELECT COUNT(*) FROM recommendation_feedback) AS feedback,
			(SELECT COUNT(*) FROM recommendation_feedback WHERE helpful = 1) AS helpful,
			(SELECT COUNT(*) FROM recommendation_feedback WHERE helpful = 0) AS unhelpful,
			(SELECT COUNT(*) FROM context_patterns) AS patterns,
			(SELECT COUNT(DISTINCT context_hash) FROM context_patterns) AS contexts
	`); err != nil {
		return Stats{}, persistErr("stats", err)
	}
	return st, nil
}

func getRecommendation(ctx context.Context, q sqlx.QueryerContext, id int64) (*RecommendationRecord, error) {
	var row recommendationRow
	err := sqlx.GetContext(ctx, q, &row, `
		SELECT id, request_id, timestamp, skill_name, confidence, context_hash,
		       source, reason, was_activated, was_helpful
		FROM recommendations_history
		WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "recommendation", ID: id}
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load recommendation")
	}
	rec := row.toRecord()
	return &rec, nil
}

package storage

import (
	"context"
	"database/sql"
	"math"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// QueryPatterns returns the learned patterns for an exact context hash.
func (s *SQLiteStore) QueryPatterns(ctx context.Context, contextHash string) ([]ContextPattern, error) {
	var rows []patternRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT context_hash, skill_name, activation_count, last_activated, avg_confidence
		FROM context_patterns
		WHERE context_hash = ?
		ORDER BY skill_name
	`, contextHash); err != nil {
		return nil, persistErr("query patterns", err)
	}
	return toPatterns(rows), nil
}

// ListPatterns returns up to limit patterns, most activated first.
func (s *SQLiteStore) ListPatterns(ctx context.Context, limit int) ([]ContextPattern, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []patternRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT context_hash, skill_name, activation_count, last_activated, avg_confidence
		FROM context_patterns
		ORDER BY activation_count DESC, avg_confidence DESC, skill_name
		LIMIT ?
	`, limit); err != nil {
		return nil, persistErr("list patterns", err)
	}
	return toPatterns(rows), nil
}

func toPatterns(rows []patternRow) []ContextPattern {
	out := make([]ContextPattern, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toPattern())
	}
	return out
}

// loadPattern reads the pattern for (hash, skill) inside tx. A missing row is
// returned as a zero-count pattern carrying the key.
func loadPattern(ctx context.Context, tx *sqlx.Tx, contextHash, skill string) (*ContextPattern, error) {
	var row patternRow
	err := tx.GetContext(ctx, &row, `
		SELECT context_hash, skill_name, activation_count, last_activated, avg_confidence
		FROM context_patterns
		WHERE context_hash = ? AND skill_name = ?
	`, contextHash, skill)
	if errors.Is(err, sql.ErrNoRows) {
		return &ContextPattern{ContextHash: contextHash, SkillName: skill}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load pattern")
	}
	p := row.toPattern()
	return &p, nil
}

// upsertPattern writes p keyed by (context_hash, skill_name).
func upsertPattern(ctx context.Context, tx *sqlx.Tx, p *ContextPattern) error {
	avg := p.AvgConfidence
	if math.IsNaN(avg) {
		return errors.Errorf("pattern %s/%s: avg_confidence is NaN", p.ContextHash, p.SkillName)
	}
	avg = math.Max(0, math.Min(1, avg))

	_, err := tx.ExecContext(ctx, `
		INSERT INTO context_patterns (context_hash, skill_name, activation_count, last_activated, avg_confidence)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(context_hash, skill_name) DO UPDATE SET
			activation_count = excluded.activation_count,
			last_activated = excluded.last_activated,
			avg_confidence = excluded.avg_confidence
	`, p.ContextHash, p.SkillName, p.ActivationCount, formatTime(p.LastActivated), avg)
	return errors.Wrap(err, "failed to upsert pattern")
}

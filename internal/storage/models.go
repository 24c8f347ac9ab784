package storage

import "time"

// RecommendationRecord is one suggestion the engine made. Rows are
// append-only; only WasActivated and WasHelpful change after insert.
type RecommendationRecord struct {
	// ID is the row id, assigned on insert.
	ID int64 `json:"id"`

	// RequestID groups the records produced by one recommend call.
	RequestID string `json:"request_id"`

	// Timestamp is when the recommendation was made.
	Timestamp time.Time `json:"timestamp"`

	// SkillName is the recommended skill.
	SkillName string `json:"skill_name"`

	// Confidence is the ranked confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// ContextHash identifies the session context bucket.
	ContextHash string `json:"context_hash"`

	// Source is the strategy that produced the winning confidence.
	Source string `json:"source"`

	// Reason is the human-readable provenance.
	Reason string `json:"reason"`

	// WasActivated is nil until the caller reports an activation.
	WasActivated *bool `json:"was_activated"`

	// WasHelpful mirrors the most recent feedback, nil if none.
	WasHelpful *bool `json:"was_helpful"`
}

// FeedbackRecord is one helpfulness verdict on a recommendation.
type FeedbackRecord struct {
	ID               int64     `json:"id"`
	RecommendationID int64     `json:"recommendation_id"`
	Timestamp        time.Time `json:"timestamp"`
	Helpful          bool      `json:"helpful"`
	Comment          string    `json:"comment,omitempty"`
}

// ContextPattern is the learned link between a context bucket and a skill.
type ContextPattern struct {
	ContextHash     string    `json:"context_hash"`
	SkillName       string    `json:"skill_name"`
	ActivationCount int       `json:"activation_count"`
	LastActivated   time.Time `json:"last_activated"`
	AvgConfidence   float64   `json:"avg_confidence"`
}

// Stats summarizes the store for status output.
type Stats struct {
	Recommendations int `json:"recommendations" db:"recommendations"`
	Activated       int `json:"activated" db:"activated"`
	Feedback        int `json:"feedback" db:"feedback"`
	Helpful         int `json:"helpful" db:"helpful"`
	Unhelpful       int `json:"unhelpful" db:"unhelpful"`
	Patterns        int `json:"patterns" db:"patterns"`
	Contexts        int `json:"contexts" db:"contexts"`
}

// recommendationRow is the sqlx scan target for recommendations_history.
type recommendationRow struct {
	ID           int64   `db:"id"`
	RequestID    string  `db:"request_id"`
	Timestamp    string  `db:"timestamp"`
	SkillName    string  `db:"skill_name"`
	Confidence   float64 `db:"confidence"`
	ContextHash  string  `db:"context_hash"`
	Source       string  `db:"source"`
	Reason       string  `db:"reason"`
	WasActivated *bool   `db:"was_activated"`
	WasHelpful   *bool   `db:"was_helpful"`
}

func (r recommendationRow) toRecord() RecommendationRecord {
	return RecommendationRecord{
		ID:           r.ID,
		RequestID:    r.RequestID,
		Timestamp:    parseTime(r.Timestamp),
		SkillName:    r.SkillName,
		Confidence:   r.Confidence,
		ContextHash:  r.ContextHash,
		Source:       r.Source,
		Reason:       r.Reason,
		WasActivated: r.WasActivated,
		WasHelpful:   r.WasHelpful,
	}
}

type feedbackRow struct {
	ID               int64   `db:"id"`
	RecommendationID int64   `db:"recommendation_id"`
	Timestamp        string  `db:"timestamp"`
	Helpful          bool    `db:"helpful"`
	Comment          *string `db:"comment"`
}

func (r feedbackRow) toRecord() FeedbackRecord {
	fb := FeedbackRecord{
		ID:               r.ID,
		RecommendationID: r.RecommendationID,
		Timestamp:        parseTime(r.Timestamp),
		Helpful:          r.Helpful,
	}
	if r.Comment != nil {
		fb.Comment = *r.Comment
	}
	return fb
}

type patternRow struct {
	ContextHash     string  `db:"context_hash"`
	SkillName       string  `db:"skill_name"`
	ActivationCount int     `db:"activation_count"`
	LastActivated   string  `db:"last_activated"`
	AvgConfidence   float64 `db:"avg_confidence"`
}

func (r patternRow) toPattern() ContextPattern {
	return ContextPattern{
		ContextHash:     r.ContextHash,
		SkillName:       r.SkillName,
		ActivationCount: r.ActivationCount,
		LastActivated:   parseTime(r.LastActivated),
		AvgConfidence:   r.AvgConfidence,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/storage"
)

// exportedRecommendation is one history row with its feedback.
type exportedRecommendation struct {
	storage.RecommendationRecord
	Feedback []storage.FeedbackRecord `json:"feedback,omitempty"`
}

// exportDocument is the JSON written by 'learning export'.
type exportDocument struct {
	ExportedAt      time.Time                `json:"exported_at"`
	Stats           storage.Stats            `json:"stats"`
	Recommendations []exportedRecommendation `json:"recommendations"`
	Patterns        []storage.ContextPattern `json:"patterns"`
}

// buildExport reads the history, newest recommendation first.
func buildExport(ctx context.Context, store storage.Store, limit int) (*exportDocument, error) {
	st, err := store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = st.Recommendations
	}

	doc := &exportDocument{
		ExportedAt:      time.Now().UTC(),
		Stats:           st,
		Recommendations: []exportedRecommendation{},
		Patterns:        []storage.ContextPattern{},
	}

	if limit > 0 {
		recs, err := store.ListRecommendations(ctx, limit)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			item := exportedRecommendation{RecommendationRecord: rec}
			if rec.WasHelpful != nil {
				fb, err := store.ListFeedback(ctx, rec.ID)
				if err != nil {
					return nil, err
				}
				item.Feedback = fb
			}
			doc.Recommendations = append(doc.Recommendations, item)
		}
	}

	if st.Patterns > 0 {
		patterns, err := store.ListPatterns(ctx, st.Patterns)
		if err != nil {
			return nil, err
		}
		doc.Patterns = patterns
	}
	return doc, nil
}

// formatJSON pretty-prints JSON for export.
func formatJSON(data interface{}) (string, error) {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func percent(n, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.0f%%", float64(n)*100/float64(total))
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

package recommend

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/learning"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/matcher"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/session"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	s, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"), learning.NewLearner())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newEngine(t *testing.T, store storage.Store, opts ...Option) *Engine {
	t.Helper()
	e, err := New(store, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func build(t *testing.T, raw session.RawSignals) session.SessionContext {
	t.Helper()
	sc, err := session.NewBuilder().Build(raw)
	require.NoError(t, err)
	return sc
}

// assertInvariants checks the properties every result must hold.
func assertInvariants(t *testing.T, recs []Recommendation) {
	t.Helper()
	seen := make(map[string]bool)
	for _, r := range recs {
		assert.GreaterOrEqual(t, r.Confidence, 0.0, r.SkillName)
		assert.LessOrEqual(t, r.Confidence, 1.0, r.SkillName)
		assert.False(t, seen[r.SkillName], "duplicate skill %s", r.SkillName)
		seen[r.SkillName] = true
	}
}

func find(recs []Recommendation, skill string) *Recommendation {
	for i := range recs {
		if recs[i].SkillName == skill {
			return &recs[i]
		}
	}
	return nil
}

func TestRecommend_RuleBeatsAgent(t *testing.T) {
	store := openStore(t)
	e := newEngine(t, store)
	sc := build(t, session.RawSignals{
		Markers:      []string{"python-file"},
		ActiveAgents: []string{"python-pro"},
	})

	res, err := e.Recommend(context.Background(), sc)
	require.NoError(t, err)
	require.NoError(t, res.HistoryErr)
	assertInvariants(t, res.Recommendations)

	rec := find(res.Recommendations, "python-performance-optimization")
	require.NotNil(t, rec)
	assert.Equal(t, 0.9, rec.Confidence)
	assert.Equal(t, matcher.SourceRule, rec.Source)
	assert.True(t, rec.AutoActivate)
	assert.Contains(t, rec.Reason, "[rule]")
	assert.Contains(t, rec.Reason, "[agent]")
	assert.Equal(t, "python-performance-optimization", res.Recommendations[0].SkillName)

	// agent-only skills stay below the auto-activate threshold
	other := find(res.Recommendations, "async-python-patterns")
	require.NotNil(t, other)
	assert.Equal(t, 0.7, other.Confidence)
	assert.False(t, other.AutoActivate)

	stored, err := store.GetRecommendation(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, res.RequestID, stored.RequestID)
	assert.Equal(t, sc.Hash(), stored.ContextHash)
	assert.Equal(t, "rule", stored.Source)
	assert.Nil(t, stored.WasActivated)
	assert.Nil(t, stored.WasHelpful)
}

func TestRecommend_ColdStart(t *testing.T) {
	store := openStore(t)
	e := newEngine(t, store)

	res, err := e.Recommend(context.Background(), build(t, session.RawSignals{
		Markers: []string{"go-module"},
	}))
	require.NoError(t, err)
	for _, r := range res.Recommendations {
		assert.NotEqual(t, matcher.SourcePattern, r.Source)
		assert.NotContains(t, r.Reason, "[pattern]")
	}

	// Signals no table knows produce an empty list, not an error.
	res, err = e.Recommend(context.Background(), build(t, session.RawSignals{
		Markers: []string{"cobol-file"},
	}))
	require.NoError(t, err)
	assert.Empty(t, res.Recommendations)

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, st.Patterns)
}

func TestRecommend_InsufficientContext(t *testing.T) {
	e := newEngine(t, openStore(t))

	_, err := e.Recommend(context.Background(), session.SessionContext{WorkingDir: "/tmp"})

	var ve *session.ValidationError
	assert.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
}

func TestRecommend_RejectsUnnormalizedContext(t *testing.T) {
	store := openStore(t)
	e := newEngine(t, store)

	_, err := e.Recommend(context.Background(), session.SessionContext{ActiveAgents: []string{"Python-Pro"}})

	var ve *session.ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Equal(t, "active_agents", ve.Field)

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.Recommendations)
}

// TestRecommend_LearnsFromFeedback seeds a pattern at 0.6 through an
// activation, confirms the skill five times and checks that the pattern
// matcher now proposes it above the cold-start floor.
func TestRecommend_LearnsFromFeedback(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	e := newEngine(t, store)
	sc := build(t, session.RawSignals{Markers: []string{"elixir-file"}, Hints: []string{"mix test"}})
	hash := sc.Hash()

	seed, err := store.AppendRecommendation(ctx, storage.RecommendationRecord{
		RequestID: "seed", SkillName: "elixir-otp-patterns", Confidence: 0.6,
		ContextHash: hash, Source: "agent",
	})
	require.NoError(t, err)
	require.NoError(t, e.RecordActivation(ctx, seed))

	confirmed, err := store.AppendRecommendation(ctx, storage.RecommendationRecord{
		RequestID: "seed", SkillName: "elixir-otp-patterns", Confidence: 0.9,
		ContextHash: hash, Source: "rule",
	})
	require.NoError(t, err)

	prevAvg := 0.6
	for i := 0; i < 5; i++ {
		require.NoError(t, e.RecordFeedback(ctx, confirmed, true, ""))

		patterns, err := store.QueryPatterns(ctx, hash)
		require.NoError(t, err)
		require.Len(t, patterns, 1)
		assert.Greater(t, patterns[0].AvgConfidence, prevAvg)
		assert.Less(t, patterns[0].AvgConfidence, 0.9)
		prevAvg = patterns[0].AvgConfidence
	}

	res, err := e.Recommend(ctx, sc)
	require.NoError(t, err)
	assertInvariants(t, res.Recommendations)

	rec := find(res.Recommendations, "elixir-otp-patterns")
	require.NotNil(t, rec)
	assert.Equal(t, matcher.SourcePattern, rec.Source)
	assert.Greater(t, rec.Confidence, 0.6)
	assert.LessOrEqual(t, rec.Confidence, 0.8)
	assert.False(t, rec.AutoActivate)
}

func TestRecordFeedback_UnhelpfulSuppresses(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	e := newEngine(t, store)
	sc := build(t, session.RawSignals{Markers: []string{"dockerfile"}})

	res, err := e.Recommend(ctx, sc)
	require.NoError(t, err)
	rec := find(res.Recommendations, "docker-best-practices")
	require.NotNil(t, rec)
	require.NoError(t, e.RecordActivation(ctx, rec.ID))

	before, err := store.QueryPatterns(ctx, sc.Hash())
	require.NoError(t, err)
	require.Len(t, before, 1)

	require.NoError(t, e.RecordFeedback(ctx, rec.ID, false, "not what I needed"))

	after, err := store.QueryPatterns(ctx, sc.Hash())
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Less(t, after[0].AvgConfidence, before[0].AvgConfidence)
	assert.Equal(t, before[0].ActivationCount, after[0].ActivationCount)
}

func TestRecordActivation_NotFound(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	e := newEngine(t, store)

	_, err := e.Recommend(ctx, build(t, session.RawSignals{Markers: []string{"python-file"}}))
	require.NoError(t, err)
	before, err := store.Stats(ctx)
	require.NoError(t, err)

	err = e.RecordActivation(ctx, 9999)

	var nf *storage.NotFoundError
	require.True(t, errors.As(err, &nf), "expected NotFoundError, got %v", err)
	after, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRecordFeedback_NotFound(t *testing.T) {
	store := openStore(t)
	e := newEngine(t, store)

	err := e.RecordFeedback(context.Background(), 9999, true, "")

	var nf *storage.NotFoundError
	require.True(t, errors.As(err, &nf))
	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, st.Feedback)
}

func TestRecommend_ConcurrentContexts(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	e := newEngine(t, store)

	contexts := []session.RawSignals{
		{Markers: []string{"python-file"}, ActiveAgents: []string{"python-pro"}},
		{Files: []string{"main.go", "main_test.go"}, ActiveAgents: []string{"golang-pro"}},
		{Files: []string{"Dockerfile", "Chart.yaml"}, ActiveAgents: []string{"kubernetes-architect"}},
		{Files: []string{"index.tsx"}, Hints: []string{"react profiler"}},
		{Markers: []string{"sql-file"}, ActiveAgents: []string{"database-optimizer"}},
		{Markers: []string{"rust-file"}, ActiveAgents: []string{"rust-pro", "debugger"}},
	}
	const rounds = 4

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		total   int
		ids     = make(map[int64]bool)
		callErr error
	)
	for r := 0; r < rounds; r++ {
		for _, raw := range contexts {
			sc := build(t, raw)
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := e.Recommend(ctx, sc)
				mu.Lock()
				defer mu.Unlock()
				if err == nil && res.HistoryErr != nil {
					err = res.HistoryErr
				}
				if err != nil {
					callErr = err
					return
				}
				total += len(res.Recommendations)
				for _, rec := range res.Recommendations {
					if ids[rec.ID] || rec.ID == 0 {
						callErr = fmt.Errorf("bad or duplicate id %d", rec.ID)
					}
					ids[rec.ID] = true
				}
			}()
		}
	}
	wg.Wait()

	require.NoError(t, callErr)
	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, total, st.Recommendations)
	assert.Len(t, ids, total)
}

func TestRecommend_HistoryFailureDegrades(t *testing.T) {
	cause := errors.New("disk I/O error")
	e := newEngine(t, storage.NewDisabled(cause))

	res, err := e.Recommend(context.Background(), build(t, session.RawSignals{
		Markers:      []string{"python-file"},
		ActiveAgents: []string{"python-pro"},
	}))
	require.NoError(t, err)
	require.NotEmpty(t, res.Recommendations)

	var pe *storage.PersistenceError
	require.True(t, errors.As(res.HistoryErr, &pe))
	for _, r := range res.Recommendations {
		assert.Zero(t, r.ID)
	}
}

func TestNew_NilStore(t *testing.T) {
	e := newEngine(t, nil)

	res, err := e.Recommend(context.Background(), build(t, session.RawSignals{Markers: []string{"go-file"}}))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Recommendations)
	assert.Error(t, res.HistoryErr)
}

func TestNew_ExposesConfiguredScorerAndTables(t *testing.T) {
	tables := &matcher.Tables{
		Rules:  []matcher.Rule{{Skill: "go-testing-patterns", Any: []string{"go-file"}}},
		Agents: map[string][]string{"golang-pro": {"golang-concurrency-patterns"}},
	}
	e := newEngine(t, nil, WithTables(tables), WithScorer(learning.NewPatternScorer(5)))

	assert.Equal(t, 5.0, e.Scorer().DecayConstant)
	assert.Same(t, tables, e.Tables())

	defaults := newEngine(t, nil)
	assert.Equal(t, learning.DefaultDecayConstant, defaults.Scorer().DecayConstant)
	require.NotNil(t, defaults.Tables())
	assert.NotEmpty(t, defaults.Tables().Rules)
}

func TestNew_InvalidTables(t *testing.T) {
	_, err := New(nil, WithTables(&matcher.Tables{Rules: []matcher.Rule{{Skill: "x"}}}))

	var te *matcher.TableError
	assert.True(t, errors.As(err, &te))
}

type fixedCatalog map[string]bool

func (c fixedCatalog) Has(name string) bool { return c[name] }

func TestRecommend_CatalogFilters(t *testing.T) {
	e := newEngine(t, openStore(t), WithCatalog(fixedCatalog{"python-testing-patterns": true}))

	res, err := e.Recommend(context.Background(), build(t, session.RawSignals{
		Files:        []string{"app.py", "test_app.py"},
		ActiveAgents: []string{"python-pro"},
	}))
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, "python-testing-patterns", res.Recommendations[0].SkillName)
}

func TestRecommend_CustomThresholdAndConfidences(t *testing.T) {
	e := newEngine(t, openStore(t),
		WithConfidences(0.85, 0.65),
		WithAutoActivateThreshold(0.9),
	)

	res, err := e.Recommend(context.Background(), build(t, session.RawSignals{
		Markers:      []string{"python-file"},
		ActiveAgents: []string{"python-pro"},
	}))
	require.NoError(t, err)
	rec := find(res.Recommendations, "python-performance-optimization")
	require.NotNil(t, rec)
	assert.Equal(t, 0.85, rec.Confidence)
	assert.False(t, rec.AutoActivate)
}

// blockingStore holds AppendRecommendations until release is closed.
type blockingStore struct {
	storage.Store
	release  chan struct{}
	mu       sync.Mutex
	appended int
}

func (b *blockingStore) QueryPatterns(context.Context, string) ([]storage.ContextPattern, error) {
	return nil, nil
}

func (b *blockingStore) AppendRecommendations(ctx context.Context, recs []storage.RecommendationRecord) ([]int64, error) {
	<-b.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]int64, len(recs))
	for i := range recs {
		b.appended++
		ids[i] = int64(b.appended)
	}
	return ids, nil
}

func TestRecommend_CallerTimeoutStillWrites(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	e, err := New(store)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = e.Recommend(ctx, build(t, session.RawSignals{Markers: []string{"python-file"}}))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(store.release)
	require.NoError(t, e.Close())

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Positive(t, store.appended)
}

func TestRecommend_AfterClose(t *testing.T) {
	e, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = e.Recommend(context.Background(), build(t, session.RawSignals{Markers: []string{"go-file"}}))
	assert.ErrorIs(t, err, ErrClosed)
}

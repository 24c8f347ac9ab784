/*
Package recommend is the engine facade: it runs the matchers, ranks their
candidates, records what it suggested and routes activation and feedback
reports to the store.

The engine holds no learning state of its own. Everything it learns lives in
the injected storage.Store, so several engines (or processes) can share one
database file.
*/
package recommend

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/learning"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/logger"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/matcher"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/session"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/storage"
)

// ErrClosed is returned by Recommend after Close.
var ErrClosed = errors.New("recommend: engine closed")

// Catalog answers whether a skill exists. It is owned by the caller.
type Catalog interface {
	Has(name string) bool
}

// Result is the outcome of one Recommend call.
type Result struct {
	// RequestID groups the history rows written for this call.
	RequestID string `json:"request_id"`

	// ContextHash is the bucket patterns are learned under.
	ContextHash string `json:"context_hash"`

	// Recommendations is ranked and holds at most one entry per skill.
	Recommendations []Recommendation `json:"recommendations"`

	// HistoryErr is set when the recommendations could not be recorded.
	// The recommendations are still valid; their IDs are 0.
	HistoryErr error `json:"-"`
}

// Engine ranks skills for a session context. It is safe for concurrent use.
type Engine struct {
	store     storage.Store
	matchers  []matcher.Matcher
	catalog   Catalog
	threshold float64

	tables          *matcher.Tables
	scorer          learning.PatternScorer
	ruleConfidence  float64
	agentConfidence float64

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithTables sets the rule and agent tables. The embedded defaults are used
// otherwise.
func WithTables(t *matcher.Tables) Option {
	return func(e *Engine) { e.tables = t }
}

// WithCatalog drops candidates for skills the catalog does not know.
func WithCatalog(c Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

// WithAutoActivateThreshold overrides DefaultAutoActivateThreshold.
func WithAutoActivateThreshold(v float64) Option {
	return func(e *Engine) { e.threshold = v }
}

// WithScorer sets the pattern scorer.
func WithScorer(s learning.PatternScorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithConfidences overrides the fixed rule and agent confidences.
func WithConfidences(rule, agent float64) Option {
	return func(e *Engine) {
		e.ruleConfidence = rule
		e.agentConfidence = agent
	}
}

// New builds an engine on store. A nil store is replaced by a disabled one:
// recommendations still work, history is not kept.
func New(store storage.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:           store,
		threshold:       DefaultAutoActivateThreshold,
		scorer:          learning.NewPatternScorer(learning.DefaultDecayConstant),
		ruleConfidence:  matcher.DefaultRuleConfidence,
		agentConfidence: matcher.DefaultAgentConfidence,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.store == nil {
		e.store = storage.NewDisabled(errors.New("no store configured"))
	}
	if e.tables == nil {
		t, err := matcher.DefaultTables()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load default tables")
		}
		e.tables = t
	} else if err := e.tables.Validate(); err != nil {
		return nil, err
	}

	e.matchers = []matcher.Matcher{
		matcher.NewRuleMatcher(e.tables.Rules, e.ruleConfidence),
		matcher.NewAgentMatcher(e.tables.Agents, e.agentConfidence),
		matcher.NewPatternMatcher(e.store, e.scorer),
	}
	return e, nil
}

// Recommend ranks skills for sc and records them in the history.
//
// An invalid context returns a *session.ValidationError. A failed history
// write does not fail the call; it is reported in Result.HistoryErr. If ctx
// ends before the write completes, Recommend returns ctx.Err() and the write
// still runs to completion.
func (e *Engine) Recommend(ctx context.Context, sc session.SessionContext) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	e.wg.Add(1)
	e.mu.Unlock()
	tracked := true
	defer func() {
		if tracked {
			e.wg.Done()
		}
	}()

	res := &Result{
		RequestID:   uuid.NewString(),
		ContextHash: sc.Hash(),
	}
	ctx = logger.WithLogger(ctx, logger.G(ctx).WithField("request_id", res.RequestID))

	lists, err := e.match(ctx, sc, res.ContextHash)
	if err != nil {
		return nil, err
	}
	res.Recommendations = Aggregate(ctx, lists, e.threshold)
	if len(res.Recommendations) == 0 {
		logger.G(ctx).Debug("no recommendations for context")
		return res, nil
	}

	records := make([]storage.RecommendationRecord, len(res.Recommendations))
	for i, r := range res.Recommendations {
		records[i] = storage.RecommendationRecord{
			RequestID:   res.RequestID,
			SkillName:   r.SkillName,
			Confidence:  r.Confidence,
			ContextHash: res.ContextHash,
			Source:      string(r.Source),
			Reason:      r.Reason,
		}
	}

	type appendResult struct {
		ids []int64
		err error
	}
	done := make(chan appendResult, 1)
	writeCtx := context.WithoutCancel(ctx)

	// The write goroutine owns the WaitGroup slot from here on.
	tracked = false
	go func() {
		defer e.wg.Done()
		ids, err := e.store.AppendRecommendations(writeCtx, records)
		if err != nil {
			logger.G(writeCtx).WithError(err).Warn("failed to record recommendations")
		}
		done <- appendResult{ids: ids, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			res.HistoryErr = r.err
			return res, nil
		}
		for i := range res.Recommendations {
			if i < len(r.ids) {
				res.Recommendations[i].ID = r.ids[i]
			}
		}
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// match runs every matcher in parallel. Results keep matcher order.
func (e *Engine) match(ctx context.Context, sc session.SessionContext, hash string) ([][]matcher.Candidate, error) {
	lists := make([][]matcher.Candidate, len(e.matchers))
	g, gctx := errgroup.WithContext(ctx)

	for i, m := range e.matchers {
		g.Go(func() error {
			cands, err := m.Match(gctx, sc, hash)
			if err != nil {
				return errors.Wrapf(err, "%s matcher", m.Source())
			}
			lists[i] = e.filterKnown(gctx, cands)
			logger.G(gctx).WithField("source", m.Source()).Debugf("%d candidates", len(lists[i]))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lists, nil
}

func (e *Engine) filterKnown(ctx context.Context, cands []matcher.Candidate) []matcher.Candidate {
	if e.catalog == nil {
		return cands
	}
	kept := cands[:0:0]
	for _, c := range cands {
		if !e.catalog.Has(c.Skill) {
			logger.G(ctx).WithField("skill", c.Skill).Debug("skill not in catalog, dropping candidate")
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// RecordActivation marks a recommendation as activated. An unknown id
// returns a *storage.NotFoundError.
func (e *Engine) RecordActivation(ctx context.Context, id int64) error {
	return e.store.RecordActivation(ctx, id)
}

// RecordFeedback records a helpfulness verdict and updates the learned
// pattern. An unknown id returns a *storage.NotFoundError.
func (e *Engine) RecordFeedback(ctx context.Context, id int64, helpful bool, comment string) error {
	_, err := e.store.RecordFeedback(ctx, id, helpful, comment)
	return err
}

// Scorer returns the pattern scorer in use.
func (e *Engine) Scorer() learning.PatternScorer {
	return e.scorer
}

// Tables returns the rule and agent tables in use.
func (e *Engine) Tables() *matcher.Tables {
	return e.tables
}

// Close waits for in-flight history writes. It does not close the store.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()
	return nil
}

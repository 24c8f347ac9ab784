package cli

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/catalog"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/config"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/learning"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/logger"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/matcher"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/recommend"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/storage"
)

// loadConfig resolves the configuration prepared by the root command.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// runtime is the engine and its collaborators wired from a Config.
type runtime struct {
	cfg     *config.Config
	store   storage.Store
	engine  *recommend.Engine
	catalog *catalog.Catalog
}

// openStore opens the history database. When it cannot be opened a disabled
// store is returned instead so recommendations keep working.
func openStore(ctx context.Context, cfg *config.Config) storage.Store {
	store, err := openStrictStore(ctx, cfg)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("path", cfg.DBPath).
			Warn("history database unavailable, recommendations will not be recorded")
		return storage.NewDisabled(err)
	}
	return store
}

// openStrictStore opens the history database and fails instead of degrading.
// Commands that only read or write history use it.
func openStrictStore(ctx context.Context, cfg *config.Config) (*storage.SQLiteStore, error) {
	learner := &learning.Learner{
		Rate:    cfg.Learning.Rate,
		Damping: cfg.Learning.Damping,
		Floor:   cfg.Learning.Floor,
	}
	return storage.Open(ctx, cfg.DBPath, learner)
}

// loadCatalog reads the configured skill directories, or the default ones
// when none are configured.
func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	dirs := cfg.CatalogDirs
	if len(dirs) == 0 {
		d, err := catalog.DefaultDirs()
		if err != nil {
			return nil, err
		}
		dirs = d
	}
	return catalog.Load(dirs...)
}

// openRuntime wires the engine for recommending. The catalog is always
// loaded; it filters candidates only when catalog_dirs is set explicitly.
func openRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load skill catalog")
	}

	rt, err := newRuntime(cfg, openStore(ctx, cfg), cat)
	if err != nil {
		cat.Close()
		return nil, err
	}
	return rt, nil
}

// openHistoryRuntime wires the engine on a store that must open. Commands
// that only report activation or feedback, or read the history, use it.
func openHistoryRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	store, err := openStrictStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newRuntime(cfg, store, nil)
}

// newRuntime builds the engine on store. It takes ownership of store and
// closes it on failure.
func newRuntime(cfg *config.Config, store storage.Store, cat *catalog.Catalog) (*runtime, error) {
	tables, err := matcher.LoadTables(cfg.RulesFile, cfg.AgentsFile)
	if err != nil {
		store.Close()
		return nil, errors.Wrap(err, "failed to load matcher tables")
	}

	opts := []recommend.Option{
		recommend.WithTables(tables),
		recommend.WithScorer(learning.NewPatternScorer(cfg.Pattern.DecayConstant)),
		recommend.WithConfidences(cfg.Ranking.RuleConfidence, cfg.Ranking.AgentConfidence),
		recommend.WithAutoActivateThreshold(cfg.Ranking.AutoActivateThreshold),
	}
	if cat != nil && len(cfg.CatalogDirs) > 0 {
		opts = append(opts, recommend.WithCatalog(cat))
	}

	engine, err := recommend.New(store, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, store: store, engine: engine, catalog: cat}, nil
}

// Close stops the engine first so pending history writes land before the
// store goes away.
func (r *runtime) Close() error {
	closers := []func() error{r.engine.Close, r.store.Close}
	if r.catalog != nil {
		closers = append(closers, r.catalog.Close)
	}

	var firstErr error
	for _, closeFn := range closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

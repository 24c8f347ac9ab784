package storage

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/logger"
)

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db      *sqlx.DB
	dbPath  string
	learner PatternLearner
	now     func() time.Time

	// mu serializes writers inside this process; _txlock=immediate does the
	// same across processes sharing the file.
	mu sync.Mutex
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		s.now = now
	}
}

// DefaultPath returns ~/.skill-advisor/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".skill-advisor", "history.db"), nil
}

// Open opens (creating if needed) the database at dbPath and runs
// migrations. The learner is invoked for every activation and feedback write.
func Open(ctx context.Context, dbPath string, learner PatternLearner, opts ...Option) (*SQLiteStore, error) {
	if learner == nil {
		return nil, errors.New("storage: pattern learner is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, persistErr("create db directory", err)
	}

	db, err := sqlx.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, persistErr("open database", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, persistErr("ping database", err)
	}

	s := &SQLiteStore{
		db:      db,
		dbPath:  dbPath,
		learner: learner,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.runMigrations(ctx); err != nil {
		db.Close()
		return nil, persistErr("run migrations", err)
	}

	return s, nil
}

// dsn builds a modernc.org/sqlite connection string. Pragmas go in the DSN so
// that every pooled connection gets them, not just the first one.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return path + "?" + q.Encode()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the database connection. Pending writers finish first.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close database")
	}
	return nil
}

// withWriteTx runs fn in a serialized write transaction.
func (s *SQLiteStore) withWriteTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return persistErr(op, errors.Wrap(err, "failed to begin transaction"))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		var nf *NotFoundError
		var pe *PersistenceError
		if errors.As(err, &nf) || errors.As(err, &pe) {
			return err
		}
		return persistErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return persistErr(op, errors.Wrap(err, "failed to commit"))
	}
	return nil
}

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	up      func(ctx context.Context, tx *sqlx.Tx) error
}

var migrations = []migration{
	{version: 1, name: "initial_schema", up: migration001InitialSchema},
}

// runMigrations applies pending migrations, each in its own transaction.
func (s *SQLiteStore) runMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return errors.Wrap(err, "failed to create schema_migrations table")
	}

	var current int
	if err := s.db.GetContext(ctx, &current, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"); err != nil {
		return errors.Wrap(err, "failed to read migration version")
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		logger.L.WithField("version", m.version).Infof("running migration %s", m.name)

		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "failed to begin migration")
		}
		if err := m.up(ctx, tx); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "migration %d failed", m.version)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.version, m.name, formatTime(time.Now()),
		); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to record migration")
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "failed to commit migration %d", m.version)
		}
	}

	return nil
}

// migration001InitialSchema creates the three history tables.
func migration001InitialSchema(ctx context.Context, tx *sqlx.Tx) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS recommendations_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			skill_name TEXT NOT NULL CHECK (skill_name <> ''),
			confidence REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
			context_hash TEXT NOT NULL,
			source TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			was_activated INTEGER,
			was_helpful INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_context
			ON recommendations_history(context_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_skill
			ON recommendations_history(skill_name)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_request
			ON recommendations_history(request_id)`,
		`CREATE TABLE IF NOT EXISTS recommendation_feedback (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recommendation_id INTEGER NOT NULL REFERENCES recommendations_history(id),
			timestamp TEXT NOT NULL,
			helpful INTEGER NOT NULL,
			comment TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_recommendation
			ON recommendation_feedback(recommendation_id)`,
		`CREATE TABLE IF NOT EXISTS context_patterns (
			context_hash TEXT NOT NULL,
			skill_name TEXT NOT NULL,
			activation_count INTEGER NOT NULL DEFAULT 0 CHECK (activation_count >= 0),
			last_activated TEXT NOT NULL,
			avg_confidence REAL NOT NULL CHECK (avg_confidence >= 0 AND avg_confidence <= 1),
			PRIMARY KEY (context_hash, skill_name)
		)`,
	}

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to apply schema statement")
		}
	}
	return nil
}

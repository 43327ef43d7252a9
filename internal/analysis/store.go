package analysis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"muteguard/internal/config"
	"muteguard/internal/logging"
	"muteguard/internal/subtitles"
)

// LookupObserver receives the outcome of each Get: "hit", "miss" or "ghost".
type LookupObserver interface {
	ObserveStoreLookup(result string)
}

// Store manages analysis records backed by SQLite and artifacts on disk.
type Store struct {
	db          *sql.DB
	path        string
	artifactDir string
	mask        rune
	logger      *slog.Logger
	observer    LookupObserver
	now         func() time.Time
}

// Option customizes a Store at open time.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logging.NewComponentLogger(logger, "analysis")
		}
	}
}

// WithObserver reports lookup outcomes to o.
func WithObserver(o LookupObserver) Option {
	return func(s *Store) { s.observer = o }
}

// WithClock replaces the time source used for timestamps and cleanup.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the analysis database at
// cfg.Paths.DatabasePath. Artifacts are written under cfg.Paths.ArtifactDir.
func Open(cfg *config.Config, opts ...Option) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("analysis: config is required")
	}
	if strings.TrimSpace(cfg.Paths.DatabasePath) == "" || strings.TrimSpace(cfg.Paths.ArtifactDir) == "" {
		return nil, errors.New("analysis: database_path and artifact_dir are required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Paths.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes writers; WAL keeps readers off the lock.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	mask := subtitles.DefaultMask
	if r, _ := utf8.DecodeRuneInString(cfg.Profanity.Mask); r != utf8.RuneError {
		mask = r
	}
	store := &Store{
		db:          db,
		path:        cfg.Paths.DatabasePath,
		artifactDir: cfg.Paths.ArtifactDir,
		mask:        mask,
		logger:      logging.NewComponentLogger(logging.NewNop(), "analysis"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// ArtifactDir returns the directory filtered artifacts are written to.
func (s *Store) ArtifactDir() string { return s.artifactDir }

func (s *Store) observe(result string) {
	if s.observer != nil {
		s.observer.ObserveStoreLookup(result)
	}
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"muteguard/internal/config"
	"muteguard/internal/logging"
	"muteguard/internal/notifications"
)

// RecordCleaner removes analysis records older than a cutoff.
type RecordCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
}

// CachePruner drops expired raw cache entries.
type CachePruner interface {
	Prune() (int, error)
}

// CleanupObserver counts removals per target.
type CleanupObserver interface {
	ObserveCleanup(target string, removed int)
}

// Deps holds the collaborators the daemon maintains.
type Deps struct {
	Records  RecordCleaner
	Cache    CachePruner
	Metrics  MetricsSource
	Notifier notifications.Service

	// LogPath is the active log file, kept out of pruning.
	LogPath string
	Now     func() time.Time
}

// Daemon enforces single-instance execution and runs scheduled maintenance.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	records  RecordCleaner
	cache    CachePruner
	metrics  MetricsSource
	notifier notifications.Service
	logPath  string
	now      func() time.Time

	lockPath string
	lock     *flock.Flock

	scheduler *cron.Cron
	entryID   cron.EntryID
	http      *httpServer

	mu         sync.Mutex
	lastReport MaintenanceReport
	running    atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// MaintenanceReport summarizes one maintenance pass.
type MaintenanceReport struct {
	StartedAt    time.Time
	Records      int
	CacheEntries int
	Logs         int
	Errors       []string
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	LockFilePath    string
	DatabasePath    string
	MetricsAddress  string
	CleanupSchedule string
	NextCleanup     time.Time
	LastMaintenance MaintenanceReport
}

// New constructs a daemon. Records is required; Cache, Metrics and Notifier
// are optional.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) (*Daemon, error) {
	if cfg == nil || logger == nil || deps.Records == nil {
		return nil, errors.New("daemon requires config, logger, and record store")
	}
	lockPath := cfg.Paths.LockPath
	if lockPath == "" {
		lockPath = filepath.Join(cfg.Paths.DataDir, "muteguard.lock")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		records:  deps.Records,
		cache:    deps.Cache,
		metrics:  deps.Metrics,
		notifier: notifier,
		logPath:  deps.LogPath,
		now:      now,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, schedules maintenance and starts the
// metrics listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another muteguard daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	runCtx := d.ctx
	d.scheduler = cron.New()
	d.entryID, err = d.scheduler.AddFunc(d.cfg.Store.CleanupSchedule, func() {
		d.RunMaintenance(runCtx)
	})
	if err != nil {
		d.abortStart()
		return fmt.Errorf("schedule cleanup %q: %w", d.cfg.Store.CleanupSchedule, err)
	}

	d.http = newHTTPServer(d.cfg.Daemon.MetricsBind, d, d.logger)
	if err := d.http.start(d.ctx); err != nil {
		d.abortStart()
		return err
	}
	d.scheduler.Start()

	d.running.Store(true)
	d.logger.Info("muteguard daemon started",
		logging.String("lock", d.lockPath),
		logging.String("cleanup_schedule", d.cfg.Store.CleanupSchedule),
		logging.String("metrics_address", d.http.address()),
	)
	d.notify(d.ctx, notifications.EventDaemonStarted, notifications.Payload{
		"schedule": d.cfg.Store.CleanupSchedule,
	})
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
	d.scheduler = nil
}

// Stop waits for a running maintenance pass, stops the listener and releases
// the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.scheduler != nil {
		<-d.scheduler.Stop().Done()
	}
	d.http.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("muteguard daemon stopped")
}

// RunMaintenance removes expired records, stale cache entries and old logs.
// Failures are logged and collected; a failing step does not stop the others.
func (d *Daemon) RunMaintenance(ctx context.Context) MaintenanceReport {
	if ctx == nil {
		ctx = context.Background()
	}
	report := MaintenanceReport{StartedAt: d.now()}

	removed, err := d.records.Cleanup(ctx, d.cfg.StoreRetention())
	if err != nil {
		report.Errors = append(report.Errors, "records: "+err.Error())
		logging.WarnWithContext(d.logger, "analysis record cleanup failed", "record_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "expired records remain until the next run"),
			logging.String(logging.FieldErrorHint, "check the analysis database"),
		)
	}
	report.Records = removed
	d.observeCleanup("records", removed)

	if d.cache != nil {
		pruned, err := d.cache.Prune()
		if err != nil {
			report.Errors = append(report.Errors, "raw cache: "+err.Error())
			logging.WarnWithContext(d.logger, "raw cache prune failed", "cache_prune_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "stale subtitles remain on disk"),
				logging.String(logging.FieldErrorHint, "check permissions on the cache directory"),
			)
		}
		report.CacheEntries = pruned
		d.observeCleanup("raw_cache", pruned)
	}

	keep := []string{}
	if d.logPath != "" {
		keep = append(keep, d.logPath)
	}
	report.Logs = logging.PruneLogs(d.logger, report.StartedAt, d.cfg.LogRetention(), logging.RetentionTarget{
		Dir:     d.cfg.Paths.LogDir,
		Pattern: "muteguard-*.log",
		Keep:    keep,
	})
	d.observeCleanup("logs", report.Logs)

	d.mu.Lock()
	d.lastReport = report
	d.mu.Unlock()

	d.logger.Info("maintenance complete",
		logging.String(logging.FieldEventType, "maintenance_complete"),
		logging.Int("records_removed", report.Records),
		logging.Int("cache_entries_removed", report.CacheEntries),
		logging.Int("logs_removed", report.Logs),
		logging.Int("errors", len(report.Errors)),
	)
	d.notifyMaintenance(ctx, report)
	return report
}

func (d *Daemon) notifyMaintenance(ctx context.Context, report MaintenanceReport) {
	if len(report.Errors) > 0 {
		d.notify(ctx, notifications.EventMaintenanceFailed, notifications.Payload{
			"error": strings.Join(report.Errors, "; "),
		})
		return
	}
	d.notify(ctx, notifications.EventMaintenanceCompleted, notifications.Payload{
		"records":      report.Records,
		"cacheEntries": report.CacheEntries,
		"logs":         report.Logs,
	})
}

func (d *Daemon) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := d.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(d.logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "ntfy subscribers miss this event"),
			logging.String(logging.FieldErrorHint, "check daemon.ntfy_topic"),
		)
	}
}

func (d *Daemon) observeCleanup(target string, removed int) {
	if o, ok := d.metrics.(CleanupObserver); ok {
		o.ObserveCleanup(target, removed)
	}
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	last := d.lastReport
	d.mu.Unlock()

	status := Status{
		Running:         d.running.Load(),
		LockFilePath:    d.lockPath,
		DatabasePath:    d.cfg.Paths.DatabasePath,
		CleanupSchedule: d.cfg.Store.CleanupSchedule,
		LastMaintenance: last,
	}
	if d.http != nil {
		status.MetricsAddress = d.http.address()
	}
	if d.scheduler != nil && status.Running {
		status.NextCleanup = d.scheduler.Entry(d.entryID).Next
	}
	return status
}

// LockPath returns the path of the single-instance lock file.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

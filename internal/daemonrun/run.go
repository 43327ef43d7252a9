package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"muteguard/internal/analysis"
	"muteguard/internal/config"
	"muteguard/internal/daemon"
	"muteguard/internal/daemonctl"
	"muteguard/internal/logging"
	"muteguard/internal/metrics"
	"muteguard/internal/notifications"
	"muteguard/internal/subtitles"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// RunNow performs a maintenance pass immediately after startup.
	RunNow bool
}

// Run starts the muteguard daemon and blocks until SIGINT, SIGTERM or
// cancellation of cmdCtx.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("muteguard-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:           level,
		Format:          cfg.Logging.Format,
		OutputPaths:     []string{"stdout"},
		FilePath:        logPath,
		Development:     opts.Development,
		ComponentLevels: cfg.Logging.ComponentLevels,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update muteguard.log link: %v\n", err)
	}
	logConfigSnapshot(logger, cfg)

	pidPath := daemonctl.PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	m := metrics.New()
	store, err := analysis.Open(cfg, analysis.WithLogger(logger), analysis.WithObserver(m))
	if err != nil {
		logger.Error("open analysis store", logging.Error(err))
		return err
	}
	defer store.Close()

	cache, err := subtitles.NewRawCache(cfg.Paths.CacheDir, cfg.CacheTTL(), logger)
	if err != nil {
		return fmt.Errorf("open raw cache: %w", err)
	}

	d, err := daemon.New(cfg, logger, daemon.Deps{
		Records:  store,
		Cache:    cache,
		Metrics:  m,
		Notifier: notifications.NewService(cfg),
		LogPath:  logPath,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the lock file, cleanup_schedule and metrics_bind"),
			logging.String(logging.FieldImpact, "no maintenance will run"),
		)
		return err
	}
	defer d.Stop()

	if opts.RunNow {
		d.RunMaintenance(signalCtx)
	}

	<-signalCtx.Done()
	logger.Info("muteguard daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "muteguard.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.Bool("opensubtitles_key_present", strings.TrimSpace(cfg.OpenSubtitles.APIKey) != ""),
		logging.String("database", cfg.Paths.DatabasePath),
		logging.String("artifact_dir", cfg.Paths.ArtifactDir),
		logging.String("cache_dir", cfg.Paths.CacheDir),
		logging.Duration("cache_ttl", cfg.CacheTTL()),
		logging.Duration("store_retention", cfg.StoreRetention()),
		logging.String("cleanup_schedule", cfg.Store.CleanupSchedule),
		logging.String("metrics_bind", cfg.Daemon.MetricsBind),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Daemon.NtfyTopic) != ""),
	)
}

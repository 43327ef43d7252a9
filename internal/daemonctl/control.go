package daemonctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"muteguard/internal/config"
)

// ErrDaemonNotRunning indicates no daemon holds the instance lock.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Snapshot is the daemon state visible from another process.
type Snapshot struct {
	Running         bool
	PID             int
	Reachable       bool
	CleanupSchedule string    `json:"cleanupSchedule"`
	NextCleanup     time.Time `json:"nextCleanup"`
	LastMaintenance struct {
		StartedAt    time.Time `json:"startedAt"`
		Records      int       `json:"records"`
		CacheEntries int       `json:"cacheEntries"`
		Logs         int       `json:"logs"`
		Errors       []string  `json:"errors"`
	} `json:"lastMaintenance"`
}

// PIDPath returns where the daemon records its process id.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "muteguard.pid")
}

// IsRunning probes the instance lock. A lock we can take means no daemon.
func IsRunning(cfg *config.Config) (bool, error) {
	if cfg == nil || strings.TrimSpace(cfg.Paths.LockPath) == "" {
		return false, errors.New("lock path not configured")
	}
	if _, err := os.Stat(cfg.Paths.LockPath); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	lock := flock.New(cfg.Paths.LockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe daemon lock: %w", err)
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}

// BuildSnapshot reports lock state and, when the daemon is running, the
// status served on its metrics listener.
func BuildSnapshot(ctx context.Context, cfg *config.Config) (Snapshot, error) {
	var snap Snapshot
	running, err := IsRunning(cfg)
	if err != nil {
		return snap, err
	}
	snap.Running = running
	if !running {
		return snap, nil
	}
	snap.PID, _ = readPID(PIDPath(cfg))

	bind := strings.TrimSpace(cfg.Daemon.MetricsBind)
	if bind == "" {
		return snap, nil
	}
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+bind+"/status", nil)
	if err != nil {
		return snap, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return snap, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snap, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode daemon status: %w", err)
	}
	snap.Running = true
	snap.Reachable = true
	return snap, nil
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Stop sends SIGTERM to the daemon and waits up to gracePeriod for the lock
// to be released, then sends SIGKILL.
func Stop(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	running, err := IsRunning(cfg)
	if err != nil {
		return StopResult{}, err
	}
	if !running {
		return StopResult{}, ErrDaemonNotRunning
	}
	pidPath := PIDPath(cfg)
	pid, err := readPID(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	result := StopResult{PID: pid}
	deadline := time.Now().Add(gracePeriod)
	for time.Now().Before(deadline) {
		if running, err := IsRunning(cfg); err == nil && !running {
			return result, nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	if err := proc.Kill(); err != nil {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	result.ForcedKill = true
	return result, nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %q", path)
	}
	return pid, nil
}

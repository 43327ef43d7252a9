package daemon_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"muteguard/internal/daemon"
	"muteguard/internal/logging"
	"muteguard/internal/metrics"
	"muteguard/internal/notifications"
	"muteguard/internal/testsupport"
)

type fakeCleaner struct {
	calls     int
	olderThan time.Duration
	removed   int
	err       error
}

func (f *fakeCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int, error) {
	f.calls++
	f.olderThan = olderThan
	return f.removed, f.err
}

type fakePruner struct {
	removed int
	err     error
}

func (f fakePruner) Prune() (int, error) { return f.removed, f.err }

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, logging.NewNop(), daemon.Deps{Records: &fakeCleaner{}, Metrics: metrics.New()})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.NextCleanup.IsZero() {
		t.Fatal("expected a scheduled cleanup")
	}
	if status.MetricsAddress == "" {
		t.Fatal("expected metrics listener address")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other, err := daemon.New(cfg, logging.NewNop(), daemon.Deps{Records: &fakeCleaner{}})
	if err != nil {
		t.Fatal(err)
	}
	if err := other.Start(ctx); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention, got %v", err)
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonServesMetricsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := metrics.New()
	m.ObserveRawCache("hit")
	d, err := daemon.New(cfg, logging.NewNop(), daemon.Deps{Records: &fakeCleaner{}, Metrics: m})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(d.Stop)

	base := "http://" + d.Status().MetricsAddress
	body := get(t, base+"/metrics", http.StatusOK)
	if !strings.Contains(body, `muteguard_raw_cache_lookups_total{result="hit"} 1`) {
		t.Fatalf("metrics body missing counter:\n%s", body)
	}
	if got := get(t, base+"/healthz", http.StatusOK); strings.TrimSpace(got) != "ok" {
		t.Fatalf("healthz = %q", got)
	}
	if got := get(t, base+"/status", http.StatusOK); !strings.Contains(got, `"running":true`) {
		t.Fatalf("status = %s", got)
	}
}

func TestRunMaintenance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Store.RetentionDays = 7
	cfg.Logging.RetentionDays = 1

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	oldLog := filepath.Join(cfg.Paths.LogDir, "muteguard-20260101T000000.000Z.log")
	activeLog := filepath.Join(cfg.Paths.LogDir, "muteguard-20260430T000000.000Z.log")
	for _, p := range []string{oldLog, activeLog} {
		testsupport.WriteText(t, p, "log\n")
		old := now.Add(-72 * time.Hour)
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatal(err)
		}
	}

	cleaner := &fakeCleaner{removed: 4}
	m := metrics.New()
	d, err := daemon.New(cfg, logging.NewNop(), daemon.Deps{
		Records: cleaner,
		Cache:   fakePruner{removed: 2},
		Metrics: m,
		LogPath: activeLog,
		Now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatal(err)
	}

	report := d.RunMaintenance(context.Background())
	if cleaner.calls != 1 || cleaner.olderThan != 7*24*time.Hour {
		t.Fatalf("cleanup called %d times with %v", cleaner.calls, cleaner.olderThan)
	}
	if report.Records != 4 || report.CacheEntries != 2 || report.Logs != 1 || len(report.Errors) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, err := os.Stat(oldLog); !os.IsNotExist(err) {
		t.Fatal("old log should be pruned")
	}
	if _, err := os.Stat(activeLog); err != nil {
		t.Fatal("active log must be kept")
	}
	if last := d.Status().LastMaintenance; last.Records != 4 {
		t.Fatalf("status should carry the last report, got %+v", last)
	}
}

func TestRunMaintenanceContinuesAfterFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, logging.NewNop(), daemon.Deps{
		Records: &fakeCleaner{err: errors.New("database is locked")},
		Cache:   fakePruner{removed: 3, err: errors.New("permission denied")},
	})
	if err != nil {
		t.Fatal(err)
	}
	report := d.RunMaintenance(context.Background())
	if len(report.Errors) != 2 {
		t.Fatalf("expected both failures reported, got %v", report.Errors)
	}
	if report.CacheEntries != 3 {
		t.Fatalf("partial prune count lost: %+v", report)
	}
}

func TestNewRequiresRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, logging.NewNop(), daemon.Deps{}); err == nil {
		t.Fatal("expected error without a record store")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Store.CleanupSchedule = "every tuesday"
	d, err := daemon.New(cfg, logging.NewNop(), daemon.Deps{Records: &fakeCleaner{}})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Start(context.Background()); err == nil {
		d.Stop()
		t.Fatal("expected schedule error")
	}
	// The lock must be released after a failed start.
	if err := d.Start(context.Background()); err == nil {
		d.Stop()
		t.Fatal("expected schedule error on retry")
	} else if strings.Contains(err.Error(), "already running") {
		t.Fatalf("lock leaked: %v", err)
	}
}

func get(t *testing.T, url string, want int) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != want {
		t.Fatalf("GET %s: status %d, body %s", url, resp.StatusCode, body)
	}
	return string(body)
}

type recordingNotifier struct {
	events   []notifications.Event
	payloads []notifications.Payload
	err      error
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return r.err
}

func TestRunMaintenanceNotifies(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	ok := &recordingNotifier{}
	d, err := daemon.New(cfg, logging.NewNop(), daemon.Deps{
		Records:  &fakeCleaner{removed: 2},
		Cache:    fakePruner{removed: 1},
		Notifier: ok,
	})
	if err != nil {
		t.Fatal(err)
	}
	d.RunMaintenance(context.Background())
	if len(ok.events) != 1 || ok.events[0] != notifications.EventMaintenanceCompleted {
		t.Fatalf("expected completion event, got %v", ok.events)
	}
	if ok.payloads[0]["records"] != 2 || ok.payloads[0]["cacheEntries"] != 1 {
		t.Fatalf("unexpected payload %v", ok.payloads[0])
	}

	failing := &recordingNotifier{err: errors.New("ntfy unreachable")}
	d, err = daemon.New(cfg, logging.NewNop(), daemon.Deps{
		Records:  &fakeCleaner{err: errors.New("database is locked")},
		Notifier: failing,
	})
	if err != nil {
		t.Fatal(err)
	}
	report := d.RunMaintenance(context.Background())
	if len(report.Errors) != 1 {
		t.Fatalf("notifier failure must not add report errors: %v", report.Errors)
	}
	if len(failing.events) != 1 || failing.events[0] != notifications.EventMaintenanceFailed {
		t.Fatalf("expected failure event, got %v", failing.events)
	}
	if msg, _ := failing.payloads[0]["error"].(string); !strings.Contains(msg, "database is locked") {
		t.Fatalf("failure payload missing cause: %v", failing.payloads[0])
	}
}

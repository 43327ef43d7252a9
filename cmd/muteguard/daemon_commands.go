package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"muteguard/internal/daemonctl"
	"muteguard/internal/daemonrun"
	"muteguard/internal/notifications"
	"muteguard/internal/services"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run and control the maintenance daemon",
	}

	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonNotifyTestCommand(ctx))

	return daemonCmd
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var (
		runNow      bool
		development bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var level string
			if ctx.logLevelFlag != nil {
				level = strings.TrimSpace(*ctx.logLevelFlag)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    level,
				Development: development,
				RunNow:      runNow,
			})
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Run a maintenance pass immediately after startup")
	cmd.Flags().BoolVar(&development, "development", false, "Include source locations in log output")
	return cmd
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon is running and its last maintenance pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snap, err := daemonctl.BuildSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, snap)
			}

			out := cmd.OutOrStdout()
			if !snap.Running {
				fmt.Fprintln(out, "Daemon: not running")
				return nil
			}
			pid := "unknown"
			if snap.PID > 0 {
				pid = fmt.Sprintf("%d", snap.PID)
			}
			fmt.Fprintf(out, "Daemon: running (pid %s)\n", pid)
			if !snap.Reachable {
				fmt.Fprintf(out, "Status endpoint: unreachable at %s\n", cfg.Daemon.MetricsBind)
				return nil
			}
			fmt.Fprintf(out, "Cleanup schedule: %s\n", snap.CleanupSchedule)
			if !snap.NextCleanup.IsZero() {
				fmt.Fprintf(out, "Next cleanup: %s\n", snap.NextCleanup.Local().Format(time.RFC1123))
			}
			last := snap.LastMaintenance
			if last.StartedAt.IsZero() {
				fmt.Fprintln(out, "Last maintenance: never")
				return nil
			}
			fmt.Fprintf(out, "Last maintenance: %s (records %d, cache entries %d, logs %d)\n",
				humanAge(last.StartedAt), last.Records, last.CacheEntries, last.Logs)
			for _, msg := range last.Errors {
				fmt.Fprintf(out, "  error: %s\n", msg)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output status as JSON")
	return cmd
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			result, err := daemonctl.Stop(cfg, grace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon did not exit within %s; killed pid %d\n", grace, result.PID)
				return nil
			}
			fmt.Fprintln(out, "Daemon stopped")
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 5*time.Second, "How long to wait for a clean shutdown before killing")
	return cmd
}

func newDaemonNotifyTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test notification to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Daemon.NtfyTopic) == "" {
				return services.Wrap(services.ErrConfiguration, "cli", "notify test", "daemon.ntfy_topic is not set", nil)
			}
			svc := notifications.NewService(cfg)
			if err := svc.Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
				return services.Wrap(services.ErrNetwork, "cli", "notify test", "notification was not delivered", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent to %s\n", cfg.Daemon.NtfyTopic)
			return nil
		},
	}
}

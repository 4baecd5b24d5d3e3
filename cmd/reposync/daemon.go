package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/reposync/internal/config"
	"github.com/steveyegge/reposync/internal/dashboard"
	"github.com/steveyegge/reposync/internal/scheduler"
	"github.com/steveyegge/reposync/internal/syncer"
)

func newDaemonCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run sync cycles on an interval until stopped",
		Long: `Run one sync cycle immediately and then one per interval. Cycles never
overlap. SIGINT or SIGTERM stops the daemon after the cycle in flight;
SIGHUP starts a cycle right away.

When a config file is in use it is watched: changes to the workspace,
remote, branch, git settings and interval apply from the next cycle on.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadValid()
			if err != nil {
				return err
			}
			if port, _ := cmd.Flags().GetInt("dashboard-port"); cmd.Flags().Changed("dashboard-port") {
				cfg.Dashboard.Port = port
			}
			return runDaemon(cmd, a, cfg)
		},
	}
	cmd.Flags().Int("dashboard-port", 0, "serve the live dashboard on this port (0 disables)")
	return cmd
}

func runDaemon(cmd *cobra.Command, a *app, cfg *config.Config) error {
	log, closer, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Fail fast on a missing or outdated backend
	if _, err := openHandle(ctx, cfg); err != nil {
		return err
	}

	observers, closeHistory, err := historyObservers(cfg, log)
	if err != nil {
		return err
	}
	defer closeHistory()

	if cfg.Dashboard.Port > 0 {
		server := dashboard.NewServer(dashboard.Config{Port: cfg.Dashboard.Port, Logger: log})
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
		defer server.Stop()
		observers = append(observers, dashboard.NewHandler(server))
	}

	orch := syncer.New(orchestratorOptions(cfg, log, observers...))

	var current atomic.Pointer[config.Config]
	current.Store(cfg)

	sched, err := scheduler.New(func(ctx context.Context) {
		runScheduledCycle(ctx, orch, current.Load(), log)
	}, cfg.Interval, log)
	if err != nil {
		return err
	}

	if a.v.ConfigFileUsed() != "" {
		config.Watch(a.v, func(next *config.Config, err error) {
			if err != nil {
				log.Warn("ignoring invalid config change", "file", a.v.ConfigFileUsed(), "error", err)
				return
			}
			current.Store(next)
			orch.Reconfigure(next.LockFile, next.Commit.MessagePrefix)
			sched.SetInterval(next.Interval)
			log.Info("config reloaded", "file", a.v.ConfigFileUsed())
		})
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				log.Info("SIGHUP received, starting a cycle")
				sched.Trigger()
			}
		}
	}()

	log.Info("daemon started",
		"workspace", cfg.Workspace,
		"remote", cfg.Remote,
		"branch", cfg.Branch,
		"interval", cfg.Interval)
	return sched.Run(ctx)
}

// runScheduledCycle runs one cycle with the current configuration. Setup
// failures are logged; the scheduler keeps going either way.
func runScheduledCycle(ctx context.Context, orch *syncer.Orchestrator, cfg *config.Config, log *slog.Logger) {
	h, err := openHandle(ctx, cfg)
	if err != nil {
		log.Error("cannot start cycle", "error", err)
		return
	}
	orch.RunCycle(ctx, h)
}

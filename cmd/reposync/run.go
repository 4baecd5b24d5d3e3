package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/steveyegge/reposync/internal/config"
	"github.com/steveyegge/reposync/internal/history"
	"github.com/steveyegge/reposync/internal/syncer"
	"github.com/steveyegge/reposync/internal/ui"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one sync cycle and exit",
		Long: `Run exactly one sync cycle. Intended for cron or a systemd timer.

The exit status is 1 when the cycle ends FAILED. Stash-pop conflicts are
warnings and do not fail the cycle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadValid()
			if err != nil {
				return err
			}
			return runOnce(cmd, cfg)
		},
	}
	return cmd
}

func runOnce(cmd *cobra.Command, cfg *config.Config) error {
	log, closer, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()
	h, err := openHandle(ctx, cfg)
	if err != nil {
		return err
	}

	observers, closeHistory, err := historyObservers(cfg, log)
	if err != nil {
		return err
	}
	defer closeHistory()

	orch := syncer.New(orchestratorOptions(cfg, log, observers...))
	res := orch.RunCycle(ctx, h)

	fmt.Fprint(cmd.OutOrStdout(), ui.Result(h, res))
	if !res.OK() {
		return errCycleFailed
	}
	return nil
}

// historyObservers opens the history store when one is configured and
// returns the observer recording into it.
func historyObservers(cfg *config.Config, log *slog.Logger) ([]syncer.Observer, func(), error) {
	if cfg.History.Path == "" {
		return nil, func() {}, nil
	}

	store, err := history.Open(cfg.History.Path, cfg.History.Keep)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close history", "error", err)
		}
	}
	return []syncer.Observer{&history.Recorder{Store: store, Log: log}}, closeFn, nil
}

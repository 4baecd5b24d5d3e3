package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/reposync/internal/ui"
	"github.com/steveyegge/reposync/internal/vcs"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show what the next cycle will find in the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadValid()
			if err != nil {
				return err
			}

			state, err := vcs.Classify(cfg.Workspace)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, ui.RepoState(cfg.Workspace, state))
			if state != vcs.PresentRepo {
				fmt.Fprintln(out, ui.RenderMuted("the next cycle will bootstrap the workspace"))
				return nil
			}

			h, err := openHandle(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if tip, err := h.Adapter.CurrentCommit(ctx); err == nil {
				fmt.Fprintf(out, "  %s %s\n", ui.RenderMuted("head"), ui.ShortID(tip))
			} else {
				fmt.Fprintf(out, "  %s %s\n", ui.RenderMuted("head"), ui.RenderWarn("no commits"))
			}

			dirty, err := h.Adapter.HasUncommittedChanges(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  %s %t\n", ui.RenderMuted("uncommitted changes"), dirty)

			stashes, err := h.Adapter.StashList(ctx)
			if err != nil {
				return err
			}
			for _, s := range stashes {
				if vcs.IsReposyncStash(s) {
					fmt.Fprintf(out, "  %s %s %s\n", ui.RenderWarn("pending stash"), ui.ShortID(string(s.ID)), s.Message)
				}
			}
			return nil
		},
	}
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/steveyegge/reposync/internal/history"
	"github.com/steveyegge/reposync/internal/ui"
)

func newStatusCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent sync cycles",
		Long: `Show recent sync cycles from the history database (history.path).

--since accepts a duration ("90m") or natural language such as
"2 hours ago", "yesterday" or "last monday".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			sinceText, _ := cmd.Flags().GetString("since")
			asJSON, _ := cmd.Flags().GetBool("json")

			cfg, err := a.load()
			if err != nil {
				return err
			}
			if cfg.History.Path == "" {
				return errors.New("history is disabled; set history.path or pass --history")
			}

			var since time.Time
			if sinceText != "" {
				if since, err = parseSince(sinceText, time.Now()); err != nil {
					return err
				}
			}

			store, err := history.Open(cfg.History.Path, cfg.History.Keep)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit, since)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			fmt.Fprint(out, ui.History(entries))
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "maximum number of cycles to show (0 for all)")
	cmd.Flags().String("since", "", "only show cycles started after this time")
	cmd.Flags().Bool("json", false, "output as JSON")
	return cmd
}

// parseSince turns a duration or a natural-language time into an instant
// in the past relative to now.
func parseSince(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if d, err := time.ParseDuration(text); err == nil {
		return now.Add(-d.Abs()), nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse --since %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("cannot parse --since %q", text)
	}
	return r.Time, nil
}

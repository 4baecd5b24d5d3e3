package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/steveyegge/reposync/internal/config"
	"github.com/steveyegge/reposync/internal/ui"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or show the configuration",
	}
	cmd.AddCommand(newConfigInitCmd(a), newConfigShowCmd(a))
	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a new config file",
		Long: `Write a TOML config file. Values given as flags or environment variables
are used as is; when stdin is a terminal the rest is asked for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("path")
			force, _ := cmd.Flags().GetBool("force")
			noInput, _ := cmd.Flags().GetBool("no-input")
			if path == "" {
				path = config.DefaultPath()
			}

			cfg, err := config.Decode(a.v)
			if err != nil {
				return err
			}

			if !noInput && term.IsTerminal(int(os.Stdin.Fd())) {
				if err := promptConfig(cfg); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}

			if err := cfg.WriteTOML(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", ui.RenderPass("✓"), path)
			return nil
		},
	}
	cmd.Flags().String("path", "", "where to write the file (default: user config dir)")
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	cmd.Flags().Bool("no-input", false, "never prompt")
	return cmd
}

// promptConfig asks for the essential settings, pre-filled with cfg.
func promptConfig(cfg *config.Config) error {
	interval := cfg.Interval.String()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Workspace directory").
				Value(&cfg.Workspace).
				Validate(required("workspace")),
			huh.NewInput().
				Title("Remote URL").
				Placeholder("git@github.com:me/notes.git").
				Value(&cfg.Remote).
				Validate(required("remote")),
			huh.NewInput().
				Title("Branch").
				Value(&cfg.Branch).
				Validate(required("branch")),
			huh.NewInput().
				Title("Sync interval").
				Value(&interval).
				Validate(func(s string) error {
					d, err := time.ParseDuration(s)
					if err != nil {
						return err
					}
					if d <= 0 {
						return errors.New("interval must be positive")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	d, err := time.ParseDuration(interval)
	if err != nil {
		return err
	}
	cfg.Interval = d
	return nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if used := a.v.ConfigFileUsed(); used != "" {
				fmt.Fprintf(w, "# from %s\n", used)
			}
			_, err = w.Write(out)
			return err
		},
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/steveyegge/reposync/internal/config"
	"github.com/steveyegge/reposync/internal/logging"
	"github.com/steveyegge/reposync/internal/syncer"
	"github.com/steveyegge/reposync/internal/ui"
	"github.com/steveyegge/reposync/internal/vcs"

	// Registers the "git" backend
	_ "github.com/steveyegge/reposync/internal/vcs/git"
)

// errCycleFailed is returned by commands whose cycle ended FAILED. The
// cycle summary has already been printed.
var errCycleFailed = errors.New("sync cycle failed")

// app carries the configuration shared by all commands.
type app struct {
	v       *viper.Viper
	cfgFile string
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"workspace":  "workspace",
	"remote":     "remote",
	"branch":     "branch",
	"interval":   "interval",
	"lock-file":  "lock_file",
	"log-file":   "log.file",
	"log-format": "log.format",
	"history":    "history.path",
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	cmd := &cobra.Command{
		Use:   "reposync",
		Short: "Keep a workspace and a remote git branch in sync",
		Long: `reposync periodically synchronizes a local workspace with one branch of a
remote git repository: local edits are committed and pushed, remote
changes are pulled, and uncommitted work is never lost.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			ui.Init(cmd.OutOrStdout())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: reposync.{toml,yaml} in . or the user config dir)")
	flags.String("workspace", "", "workspace directory")
	flags.String("remote", "", "remote repository URL")
	flags.String("branch", "main", "branch to keep in sync")
	flags.Duration("interval", 0, "time between daemon cycles")
	flags.String("lock-file", "", "lock file (default: <workspace>.lock)")
	flags.String("log-file", "", "log to a rotated file instead of stderr")
	flags.String("log-format", logging.FormatText, "log format: text or json")
	flags.String("history", "", "cycle history database")
	a.bindFlags(flags)

	cmd.AddCommand(
		newRunCmd(a),
		newDaemonCmd(a),
		newStatusCmd(a),
		newInspectCmd(a),
		newConfigCmd(a),
	)

	return cmd
}

// bindFlags lets flags override config file and environment values. Only
// flags set on the command line take effect; defaults stay with viper.
func (a *app) bindFlags(flags *pflag.FlagSet) {
	for name, key := range flagKeys {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// load reads the configuration without validating it.
func (a *app) load() (*config.Config, error) {
	return config.Load(a.v, a.cfgFile)
}

// loadValid reads and validates the configuration.
func (a *app) loadValid() (*config.Config, error) {
	cfg, err := a.load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// newLogger builds the logger for cfg. stderr is used when no log file is
// configured.
func newLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	return logging.New(logging.Options{
		File:       cfg.Log.File,
		Format:     cfg.Log.Format,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Stderr:     stderr,
	})
}

// versionChecker is implemented by backends that can verify their tool
// version.
type versionChecker interface {
	CheckVersion(ctx context.Context) error
}

// openHandle opens the configured backend on the workspace and binds it to
// the remote and branch.
func openHandle(ctx context.Context, cfg *config.Config) (syncer.Handle, error) {
	adapter, err := vcs.Open(cfg.Backend, cfg.Workspace, vcs.Options{
		Binary:      cfg.Git.Binary,
		Timeout:     cfg.Git.Timeout,
		AuthorName:  cfg.Commit.AuthorName,
		AuthorEmail: cfg.Commit.AuthorEmail,
	})
	if err != nil {
		return syncer.Handle{}, err
	}
	if vc, ok := adapter.(versionChecker); ok {
		if err := vc.CheckVersion(ctx); err != nil {
			return syncer.Handle{}, err
		}
	}

	return syncer.Handle{
		Path:      cfg.Workspace,
		RemoteURL: cfg.Remote,
		Branch:    cfg.Branch,
		Adapter:   adapter,
	}, nil
}

// orchestratorOptions returns the Orchestrator settings derived from cfg.
func orchestratorOptions(cfg *config.Config, log *slog.Logger, observers ...syncer.Observer) syncer.Options {
	return syncer.Options{
		Logger:        log,
		LockPath:      cfg.LockFile,
		MessagePrefix: cfg.Commit.MessagePrefix,
		Observers:     observers,
	}
}

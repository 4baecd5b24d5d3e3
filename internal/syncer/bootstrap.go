package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/steveyegge/reposync/internal/vcs"
)

// SeedFile is committed when the bootstrapper has to create the branch, so
// the first push has something to carry.
const SeedFile = ".reposync"

// Bootstrapper turns a missing or empty workspace into a repository with the
// target branch checked out and the remote attached.
type Bootstrapper struct {
	Log           *slog.Logger
	Now           func() time.Time
	MessagePrefix string
}

// Ensure creates the workspace directory if needed, initializes the
// repository, attaches the remote and then either adopts the remote branch
// or creates, seeds and pushes it. Any failure wraps ErrBootstrap.
func (b *Bootstrapper) Ensure(ctx context.Context, h Handle) error {
	log := orDiscard(b.Log)
	a := h.Adapter

	if err := os.MkdirAll(h.Path, 0o750); err != nil {
		return stepError(ErrBootstrap, fmt.Errorf("creating workspace: %w", err))
	}

	state, err := vcs.Classify(h.Path)
	if err != nil {
		return stepError(ErrBootstrap, err)
	}
	if state != vcs.PresentRepo {
		log.Info("initializing repository", "path", h.Path)
		if err := a.Init(ctx); err != nil {
			return stepError(ErrBootstrap, err)
		}
	}

	if err := a.AddRemote(ctx, h.RemoteURL); err != nil {
		return stepError(ErrBootstrap, err)
	}
	if err := a.Fetch(ctx); err != nil {
		return stepError(ErrBootstrap, err)
	}

	branches, err := a.ListRemoteBranches(ctx)
	if err != nil {
		return stepError(ErrBootstrap, err)
	}

	if slices.Contains(branches, h.Branch) {
		log.Info("adopting remote branch", "branch", h.Branch, "remote", h.RemoteURL)
		if err := a.CheckoutNewBranch(ctx, h.Branch, h.baseRef()); err != nil {
			return stepError(ErrBootstrap, err)
		}
		return nil
	}

	log.Info("remote branch does not exist, creating it", "branch", h.Branch, "remote", h.RemoteURL)
	if err := a.CheckoutNewBranch(ctx, h.Branch, ""); err != nil {
		return stepError(ErrBootstrap, err)
	}

	now := nowFunc(b.Now)()
	seed := fmt.Sprintf("initialized %s\n", now.UTC().Format(time.RFC3339))
	if err := os.WriteFile(filepath.Join(h.Path, SeedFile), []byte(seed), 0o644); err != nil {
		return stepError(ErrBootstrap, fmt.Errorf("writing seed file: %w", err))
	}

	if err := a.AddAll(ctx); err != nil {
		return stepError(ErrBootstrap, err)
	}
	if err := a.Commit(ctx, InitMessage(b.MessagePrefix, h.Branch)); err != nil {
		return stepError(ErrBootstrap, err)
	}
	if err := a.Push(ctx, h.Branch); err != nil {
		return stepError(ErrBootstrap, err)
	}

	log.Info("created and published branch", "branch", h.Branch)
	return nil
}

// InitMessage is the commit message of the seed commit.
func InitMessage(prefix, branch string) string {
	return messagePrefix(prefix) + ": initialize " + branch
}

package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/steveyegge/reposync/internal/vcs"
)

// AddAll stages every change in the working tree, removals and untracked
// files included. Conflicted paths are staged as they are, which marks them
// resolved with whatever content (markers included) the file holds.
func (g *Git) AddAll(ctx context.Context) error {
	if _, err := g.run(ctx, "add", "--all"); err != nil {
		return err
	}
	return nil
}

// Commit records the staged changes with message.
// Returns an error wrapping vcs.ErrNothingToCommit when nothing is staged.
func (g *Git) Commit(ctx context.Context, message string) error {
	if message == "" {
		return fmt.Errorf("commit message is required")
	}

	res, err := g.run(ctx, "commit", "--quiet", "-m", message)
	if err != nil {
		out := res.Combined()
		if strings.Contains(out, "nothing to commit") || strings.Contains(out, "no changes added to commit") {
			return fmt.Errorf("%w: %v", vcs.ErrNothingToCommit, err)
		}
		return err
	}

	return nil
}

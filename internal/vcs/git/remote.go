package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/reposync/internal/vcs"
)

// Fetch fetches from the default remote, pruning deleted branches.
// Returns vcs.ErrNoRemote when the remote is not configured.
func (g *Git) Fetch(ctx context.Context) error {
	if _, err := g.RemoteURL(ctx); err != nil {
		return err
	}

	if _, err := g.run(ctx, "fetch", "--prune", g.remote); err != nil {
		return err
	}

	return nil
}

// Pull merges the remote branch into the current branch.
//
// The merge never rebases: it fast-forwards when local history is a prefix
// of the remote's and creates a merge commit otherwise. A conflicting merge
// is aborted so the working tree returns to its pre-pull state, and the
// conflicted paths are reported in an error wrapping vcs.ErrConflicts.
func (g *Git) Pull(ctx context.Context, branch string) error {
	if branch == "" {
		return vcs.ErrRefNotFound
	}

	res, err := g.run(ctx, "pull", "--no-rebase", "--no-edit", g.remote, branch)
	if err != nil {
		if errors.Is(err, vcs.ErrTimeout) {
			return err
		}

		outputStr := res.Combined()

		// Check for common error types
		if strings.Contains(outputStr, "CONFLICT") || strings.Contains(outputStr, "Automatic merge failed") {
			return g.abortConflictedMerge(ctx)
		}
		if strings.Contains(outputStr, "unrelated histories") ||
			strings.Contains(outputStr, "Not possible to fast-forward") {
			return fmt.Errorf("%w: %v", vcs.ErrMergeRequired, err)
		}

		return err
	}

	return nil
}

// abortConflictedMerge records the conflicted paths, aborts the merge and
// returns the ErrConflicts error describing them.
func (g *Git) abortConflictedMerge(ctx context.Context) error {
	files, err := g.ConflictedFiles(ctx)
	if err != nil {
		return fmt.Errorf("%w: (could not list conflicted files: %v)", vcs.ErrConflicts, err)
	}

	if _, abortErr := g.run(ctx, "merge", "--abort"); abortErr != nil {
		return fmt.Errorf("%w: in %s (merge left in progress: %v)",
			vcs.ErrConflicts, strings.Join(files, ", "), abortErr)
	}

	return fmt.Errorf("%w: in %s", vcs.ErrConflicts, strings.Join(files, ", "))
}

// Push publishes branch to the default remote and records it as upstream.
func (g *Git) Push(ctx context.Context, branch string) error {
	if branch == "" {
		return vcs.ErrRefNotFound
	}

	refspec := "refs/heads/" + branch + ":refs/heads/" + branch
	res, err := g.run(ctx, "push", "--set-upstream", g.remote, refspec)
	if err != nil {
		if errors.Is(err, vcs.ErrTimeout) {
			return err
		}

		// Check for push rejection
		outputStr := res.Combined()
		if strings.Contains(outputStr, "rejected") || strings.Contains(outputStr, "non-fast-forward") {
			return fmt.Errorf("%w: %s", vcs.ErrPushRejected, firstLineContaining(outputStr, "rejected"))
		}

		return err
	}

	return nil
}

// firstLineContaining returns the first line of output containing needle,
// or the first line when none does.
func firstLineContaining(output, needle string) string {
	lines := vcs.ParseLines([]byte(output))
	for _, line := range lines {
		if strings.Contains(line, needle) {
			return line
		}
	}
	if len(lines) > 0 {
		return lines[0]
	}
	return ""
}

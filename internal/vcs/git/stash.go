package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/reposync/internal/vcs"
)

// StashPush stashes all uncommitted changes, untracked files included, and
// returns the stash commit id.
func (g *Git) StashPush(ctx context.Context, message string) (vcs.StashID, error) {
	res, err := g.run(ctx, "stash", "push", "--include-untracked", "-m", message)
	if err != nil {
		return "", err
	}
	if strings.Contains(res.Combined(), "No local changes to save") {
		return "", fmt.Errorf("%w: no local changes to stash", vcs.ErrStashNotFound)
	}

	id, err := g.output(ctx, "rev-parse", "--verify", "refs/stash")
	if err != nil {
		return "", fmt.Errorf("failed to resolve new stash: %w", err)
	}

	return vcs.StashID(id), nil
}

// StashList returns the recorded stashes, newest first.
func (g *Git) StashList(ctx context.Context) ([]vcs.StashEntry, error) {
	res, err := g.run(ctx, "stash", "list", "--format=%H%x00%s")
	if err != nil {
		return nil, err
	}

	var entries []vcs.StashEntry
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "\x00", 2)
		entry := vcs.StashEntry{ID: vcs.StashID(strings.TrimSpace(parts[0]))}
		if len(parts) == 2 {
			entry.Message = strings.TrimSpace(parts[1])
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// StashPop reapplies the stash identified by id and drops it.
//
// When the stash applies with conflicts git keeps the entry; it is dropped
// here so the edits live only in the working tree (with conflict markers)
// and the conflict is reported as vcs.PopConflict. When git refuses to apply
// the stash at all (for example in the middle of an unfinished merge) the
// entry is kept and an error is returned.
func (g *Git) StashPop(ctx context.Context, id vcs.StashID) (vcs.PopResult, error) {
	ref, err := g.stashRef(ctx, id)
	if err != nil {
		return vcs.PopClean, err
	}

	res, err := g.run(ctx, "stash", "pop", ref)
	if err == nil {
		return vcs.PopClean, nil
	}
	if errors.Is(err, vcs.ErrTimeout) {
		return vcs.PopClean, err
	}

	if !strings.Contains(res.Combined(), "CONFLICT") {
		return vcs.PopClean, err
	}

	// Resolve again: the index may have shifted if anything touched the list
	ref, refErr := g.stashRef(ctx, id)
	if errors.Is(refErr, vcs.ErrStashNotFound) {
		return vcs.PopConflict, nil
	}
	if refErr != nil {
		return vcs.PopConflict, refErr
	}
	if _, err := g.run(ctx, "stash", "drop", ref); err != nil {
		return vcs.PopConflict, fmt.Errorf("stash applied with conflicts but could not be dropped: %w", err)
	}

	return vcs.PopConflict, nil
}

// stashRef maps a stash id to its current stash@{n} reference.
func (g *Git) stashRef(ctx context.Context, id vcs.StashID) (string, error) {
	entries, err := g.StashList(ctx)
	if err != nil {
		return "", err
	}

	for i, e := range entries {
		if e.ID == id {
			return fmt.Sprintf("stash@{%d}", i), nil
		}
	}

	return "", fmt.Errorf("%w: %s", vcs.ErrStashNotFound, id)
}

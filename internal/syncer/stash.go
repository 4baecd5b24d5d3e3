package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/steveyegge/reposync/internal/vcs"
)

// StashCoordinator sets local edits aside before reconciliation and puts
// them back afterwards. At most one reposync stash exists per workspace.
type StashCoordinator struct {
	Log *slog.Logger
	Now func() time.Time
}

// Protect stashes all uncommitted changes, untracked files included, and
// returns the record, or nil when the tree is clean.
//
// It refuses with an error wrapping vcs.ErrStashPending when an earlier
// reposync stash is still recorded: that stash holds edits a previous cycle
// could not restore, and stacking another on top would bury them.
func (s *StashCoordinator) Protect(ctx context.Context, h Handle, st *State) (*StashRecord, error) {
	log := orDiscard(s.Log)
	a := h.Adapter

	entries, err := a.StashList(ctx)
	if err != nil {
		return nil, stepError(ErrStash, err)
	}
	for _, e := range entries {
		if vcs.IsReposyncStash(e) {
			return nil, stepError(ErrStash, fmt.Errorf("%w: %s (%s)", vcs.ErrStashPending, e.ID, e.Message))
		}
	}

	dirty, err := a.HasUncommittedChanges(ctx)
	if err != nil {
		return nil, stepError(ErrStash, err)
	}
	st.HasLocalChanges = dirty
	if !dirty {
		log.Info("no local changes to protect")
		return nil, nil
	}

	now := nowFunc(s.Now)()
	msg := vcs.StashMessage(now)
	id, err := a.StashPush(ctx, msg)
	if err != nil {
		return nil, stepError(ErrStash, err)
	}
	st.StashCreated = true

	log.Info("stashed local changes", "stash", short(id.String()))
	return &StashRecord{ID: id, Message: msg, CreatedAt: now}, nil
}

// Restore reapplies rec. It never fails the cycle: a conflicting or refused
// restore is logged as a warning and reported through the outcome.
func (s *StashCoordinator) Restore(ctx context.Context, h Handle, rec *StashRecord) RestoreOutcome {
	log := orDiscard(s.Log)

	if rec == nil {
		log.Debug("no stash to restore")
		return RestoreNone
	}

	res, err := h.Adapter.StashPop(ctx, rec.ID)
	if err != nil {
		log.Warn("could not restore local changes, stash kept for manual recovery",
			"stash", rec.ID.String(), "error", err)
		return RestoreFailed
	}
	if res == vcs.PopConflict {
		log.Warn("restored local changes with conflicts, markers left in working tree",
			"stash", short(rec.ID.String()))
		return RestoreConflict
	}

	log.Info("restored local changes", "stash", short(rec.ID.String()))
	return RestoreClean
}

package syncer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/steveyegge/reposync/internal/vcs"
)

// Reconciler brings remote history into the local branch.
type Reconciler struct {
	Log *slog.Logger
}

// Reconcile fetches, compares the local tip with the remote-tracking tip and
// pulls when they differ. Fetch failures wrap ErrFetch, merge failures wrap
// ErrPull. A remote without the branch is not an error: the outcome is
// RemoteMissing and publishing re-creates the branch.
func (r *Reconciler) Reconcile(ctx context.Context, h Handle, st *State) (ReconcileOutcome, error) {
	log := orDiscard(r.Log)
	a := h.Adapter

	if err := a.Fetch(ctx); err != nil {
		return ReconcileSkipped, stepError(ErrFetch, err)
	}

	local, err := a.CurrentCommit(ctx)
	if err != nil {
		return ReconcileSkipped, stepError(ErrInspect, err)
	}
	st.LocalTip = local

	remote, err := a.RemoteCommit(ctx, h.Branch)
	if errors.Is(err, vcs.ErrRefNotFound) {
		log.Warn("remote branch is missing, it will be re-published", "branch", h.Branch)
		st.RemoteTip = ""
		return RemoteMissing, nil
	}
	if err != nil {
		return ReconcileSkipped, stepError(ErrFetch, err)
	}
	st.RemoteTip = remote

	if local == remote {
		log.Info("already up to date", "tip", short(local))
		return UpToDate, nil
	}

	log.Info("pulling remote changes", "local", short(local), "remote", short(remote))
	if err := a.Pull(ctx, h.Branch); err != nil {
		return ReconcileSkipped, stepError(ErrPull, err)
	}

	tip, err := a.CurrentCommit(ctx)
	if err != nil {
		return ReconcileSkipped, stepError(ErrInspect, err)
	}
	st.LocalTip = tip

	if tip == local {
		// Remote history was already contained in the local branch
		log.Info("local branch is ahead of remote", "local", short(local), "remote", short(remote))
		return UpToDate, nil
	}

	st.Pulled = true
	log.Info("pulled remote changes", "tip", short(tip))
	return Pulled, nil
}

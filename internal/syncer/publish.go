package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/steveyegge/reposync/internal/vcs"
)

// DefaultMessagePrefix starts every commit message reposync writes.
const DefaultMessagePrefix = "reposync"

// Publisher commits residual local changes and pushes them.
type Publisher struct {
	Log           *slog.Logger
	Now           func() time.Time
	MessagePrefix string
}

// Publish commits any uncommitted changes and pushes the branch. With a
// clean tree it does nothing unless needPush is set, in which case the
// existing local history is pushed. Commit failures wrap ErrCommit, push
// failures wrap ErrPush. A commit is never undone when the push fails.
func (p *Publisher) Publish(ctx context.Context, h Handle, st *State, needPush bool) (PublishOutcome, error) {
	log := orDiscard(p.Log)
	a := h.Adapter

	dirty, err := a.HasUncommittedChanges(ctx)
	if err != nil {
		return PublishSkipped, stepError(ErrCommit, err)
	}
	if !dirty && !needPush {
		log.Info("nothing to publish")
		return NoChanges, nil
	}

	if dirty {
		if err := a.AddAll(ctx); err != nil {
			return PublishSkipped, stepError(ErrCommit, err)
		}

		msg := CommitMessage(p.MessagePrefix, nowFunc(p.Now)())
		err := a.Commit(ctx, msg)
		switch {
		case errors.Is(err, vcs.ErrNothingToCommit):
			// Only ignored paths changed
			if !needPush {
				log.Info("nothing to publish")
				return NoChanges, nil
			}
		case err != nil:
			return PublishSkipped, stepError(ErrCommit, err)
		default:
			log.Info("committed local changes", "message", msg)
		}
	}

	if err := a.Push(ctx, h.Branch); err != nil {
		return PublishSkipped, stepError(ErrPush, err)
	}

	if tip, err := a.CurrentCommit(ctx); err == nil {
		st.LocalTip = tip
		st.RemoteTip = tip
	}
	st.Published = true

	log.Info("published", "branch", h.Branch, "tip", short(st.LocalTip))
	return Published, nil
}

// CommitMessage builds the message for a sync commit made at t.
func CommitMessage(prefix string, t time.Time) string {
	return messagePrefix(prefix) + ": sync " + t.UTC().Format(time.RFC3339)
}

func messagePrefix(prefix string) string {
	if prefix == "" {
		return DefaultMessagePrefix
	}
	return prefix
}

package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/steveyegge/reposync/internal/lockfile"
	"github.com/steveyegge/reposync/internal/vcs"
)

// Observer is notified at the start and end of every cycle. Observers run
// synchronously on the cycle's goroutine and must not block for long.
type Observer interface {
	CycleStarted(cycle uint64, h Handle, at time.Time)
	CycleFinished(h Handle, res Result)
}

// Options configures an Orchestrator.
type Options struct {
	// Logger receives one record per step; nil discards
	Logger *slog.Logger

	// Now is the clock used for timestamps (default time.Now)
	Now func() time.Time

	// LockPath overrides the workspace lock file (default
	// lockfile.DefaultPath(handle.Path))
	LockPath string

	// MessagePrefix starts generated commit messages (default
	// DefaultMessagePrefix)
	MessagePrefix string

	// Observers are notified of cycle start and finish
	Observers []Observer
}

// Orchestrator runs synchronization cycles. It keeps no state between
// cycles apart from a sequence counter used in log records.
type Orchestrator struct {
	log       *slog.Logger
	now       func() time.Time
	observers []Observer

	settings atomic.Pointer[settings]
	cycles   atomic.Uint64
}

// settings are the options a running daemon may change between cycles.
type settings struct {
	lockPath string
	prefix   string
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		log:       orDiscard(opts.Logger),
		now:       nowFunc(opts.Now),
		observers: opts.Observers,
	}
	o.Reconfigure(opts.LockPath, opts.MessagePrefix)
	return o
}

// Reconfigure replaces the lock path and commit message prefix. A cycle
// already running keeps the values it started with.
func (o *Orchestrator) Reconfigure(lockPath, prefix string) {
	o.settings.Store(&settings{lockPath: lockPath, prefix: prefix})
}

// cycle carries one run of the state machine.
type cycle struct {
	o   *Orchestrator
	h   Handle
	log *slog.Logger
	res Result
	st  State
}

// RunCycle runs one cycle to a terminal phase and returns its result.
//
// ctx is detached from cancellation: once started, a cycle always reaches
// DONE or FAILED so it never stops between stash and unstash. Each git
// command is still bounded by the adapter's own timeout.
func (o *Orchestrator) RunCycle(ctx context.Context, h Handle) Result {
	ctx = context.WithoutCancel(ctx)

	n := o.cycles.Add(1)
	c := &cycle{
		o:   o,
		h:   h,
		log: o.log.With("cycle", n),
		res: Result{Cycle: n, StartedAt: o.now()},
	}
	for _, obs := range o.observers {
		obs.CycleStarted(n, h, c.res.StartedAt)
	}

	log := c.enter(PhaseStart)
	if err := h.Validate(); err != nil {
		return c.fail(err)
	}

	set := o.settings.Load()
	lockPath := set.lockPath
	if lockPath == "" {
		lockPath = lockfile.DefaultPath(h.Path)
	}
	lock, err := lockfile.Acquire(lockPath)
	if err != nil {
		return c.fail(stepError(ErrLocked, err))
	}
	defer func() {
		if err := lock.Release(); err != nil {
			c.log.Warn("failed to release workspace lock", "path", lockPath, "error", err)
		}
	}()

	needBootstrap, err := c.inspect(ctx, log)
	if err != nil {
		return c.fail(err)
	}

	if needBootstrap {
		boot := &Bootstrapper{Log: c.enter(PhaseBootstrap), Now: o.now, MessagePrefix: set.prefix}
		if err := boot.Ensure(ctx, h); err != nil {
			return c.fail(err)
		}
		c.st.RepoExists, c.st.IsRepo = true, true
	}

	stasher := &StashCoordinator{Log: c.enter(PhaseStash), Now: o.now}
	rec, err := stasher.Protect(ctx, h, &c.st)
	if err != nil {
		return c.fail(err)
	}

	reconciler := &Reconciler{Log: c.enter(PhaseReconcile)}
	outcome, reconcileErr := reconciler.Reconcile(ctx, h, &c.st)
	c.res.Reconcile = outcome

	// Local edits go back before anything else happens, including failure
	stasher.Log = c.enter(PhaseUnstash)
	c.res.Restore = stasher.Restore(ctx, h, rec)
	if reconcileErr != nil {
		return c.fail(reconcileErr)
	}

	needPush := outcome == RemoteMissing || c.st.LocalTip != c.st.RemoteTip
	pub := &Publisher{Log: c.enter(PhasePublish), Now: o.now, MessagePrefix: set.prefix}
	published, err := pub.Publish(ctx, h, &c.st, needPush)
	c.res.Publish = published
	if err != nil {
		return c.fail(err)
	}

	return c.finish(PhaseDone)
}

// inspect classifies the workspace and reports whether BOOTSTRAP must run.
// A repository whose branch has no commit yet is an interrupted bootstrap
// and is bootstrapped again.
func (c *cycle) inspect(ctx context.Context, log *slog.Logger) (bool, error) {
	state, err := vcs.Classify(c.h.Path)
	if err != nil {
		return false, stepError(ErrInspect, err)
	}
	c.st.RepoExists = state != vcs.Absent
	c.st.IsRepo = state == vcs.PresentRepo
	log.Debug("inspected workspace", "path", c.h.Path, "state", state.String())

	if !c.st.IsRepo {
		return true, nil
	}

	if _, err := c.h.Adapter.CurrentCommit(ctx); err != nil {
		if errors.Is(err, vcs.ErrRefNotFound) {
			log.Info("repository has no commits, resuming bootstrap")
			return true, nil
		}
		return false, stepError(ErrInspect, err)
	}

	// Pushing refs/heads/<branch> publishes nothing from any other branch
	branch, err := c.h.Adapter.CurrentBranch(ctx)
	if err != nil {
		return false, stepError(ErrInspect, err)
	}
	if branch != c.h.Branch {
		if branch == "" {
			branch = "(detached HEAD)"
		}
		return false, stepError(ErrInspect, fmt.Errorf("workspace has %s checked out, want %s", branch, c.h.Branch))
	}
	return false, nil
}

// enter records p in the trace and returns a logger tagged with it.
func (c *cycle) enter(p Phase) *slog.Logger {
	c.res.Trace = append(c.res.Trace, p)
	log := c.log.With("phase", p.String())
	log.Debug("entering phase")
	return log
}

func (c *cycle) fail(err error) Result {
	c.res.Err = err
	return c.finish(PhaseFailed)
}

// finish records the terminal phase, logs the summary and notifies
// observers.
func (c *cycle) finish(p Phase) Result {
	c.res.Trace = append(c.res.Trace, p)
	c.res.Phase = p
	c.res.FinishedAt = c.o.now()
	c.res.State = c.st

	attrs := []any{
		"phase", p.String(),
		"reconcile", c.res.Reconcile.String(),
		"restore", c.res.Restore.String(),
		"publish", c.res.Publish.String(),
		"local_tip", short(c.st.LocalTip),
		"remote_tip", short(c.st.RemoteTip),
		"duration", c.res.Duration().Round(time.Millisecond),
	}
	if c.res.Err != nil {
		attrs = append(attrs,
			"retryable", vcs.IsRetryable(c.res.Err),
			"user_action", vcs.IsUserActionRequired(c.res.Err),
			"error", c.res.Err)
		c.log.Error("cycle failed", attrs...)
	} else {
		c.log.Info("cycle finished", attrs...)
	}

	for _, obs := range c.o.observers {
		obs.CycleFinished(c.h, c.res)
	}
	return c.res
}

// orDiscard returns log, or a logger that drops everything when log is nil.
func orDiscard(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return log
}

func nowFunc(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

// short abbreviates a commit id for log output.
func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

package syncer

import (
	"fmt"
	"time"

	"github.com/steveyegge/reposync/internal/vcs"
)

// Handle binds a workspace to its remote and the adapter that operates on
// it. Only the Bootstrapper may turn Path into a repository.
type Handle struct {
	// Path is the workspace directory
	Path string

	// RemoteURL is the URL attached as the default remote on bootstrap
	RemoteURL string

	// Branch is the single branch kept in sync
	Branch string

	// Adapter performs all VCS operations on Path
	Adapter vcs.Adapter
}

// Validate checks that every field is set.
func (h Handle) Validate() error {
	switch {
	case h.Path == "":
		return fmt.Errorf("%w: workspace path is required", ErrInvalidHandle)
	case h.RemoteURL == "":
		return fmt.Errorf("%w: remote url is required", ErrInvalidHandle)
	case h.Branch == "":
		return fmt.Errorf("%w: branch is required", ErrInvalidHandle)
	case h.Adapter == nil:
		return fmt.Errorf("%w: adapter is required", ErrInvalidHandle)
	}
	return nil
}

// baseRef returns the remote-tracking name of the handle's branch.
func (h Handle) baseRef() string {
	return vcs.DefaultRemote + "/" + h.Branch
}

// State is what one cycle has learned and done so far. It is created when
// the cycle starts and discarded when it ends.
type State struct {
	RepoExists      bool   `json:"repo_exists"`
	IsRepo          bool   `json:"is_repo"`
	HasLocalChanges bool   `json:"has_local_changes"`
	StashCreated    bool   `json:"stash_created"`
	LocalTip        string `json:"local_tip,omitempty"`
	RemoteTip       string `json:"remote_tip,omitempty"`
	Pulled          bool   `json:"pulled"`
	Published       bool   `json:"published"`
}

// StashRecord describes the stash a cycle created. It lives from STASH to
// UNSTASH of that cycle.
type StashRecord struct {
	ID        vcs.StashID
	Message   string
	CreatedAt time.Time
}

// Phase is a state of the cycle state machine.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseBootstrap
	PhaseStash
	PhaseReconcile
	PhaseUnstash
	PhasePublish
	PhaseDone
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseStart:     "START",
	PhaseBootstrap: "BOOTSTRAP",
	PhaseStash:     "STASH",
	PhaseReconcile: "RECONCILE",
	PhaseUnstash:   "UNSTASH",
	PhasePublish:   "PUBLISH",
	PhaseDone:      "DONE",
	PhaseFailed:    "FAILED",
}

// String returns the phase name in upper case, e.g. "RECONCILE".
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "UNKNOWN"
	}
	return phaseNames[p]
}

// Terminal reports whether p ends a cycle.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// ReconcileOutcome is the result of the RECONCILE phase.
type ReconcileOutcome int

const (
	// ReconcileSkipped means the phase was not reached
	ReconcileSkipped ReconcileOutcome = iota

	// UpToDate means local and remote tips were already equal
	UpToDate

	// Pulled means remote history was merged into the local branch
	Pulled

	// RemoteMissing means the remote has no such branch; publishing
	// re-creates it
	RemoteMissing
)

// String returns a readable name for the outcome.
func (o ReconcileOutcome) String() string {
	switch o {
	case ReconcileSkipped:
		return "skipped"
	case UpToDate:
		return "up-to-date"
	case Pulled:
		return "pulled"
	case RemoteMissing:
		return "remote-missing"
	default:
		return "unknown"
	}
}

// PublishOutcome is the result of the PUBLISH phase.
type PublishOutcome int

const (
	// PublishSkipped means the phase was not reached
	PublishSkipped PublishOutcome = iota

	// NoChanges means there was nothing to commit or push
	NoChanges

	// Published means local history was pushed
	Published
)

// String returns a readable name for the outcome.
func (o PublishOutcome) String() string {
	switch o {
	case PublishSkipped:
		return "skipped"
	case NoChanges:
		return "no-changes"
	case Published:
		return "published"
	default:
		return "unknown"
	}
}

// RestoreOutcome is the result of reapplying a cycle's stash.
type RestoreOutcome int

const (
	// RestoreNone means the cycle had no stash to restore
	RestoreNone RestoreOutcome = iota

	// RestoreClean means the stash applied without conflicts
	RestoreClean

	// RestoreConflict means the stash applied with conflict markers left in
	// the working tree
	RestoreConflict

	// RestoreFailed means the stash could not be applied and is still
	// recorded in the repository
	RestoreFailed
)

// String returns a readable name for the outcome.
func (o RestoreOutcome) String() string {
	switch o {
	case RestoreNone:
		return "none"
	case RestoreClean:
		return "clean"
	case RestoreConflict:
		return "conflict"
	case RestoreFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result summarizes a finished cycle.
type Result struct {
	// Cycle is the sequence number of the cycle within its Orchestrator
	Cycle uint64

	// Phase is the terminal phase, PhaseDone or PhaseFailed
	Phase Phase

	// Trace lists every phase entered, in order, ending with Phase
	Trace []Phase

	Reconcile ReconcileOutcome
	Publish   PublishOutcome
	Restore   RestoreOutcome

	// Err is the error that failed the cycle, nil when Phase is PhaseDone
	Err error

	StartedAt  time.Time
	FinishedAt time.Time

	// State is the cycle's final state
	State State
}

// OK reports whether the cycle ended DONE.
func (r Result) OK() bool {
	return r.Phase == PhaseDone
}

// StashConflict reports whether restoring local edits left conflict markers.
func (r Result) StashConflict() bool {
	return r.Restore == RestoreConflict
}

// Duration returns how long the cycle ran.
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

package vcs

import "errors"

// Common errors returned by Adapter operations.
//
// Backends wrap these sentinels so callers can branch on the cause with
// errors.Is() instead of inspecting exit codes or command output:
//
//	if errors.Is(err, vcs.ErrConflicts) {
//	    // merge left conflicts in the working tree
//	}
var (
	// ErrNotInVCS is returned when the operation requires a repository
	// but the workspace is not one.
	ErrNotInVCS = errors.New("not in a VCS repository")

	// ErrVCSNotAvailable is returned when the VCS binary is missing from
	// PATH or older than the minimum supported version.
	ErrVCSNotAvailable = errors.New("VCS binary not available")

	// ErrRefNotFound is returned when a reference (local or remote branch)
	// does not exist.
	ErrRefNotFound = errors.New("reference not found")

	// ErrNoRemote is returned when an operation requires the default
	// remote but none is configured.
	ErrNoRemote = errors.New("no remote configured")

	// ErrConflicts is returned when an operation cannot complete
	// due to unresolved conflicts.
	ErrConflicts = errors.New("unresolved conflicts")

	// ErrNothingToCommit is returned by Commit when nothing is staged.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrPushRejected is returned when a push is rejected by the remote,
	// typically due to non-fast-forward updates.
	ErrPushRejected = errors.New("push rejected by remote")

	// ErrMergeRequired is returned when a pull would need a merge that the
	// backend refused to perform.
	ErrMergeRequired = errors.New("merge required")

	// ErrStashNotFound is returned when a stash identifier no longer names
	// a recorded stash.
	ErrStashNotFound = errors.New("stash not found")

	// ErrStashPending is returned when a stash created by an earlier cycle
	// is still recorded and a new one must not be created on top of it.
	ErrStashPending = errors.New("stash from an earlier cycle still pending")

	// ErrTimeout is returned when a VCS operation exceeds its timeout.
	ErrTimeout = errors.New("operation timed out")
)

// IsRetryable returns true if the error is likely to succeed on a later
// cycle without anyone touching the workspace.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Timeouts are often transient
	if errors.Is(err, ErrTimeout) {
		return true
	}

	// Push rejections clear once the next cycle pulls
	if errors.Is(err, ErrPushRejected) {
		return true
	}

	return false
}

// IsUserActionRequired returns true if the error requires user intervention
// to resolve (conflicts, a stash that could not be restored, etc).
func IsUserActionRequired(err error) bool {
	if err == nil {
		return false
	}

	// Conflicts need manual resolution
	if errors.Is(err, ErrConflicts) {
		return true
	}

	// Divergent histories need merge decision
	if errors.Is(err, ErrMergeRequired) {
		return true
	}

	// A leftover stash holds edits nobody has reapplied yet
	if errors.Is(err, ErrStashPending) {
		return true
	}

	return false
}

// IsFatal returns true if the error indicates a non-recoverable environment
// problem rather than repository state.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	// Binary not available means we can't execute commands
	if errors.Is(err, ErrVCSNotAvailable) {
		return true
	}

	return false
}

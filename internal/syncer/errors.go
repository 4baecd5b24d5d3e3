package syncer

import (
	"errors"
	"fmt"
)

// Step errors. A failed cycle's error wraps exactly one of these together
// with the underlying cause, so both can be tested with errors.Is:
//
//	errors.Is(res.Err, syncer.ErrPull)     // which step failed
//	errors.Is(res.Err, vcs.ErrConflicts)  // why
var (
	// ErrInvalidHandle means the handle is missing a required field
	ErrInvalidHandle = errors.New("invalid repository handle")

	// ErrLocked means another cycle holds the workspace lock
	ErrLocked = errors.New("workspace is locked")

	// ErrInspect means the workspace state could not be determined
	ErrInspect = errors.New("inspect failed")

	// ErrBootstrap means the repository could not be created or adopted
	ErrBootstrap = errors.New("bootstrap failed")

	// ErrStash means local changes could not be set aside
	ErrStash = errors.New("stash failed")

	// ErrFetch means remote refs could not be fetched
	ErrFetch = errors.New("fetch failed")

	// ErrPull means remote history could not be merged
	ErrPull = errors.New("pull failed")

	// ErrCommit means local changes could not be committed
	ErrCommit = errors.New("commit failed")

	// ErrPush means local commits could not be published
	ErrPush = errors.New("push failed")
)

// stepError joins a step sentinel with its cause.
func stepError(step error, cause error) error {
	return fmt.Errorf("%w: %w", step, cause)
}

// IsFatal reports whether err aborted a cycle, i.e. wraps one of the step
// errors above.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	for _, step := range []error{
		ErrInvalidHandle, ErrLocked, ErrInspect, ErrBootstrap,
		ErrStash, ErrFetch, ErrPull, ErrCommit, ErrPush,
	} {
		if errors.Is(err, step) {
			return true
		}
	}
	return false
}

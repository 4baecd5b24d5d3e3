// Package vcs defines the version control operations reposync needs.
//
// The sync engine never shells out to a VCS binary itself. Every operation it
// performs on a workspace goes through the Adapter interface, and every
// failure comes back as an error that wraps one of the sentinels in
// errors.go. This keeps all output parsing inside the backend and lets the
// engine be exercised against a substitute adapter in tests.
//
// # Implementations
//
//   - internal/vcs/git: git CLI backend
//   - internal/vcs/vcstest: scripted in-memory adapter for tests
package vcs

import (
	"context"
	"strings"
	"time"
)

// DefaultRemote is the remote name attached by the bootstrapper.
const DefaultRemote = "origin"

// StashMessagePrefix marks stashes created by reposync so that they can be
// told apart from stashes a human made in the same workspace.
const StashMessagePrefix = "reposync:"

// Adapter is the operation set the sync engine consumes.
//
// An Adapter is bound to one workspace directory. The directory does not have
// to exist when the adapter is created; Init creates the repository inside it.
// All methods block until the underlying command finishes or ctx expires.
type Adapter interface {
	// Dir returns the workspace directory the adapter operates on.
	Dir() string

	// ===================
	// Repository setup
	// ===================

	// Init creates an empty repository in Dir.
	Init(ctx context.Context) error

	// AddRemote attaches url as the default remote.
	AddRemote(ctx context.Context, url string) error

	// CheckoutNewBranch creates branch name and checks it out. When baseRef is
	// non-empty the new branch starts at baseRef and tracks it; otherwise it
	// starts at HEAD (which may be unborn).
	CheckoutNewBranch(ctx context.Context, name, baseRef string) error

	// ===================
	// Remote operations
	// ===================

	// Fetch updates remote-tracking refs from the default remote.
	Fetch(ctx context.Context) error

	// ListRemoteBranches returns the branch names known on the default remote
	// as of the last Fetch.
	ListRemoteBranches(ctx context.Context) ([]string, error)

	// Pull merges the remote branch into the current branch, fast-forwarding
	// when possible. A conflicting merge is abandoned, leaving the branch and
	// working tree as they were, and returns an error wrapping ErrConflicts
	// that names the conflicted paths.
	Pull(ctx context.Context, branch string) error

	// Push publishes the local branch to the default remote and sets it as
	// upstream.
	Push(ctx context.Context, branch string) error

	// ===================
	// Commit identity
	// ===================

	// CurrentCommit returns the commit id checked out at HEAD.
	CurrentCommit(ctx context.Context) (string, error)

	// CurrentBranch returns the name of the checked out branch, or an empty
	// string when HEAD is detached.
	CurrentBranch(ctx context.Context) (string, error)

	// RemoteCommit returns the commit id of the remote-tracking ref for
	// branch. Returns ErrRefNotFound when the remote has no such branch.
	RemoteCommit(ctx context.Context, branch string) (string, error)

	// ===================
	// Working tree
	// ===================

	// HasUncommittedChanges reports whether the working tree has any
	// modified, added, removed or untracked path.
	HasUncommittedChanges(ctx context.Context) (bool, error)

	// AddAll stages every change in the working tree, including removals
	// and untracked files.
	AddAll(ctx context.Context) error

	// Commit records the staged changes with message.
	Commit(ctx context.Context, message string) error

	// ===================
	// Stash
	// ===================

	// StashPush sets aside all uncommitted changes (untracked included) and
	// returns the identifier of the created stash.
	StashPush(ctx context.Context, message string) (StashID, error)

	// StashPop reapplies the stash identified by id and removes it.
	// A conflicting application returns PopConflict with a nil error: the
	// conflict markers stay in the working tree and the stash entry is
	// dropped. If the stash cannot be applied at all an error is returned and
	// the entry is kept.
	StashPop(ctx context.Context, id StashID) (PopResult, error)

	// StashList returns the stashes currently recorded, newest first.
	StashList(ctx context.Context) ([]StashEntry, error)
}

// StashID identifies a stash entry. For git this is the stash commit id,
// which stays stable while other entries are pushed or dropped.
type StashID string

// String returns the identifier as a string.
func (id StashID) String() string {
	return string(id)
}

// StashEntry describes one recorded stash.
type StashEntry struct {
	// ID is the stash identifier
	ID StashID

	// Message is the stash subject line
	Message string
}

// PopResult is the outcome of reapplying a stash.
type PopResult int

const (
	// PopClean means the stash applied without conflicts.
	PopClean PopResult = iota

	// PopConflict means the stash applied with conflicts left in the tree.
	PopConflict
)

// String returns a readable name for the result.
func (r PopResult) String() string {
	switch r {
	case PopClean:
		return "clean"
	case PopConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// IsReposyncStash reports whether a stash entry was created by reposync.
// Git decorates stash subjects as "On <branch>: <message>", so the prefix is
// matched either at the start or right after that decoration.
func IsReposyncStash(e StashEntry) bool {
	if strings.HasPrefix(e.Message, StashMessagePrefix) {
		return true
	}
	if i := strings.Index(e.Message, ": "); i >= 0 {
		return strings.HasPrefix(e.Message[i+2:], StashMessagePrefix)
	}
	return false
}

// StashMessage builds the message used for a stash created at t.
func StashMessage(t time.Time) string {
	return StashMessagePrefix + " stash " + t.UTC().Format(time.RFC3339)
}

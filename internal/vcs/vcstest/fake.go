// Package vcstest provides test doubles and helpers for code built on
// vcs.Adapter.
//
// Fake is an in-memory adapter with a scriptable failure per method. The
// git helpers build throwaway repositories with the real git binary for
// tests that need actual merge and stash behaviour.
package vcstest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/steveyegge/reposync/internal/vcs"
)

// Fake is an in-memory vcs.Adapter.
//
// Commit ids are synthetic ("c1", "c2", ...). The remote is modelled as a
// map of branch tips that Fetch copies into the remote-tracking map, so a
// test can move the remote with AdvanceRemote and observe what a cycle does
// about it. Init writes a minimal .git/HEAD so vcs.Classify sees a repository.
type Fake struct {
	mu sync.Mutex

	dir string

	// Initialized is set by Init
	Initialized bool

	// URL is the attached remote URL, empty when no remote is configured
	URL string

	// Branch is the checked out branch
	Branch string

	// Head is the local tip, empty while the branch is unborn
	Head string

	// Ahead is true when Head holds commits the remote has not seen
	Ahead bool

	// Base is the remote tip the local branch last merged or pushed
	Base string

	// Remote holds the branch tips on the remote side
	Remote map[string]string

	// Tracking holds the remote-tracking tips as of the last Fetch
	Tracking map[string]string

	// Dirty reports uncommitted changes in the working tree
	Dirty bool

	// Staged is set by AddAll when there was something to stage
	Staged bool

	// Stashes lists stash entries, newest first
	Stashes []vcs.StashEntry

	// Messages lists commit messages in commit order
	Messages []string

	// PopOutcome is returned by a successful StashPop
	PopOutcome vcs.PopResult

	// Calls records every method invocation in order
	Calls []string

	failures map[string]error
	seq      int
}

var _ vcs.Adapter = (*Fake)(nil)

// NewFake creates a Fake bound to dir with an empty remote.
func NewFake(dir string) *Fake {
	return &Fake{
		dir:      dir,
		Remote:   make(map[string]string),
		Tracking: make(map[string]string),
		failures: make(map[string]error),
	}
}

// Fail makes every later call to method return err. A nil err clears it.
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, method)
		return
	}
	f.failures[method] = err
}

// AdvanceRemote simulates another writer pushing a commit to branch and
// returns the new remote tip.
func (f *Fake) AdvanceRemote(branch string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next()
	f.Remote[branch] = id
	return id
}

// Called reports whether method was invoked at least once.
func (f *Fake) Called(method string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Calls {
		if c == method {
			return true
		}
	}
	return false
}

// CallOrder returns the recorded calls joined by spaces, handy for asserting
// the sequence a cycle went through.
func (f *Fake) CallOrder() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.Calls, " ")
}

// enter records a call and returns the scripted failure, if any.
// Callers must hold f.mu.
func (f *Fake) enter(method string) error {
	f.Calls = append(f.Calls, method)
	return f.failures[method]
}

func (f *Fake) next() string {
	f.seq++
	return fmt.Sprintf("c%d", f.seq)
}

// Dir returns the workspace directory.
func (f *Fake) Dir() string {
	return f.dir
}

// Init marks the workspace as a repository.
func (f *Fake) Init(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Init"); err != nil {
		return err
	}

	gitDir := filepath.Join(f.dir, ".git")
	if err := os.MkdirAll(gitDir, 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		return err
	}
	f.Initialized = true
	return nil
}

// AddRemote records url as the remote.
func (f *Fake) AddRemote(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AddRemote"); err != nil {
		return err
	}
	f.URL = url
	return nil
}

// CheckoutNewBranch switches to name, starting at baseRef when given.
func (f *Fake) CheckoutNewBranch(ctx context.Context, name, baseRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CheckoutNewBranch"); err != nil {
		return err
	}

	if baseRef != "" {
		tip, ok := f.Tracking[strings.TrimPrefix(baseRef, vcs.DefaultRemote+"/")]
		if !ok {
			return fmt.Errorf("%w: %s", vcs.ErrRefNotFound, baseRef)
		}
		f.Head = tip
		f.Base = tip
		f.Ahead = false
	}
	f.Branch = name
	return nil
}

// Fetch copies the remote tips into the remote-tracking map.
func (f *Fake) Fetch(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Fetch"); err != nil {
		return err
	}
	if f.URL == "" {
		return fmt.Errorf("%w: %s", vcs.ErrNoRemote, vcs.DefaultRemote)
	}

	f.Tracking = make(map[string]string, len(f.Remote))
	for b, tip := range f.Remote {
		f.Tracking[b] = tip
	}
	return nil
}

// ListRemoteBranches returns the fetched branch names, sorted.
func (f *Fake) ListRemoteBranches(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListRemoteBranches"); err != nil {
		return nil, err
	}

	branches := make([]string, 0, len(f.Tracking))
	for b := range f.Tracking {
		branches = append(branches, b)
	}
	sort.Strings(branches)
	return branches, nil
}

// Pull fast-forwards to the tracking tip, or creates a merge commit when the
// local branch is ahead. It does nothing when the tracking tip is already
// merged.
func (f *Fake) Pull(ctx context.Context, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Pull"); err != nil {
		return err
	}

	tip, ok := f.Tracking[branch]
	if !ok {
		return fmt.Errorf("%w: %s/%s", vcs.ErrRefNotFound, vcs.DefaultRemote, branch)
	}
	if tip == f.Base {
		return nil
	}
	if f.Ahead {
		f.Head = f.next()
	} else {
		f.Head = tip
	}
	f.Base = tip
	return nil
}

// Push publishes Head as the remote tip of branch.
func (f *Fake) Push(ctx context.Context, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Push"); err != nil {
		return err
	}
	if f.Head == "" {
		return fmt.Errorf("%w: %s", vcs.ErrRefNotFound, branch)
	}

	f.Remote[branch] = f.Head
	f.Tracking[branch] = f.Head
	f.Base = f.Head
	f.Ahead = false
	return nil
}

// CurrentCommit returns Head.
func (f *Fake) CurrentCommit(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CurrentCommit"); err != nil {
		return "", err
	}
	if f.Head == "" {
		return "", fmt.Errorf("%w: HEAD", vcs.ErrRefNotFound)
	}
	return f.Head, nil
}

// CurrentBranch returns Branch.
func (f *Fake) CurrentBranch(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CurrentBranch"); err != nil {
		return "", err
	}
	return f.Branch, nil
}

// RemoteCommit returns the remote-tracking tip of branch.
func (f *Fake) RemoteCommit(ctx context.Context, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("RemoteCommit"); err != nil {
		return "", err
	}
	tip, ok := f.Tracking[branch]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", vcs.ErrRefNotFound, vcs.DefaultRemote, branch)
	}
	return tip, nil
}

// HasUncommittedChanges returns Dirty.
func (f *Fake) HasUncommittedChanges(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("HasUncommittedChanges"); err != nil {
		return false, err
	}
	return f.Dirty, nil
}

// AddAll stages the working tree.
func (f *Fake) AddAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AddAll"); err != nil {
		return err
	}
	f.Staged = f.Dirty
	return nil
}

// Commit turns staged changes into a new local commit. On an unborn branch
// it always succeeds, standing in for whatever files the caller wrote to
// disk before the first commit.
func (f *Fake) Commit(ctx context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Commit"); err != nil {
		return err
	}
	if !f.Staged && f.Head != "" {
		return vcs.ErrNothingToCommit
	}

	f.Head = f.next()
	f.Ahead = true
	f.Dirty = false
	f.Staged = false
	f.Messages = append(f.Messages, message)
	return nil
}

// StashPush moves the working tree changes into a new stash entry.
func (f *Fake) StashPush(ctx context.Context, message string) (vcs.StashID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("StashPush"); err != nil {
		return "", err
	}
	if !f.Dirty {
		return "", fmt.Errorf("%w: no local changes to stash", vcs.ErrStashNotFound)
	}

	id := vcs.StashID("s" + f.next())
	f.Stashes = append([]vcs.StashEntry{{ID: id, Message: message}}, f.Stashes...)
	f.Dirty = false
	return id, nil
}

// StashPop removes the entry and makes the tree dirty again. The result is
// PopOutcome.
func (f *Fake) StashPop(ctx context.Context, id vcs.StashID) (vcs.PopResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("StashPop"); err != nil {
		return vcs.PopClean, err
	}

	for i, e := range f.Stashes {
		if e.ID == id {
			f.Stashes = append(f.Stashes[:i:i], f.Stashes[i+1:]...)
			f.Dirty = true
			return f.PopOutcome, nil
		}
	}
	return vcs.PopClean, fmt.Errorf("%w: %s", vcs.ErrStashNotFound, id)
}

// StashList returns a copy of Stashes.
func (f *Fake) StashList(ctx context.Context) ([]vcs.StashEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("StashList"); err != nil {
		return nil, err
	}
	return append([]vcs.StashEntry(nil), f.Stashes...), nil
}

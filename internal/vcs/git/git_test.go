package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/steveyegge/reposync/internal/vcs"
	"github.com/steveyegge/reposync/internal/vcs/vcstest"
)

// setupTestRepo creates an adapter over a fresh repository with branch main
// checked out and one initial commit.
func setupTestRepo(t *testing.T) (*Git, string) {
	t.Helper()
	vcstest.RequireGit(t)

	dir := t.TempDir()
	g, err := New(dir, vcstest.GitOptions())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := context.Background()
	if err := g.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if err := g.CheckoutNewBranch(ctx, "main", ""); err != nil {
		t.Fatalf("CheckoutNewBranch() failed: %v", err)
	}
	vcstest.CommitFile(t, dir, "test.txt", "base\n", "initial")

	return g, dir
}

// setupWithRemote creates a repository whose main branch is pushed to a
// fresh bare remote.
func setupWithRemote(t *testing.T) (*Git, string, string) {
	t.Helper()

	g, dir := setupTestRepo(t)
	remote := vcstest.NewBareRemote(t)

	ctx := context.Background()
	if err := g.AddRemote(ctx, remote); err != nil {
		t.Fatalf("AddRemote() failed: %v", err)
	}
	if err := g.Push(ctx, "main"); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}

	return g, dir, remote
}

func TestNewMissingBinary(t *testing.T) {
	_, err := New(t.TempDir(), vcs.Options{Binary: "definitely-not-a-git-binary"})
	if !errors.Is(err, vcs.ErrVCSNotAvailable) {
		t.Errorf("New() error = %v, want ErrVCSNotAvailable", err)
	}

	if _, err := New("", vcs.Options{}); err == nil {
		t.Error("New(\"\") succeeded, want error")
	}
}

func TestVersion(t *testing.T) {
	vcstest.RequireGit(t)

	g, err := New(t.TempDir(), vcs.Options{})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	version, err := g.Version(context.Background())
	if err != nil {
		t.Fatalf("Version() failed: %v", err)
	}
	if version == "" || strings.HasPrefix(version, "git version") {
		t.Errorf("Version() = %q, want bare version number", version)
	}

	if err := g.CheckVersion(context.Background()); err != nil {
		t.Errorf("CheckVersion() failed: %v", err)
	}
}

func TestSemverOf(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2.39.2", "v2.39.2"},
		{"2.39.2 (Apple Git-143)", "v2.39.2"},
		{"2.45.1.windows.1", "v2.45.1"},
		{"2.13", "v2.13.0"},
		{"unknown", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := semverOf(tt.raw); got != tt.want {
				t.Errorf("semverOf(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestInitAndClassify(t *testing.T) {
	vcstest.RequireGit(t)

	dir := t.TempDir()
	g, err := New(dir, vcstest.GitOptions())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if state, _ := vcs.Classify(dir); state != vcs.PresentNotRepo {
		t.Fatalf("Classify() before Init = %v, want present-not-repo", state)
	}
	if err := g.Init(context.Background()); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if state, _ := vcs.Classify(dir); state != vcs.PresentRepo {
		t.Errorf("Classify() after Init = %v, want present-repo", state)
	}
}

func TestUnbornBranch(t *testing.T) {
	vcstest.RequireGit(t)
	ctx := context.Background()

	dir := t.TempDir()
	g, err := New(dir, vcstest.GitOptions())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := g.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	if _, err := g.CurrentCommit(ctx); !errors.Is(err, vcs.ErrRefNotFound) {
		t.Errorf("CurrentCommit() on unborn branch error = %v, want ErrRefNotFound", err)
	}

	if err := g.CheckoutNewBranch(ctx, "trunk", ""); err != nil {
		t.Fatalf("CheckoutNewBranch() failed: %v", err)
	}
	ref, err := g.CurrentBranch(ctx)
	if err != nil {
		t.Fatalf("CurrentBranch() failed: %v", err)
	}
	if ref != "trunk" {
		t.Errorf("CurrentBranch() = %q, want trunk", ref)
	}
}

func TestCurrentBranchDetached(t *testing.T) {
	g, dir := setupTestRepo(t)
	ctx := context.Background()

	vcstest.Git(t, dir, "checkout", "-q", "--detach", "HEAD")
	branch, err := g.CurrentBranch(ctx)
	if err != nil {
		t.Fatalf("CurrentBranch() failed: %v", err)
	}
	if branch != "" {
		t.Errorf("CurrentBranch() on detached HEAD = %q, want empty", branch)
	}
}

func TestAddRemoteTwice(t *testing.T) {
	g, _ := setupTestRepo(t)
	ctx := context.Background()

	if _, err := g.RemoteURL(ctx); !errors.Is(err, vcs.ErrNoRemote) {
		t.Errorf("RemoteURL() without remote error = %v, want ErrNoRemote", err)
	}
	if err := g.Fetch(ctx); !errors.Is(err, vcs.ErrNoRemote) {
		t.Errorf("Fetch() without remote error = %v, want ErrNoRemote", err)
	}

	first := vcstest.NewBareRemote(t)
	second := vcstest.NewBareRemote(t)
	if err := g.AddRemote(ctx, first); err != nil {
		t.Fatalf("AddRemote() failed: %v", err)
	}
	if err := g.AddRemote(ctx, second); err != nil {
		t.Fatalf("second AddRemote() failed: %v", err)
	}

	url, err := g.RemoteURL(ctx)
	if err != nil {
		t.Fatalf("RemoteURL() failed: %v", err)
	}
	if url != second {
		t.Errorf("RemoteURL() = %q, want %q", url, second)
	}
}

func TestHasUncommittedChanges(t *testing.T) {
	g, dir := setupTestRepo(t)
	ctx := context.Background()

	dirty, err := g.HasUncommittedChanges(ctx)
	if err != nil {
		t.Fatalf("HasUncommittedChanges() failed: %v", err)
	}
	if dirty {
		t.Error("HasUncommittedChanges() = true for clean tree")
	}

	// Untracked files count
	vcstest.WriteFile(t, dir, "nested/new.txt", "new\n")
	if dirty, _ = g.HasUncommittedChanges(ctx); !dirty {
		t.Error("HasUncommittedChanges() = false with untracked file")
	}
	if err := os.Remove(filepath.Join(dir, "nested", "new.txt")); err != nil {
		t.Fatal(err)
	}

	// Removals count
	if err := os.Remove(filepath.Join(dir, "test.txt")); err != nil {
		t.Fatal(err)
	}
	if dirty, _ = g.HasUncommittedChanges(ctx); !dirty {
		t.Error("HasUncommittedChanges() = false with removed file")
	}
}

func TestCommit(t *testing.T) {
	g, dir := setupTestRepo(t)
	ctx := context.Background()

	before, err := g.CurrentCommit(ctx)
	if err != nil {
		t.Fatalf("CurrentCommit() failed: %v", err)
	}

	if err := g.AddAll(ctx); err != nil {
		t.Fatalf("AddAll() failed: %v", err)
	}
	if err := g.Commit(ctx, "empty"); !errors.Is(err, vcs.ErrNothingToCommit) {
		t.Errorf("Commit() on clean tree error = %v, want ErrNothingToCommit", err)
	}

	vcstest.WriteFile(t, dir, "added.txt", "added\n")
	if err := os.Remove(filepath.Join(dir, "test.txt")); err != nil {
		t.Fatal(err)
	}
	if err := g.AddAll(ctx); err != nil {
		t.Fatalf("AddAll() failed: %v", err)
	}
	if err := g.Commit(ctx, "sync"); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	after, _ := g.CurrentCommit(ctx)
	if after == before {
		t.Error("CurrentCommit() unchanged after Commit()")
	}
	if dirty, _ := g.HasUncommittedChanges(ctx); dirty {
		t.Error("tree dirty after committing everything")
	}
	if author := vcstest.Git(t, dir, "log", "-1", "--format=%an <%ae>"); author != "Test User <test@example.com>" {
		t.Errorf("commit author = %q", author)
	}
}

func TestPushFetchPull(t *testing.T) {
	g, dir, remote := setupWithRemote(t)
	ctx := context.Background()

	local, _ := g.CurrentCommit(ctx)
	if tip := vcstest.RemoteTip(t, remote, "main"); tip != local {
		t.Fatalf("remote tip = %q, want %q", tip, local)
	}
	if upstream := vcstest.Git(t, dir, "rev-parse", "--abbrev-ref", "main@{upstream}"); upstream != "origin/main" {
		t.Errorf("upstream = %q, want origin/main", upstream)
	}

	other := vcstest.Clone(t, remote, "main")
	pushed := vcstest.CommitAndPush(t, other, "main", "other.txt", "other\n", "from elsewhere")

	if err := g.Fetch(ctx); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	remoteTip, err := g.RemoteCommit(ctx, "main")
	if err != nil {
		t.Fatalf("RemoteCommit() failed: %v", err)
	}
	if remoteTip != pushed {
		t.Errorf("RemoteCommit() = %q, want %q", remoteTip, pushed)
	}

	branches, err := g.ListRemoteBranches(ctx)
	if err != nil {
		t.Fatalf("ListRemoteBranches() failed: %v", err)
	}
	if len(branches) != 1 || branches[0] != "main" {
		t.Errorf("ListRemoteBranches() = %v, want [main]", branches)
	}

	if err := g.Pull(ctx, "main"); err != nil {
		t.Fatalf("Pull() failed: %v", err)
	}
	if head, _ := g.CurrentCommit(ctx); head != pushed {
		t.Errorf("CurrentCommit() after fast-forward = %q, want %q", head, pushed)
	}
	if got := vcstest.ReadFile(t, dir, "other.txt"); got != "other\n" {
		t.Errorf("other.txt = %q", got)
	}

	if _, err := g.RemoteCommit(ctx, "missing"); !errors.Is(err, vcs.ErrRefNotFound) {
		t.Errorf("RemoteCommit(missing) error = %v, want ErrRefNotFound", err)
	}
}

func TestPullConflict(t *testing.T) {
	g, dir, remote := setupWithRemote(t)
	ctx := context.Background()

	other := vcstest.Clone(t, remote, "main")
	vcstest.CommitAndPush(t, other, "main", "test.txt", "theirs\n", "theirs")
	vcstest.CommitFile(t, dir, "test.txt", "ours\n", "ours")

	before, _ := g.CurrentCommit(ctx)
	if err := g.Fetch(ctx); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	err := g.Pull(ctx, "main")
	if !errors.Is(err, vcs.ErrConflicts) {
		t.Fatalf("Pull() error = %v, want ErrConflicts", err)
	}
	if !strings.Contains(err.Error(), "test.txt") {
		t.Errorf("Pull() error %q does not name the conflicted file", err)
	}

	// The merge is abandoned: branch and tree are untouched
	if head, _ := g.CurrentCommit(ctx); head != before {
		t.Errorf("CurrentCommit() after conflict = %q, want %q", head, before)
	}
	if dirty, _ := g.HasUncommittedChanges(ctx); dirty {
		t.Error("tree dirty after aborted merge")
	}
	if conflicts, _ := g.ConflictedFiles(ctx); len(conflicts) != 0 {
		t.Errorf("ConflictedFiles() = %v, want none", conflicts)
	}
	if got := vcstest.ReadFile(t, dir, "test.txt"); got != "ours\n" {
		t.Errorf("test.txt = %q, want ours", got)
	}
}

func TestPushRejected(t *testing.T) {
	g, dir, remote := setupWithRemote(t)
	ctx := context.Background()

	other := vcstest.Clone(t, remote, "main")
	vcstest.CommitAndPush(t, other, "main", "other.txt", "other\n", "theirs")
	vcstest.CommitFile(t, dir, "mine.txt", "mine\n", "ours")

	err := g.Push(ctx, "main")
	if !errors.Is(err, vcs.ErrPushRejected) {
		t.Errorf("Push() error = %v, want ErrPushRejected", err)
	}
	if !vcs.IsRetryable(err) {
		t.Error("push rejection should be retryable")
	}
}

func TestCheckoutTrackingBranch(t *testing.T) {
	vcstest.RequireGit(t)
	ctx := context.Background()

	remote := vcstest.NewBareRemote(t)
	seed := vcstest.Clone(t, remote, "main")
	pushed := vcstest.CommitAndPush(t, seed, "main", "readme.txt", "hello\n", "seed")

	dir := t.TempDir()
	g, err := New(dir, vcstest.GitOptions())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := g.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if err := g.AddRemote(ctx, remote); err != nil {
		t.Fatalf("AddRemote() failed: %v", err)
	}
	if err := g.Fetch(ctx); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if err := g.CheckoutNewBranch(ctx, "main", "origin/main"); err != nil {
		t.Fatalf("CheckoutNewBranch() failed: %v", err)
	}

	if head, _ := g.CurrentCommit(ctx); head != pushed {
		t.Errorf("CurrentCommit() = %q, want %q", head, pushed)
	}
	if got := vcstest.ReadFile(t, dir, "readme.txt"); got != "hello\n" {
		t.Errorf("readme.txt = %q", got)
	}
}

func TestStashRoundTrip(t *testing.T) {
	g, dir := setupTestRepo(t)
	ctx := context.Background()

	vcstest.WriteFile(t, dir, "test.txt", "edited\n")
	vcstest.WriteFile(t, dir, "untracked.txt", "untracked\n")

	msg := vcs.StashMessage(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	id, err := g.StashPush(ctx, msg)
	if err != nil {
		t.Fatalf("StashPush() failed: %v", err)
	}
	if id == "" {
		t.Fatal("StashPush() returned empty id")
	}
	if dirty, _ := g.HasUncommittedChanges(ctx); dirty {
		t.Error("tree dirty after StashPush()")
	}

	entries, err := g.StashList(ctx)
	if err != nil {
		t.Fatalf("StashList() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id {
		t.Fatalf("StashList() = %+v, want one entry %s", entries, id)
	}
	if !vcs.IsReposyncStash(entries[0]) {
		t.Errorf("IsReposyncStash(%q) = false", entries[0].Message)
	}

	res, err := g.StashPop(ctx, id)
	if err != nil {
		t.Fatalf("StashPop() failed: %v", err)
	}
	if res != vcs.PopClean {
		t.Errorf("StashPop() = %v, want clean", res)
	}
	if got := vcstest.ReadFile(t, dir, "test.txt"); got != "edited\n" {
		t.Errorf("test.txt = %q after pop", got)
	}
	if got := vcstest.ReadFile(t, dir, "untracked.txt"); got != "untracked\n" {
		t.Errorf("untracked.txt = %q after pop", got)
	}
	if entries, _ := g.StashList(ctx); len(entries) != 0 {
		t.Errorf("StashList() after pop = %+v, want empty", entries)
	}

	if _, err := g.StashPop(ctx, id); !errors.Is(err, vcs.ErrStashNotFound) {
		t.Errorf("second StashPop() error = %v, want ErrStashNotFound", err)
	}
}

func TestStashPopConflict(t *testing.T) {
	g, dir := setupTestRepo(t)
	ctx := context.Background()

	vcstest.WriteFile(t, dir, "test.txt", "local edit\n")
	id, err := g.StashPush(ctx, vcs.StashMessage(time.Now()))
	if err != nil {
		t.Fatalf("StashPush() failed: %v", err)
	}

	vcstest.CommitFile(t, dir, "test.txt", "upstream edit\n", "upstream")

	res, err := g.StashPop(ctx, id)
	if err != nil {
		t.Fatalf("StashPop() failed: %v", err)
	}
	if res != vcs.PopConflict {
		t.Fatalf("StashPop() = %v, want conflict", res)
	}

	content := vcstest.ReadFile(t, dir, "test.txt")
	if !strings.Contains(content, "<<<<<<<") || !strings.Contains(content, "local edit") {
		t.Errorf("test.txt lacks conflict markers:\n%s", content)
	}
	if entries, _ := g.StashList(ctx); len(entries) != 0 {
		t.Errorf("StashList() after conflicting pop = %+v, want empty", entries)
	}

	// Conflicted content commits verbatim
	if err := g.AddAll(ctx); err != nil {
		t.Fatalf("AddAll() failed: %v", err)
	}
	if err := g.Commit(ctx, "with markers"); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	if committed := vcstest.Git(t, dir, "show", "HEAD:test.txt"); !strings.Contains(committed, "<<<<<<<") {
		t.Errorf("committed test.txt lacks markers:\n%s", committed)
	}
}

func TestStashPushClean(t *testing.T) {
	g, _ := setupTestRepo(t)

	_, err := g.StashPush(context.Background(), vcs.StashMessage(time.Now()))
	if !errors.Is(err, vcs.ErrStashNotFound) {
		t.Errorf("StashPush() on clean tree error = %v, want ErrStashNotFound", err)
	}
}

func TestTimeout(t *testing.T) {
	vcstest.RequireGit(t)

	g, err := New(t.TempDir(), vcs.Options{Timeout: time.Nanosecond})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	err = g.Init(context.Background())
	if !errors.Is(err, vcs.ErrTimeout) {
		t.Errorf("Init() with 1ns timeout error = %v, want ErrTimeout", err)
	}
}

package vcstest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/steveyegge/reposync/internal/vcs"
)

// Identity used for every commit made by these helpers and by adapters
// opened with GitOptions.
const (
	TestAuthorName  = "Test User"
	TestAuthorEmail = "test@example.com"
)

// RequireGit skips the test when git is not on PATH and isolates it from the
// user's global and system git configuration.
func RequireGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
}

// GitOptions returns adapter options carrying the test identity.
func GitOptions() vcs.Options {
	return vcs.Options{AuthorName: TestAuthorName, AuthorEmail: TestAuthorEmail}
}

// Git runs git in dir and returns trimmed stdout. The test fails on error.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()

	full := append([]string{
		"-c", "user.name=" + TestAuthorName,
		"-c", "user.email=" + TestAuthorEmail,
		"-c", "init.defaultBranch=main",
	}, args...)

	cmd := exec.Command("git", full...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// NewBareRemote creates an empty bare repository and returns its path.
func NewBareRemote(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "remote.git")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("failed to create remote dir: %v", err)
	}
	Git(t, dir, "init", "--bare", "--quiet")
	return dir
}

// Clone clones remote into a fresh directory, checks out branch (creating it
// when the remote does not have it yet) and returns the clone path.
func Clone(t *testing.T, remote, branch string) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "clone")
	Git(t, "", "clone", "--quiet", remote, dir)

	if strings.TrimSpace(Git(t, dir, "ls-remote", "--heads", "origin", branch)) != "" {
		Git(t, dir, "checkout", "--quiet", "-B", branch, "--track", "origin/"+branch)
	} else {
		Git(t, dir, "symbolic-ref", "HEAD", "refs/heads/"+branch)
	}
	return dir
}

// WriteFile writes content to name (relative to dir), creating parents.
func WriteFile(t *testing.T, dir, name, content string) {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create dir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

// ReadFile returns the content of name (relative to dir).
func ReadFile(t *testing.T, dir, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

// CommitFile writes name, commits it and returns the new HEAD.
func CommitFile(t *testing.T, dir, name, content, message string) string {
	t.Helper()

	WriteFile(t, dir, name, content)
	Git(t, dir, "add", "--", name)
	Git(t, dir, "commit", "--quiet", "-m", message)
	return Git(t, dir, "rev-parse", "HEAD")
}

// CommitAndPush commits name in dir and pushes branch to origin, returning
// the pushed commit id.
func CommitAndPush(t *testing.T, dir, branch, name, content, message string) string {
	t.Helper()

	tip := CommitFile(t, dir, name, content, message)
	Git(t, dir, "push", "--quiet", "-u", "origin", branch)
	return tip
}

// RemoteTip returns the commit id of branch in a bare remote, or "" when the
// branch does not exist.
func RemoteTip(t *testing.T, remote, branch string) string {
	t.Helper()

	cmd := exec.Command("git", "rev-parse", "--verify", "-q", "refs/heads/"+branch)
	cmd.Dir = remote
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

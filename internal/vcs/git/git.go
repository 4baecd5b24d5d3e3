// Package git provides a git implementation of the vcs.Adapter interface.
//
// Every operation shells out to the git binary inside the bound workspace
// directory. Command output is parsed here and nowhere else; failures are
// mapped to the sentinels in the vcs package so the sync engine can branch
// on them without looking at exit codes or stderr text.
//
// Commands run with GIT_TERMINAL_PROMPT=0 so a missing credential fails the
// step instead of blocking an unattended cycle on a prompt.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/steveyegge/reposync/internal/vcs"
)

// MinVersion is the oldest git release providing everything the adapter
// relies on (`git stash push` with a message and untracked files).
const MinVersion = "v2.13.0"

// DefaultTimeout bounds a single git invocation when vcs.Options.Timeout is
// zero.
const DefaultTimeout = 2 * time.Minute

// Git implements vcs.Adapter for a single workspace directory.
type Git struct {
	// dir is the workspace directory (repository root)
	dir string

	// binary is the resolved git executable
	binary string

	// remote is the remote name, always vcs.DefaultRemote
	remote string

	// timeout bounds each invocation
	timeout time.Duration

	// config holds "-c key=value" pairs prepended to every command
	config []string
}

var _ vcs.Adapter = (*Git)(nil)

// New creates a Git adapter bound to dir.
//
// The directory does not need to exist yet. New only checks that the git
// binary can be found; use CheckVersion to verify it is recent enough.
func New(dir string, opts vcs.Options) (*Git, error) {
	if dir == "" {
		return nil, fmt.Errorf("workspace directory is required")
	}

	binary := opts.Binary
	if binary == "" {
		binary = "git"
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", vcs.ErrVCSNotAvailable, binary, err)
	}

	g := &Git{
		dir:     dir,
		binary:  resolved,
		remote:  vcs.DefaultRemote,
		timeout: opts.Timeout,
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	if opts.AuthorName != "" {
		g.config = append(g.config, "-c", "user.name="+opts.AuthorName)
	}
	if opts.AuthorEmail != "" {
		g.config = append(g.config, "-c", "user.email="+opts.AuthorEmail)
	}

	return g, nil
}

// Dir returns the workspace directory
func (g *Git) Dir() string {
	return g.dir
}

// Remote returns the remote name used for fetch/pull/push
func (g *Git) Remote() string {
	return g.remote
}

// Version returns the git version string, e.g. "2.39.2"
func (g *Git) Version(ctx context.Context) (string, error) {
	res, err := vcs.ExecContext(ctx, g.timeout, "", nil, g.binary, "--version")
	if err != nil {
		return "", fmt.Errorf("failed to get git version: %w", err)
	}

	// Output format: "git version 2.39.0"
	version := vcs.TrimOutput(res.Stdout)
	version = strings.TrimPrefix(version, "git version ")

	return version, nil
}

// CheckVersion returns an error wrapping vcs.ErrVCSNotAvailable when the
// git binary is older than MinVersion.
func (g *Git) CheckVersion(ctx context.Context) error {
	raw, err := g.Version(ctx)
	if err != nil {
		return err
	}

	v := semverOf(raw)
	if v == "" {
		return fmt.Errorf("%w: cannot parse git version %q", vcs.ErrVCSNotAvailable, raw)
	}
	if semver.Compare(v, MinVersion) < 0 {
		return fmt.Errorf("%w: git %s is older than required %s",
			vcs.ErrVCSNotAvailable, raw, strings.TrimPrefix(MinVersion, "v"))
	}

	return nil
}

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)(?:\.(\d+))?`)

// semverOf converts git's version text ("2.39.2 (Apple Git-143)",
// "2.45.1.windows.1") to a canonical semver string ("v2.39.2").
func semverOf(raw string) string {
	m := versionPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ""
	}
	patch := m[3]
	if patch == "" {
		patch = "0"
	}
	v := fmt.Sprintf("v%s.%s.%s", m[1], m[2], patch)
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

// run executes git with args inside the workspace and returns the result.
// On failure the error includes the command and its combined output.
func (g *Git) run(ctx context.Context, args ...string) (vcs.ExecResult, error) {
	full := make([]string, 0, len(g.config)+len(args))
	full = append(full, g.config...)
	full = append(full, args...)

	res, err := vcs.ExecContext(ctx, g.timeout, g.dir, []string{"GIT_TERMINAL_PROMPT=0"}, g.binary, full...)
	if err != nil {
		return res, fmt.Errorf("git %s failed: %w\n%s",
			strings.Join(args, " "), err, res.Combined())
	}

	return res, nil
}

// output runs git and returns trimmed stdout.
func (g *Git) output(ctx context.Context, args ...string) (string, error) {
	res, err := g.run(ctx, args...)
	if err != nil {
		return "", err
	}
	return vcs.TrimOutput(res.Stdout), nil
}

package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/reposync/internal/vcs"
)

// CurrentBranch returns the current branch name.
// Returns empty string if in detached HEAD state.
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	res, err := vcs.ExecContext(ctx, g.timeout, g.dir, nil, g.binary, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		if vcs.GetExitCode(err) == 1 {
			return "", nil // Detached HEAD
		}
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}

	return vcs.TrimOutput(res.Stdout), nil
}

// CurrentCommit returns the commit id at HEAD, or vcs.ErrRefNotFound on an
// unborn branch.
func (g *Git) CurrentCommit(ctx context.Context) (string, error) {
	return g.resolve(ctx, "HEAD")
}

// RemoteCommit returns the commit id of the remote-tracking ref for branch,
// or vcs.ErrRefNotFound when the remote has no such branch.
func (g *Git) RemoteCommit(ctx context.Context, branch string) (string, error) {
	return g.resolve(ctx, g.remoteRef(branch))
}

// resolve maps a ref to its commit id. A missing ref (exit status 1 from
// `rev-parse --verify -q`) is reported as vcs.ErrRefNotFound.
func (g *Git) resolve(ctx context.Context, ref string) (string, error) {
	res, err := vcs.ExecContext(ctx, g.timeout, g.dir, nil, g.binary,
		"rev-parse", "--verify", "-q", ref+"^{commit}")
	if err != nil {
		if errors.Is(err, vcs.ErrTimeout) {
			return "", err
		}
		if vcs.GetExitCode(err) == 1 {
			return "", fmt.Errorf("%w: %s", vcs.ErrRefNotFound, ref)
		}
		return "", fmt.Errorf("failed to resolve ref %s: %w\n%s", ref, err, res.Combined())
	}

	return vcs.TrimOutput(res.Stdout), nil
}

// CheckoutNewBranch creates branch name and checks it out.
//
// With a baseRef the branch is (re)created at baseRef and set to track it.
// Without one the branch starts at HEAD; on a freshly initialized repository
// HEAD is unborn, so HEAD is simply pointed at the new branch name and the
// first commit will create it.
func (g *Git) CheckoutNewBranch(ctx context.Context, name, baseRef string) error {
	if name == "" {
		return fmt.Errorf("branch name is required")
	}

	if baseRef != "" {
		_, err := g.run(ctx, "checkout", "-B", name, "--track", baseRef)
		return err
	}

	if _, err := g.CurrentCommit(ctx); errors.Is(err, vcs.ErrRefNotFound) {
		_, err := g.run(ctx, "symbolic-ref", "HEAD", "refs/heads/"+name)
		return err
	} else if err != nil {
		return err
	}

	_, err := g.run(ctx, "checkout", "-B", name)
	return err
}

// ListRemoteBranches returns the branches of the default remote as recorded
// by the last fetch. The symbolic HEAD entry is skipped.
func (g *Git) ListRemoteBranches(ctx context.Context) ([]string, error) {
	prefix := "refs/remotes/" + g.remote + "/"
	res, err := g.run(ctx, "for-each-ref", "--format=%(refname)", prefix)
	if err != nil {
		return nil, err
	}

	var branches []string
	for _, line := range vcs.ParseLines(res.Stdout) {
		name := strings.TrimPrefix(line, prefix)
		if name == "HEAD" || name == line {
			continue
		}
		branches = append(branches, name)
	}

	return branches, nil
}

// remoteRef returns the remote-tracking ref for branch
func (g *Git) remoteRef(branch string) string {
	return "refs/remotes/" + g.remote + "/" + branch
}

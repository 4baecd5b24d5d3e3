package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/reposync/internal/vcs"
)

// Init creates an empty repository in the workspace directory
func (g *Git) Init(ctx context.Context) error {
	if _, err := g.run(ctx, "init", "--quiet"); err != nil {
		return err
	}
	return nil
}

// AddRemote attaches url as the default remote.
// If the remote already exists its URL is replaced, so a retried bootstrap
// never fails on a remote left behind by an earlier attempt.
func (g *Git) AddRemote(ctx context.Context, url string) error {
	if url == "" {
		return fmt.Errorf("remote url is required")
	}

	if _, err := g.run(ctx, "remote", "add", g.remote, url); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return err
		}
		if _, err := g.run(ctx, "remote", "set-url", g.remote, url); err != nil {
			return err
		}
	}

	return nil
}

// RemoteURL returns the URL of the default remote, or vcs.ErrNoRemote
func (g *Git) RemoteURL(ctx context.Context) (string, error) {
	url, err := g.output(ctx, "remote", "get-url", g.remote)
	if err != nil {
		if errors.Is(err, vcs.ErrTimeout) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s", vcs.ErrNoRemote, g.remote)
	}
	return url, nil
}

// HasUncommittedChanges returns true if there are modified, added, removed
// or untracked paths. Ignored files do not count.
func (g *Git) HasUncommittedChanges(ctx context.Context) (bool, error) {
	res, err := g.run(ctx, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return false, err
	}

	return len(strings.TrimSpace(string(res.Stdout))) > 0, nil
}

// ConflictedFiles returns the paths with unmerged entries.
func (g *Git) ConflictedFiles(ctx context.Context) ([]string, error) {
	res, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return nil, err
	}

	var conflicts []string
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		if len(line) < 4 {
			continue
		}

		// Unmerged status codes: DD, AU, UD, UA, DU, AA, UU
		switch line[:2] {
		case "DD", "AU", "UD", "UA", "DU", "AA", "UU":
			conflicts = append(conflicts, strings.TrimSpace(line[3:]))
		}
	}

	return conflicts, nil
}

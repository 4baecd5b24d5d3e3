package vcs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RepoState classifies what exists at a workspace path.
type RepoState int

const (
	// Absent means nothing exists at the path.
	Absent RepoState = iota

	// PresentNotRepo means the path exists but holds no repository.
	PresentNotRepo

	// PresentRepo means the path is the root of a repository.
	PresentRepo
)

// String returns the lowercase name used in logs and CLI output.
func (s RepoState) String() string {
	switch s {
	case Absent:
		return "absent"
	case PresentNotRepo:
		return "present-not-repo"
	case PresentRepo:
		return "present-repo"
	default:
		return "unknown"
	}
}

// Classify inspects path and reports whether a repository lives there.
//
// Classify only reads the filesystem. It does not walk up parent
// directories: a workspace nested inside some other repository is still
// PresentNotRepo, because reposync must own the repository it syncs.
//
// A .git directory, or a .git file whose gitdir target exists (worktrees and
// submodules), makes the path PresentRepo. Errors other than non-existence
// are returned so a permission problem is not mistaken for an empty path.
func Classify(path string) (RepoState, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Absent, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return Absent, nil
	}
	if err != nil {
		return Absent, fmt.Errorf("failed to stat workspace: %w", err)
	}
	if !info.IsDir() {
		return Absent, fmt.Errorf("workspace %s is not a directory", absPath)
	}

	gitPath := filepath.Join(absPath, ".git")
	gitInfo, err := os.Stat(gitPath)
	if os.IsNotExist(err) {
		return PresentNotRepo, nil
	}
	if err != nil {
		return PresentNotRepo, fmt.Errorf("failed to stat %s: %w", gitPath, err)
	}

	if gitInfo.IsDir() {
		// A bare-bones sanity check: HEAD must exist in a real git dir
		if _, err := os.Stat(filepath.Join(gitPath, "HEAD")); err != nil {
			return PresentNotRepo, nil
		}
		return PresentRepo, nil
	}

	if gitInfo.Mode().IsRegular() {
		gitDir, ok := resolveGitFile(absPath, gitPath)
		if !ok {
			return PresentNotRepo, nil
		}
		if _, err := os.Stat(gitDir); err != nil {
			return PresentNotRepo, nil
		}
		return PresentRepo, nil
	}

	return PresentNotRepo, nil
}

// resolveGitFile reads a .git file and returns the directory it points at.
//
// Git worktrees and submodules have a .git file (not directory) containing:
//
//	gitdir: /path/to/main/.git/worktrees/worktree-name
func resolveGitFile(workspace, gitFile string) (string, bool) {
	content, err := os.ReadFile(gitFile)
	if err != nil {
		return "", false
	}

	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "gitdir: ") {
		return "", false
	}

	gitDir := strings.TrimPrefix(line, "gitdir: ")

	// Handle relative paths
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(workspace, gitDir)
	}

	return filepath.Clean(gitDir), true
}

package git

import "github.com/steveyegge/reposync/internal/vcs"

// init registers the git backend with the vcs registry.
// This is called automatically when the package is imported.
func init() {
	vcs.Register("git", func(dir string, opts vcs.Options) (vcs.Adapter, error) {
		return New(dir, opts)
	})
}

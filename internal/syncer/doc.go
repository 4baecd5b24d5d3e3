// Package syncer keeps a workspace and a single remote branch in eventual
// consistency.
//
// One call to Orchestrator.RunCycle performs one synchronization cycle:
//
//	START → [BOOTSTRAP] → STASH → RECONCILE → UNSTASH → PUBLISH → DONE
//
// with an early exit to FAILED from any phase. Local edits are set aside
// before remote history is merged and put back before anything is
// committed, so a merge never sees uncommitted work and a commit never
// misses it. Every cycle re-inspects the workspace from scratch; nothing
// but the on-disk repository carries over from one cycle to the next, which
// makes any cycle safe to re-run after a failure.
//
// The package drives the workspace exclusively through vcs.Adapter and
// never parses VCS output itself.
//
// # Usage
//
//	adapter, _ := vcs.Open("git", "/srv/notes", vcs.Options{})
//	o := syncer.New(syncer.Options{Logger: logger})
//	res := o.RunCycle(ctx, syncer.Handle{
//	    Path:      "/srv/notes",
//	    RemoteURL: "git@example.com:me/notes.git",
//	    Branch:    "main",
//	    Adapter:   adapter,
//	})
//	if !res.OK() {
//	    // res.Err wraps the failed step (ErrPull, ErrPush, ...) and its cause
//	}
package syncer

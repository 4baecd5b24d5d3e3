package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/steveyegge/reposync/internal/history"
	"github.com/steveyegge/reposync/internal/syncer"
	"github.com/steveyegge/reposync/internal/vcs"
)

const (
	markPass = "✓"
	markFail = "✗"
	markWarn = "!"
)

// Result renders the outcome of one cycle in a few lines.
func Result(h syncer.Handle, res syncer.Result) string {
	var b strings.Builder

	duration := res.Duration().Round(time.Millisecond)
	if res.OK() {
		fmt.Fprintf(&b, "%s %s %s on %s in %s\n",
			RenderPass(markPass), RenderBold("synced"), h.Path, RenderAccent(h.Branch), duration)
	} else {
		fmt.Fprintf(&b, "%s %s %s on %s after %s\n",
			RenderFail(markFail), RenderBold("failed"), h.Path, RenderAccent(h.Branch), duration)
	}

	fmt.Fprintf(&b, "  %s %s  %s %s  %s %s\n",
		RenderMuted("reconcile"), res.Reconcile,
		RenderMuted("restore"), res.Restore,
		RenderMuted("publish"), res.Publish)

	if res.State.LocalTip != "" || res.State.RemoteTip != "" {
		fmt.Fprintf(&b, "  %s %s  %s %s\n",
			RenderMuted("local"), ShortID(res.State.LocalTip),
			RenderMuted("remote"), ShortID(res.State.RemoteTip))
	}

	if res.StashConflict() {
		fmt.Fprintf(&b, "  %s %s\n", RenderWarn(markWarn),
			RenderWarn("local edits were restored with conflict markers and published as is"))
	}
	if res.Restore == syncer.RestoreFailed {
		fmt.Fprintf(&b, "  %s %s\n", RenderWarn(markWarn),
			RenderWarn("local edits are still stashed; resolve with `git stash list` before the next cycle"))
	}
	if res.Err != nil {
		fmt.Fprintf(&b, "  %s %v\n", RenderFail("error:"), res.Err)
		switch {
		case vcs.IsFatal(res.Err):
			fmt.Fprintf(&b, "  %s\n", RenderMuted("check the git installation and git.binary"))
		case vcs.IsUserActionRequired(res.Err):
			fmt.Fprintf(&b, "  %s\n", RenderMuted("resolve this in "+h.Path+"; later cycles fail until then"))
		case vcs.IsRetryable(res.Err):
			fmt.Fprintf(&b, "  %s\n", RenderMuted("the next cycle will retry"))
		}
	}

	return b.String()
}

// History renders recorded cycles as a table, newest first.
func History(entries []history.Entry) string {
	if len(entries) == 0 {
		return RenderMuted("no cycles recorded") + "\n"
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			phaseLabel(e),
			e.Reconcile,
			e.Restore,
			e.Publish,
			ShortID(e.LocalTip),
			e.Duration().Round(time.Millisecond).String(),
			firstLine(e.Error),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		BorderColumn(false).
		BorderLeft(false).
		BorderRight(false).
		BorderTop(false).
		BorderBottom(false).
		Headers("STARTED", "PHASE", "RECONCILE", "RESTORE", "PUBLISH", "LOCAL", "DURATION", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	return t.String() + "\n"
}

// RepoState renders the inspector's classification of a workspace.
func RepoState(path string, state vcs.RepoState) string {
	var label string
	switch state {
	case vcs.PresentRepo:
		label = RenderPass(state.String())
	case vcs.PresentNotRepo:
		label = RenderWarn(state.String())
	default:
		label = RenderMuted(state.String())
	}
	return fmt.Sprintf("%s %s\n", path, label)
}

func phaseLabel(e history.Entry) string {
	switch {
	case !e.OK():
		return RenderFail(e.Phase)
	case e.StashConflict:
		return RenderWarn(e.Phase)
	default:
		return RenderPass(e.Phase)
	}
}

// ShortID abbreviates a commit id.
func ShortID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

package dashboard

import (
	"encoding/json"
	"time"

	"github.com/steveyegge/reposync/internal/syncer"
)

// CycleStartedData is the payload of a cycle_started message.
type CycleStartedData struct {
	Cycle     uint64 `json:"cycle"`
	Workspace string `json:"workspace"`
	Branch    string `json:"branch"`
}

// CycleFinishedData is the payload of cycle_finished and status messages.
type CycleFinishedData struct {
	Cycle         uint64        `json:"cycle"`
	Workspace     string        `json:"workspace"`
	Branch        string        `json:"branch"`
	Phase         string        `json:"phase"`
	Trace         []string      `json:"trace"`
	Reconcile     string        `json:"reconcile"`
	Restore       string        `json:"restore"`
	Publish       string        `json:"publish"`
	StashConflict bool          `json:"stash_conflict"`
	Error         string        `json:"error,omitempty"`
	Duration      time.Duration `json:"duration"`
	State         syncer.State  `json:"state"`
}

// Handler turns cycle events into dashboard broadcasts. It implements
// syncer.Observer.
type Handler struct {
	server *Server
}

var _ syncer.Observer = (*Handler)(nil)

// NewHandler creates a Handler broadcasting on server.
func NewHandler(server *Server) *Handler {
	return &Handler{server: server}
}

// CycleStarted implements syncer.Observer.
func (h *Handler) CycleStarted(cycle uint64, handle syncer.Handle, at time.Time) {
	h.send(MessageTypeCycleStarted, at, CycleStartedData{
		Cycle:     cycle,
		Workspace: handle.Path,
		Branch:    handle.Branch,
	})
}

// CycleFinished implements syncer.Observer.
func (h *Handler) CycleFinished(handle syncer.Handle, res syncer.Result) {
	data := CycleFinishedData{
		Cycle:         res.Cycle,
		Workspace:     handle.Path,
		Branch:        handle.Branch,
		Phase:         res.Phase.String(),
		Reconcile:     res.Reconcile.String(),
		Restore:       res.Restore.String(),
		Publish:       res.Publish.String(),
		StashConflict: res.StashConflict(),
		Duration:      res.Duration(),
		State:         res.State,
	}
	for _, p := range res.Trace {
		data.Trace = append(data.Trace, p.String())
	}
	if res.Err != nil {
		data.Error = res.Err.Error()
	}
	h.send(MessageTypeCycleFinished, res.FinishedAt, data)
}

func (h *Handler) send(typ MessageType, at time.Time, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.server.log.Error("failed to marshal dashboard payload", "type", string(typ), "error", err)
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: at, Data: raw})
}

package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/steveyegge/reposync/internal/syncer"
)

// Recorder is a syncer.Observer that writes every finished cycle to a Store.
// Failures to record are logged and never affect the cycle.
type Recorder struct {
	Store *Store
	Log   *slog.Logger
}

var _ syncer.Observer = (*Recorder)(nil)

// CycleStarted implements syncer.Observer.
func (r *Recorder) CycleStarted(uint64, syncer.Handle, time.Time) {}

// CycleFinished implements syncer.Observer.
func (r *Recorder) CycleFinished(h syncer.Handle, res syncer.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := r.Store.Record(ctx, EntryFrom(h, res)); err != nil && r.Log != nil {
		r.Log.Warn("failed to record cycle history", "cycle", res.Cycle, "error", err)
	}
}

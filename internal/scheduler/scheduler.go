// Package scheduler runs synchronization cycles on a fixed interval.
//
// The scheduler never overlaps cycles: the timer for the next cycle is armed
// only after the previous one returns. Cancelling the context passed to Run
// stops the loop once the in-flight cycle (if any) has finished.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Func runs one cycle. Its outcome does not affect scheduling.
type Func func(ctx context.Context)

// Scheduler calls a Func immediately and then once per interval.
type Scheduler struct {
	run Func
	log *slog.Logger

	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	// wake is signalled when the interval changes or a cycle is requested
	wake    chan struct{}
	trigger bool
}

// New creates a Scheduler. interval must be positive.
func New(run Func, interval time.Duration, log *slog.Logger) (*Scheduler, error) {
	if run == nil {
		return nil, errors.New("run func cannot be nil")
	}
	if interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		run:      run,
		log:      log,
		interval: interval,
		wake:     make(chan struct{}, 1),
	}, nil
}

// Interval returns the current interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the interval. A pending wait is re-armed so the next
// cycle starts d after the previous one finished, or immediately when that
// moment has already passed. Non-positive values are ignored.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	changed := s.interval != d
	s.interval = d
	s.mu.Unlock()

	if changed {
		s.log.Info("interval changed", "interval", d)
		s.signal()
	}
}

// Trigger requests a cycle now. A request made while a cycle is running
// starts another one as soon as it returns.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	s.trigger = true
	s.mu.Unlock()
	s.signal()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run blocks, running cycles until ctx is cancelled. It always returns nil
// after a cancellation; the in-flight cycle is never interrupted by Run.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", "interval", s.Interval())
	defer s.log.Info("scheduler stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}
		s.runOnce(ctx)

		if !s.wait(ctx) {
			return nil
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.mu.Lock()
	s.trigger = false
	s.mu.Unlock()

	s.run(ctx)

	s.mu.Lock()
	s.last = time.Now()
	s.mu.Unlock()
}

// wait sleeps until the next cycle is due. It returns false when ctx is
// cancelled first.
func (s *Scheduler) wait(ctx context.Context) bool {
	for {
		delay, now := s.nextDelay()
		if now {
			return true
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
			return true
		case <-s.wake:
			timer.Stop()
		}
	}
}

// nextDelay returns how long until the next cycle, or true when it is due.
func (s *Scheduler) nextDelay() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.trigger {
		return 0, true
	}
	remaining := time.Until(s.last.Add(s.interval))
	if remaining <= 0 {
		return 0, true
	}
	return remaining, false
}

package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	noop := func(context.Context) {}

	tests := []struct {
		name     string
		run      Func
		interval time.Duration
		wantErr  bool
	}{
		{"valid", noop, time.Second, false},
		{"nil func", nil, time.Second, true},
		{"zero interval", noop, 0, true},
		{"negative interval", noop, -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.run, tt.interval, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// start runs s in the background and returns a stop func that cancels it
// and waits for Run to return.
func start(t *testing.T, s *Scheduler) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	return func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() = %v, want nil", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run() did not return after cancel")
		}
	}
}

func TestRunsImmediatelyThenPeriodically(t *testing.T) {
	var runs atomic.Int32
	s, err := New(func(context.Context) { runs.Add(1) }, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}

	stop := start(t, s)
	waitFor(t, func() bool { return runs.Load() >= 1 })
	waitFor(t, func() bool { return runs.Load() >= 3 })
	stop()
}

func TestCyclesNeverOverlap(t *testing.T) {
	var active, maxActive, runs atomic.Int32
	run := func(context.Context) {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(15 * time.Millisecond)
		active.Add(-1)
		runs.Add(1)
	}

	s, err := New(run, time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	stop := start(t, s)
	for i := 0; i < 5; i++ {
		s.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	waitFor(t, func() bool { return runs.Load() >= 4 })
	stop()

	if maxActive.Load() != 1 {
		t.Errorf("max concurrent cycles = %d, want 1", maxActive.Load())
	}
}

func TestStopWaitsForInflightCycle(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	var once sync.Once
	run := func(context.Context) {
		once.Do(func() { close(started) })
		<-release
		finished.Store(true)
	}

	s, err := New(run, time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	<-started
	cancel()

	select {
	case <-done:
		t.Fatal("Run() returned while a cycle was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after the cycle finished")
	}
	if !finished.Load() {
		t.Error("in-flight cycle did not complete")
	}
}

func TestSetIntervalRearmsWait(t *testing.T) {
	var runs atomic.Int32
	s, err := New(func(context.Context) { runs.Add(1) }, time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}

	stop := start(t, s)
	defer stop()

	waitFor(t, func() bool { return runs.Load() == 1 })
	s.SetInterval(10 * time.Millisecond)
	if s.Interval() != 10*time.Millisecond {
		t.Errorf("Interval() = %s", s.Interval())
	}
	waitFor(t, func() bool { return runs.Load() >= 2 })
}

func TestSetIntervalIgnoresNonPositive(t *testing.T) {
	s, err := New(func(context.Context) {}, time.Minute, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.SetInterval(0)
	s.SetInterval(-time.Second)
	if s.Interval() != time.Minute {
		t.Errorf("Interval() = %s, want 1m", s.Interval())
	}
}

func TestTrigger(t *testing.T) {
	var runs atomic.Int32
	s, err := New(func(context.Context) { runs.Add(1) }, time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}

	stop := start(t, s)
	defer stop()

	waitFor(t, func() bool { return runs.Load() == 1 })
	s.Trigger()
	waitFor(t, func() bool { return runs.Load() == 2 })
}

func TestRunWithCancelledContext(t *testing.T) {
	var runs atomic.Int32
	s, err := New(func(context.Context) { runs.Add(1) }, time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Errorf("Run() = %v", err)
	}
	if runs.Load() != 0 {
		t.Errorf("runs = %d, want 0 for a cancelled context", runs.Load())
	}
}

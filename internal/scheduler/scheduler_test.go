package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/blurt/internal/gateway"
)

func waitFor(t *testing.T, within time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(within)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			t.Fatalf("condition not met within %s", within)
		case <-ticker.C:
			if cond() {
				return
			}
		}
	}
}

func TestSchedulerFiresJob(t *testing.T) {
	var fires atomic.Int32
	sched := New(nil, nil)
	err := sched.Add(Job{Name: "every-second", Schedule: "* * * * * *", Run: func(context.Context) error {
		fires.Add(1)
		return nil
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := sched.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	waitFor(t, 2500*time.Millisecond, func() bool { return fires.Load() > 0 })
}

func TestSchedulerRetriesFailedRun(t *testing.T) {
	var calls atomic.Int32
	policy := &gateway.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond}
	sched := New(policy, nil)
	err := sched.Add(Job{Name: "flaky", Schedule: "* * * * * *", Run: func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("database is locked")
		}
		return nil
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := sched.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	waitFor(t, 2500*time.Millisecond, func() bool { return calls.Load() >= 3 })
}

func TestSchedulerSkipsEmptySchedule(t *testing.T) {
	var fires atomic.Int32
	sched := New(nil, nil)
	if err := sched.Add(Job{Name: "off", Run: func(context.Context) error {
		fires.Add(1)
		return nil
	}}); err != nil {
		t.Fatal(err)
	}
	if err := sched.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	time.Sleep(1500 * time.Millisecond)
	if n := fires.Load(); n != 0 {
		t.Errorf("expected 0 fires for job with no schedule, got %d", n)
	}
}

func TestSchedulerRejectsInvalidSchedule(t *testing.T) {
	sched := New(nil, nil)
	err := sched.Add(Job{Name: "bad", Schedule: "every tuesday", Run: func(context.Context) error { return nil }})
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if err := Validate("@every 5m"); err != nil {
		t.Errorf("descriptor rejected: %v", err)
	}
}

func TestSchedulerStopCancelsRetries(t *testing.T) {
	started := make(chan struct{}, 1)
	policy := &gateway.RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour, Multiplier: 1, MaxDelay: time.Hour}
	sched := New(policy, nil)
	if err := sched.Add(Job{Name: "slow", Schedule: "* * * * * *", Run: func(context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		return errors.New("timeout")
	}}); err != nil {
		t.Fatal(err)
	}
	if err := sched.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case <-started:
	case <-time.After(2500 * time.Millisecond):
		t.Fatal("job never started")
	}
	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not cancel the backoff wait")
	}
}

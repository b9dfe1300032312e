package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/user/blurt/internal/entity"
)

func fastPolicy(attempts int) *RetryPolicy {
	return &RetryPolicy{MaxAttempts: attempts, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 10 * time.Millisecond}
}

func TestShouldRetryClassifies(t *testing.T) {
	policy := DefaultRetryPolicy()
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("connection refused"), true},
		{errors.New("database is locked"), true},
		{errors.New("invalid timeout value"), true},
		{errors.New("something odd"), true},
		{errors.New("invalid request"), false},
		{errors.New("Unauthorized"), false},
		{errors.New("forbidden"), false},
		{fmt.Errorf("load group: %w", entity.ErrNotFound), false},
		{fmt.Errorf("sync: %w", context.Canceled), false},
	}
	for _, tc := range cases {
		if got := policy.ShouldRetry(tc.err, 1); got != tc.want {
			t.Errorf("ShouldRetry(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
	if policy.ShouldRetry(errors.New("timeout"), policy.MaxAttempts+1) {
		t.Error("should not retry past MaxAttempts")
	}
}

func TestNextDelayBacksOff(t *testing.T) {
	policy := DefaultRetryPolicy()
	for attempt, want := range map[int]time.Duration{1: time.Second, 2: 2 * time.Second, 3: 4 * time.Second, 10: 30 * time.Second} {
		if got := policy.NextDelay(attempt); got != want {
			t.Errorf("NextDelay(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary failure")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestExecuteGivesUp(t *testing.T) {
	for name, tc := range map[string]struct {
		err   error
		calls int
	}{
		"permanent": {errors.New("invalid request"), 1},
		"exhausted": {errors.New("timeout"), 2},
	} {
		t.Run(name, func(t *testing.T) {
			calls := 0
			err := fastPolicy(2).Execute(context.Background(), func(context.Context) error {
				calls++
				return tc.err
			})
			if !errors.Is(err, tc.err) {
				t.Errorf("expected %v, got %v", tc.err, err)
			}
			if calls != tc.calls {
				t.Errorf("expected %d calls, got %d", tc.calls, calls)
			}
		})
	}
}

func TestExecuteStopsOnCancel(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour, Multiplier: 1, MaxDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := policy.Execute(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("timeout")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

package gateway

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/user/blurt/internal/entity"
)

// RetryPolicy retries failed jobs with exponential backoff.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy makes three attempts, waiting 1s then 2s, never more
// than 30s.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second, Multiplier: 2, MaxDelay: 30 * time.Second}
}

// Message fragments that mark an error as transient or permanent. Transient
// wins when both match.
var (
	transientHints = []string{"connection refused", "connection reset", "timeout", "database is locked", "temporary failure"}
	permanentHints = []string{"invalid", "unauthorized", "forbidden"}
)

// ShouldRetry reports whether attempt (1-based) may be followed by another.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	return attempt <= p.MaxAttempts && retryable(err)
}

func retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, entity.ErrNotFound):
		return false
	}
	msg := strings.ToLower(err.Error())
	if containsAny(msg, transientHints) {
		return true
	}
	return !containsAny(msg, permanentHints)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// NextDelay is the wait after the given attempt: InitialDelay grown by
// Multiplier per attempt and capped at MaxDelay.
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	return time.Duration(math.Min(d, float64(p.MaxDelay)))
}

// Execute calls fn until it succeeds, a permanent error comes back, or the
// attempts run out. If ctx ends during a backoff the last error is joined
// with ctx.Err().
func (p *RetryPolicy) Execute(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= p.MaxAttempts || !p.ShouldRetry(err, attempt) {
			return err
		}
		t := time.NewTimer(p.NextDelay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
}

package manifest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/user/blurt/internal/entity"
)

// DefaultDebounce groups bursts of user writes into one rebuild.
const DefaultDebounce = 500 * time.Millisecond

// Rebuilder republishes a user's manifest shortly after their document
// changes. Writes arriving within the debounce window share one rebuild.
type Rebuilder struct {
	publisher *Publisher
	delay     time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func NewRebuilder(publisher *Publisher, delay time.Duration, logger *slog.Logger) *Rebuilder {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rebuilder{publisher: publisher, delay: delay, logger: logger, pending: make(map[string]*time.Timer)}
}

// Watch subscribes the rebuilder to user writes on store. Rebuilds run under
// ctx and stop being scheduled once it ends.
func (r *Rebuilder) Watch(ctx context.Context, store *entity.Store) {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()
	store.Observe(func(_ context.Context, userID string) { r.Touch(userID) })
}

// Touch schedules a rebuild of userID, pushing back one already pending.
func (r *Rebuilder) Touch(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil || r.ctx.Err() != nil {
		return
	}
	if t, ok := r.pending[userID]; ok && t.Stop() {
		t.Reset(r.delay)
		return
	}
	r.wg.Add(1)
	r.pending[userID] = time.AfterFunc(r.delay, func() {
		defer r.wg.Done()
		r.rebuild(userID)
	})
}

func (r *Rebuilder) rebuild(userID string) {
	r.mu.Lock()
	delete(r.pending, userID)
	ctx := r.ctx
	r.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if _, err := r.publisher.Publish(ctx, userID); err != nil {
		if errors.Is(err, ErrNoSignalID) || errors.Is(err, entity.ErrNotFound) {
			r.logger.Debug("manifest skipped", "user_id", userID, "error", err)
			return
		}
		r.logger.Error("manifest rebuild failed", "user_id", userID, "error", err)
	}
}

// Wait blocks until every scheduled rebuild has run or been dropped.
func (r *Rebuilder) Wait() {
	r.wg.Wait()
}

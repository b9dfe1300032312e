package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/blurt/internal/types"
)

// laneDepth bounds how many turns one session may have waiting.
const laneDepth = 16

var errQueueStopped = errors.New("queue not running")

// Queue serialises turns per session while a weighted semaphore caps the
// number of turns running across all sessions. Every session owns a FIFO
// lane drained by its own goroutine.
type Queue struct {
	slots   *semaphore.Weighted
	process func(*Run) *Result

	mu     sync.Mutex
	lanes  map[types.SessionID]chan *Run
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		slots: semaphore.NewWeighted(maxConcurrent),
		lanes: make(map[types.SessionID]chan *Run),
	}
}

// SetProcessor installs the function that executes each turn. Call it
// before Start.
func (q *Queue) SetProcessor(fn func(*Run) *Result) { q.process = fn }

// Start opens the queue for Enqueue until ctx ends or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop closes every lane and waits for the lane goroutines to exit. Turns
// still waiting in a lane are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.cancel != nil {
		q.cancel()
	}
	for id, lane := range q.lanes {
		close(lane)
		delete(q.lanes, id)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue appends run to its session's lane. It fails when the queue is
// not running or the lane is full.
func (q *Queue) Enqueue(run *Run) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ctx == nil || q.ctx.Err() != nil {
		return errQueueStopped
	}
	lane, ok := q.lanes[run.SessionID]
	if !ok {
		lane = make(chan *Run, laneDepth)
		q.lanes[run.SessionID] = lane
		q.wg.Add(1)
		go q.drain(q.ctx, run.SessionID, lane)
	}
	select {
	case lane <- run:
		return nil
	default:
		return fmt.Errorf("queue full for session %s", run.SessionID)
	}
}

func (q *Queue) drain(ctx context.Context, id types.SessionID, lane <-chan *Run) {
	defer q.wg.Done()
	for {
		var run *Run
		select {
		case <-ctx.Done():
			return
		case r, ok := <-lane:
			if !ok {
				return
			}
			run = r
		}
		if err := q.slots.Acquire(ctx, 1); err != nil {
			run.finish(&Result{SessionID: id, Err: fmt.Errorf("acquire turn slot: %w", err)})
			return
		}
		q.execute(ctx, id, run)
		q.slots.Release(1)
	}
}

func (q *Queue) execute(ctx context.Context, id types.SessionID, run *Run) {
	started := time.Now()
	run.StartedAt = &started
	run.Status = RunStatusRunning
	run.Ctx = ctx

	res := &Result{SessionID: id, Err: errors.New("no turn processor")}
	if q.process != nil {
		res = q.process(run)
	}
	if res.Err != nil {
		slog.Error("turn failed", "run_id", string(run.ID), "session_id", string(id), "error", res.Err)
	}
	run.finish(res)
}

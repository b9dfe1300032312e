package gateway

import (
	"context"
	"time"

	"github.com/user/blurt/internal/conversation"
	"github.com/user/blurt/internal/dialog"
	"github.com/user/blurt/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Inbound is one turn from a front-end.
type Inbound struct {
	SessionKey types.SessionKey
	Source     string
	Request    dialog.Request

	// State, when set, replaces the saved dialogue state for this turn. The
	// fulfillment webhook uses it because the external runtime carries state.
	State *conversation.State
	// Single runs one transition and hands follow-ups back to the caller.
	Single bool
	// Incoming is the runtime's template for a Single turn.
	Incoming conversation.Reply
}

// Result is what a finished run hands back to its caller.
type Result struct {
	SessionID types.SessionID
	TurnID    types.TurnID
	State     conversation.State
	Response  dialog.Response
	// Outcome is the raw outcome of a Single turn.
	Outcome conversation.Outcome
	Err     error
}

// Run tracks a single turn against a session.
type Run struct {
	ID        types.RunID
	TurnID    types.TurnID
	SessionID types.SessionID
	Inbound   *Inbound
	Status    RunStatus
	CreatedAt time.Time
	StartedAt *time.Time
	EndedAt   *time.Time
	Error     error
	Ctx       context.Context

	done chan *Result
}

// NewRun creates a Run in the Queued state for the given session and turn.
func NewRun(sessionID types.SessionID, in *Inbound) *Run {
	return &Run{
		ID:        types.NewRunID(),
		TurnID:    types.NewTurnID(),
		SessionID: sessionID,
		Inbound:   in,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
		done:      make(chan *Result, 1),
	}
}

func (r *Run) finish(res *Result) {
	now := time.Now()
	r.EndedAt = &now
	r.Error = res.Err
	if res.Err != nil {
		r.Status = RunStatusFailed
	} else {
		r.Status = RunStatusComplete
	}
	if r.done != nil {
		r.done <- res
	}
}

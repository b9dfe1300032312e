// Package gateway serialises dialogue turns per session. Each turn loads the
// session's dialogue state, runs it through the dialog runner, saves the
// next state and appends the outcome to the session journal.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/blurt/internal/conversation"
	"github.com/user/blurt/internal/dialog"
	"github.com/user/blurt/internal/types"
)

// Gateway orchestrates inbound turns into runs.
type Gateway struct {
	sessions types.SessionStore
	journal  types.Journal
	bags     types.DocStore
	runner   *dialog.Runner
	Queue    *Queue
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Gateway. bags keeps the dialogue state of sessions whose
// front-end does not carry it. maxConcurrent bounds turns in flight across
// sessions (default 2).
func New(sessions types.SessionStore, journal types.Journal, bags types.DocStore, runner *dialog.Runner, maxConcurrent ...int64) *Gateway {
	var concurrency int64 = 2
	if len(maxConcurrent) > 0 && maxConcurrent[0] > 0 {
		concurrency = maxConcurrent[0]
	}
	g := &Gateway{
		sessions: sessions,
		journal:  journal,
		bags:     bags,
		runner:   runner,
		Queue:    NewQueue(concurrency),
		logger:   slog.Default(),
	}
	g.Queue.SetProcessor(g.process)
	return g
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context and waits for running turns.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
}

// HandleInbound resolves or creates the session, queues the turn behind any
// turn already running for it, and waits for the result.
func (g *Gateway) HandleInbound(ctx context.Context, in *Inbound) (*Result, error) {
	source := in.Source
	if source == "" {
		source = "default"
	}
	sessionID, err := g.sessions.ResolveOrCreate(ctx, in.SessionKey, source)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	run := NewRun(sessionID, in)
	if err := g.Queue.Enqueue(run); err != nil {
		return nil, err
	}
	select {
	case res := <-run.done:
		return res, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.ctx.Done():
		return nil, fmt.Errorf("gateway stopped")
	}
}

// ClearState forgets the saved dialogue state of a session.
func (g *Gateway) ClearState(ctx context.Context, id types.SessionID) error {
	return g.bags.Delete(ctx, types.CollectionDialogState, string(id))
}

func (g *Gateway) process(run *Run) *Result {
	ctx := run.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	in := run.Inbound
	res := &Result{SessionID: run.SessionID, TurnID: run.TurnID}

	st, err := g.loadState(ctx, run.SessionID, in.State)
	if err != nil {
		res.Err = err
		return res
	}

	if in.Single {
		st, res.Outcome, res.Err = g.runner.Step(ctx, st, in.Request, in.Incoming)
		res.Response = dialog.Response{Kind: res.Outcome.Kind, Reply: res.Outcome.Reply}
		if event, rerr := g.runner.Resolve(in.Request); rerr == nil {
			res.Response.Events = []string{event}
		}
		if res.Err != nil && res.Outcome.Kind != 0 {
			res.Response.Failure = res.Err.Error()
			res.Err = nil
		}
	} else {
		st, res.Response, res.Err = g.runner.Run(ctx, st, in.Request)
	}
	res.State = st
	if res.Err != nil {
		g.record(ctx, run, res)
		return res
	}

	if in.State == nil {
		if err := g.saveState(ctx, run.SessionID, st); err != nil {
			res.Err = err
			return res
		}
	}
	g.record(ctx, run, res)
	return res
}

func (g *Gateway) loadState(ctx context.Context, id types.SessionID, given *conversation.State) (conversation.State, error) {
	if given != nil {
		return *given, nil
	}
	raw, err := g.bags.Get(ctx, types.CollectionDialogState, string(id))
	if err != nil {
		return conversation.State{}, fmt.Errorf("load dialogue state: %w", err)
	}
	return conversation.DecodeState(raw)
}

func (g *Gateway) saveState(ctx context.Context, id types.SessionID, st conversation.State) error {
	raw, err := st.Encode()
	if err != nil {
		return fmt.Errorf("encode dialogue state: %w", err)
	}
	if err := g.bags.Put(ctx, types.CollectionDialogState, string(id), raw); err != nil {
		return fmt.Errorf("save dialogue state: %w", err)
	}
	return nil
}

// record journals the turn. Journal failures are logged, never returned.
func (g *Gateway) record(ctx context.Context, run *Run, res *Result) {
	entry := &types.JournalEntry{
		TurnID:    run.TurnID,
		SessionID: run.SessionID,
		Source:    run.Inbound.Source,
		Events:    res.Response.Events,
		At:        time.Now().UTC(),
	}
	if id := run.Inbound.Request.Identity; id != nil {
		entry.UserID = id.Email
	}
	if res.Err != nil {
		entry.Error = res.Err.Error()
	} else if res.Response.Failure != "" {
		entry.Error = res.Response.Failure
	}
	if reply, err := json.Marshal(res.Response.Reply); err == nil {
		entry.Reply = reply
	}
	if err := g.journal.Append(ctx, entry); err != nil {
		g.logger.Warn("journal append failed", "session_id", string(run.SessionID), "error", err)
		return
	}
	if err := g.sessions.RecordTurn(ctx, run.SessionID, run.TurnID); err != nil {
		g.logger.Warn("record turn failed", "session_id", string(run.SessionID), "error", err)
	}
}

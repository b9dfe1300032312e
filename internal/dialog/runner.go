package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/blurt/internal/conversation"
	"github.com/user/blurt/internal/types"
)

// DefaultHopLimit bounds the follow-ups one request may chain.
const DefaultHopLimit = 3

var (
	// ErrNoMatch is returned when neither an event nor a known phrase was given.
	ErrNoMatch = errors.New("no transition matches the request")
	// ErrHopLimit is returned when handlers keep following up past the limit.
	ErrHopLimit = errors.New("follow-up hop limit exceeded")
)

// Request is one user turn as a front-end sees it.
type Request struct {
	// Event is an event or intent name. When empty, Text is matched against
	// the catalog's phrases and unmatched text goes to the fallback.
	Event    string
	Text     string
	Identity *types.Identity
	SignIn   *conversation.SignInResult
}

// Response is the terminal outcome of a request.
type Response struct {
	Kind   conversation.OutcomeKind `json:"kind"`
	Reply  conversation.Reply       `json:"reply"`
	Events []string                 `json:"events"`

	// Failure is the handler error that sent the request to the problem
	// transition, if any.
	Failure string `json:"failure,omitempty"`
}

// Runner drives a Machine the way the dialogue runtime does.
type Runner struct {
	machine  *conversation.Machine
	catalog  *Catalog
	hopLimit int
	logger   *slog.Logger
}

func NewRunner(m *conversation.Machine, c *Catalog, hopLimit int, logger *slog.Logger) *Runner {
	if c == nil {
		c = Default()
	}
	if hopLimit <= 0 {
		hopLimit = DefaultHopLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{machine: m, catalog: c, hopLimit: hopLimit, logger: logger}
}

// Catalog returns the runner's prompt catalog.
func (r *Runner) Catalog() *Catalog { return r.catalog }

// Resolve picks the event a request starts at.
func (r *Runner) Resolve(req Request) (string, error) {
	if req.Event != "" {
		event, ok := r.machine.Resolve(req.Event)
		if !ok {
			return "", fmt.Errorf("%w: %q", conversation.ErrUnknownEvent, req.Event)
		}
		return event, nil
	}
	if req.Text == "" {
		return "", ErrNoMatch
	}
	if event, ok := r.catalog.Match(req.Text); ok {
		return event, nil
	}
	return conversation.EventFallback, nil
}

// Run handles req and every follow-up it produces. A failing handler is
// logged and the request continues at the problem transition it names.
func (r *Runner) Run(ctx context.Context, st conversation.State, req Request) (conversation.State, Response, error) {
	event, err := r.Resolve(req)
	if err != nil {
		return st, Response{}, err
	}
	turn := conversation.Turn{
		Event:    event,
		Query:    req.Text,
		Incoming: r.catalog.Template(event),
		Identity: req.Identity,
		SignIn:   req.SignIn,
	}

	var resp Response
	for hop := 0; ; hop++ {
		resp.Events = append(resp.Events, turn.Event)
		next, out, err := r.machine.Handle(ctx, st, turn)
		if err != nil {
			if out.Kind == 0 {
				return st, resp, err
			}
			r.logger.Warn("turn failed", "event", turn.Event, "error", err)
			if resp.Failure == "" {
				resp.Failure = err.Error()
			}
		}
		st = next
		if out.Terminal() {
			resp.Kind = out.Kind
			resp.Reply = out.Reply
			return st, resp, nil
		}
		if hop >= r.hopLimit {
			return st, resp, fmt.Errorf("%w after %v", ErrHopLimit, resp.Events)
		}
		turn.Event = out.Event
		turn.Query = out.Event
		turn.Incoming = r.catalog.Template(out.Event)
		turn.SignIn = nil
	}
}

// Step handles a single transition for callers that drive follow-ups
// themselves. Incoming overrides the catalog template when non-empty.
func (r *Runner) Step(ctx context.Context, st conversation.State, req Request, incoming conversation.Reply) (conversation.State, conversation.Outcome, error) {
	event, err := r.Resolve(req)
	if err != nil {
		return st, conversation.Outcome{}, err
	}
	if incoming == (conversation.Reply{}) {
		incoming = r.catalog.Template(event)
	}
	return r.machine.Handle(ctx, st, conversation.Turn{
		Event:    event,
		Query:    req.Text,
		Incoming: incoming,
		Identity: req.Identity,
		SignIn:   req.SignIn,
	})
}

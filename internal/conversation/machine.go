// Package conversation implements the voice assistant's dialogue as a set of
// transition handlers over an explicit per-session state.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/blurt/internal/calendar"
	"github.com/user/blurt/internal/clock"
	"github.com/user/blurt/internal/entity"
	"github.com/user/blurt/internal/types"
)

// ErrUnknownEvent is returned for event names outside the catalog.
var ErrUnknownEvent = errors.New("unknown transition event")

// Deps are the collaborators every handler may use.
type Deps struct {
	Store       *entity.Store
	Calendar    calendar.Calendar
	Clock       *clock.Clock
	NewSignalID func() string
	Logger      *slog.Logger
}

// SignInResult is the runtime's answer to a sign-in request.
type SignInResult struct {
	Status string `json:"status"`
}

func (r *SignInResult) OK() bool { return r != nil && r.Status == "OK" }

// Turn is what the runtime hands a single handler invocation.
type Turn struct {
	// Event is the transition being handled.
	Event string
	// Query is the raw query for the invocation. The runtime sets it to the
	// event name when the invocation came from a follow-up.
	Query string
	// Incoming is the template the runtime picked for Event. Speech may be
	// wrapped in <speak>.
	Incoming Reply
	Identity *types.Identity
	SignIn   *SignInResult
	// Prefix is the fragment left by the previous transition, if any.
	Prefix *Reply
}

func (t Turn) userID() string {
	if t.Identity == nil || t.Identity.Email == "" {
		return ""
	}
	return entity.UserKey(t.Identity.Email)
}

func (t Turn) locale() string {
	if t.Identity == nil {
		return ""
	}
	return t.Identity.Locale
}

func (t Turn) name() string {
	if t.Identity == nil {
		return ""
	}
	return t.Identity.Name
}

// OutcomeKind says how a handler ended.
type OutcomeKind int

const (
	// OutcomeAsk replies and keeps the microphone open.
	OutcomeAsk OutcomeKind = iota + 1
	// OutcomeClose replies and ends the conversation.
	OutcomeClose
	// OutcomeSignIn asks the runtime to run account sign-in.
	OutcomeSignIn
	// OutcomeFollowUp continues the turn at another transition.
	OutcomeFollowUp
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAsk:
		return "ask"
	case OutcomeClose:
		return "close"
	case OutcomeSignIn:
		return "sign_in"
	case OutcomeFollowUp:
		return "followup"
	}
	return "unknown"
}

// Outcome is exactly one of a reply or a follow-up event. Reply speech is
// wrapped in <speak>.
type Outcome struct {
	Kind  OutcomeKind `json:"kind"`
	Reply Reply       `json:"reply"`
	Event string      `json:"event,omitempty"`
}

func (o Outcome) Terminal() bool { return o.Kind != OutcomeFollowUp }

func followUp(event string) Outcome { return Outcome{Kind: OutcomeFollowUp, Event: event} }

// Handler runs one transition. It returns the next state even on error.
type Handler func(ctx context.Context, d *Deps, st State, turn Turn) (State, Outcome, error)

// Machine dispatches transition events to handlers.
type Machine struct {
	deps     *Deps
	handlers map[string]Handler
	intents  map[string]string
}

func NewMachine(deps *Deps) *Machine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.NewSignalID == nil {
		deps.NewSignalID = entity.RandomSignalID
	}
	m := &Machine{
		deps:     deps,
		handlers: map[string]Handler{},
		intents:  map[string]string{},
	}
	for _, t := range Catalog() {
		m.handlers[t.Event] = t.Handler
		m.intents[t.Intent] = t.Event
	}
	return m
}

// Resolve maps an event or intent name to its event name.
func (m *Machine) Resolve(name string) (string, bool) {
	if _, ok := m.handlers[name]; ok {
		return name, true
	}
	ev, ok := m.intents[name]
	return ev, ok
}

// Events lists every event name in the catalog.
func (m *Machine) Events() []string {
	out := make([]string, 0, len(m.handlers))
	for _, t := range Catalog() {
		out = append(out, t.Event)
	}
	return out
}

// Handle runs the transition for turn.Event. The pending prefix in st is
// moved into the turn before the handler runs. A failing handler still
// yields an outcome, the problem follow-up, alongside its error.
func (m *Machine) Handle(ctx context.Context, st State, turn Turn) (State, Outcome, error) {
	event, ok := m.Resolve(turn.Event)
	if !ok {
		return st, Outcome{}, fmt.Errorf("%w: %q", ErrUnknownEvent, turn.Event)
	}
	turn.Event = event
	turn.Prefix = st.IntentPrefixContent
	st.IntentPrefixContent = nil

	next, out, err := m.handlers[event](ctx, m.deps, st, turn)
	if err != nil {
		m.deps.Logger.Error("transition failed", "event", event, "user_id", turn.userID(), "error", err)
		return next, followUp(EventProblem), fmt.Errorf("%s: %w", event, err)
	}
	if out.Kind == 0 {
		return next, followUp(EventProblem), fmt.Errorf("%s: handler returned no outcome", event)
	}
	return next, out, nil
}

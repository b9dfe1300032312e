package conversation

import (
	"context"
	"fmt"

	"github.com/user/blurt/internal/types"
)

// gate sends an anonymous caller to sign-in, remembering where to resume.
func gate(st State, turn Turn, own string) (State, Outcome, bool) {
	if turn.userID() != "" {
		return st, Outcome{}, false
	}
	st.LoginForwardIntentEvent = own
	next, out, _ := forward(st, turn, EventStartSignIn)
	return next, out, true
}

// user loads the caller's document. A missing document reads as an empty one.
func user(ctx context.Context, d *Deps, turn Turn) (*types.User, error) {
	uid := turn.userID()
	u, err := d.Store.User(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", uid, err)
	}
	if u == nil {
		return &types.User{ID: uid}, nil
	}
	return u, nil
}

func welcome(_ context.Context, _ *Deps, _ State, turn Turn) (State, Outcome, error) {
	st := State{
		IsEventDetails:    true,
		IsScheduleDetails: true,
		IsFromOverview:    true,
	}
	r := render(turn, nil, nil)
	st.IntentPrefixContent = &r
	return st, followUp(EventOverview), nil
}

func fallback(_ context.Context, _ *Deps, st State, turn Turn) (State, Outcome, error) {
	turn.Prefix = nil
	r := render(turn, nil, nil)
	return st, Outcome{Kind: OutcomeAsk, Reply: Reply{Speech: speak(r.Speech), DisplayText: r.DisplayText}}, nil
}

// closing ends the conversation with the template as is. It serves cancel,
// problem and login-problem.
func closing(_ context.Context, _ *Deps, st State, turn Turn) (State, Outcome, error) {
	return closeWith(st, render(turn, nil, nil))
}

func repeat(_ context.Context, _ *Deps, st State, turn Turn) (State, Outcome, error) {
	r := render(turn, nil, nil)
	if st.LastPrompt != nil {
		r = Reply{
			Speech:      r.Speech + " " + speechBreak + " " + st.LastPrompt.Speech,
			DisplayText: r.DisplayText + " " + st.LastPrompt.DisplayText,
		}
	}
	return st, Outcome{Kind: OutcomeAsk, Reply: Reply{Speech: speak(r.Speech), DisplayText: r.DisplayText}}, nil
}

func startSignIn(_ context.Context, _ *Deps, st State, turn Turn) (State, Outcome, error) {
	st.IntentPrefixContent = turn.Prefix
	return st, Outcome{Kind: OutcomeSignIn, Reply: unwrap(turn.Incoming)}, nil
}

func signedIn(ctx context.Context, d *Deps, st State, turn Turn) (State, Outcome, error) {
	if !turn.SignIn.OK() || turn.Identity == nil {
		return forward(st, turn, EventProblemLogin)
	}
	u, created, err := d.Store.EnsureUser(ctx, *turn.Identity, d.NewSignalID)
	if err != nil {
		return st, Outcome{}, err
	}
	d.Logger.Info("user signed in", "user_id", u.ID, "created", created)

	resume := st.LoginForwardIntentEvent
	st.LoginForwardIntentEvent = ""
	if resume == "" {
		return forward(st, turn, EventProblem)
	}
	return forward(st, turn, resume)
}

func signalID(ctx context.Context, d *Deps, st State, turn Turn) (State, Outcome, error) {
	if next, out, stop := gate(st, turn, EventSignalID); stop {
		return next, out, nil
	}
	u, err := d.Store.User(ctx, turn.userID())
	if err != nil {
		return st, Outcome{}, err
	}
	if u == nil || u.SignalID == "" {
		return forward(st, turn, EventProblem)
	}
	return ask(st, render(turn, map[string]string{"signal_id": u.SignalID}, nil))
}

package webhook

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/user/blurt/internal/conversation"
	"github.com/user/blurt/internal/dialog"
	"github.com/user/blurt/internal/gateway"
	"github.com/user/blurt/internal/types"
)

// fulfillmentRequest is one invocation from the dialogue runtime. Data is
// the state bag the runtime carries for the session.
type fulfillmentRequest struct {
	Session     string                     `json:"session"`
	Event       string                     `json:"event"`
	Query       string                     `json:"query"`
	Fulfillment conversation.Reply         `json:"fulfillment"`
	User        *types.Identity            `json:"user"`
	SignIn      *conversation.SignInResult `json:"sign_in"`
	Data        json.RawMessage            `json:"data"`
}

type replyBody struct {
	Speech             string `json:"speech"`
	DisplayText        string `json:"display_text"`
	ExpectUserResponse bool   `json:"expect_user_response"`
	SignIn             bool   `json:"sign_in,omitempty"`
}

type followupEvent struct {
	Name string `json:"name"`
}

type fulfillmentResponse struct {
	Reply         *replyBody      `json:"reply,omitempty"`
	FollowupEvent *followupEvent  `json:"followup_event,omitempty"`
	Data          json.RawMessage `json:"data"`
}

func (s *Server) handleFulfillment(w http.ResponseWriter, r *http.Request) {
	if s.deps.Gateway == nil {
		writeError(w, http.StatusServiceUnavailable, "fulfillment not configured")
		return
	}
	var req fulfillmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Session == "" || (req.Event == "" && req.Query == "") {
		writeError(w, http.StatusBadRequest, "session and one of event or query are required")
		return
	}
	st, err := conversation.DecodeState(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid data")
		return
	}
	if req.User != nil && req.User.Email == "" {
		req.User = nil
	}

	res, err := s.deps.Gateway.HandleInbound(r.Context(), &gateway.Inbound{
		SessionKey: types.NewSessionKey("fulfillment", req.Session),
		Source:     "fulfillment",
		Request: dialog.Request{
			Event:    req.Event,
			Text:     req.Query,
			Identity: req.User,
			SignIn:   req.SignIn,
		},
		State:    &st,
		Single:   true,
		Incoming: req.Fulfillment,
	})
	if err != nil {
		if errors.Is(err, conversation.ErrUnknownEvent) || errors.Is(err, dialog.ErrNoMatch) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("fulfillment failed", "session", req.Session, "event", req.Event, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	data, err := res.State.Encode()
	if err != nil {
		s.logger.Error("encode state failed", "session", req.Session, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toFulfillmentResponse(res.Outcome, data))
}

func toFulfillmentResponse(out conversation.Outcome, data json.RawMessage) fulfillmentResponse {
	resp := fulfillmentResponse{Data: data}
	switch out.Kind {
	case conversation.OutcomeFollowUp:
		resp.FollowupEvent = &followupEvent{Name: out.Event}
	case conversation.OutcomeSignIn:
		resp.Reply = &replyBody{Speech: out.Reply.Speech, DisplayText: out.Reply.DisplayText, ExpectUserResponse: true, SignIn: true}
	case conversation.OutcomeClose:
		resp.Reply = &replyBody{Speech: out.Reply.Speech, DisplayText: out.Reply.DisplayText}
	default:
		resp.Reply = &replyBody{Speech: out.Reply.Speech, DisplayText: out.Reply.DisplayText, ExpectUserResponse: true}
	}
	return resp
}

package conversation

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/user/blurt/internal/types"
)

// NextItemType records which screen produced the last reply, so that "yes",
// "skip" and "no" can be resolved on the following turn.
type NextItemType string

const (
	NextNone              NextItemType = ""
	NextAnnouncements     NextItemType = "ANNOUNCEMENTS"
	NextEvents            NextItemType = "EVENTS"
	NextSchedules         NextItemType = "SCHEDULES"
	NextSchedulesOverview NextItemType = "SCHEDULES_OVERVIEW"
	NextCancelSchedule    NextItemType = "CANCEL_SCHEDULE"
	NextDetailedSchedule  NextItemType = "DETAILED_SCHEDULE"
	NextNoSchedule        NextItemType = "NO_SCHEDULE"
)

func (n NextItemType) Valid() bool {
	switch n {
	case NextNone, NextAnnouncements, NextEvents, NextSchedules, NextSchedulesOverview,
		NextCancelSchedule, NextDetailedSchedule, NextNoSchedule:
		return true
	}
	return false
}

func (n *NextItemType) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal next item type: %w", err)
	}
	v := NextNone
	if s != nil {
		v = NextItemType(*s)
	}
	if !v.Valid() {
		// The runtime may carry tags from an older build. Treat them as no
		// pending screen so "yes" and "skip" fall back.
		slog.Warn("unknown next item type, ignoring", "value", string(v))
		v = NextNone
	}
	*n = v
	return nil
}

// Reply is a speech/display pair. Speech is kept without the <speak> wrapper.
type Reply struct {
	Speech      string `json:"speech"`
	DisplayText string `json:"display_text"`
}

// State is the per-session bag the dialogue runtime carries between turns.
// A nil list means no list is in progress; an empty non-nil list means the
// list was read to the end.
type State struct {
	EventsList        []*types.Item `json:"events_list"`
	SchedulesList     []*types.Item `json:"schedules_list"`
	AnnouncementsList []*types.Item `json:"announcements_list"`

	EventDetails        *types.Item `json:"event_details"`
	ScheduleDetails     *types.Item `json:"schedule_details"`
	AnnouncementDetails *types.Item `json:"announcement_details"`

	IsEventDetails    bool         `json:"is_event_details"`
	IsScheduleDetails bool         `json:"is_schedule_details"`
	NextItemType      NextItemType `json:"next_item_type"`
	IsFromOverview    bool         `json:"is_from_overview"`
	HasSchedule       bool         `json:"has_schedule"`

	LoginForwardIntentEvent string `json:"login_forward_intent_event"`
	IntentPrefixContent     *Reply `json:"intent_prefix_content"`
	LastPrompt              *Reply `json:"last_prompt"`
}

// DecodeState reads a state bag. Empty input is the zero state.
func DecodeState(data []byte) (State, error) {
	var st State
	if len(data) == 0 || string(data) == "null" {
		return st, nil
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	return st, nil
}

func (s State) Encode() (json.RawMessage, error) {
	return json.Marshal(s)
}

// rest returns the tail of list as a fresh non-nil slice.
func rest(list []*types.Item) []*types.Item {
	if len(list) <= 1 {
		return []*types.Item{}
	}
	return append([]*types.Item{}, list[1:]...)
}

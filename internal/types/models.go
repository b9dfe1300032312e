// internal/types/models.go
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Collection names a keyed set of documents in the store.
type Collection string

const (
	CollectionEvents        Collection = "events"
	CollectionAnnouncements Collection = "announcements"
	CollectionGroups        Collection = "groups"
	CollectionUsers         Collection = "users"
	CollectionAttendance    Collection = "events_attendance"
	CollectionDialogState   Collection = "dialog_state"

	CollectionEventsToNotify         Collection = "events_to_notify"
	CollectionEventsCancelled        Collection = "events_cancelled"
	CollectionAnnouncementsToNotify  Collection = "announcements_to_notify"
	CollectionAnnouncementsCancelled Collection = "announcements_cancelled"
)

// Kind distinguishes the two notifiable entity kinds.
type Kind string

const (
	KindEvent        Kind = "event"
	KindAnnouncement Kind = "announcement"
)

// Collection returns the collection holding documents of this kind.
func (k Kind) Collection() Collection {
	if k == KindAnnouncement {
		return CollectionAnnouncements
	}
	return CollectionEvents
}

// NotifyQueue returns the per-group notify queue collection for this kind.
func (k Kind) NotifyQueue() Collection {
	if k == KindAnnouncement {
		return CollectionAnnouncementsToNotify
	}
	return CollectionEventsToNotify
}

// CancelledQueue returns the per-group cancelled queue collection for this kind.
func (k Kind) CancelledQueue() Collection {
	if k == KindAnnouncement {
		return CollectionAnnouncementsCancelled
	}
	return CollectionEventsCancelled
}

// ParseKind accepts the singular or plural kind name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "event", "events":
		return KindEvent, nil
	case "announcement", "announcements":
		return KindAnnouncement, nil
	}
	return "", fmt.Errorf("unknown kind: %q", s)
}

// Flag is the tri-state active marker. Only the literal "TRUE" counts as set;
// JSON booleans are accepted and normalised.
type Flag string

const (
	FlagTrue  Flag = "TRUE"
	FlagFalse Flag = "FALSE"
)

func (f Flag) True() bool { return f == FlagTrue }

func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*f = FlagTrue
		} else {
			*f = FlagFalse
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal flag: %w", err)
	}
	*f = Flag(s)
	return nil
}

// Item is an event or an announcement. Announcements leave Location empty.
// Datetimes are wall-clock strings in the configured zone ("2006-01-02 15:04").
type Item struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Location      string   `json:"location,omitempty"`
	StartDatetime string   `json:"start_datetime"`
	EndDatetime   string   `json:"end_datetime"`
	IsActive      Flag     `json:"is_active"`
	Groups        []string `json:"groups,omitempty"`
}

type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name,omitempty"`
	Members []string `json:"members,omitempty"`
}

// User list field names, shared by the store and the conversation layer.
const (
	FieldEventsToNotify        = "events_to_notify"
	FieldAnnouncementsToNotify = "announcements_to_notify"
	FieldAnnouncementsListened = "announcements_listened"
	FieldEventsToAttend        = "events_to_attend"
)

type User struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name,omitempty"`
	Email                 string   `json:"email,omitempty"`
	Locale                string   `json:"locale,omitempty"`
	SignalID              string   `json:"signal_id,omitempty"`
	EventsToNotify        []string `json:"events_to_notify,omitempty"`
	AnnouncementsToNotify []string `json:"announcements_to_notify,omitempty"`
	AnnouncementsListened []string `json:"announcements_listened,omitempty"`
	EventsToAttend        []string `json:"events_to_attend,omitempty"`
	EventAudio            string   `json:"event_audio,omitempty"`
	AnnouncementAudio     string   `json:"announcement_audio,omitempty"`
	ScheduleAudio         string   `json:"schedule_audio,omitempty"`
	IsFromSheets          bool     `json:"is_from_sheets"`
}

// Attendance is keyed by event id.
type Attendance struct {
	CalendarEventID string   `json:"calendar_event_id,omitempty"`
	Attendance      []string `json:"attendance,omitempty"`
}

// Identity is the resolved external identity of the person talking to the assistant.
type Identity struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Locale string `json:"locale,omitempty"`
}

// JournalEntry records one resolved conversation turn.
type JournalEntry struct {
	TurnID    TurnID          `json:"turn_id"`
	SessionID SessionID       `json:"session_id"`
	Seq       int64           `json:"seq"`
	Source    string          `json:"source"`
	Events    []string        `json:"events"`
	UserID    string          `json:"user_id,omitempty"`
	At        time.Time       `json:"at"`
	Reply     json.RawMessage `json:"reply,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type SessionIndex struct {
	SessionID  SessionID  `json:"session_id"`
	SessionKey SessionKey `json:"session_key"`
	Source     string     `json:"source"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastTurnID TurnID     `json:"last_turn_id,omitempty"`
	Turns      int64      `json:"turns"`
}

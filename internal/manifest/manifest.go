// Package manifest exports the per-user notification manifest read by the
// blurt device: what to play, and when.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/blurt/internal/clock"
	"github.com/user/blurt/internal/conversation"
	"github.com/user/blurt/internal/entity"
	"github.com/user/blurt/internal/listset"
	"github.com/user/blurt/internal/types"
)

// Entry types and intent types understood by the device.
const (
	TypeInvite   = "invite"
	TypeNotice   = "notice"
	TypeReminder = "reminder"

	IntentAudio = "audio"
	IntentText  = "text"
)

// ErrNoSignalID is returned for users who have never been given a signal id.
var ErrNoSignalID = errors.New("user has no signal id")

// Entry is one scheduled blurt. StartTime is in unix seconds.
type Entry struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	IntentType  string `json:"intent_type"`
	StartTime   int64  `json:"start_time"`
	Language    string `json:"language"`
	Msg         string `json:"msg"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

type Manifest struct {
	Results      []Entry `json:"results"`
	IsFromSheets bool    `json:"is_from_sheets"`

	UserID   string `json:"-"`
	SignalID string `json:"-"`
}

// Builder assembles manifests from the entity store.
type Builder struct {
	store  *entity.Store
	clock  *clock.Clock
	assets *AssetNamer
}

// NewBuilder creates a Builder. assets may be nil, in which case audio URLs
// already on the user document are used as they are.
func NewBuilder(store *entity.Store, clk *clock.Clock, assets *AssetNamer) *Builder {
	return &Builder{store: store, clock: clk, assets: assets}
}

// Build returns the manifest for userID:
//
//	id 1     invite    audio, when events are waiting
//	id 2     notice    audio, when announcements are live (a minute after the invite)
//	id 3+i   reminder  text, one hour before each upcoming schedule
func (b *Builder) Build(ctx context.Context, userID string) (*Manifest, error) {
	user, err := b.store.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, entity.ErrNotFound)
	}
	if user.SignalID == "" {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNoSignalID)
	}
	if b.assets != nil {
		if user, err = b.assets.Ensure(ctx, b.store, user); err != nil {
			return nil, err
		}
	}

	events, err := b.store.Items(ctx, types.KindEvent, listset.Remove(user.EventsToNotify, user.EventsToAttend...))
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	announcements, err := b.store.Items(ctx, types.KindAnnouncement, listset.Remove(user.AnnouncementsToNotify, user.AnnouncementsListened...))
	if err != nil {
		return nil, fmt.Errorf("load announcements: %w", err)
	}
	schedules, err := b.store.Items(ctx, types.KindEvent, user.EventsToAttend)
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}

	m := &Manifest{
		Results:      []Entry{},
		IsFromSheets: user.IsFromSheets,
		UserID:       user.ID,
		SignalID:     user.SignalID,
	}
	lang := conversation.Language(user.Locale)
	now := b.clock.Now()

	invite := len(conversation.NotifiableEvents(b.clock, events, user.EventsToAttend)) > 0
	if invite {
		m.Results = append(m.Results, Entry{
			ID:         1,
			Type:       TypeInvite,
			IntentType: IntentAudio,
			StartTime:  now.Unix(),
			Language:   lang,
			Msg:        user.EventAudio,
		})
	}
	if len(conversation.LiveAnnouncements(b.clock, announcements)) > 0 {
		at := now
		if invite {
			at = at.Add(time.Minute)
		}
		m.Results = append(m.Results, Entry{
			ID:         2,
			Type:       TypeNotice,
			IntentType: IntentAudio,
			StartTime:  at.Unix(),
			Language:   lang,
			Msg:        user.AnnouncementAudio,
		})
	}
	for i, s := range conversation.UpcomingSchedules(b.clock, schedules) {
		start, err := b.clock.Parse(s.StartDatetime)
		if err != nil {
			continue
		}
		m.Results = append(m.Results, Entry{
			ID:          3 + i,
			Type:        TypeReminder,
			IntentType:  IntentText,
			StartTime:   start.Add(-time.Hour).Unix(),
			Language:    lang,
			Msg:         user.ScheduleAudio,
			Name:        s.Name,
			Description: s.Description,
		})
	}
	return m, nil
}

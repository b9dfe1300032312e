package calendar

import (
	"context"
	"fmt"
	"sync"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/user/blurt/internal/clock"
	"github.com/user/blurt/internal/types"
)

// Memory is an in-process calendar for local runs and tests. Setting Err
// makes every call fail with it.
type Memory struct {
	mu     sync.Mutex
	clock  *clock.Clock
	events map[string]*gcal.Event
	seq    int
	Err    error
}

func NewMemory(clk *clock.Clock) *Memory {
	return &Memory{clock: clk, events: map[string]*gcal.Event{}}
}

func (m *Memory) UpsertAttendee(_ context.Context, event *types.Item, user *types.User, ref string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	var attendees []*gcal.EventAttendee
	existing, ok := m.events[ref]
	if ok {
		attendees = existing.Attendees
	}
	next, err := buildEvent(m.clock, event, withAttendee(attendees, user.Email))
	if err != nil {
		return "", err
	}
	if !ok {
		m.seq++
		ref = fmt.Sprintf("cal-%d", m.seq)
	}
	next.ID = ref
	m.events[ref] = next
	return ref, nil
}

func (m *Memory) RemoveAttendee(_ context.Context, event *types.Item, user *types.User, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if ref == "" {
		return ErrNoCalendarRef
	}
	existing, ok := m.events[ref]
	if !ok {
		return fmt.Errorf("calendar event %s: %w", ref, ErrNoCalendarRef)
	}
	next, err := buildEvent(m.clock, event, withoutAttendee(existing.Attendees, user.Email))
	if err != nil {
		return err
	}
	next.ID = ref
	m.events[ref] = next
	return nil
}

// Event returns a copy of the stored calendar event.
func (m *Memory) Event(ref string) (*gcal.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[ref]
	if !ok {
		return nil, false
	}
	out := *ev
	out.Attendees = make([]*gcal.EventAttendee, len(ev.Attendees))
	for i, a := range ev.Attendees {
		cp := *a
		out.Attendees[i] = &cp
	}
	return &out, true
}

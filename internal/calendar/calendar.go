// Package calendar records event attendance in an external calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/user/blurt/internal/clock"
	"github.com/user/blurt/internal/types"
)

// ErrNoCalendarRef is returned when removing an attendee from an event that
// was never written to the calendar.
var ErrNoCalendarRef = errors.New("no calendar reference")

// Calendar adds and removes attendees. ref is the calendar's own id for the
// event; UpsertAttendee creates the calendar event when ref is empty or
// unknown and returns the id to store.
type Calendar interface {
	UpsertAttendee(ctx context.Context, event *types.Item, user *types.User, ref string) (string, error)
	RemoveAttendee(ctx context.Context, event *types.Item, user *types.User, ref string) error
}

// ReminderMinutes is the lead time of every reminder override.
const ReminderMinutes = 60

// buildEvent renders item into a calendar event carrying attendees, with
// times in clk's location.
func buildEvent(clk *clock.Clock, item *types.Item, attendees []*gcal.EventAttendee) (*gcal.Event, error) {
	start, err := clk.Parse(item.StartDatetime)
	if err != nil {
		return nil, fmt.Errorf("event %s start: %w", item.ID, err)
	}
	end, err := clk.Parse(item.EndDatetime)
	if err != nil {
		return nil, fmt.Errorf("event %s end: %w", item.ID, err)
	}
	zone := clk.Location().String()
	if attendees == nil {
		attendees = []*gcal.EventAttendee{}
	}
	return &gcal.Event{
		Summary:     item.Name,
		Location:    item.Location,
		Description: item.Description,
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: zone},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: zone},
		Attendees:   attendees,
		Reminders: &gcal.EventReminders{
			Overrides: []*gcal.EventReminder{
				{Method: "popup", Minutes: ReminderMinutes},
				{Method: "email", Minutes: ReminderMinutes},
				{Method: "sms", Minutes: ReminderMinutes},
			},
			// UseDefault is false and would otherwise be dropped.
			ForceSendFields: []string{"UseDefault"},
		},
		// Send an empty list so removing the last attendee clears it.
		ForceSendFields: []string{"Attendees"},
	}, nil
}

func withAttendee(list []*gcal.EventAttendee, email string) []*gcal.EventAttendee {
	for _, a := range list {
		if strings.EqualFold(a.Email, email) {
			return list
		}
	}
	return append(append([]*gcal.EventAttendee{}, list...), &gcal.EventAttendee{Email: email})
}

func withoutAttendee(list []*gcal.EventAttendee, email string) []*gcal.EventAttendee {
	out := make([]*gcal.EventAttendee, 0, len(list))
	for _, a := range list {
		if strings.EqualFold(a.Email, email) {
			continue
		}
		out = append(out, a)
	}
	return out
}

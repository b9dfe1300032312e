package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/user/blurt/internal/clock"
	"github.com/user/blurt/internal/types"
)

// DefaultBaseURL is the Calendar v3 REST root.
const DefaultBaseURL = "https://www.googleapis.com/calendar/v3"

// Google writes attendance through the Calendar v3 API. The HTTP client is
// expected to carry credentials, usually one built by NewOAuthClient.
type Google struct {
	events     *gcal.EventsService
	calendarID string
	clock      *clock.Clock
}

// NewGoogle creates a client for calendarID ("primary" when empty). baseURL
// overrides the API root.
func NewGoogle(ctx context.Context, client *http.Client, baseURL, calendarID string, clk *clock.Clock) (*Google, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	opts := []option.ClientOption{option.WithEndpoint(strings.TrimRight(baseURL, "/") + "/")}
	if client != nil {
		opts = append(opts, option.WithHTTPClient(client))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &Google{events: svc.Events, calendarID: calendarID, clock: clk}, nil
}

func (g *Google) UpsertAttendee(ctx context.Context, event *types.Item, user *types.User, ref string) (string, error) {
	var existing *gcal.Event
	if ref != "" {
		found, err := g.get(ctx, ref)
		if err != nil {
			return "", err
		}
		existing = found
	}

	var attendees []*gcal.EventAttendee
	if existing != nil {
		attendees = existing.Attendees
	}
	body, err := buildEvent(g.clock, event, withAttendee(attendees, user.Email))
	if err != nil {
		return "", err
	}

	if existing == nil {
		slog.Debug("creating calendar event", "event", event.ID)
		created, err := g.events.Insert(g.calendarID, body).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("insert calendar event: %w", err)
		}
		return created.Id, nil
	}
	if _, err := g.events.Patch(g.calendarID, ref, body).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("patch calendar event %s: %w", ref, err)
	}
	return ref, nil
}

func (g *Google) RemoveAttendee(ctx context.Context, event *types.Item, user *types.User, ref string) error {
	if ref == "" {
		return ErrNoCalendarRef
	}
	existing, err := g.get(ctx, ref)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("calendar event %s: %w", ref, ErrNoCalendarRef)
	}
	body, err := buildEvent(g.clock, event, withoutAttendee(existing.Attendees, user.Email))
	if err != nil {
		return err
	}
	if _, err := g.events.Patch(g.calendarID, ref, body).Context(ctx).Do(); err != nil {
		return fmt.Errorf("patch calendar event %s: %w", ref, err)
	}
	return nil
}

// get returns nil when the calendar no longer knows the event.
func (g *Google) get(ctx context.Context, id string) (*gcal.Event, error) {
	ev, err := g.events.Get(g.calendarID, id).Context(ctx).Do()
	if err != nil {
		if StatusCode(err) == http.StatusNotFound || StatusCode(err) == http.StatusGone {
			return nil, nil
		}
		return nil, fmt.Errorf("get calendar event %s: %w", id, err)
	}
	return ev, nil
}

// StatusCode is the HTTP status of a calendar API error, or 0 when err did
// not come from the API.
func StatusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

package conversation

import (
	"context"
	"strconv"

	"github.com/user/blurt/internal/entity"
	"github.com/user/blurt/internal/types"
)

func eventValues(d *Deps, it *types.Item, locale string) map[string]string {
	values := map[string]string{
		"event_name":        it.Name,
		"event_location":    it.Location,
		"event_description": it.Description,
	}
	if start, end, ok := d.Clock.Window(it.StartDatetime, it.EndDatetime); ok {
		values["event_start"] = FormatDate(start, locale)
		values["event_end"] = FormatDate(end, locale)
	}
	return values
}

// eventsList reads pending invitations one per turn. A fresh request filters
// and sorts the user's queue and drops started or attended events from it;
// later requests pop the cached remainder.
func eventsList(ctx context.Context, d *Deps, st State, turn Turn) (State, Outcome, error) {
	if next, out, stop := gate(st, turn, EventEvents); stop {
		return next, out, nil
	}
	if turn.Query != EventEvents {
		st.IsFromOverview = false
	}
	st.SchedulesList = nil
	st.AnnouncementDetails = nil
	st.ScheduleDetails = nil
	st.EventDetails = nil
	st.NextItemType = NextEvents

	u, err := user(ctx, d, turn)
	if err != nil {
		return st, Outcome{}, err
	}

	fresh := st.EventsList == nil
	var total int
	if fresh {
		items, err := d.Store.Items(ctx, types.KindEvent, u.EventsToNotify)
		if err != nil {
			return st, Outcome{}, err
		}
		valid, stale := filterEvents(d.Clock, items, u.EventsToAttend)
		if err := d.Store.Remove(ctx, entity.UserList(u.ID, types.FieldEventsToNotify), stale...); err != nil {
			return st, Outcome{}, err
		}
		total = len(valid)
		if total > 0 {
			st.EventDetails = valid[0]
			st.EventsList = rest(valid)
			st.IsEventDetails = true
		}
	} else if len(st.EventsList) > 0 {
		st.EventDetails = st.EventsList[0]
		st.EventsList = rest(st.EventsList)
		st.IsEventDetails = true
	}

	schedules, err := d.Store.Items(ctx, types.KindEvent, u.EventsToAttend)
	if err != nil {
		return st, Outcome{}, err
	}
	st.HasSchedule = upcoming(d.Clock, schedules)

	if st.EventDetails == nil {
		return forward(st, turn, afterEvents(st))
	}

	if !fresh {
		if len(st.EventsList) == 0 {
			return forward(st, turn, EventEventsLast)
		}
		return forward(st, turn, EventEventsMiddle)
	}

	values := eventValues(d, st.EventDetails, turn.locale())
	values["events_count"] = strconv.Itoa(total)
	return ask(st, render(turn, values, more(len(st.EventsList))))
}

// eventsItem reads the event popped by eventsList, in the middle or last
// position.
func eventsItem(_ context.Context, d *Deps, st State, turn Turn) (State, Outcome, error) {
	if st.EventDetails == nil {
		return forward(st, turn, EventProblem)
	}
	return ask(st, render(turn, eventValues(d, st.EventDetails, turn.locale()), nil))
}

func eventDetails(_ context.Context, d *Deps, st State, turn Turn) (State, Outcome, error) {
	if st.EventDetails == nil {
		return forward(st, turn, EventProblem)
	}
	st.IsEventDetails = false
	return ask(st, render(turn, eventValues(d, st.EventDetails, turn.locale()), nil))
}

func noEvents(_ context.Context, _ *Deps, st State, turn Turn) (State, Outcome, error) {
	st.EventsList = nil
	return ask(st, render(turn, nil, nil))
}

// commitAttendance records that the caller attends the current event: the
// calendar first, then the attendance record, then the user's queues. The
// first failing step aborts the rest.
func commitAttendance(ctx context.Context, d *Deps, turn Turn, ev *types.Item) error {
	uid := turn.userID()
	attendance, err := d.Store.Attendance(ctx, ev.ID)
	if err != nil {
		return err
	}
	ref := ""
	if attendance != nil {
		ref = attendance.CalendarEventID
	}
	who := &types.User{ID: uid, Email: turn.Identity.Email, Name: turn.Identity.Name}
	ref, err = d.Calendar.UpsertAttendee(ctx, ev, who, ref)
	if err != nil {
		return err
	}
	if err := d.Store.RecordAttendance(ctx, ev.ID, ref, uid); err != nil {
		return err
	}
	if err := d.Store.Add(ctx, entity.UserList(uid, types.FieldEventsToAttend), ev.ID); err != nil {
		return err
	}
	return d.Store.Remove(ctx, entity.UserList(uid, types.FieldEventsToNotify), ev.ID)
}

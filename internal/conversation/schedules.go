package conversation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/user/blurt/internal/entity"
	"github.com/user/blurt/internal/types"
)

func scheduleValues(d *Deps, it *types.Item, locale string) map[string]string {
	values := map[string]string{
		"schedule_name":        it.Name,
		"schedule_location":    it.Location,
		"schedule_description": it.Description,
	}
	if start, _, ok := d.Clock.Window(it.StartDatetime, it.EndDatetime); ok {
		values["schedule_start"] = FormatDate(start, locale)
	}
	return values
}

// attended loads the caller's attended events that are still ahead, sorted,
// and drops started ones from the attend list.
func attended(ctx context.Context, d *Deps, turn Turn) ([]*types.Item, error) {
	u, err := user(ctx, d, turn)
	if err != nil {
		return nil, err
	}
	items, err := d.Store.Items(ctx, types.KindEvent, u.EventsToAttend)
	if err != nil {
		return nil, err
	}
	valid, stale := filterSchedules(d.Clock, items)
	if err := d.Store.Remove(ctx, entity.UserList(u.ID, types.FieldEventsToAttend), stale...); err != nil {
		return nil, err
	}
	return valid, nil
}

func resetForSchedules(st State) State {
	st.EventsList = nil
	st.EventDetails = nil
	st.ScheduleDetails = nil
	st.IsEventDetails = true
	st.IsScheduleDetails = true
	return st
}

// schedulesOverview tells how many attended events are coming up and offers
// to list them.
func schedulesOverview(ctx context.Context, d *Deps, st State, turn Turn) (State, Outcome, error) {
	if next, out, stop := gate(st, turn, EventSchedulesOverview); stop {
		return next, out, nil
	}
	if turn.Query != EventSchedulesOverview {
		st.IsFromOverview = false
	}
	st = resetForSchedules(st)
	st.SchedulesList = nil
	st.NextItemType = NextSchedulesOverview

	valid, err := attended(ctx, d, turn)
	if err != nil {
		return st, Outcome{}, err
	}
	if len(valid) == 0 {
		return forward(st, turn, EventNoOverview)
	}
	return ask(st, render(turn, map[string]string{"total_schedules": strconv.Itoa(len(valid))}, nil))
}

func schedulesList(ctx context.Context, d *Deps, st State, turn Turn) (State, Outcome, error) {
	if next, out, stop := gate(st, turn, EventSchedules); stop {
		return next, out, nil
	}
	if turn.Query != EventSchedules {
		st.IsFromOverview = false
	}
	st = resetForSchedules(st)
	st.NextItemType = NextSchedules

	fresh := st.SchedulesList == nil
	var total int
	if fresh {
		valid, err := attended(ctx, d, turn)
		if err != nil {
			return st, Outcome{}, err
		}
		total = len(valid)
		if total > 0 {
			st.ScheduleDetails = valid[0]
			st.SchedulesList = rest(valid)
		}
	} else if len(st.SchedulesList) > 0 {
		st.ScheduleDetails = st.SchedulesList[0]
		st.SchedulesList = rest(st.SchedulesList)
	}

	if st.ScheduleDetails == nil {
		if st.IsFromOverview {
			return forward(st, turn, EventNoOverview)
		}
		return forward(st, turn, EventNoSchedules)
	}
	if !fresh {
		if len(st.SchedulesList) == 0 {
			return forward(st, turn, EventSchedulesLast)
		}
		return forward(st, turn, EventSchedulesMiddle)
	}

	values := scheduleValues(d, st.ScheduleDetails, turn.locale())
	values["schedules_count"] = strconv.Itoa(total)
	return ask(st, render(turn, values, more(len(st.SchedulesList))))
}

func schedulesItem(_ context.Context, d *Deps, st State, turn Turn) (State, Outcome, error) {
	st.NextItemType = NextSchedules
	if st.ScheduleDetails == nil {
		return forward(st, turn, EventProblem)
	}
	return ask(st, render(turn, scheduleValues(d, st.ScheduleDetails, turn.locale()), nil))
}

// scheduleDetails reads the full schedule. Templates may address it with
// either the event_ or the schedule_ placeholders.
func scheduleDetails(_ context.Context, d *Deps, st State, turn Turn) (State, Outcome, error) {
	if st.ScheduleDetails == nil {
		return forward(st, turn, EventProblem)
	}
	st.NextItemType = NextDetailedSchedule
	st.IsScheduleDetails = false

	values := scheduleValues(d, st.ScheduleDetails, turn.locale())
	for k, v := range eventValues(d, st.ScheduleDetails, turn.locale()) {
		values[k] = v
	}
	return ask(st, render(turn, values, more(len(st.SchedulesList))))
}

func noSchedules(_ context.Context, _ *Deps, st State, turn Turn) (State, Outcome, error) {
	st.SchedulesList = nil
	st.NextItemType = NextNoSchedule
	return closeWith(st, render(turn, nil, nil))
}

func cancelSchedule(_ context.Context, d *Deps, st State, turn Turn) (State, Outcome, error) {
	if next, out, stop := gate(st, turn, EventCancelSchedule); stop {
		return next, out, nil
	}
	if st.ScheduleDetails == nil {
		return forward(st, turn, EventProblem)
	}
	st.NextItemType = NextCancelSchedule
	return ask(st, render(turn, scheduleValues(d, st.ScheduleDetails, turn.locale()), nil))
}

func cancelDeclined(_ context.Context, _ *Deps, st State, turn Turn) (State, Outcome, error) {
	r := render(turn, nil, nil)
	st.IntentPrefixContent = &r
	return advance(st)
}

// cancelConfirmed takes the caller off the calendar event, moves the event
// back to the notify queue and goes on with the next schedule.
func cancelConfirmed(ctx context.Context, d *Deps, st State, turn Turn) (State, Outcome, error) {
	if next, out, stop := gate(st, turn, EventCancelConfirmed); stop {
		return next, out, nil
	}
	ev := st.ScheduleDetails
	if ev == nil {
		return forward(st, turn, EventProblem)
	}
	if err := revokeAttendance(ctx, d, turn, ev); err != nil {
		return st, Outcome{}, err
	}
	r := render(turn, scheduleValues(d, ev, turn.locale()), nil)
	st.IntentPrefixContent = &r
	return advance(st)
}

func revokeAttendance(ctx context.Context, d *Deps, turn Turn, ev *types.Item) error {
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
	if err := d.Calendar.RemoveAttendee(ctx, ev, who, ref); err != nil {
		return fmt.Errorf("remove %s from %s: %w", uid, ev.ID, err)
	}
	if err := d.Store.Remove(ctx, entity.UserList(uid, types.FieldEventsToAttend), ev.ID); err != nil {
		return err
	}
	return d.Store.Add(ctx, entity.UserList(uid, types.FieldEventsToNotify), ev.ID)
}

// advance moves to the next cached schedule after a cancel prompt.
func advance(st State) (State, Outcome, error) {
	st.ScheduleDetails = nil
	if len(st.SchedulesList) > 0 {
		st.ScheduleDetails = st.SchedulesList[0]
	}
	st.SchedulesList = rest(st.SchedulesList)
	switch {
	case len(st.SchedulesList) > 0:
		return st, followUp(EventSchedulesMiddle), nil
	case st.ScheduleDetails != nil:
		return st, followUp(EventSchedulesLast), nil
	default:
		return st, followUp(EventNoSchedules), nil
	}
}

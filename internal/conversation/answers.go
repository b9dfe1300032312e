package conversation

import (
	"context"
)

// afterEvents picks where to go once the events list has nothing more.
func afterEvents(st State) string {
	switch {
	case !st.IsFromOverview:
		return EventNoEvents
	case st.HasSchedule:
		return EventSchedulesOverview
	default:
		return EventNoOverview
	}
}

// attend resolves "yes" against the screen that asked.
func attend(ctx context.Context, d *Deps, st State, turn Turn) (State, Outcome, error) {
	switch st.NextItemType {
	case NextEvents:
		ev := st.EventDetails
		if ev == nil {
			return forward(st, turn, EventProblem)
		}
		if st.IsEventDetails {
			return forward(st, turn, EventEventDetails)
		}
		if next, out, stop := gate(st, turn, EventAttend); stop {
			return next, out, nil
		}
		if err := commitAttendance(ctx, d, turn, ev); err != nil {
			return st, Outcome{}, err
		}
		d.Logger.Info("attendance recorded", "event_id", ev.ID, "user_id", turn.userID())
		r := render(turn, eventValues(d, ev, turn.locale()), nil)
		st.IntentPrefixContent = &r
		return st, followUp(EventEvents), nil

	case NextCancelSchedule:
		if st.ScheduleDetails == nil {
			return forward(st, turn, EventProblem)
		}
		return forward(st, turn, EventCancelConfirmed)

	case NextSchedulesOverview:
		return forward(st, turn, EventSchedules)

	case NextDetailedSchedule, NextSchedules:
		if st.ScheduleDetails == nil {
			return forward(st, turn, EventProblem)
		}
		if st.IsScheduleDetails {
			return forward(st, turn, EventScheduleDetails)
		}
		return forward(st, turn, EventSchedules)

	case NextAnnouncements:
		if len(st.AnnouncementsList) > 0 {
			return forward(st, turn, EventAnnouncements)
		}
		return forward(st, turn, EventNoAnnouncements)
	}
	return forward(st, turn, EventFallback)
}

// skip resolves "next" against the screen that asked.
func skip(_ context.Context, _ *Deps, st State, turn Turn) (State, Outcome, error) {
	switch st.NextItemType {
	case NextEvents:
		return skipEvent(st, turn)
	case NextSchedulesOverview:
		return forward(st, turn, EventNoOverview)
	case NextCancelSchedule:
		return forward(st, turn, EventCancelDeclined)
	case NextSchedules, NextDetailedSchedule:
		if len(st.SchedulesList) > 0 {
			return forward(st, turn, EventSchedules)
		}
		if st.IsFromOverview {
			return forward(st, turn, EventNoOverview)
		}
		return forward(st, turn, EventNoSchedules)
	case NextAnnouncements:
		return forward(st, turn, EventAnnouncements)
	}
	return forward(st, turn, EventFallback)
}

// skipEvent leaves the current event unanswered. The template is said in
// front of the next event; when none is left it is dropped.
func skipEvent(st State, turn Turn) (State, Outcome, error) {
	if len(st.EventsList) == 0 {
		st.IntentPrefixContent = nil
		return st, followUp(afterEvents(st)), nil
	}
	r := render(turn, nil, nil)
	st.IntentPrefixContent = &r
	return st, followUp(EventEvents), nil
}

// decline resolves "no" against the screen that asked.
func decline(_ context.Context, _ *Deps, st State, turn Turn) (State, Outcome, error) {
	switch st.NextItemType {
	case NextEvents:
		r := render(turn, nil, nil)
		st.IntentPrefixContent = &r
		if len(st.EventsList) == 0 {
			return st, followUp(afterEvents(st)), nil
		}
		return st, followUp(EventEvents), nil
	case NextCancelSchedule:
		return forward(st, turn, EventCancelDeclined)
	case NextSchedulesOverview:
		return forward(st, turn, EventNoOverview)
	}
	return forward(st, turn, EventCancel)
}

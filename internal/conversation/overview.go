package conversation

import (
	"context"
	"strconv"
	"strings"

	"github.com/user/blurt/internal/entity"
	"github.com/user/blurt/internal/listset"
	"github.com/user/blurt/internal/types"
)

// markListened moves announcements from the notify queue to the listened
// list of the user.
func markListened(ctx context.Context, d *Deps, uid string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := d.Store.Add(ctx, entity.UserList(uid, types.FieldAnnouncementsListened), ids...); err != nil {
		return err
	}
	return d.Store.Remove(ctx, entity.UserList(uid, types.FieldAnnouncementsToNotify), ids...)
}

// notices reads out every announcement in order.
func notices(items []*types.Item, locale string, overview bool) Reply {
	var speech, display strings.Builder
	for i, it := range items {
		lead := noticeLead(i, len(items), locale, overview)
		speech.WriteString(lead + speechBreak + it.Name + ". " + speechBreak + " " + it.Description + " " + speechBreak)
		display.WriteString(lead + it.Name + ".")
		if !overview {
			display.WriteString(" ")
		}
	}
	return Reply{Speech: speech.String(), DisplayText: display.String()}
}

// overview greets the user with counts, reads the live announcements and
// hands the result as a prefix to the first list that has something to say.
func overview(ctx context.Context, d *Deps, st State, turn Turn) (State, Outcome, error) {
	if next, out, stop := gate(st, turn, EventOverview); stop {
		return next, out, nil
	}
	uid := turn.userID()
	u, err := user(ctx, d, turn)
	if err != nil {
		return st, Outcome{}, err
	}

	st.EventsList = nil
	st.SchedulesList = nil
	st.AnnouncementsList = nil
	st.IsFromOverview = true

	announcements, err := d.Store.Items(ctx, types.KindAnnouncement, u.AnnouncementsToNotify)
	if err != nil {
		return st, Outcome{}, err
	}
	live, ended := filterAnnouncements(d.Clock, announcements)
	if err := markListened(ctx, d, uid, listset.Add(ended, ids(live)...)); err != nil {
		return st, Outcome{}, err
	}

	pending := listset.Remove(u.EventsToNotify, u.EventsToAttend...)
	events, err := d.Store.Items(ctx, types.KindEvent, pending)
	if err != nil {
		return st, Outcome{}, err
	}
	validEvents, _ := filterEvents(d.Clock, events, u.EventsToAttend)

	schedules, err := d.Store.Items(ctx, types.KindEvent, u.EventsToAttend)
	if err != nil {
		return st, Outcome{}, err
	}
	st.HasSchedule = upcoming(d.Clock, schedules)

	r := render(turn, map[string]string{
		"greetings":           Greeting(d.Clock.Now(), turn.locale()),
		"name":                turn.name(),
		"announcements_count": strconv.Itoa(len(live)),
		"events_count":        strconv.Itoa(len(validEvents)),
	}, nil)
	n := notices(live, turn.locale(), true)
	r.Speech += n.Speech
	r.DisplayText += n.DisplayText
	st.IntentPrefixContent = &r

	switch {
	case len(validEvents) > 0:
		return st, followUp(EventEvents), nil
	case st.HasSchedule:
		return st, followUp(EventSchedulesOverview), nil
	default:
		return st, followUp(EventNoOverview), nil
	}
}

func noOverview(_ context.Context, _ *Deps, st State, turn Turn) (State, Outcome, error) {
	return closeWith(st, render(turn, map[string]string{"name": turn.name()}, nil))
}

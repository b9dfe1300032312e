package conversation

import (
	"context"
	"strconv"

	"github.com/user/blurt/internal/listset"
	"github.com/user/blurt/internal/types"
)

func announcementValues(it *types.Item, locale string, d *Deps) map[string]string {
	values := map[string]string{
		"announcement_name":        it.Name,
		"announcement_description": it.Description,
	}
	if start, end, ok := d.Clock.Window(it.StartDatetime, it.EndDatetime); ok {
		values["announcement_start"] = FormatDate(start, locale)
		values["announcement_end"] = FormatDate(end, locale)
	}
	return values
}

// announcementsList reads live announcements one at a time. Everything read
// or expired moves to the listened list on the first, fresh request.
func announcementsList(ctx context.Context, d *Deps, st State, turn Turn) (State, Outcome, error) {
	if next, out, stop := gate(st, turn, EventAnnouncements); stop {
		return next, out, nil
	}
	if turn.Query != EventAnnouncements {
		st.IsFromOverview = false
	}
	st.EventsList = nil
	st.SchedulesList = nil
	st.EventDetails = nil
	st.ScheduleDetails = nil
	st.IsEventDetails = true
	st.IsScheduleDetails = true
	st.NextItemType = NextAnnouncements

	if st.AnnouncementsList != nil {
		if len(st.AnnouncementsList) == 0 {
			return forward(st, turn, EventNoAnnouncements)
		}
		st.AnnouncementDetails = st.AnnouncementsList[0]
		st.AnnouncementsList = rest(st.AnnouncementsList)
		if len(st.AnnouncementsList) == 0 {
			return forward(st, turn, EventAnnouncementsLast)
		}
		return forward(st, turn, EventAnnouncementsMiddle)
	}

	u, err := user(ctx, d, turn)
	if err != nil {
		return st, Outcome{}, err
	}
	items, err := d.Store.Items(ctx, types.KindAnnouncement, u.AnnouncementsToNotify)
	if err != nil {
		return st, Outcome{}, err
	}
	live, ended := filterAnnouncements(d.Clock, items)
	if err := markListened(ctx, d, u.ID, listset.Add(ended, ids(live)...)); err != nil {
		return st, Outcome{}, err
	}
	if len(live) == 0 {
		st.AnnouncementDetails = nil
		return forward(st, turn, EventNoAnnouncements)
	}

	head := live[0]
	st.AnnouncementDetails = head
	st.AnnouncementsList = rest(live)

	all := notices(live, turn.locale(), false)
	speech := announcementValues(head, turn.locale(), d)
	speech["announcements_count"] = strconv.Itoa(len(live))
	display := make(map[string]string, len(speech)+1)
	for k, v := range speech {
		display[k] = v
	}
	speech["notices_list"] = all.Speech
	display["notices_list"] = all.DisplayText

	r := fillSides(unwrap(turn.Incoming), speech, display)
	r = glue(turn.Prefix, optional(r, len(st.AnnouncementsList) > 0))
	return ask(st, r)
}

// announcementsItem reads the announcement popped by announcementsList. It
// serves both the middle and the last position.
func announcementsItem(_ context.Context, d *Deps, st State, turn Turn) (State, Outcome, error) {
	it := st.AnnouncementDetails
	if it == nil {
		return forward(st, turn, EventProblem)
	}
	st.NextItemType = NextAnnouncements
	return ask(st, render(turn, announcementValues(it, turn.locale(), d), more(len(st.AnnouncementsList))))
}

func noAnnouncements(_ context.Context, _ *Deps, st State, turn Turn) (State, Outcome, error) {
	st.AnnouncementsList = nil
	st.AnnouncementDetails = nil
	return ask(st, render(turn, nil, nil))
}

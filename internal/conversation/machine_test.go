package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/blurt/internal/calendar"
	"github.com/user/blurt/internal/clock"
	"github.com/user/blurt/internal/entity"
	"github.com/user/blurt/internal/state"
	"github.com/user/blurt/internal/types"
)

var ann = &types.Identity{Email: "ann@example.com", Name: "Ann", Locale: "en-US"}

func tpl(s string) Reply { return Reply{Speech: "<speak>" + s + "</speak>", DisplayText: s} }

var templates = map[string]Reply{
	EventWelcome:         tpl("Hi"),
	EventOverview:        tpl("greetings name, announcements_count notices and events_count invitations."),
	EventNoOverview:      tpl("Nothing else."),
	EventStartSignIn:     tpl("To get your account details"),
	EventProblemLogin:    tpl("Sign-in failed."),
	EventProblem:         tpl("Something went wrong."),
	EventEvents:          tpl("events_count invitations. event_name on event_start.[ More to come.]"),
	EventEventsMiddle:    tpl("Next, event_name on event_start."),
	EventEventsLast:      tpl("Lastly, event_name on event_start."),
	EventEventDetails:    tpl("event_name at event_location until event_end."),
	EventNoEvents:        tpl("No more invitations."),
	EventSkip:            tpl("Skipped"),
	EventDecline:         tpl("Declined"),
	EventAttend:          tpl("Added event_name"),
	EventSchedules:       tpl("schedules_count plans. schedule_name on schedule_start.[ More.]"),
	EventSchedulesMiddle: tpl("Next plan schedule_name."),
	EventSchedulesLast:   tpl("Last plan schedule_name."),
	EventNoSchedules:     tpl("No more plans."),
	EventCancelSchedule:  tpl("Cancel schedule_name?"),
	EventCancelConfirmed: tpl("Cancelled schedule_name"),
	EventCancelDeclined:  tpl("Kept it"),
	EventRepeat:          tpl("Sure."),
	EventSignalID:        tpl("Your id is signal_id."),

	EventSchedulesOverview: tpl("You have total_schedules plans."),

	EventAnnouncements:       tpl("announcements_count notices. announcement_name.[ More follows.]"),
	EventAnnouncementsMiddle: tpl("Next, announcement_name.[ More follows.]"),
	EventAnnouncementsLast:   tpl("Finally, announcement_name.[ More follows.]"),
	EventNoAnnouncements:     tpl("No more notices."),
}

type fixture struct {
	store *entity.Store
	clock *clock.Clock
	cal   *calendar.Memory
	m     *Machine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation(clock.DefaultZone)
	require.NoError(t, err)
	clk := clock.Fixed(loc, time.Date(2026, 3, 1, 10, 0, 0, 0, loc))
	store := entity.New(state.NewFileStore(t.TempDir()))
	cal := calendar.NewMemory(clk)
	m := NewMachine(&Deps{
		Store:       store,
		Calendar:    cal,
		Clock:       clk,
		NewSignalID: func() string { return "amber-brook-cedar" },
	})
	return &fixture{store: store, clock: clk, cal: cal, m: m}
}

// drive runs event and every follow-up it produces, the way the dialogue
// runtime does, and returns the terminal outcome with the events visited.
func (f *fixture) drive(t *testing.T, st State, turn Turn) (State, Outcome, []string) {
	t.Helper()
	if turn.Incoming == (Reply{}) {
		turn.Incoming = templates[turn.Event]
	}
	var visited []string
	for hop := 0; hop < 6; hop++ {
		visited = append(visited, turn.Event)
		next, out, err := f.m.Handle(context.Background(), st, turn)
		require.NoError(t, err, "event %s", turn.Event)
		st = next
		if out.Terminal() {
			return st, out, visited
		}
		turn.Event = out.Event
		turn.Query = out.Event
		turn.Incoming = templates[out.Event]
	}
	t.Fatalf("too many follow-ups: %v", visited)
	return st, Outcome{}, nil
}

func (f *fixture) signUp(t *testing.T) string {
	t.Helper()
	u, _, err := f.store.EnsureUser(context.Background(), *ann, nil)
	require.NoError(t, err)
	return u.ID
}

func (f *fixture) putEvent(t *testing.T, id, start string) {
	t.Helper()
	it := &types.Item{ID: id, Name: "Event " + id, Location: "Hall", StartDatetime: start, EndDatetime: "2026-03-10 18:00", IsActive: types.FlagTrue}
	require.NoError(t, f.store.Put(context.Background(), types.CollectionEvents, id, it))
}

func (f *fixture) list(t *testing.T, uid, field string) []string {
	t.Helper()
	l, err := f.store.ChildList(context.Background(), entity.UserList(uid, field))
	require.NoError(t, err)
	return l
}

func (f *fixture) threeEvents(t *testing.T) string {
	t.Helper()
	uid := f.signUp(t)
	f.putEvent(t, "e1", "2026-03-05 09:00")
	f.putEvent(t, "e2", "2026-03-03 09:00")
	f.putEvent(t, "e3", "2026-03-04 09:00")
	require.NoError(t, f.store.Add(context.Background(), entity.UserList(uid, types.FieldEventsToNotify), "e1", "e2", "e3"))
	return uid
}

func TestUnknownEvent(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.m.Handle(context.Background(), State{}, Turn{Event: "NOPE"})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestResolveAcceptsIntentNames(t *testing.T) {
	f := newFixture(t)
	ev, ok := f.m.Resolve("overview.intent")
	require.True(t, ok)
	assert.Equal(t, EventOverview, ev)
	assert.Len(t, f.m.Events(), len(Catalog()))
}

func TestSignInResumesAtStashedEvent(t *testing.T) {
	f := newFixture(t)

	st, out, visited := f.drive(t, State{}, Turn{Event: EventOverview, Query: "overview"})
	assert.Equal(t, []string{EventOverview, EventStartSignIn}, visited)
	assert.Equal(t, OutcomeSignIn, out.Kind)
	assert.Equal(t, EventOverview, st.LoginForwardIntentEvent)

	st, out, visited = f.drive(t, st, Turn{Event: EventSignedIn, Identity: ann, SignIn: &SignInResult{Status: "OK"}, Incoming: tpl("")})
	assert.Equal(t, []string{EventSignedIn, EventOverview, EventNoOverview}, visited)
	assert.Equal(t, OutcomeClose, out.Kind)
	assert.Empty(t, st.LoginForwardIntentEvent)

	u, err := f.store.User(context.Background(), entity.UserKey(ann.Email))
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "amber-brook-cedar", u.SignalID)
}

func TestSignInFailure(t *testing.T) {
	f := newFixture(t)
	st := State{LoginForwardIntentEvent: EventOverview}
	_, out, visited := f.drive(t, st, Turn{Event: EventSignedIn, Identity: ann, SignIn: &SignInResult{Status: "ERROR"}, Incoming: tpl("")})
	assert.Equal(t, []string{EventSignedIn, EventProblemLogin}, visited)
	assert.Equal(t, OutcomeClose, out.Kind)
	assert.Equal(t, "<speak>Sign-in failed.</speak>", out.Reply.Speech)
}

func TestEventsPagination(t *testing.T) {
	f := newFixture(t)
	f.threeEvents(t)

	st, out, _ := f.drive(t, State{}, Turn{Event: EventEvents, Query: "my invitations", Identity: ann})
	require.Equal(t, OutcomeAsk, out.Kind)
	assert.Equal(t, "3 invitations. Event e2 on March 3rd, Tuesday AM 9:00. More to come.", out.Reply.DisplayText)
	assert.Equal(t, "e2", st.EventDetails.ID)
	require.Len(t, st.EventsList, 2)
	assert.Equal(t, NextEvents, st.NextItemType)

	st, out, visited := f.drive(t, st, Turn{Event: EventSkip, Query: "skip", Identity: ann})
	assert.Equal(t, []string{EventSkip, EventEvents, EventEventsMiddle}, visited)
	assert.Equal(t, "Skipped. Next, Event e3 on March 4th, Wednesday AM 9:00.", out.Reply.DisplayText)
	assert.Equal(t, `<speak>Skipped<break time="0.5"/> Next, Event e3 on March 4th, Wednesday AM 9:00.</speak>`, out.Reply.Speech)

	st, out, visited = f.drive(t, st, Turn{Event: EventSkip, Query: "skip", Identity: ann})
	assert.Equal(t, []string{EventSkip, EventEvents, EventEventsLast}, visited)
	assert.Equal(t, "Skipped. Lastly, Event e1 on March 5th, Thursday AM 9:00.", out.Reply.DisplayText)
	assert.Empty(t, st.EventsList)
	assert.NotNil(t, st.EventsList)

	st, out, visited = f.drive(t, st, Turn{Event: EventSkip, Query: "skip", Identity: ann})
	assert.Equal(t, []string{EventSkip, EventNoEvents}, visited)
	assert.Equal(t, "No more invitations.", out.Reply.DisplayText)
	assert.Nil(t, st.EventsList)
}

func TestEventsListCleansStartedAndAttended(t *testing.T) {
	f := newFixture(t)
	uid := f.threeEvents(t)
	ctx := context.Background()
	f.putEvent(t, "old", "2026-02-20 09:00")
	require.NoError(t, f.store.Add(ctx, entity.UserList(uid, types.FieldEventsToNotify), "old"))
	require.NoError(t, f.store.Add(ctx, entity.UserList(uid, types.FieldEventsToAttend), "e1"))

	st, out, _ := f.drive(t, State{}, Turn{Event: EventEvents, Query: "my invitations", Identity: ann})
	assert.Equal(t, "2 invitations. Event e2 on March 3rd, Tuesday AM 9:00. More to come.", out.Reply.DisplayText)
	assert.Len(t, st.EventsList, 1)
	assert.Equal(t, []string{"e2", "e3"}, f.list(t, uid, types.FieldEventsToNotify))
	assert.True(t, st.HasSchedule)
}

func TestAttendReadsDetailsThenCommits(t *testing.T) {
	f := newFixture(t)
	uid := f.threeEvents(t)
	ctx := context.Background()

	st, _, _ := f.drive(t, State{}, Turn{Event: EventEvents, Query: "my invitations", Identity: ann})

	st, out, visited := f.drive(t, st, Turn{Event: EventAttend, Query: "yes", Identity: ann})
	assert.Equal(t, []string{EventAttend, EventEventDetails}, visited)
	assert.Equal(t, "Event e2 at Hall until March 10th, Tuesday PM 6:00.", out.Reply.DisplayText)
	assert.False(t, st.IsEventDetails)

	st, out, visited = f.drive(t, st, Turn{Event: EventAttend, Query: "yes", Identity: ann})
	assert.Equal(t, []string{EventAttend, EventEvents, EventEventsMiddle}, visited)
	assert.Equal(t, "Added Event e2. Next, Event e3 on March 4th, Wednesday AM 9:00.", out.Reply.DisplayText)
	assert.Equal(t, "e3", st.EventDetails.ID)

	assert.Equal(t, []string{"e2"}, f.list(t, uid, types.FieldEventsToAttend))
	assert.Equal(t, []string{"e1", "e3"}, f.list(t, uid, types.FieldEventsToNotify))

	a, err := f.store.Attendance(ctx, "e2")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "cal-1", a.CalendarEventID)
	assert.Equal(t, []string{uid}, a.Attendance)

	ev, ok := f.cal.Event("cal-1")
	require.True(t, ok)
	require.Len(t, ev.Attendees, 1)
	assert.Equal(t, ann.Email, ev.Attendees[0].Email)
}

func TestCalendarFailureLeavesQueuesUntouched(t *testing.T) {
	f := newFixture(t)
	uid := f.threeEvents(t)
	ctx := context.Background()

	st, _, _ := f.drive(t, State{}, Turn{Event: EventEvents, Query: "my invitations", Identity: ann})
	st.IsEventDetails = false
	f.cal.Err = errors.New("calendar down")

	_, out, err := f.m.Handle(ctx, st, Turn{Event: EventAttend, Query: "yes", Identity: ann, Incoming: templates[EventAttend]})
	require.Error(t, err)
	assert.Equal(t, followUp(EventProblem), out)

	assert.Equal(t, []string{"e1", "e2", "e3"}, f.list(t, uid, types.FieldEventsToNotify))
	assert.Empty(t, f.list(t, uid, types.FieldEventsToAttend))
	a, err := f.store.Attendance(ctx, "e2")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestDeclineLastEventFromOverview(t *testing.T) {
	f := newFixture(t)
	st := State{
		NextItemType:   NextEvents,
		IsFromOverview: true,
		EventsList:     []*types.Item{},
	}
	st, out, visited := f.drive(t, st, Turn{Event: EventDecline, Query: "no", Identity: ann})
	assert.Equal(t, []string{EventDecline, EventNoOverview}, visited)
	assert.Equal(t, OutcomeClose, out.Kind)
	assert.Equal(t, "Declined. Nothing else.", out.Reply.DisplayText)
	assert.Nil(t, st.IntentPrefixContent)
}

func TestSkipLastEventDropsPrefix(t *testing.T) {
	f := newFixture(t)
	st := State{NextItemType: NextEvents}
	_, out, visited := f.drive(t, st, Turn{Event: EventSkip, Query: "skip", Identity: ann})
	assert.Equal(t, []string{EventSkip, EventNoEvents}, visited)
	assert.Equal(t, "No more invitations.", out.Reply.DisplayText)
}

func TestAnswerWithoutContextFallsBack(t *testing.T) {
	f := newFixture(t)
	_, out, visited := f.drive(t, State{}, Turn{Event: EventAttend, Query: "yes", Identity: ann, Incoming: tpl("")})
	assert.Equal(t, []string{EventAttend, EventFallback}, visited)
	assert.Equal(t, OutcomeAsk, out.Kind)

	_, _, visited = f.drive(t, State{}, Turn{Event: EventDecline, Query: "no", Identity: ann, Incoming: tpl("")})
	assert.Equal(t, []string{EventDecline, EventCancel}, visited)
}

func TestWelcomeChainsIntoEvents(t *testing.T) {
	f := newFixture(t)
	f.threeEvents(t)

	st, out, visited := f.drive(t, State{NextItemType: NextSchedules}, Turn{Event: EventWelcome, Query: "talk to blurt", Identity: ann})
	assert.Equal(t, []string{EventWelcome, EventOverview, EventEvents}, visited)
	assert.Equal(t,
		`<speak>Hi<break time="0.5"/> Good morning Ann, 0 notices and 3 invitations.<break time="0.5"/> 3 invitations. Event e2 on March 3rd, Tuesday AM 9:00. More to come.</speak>`,
		out.Reply.Speech)
	assert.Equal(t, "Hi. Good morning Ann, 0 notices and 3 invitations.. 3 invitations. Event e2 on March 3rd, Tuesday AM 9:00. More to come.", out.Reply.DisplayText)
	assert.True(t, st.IsFromOverview)
	assert.Nil(t, st.IntentPrefixContent)
}

func TestOverviewReadsAnnouncementsAndMarksThemListened(t *testing.T) {
	f := newFixture(t)
	uid := f.signUp(t)
	ctx := context.Background()
	live := &types.Item{ID: "a1", Name: "Lunch", Description: "Free pizza", StartDatetime: "2026-02-28 09:00", EndDatetime: "2026-03-02 09:00"}
	ended := &types.Item{ID: "a2", Name: "Old", StartDatetime: "2026-02-01 09:00", EndDatetime: "2026-02-02 09:00"}
	require.NoError(t, f.store.Put(ctx, types.CollectionAnnouncements, "a1", live))
	require.NoError(t, f.store.Put(ctx, types.CollectionAnnouncements, "a2", ended))
	require.NoError(t, f.store.Add(ctx, entity.UserList(uid, types.FieldAnnouncementsToNotify), "a1", "a2"))

	_, out, visited := f.drive(t, State{}, Turn{Event: EventOverview, Query: "overview", Identity: ann})
	assert.Equal(t, []string{EventOverview, EventNoOverview}, visited)
	assert.Equal(t, "Good morning Ann, 1 notices and 0 invitations.here's your notices. First up, Lunch.. Nothing else.", out.Reply.DisplayText)

	assert.Empty(t, f.list(t, uid, types.FieldAnnouncementsToNotify))
	assert.Equal(t, []string{"a2", "a1"}, f.list(t, uid, types.FieldAnnouncementsListened))
}

// threeNotices queues three live announcements out of start order.
func (f *fixture) threeNotices(t *testing.T) string {
	t.Helper()
	uid := f.signUp(t)
	ctx := context.Background()
	for id, start := range map[string]string{"a1": "2026-02-27 09:00", "a2": "2026-02-28 09:00", "a3": "2026-03-01 09:00"} {
		it := &types.Item{ID: id, Name: "Notice " + id, Description: "About " + id, StartDatetime: start, EndDatetime: "2026-03-05 09:00"}
		require.NoError(t, f.store.Put(ctx, types.CollectionAnnouncements, id, it))
	}
	require.NoError(t, f.store.Add(ctx, entity.UserList(uid, types.FieldAnnouncementsToNotify), "a3", "a1", "a2"))
	return uid
}

func TestAnnouncementsPagination(t *testing.T) {
	f := newFixture(t)
	uid := f.threeNotices(t)

	st, out, _ := f.drive(t, State{}, Turn{Event: EventAnnouncements, Query: "my notices", Identity: ann})
	require.Equal(t, OutcomeAsk, out.Kind)
	assert.Equal(t, "3 notices. Notice a1. More follows.", out.Reply.DisplayText)
	assert.Equal(t, "a1", st.AnnouncementDetails.ID)
	require.Len(t, st.AnnouncementsList, 2)
	assert.Equal(t, NextAnnouncements, st.NextItemType)

	assert.Empty(t, f.list(t, uid, types.FieldAnnouncementsToNotify))
	assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, f.list(t, uid, types.FieldAnnouncementsListened))

	st, out, visited := f.drive(t, st, Turn{Event: EventSkip, Query: "skip", Identity: ann})
	assert.Equal(t, []string{EventSkip, EventAnnouncements, EventAnnouncementsMiddle}, visited)
	assert.Equal(t, "Next, Notice a2. More follows.", out.Reply.DisplayText)
	assert.Equal(t, "a2", st.AnnouncementDetails.ID)

	st, out, visited = f.drive(t, st, Turn{Event: EventSkip, Query: "skip", Identity: ann})
	assert.Equal(t, []string{EventSkip, EventAnnouncements, EventAnnouncementsLast}, visited)
	assert.Equal(t, "Finally, Notice a3.", out.Reply.DisplayText)
	assert.Equal(t, "<speak>Finally, Notice a3.</speak>", out.Reply.Speech)
	assert.Empty(t, st.AnnouncementsList)
	assert.NotNil(t, st.AnnouncementsList)

	st, out, visited = f.drive(t, st, Turn{Event: EventSkip, Query: "skip", Identity: ann})
	assert.Equal(t, []string{EventSkip, EventAnnouncements, EventNoAnnouncements}, visited)
	assert.Equal(t, OutcomeAsk, out.Kind)
	assert.Equal(t, "No more notices.", out.Reply.DisplayText)
	assert.Nil(t, st.AnnouncementsList)
	assert.Nil(t, st.AnnouncementDetails)
}

func TestAnnouncementsListReadsEveryNotice(t *testing.T) {
	f := newFixture(t)
	f.threeNotices(t)

	_, out, _ := f.drive(t, State{}, Turn{Event: EventAnnouncements, Query: "my notices", Identity: ann, Incoming: tpl("All: notices_list")})
	require.Equal(t, OutcomeAsk, out.Kind)
	assert.Equal(t, "All: First up, Notice a1. next, Notice a2. lastly, Notice a3. ", out.Reply.DisplayText)
	assert.Contains(t, out.Reply.Speech, "lastly, "+speechBreak+"Notice a3. "+speechBreak+" About a3")
}

func TestAnnouncementsListWithNothingLive(t *testing.T) {
	f := newFixture(t)
	uid := f.signUp(t)
	ctx := context.Background()
	ending := &types.Item{ID: "a1", Name: "Ending", StartDatetime: "2026-02-27 09:00", EndDatetime: "2026-03-01 10:00"}
	require.NoError(t, f.store.Put(ctx, types.CollectionAnnouncements, "a1", ending))
	require.NoError(t, f.store.Add(ctx, entity.UserList(uid, types.FieldAnnouncementsToNotify), "a1"))

	st, out, visited := f.drive(t, State{}, Turn{Event: EventAnnouncements, Query: "my notices", Identity: ann})
	assert.Equal(t, []string{EventAnnouncements, EventNoAnnouncements}, visited)
	assert.Equal(t, "No more notices.", out.Reply.DisplayText)
	assert.Nil(t, st.AnnouncementsList)
	assert.Empty(t, f.list(t, uid, types.FieldAnnouncementsToNotify))
	assert.Equal(t, []string{"a1"}, f.list(t, uid, types.FieldAnnouncementsListened))
}

func TestSchedulesSkipThrough(t *testing.T) {
	f := newFixture(t)
	uid := f.signUp(t)
	f.putEvent(t, "e1", "2026-03-05 09:00")
	f.putEvent(t, "e2", "2026-03-03 09:00")
	f.putEvent(t, "e3", "2026-03-04 09:00")
	require.NoError(t, f.store.Add(context.Background(), entity.UserList(uid, types.FieldEventsToAttend), "e1", "e2", "e3"))

	st, out, _ := f.drive(t, State{}, Turn{Event: EventSchedules, Query: "my plans", Identity: ann})
	require.Equal(t, OutcomeAsk, out.Kind)
	assert.Equal(t, "3 plans. Event e2 on March 3rd, Tuesday AM 9:00. More.", out.Reply.DisplayText)
	assert.Equal(t, "e2", st.ScheduleDetails.ID)
	assert.Equal(t, NextSchedules, st.NextItemType)

	st, out, visited := f.drive(t, st, Turn{Event: EventSkip, Query: "skip", Identity: ann})
	assert.Equal(t, []string{EventSkip, EventSchedules, EventSchedulesMiddle}, visited)
	assert.Equal(t, OutcomeAsk, out.Kind)
	assert.Equal(t, "Next plan Event e3.", out.Reply.DisplayText)

	st, out, visited = f.drive(t, st, Turn{Event: EventSkip, Query: "skip", Identity: ann})
	assert.Equal(t, []string{EventSkip, EventSchedules, EventSchedulesLast}, visited)
	assert.Equal(t, OutcomeAsk, out.Kind)
	assert.Equal(t, "Last plan Event e1.", out.Reply.DisplayText)
	assert.Empty(t, st.SchedulesList)

	st, out, visited = f.drive(t, st, Turn{Event: EventSkip, Query: "skip", Identity: ann})
	assert.Equal(t, []string{EventSkip, EventNoSchedules}, visited)
	assert.Equal(t, OutcomeClose, out.Kind)
	assert.Equal(t, "No more plans.", out.Reply.DisplayText)
	assert.Nil(t, st.SchedulesList)
	assert.Equal(t, []string{"e1", "e2", "e3"}, f.list(t, uid, types.FieldEventsToAttend))
}

func TestItemsStartingNowCountAsStarted(t *testing.T) {
	f := newFixture(t)
	uid := f.threeEvents(t)
	ctx := context.Background()
	f.putEvent(t, "n1", "2026-03-01 10:00")
	f.putEvent(t, "n2", "2026-03-01 10:00")
	require.NoError(t, f.store.Add(ctx, entity.UserList(uid, types.FieldEventsToNotify), "n1"))
	require.NoError(t, f.store.Add(ctx, entity.UserList(uid, types.FieldEventsToAttend), "n2"))

	st, out, _ := f.drive(t, State{}, Turn{Event: EventEvents, Query: "my invitations", Identity: ann})
	assert.Equal(t, "3 invitations. Event e2 on March 3rd, Tuesday AM 9:00. More to come.", out.Reply.DisplayText)
	assert.Len(t, st.EventsList, 2)
	assert.Equal(t, []string{"e1", "e2", "e3"}, f.list(t, uid, types.FieldEventsToNotify))
	assert.False(t, st.HasSchedule)

	_, out, visited := f.drive(t, State{}, Turn{Event: EventSchedules, Query: "my plans", Identity: ann})
	assert.Equal(t, []string{EventSchedules, EventNoSchedules}, visited)
	assert.Equal(t, "No more plans.", out.Reply.DisplayText)
	assert.Empty(t, f.list(t, uid, types.FieldEventsToAttend))
}

func TestCancelScheduleMovesEventBackToNotify(t *testing.T) {
	f := newFixture(t)
	uid := f.signUp(t)
	ctx := context.Background()
	f.putEvent(t, "e1", "2026-03-05 09:00")
	ev, err := f.store.Item(ctx, types.KindEvent, "e1")
	require.NoError(t, err)
	ref, err := f.cal.UpsertAttendee(ctx, ev, &types.User{Email: ann.Email}, "")
	require.NoError(t, err)
	require.NoError(t, f.store.RecordAttendance(ctx, "e1", ref, uid))
	require.NoError(t, f.store.Add(ctx, entity.UserList(uid, types.FieldEventsToAttend), "e1"))

	st, out, _ := f.drive(t, State{}, Turn{Event: EventSchedules, Query: "my plans", Identity: ann})
	assert.Equal(t, "1 plans. Event e1 on March 5th, Thursday AM 9:00.", out.Reply.DisplayText)
	assert.Equal(t, NextSchedules, st.NextItemType)

	st, out, _ = f.drive(t, st, Turn{Event: EventCancelSchedule, Query: "cancel it", Identity: ann})
	assert.Equal(t, "Cancel Event e1?", out.Reply.DisplayText)
	assert.Equal(t, NextCancelSchedule, st.NextItemType)

	_, out, visited := f.drive(t, st, Turn{Event: EventAttend, Query: "yes", Identity: ann})
	assert.Equal(t, []string{EventAttend, EventCancelConfirmed, EventNoSchedules}, visited)
	assert.Equal(t, "Cancelled Event e1. No more plans.", out.Reply.DisplayText)
	assert.Equal(t, OutcomeClose, out.Kind)

	assert.Empty(t, f.list(t, uid, types.FieldEventsToAttend))
	assert.Equal(t, []string{"e1"}, f.list(t, uid, types.FieldEventsToNotify))
	cal, ok := f.cal.Event(ref)
	require.True(t, ok)
	assert.Empty(t, cal.Attendees)
}

func TestCancelWithoutCalendarRefFails(t *testing.T) {
	f := newFixture(t)
	uid := f.signUp(t)
	ctx := context.Background()
	f.putEvent(t, "e1", "2026-03-05 09:00")
	ev, err := f.store.Item(ctx, types.KindEvent, "e1")
	require.NoError(t, err)
	require.NoError(t, f.store.Add(ctx, entity.UserList(uid, types.FieldEventsToAttend), "e1"))

	st := State{ScheduleDetails: ev, SchedulesList: []*types.Item{}, NextItemType: NextCancelSchedule}
	_, out, err := f.m.Handle(ctx, st, Turn{Event: EventCancelConfirmed, Identity: ann, Incoming: templates[EventCancelConfirmed]})
	assert.ErrorIs(t, err, calendar.ErrNoCalendarRef)
	assert.Equal(t, followUp(EventProblem), out)
	assert.Equal(t, []string{"e1"}, f.list(t, uid, types.FieldEventsToAttend))
}

func TestCancelDeclinedAdvances(t *testing.T) {
	f := newFixture(t)
	next := &types.Item{ID: "e2", Name: "Event e2", StartDatetime: "2026-03-06 09:00", EndDatetime: "2026-03-06 10:00"}
	st := State{
		ScheduleDetails: &types.Item{ID: "e1", Name: "Event e1"},
		SchedulesList:   []*types.Item{next},
		NextItemType:    NextCancelSchedule,
	}
	st, out, visited := f.drive(t, st, Turn{Event: EventSkip, Query: "skip", Identity: ann})
	assert.Equal(t, []string{EventSkip, EventCancelDeclined, EventSchedulesLast}, visited)
	assert.Equal(t, "Kept it. Last plan Event e2.", out.Reply.DisplayText)
	assert.Equal(t, "e2", st.ScheduleDetails.ID)
}

func TestRepeatReplaysLastPrompt(t *testing.T) {
	f := newFixture(t)
	f.threeEvents(t)
	st, first, _ := f.drive(t, State{}, Turn{Event: EventEvents, Query: "my invitations", Identity: ann})

	_, out, _ := f.drive(t, st, Turn{Event: EventRepeat, Query: "again", Identity: ann})
	assert.Equal(t, "<speak>Sure. "+speechBreak+" "+unwrap(first.Reply).Speech+"</speak>", out.Reply.Speech)
	assert.Equal(t, "Sure. "+first.Reply.DisplayText, out.Reply.DisplayText)
}

func TestSignalID(t *testing.T) {
	f := newFixture(t)
	f.signUp(t)
	_, out, _ := f.drive(t, State{}, Turn{Event: EventSignalID, Query: "my id", Identity: ann})
	assert.Equal(t, "Your id is amber-brook-cedar.", out.Reply.DisplayText)
}

func TestMissingDetailsRoutesToProblem(t *testing.T) {
	f := newFixture(t)
	st := State{EventsList: []*types.Item{}}
	_, out, err := f.m.Handle(context.Background(), st, Turn{Event: EventEventDetails, Identity: ann, Incoming: templates[EventEventDetails]})
	require.NoError(t, err)
	assert.Equal(t, followUp(EventProblem), out)
}

func TestDecodeState(t *testing.T) {
	st, err := DecodeState([]byte(`{"events_list":[],"schedules_list":null,"next_item_type":"EVENTS"}`))
	require.NoError(t, err)
	assert.NotNil(t, st.EventsList)
	assert.Nil(t, st.SchedulesList)
	assert.Equal(t, NextEvents, st.NextItemType)

	st, err = DecodeState([]byte(`{"next_item_type":"BOGUS","events_list":[]}`))
	require.NoError(t, err)
	assert.Equal(t, NextNone, st.NextItemType)
	assert.NotNil(t, st.EventsList)

	_, err = DecodeState([]byte(`{"next_item_type":7}`))
	assert.Error(t, err)

	st, err = DecodeState(nil)
	require.NoError(t, err)
	assert.Equal(t, State{}, st)
}

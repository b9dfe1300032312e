package conversation

// Transition event names as the dialogue runtime knows them.
const (
	EventWelcome       = "DEFAULT_WELCOME_INTENT_EVENT"
	EventFallback      = "DEFAULT_FALLBACK_INTENT_EVENT"
	EventCancel        = "actions_intent_CANCEL"
	EventProblem       = "PROBLEM_INTENT_EVENT"
	EventSignalID      = "SIGNAL_ID_INTENT"
	EventStartSignIn   = "START_SIGNIN"
	EventSignedIn      = "actions_intent_SIGN_IN"
	EventProblemLogin  = "PROBLEM_LOGIN_INTENT_HANDLER"
	EventRepeat        = "REPEAT_INTENT_EVENT"
	EventOverview      = "OVERVIEW_INTENT_EVENT"
	EventNoOverview    = "NO_OVERVIEW_INTENT_EVENT"
	EventAnnouncements = "ANNOUNCEMENTS_LIST_INTENT_EVENT"

	EventAnnouncementsMiddle = "ANNOUNCEMENTS_MIDDLE_INTENT_EVENT"
	EventAnnouncementsLast   = "ANNOUNCEMENTS_LAST_INTENT_EVENT"
	EventNoAnnouncements     = "NO_ANNOUNCEMENTS_INTENT_EVENT"

	EventSchedulesOverview = "SCHEDULES_LIST_OVERVIEW_INTENT_EVENT"
	EventSchedules         = "SCHEDULES_LIST_INTENT_EVENT"
	EventSchedulesMiddle   = "SCHEDULES_MIDDLE_INTENT_EVENT"
	EventSchedulesLast     = "SCHEDULES_LAST_INTENT_EVENT"
	EventScheduleDetails   = "SCHEDULE_DETAILS_INTENT_EVENT"
	EventNoSchedules       = "NO_SCHEDULES_INTENT_EVENT"
	EventCancelSchedule    = "CANCEL_SCHEDULE_INTENT_EVENT"
	EventCancelConfirmed   = "CANCEL_SCHEDULE_CONFIRMED_INTENT_EVENT"
	EventCancelDeclined    = "CANCEL_SCHEDULE_DECLINED_INTENT_EVENT"

	EventEvents       = "EVENTS_LIST_INTENT_EVENT"
	EventEventsMiddle = "EVENTS_MIDDLE_INTENT_EVENT"
	EventEventsLast   = "EVENTS_LAST_INTENT_EVENT"
	EventEventDetails = "EVENT_DETAILS_INTENT_EVENT"
	EventSkip         = "EVENT_SKIP_INTENT_EVENT"
	EventNoEvents     = "NO_EVENTS_INTENT_EVENT"
	EventAttend       = "ATTEND_EVENT_INTENT_EVENT"
	EventDecline      = "DECLINE_EVENT_INTENT_EVENT"
)

// Transition binds an event name and its intent name to a handler.
type Transition struct {
	Event   string
	Intent  string
	Handler Handler
}

// Catalog lists every transition the machine serves.
func Catalog() []Transition {
	return []Transition{
		{EventWelcome, "default.welcome.intent", welcome},
		{EventFallback, "default.fallback.intent", fallback},
		{EventCancel, "default.cancel.intent", closing},
		{EventProblem, "problem.intent", closing},
		{EventSignalID, "signal.id.intent", signalID},
		{EventStartSignIn, "sign.in.intent", startSignIn},
		{EventSignedIn, "signed.in.intent", signedIn},
		{EventProblemLogin, "problem.login.intent", closing},
		{EventRepeat, "repeat.intent", repeat},

		{EventOverview, "overview.intent", overview},
		{EventNoOverview, "no.overview.intent", noOverview},

		{EventAnnouncements, "announcements.list.intent", announcementsList},
		{EventAnnouncementsMiddle, "announcements.middle.intent", announcementsItem},
		{EventAnnouncementsLast, "announcements.last.intent", announcementsItem},
		{EventNoAnnouncements, "no.announcements.intent", noAnnouncements},

		{EventSchedulesOverview, "schedules.list.overview.intent", schedulesOverview},
		{EventSchedules, "schedules.list.intent", schedulesList},
		{EventSchedulesMiddle, "schedules.middle.intent", schedulesItem},
		{EventSchedulesLast, "schedules.last.intent", schedulesItem},
		{EventScheduleDetails, "schedule.details.intent", scheduleDetails},
		{EventNoSchedules, "no.schedules.intent", noSchedules},
		{EventCancelSchedule, "cancel.schedule.intent", cancelSchedule},
		{EventCancelConfirmed, "cancel.schedule.confirmed.intent", cancelConfirmed},
		{EventCancelDeclined, "cancel.schedule.declined.intent", cancelDeclined},

		{EventEvents, "events.list.intent", eventsList},
		{EventEventsMiddle, "events.middle.intent", eventsItem},
		{EventEventsLast, "events.last.intent", eventsItem},
		{EventEventDetails, "event.details.intent", eventDetails},
		{EventSkip, "event.skip.intent", skip},
		{EventNoEvents, "no.events.intent", noEvents},
		{EventAttend, "attend.event.intent", attend},
		{EventDecline, "decline.event.intent", decline},
	}
}

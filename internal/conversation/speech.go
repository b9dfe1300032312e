package conversation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const speechBreak = `<break time="0.5"/>`

var speakBody = regexp.MustCompile(`(?s)<speak>(.*)</speak>`)

// unwrap returns the incoming template without its <speak> wrapper. When the
// speech side is missing the display text is used, and the other way round.
func unwrap(r Reply) Reply {
	speech := r.Speech
	if m := speakBody.FindStringSubmatch(speech); m != nil {
		speech = m[1]
	}
	if strings.TrimSpace(speech) == "" {
		speech = r.DisplayText
	}
	display := r.DisplayText
	if display == "" {
		display = speech
	}
	return Reply{Speech: speech, DisplayText: display}
}

func speak(s string) string { return "<speak>" + s + "</speak>" }

var markup = regexp.MustCompile(`<[^>]*>`)

// Text is the reply for a text-only surface: the display text, or the speech
// with its SSML stripped.
func (r Reply) Text() string {
	if r.DisplayText != "" {
		return r.DisplayText
	}
	return strings.Join(strings.Fields(markup.ReplaceAllString(r.Speech, " ")), " ")
}

// fill substitutes every placeholder with its value in a single pass.
// Longer placeholder names win over names they contain.
func fill(r Reply, values map[string]string) Reply {
	return fillSides(r, values, values)
}

// fillSides is fill with separate values for the speech and display sides.
func fillSides(r Reply, speech, display map[string]string) Reply {
	return Reply{Speech: replacer(speech).Replace(r.Speech), DisplayText: replacer(display).Replace(r.DisplayText)}
}

func replacer(values map[string]string) *strings.Replacer {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, values[k])
	}
	return strings.NewReplacer(pairs...)
}

// optional resolves the bracketed clause, from the first "[" to the last "]".
// keep strips the brackets; otherwise the whole clause goes.
func optional(r Reply, keep bool) Reply {
	return Reply{Speech: optionalClause(r.Speech, keep), DisplayText: optionalClause(r.DisplayText, keep)}
}

func optionalClause(s string, keep bool) string {
	open := strings.Index(s, "[")
	closing := strings.LastIndex(s, "]")
	if open < 0 || closing < open {
		return s
	}
	inner := ""
	if keep {
		inner = s[open+1 : closing]
	}
	return s[:open] + inner + s[closing+1:]
}

// glue puts the pending prefix in front of r.
func glue(prefix *Reply, r Reply) Reply {
	if prefix == nil {
		return r
	}
	return Reply{
		Speech:      prefix.Speech + speechBreak + " " + r.Speech,
		DisplayText: prefix.DisplayText + ". " + r.DisplayText,
	}
}

// render builds a reply from the turn's template: placeholders, then the
// optional clause when clause is non-nil, then the prefix.
func render(turn Turn, values map[string]string, clause *bool) Reply {
	r := fill(unwrap(turn.Incoming), values)
	if clause != nil {
		r = optional(r, *clause)
	}
	return glue(turn.Prefix, r)
}

func more(n int) *bool {
	b := n > 0
	return &b
}

// ask sends r and remembers it for repeat.
func ask(st State, r Reply) (State, Outcome, error) {
	st.LastPrompt = &r
	return st, Outcome{Kind: OutcomeAsk, Reply: Reply{Speech: speak(r.Speech), DisplayText: r.DisplayText}}, nil
}

func closeWith(st State, r Reply) (State, Outcome, error) {
	return st, Outcome{Kind: OutcomeClose, Reply: Reply{Speech: speak(r.Speech), DisplayText: r.DisplayText}}, nil
}

// forward continues at event and hands the unread prefix on.
func forward(st State, turn Turn, event string) (State, Outcome, error) {
	if st.IntentPrefixContent == nil {
		st.IntentPrefixContent = turn.Prefix
	}
	return st, followUp(event), nil
}

// japanese reports whether locale selects the Japanese phrasing.
func japanese(locale string) bool {
	if locale == "" {
		return false
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	return base.String() == "ja"
}

// Language returns the base language code for locale, "en" when unknown.
func Language(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil || locale == "" {
		return "en"
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "en"
	}
	return base.String()
}

var jaWeekdays = [...]string{"日曜日", "月曜日", "火曜日", "水曜日", "木曜日", "金曜日", "土曜日"}

// FormatDate renders t for speech: "March 5th, Thursday AM 9:00", or
// "3月5日 木曜日 午前9:00" for Japanese.
func FormatDate(t time.Time, locale string) string {
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	if japanese(locale) {
		meridiem := "午前"
		if t.Hour() >= 12 {
			meridiem = "午後"
		}
		return fmt.Sprintf("%d月%d日 %s %s%d:%02d", int(t.Month()), t.Day(), jaWeekdays[t.Weekday()], meridiem, hour, t.Minute())
	}
	meridiem := "AM"
	if t.Hour() >= 12 {
		meridiem = "PM"
	}
	return fmt.Sprintf("%s %s, %s %s %d:%02d", t.Month(), ordinal(t.Day()), t.Weekday(), meridiem, hour, t.Minute())
}

func ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

// Greeting picks the salutation for the local hour of t.
func Greeting(t time.Time, locale string) string {
	h := t.Hour()
	ja := japanese(locale)
	switch {
	case h >= 12 && h < 17:
		if ja {
			return "こんにちは"
		}
		return "Good afternoon"
	case h >= 17 || h < 3:
		if ja {
			return "こんばんは"
		}
		return "Good evening"
	default:
		if ja {
			return "おはようございます"
		}
		return "Good morning"
	}
}

// noticeLead is the phrase in front of the i-th of n notices.
func noticeLead(i, n int, locale string, overview bool) string {
	ja := japanese(locale)
	switch {
	case i == 0 && overview && ja:
		return "こちらがお知らせです。 最初に, "
	case i == 0 && overview:
		return "here's your notices. First up, "
	case i == 0 && ja:
		return "最初に, "
	case i == 0:
		return "First up, "
	case i == n-1 && ja:
		return "最後に, "
	case i == n-1:
		return "lastly, "
	case ja:
		return "次に, "
	}
	return "next, "
}

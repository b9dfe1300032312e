package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/user/blurt/internal/types"
)

func TestFillPrefersLongerNames(t *testing.T) {
	r := fill(Reply{Speech: "event_name_full / event_name", DisplayText: "event_name"}, map[string]string{
		"event_name":      "A",
		"event_name_full": "B",
	})
	assert.Equal(t, "B / A", r.Speech)
	assert.Equal(t, "A", r.DisplayText)
}

func TestFillDoesNotRescanValues(t *testing.T) {
	r := fill(Reply{Speech: "name and count"}, map[string]string{"name": "count", "count": "3"})
	assert.Equal(t, "count and 3", r.Speech)
}

func TestOptionalClause(t *testing.T) {
	tests := []struct {
		in   string
		keep bool
		want string
	}{
		{"One event.[ There is more.]", true, "One event. There is more."},
		{"One event.[ There is more.]", false, "One event."},
		{"No clause.", false, "No clause."},
		{"Broken ]clause[", true, "Broken ]clause["},
		{"[a] and [b]", true, "a] and [b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, optionalClause(tt.in, tt.keep), tt.in)
	}
}

func TestUnwrap(t *testing.T) {
	assert.Equal(t, Reply{Speech: "hi", DisplayText: "hello"}, unwrap(Reply{Speech: "<speak>hi</speak>", DisplayText: "hello"}))
	assert.Equal(t, Reply{Speech: "hello", DisplayText: "hello"}, unwrap(Reply{Speech: "<speak> </speak>", DisplayText: "hello"}))
	assert.Equal(t, Reply{Speech: "hi", DisplayText: "hi"}, unwrap(Reply{Speech: "hi"}))
}

func TestReplyText(t *testing.T) {
	r := Reply{Speech: `Hi.<break time="0.5"/><emphasis>Bye</emphasis>.`}
	if got := r.Text(); got != "Hi. Bye ." {
		t.Errorf("got %q", got)
	}
	r.DisplayText = "Hi. Bye."
	if got := r.Text(); got != "Hi. Bye." {
		t.Errorf("got %q", got)
	}
}

func TestGlue(t *testing.T) {
	assert.Equal(t, Reply{Speech: "b", DisplayText: "b"}, glue(nil, Reply{Speech: "b", DisplayText: "b"}))
	got := glue(&Reply{Speech: "a", DisplayText: "A"}, Reply{Speech: "b", DisplayText: "B"})
	assert.Equal(t, Reply{Speech: `a<break time="0.5"/> b`, DisplayText: "A. B"}, got)
}

func TestFormatDate(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatal(err)
	}
	tm := time.Date(2026, 3, 5, 15, 4, 0, 0, loc)
	assert.Equal(t, "March 5th, Thursday PM 3:04", FormatDate(tm, "en-US"))
	assert.Equal(t, "3月5日 木曜日 午後3:04", FormatDate(tm, "ja-JP"))

	midnight := time.Date(2026, 3, 1, 0, 30, 0, 0, loc)
	assert.Equal(t, "March 1st, Sunday AM 12:30", FormatDate(midnight, ""))
}

func TestOrdinal(t *testing.T) {
	for n, want := range map[int]string{1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th", 13: "13th", 21: "21st", 22: "22nd", 23: "23rd", 31: "31st"} {
		assert.Equal(t, want, ordinal(n))
	}
}

func TestGreeting(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2026, 3, 1, h, 0, 0, 0, time.UTC) }
	assert.Equal(t, "Good evening", Greeting(at(2), "en"))
	assert.Equal(t, "Good morning", Greeting(at(3), "en"))
	assert.Equal(t, "Good morning", Greeting(at(11), "en"))
	assert.Equal(t, "Good afternoon", Greeting(at(12), "en"))
	assert.Equal(t, "Good evening", Greeting(at(17), "en"))
	assert.Equal(t, "こんにちは", Greeting(at(13), "ja"))
	assert.Equal(t, "おはようございます", Greeting(at(8), "ja-JP"))
}

func TestLanguage(t *testing.T) {
	assert.Equal(t, "en", Language(""))
	assert.Equal(t, "en", Language("en-US"))
	assert.Equal(t, "ja", Language("ja-JP"))
	assert.Equal(t, "en", Language("not a locale"))
}

func TestNotices(t *testing.T) {
	items := []*types.Item{{ID: "a", Name: "One"}, {ID: "b", Name: "Two"}, {ID: "c", Name: "Three"}}
	got := notices(items, "en", false)
	assert.Equal(t, "First up, One. next, Two. lastly, Three. ", got.DisplayText)
}

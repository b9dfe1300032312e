// internal/state/journal_test.go
package state

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/user/blurt/internal/types"
)

func TestJournal(t *testing.T) {
	dir := t.TempDir()
	journal := NewJournal(dir)
	ctx := context.Background()

	sessionID := types.NewSessionID()

	for i, events := range [][]string{
		{"DEFAULT_WELCOME_INTENT_EVENT", "OVERVIEW_INTENT_EVENT"},
		{"EVENT_SKIP_INTENT_EVENT", "EVENTS_LIST_INTENT_EVENT"},
	} {
		entry := &types.JournalEntry{
			TurnID:    types.NewTurnID(),
			SessionID: sessionID,
			Source:    "test",
			Events:    events,
			At:        time.Now(),
			Reply:     json.RawMessage(`{"speech":"hi"}`),
		}
		if err := journal.Append(ctx, entry); err != nil {
			t.Fatal(err)
		}
		if entry.Seq != int64(i+1) {
			t.Errorf("expected seq %d, got %d", i+1, entry.Seq)
		}
	}

	entries, err := journal.Tail(ctx, sessionID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Events[0] != "EVENT_SKIP_INTENT_EVENT" {
		t.Errorf("expected skip event, got %v", entries[1].Events)
	}

	last, err := journal.Tail(ctx, sessionID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(last) != 1 || last[0].Seq != 2 {
		t.Errorf("expected only the last entry, got %+v", last)
	}

	count, err := journal.Count(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
}

func TestJournalMissingSession(t *testing.T) {
	journal := NewJournal(t.TempDir())
	entries, err := journal.Tail(context.Background(), types.NewSessionID(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if entries != nil {
		t.Errorf("expected nil entries, got %v", entries)
	}
}

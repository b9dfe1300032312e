// internal/types/interfaces.go
package types

import (
	"context"
	"encoding/json"
)

// DocStore is a keyed JSON document store. Get returns a nil document when the
// id is absent. Update runs fn as one atomic read-modify-write: fn receives the
// current document (nil when absent) and returns the replacement, or nil to
// leave the document untouched.
type DocStore interface {
	Get(ctx context.Context, c Collection, id string) (json.RawMessage, error)
	All(ctx context.Context, c Collection) (map[string]json.RawMessage, error)
	Put(ctx context.Context, c Collection, id string, doc json.RawMessage) error
	Delete(ctx context.Context, c Collection, id string) error
	Update(ctx context.Context, c Collection, id string, fn func(cur json.RawMessage) (json.RawMessage, error)) error
	Close() error
}

type SessionStore interface {
	ResolveOrCreate(ctx context.Context, key SessionKey, source string) (SessionID, error)
	Get(ctx context.Context, id SessionID) (*SessionIndex, error)
	List(ctx context.Context) ([]*SessionIndex, error)
	Update(ctx context.Context, session *SessionIndex) error
	RecordTurn(ctx context.Context, id SessionID, turn TurnID) error
}

type Journal interface {
	Append(ctx context.Context, entry *JournalEntry) error
	Tail(ctx context.Context, sessionID SessionID, limit int) ([]*JournalEntry, error)
	Count(ctx context.Context, sessionID SessionID) (int64, error)
}

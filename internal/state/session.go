package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/user/blurt/internal/types"
)

// SessionStore indexes conversation sessions in sessions/sessions.json.
// Each session also gets a sessions/<id>/ directory for its turn journal.
type SessionStore struct {
	dir string
	mu  sync.RWMutex
}

func NewSessionStore(root string) *SessionStore {
	return &SessionStore{dir: filepath.Join(root, "sessions")}
}

type sessionIndex map[types.SessionKey]*types.SessionIndex

func (x sessionIndex) byID(id types.SessionID) (*types.SessionIndex, bool) {
	for _, sess := range x {
		if sess.SessionID == id {
			return sess, true
		}
	}
	return nil, false
}

func (s *SessionStore) file() string { return filepath.Join(s.dir, "sessions.json") }

func (s *SessionStore) read() (sessionIndex, error) {
	idx := sessionIndex{}
	data, err := os.ReadFile(s.file())
	if errors.Is(err, os.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session index: %w", err)
	}
	var rows []*types.SessionIndex
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode session index: %w", err)
	}
	for _, sess := range rows {
		idx[sess.SessionKey] = sess
	}
	return idx, nil
}

// write stores the index sorted by creation time so diffs stay small.
func (s *SessionStore) write(idx sessionIndex) error {
	rows := sortedSessions(idx)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session index: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}
	tmp := s.file() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session index: %w", err)
	}
	if err := os.Rename(tmp, s.file()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace session index: %w", err)
	}
	return nil
}

// mutate runs fn over the index under the write lock and saves the result
// unless fn fails.
func (s *SessionStore) mutate(fn func(idx sessionIndex) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(idx); err != nil {
		return err
	}
	return s.write(idx)
}

var errSessionExists = errors.New("session exists")

// ResolveOrCreate maps a front-end key to its session, opening one on first
// use. source names the front-end (fulfillment, telegram, cli).
func (s *SessionStore) ResolveOrCreate(_ context.Context, key types.SessionKey, source string) (types.SessionID, error) {
	var id types.SessionID
	err := s.mutate(func(idx sessionIndex) error {
		if sess, ok := idx[key]; ok {
			id = sess.SessionID
			return errSessionExists
		}
		now := time.Now()
		id = types.NewSessionID()
		idx[key] = &types.SessionIndex{
			SessionID:  id,
			SessionKey: key,
			Source:     source,
			Status:     "active",
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return nil
	})
	if errors.Is(err, errSessionExists) {
		return id, nil
	}
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Join(s.dir, string(id)), 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	return id, nil
}

func (s *SessionStore) Get(_ context.Context, id types.SessionID) (*types.SessionIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, err := s.read()
	if err != nil {
		return nil, err
	}
	sess, ok := idx.byID(id)
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return sess, nil
}

// List returns every session, most recently active first.
func (s *SessionStore) List(_ context.Context) ([]*types.SessionIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, err := s.read()
	if err != nil {
		return nil, err
	}
	rows := sortedSessions(idx)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].UpdatedAt.After(rows[j].UpdatedAt) })
	return rows, nil
}

// RecordTurn counts a completed turn against the session.
func (s *SessionStore) RecordTurn(_ context.Context, id types.SessionID, turn types.TurnID) error {
	return s.mutate(func(idx sessionIndex) error {
		sess, ok := idx.byID(id)
		if !ok {
			return fmt.Errorf("session not found: %s", id)
		}
		sess.Turns++
		sess.LastTurnID = turn
		sess.UpdatedAt = time.Now()
		return nil
	})
}

func (s *SessionStore) Update(_ context.Context, session *types.SessionIndex) error {
	return s.mutate(func(idx sessionIndex) error {
		if _, ok := idx[session.SessionKey]; !ok {
			return fmt.Errorf("session not found: %s", session.SessionKey)
		}
		session.UpdatedAt = time.Now()
		idx[session.SessionKey] = session
		return nil
	})
}

func sortedSessions(idx sessionIndex) []*types.SessionIndex {
	rows := make([]*types.SessionIndex, 0, len(idx))
	for _, sess := range idx {
		rows = append(rows, sess)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SessionKey < rows[j].SessionKey })
	return rows
}

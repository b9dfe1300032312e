// Package entity is the typed view of the document store used by the
// propagation, synchronisation and conversation layers.
package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/user/blurt/internal/listset"
	"github.com/user/blurt/internal/types"
)

// ErrNotFound is returned by callers that need a document to exist.
var ErrNotFound = errors.New("not found")

// ListRef addresses an ordered id list: either a whole queue document
// (Field empty) or a list field inside a user document.
type ListRef struct {
	Collection types.Collection
	ID         string
	Field      string
}

func (r ListRef) String() string {
	if r.Field == "" {
		return fmt.Sprintf("%s/%s", r.Collection, r.ID)
	}
	return fmt.Sprintf("%s/%s.%s", r.Collection, r.ID, r.Field)
}

// GroupQueue addresses one of the four per-group queues.
func GroupQueue(c types.Collection, groupID string) ListRef {
	return ListRef{Collection: c, ID: groupID}
}

// UserList addresses a list field of a user document.
func UserList(userID, field string) ListRef {
	return ListRef{Collection: types.CollectionUsers, ID: userID, Field: field}
}

// Observer is told the id of every user document that changed.
type Observer func(ctx context.Context, userID string)

// Store wraps a DocStore with typed accessors and list transactions.
type Store struct {
	docs types.DocStore

	mu        sync.RWMutex
	observers []Observer
}

// New creates a Store over docs.
func New(docs types.DocStore) *Store {
	return &Store{docs: docs}
}

// Docs exposes the raw document store.
func (s *Store) Docs() types.DocStore { return s.docs }

// Observe registers fn to run after each user document write.
func (s *Store) Observe(fn Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Store) changed(ctx context.Context, c types.Collection, id string) {
	if c != types.CollectionUsers {
		return
	}
	s.mu.RLock()
	observers := s.observers
	s.mu.RUnlock()
	for _, fn := range observers {
		fn(ctx, id)
	}
}

// Get decodes the document into dst. It reports false when the document does
// not exist.
func (s *Store) Get(ctx context.Context, c types.Collection, id string, dst any) (bool, error) {
	raw, err := s.docs.Get(ctx, c, id)
	if err != nil {
		return false, err
	}
	if raw == nil || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", c, id, err)
	}
	return true, nil
}

// Put replaces a whole document.
func (s *Store) Put(ctx context.Context, c types.Collection, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c, id, err)
	}
	if err := s.docs.Put(ctx, c, id, raw); err != nil {
		return err
	}
	s.changed(ctx, c, id)
	return nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, c types.Collection, id string) error {
	return s.docs.Delete(ctx, c, id)
}

// ChildList returns the list at ref, or nil when it does not exist.
func (s *Store) ChildList(ctx context.Context, ref ListRef) ([]string, error) {
	raw, err := s.docs.Get(ctx, ref.Collection, ref.ID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	if ref.Field == "" {
		return decodeList(raw, ref)
	}
	fields, err := decodeFields(raw, ref)
	if err != nil {
		return nil, err
	}
	field, ok := fields[ref.Field]
	if !ok {
		return nil, nil
	}
	return decodeList(field, ref)
}

// TransactionalUpdate applies fn to the list at ref as one atomic
// read-modify-write. fn receives nil when the list is absent. Unchanged lists
// are not rewritten, and a list field of a missing user document is left
// alone.
func (s *Store) TransactionalUpdate(ctx context.Context, ref ListRef, fn func([]string) []string) error {
	wrote := false
	err := s.docs.Update(ctx, ref.Collection, ref.ID, func(cur json.RawMessage) (json.RawMessage, error) {
		wrote = false
		if ref.Field == "" {
			var list []string
			if cur != nil {
				decoded, err := decodeList(cur, ref)
				if err != nil {
					return nil, err
				}
				list = decoded
			}
			next := normalise(fn(list))
			if listset.Equal(list, next) && (cur != nil || len(next) == 0) {
				return nil, nil
			}
			wrote = true
			return json.Marshal(next)
		}

		if cur == nil {
			return nil, nil
		}
		fields, err := decodeFields(cur, ref)
		if err != nil {
			return nil, err
		}
		var list []string
		if raw, ok := fields[ref.Field]; ok {
			if list, err = decodeList(raw, ref); err != nil {
				return nil, err
			}
		}
		next := normalise(fn(list))
		if listset.Equal(list, next) {
			return nil, nil
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return nil, err
		}
		fields[ref.Field] = encoded
		wrote = true
		return json.Marshal(fields)
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", ref, err)
	}
	if wrote {
		s.changed(ctx, ref.Collection, ref.ID)
	}
	return nil
}

// Add merges ids into the list at ref.
func (s *Store) Add(ctx context.Context, ref ListRef, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.TransactionalUpdate(ctx, ref, func(cur []string) []string {
		return listset.Add(cur, ids...)
	})
}

// Remove drops ids from the list at ref.
func (s *Store) Remove(ctx context.Context, ref ListRef, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.TransactionalUpdate(ctx, ref, func(cur []string) []string {
		return listset.Remove(cur, ids...)
	})
}

// Merge sets the given top-level fields, creating the document if needed.
func (s *Store) Merge(ctx context.Context, c types.Collection, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	err := s.docs.Update(ctx, c, id, func(cur json.RawMessage) (json.RawMessage, error) {
		doc := map[string]json.RawMessage{}
		if cur != nil {
			decoded, err := decodeFields(cur, ListRef{Collection: c, ID: id})
			if err != nil {
				return nil, err
			}
			doc = decoded
		}
		for k, v := range fields {
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode field %s: %w", k, err)
			}
			doc[k] = raw
		}
		return json.Marshal(doc)
	})
	if err != nil {
		return fmt.Errorf("merge %s/%s: %w", c, id, err)
	}
	s.changed(ctx, c, id)
	return nil
}

// Item returns the event or announcement, or nil when it does not exist.
func (s *Store) Item(ctx context.Context, kind types.Kind, id string) (*types.Item, error) {
	var item types.Item
	ok, err := s.Get(ctx, kind.Collection(), id, &item)
	if err != nil || !ok {
		return nil, err
	}
	if item.ID == "" {
		item.ID = id
	}
	return &item, nil
}

// Items fetches ids in order, skipping the ones that no longer exist.
func (s *Store) Items(ctx context.Context, kind types.Kind, ids []string) ([]*types.Item, error) {
	items := make([]*types.Item, 0, len(ids))
	for _, id := range ids {
		item, err := s.Item(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		if item != nil {
			items = append(items, item)
		}
	}
	return items, nil
}

// Group returns the group, or nil when it does not exist.
func (s *Store) Group(ctx context.Context, id string) (*types.Group, error) {
	var g types.Group
	ok, err := s.Get(ctx, types.CollectionGroups, id, &g)
	if err != nil || !ok {
		return nil, err
	}
	if g.ID == "" {
		g.ID = id
	}
	return &g, nil
}

// Groups returns every group ordered by id.
func (s *Store) Groups(ctx context.Context) ([]*types.Group, error) {
	docs, err := s.docs.All(ctx, types.CollectionGroups)
	if err != nil {
		return nil, err
	}
	groups := make([]*types.Group, 0, len(docs))
	for id, raw := range docs {
		var g types.Group
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, fmt.Errorf("decode groups/%s: %w", id, err)
		}
		if g.ID == "" {
			g.ID = id
		}
		groups = append(groups, &g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

// User returns the user, or nil when it does not exist.
func (s *Store) User(ctx context.Context, id string) (*types.User, error) {
	var u types.User
	ok, err := s.Get(ctx, types.CollectionUsers, id, &u)
	if err != nil || !ok {
		return nil, err
	}
	if u.ID == "" {
		u.ID = id
	}
	return &u, nil
}

// Attendance returns the attendance record for an event, or nil.
func (s *Store) Attendance(ctx context.Context, eventID string) (*types.Attendance, error) {
	var a types.Attendance
	ok, err := s.Get(ctx, types.CollectionAttendance, eventID, &a)
	if err != nil || !ok {
		return nil, err
	}
	return &a, nil
}

func decodeList(raw json.RawMessage, ref ListRef) ([]string, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode list %s: %w", ref, err)
	}
	return list, nil
}

func decodeFields(raw json.RawMessage, ref ListRef) (map[string]json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if string(raw) == "null" {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", ref, err)
	}
	return fields, nil
}

func normalise(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

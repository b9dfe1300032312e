// internal/state/filestore.go
package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/user/blurt/internal/types"
)

// FileStore is a JSON-file-backed document store. Each document lives at
// docs/<collection>/<escaped id>.json. Writes to one key are serialised by a
// per-key mutex and land atomically through a temp file and rename.
type FileStore struct {
	root  string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates a FileStore rooted at the given directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{
		root:  root,
		locks: make(map[string]*sync.Mutex),
	}
}

// getLock returns the per-key mutex, creating one if it doesn't exist.
func (s *FileStore) getLock(c types.Collection, id string) *sync.Mutex {
	key := string(c) + "/" + id
	s.mu.Lock()
	defer s.mu.Unlock()

	if lock, ok := s.locks[key]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[key] = lock
	return lock
}

func (s *FileStore) collectionDir(c types.Collection) string {
	return filepath.Join(s.root, "docs", url.PathEscape(string(c)))
}

func (s *FileStore) docPath(c types.Collection, id string) string {
	return filepath.Join(s.collectionDir(c), url.PathEscape(id)+".json")
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("invalid document id: empty")
	}
	return nil
}

// read loads a document. Caller must hold the key lock.
func (s *FileStore) read(c types.Collection, id string) (json.RawMessage, error) {
	data, err := os.ReadFile(s.docPath(c, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s/%s: %w", c, id, err)
	}
	return json.RawMessage(data), nil
}

// write replaces a document atomically. Caller must hold the key lock.
func (s *FileStore) write(c types.Collection, id string, doc json.RawMessage) error {
	if !json.Valid(doc) {
		return fmt.Errorf("write %s/%s: invalid JSON document", c, id)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, doc, "", "  "); err != nil {
		return fmt.Errorf("indent %s/%s: %w", c, id, err)
	}
	buf.WriteByte('\n')

	if err := os.MkdirAll(s.collectionDir(c), 0o755); err != nil {
		return fmt.Errorf("create collection dir: %w", err)
	}

	path := s.docPath(c, id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write temp document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp document: %w", err)
	}
	return nil
}

// Get returns the document or nil when it does not exist.
func (s *FileStore) Get(_ context.Context, c types.Collection, id string) (json.RawMessage, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	lock := s.getLock(c, id)
	lock.Lock()
	defer lock.Unlock()

	return s.read(c, id)
}

// All returns every document in the collection keyed by id.
func (s *FileStore) All(_ context.Context, c types.Collection) (map[string]json.RawMessage, error) {
	entries, err := os.ReadDir(s.collectionDir(c))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("list %s: %w", c, err)
	}

	docs := make(map[string]json.RawMessage, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		doc, err := s.Get(context.Background(), c, id)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			docs[id] = doc
		}
	}
	return docs, nil
}

// Put replaces the document with doc.
func (s *FileStore) Put(_ context.Context, c types.Collection, id string, doc json.RawMessage) error {
	if err := validID(id); err != nil {
		return err
	}
	lock := s.getLock(c, id)
	lock.Lock()
	defer lock.Unlock()

	return s.write(c, id, doc)
}

// Delete removes the document. Deleting a missing document is not an error.
func (s *FileStore) Delete(_ context.Context, c types.Collection, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	lock := s.getLock(c, id)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.docPath(c, id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s/%s: %w", c, id, err)
	}
	return nil
}

// Update runs fn under the key lock. A nil result leaves the document as is.
func (s *FileStore) Update(_ context.Context, c types.Collection, id string, fn func(cur json.RawMessage) (json.RawMessage, error)) error {
	if err := validID(id); err != nil {
		return err
	}
	lock := s.getLock(c, id)
	lock.Lock()
	defer lock.Unlock()

	cur, err := s.read(c, id)
	if err != nil {
		return err
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	return s.write(c, id, next)
}

// Close is a no-op; files are written synchronously.
func (s *FileStore) Close() error { return nil }

// Package sqlstore implements types.DocStore on a SQL table of JSON bodies.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/user/blurt/internal/database"
	"github.com/user/blurt/internal/types"
)

var _ types.DocStore = (*Store)(nil)

// Store keeps every collection in the documents table.
type Store struct {
	db      *sql.DB
	dialect database.Dialect
}

// New wraps an already migrated database.
func New(db *sql.DB, dialect database.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Open opens and migrates the database named by driver and dsn.
func Open(driver, dsn string) (*Store, error) {
	dialect, err := database.ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(dialect, dsn)
	if err != nil {
		return nil, err
	}
	return New(db, dialect), nil
}

func (s *Store) q(query string) string {
	return database.Rebind(s.dialect, query)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) get(ctx context.Context, q queryer, c types.Collection, id string) (json.RawMessage, error) {
	var body string
	err := q.QueryRowContext(ctx, s.q(`SELECT body FROM documents WHERE collection = ? AND id = ?`), string(c), id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", c, id, err)
	}
	return json.RawMessage(body), nil
}

func (s *Store) put(ctx context.Context, q queryer, c types.Collection, id string, doc json.RawMessage) error {
	if !json.Valid(doc) {
		return fmt.Errorf("put %s/%s: invalid JSON document", c, id)
	}
	_, err := q.ExecContext(ctx, s.q(`
		INSERT INTO documents (collection, id, body, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`),
		string(c), id, string(doc))
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", c, id, err)
	}
	return nil
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("invalid document id: empty")
	}
	return nil
}

// Get returns the document or nil when it does not exist.
func (s *Store) Get(ctx context.Context, c types.Collection, id string) (json.RawMessage, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	return s.get(ctx, s.db, c, id)
}

// All returns every document in the collection keyed by id.
func (s *Store) All(ctx context.Context, c types.Collection) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, body FROM documents WHERE collection = ? ORDER BY id`), string(c))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}
	defer rows.Close()

	docs := make(map[string]json.RawMessage)
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c, err)
		}
		docs[id] = json.RawMessage(body)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}
	return docs, nil
}

// Put replaces the document with doc.
func (s *Store) Put(ctx context.Context, c types.Collection, id string, doc json.RawMessage) error {
	if err := validID(id); err != nil {
		return err
	}
	return s.put(ctx, s.db, c, id, doc)
}

// Delete removes the document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, c types.Collection, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM documents WHERE collection = ? AND id = ?`), string(c), id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", c, id, err)
	}
	return nil
}

// Update runs fn inside a transaction. On Postgres the key is held with a
// transaction-scoped advisory lock so concurrent creations of the same
// document cannot interleave.
func (s *Store) Update(ctx context.Context, c types.Collection, id string, fn func(cur json.RawMessage) (json.RawMessage, error)) error {
	if err := validID(id); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update %s/%s: %w", c, id, err)
	}
	defer tx.Rollback()

	if s.dialect == database.Postgres {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(c)+"/"+id); err != nil {
			return fmt.Errorf("lock %s/%s: %w", c, id, err)
		}
	}

	cur, err := s.get(ctx, tx, c, id)
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
	if err := s.put(ctx, tx, c, id, next); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update %s/%s: %w", c, id, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

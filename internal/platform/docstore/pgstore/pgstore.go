// Package pgstore is a docstore driver on Postgres: every document is a JSONB
// row keyed by (collection, id). Field transforms are resolved in Go under a
// row lock, so semantics match the other drivers exactly.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/animestream/internal/platform/docstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_data_gin ON documents USING GIN (data jsonb_path_ops);`

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db  *pgxpool.Pool
	now func() time.Time
}

var _ docstore.Store = (*Store)(nil)

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureSchema creates the documents table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("pgstore schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Snapshot, error) {
	return get(ctx, s.db, collection, id, false)
}

func get(ctx context.Context, q querier, collection, id string, lock bool) (docstore.Snapshot, error) {
	sql := `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	if lock {
		sql += ` FOR UPDATE`
	}
	var raw []byte
	err := q.QueryRow(ctx, sql, collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.Snapshot{}, fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, collection, id)
	}
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("pgstore get %s/%s: %w", collection, id, err)
	}
	data, err := decode(raw)
	if err != nil {
		return docstore.Snapshot{}, err
	}
	return docstore.Snapshot{ID: id, Data: data}, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any, opts ...docstore.SetOption) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.set(ctx, tx, collection, id, data, docstore.HasMerge(opts))
	})
}

func (s *Store) set(ctx context.Context, q querier, collection, id string, data map[string]any, merge bool) error {
	var existing map[string]any
	if merge {
		snap, err := get(ctx, q, collection, id, true)
		switch {
		case err == nil:
			existing = snap.Data
		case !docstore.IsNotFound(err):
			return err
		}
	}
	return s.write(ctx, q, collection, id, docstore.ApplySet(existing, data, merge, s.now()))
}

func (s *Store) write(ctx context.Context, q querier, collection, id string, data map[string]any) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`, collection, id, string(raw))
	if err != nil {
		return fmt.Errorf("pgstore write %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	if err := s.write(ctx, s.db, collection, id, docstore.ApplySet(nil, data, false, s.now())); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, updates []docstore.Update) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.update(ctx, tx, collection, id, updates)
	})
}

func (s *Store) update(ctx context.Context, q querier, collection, id string, updates []docstore.Update) error {
	snap, err := get(ctx, q, collection, id, true)
	if err != nil {
		return err
	}
	next, err := docstore.ApplyUpdates(snap.Data, updates, s.now())
	if err != nil {
		return err
	}
	return s.write(ctx, q, collection, id, next)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return del(ctx, s.db, collection, id)
}

func del(ctx context.Context, q querier, collection, id string) error {
	if _, err := q.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id); err != nil {
		return fmt.Errorf("pgstore delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	sql, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore query %s: %w", q.String(), err)
	}
	defer rows.Close()

	var out []docstore.Snapshot
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("pgstore scan: %w", err)
		}
		data, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, docstore.Snapshot{ID: id, Data: data})
	}
	return out, rows.Err()
}

// RunTransaction runs fn inside a Postgres transaction. Reads take row
// locks, so concurrent read-modify-write cycles on one document serialize.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{s: s, ctx: ctx, tx: tx})
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgstore begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct {
	s   *Store
	ctx context.Context
	tx  pgx.Tx
}

func (t *pgTx) Get(collection, id string) (docstore.Snapshot, error) {
	return get(t.ctx, t.tx, collection, id, true)
}

func (t *pgTx) Set(collection, id string, data map[string]any, opts ...docstore.SetOption) error {
	return t.s.set(t.ctx, t.tx, collection, id, data, docstore.HasMerge(opts))
}

func (t *pgTx) Update(collection, id string, updates []docstore.Update) error {
	return t.s.update(t.ctx, t.tx, collection, id, updates)
}

func (t *pgTx) Delete(collection, id string) error {
	return del(t.ctx, t.tx, collection, id)
}

// Package memstore is an in-memory docstore driver for development and tests.
// It can optionally enforce declared composite indexes so that callers'
// missing-index handling is exercised without a real database.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/animestream/internal/platform/docstore"
)

// Index declares a composite index over a set of fields of a collection
// (matched by the last path segment, so "favorites" covers every user's
// subcollection).
type Index struct {
	Collection string
	Fields     []string
}

type Options struct {
	EnforceIndexes bool
	Indexes        []Index
	// Now overrides the clock used for ServerTimestamp.
	Now func() time.Time
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	docs    map[string]map[string]map[string]any // collection -> id -> data
	opts    Options
	lastNow time.Time
}

func New(opts ...Options) *Store {
	s := &Store{docs: make(map[string]map[string]map[string]any)}
	if len(opts) > 0 {
		s.opts = opts[0]
	}
	return s
}

var _ docstore.Store = (*Store)(nil)

// DeclareIndex adds a composite index at runtime.
func (s *Store) DeclareIndex(idx Index) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Indexes = append(s.opts.Indexes, idx)
}

// now returns a strictly increasing timestamp so that ordering by server
// timestamps is deterministic even within one clock tick.
func (s *Store) now() time.Time {
	t := time.Now().UTC()
	if s.opts.Now != nil {
		t = s.opts.Now().UTC()
	}
	if !t.After(s.lastNow) {
		t = s.lastNow.Add(time.Microsecond)
	}
	s.lastNow = t
	return t
}

func (s *Store) Get(_ context.Context, collection, id string) (docstore.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(collection, id)
}

func (s *Store) get(collection, id string) (docstore.Snapshot, error) {
	data, ok := s.docs[collection][id]
	if !ok {
		return docstore.Snapshot{}, fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, collection, id)
	}
	return docstore.Snapshot{ID: id, Data: docstore.DeepCopyMap(data)}, nil
}

func (s *Store) Set(_ context.Context, collection, id string, data map[string]any, opts ...docstore.SetOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(collection, id, data, docstore.HasMerge(opts))
	return nil
}

func (s *Store) set(collection, id string, data map[string]any, merge bool) {
	coll := s.docs[collection]
	if coll == nil {
		coll = make(map[string]map[string]any)
		s.docs[collection] = coll
	}
	coll[id] = docstore.ApplySet(coll[id], data, merge, s.now())
}

func (s *Store) Add(_ context.Context, collection string, data map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	s.set(collection, id, data, false)
	return id, nil
}

func (s *Store) Update(_ context.Context, collection, id string, updates []docstore.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(collection, id, updates)
}

func (s *Store) update(collection, id string, updates []docstore.Update) error {
	cur, ok := s.docs[collection][id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, collection, id)
	}
	next, err := docstore.ApplyUpdates(cur, updates, s.now())
	if err != nil {
		return err
	}
	s.docs[collection][id] = next
	return nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs[collection], id)
	return nil
}

func (s *Store) Query(_ context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.EnforceIndexes && needsComposite(q) && !s.hasIndex(q) {
		return nil, fmt.Errorf("%w: %s", docstore.ErrMissingIndex, q.String())
	}

	var out []docstore.Snapshot
	for id, data := range s.docs[q.Collection] {
		if matches(data, q) {
			out = append(out, docstore.Snapshot{ID: id, Data: docstore.DeepCopyMap(data)})
		}
	}
	sortSnapshots(out, q.Orders)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// RunTransaction holds the store lock for the whole callback; writes are
// buffered and applied only when fn succeeds.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, w := range tx.writes {
		if err := w(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }

// Len reports the number of documents in a collection.
func (s *Store) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs[collection])
}

type memTx struct {
	s      *Store
	writes []func() error
}

func (t *memTx) Get(collection, id string) (docstore.Snapshot, error) {
	if len(t.writes) > 0 {
		return docstore.Snapshot{}, fmt.Errorf("docstore: transaction reads must precede writes")
	}
	return t.s.get(collection, id)
}

func (t *memTx) Set(collection, id string, data map[string]any, opts ...docstore.SetOption) error {
	data = docstore.DeepCopyMap(data)
	merge := docstore.HasMerge(opts)
	t.writes = append(t.writes, func() error {
		t.s.set(collection, id, data, merge)
		return nil
	})
	return nil
}

func (t *memTx) Update(collection, id string, updates []docstore.Update) error {
	if _, ok := t.s.docs[collection][id]; !ok {
		return fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, collection, id)
	}
	t.writes = append(t.writes, func() error {
		return t.s.update(collection, id, updates)
	})
	return nil
}

func (t *memTx) Delete(collection, id string) error {
	t.writes = append(t.writes, func() error {
		delete(t.s.docs[collection], id)
		return nil
	})
	return nil
}

// needsComposite approximates the managed database's rule: a single field is
// always indexed, and several equality predicates without ordering can be
// merged; anything else spanning two or more fields needs a composite index.
func needsComposite(q docstore.Query) bool {
	if len(q.Fields()) <= 1 {
		return false
	}
	if len(q.Orders) > 0 {
		return true
	}
	for _, f := range q.Filters {
		if f.Op != docstore.OpEqual {
			return true
		}
	}
	return false
}

func (s *Store) hasIndex(q docstore.Query) bool {
	segs := strings.Split(q.Collection, "/")
	group := segs[len(segs)-1]
	want := append([]string(nil), q.Fields()...)
	sort.Strings(want)
	for _, idx := range s.opts.Indexes {
		if idx.Collection != group && idx.Collection != q.Collection {
			continue
		}
		have := append([]string(nil), idx.Fields...)
		sort.Strings(have)
		if strings.Join(have, ",") == strings.Join(want, ",") {
			return true
		}
	}
	return false
}

// Package docstore is the persistence boundary: a small document-database
// contract (collections of schemaless documents, predicate queries, field
// transforms, transactions) implemented by the Firestore, Postgres JSONB and
// in-memory drivers.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrMissingIndex is returned (wrapped with a diagnostic) when the backend
	// refuses a query because a composite index is not provisioned.
	ErrMissingIndex = errors.New("docstore: query requires a composite index")
)

// Snapshot is a document read from the store.
type Snapshot struct {
	ID   string
	Data map[string]any
}

// DataTo decodes the document fields into v using its json tags.
func (s Snapshot) DataTo(v any) error {
	b, err := json.Marshal(s.Data)
	if err != nil {
		return fmt.Errorf("docstore: encode %s: %w", s.ID, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("docstore: decode %s: %w", s.ID, err)
	}
	return nil
}

// Update is a single field write for Store.Update / Tx.Update. Path may be
// dotted to address nested map fields.
type Update struct {
	Path  string
	Value any
}

// SetOption modifies Set behaviour.
type SetOption int

// MergeAll merges the given fields into an existing document instead of
// replacing it. Nested maps are merged, arrays are replaced.
const MergeAll SetOption = 1

// HasMerge reports whether opts contains MergeAll.
func HasMerge(opts []SetOption) bool {
	for _, o := range opts {
		if o == MergeAll {
			return true
		}
	}
	return false
}

// Tx is the view of the store inside RunTransaction. All reads must happen
// before the first write.
type Tx interface {
	Get(collection, id string) (Snapshot, error)
	Set(collection, id string, data map[string]any, opts ...SetOption) error
	Update(collection, id string, updates []Update) error
	Delete(collection, id string) error
}

// Store is implemented by every driver.
type Store interface {
	Get(ctx context.Context, collection, id string) (Snapshot, error)
	Set(ctx context.Context, collection, id string, data map[string]any, opts ...SetOption) error
	// Add creates a document with a store-assigned id.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	// Update fails with ErrNotFound when the document does not exist.
	Update(ctx context.Context, collection, id string, updates []Update) error
	// Delete is idempotent.
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]Snapshot, error)
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

// Path joins collection and document segments: Path("users", uid, "favorites").
func Path(segments ...string) string {
	return strings.Join(segments, "/")
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsMissingIndex reports whether err is (or wraps) ErrMissingIndex.
func IsMissingIndex(err error) bool { return errors.Is(err, ErrMissingIndex) }

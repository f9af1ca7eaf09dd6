// Package fsstore is the Cloud Firestore docstore driver.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/animestream/internal/platform/docstore"
)

type Store struct {
	client *firestore.Client
}

var _ docstore.Store = (*Store)(nil)

// Open creates a Firestore client. credentialsFile may be empty to use
// application default credentials.
func Open(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) doc(collection, id string) *firestore.DocumentRef {
	return s.client.Collection(collection).Doc(id)
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Snapshot, error) {
	snap, err := s.doc(collection, id).Get(ctx)
	if err != nil {
		return docstore.Snapshot{}, translate(err, collection+"/"+id)
	}
	return toSnapshot(snap), nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any, opts ...docstore.SetOption) error {
	_, err := s.doc(collection, id).Set(ctx, toFirestore(data), setOptions(opts)...)
	return translate(err, collection+"/"+id)
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, toFirestore(data))
	if err != nil {
		return "", translate(err, collection)
	}
	return ref.ID, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, updates []docstore.Update) error {
	_, err := s.doc(collection, id).Update(ctx, toUpdates(updates))
	return translate(err, collection+"/"+id)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.doc(collection, id).Delete(ctx)
	return translate(err, collection+"/"+id)
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	fq := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Field, string(f.Op), toFirestoreValue(f.Value))
	}
	for _, o := range q.Orders {
		dir := firestore.Asc
		if o.Dir == docstore.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(o.Field, dir)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}

	iter := fq.Documents(ctx)
	defer iter.Stop()
	var out []docstore.Snapshot
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, translateQuery(err, q)
		}
		out = append(out, toSnapshot(snap))
	}
	return out, nil
}

// RunTransaction delegates optimistic-concurrency retries to the client
// library: fn may run more than once.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		return fn(ctx, &fsTx{s: s, tx: ftx})
	})
	return translate(err, "transaction")
}

type fsTx struct {
	s  *Store
	tx *firestore.Transaction
}

func (t *fsTx) Get(collection, id string) (docstore.Snapshot, error) {
	snap, err := t.tx.Get(t.s.doc(collection, id))
	if err != nil {
		return docstore.Snapshot{}, translate(err, collection+"/"+id)
	}
	return toSnapshot(snap), nil
}

func (t *fsTx) Set(collection, id string, data map[string]any, opts ...docstore.SetOption) error {
	return t.tx.Set(t.s.doc(collection, id), toFirestore(data), setOptions(opts)...)
}

func (t *fsTx) Update(collection, id string, updates []docstore.Update) error {
	return t.tx.Update(t.s.doc(collection, id), toUpdates(updates))
}

func (t *fsTx) Delete(collection, id string) error {
	return t.tx.Delete(t.s.doc(collection, id))
}

func toSnapshot(snap *firestore.DocumentSnapshot) docstore.Snapshot {
	return docstore.Snapshot{ID: snap.Ref.ID, Data: snap.Data()}
}

func setOptions(opts []docstore.SetOption) []firestore.SetOption {
	if docstore.HasMerge(opts) {
		return []firestore.SetOption{firestore.MergeAll}
	}
	return nil
}

func toUpdates(updates []docstore.Update) []firestore.Update {
	out := make([]firestore.Update, len(updates))
	for i, u := range updates {
		out[i] = firestore.Update{Path: u.Path, Value: toFirestoreValue(u.Value)}
	}
	return out
}

func toFirestore(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = toFirestoreValue(v)
	}
	return out
}

// toFirestoreValue maps docstore transforms onto Firestore sentinels.
// Transforms are only valid outside arrays, so slices are passed through.
func toFirestoreValue(v any) any {
	switch t := v.(type) {
	case docstore.ServerTimestampOp:
		return firestore.ServerTimestamp
	case docstore.DeleteFieldOp:
		return firestore.Delete
	case docstore.IncrementOp:
		return firestore.Increment(t.By)
	case docstore.ArrayUnionOp:
		return firestore.ArrayUnion(t.Values...)
	case docstore.ArrayRemoveOp:
		return firestore.ArrayRemove(t.Values...)
	case map[string]any:
		return toFirestore(t)
	}
	return v
}

func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", docstore.ErrNotFound, what)
	}
	return err
}

func translateQuery(err error, q docstore.Query) error {
	if isMissingIndex(err) {
		return fmt.Errorf("%w: %s (%s)", docstore.ErrMissingIndex, q.String(), status.Convert(err).Message())
	}
	return translate(err, q.Collection)
}

// isMissingIndex recognizes the FAILED_PRECONDITION Firestore returns when a
// query needs a composite index that has not been created.
func isMissingIndex(err error) bool {
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.FailedPrecondition {
		return false
	}
	for _, d := range st.Details() {
		if pf, ok := d.(*errdetails.PreconditionFailure); ok {
			for _, v := range pf.GetViolations() {
				if strings.Contains(strings.ToLower(v.GetType()+v.GetDescription()), "index") {
					return true
				}
			}
		}
	}
	return strings.Contains(strings.ToLower(st.Message()), "index")
}

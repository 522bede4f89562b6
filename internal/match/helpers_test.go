package match

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blueoctober14/RightImpact/internal/model"
	"github.com/blueoctober14/RightImpact/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var errStorage = errors.New("simulated storage failure")

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testOptions() Options {
	return Options{UnitTimeout: 5 * time.Second}
}

func addSource(t *testing.T, st store.Store, first, last string, phones ...string) *model.SourceContact {
	t.Helper()
	c := &model.SourceContact{FirstName: first, LastName: last}
	fields := []*string{&c.Mobile1, &c.Mobile2, &c.Mobile3}
	for i, p := range phones {
		*fields[i] = p
	}
	require.NoError(t, st.CreateSourceContact(context.Background(), c))
	return c
}

func addList(t *testing.T, st store.Store, name string) *model.TargetList {
	t.Helper()
	l := &model.TargetList{Name: name, Status: model.ListStatusCompleted}
	require.NoError(t, st.CreateTargetList(context.Background(), l))
	return l
}

func addTarget(t *testing.T, st store.Store, listID int64, voterID, first, last, cell string) *model.TargetContact {
	t.Helper()
	c := &model.TargetContact{ListID: listID, VoterID: voterID, FirstName: first, LastName: last, ZipCode: "73301", Cell1: cell}
	require.NoError(t, st.CreateTargetContact(context.Background(), c))
	return c
}

// faultyStore injects a storage failure into the transaction of selected
// source contacts. The failure fires when the unit marks the source matched,
// after the match row and target flags were already written.
type faultyStore struct {
	*store.SQLiteStore

	mu        sync.Mutex
	failFor   map[int64]error
	failTimes map[int64]int
}

func newFaultyStore(st *store.SQLiteStore) *faultyStore {
	return &faultyStore{SQLiteStore: st, failFor: map[int64]error{}, failTimes: map[int64]int{}}
}

// failAlways makes every unit for id fail with err.
func (f *faultyStore) failAlways(id int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[id] = err
	f.failTimes[id] = -1
}

// failN makes the next n units for id fail with err.
func (f *faultyStore) failN(id int64, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[id] = err
	f.failTimes[id] = n
}

func (f *faultyStore) RunInTx(ctx context.Context, fn func(q store.Queries) error) error {
	return f.SQLiteStore.RunInTx(ctx, func(q store.Queries) error {
		return fn(&faultyQueries{Queries: q, store: f})
	})
}

func (f *faultyStore) take(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err, ok := f.failFor[id]
	if !ok {
		return nil
	}
	switch n := f.failTimes[id]; {
	case n < 0:
		return err
	case n == 0:
		return nil
	default:
		f.failTimes[id] = n - 1
		return err
	}
}

type faultyQueries struct {
	store.Queries
	store *faultyStore
}

func (q *faultyQueries) MarkSourceMatched(ctx context.Context, id int64) error {
	if err := q.store.take(id); err != nil {
		return err
	}
	return q.Queries.MarkSourceMatched(ctx, id)
}

package testutil

import (
	"context"
	"sync"

	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
	"github.com/dalemusser/campusdesk/internal/app/system/backend"
)

// FakeBackend is an in-memory backend.Client. Queries run through the same
// guarded datastore the server uses, so table, scope and identifier rules
// apply, and every executed query is recorded for assertions.
type FakeBackend struct {
	Store *datastore.Memory

	direct *backend.Direct

	mu      sync.Mutex
	queries []*backend.Query
	fail    error
}

// NewFakeBackend returns an empty fake.
func NewFakeBackend() *FakeBackend {
	mem := datastore.NewMemory()
	return &FakeBackend{
		Store:  mem,
		direct: backend.NewDirect(datastore.NewGuarded(mem, datastore.DefaultTables())),
	}
}

func (f *FakeBackend) Name() backend.Name { return "fake" }

func (f *FakeBackend) From(table string) *backend.Query { return backend.NewQuery(f, table) }

func (f *FakeBackend) Run(ctx context.Context, q *backend.Query) (backend.Rows, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	fail := f.fail
	f.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	return f.direct.Run(ctx, q)
}

// FailWith makes every following query return err; nil restores normal
// behavior.
func (f *FakeBackend) FailWith(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

// Calls is the number of queries that reached the backend.
func (f *FakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// Queries returns the executed queries in order.
func (f *FakeBackend) Queries() []*backend.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*backend.Query(nil), f.queries...)
}

// LastQuery returns the most recent query, or nil.
func (f *FakeBackend) LastQuery() *backend.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return nil
	}
	return f.queries[len(f.queries)-1]
}

// ResetCalls forgets recorded queries.
func (f *FakeBackend) ResetCalls() {
	f.mu.Lock()
	f.queries = nil
	f.mu.Unlock()
}

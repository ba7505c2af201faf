// internal/app/system/backend/direct.go
package backend

import (
	"context"
	"errors"

	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
)

// Direct runs queries in-process against the server's datastore. The API
// server uses it for its own features so they share the query and error
// shape with remote callers.
type Direct struct {
	store datastore.Store
}

// NewDirect wraps store.
func NewDirect(store datastore.Store) *Direct {
	return &Direct{store: store}
}

func (c *Direct) Name() Name { return NameDirect }

func (c *Direct) From(table string) *Query { return NewQuery(c, table) }

func (c *Direct) Run(ctx context.Context, q *Query) (Rows, error) {
	var (
		rows []datastore.Row
		err  error
	)
	switch q.Op() {
	case OpSelect:
		crit := datastore.Criteria{
			Columns: q.ColumnList(),
			Filter:  q.FilterMap(),
			Limit:   q.LimitN(),
		}
		for _, o := range q.Orders() {
			crit.Order = append(crit.Order, datastore.Sort{Column: o.Column, Desc: !o.Ascending})
		}
		rows, err = c.store.Find(ctx, q.Table(), crit)
	case OpInsert:
		in := make([]datastore.Row, len(q.Rows()))
		copy(in, q.Rows())
		rows, err = c.store.Insert(ctx, q.Table(), in)
	case OpUpdate:
		rows, err = c.store.Update(ctx, q.Table(), q.FilterMap(), q.Patch())
	case OpDelete:
		rows, err = c.store.Delete(ctx, q.Table(), q.FilterMap())
	default:
		return nil, ContextError("unsupported operation %q", q.Op())
	}
	if err != nil {
		return nil, directError(err)
	}
	out := Rows(rows)
	if q.Op() != OpSelect {
		out = project(out, q.ColumnList())
	}
	if out == nil {
		out = Rows{}
	}
	return out, nil
}

func directError(err error) error {
	switch {
	case errors.Is(err, datastore.ErrUnknownTable),
		errors.Is(err, datastore.ErrScopeRequired),
		errors.Is(err, datastore.ErrFilterRequired),
		errors.Is(err, datastore.ErrInvalidColumn),
		errors.Is(err, datastore.ErrDuplicate):
		return &Error{Kind: KindContext, Message: err.Error(), Err: err}
	}
	return TransportError(0, err.Error(), err)
}

// project keeps only cols of each row; nil cols keeps everything.
func project(rows Rows, cols []string) Rows {
	if len(cols) == 0 {
		return rows
	}
	out := make(Rows, len(rows))
	for i, r := range rows {
		p := make(Row, len(cols))
		for _, c := range cols {
			if v, ok := r[c]; ok {
				p[c] = v
			}
		}
		out[i] = p
	}
	return out
}

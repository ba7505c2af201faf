// internal/app/store/datastore/guarded.go
package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Guarded enforces the table allow-list, identifier rules and scoping
// invariants in front of a Store, and stamps ids and timestamps on writes.
type Guarded struct {
	Store  Store
	Tables Registry
	Now    func() time.Time
}

// NewGuarded wraps store with the given registry.
func NewGuarded(store Store, tables Registry) *Guarded {
	return &Guarded{Store: store, Tables: tables, Now: func() time.Time { return time.Now().UTC() }}
}

func (g *Guarded) Find(ctx context.Context, table string, c Criteria) ([]Row, error) {
	if _, err := g.Tables.Lookup(table); err != nil {
		return nil, fmt.Errorf("%s: %w", table, err)
	}
	if err := checkIdents(c.Columns, c.Filter, nil, c.Order); err != nil {
		return nil, err
	}
	return g.Store.Find(ctx, table, c)
}

func (g *Guarded) Insert(ctx context.Context, table string, rows []Row) ([]Row, error) {
	t, err := g.Tables.Lookup(table)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", table, err)
	}
	now := g.Now().Format(time.RFC3339Nano)
	prepared := make([]Row, len(rows))
	for i, in := range rows {
		if err := checkIdents(nil, nil, in, nil); err != nil {
			return nil, err
		}
		if err := checkScope(t, in); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", table, i, err)
		}
		r := make(Row, len(in)+3)
		for k, v := range in {
			r[k] = v
		}
		if id, _ := r["id"].(string); id == "" {
			r["id"] = uuid.NewString()
		}
		r["created_at"] = now
		r["updated_at"] = now
		prepared[i] = r
	}
	return g.Store.Insert(ctx, table, prepared)
}

func (g *Guarded) Update(ctx context.Context, table string, filter map[string]any, patch Row) ([]Row, error) {
	t, err := g.Tables.Lookup(table)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", table, err)
	}
	if len(filter) == 0 {
		return nil, ErrFilterRequired
	}
	if err := checkIdents(nil, filter, patch, nil); err != nil {
		return nil, err
	}
	p := make(Row, len(patch)+1)
	for k, v := range patch {
		if k == "id" || k == "created_at" {
			continue
		}
		if t.Scope != Unscoped && k == SchoolColumn && isBlank(v) {
			return nil, ErrScopeRequired
		}
		if t.Scope == YearScoped && k == YearColumn && isBlank(v) {
			return nil, ErrScopeRequired
		}
		p[k] = v
	}
	p["updated_at"] = g.Now().Format(time.RFC3339Nano)
	return g.Store.Update(ctx, table, filter, p)
}

func (g *Guarded) Delete(ctx context.Context, table string, filter map[string]any) ([]Row, error) {
	if _, err := g.Tables.Lookup(table); err != nil {
		return nil, fmt.Errorf("%s: %w", table, err)
	}
	if len(filter) == 0 {
		return nil, ErrFilterRequired
	}
	if err := checkIdents(nil, filter, nil, nil); err != nil {
		return nil, err
	}
	return g.Store.Delete(ctx, table, filter)
}

func (g *Guarded) Ping(ctx context.Context) error { return g.Store.Ping(ctx) }

func checkScope(t Table, r Row) error {
	switch t.Scope {
	case YearScoped:
		if isBlank(r[SchoolColumn]) || isBlank(r[YearColumn]) {
			return ErrScopeRequired
		}
	case SchoolScoped:
		if isBlank(r[SchoolColumn]) {
			return ErrScopeRequired
		}
	}
	return nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func checkIdents(cols []string, filter map[string]any, row Row, order []Sort) error {
	for _, c := range cols {
		if !ValidIdent(c) {
			return fmt.Errorf("%q: %w", c, ErrInvalidColumn)
		}
	}
	for c := range filter {
		if !ValidIdent(c) {
			return fmt.Errorf("%q: %w", c, ErrInvalidColumn)
		}
	}
	for c := range row {
		if !ValidIdent(c) {
			return fmt.Errorf("%q: %w", c, ErrInvalidColumn)
		}
	}
	for _, o := range order {
		if !ValidIdent(o.Column) {
			return fmt.Errorf("%q: %w", o.Column, ErrInvalidColumn)
		}
	}
	return nil
}

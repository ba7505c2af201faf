// internal/app/system/records/records.go
// Package records composes the scoped query builder with the read-only guard
// and the query cache. Reads go through the cache keyed by table, school and
// year; writes check the selection first and drop every cached read for the
// scope they touched.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/campusdesk/internal/app/system/backend"
	"github.com/dalemusser/campusdesk/internal/app/system/cache"
	"github.com/dalemusser/campusdesk/internal/app/system/scoped"
	"github.com/dalemusser/campusdesk/internal/app/system/selection"
	"go.uber.org/zap"
)

// DefaultTTL is used when Hooks.TTL is zero.
const DefaultTTL = 5 * time.Minute

// KeyPrefix starts every cache key written here.
const KeyPrefix = "campusdesk:records:"

// Selection is the source of the current scope. *selection.Context
// satisfies it.
type Selection interface {
	Snapshot() selection.Snapshot
}

// Hooks runs scoped reads and writes for whatever the selection names.
type Hooks struct {
	Client    backend.Client
	Selection Selection
	Cache     cache.Cache // nil disables caching
	Log       *zap.Logger
	TTL       time.Duration
}

// ListOptions narrows a List call.
type ListOptions struct {
	Columns string
	Filters []backend.Filter
	Order   []backend.Order
	Limit   int
}

// List returns scoped rows of table.
func (h *Hooks) List(ctx context.Context, table string, opts ListOptions) (backend.Rows, error) {
	snap := h.Selection.Snapshot()
	b, err := scoped.ForSelection(h.Client, table, snap)
	if err != nil {
		return nil, err
	}

	key := cacheKey(b, opts)
	if rows, ok := h.cached(ctx, key); ok {
		return rows, nil
	}

	q := b.Select(opts.Columns)
	for _, f := range opts.Filters {
		q = q.Eq(f.Column, f.Value)
	}
	for _, o := range opts.Order {
		q = q.Order(o.Column, o.Ascending)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	rows, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	h.store(ctx, key, rows)
	return rows, nil
}

// Create inserts rows into the current scope.
func (h *Hooks) Create(ctx context.Context, table string, rows ...backend.Row) (backend.Rows, error) {
	b, err := h.writable(table)
	if err != nil {
		return nil, err
	}
	out, err := b.Insert(rows...).Execute(ctx)
	if err != nil {
		return nil, err
	}
	h.invalidate(ctx, b)
	return out, nil
}

// Update patches the scoped row with the given id.
func (h *Hooks) Update(ctx context.Context, table, id string, patch backend.Row) (backend.Rows, error) {
	if strings.TrimSpace(id) == "" {
		return nil, backend.ContextError("update on %q requires an id", table)
	}
	b, err := h.writable(table)
	if err != nil {
		return nil, err
	}
	out, err := b.Update(patch).Eq("id", id).Execute(ctx)
	if err != nil {
		return nil, err
	}
	h.invalidate(ctx, b)
	return out, nil
}

// Delete removes the scoped row with the given id.
func (h *Hooks) Delete(ctx context.Context, table, id string) (backend.Rows, error) {
	if strings.TrimSpace(id) == "" {
		return nil, backend.ContextError("delete on %q requires an id", table)
	}
	b, err := h.writable(table)
	if err != nil {
		return nil, err
	}
	out, err := b.Delete().Eq("id", id).Execute(ctx)
	if err != nil {
		return nil, err
	}
	h.invalidate(ctx, b)
	return out, nil
}

// writable checks the guard before a builder is made, so a read-only or
// unresolved selection never reaches the backend.
func (h *Hooks) writable(table string) (*scoped.Builder, error) {
	snap := h.Selection.Snapshot()
	if err := snap.RequireWritable(); err != nil {
		return nil, err
	}
	return scoped.ForSelection(h.Client, table, snap)
}

func (h *Hooks) cached(ctx context.Context, key string) (backend.Rows, bool) {
	if h.Cache == nil {
		return nil, false
	}
	raw, ok, err := h.Cache.Get(ctx, key)
	if err != nil {
		h.logger().Warn("records cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var rows backend.Rows
	if err := json.Unmarshal(raw, &rows); err != nil {
		h.logger().Warn("records cache entry unreadable", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return rows, true
}

func (h *Hooks) store(ctx context.Context, key string, rows backend.Rows) {
	if h.Cache == nil {
		return
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return
	}
	ttl := h.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := h.Cache.Set(ctx, key, raw, ttl); err != nil {
		h.logger().Warn("records cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (h *Hooks) invalidate(ctx context.Context, b *scoped.Builder) {
	if err := Invalidate(ctx, h.Cache, b.Table(), b.SchoolID(), b.YearID()); err != nil {
		h.logger().Warn("records cache invalidation failed", zap.String("table", b.Table()), zap.Error(err))
	}
}

// Invalidate drops cached reads of table for one school and year. When
// either id is empty every cached read of table is dropped. A nil cache is
// a no-op.
func Invalidate(ctx context.Context, c cache.Cache, table, schoolID, yearID string) error {
	if c == nil {
		return nil
	}
	prefix := TablePrefix(table)
	if schoolID != "" && yearID != "" {
		prefix = ScopePrefix(table, schoolID, yearID)
	}
	return c.DeletePrefix(ctx, prefix)
}

func (h *Hooks) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// ScopePrefix is the cache key prefix shared by every read of table in one
// school and year.
func ScopePrefix(table, schoolID, yearID string) string {
	return TablePrefix(table) + schoolID + ":" + yearID + ":"
}

// TablePrefix is the cache key prefix shared by every read of table.
func TablePrefix(table string) string {
	return KeyPrefix + table + ":"
}

func cacheKey(b *scoped.Builder, opts ListOptions) string {
	var sb strings.Builder
	sb.WriteString(ScopePrefix(b.Table(), b.SchoolID(), b.YearID()))
	sb.WriteString(opts.Columns)

	filters := append([]backend.Filter(nil), opts.Filters...)
	sort.Slice(filters, func(i, j int) bool { return filters[i].Column < filters[j].Column })
	for _, f := range filters {
		fmt.Fprintf(&sb, "|%s=%v", f.Column, f.Value)
	}
	for _, o := range opts.Order {
		dir := "asc"
		if !o.Ascending {
			dir = "desc"
		}
		fmt.Fprintf(&sb, "|o:%s.%s", o.Column, dir)
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&sb, "|l:%d", opts.Limit)
	}
	return sb.String()
}

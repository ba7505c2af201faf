// internal/app/store/datastore/memory.go
package datastore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Store for development runs and tests. Rows are
// copied on the way in and out.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]Row
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{tables: map[string][]Row{}}
}

func (m *Memory) Find(_ context.Context, table string, c Criteria) ([]Row, error) {
	m.mu.RLock()
	var out []Row
	for _, r := range m.tables[table] {
		if matches(r, c.Filter) {
			out = append(out, copyRow(r))
		}
	}
	m.mu.RUnlock()

	if len(c.Order) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range c.Order {
				cmp := compare(out[i][o.Column], out[j][o.Column])
				if cmp == 0 {
					continue
				}
				if o.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}
	if c.Limit > 0 && len(out) > c.Limit {
		out = out[:c.Limit]
	}
	if len(c.Columns) > 0 {
		for i, r := range out {
			p := Row{}
			for _, col := range c.Columns {
				if v, ok := r[col]; ok {
					p[col] = v
				}
			}
			out[i] = p
		}
	}
	if out == nil {
		out = []Row{}
	}
	return out, nil
}

func (m *Memory) Insert(_ context.Context, table string, rows []Row) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		for _, existing := range m.tables[table] {
			if r["id"] != nil && fmt.Sprint(existing["id"]) == fmt.Sprint(r["id"]) {
				return nil, ErrDuplicate
			}
		}
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		m.tables[table] = append(m.tables[table], copyRow(r))
		out[i] = copyRow(r)
	}
	return out, nil
}

func (m *Memory) Update(_ context.Context, table string, filter map[string]any, patch Row) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Row{}
	for _, r := range m.tables[table] {
		if !matches(r, filter) {
			continue
		}
		for k, v := range patch {
			r[k] = v
		}
		out = append(out, copyRow(r))
	}
	return out, nil
}

func (m *Memory) Delete(_ context.Context, table string, filter map[string]any) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Row{}
	kept := m.tables[table][:0]
	for _, r := range m.tables[table] {
		if matches(r, filter) {
			out = append(out, copyRow(r))
			continue
		}
		kept = append(kept, r)
	}
	m.tables[table] = kept
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func matches(r Row, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := r[k]
		if want == nil {
			if ok && got != nil {
				return false
			}
			continue
		}
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func compare(a, b any) int {
	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func copyRow(r Row) Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

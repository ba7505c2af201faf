// internal/app/system/scoped/scoped.go
// Package scoped builds queries that are pinned to one school and one
// academic year. Every statement it produces carries both equality filters
// (or, for inserts, both columns) before the caller can add anything, so a
// scoped table cannot be read or written across tenants by omission.
package scoped

import (
	"strings"

	"github.com/dalemusser/campusdesk/internal/app/system/backend"
)

// Default scope columns.
const (
	SchoolColumn = "school_id"
	YearColumn   = "academic_year_id"
)

// Scope is anything that can name the school and year in effect, such as a
// selection snapshot.
type Scope interface {
	SchoolID() string
	YearID() string
}

// Builder issues scoped statements against one table.
type Builder struct {
	client    backend.Client
	table     string
	schoolID  string
	yearID    string
	schoolCol string
	yearCol   string
}

// Option adjusts a Builder.
type Option func(*Builder)

// WithColumns overrides the scope column names for tables that use other
// names.
func WithColumns(schoolCol, yearCol string) Option {
	return func(b *Builder) {
		if schoolCol != "" {
			b.schoolCol = schoolCol
		}
		if yearCol != "" {
			b.yearCol = yearCol
		}
	}
}

// New returns a Builder for table inside (schoolID, yearID). A missing table,
// client, or id is a context error; nothing is sent anywhere.
func New(client backend.Client, table, schoolID, yearID string, opts ...Option) (*Builder, error) {
	table = strings.TrimSpace(table)
	switch {
	case client == nil:
		return nil, backend.ContextError("scoped query on %q has no backend", table)
	case table == "":
		return nil, backend.ContextError("scoped query requires a table name")
	case strings.TrimSpace(schoolID) == "":
		return nil, backend.ContextError("scoped query on %q requires a school; none is selected", table)
	case strings.TrimSpace(yearID) == "":
		return nil, backend.ContextError("scoped query on %q requires an academic year; none is selected", table)
	}
	b := &Builder{
		client:    client,
		table:     table,
		schoolID:  schoolID,
		yearID:    yearID,
		schoolCol: SchoolColumn,
		yearCol:   YearColumn,
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// ForSelection builds from whatever scope s currently names.
func ForSelection(client backend.Client, table string, s Scope, opts ...Option) (*Builder, error) {
	if s == nil {
		return nil, backend.ContextError("scoped query on %q has no selection", table)
	}
	return New(client, table, s.SchoolID(), s.YearID(), opts...)
}

func (b *Builder) Table() string    { return b.table }
func (b *Builder) SchoolID() string { return b.schoolID }
func (b *Builder) YearID() string   { return b.yearID }

// Select reads scoped rows. Callers may chain further filters, order and
// limit; a filter that contradicts the scope makes the query fail.
func (b *Builder) Select(columns string) *backend.Query {
	return b.filtered().Select(columns)
}

// Insert writes rows with both scope columns set, replacing any value the
// caller put there. The caller's rows are not modified.
func (b *Builder) Insert(rows ...backend.Row) *backend.Query {
	scopedRows := make([]backend.Row, len(rows))
	for i, r := range rows {
		scopedRows[i] = b.stamp(r)
	}
	return b.client.From(b.table).Insert(scopedRows...)
}

// Update patches scoped rows. Scope columns in patch are pinned to the
// current scope, so an update cannot move a row into another tenant.
func (b *Builder) Update(patch backend.Row) *backend.Query {
	return b.filtered().Update(b.stamp(patch))
}

// Delete removes scoped rows matching the caller's further filters.
func (b *Builder) Delete() *backend.Query {
	return b.filtered().Delete()
}

func (b *Builder) filtered() *backend.Query {
	return b.client.From(b.table).Eq(b.schoolCol, b.schoolID).Eq(b.yearCol, b.yearID)
}

func (b *Builder) stamp(r backend.Row) backend.Row {
	out := make(backend.Row, len(r)+2)
	for k, v := range r {
		out[k] = v
	}
	out[b.schoolCol] = b.schoolID
	out[b.yearCol] = b.yearID
	return out
}

// internal/app/store/datastore/datastore.go
// Package datastore is the generic table storage behind the self-hosted
// API. Rows are plain maps keyed by column name; every row has a string "id".
package datastore

import (
	"context"
	"errors"
	"regexp"
)

// Row is one stored record.
type Row = map[string]any

// Sort is one ordering key.
type Sort struct {
	Column string
	Desc   bool
}

// Criteria selects rows for Find.
type Criteria struct {
	Columns []string       // nil → all columns
	Filter  map[string]any // equality conditions, ANDed
	Order   []Sort
	Limit   int // 0 → no limit
}

// Store is implemented by each storage engine.
type Store interface {
	Find(ctx context.Context, table string, c Criteria) ([]Row, error)
	// Insert stores rows as given and returns them.
	Insert(ctx context.Context, table string, rows []Row) ([]Row, error)
	// Update applies patch to every row matching filter and returns the
	// updated rows.
	Update(ctx context.Context, table string, filter map[string]any, patch Row) ([]Row, error)
	// Delete removes every row matching filter and returns what was removed.
	Delete(ctx context.Context, table string, filter map[string]any) ([]Row, error)
	Ping(ctx context.Context) error
}

var (
	ErrUnknownTable   = errors.New("unknown table")
	ErrScopeRequired  = errors.New("scoped table requires school_id and academic_year_id")
	ErrFilterRequired = errors.New("update and delete require a filter")
	ErrInvalidColumn  = errors.New("invalid column name")
	ErrDuplicate      = errors.New("duplicate key")
)

var identRE = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidIdent reports whether s is safe to use as a table or column name.
func ValidIdent(s string) bool {
	return identRE.MatchString(s)
}

// internal/app/system/backend/query.go
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Row is one record as exchanged with any backend.
type Row = map[string]any

// Rows is a query result.
type Rows []Row

// Decode copies rows into dst (a pointer to a slice of structs) through their
// JSON tags.
func (rs Rows) Decode(dst any) error {
	if rs == nil {
		rs = Rows{}
	}
	b, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	return nil
}

// Op is the statement a Query will run.
type Op string

const (
	OpSelect Op = "select"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Filter is one equality condition.
type Filter struct {
	Column string
	Value  any
}

// Order is one sort key.
type Order struct {
	Column    string
	Ascending bool
}

// Runner executes a fully built Query. Each backend implements it.
type Runner interface {
	Run(ctx context.Context, q *Query) (Rows, error)
}

// Query is a backend-neutral, chainable statement:
//
//	rows, err := client.From("schools").Select("id,code,name").Eq("is_active", true).Execute(ctx)
//
// Builder methods never fail on their own; the first usage error is kept and
// returned by Execute before anything reaches the network.
type Query struct {
	runner  Runner
	table   string
	op      Op
	columns string
	filters []Filter
	rows    []Row
	patch   Row
	orders  []Order
	limit   int
	err     error
}

// NewQuery starts a statement against table, executed by r.
func NewQuery(r Runner, table string) *Query {
	q := &Query{runner: r, table: strings.TrimSpace(table)}
	if q.table == "" {
		q.err = ContextError("table name is required")
	}
	return q
}

// Select sets the column list ("a,b,c"; empty or "*" for all). On its own it
// makes the statement a read; after a mutation it picks the returned columns.
func (q *Query) Select(columns string) *Query {
	q.columns = strings.TrimSpace(columns)
	return q
}

// Eq adds an equality filter. A second filter on the same column must agree
// with the first; conflicting values are a usage error rather than a silent
// override.
func (q *Query) Eq(column string, value any) *Query {
	column = strings.TrimSpace(column)
	if column == "" {
		q.fail(ContextError("filter column is required"))
		return q
	}
	for _, f := range q.filters {
		if f.Column != column {
			continue
		}
		if !sameValue(f.Value, value) {
			q.fail(ContextError("conflicting filters on column %q", column))
		}
		return q
	}
	q.filters = append(q.filters, Filter{Column: column, Value: value})
	return q
}

// Insert makes the statement an insert of rows.
func (q *Query) Insert(rows ...Row) *Query {
	if len(rows) == 0 {
		q.fail(ContextError("insert requires at least one row"))
	}
	q.setOp(OpInsert)
	q.rows = rows
	return q
}

// Update makes the statement an update applying patch to matching rows.
func (q *Query) Update(patch Row) *Query {
	if len(patch) == 0 {
		q.fail(ContextError("update requires a non-empty patch"))
	}
	q.setOp(OpUpdate)
	q.patch = patch
	return q
}

// Delete makes the statement a delete of matching rows.
func (q *Query) Delete() *Query {
	q.setOp(OpDelete)
	return q
}

// Order appends a sort key.
func (q *Query) Order(column string, ascending bool) *Query {
	q.orders = append(q.orders, Order{Column: column, Ascending: ascending})
	return q
}

// Limit caps the number of returned rows; 0 means no limit.
func (q *Query) Limit(n int) *Query {
	if n < 0 {
		q.fail(ContextError("limit must not be negative"))
		return q
	}
	q.limit = n
	return q
}

// Execute runs the statement.
func (q *Query) Execute(ctx context.Context) (Rows, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.runner == nil {
		return nil, ContextError("query has no backend")
	}
	if q.op == "" {
		q.op = OpSelect
	}
	return q.runner.Run(ctx, q)
}

func (q *Query) Table() string     { return q.table }
func (q *Query) Op() Op            { return q.op }
func (q *Query) Columns() string   { return q.columns }
func (q *Query) Filters() []Filter { return append([]Filter(nil), q.filters...) }
func (q *Query) Rows() []Row       { return q.rows }
func (q *Query) Patch() Row        { return q.patch }
func (q *Query) Orders() []Order   { return append([]Order(nil), q.orders...) }
func (q *Query) LimitN() int       { return q.limit }
func (q *Query) Err() error        { return q.err }

// FilterMap returns the filters as a column → value object.
func (q *Query) FilterMap() map[string]any {
	m := make(map[string]any, len(q.filters))
	for _, f := range q.filters {
		m[f.Column] = f.Value
	}
	return m
}

// ColumnList splits Columns into names; nil means all columns.
func (q *Query) ColumnList() []string {
	if q.columns == "" || q.columns == "*" {
		return nil
	}
	parts := strings.Split(q.columns, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (q *Query) setOp(op Op) {
	if q.op != "" && q.op != op {
		q.fail(ContextError("cannot combine %s with %s", q.op, op))
		return
	}
	q.op = op
}

func (q *Query) fail(err error) {
	if q.err == nil {
		q.err = err
	}
}

// sameValue compares filter values. Numbers of any Go kind, or a decoded
// json.Number, compare by value (7 and 7.0 name the same grade). Anything
// else must match in type and value, so true and "true" differ.
func sameValue(a, b any) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// orderParam renders sort keys as "col.asc,other.desc", the form both HTTP
// backends accept.
func orderParam(orders []Order) string {
	parts := make([]string, len(orders))
	for i, o := range orders {
		dir := "desc"
		if o.Ascending {
			dir = "asc"
		}
		parts[i] = o.Column + "." + dir
	}
	return strings.Join(parts, ",")
}

// ParseOrder is the inverse of the "order" parameter format.
func ParseOrder(s string) ([]Order, error) {
	var out []Order
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		col, dir, _ := strings.Cut(part, ".")
		o := Order{Column: col, Ascending: true}
		switch dir {
		case "", "asc":
		case "desc":
			o.Ascending = false
		default:
			return nil, ContextError("invalid sort direction %q", dir)
		}
		out = append(out, o)
	}
	return out, nil
}

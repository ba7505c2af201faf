// internal/app/store/datastore/tables.go
package datastore

// Scope columns carried by every scoped row.
const (
	SchoolColumn = "school_id"
	YearColumn   = "academic_year_id"
)

// Scope says how a table is partitioned.
type Scope int

const (
	// Unscoped tables (schools) are shared by every tenant.
	Unscoped Scope = iota
	// SchoolScoped tables (academic_years) carry only a school id.
	SchoolScoped
	// YearScoped tables carry both a school id and an academic year id.
	YearScoped
)

// Table describes one reachable table.
type Table struct {
	Name  string
	Scope Scope
}

// Registry is the allow-list of tables the data API serves.
type Registry map[string]Table

// DefaultTables is everything the application stores through the data API.
// users is deliberately absent: it is only reachable through the users store.
func DefaultTables() Registry {
	r := Registry{}
	for _, t := range []Table{
		{Name: "schools", Scope: Unscoped},
		{Name: "academic_years", Scope: SchoolScoped},
		{Name: "students", Scope: YearScoped},
		{Name: "clearances", Scope: YearScoped},
		{Name: "assessments", Scope: YearScoped},
		{Name: "helpdesk_tickets", Scope: YearScoped},
	} {
		r[t.Name] = t
	}
	return r
}

// Lookup returns the table definition or ErrUnknownTable.
func (r Registry) Lookup(name string) (Table, error) {
	t, ok := r[name]
	if !ok {
		return Table{}, ErrUnknownTable
	}
	return t, nil
}

// Names returns the registered table names.
func (r Registry) Names() []string {
	out := make([]string, 0, len(r))
	for n := range r {
		out = append(out, n)
	}
	return out
}

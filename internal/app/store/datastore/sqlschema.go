// internal/app/store/datastore/sqlschema.go
package datastore

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"
)

// sqlColumns are the typed columns of each known table. Every table also
// gets the id primary key and both timestamps.
var sqlColumns = map[string][]string{
	"users": {
		"email text NOT NULL",
		"email_ci text NOT NULL UNIQUE",
		"full_name text NOT NULL DEFAULT ''",
		"password_hash text NOT NULL",
		"role text NOT NULL",
		"status text NOT NULL",
		"school_codes text[]",
	},
	"audit_events": {
		"occurred_at timestamptz NOT NULL",
		"category text NOT NULL",
		"event_type text NOT NULL",
		"user_id text",
		"actor_id text",
		"school_id text",
		"ip text",
		"user_agent text",
		"success boolean NOT NULL",
		"failure_reason text",
		"details text",
	},
	"schools": {
		"code text NOT NULL UNIQUE",
		"name text NOT NULL",
		"is_active boolean NOT NULL DEFAULT true",
		"address text",
		"region text",
	},
	"academic_years": {
		"school_id text NOT NULL",
		"name text NOT NULL",
		"start_date text NOT NULL",
		"end_date text NOT NULL",
		"is_current boolean NOT NULL DEFAULT false",
		"is_archived boolean NOT NULL DEFAULT false",
	},
	"students": {
		"student_number text NOT NULL",
		"first_name text NOT NULL",
		"last_name text NOT NULL",
		"grade_level text",
		"status text",
	},
	"clearances": {
		"student_id text NOT NULL",
		"finance_cleared boolean NOT NULL DEFAULT false",
		"library_cleared boolean NOT NULL DEFAULT false",
		"notes text",
	},
	"assessments": {
		"student_id text NOT NULL",
		"subject text NOT NULL",
		"term text",
		"score numeric",
		"remarks text",
	},
	"helpdesk_tickets": {
		"subject text NOT NULL",
		"body text",
		"status text NOT NULL DEFAULT 'open'",
		"priority text",
		"assignee_id text",
	},
}

// InternalTables are stored alongside the registry but never served by the
// data API.
var InternalTables = []string{"users", "audit_events"}

// SchemaStatements returns the idempotent DDL for the internal tables and
// every table in reg, in a stable order.
func SchemaStatements(reg Registry) []string {
	names := append(append([]string{}, InternalTables...), reg.Names()...)
	sort.Strings(names)

	var stmts []string
	for _, name := range names {
		cols := []string{"id text PRIMARY KEY"}
		if t, ok := reg[name]; ok {
			switch t.Scope {
			case SchoolScoped:
				cols = append(cols, SchoolColumn+" text NOT NULL")
			case YearScoped:
				cols = append(cols, SchoolColumn+" text NOT NULL", YearColumn+" text NOT NULL")
			}
		}
		for _, c := range sqlColumns[name] {
			if c == SchoolColumn+" text NOT NULL" {
				continue
			}
			cols = append(cols, c)
		}
		cols = append(cols, "created_at timestamptz", "updated_at timestamptz")

		stmt := "CREATE TABLE IF NOT EXISTS " + name + " ("
		for i, c := range cols {
			if i > 0 {
				stmt += ", "
			}
			stmt += c
		}
		stmts = append(stmts, stmt+")")

		if t, ok := reg[name]; ok && t.Scope == YearScoped {
			stmts = append(stmts, fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS idx_%s_scope ON %s (%s, %s)",
				name, name, SchoolColumn, YearColumn))
		}
	}
	return stmts
}

// MigrateSQL creates any missing tables.
func MigrateSQL(ctx context.Context, db *gorm.DB, reg Registry) error {
	for _, stmt := range SchemaStatements(reg) {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

package datastore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
)

func newGuarded() (*datastore.Guarded, *datastore.Memory) {
	mem := datastore.NewMemory()
	g := datastore.NewGuarded(mem, datastore.DefaultTables())
	g.Now = func() time.Time { return time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC) }
	return g, mem
}

func TestGuarded_Insert_AssignsIDAndTimestamps(t *testing.T) {
	g, _ := newGuarded()
	ctx := context.Background()

	out, err := g.Insert(ctx, "students", []datastore.Row{{
		"school_id":        "s1",
		"academic_year_id": "y1",
		"first_name":       "Ada",
	}})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	if id, _ := out[0]["id"].(string); id == "" {
		t.Error("expected id to be assigned")
	}
	if out[0]["created_at"] != "2025-09-01T08:00:00Z" {
		t.Errorf("unexpected created_at %v", out[0]["created_at"])
	}
	if out[0]["updated_at"] != out[0]["created_at"] {
		t.Error("expected updated_at to equal created_at on insert")
	}
}

func TestGuarded_Insert_KeepsCallerID(t *testing.T) {
	g, _ := newGuarded()
	out, err := g.Insert(context.Background(), "schools", []datastore.Row{{"id": "sch-1", "code": "NHS"}})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if out[0]["id"] != "sch-1" {
		t.Errorf("expected id sch-1, got %v", out[0]["id"])
	}
}

func TestGuarded_Insert_DoesNotMutateInput(t *testing.T) {
	g, _ := newGuarded()
	in := datastore.Row{"code": "NHS"}
	if _, err := g.Insert(context.Background(), "schools", []datastore.Row{in}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, ok := in["id"]; ok {
		t.Error("input row should not be modified")
	}
}

func TestGuarded_Insert_ScopeRequired(t *testing.T) {
	g, _ := newGuarded()
	ctx := context.Background()

	cases := []struct {
		name  string
		table string
		row   datastore.Row
	}{
		{"year scoped without year", "students", datastore.Row{"school_id": "s1"}},
		{"year scoped blank school", "clearances", datastore.Row{"school_id": "", "academic_year_id": "y1"}},
		{"school scoped without school", "academic_years", datastore.Row{"name": "2025/2026"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := g.Insert(ctx, tc.table, []datastore.Row{tc.row})
			if !errors.Is(err, datastore.ErrScopeRequired) {
				t.Errorf("expected ErrScopeRequired, got %v", err)
			}
		})
	}
}

func TestGuarded_UnknownTable(t *testing.T) {
	g, _ := newGuarded()
	ctx := context.Background()

	if _, err := g.Find(ctx, "users", datastore.Criteria{}); !errors.Is(err, datastore.ErrUnknownTable) {
		t.Errorf("Find: expected ErrUnknownTable, got %v", err)
	}
	if _, err := g.Insert(ctx, "pg_catalog", []datastore.Row{{"x": 1}}); !errors.Is(err, datastore.ErrUnknownTable) {
		t.Errorf("Insert: expected ErrUnknownTable, got %v", err)
	}
}

func TestGuarded_InvalidColumn(t *testing.T) {
	g, _ := newGuarded()
	ctx := context.Background()

	_, err := g.Find(ctx, "schools", datastore.Criteria{Filter: map[string]any{"code; drop table": "x"}})
	if !errors.Is(err, datastore.ErrInvalidColumn) {
		t.Errorf("expected ErrInvalidColumn for filter, got %v", err)
	}
	_, err = g.Find(ctx, "schools", datastore.Criteria{Order: []datastore.Sort{{Column: "Name"}}})
	if !errors.Is(err, datastore.ErrInvalidColumn) {
		t.Errorf("expected ErrInvalidColumn for order, got %v", err)
	}
}

func TestGuarded_UpdateDelete_RequireFilter(t *testing.T) {
	g, _ := newGuarded()
	ctx := context.Background()

	if _, err := g.Update(ctx, "schools", nil, datastore.Row{"name": "x"}); !errors.Is(err, datastore.ErrFilterRequired) {
		t.Errorf("Update: expected ErrFilterRequired, got %v", err)
	}
	if _, err := g.Delete(ctx, "schools", map[string]any{}); !errors.Is(err, datastore.ErrFilterRequired) {
		t.Errorf("Delete: expected ErrFilterRequired, got %v", err)
	}
}

func TestGuarded_Update_ProtectsIdentityAndScope(t *testing.T) {
	g, _ := newGuarded()
	ctx := context.Background()

	created, err := g.Insert(ctx, "students", []datastore.Row{{
		"id": "st-1", "school_id": "s1", "academic_year_id": "y1", "first_name": "Ada",
	}})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	g.Now = func() time.Time { return time.Date(2025, 9, 2, 8, 0, 0, 0, time.UTC) }
	out, err := g.Update(ctx, "students", map[string]any{"id": "st-1"}, datastore.Row{
		"id": "other", "created_at": "never", "first_name": "Grace",
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 updated row, got %d", len(out))
	}
	if out[0]["id"] != "st-1" {
		t.Errorf("id should not change, got %v", out[0]["id"])
	}
	if out[0]["created_at"] != created[0]["created_at"] {
		t.Errorf("created_at should not change, got %v", out[0]["created_at"])
	}
	if out[0]["updated_at"] != "2025-09-02T08:00:00Z" {
		t.Errorf("expected updated_at to advance, got %v", out[0]["updated_at"])
	}
	if out[0]["first_name"] != "Grace" {
		t.Errorf("expected first_name Grace, got %v", out[0]["first_name"])
	}

	_, err = g.Update(ctx, "students", map[string]any{"id": "st-1"}, datastore.Row{"academic_year_id": ""})
	if !errors.Is(err, datastore.ErrScopeRequired) {
		t.Errorf("expected ErrScopeRequired when blanking scope, got %v", err)
	}
}

func TestValidIdent(t *testing.T) {
	for s, want := range map[string]bool{
		"school_id": true,
		"_private":  true,
		"a1":        true,
		"":          false,
		"1abc":      false,
		"Name":      false,
		"name-x":    false,
		"id;drop":   false,
		"select *":  false,
	} {
		if got := datastore.ValidIdent(s); got != want {
			t.Errorf("ValidIdent(%q) = %v, want %v", s, got, want)
		}
	}
}

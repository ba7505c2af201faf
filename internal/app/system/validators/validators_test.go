package validators_test

import (
	"testing"

	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
	"github.com/dalemusser/campusdesk/internal/app/system/validators"
	"github.com/dalemusser/campusdesk/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func TestSchemaFor(t *testing.T) {
	tables := datastore.DefaultTables()
	for _, name := range []string{"users", "schools", "academic_years", "students", "clearances"} {
		if validators.SchemaFor(name, tables) == nil {
			t.Errorf("expected schema for %q", name)
		}
	}
	if validators.SchemaFor("nope", tables) != nil {
		t.Error("expected no schema for unknown collection")
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db, datastore.DefaultTables(), zap.NewNop()); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := validators.EnsureAll(ctx, db, datastore.DefaultTables(), zap.NewNop()); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db, datastore.DefaultTables(), zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}
	have := map[string]bool{}
	for _, n := range names {
		have[n] = true
	}
	for _, want := range []string{"users", "schools", "academic_years", "students", "clearances", "assessments", "helpdesk_tickets"} {
		if !have[want] {
			t.Errorf("expected collection %q to exist", want)
		}
	}
}

func TestEnsureAll_RejectsUnscopedStudent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db, datastore.DefaultTables(), zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	_, err := db.Collection("students").InsertOne(ctx, bson.M{"_id": "s1", "school_id": "a"})
	if err == nil {
		t.Error("expected validation error for student without academic_year_id")
	}
	_, err = db.Collection("students").InsertOne(ctx, bson.M{"_id": "s2", "school_id": "a", "academic_year_id": "y"})
	if err != nil {
		t.Errorf("expected scoped student to insert, got %v", err)
	}
}

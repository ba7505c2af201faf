package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/campusdesk/internal/app/store/audit"
	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
	"github.com/dalemusser/campusdesk/internal/testutil"
)

func TestStore_Log(t *testing.T) {
	store := audit.New(datastore.NewMemory())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	event := audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    "u-1",
		IP:        "192.168.1.1",
		UserAgent: "TestBrowser/1.0",
		Success:   true,
		Details:   map[string]string{"email": "a@example.com"},
	}
	if err := store.Log(ctx, event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.Query(ctx, audit.QueryFilter{UserID: "u-1", Limit: 10})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	got := events[0]
	if got.ID == "" {
		t.Error("expected ID to be generated")
	}
	if got.OccurredAt.IsZero() {
		t.Error("expected OccurredAt to be set")
	}
	if !got.Success || got.IP != "192.168.1.1" {
		t.Errorf("unexpected event: %+v", got)
	}
	if got.Details["email"] != "a@example.com" {
		t.Errorf("expected details to round trip, got %v", got.Details)
	}
}

func TestStore_Query_MostRecentFirst(t *testing.T) {
	store := audit.New(datastore.NewMemory())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, typ := range []string{audit.EventLoginSuccess, audit.EventLogout, audit.EventRowsInserted} {
		cat := audit.CategoryAuth
		if typ == audit.EventRowsInserted {
			cat = audit.CategoryData
		}
		if err := store.Log(ctx, audit.Event{
			Category:   cat,
			EventType:  typ,
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
			Success:    true,
		}); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	recent, err := store.Query(ctx, audit.QueryFilter{Limit: 2})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}
	if recent[0].EventType != audit.EventRowsInserted || recent[1].EventType != audit.EventLogout {
		t.Errorf("expected newest first, got %s then %s", recent[0].EventType, recent[1].EventType)
	}

	auth, err := store.Query(ctx, audit.QueryFilter{Category: audit.CategoryAuth})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(auth) != 2 {
		t.Errorf("expected 2 auth events, got %d", len(auth))
	}
}

func TestStore_DeleteBefore(t *testing.T) {
	store := audit.New(datastore.NewMemory())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := store.Log(ctx, audit.Event{
			OccurredAt: base.Add(time.Duration(i) * 24 * time.Hour),
			Category:   audit.CategoryAuth,
			EventType:  audit.EventLogout,
			UserID:     "u-1",
		})
		if err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	n, err := store.DeleteBefore(ctx, base.Add(3*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 events removed, got %d", n)
	}
	left, err := store.Query(ctx, audit.QueryFilter{Limit: 10})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(left) != 2 {
		t.Fatalf("expected 2 events left, got %d", len(left))
	}
	for _, e := range left {
		if e.OccurredAt.Before(base.Add(3 * 24 * time.Hour)) {
			t.Errorf("event at %v should have been removed", e.OccurredAt)
		}
	}

	if n, err := store.DeleteBefore(ctx, base); err != nil || n != 0 {
		t.Errorf("expected nothing removed before the first event, got %d, %v", n, err)
	}
}

func TestStore_Mongo(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(datastore.NewMongo(db))
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Log(ctx, audit.Event{Category: audit.CategoryAuth, EventType: audit.EventLogout, UserID: "u-9", Success: true}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	events, err := store.Query(ctx, audit.QueryFilter{UserID: "u-9", Limit: 5})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 || events[0].EventType != audit.EventLogout {
		t.Fatalf("expected the logout event, got %+v", events)
	}
}

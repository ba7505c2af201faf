// internal/app/store/audit/store.go
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
	"github.com/google/uuid"
)

// Table is where audit events are kept. It is not part of the data API
// registry, so clients can never read or rewrite it.
const Table = "audit_events"

// Event categories
const (
	CategoryAuth = "auth"
	CategoryData = "data"
)

// Auth event types
const (
	EventLoginSuccess             = "login_success"
	EventLoginFailedUserNotFound  = "login_failed_user_not_found"
	EventLoginFailedWrongPassword = "login_failed_wrong_password"
	EventLoginFailedUserDisabled  = "login_failed_user_disabled"
	EventLoginFailedRateLimit     = "login_failed_rate_limit"
	EventLogout                   = "logout"
	EventPasswordChanged          = "password_changed"
)

// Data event types
const (
	EventRowsInserted = "rows_inserted"
	EventRowsUpdated  = "rows_updated"
	EventRowsDeleted  = "rows_deleted"
)

// timeLayout sorts lexically in the memory and mongo engines.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Event represents an audit event.
type Event struct {
	ID         string
	OccurredAt time.Time

	Category  string
	EventType string

	// Who
	UserID   string // affected user
	ActorID  string // who performed the action
	SchoolID string

	IP        string
	UserAgent string

	Success       bool
	FailureReason string

	Details map[string]string
}

// QueryFilter narrows Query. Zero fields do not filter.
type QueryFilter struct {
	UserID    string
	SchoolID  string
	Category  string
	EventType string
	Limit     int
}

// Store manages audit event records.
type Store struct {
	ds datastore.Store
}

// New creates a new audit Store over the raw engine.
func New(ds datastore.Store) *Store {
	return &Store{ds: ds}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	row, err := toRow(event)
	if err != nil {
		return err
	}
	_, err = s.ds.Insert(ctx, Table, []datastore.Row{row})
	return err
}

// Query returns matching events, most recent first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	where := map[string]any{}
	if filter.UserID != "" {
		where["user_id"] = filter.UserID
	}
	if filter.SchoolID != "" {
		where["school_id"] = filter.SchoolID
	}
	if filter.Category != "" {
		where["category"] = filter.Category
	}
	if filter.EventType != "" {
		where["event_type"] = filter.EventType
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.ds.Find(ctx, Table, datastore.Criteria{
		Filter: where,
		Order:  []datastore.Sort{{Column: "occurred_at", Desc: true}},
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	return out, nil
}

// purgeBatch bounds how many events one DeleteBefore round trip reads.
const purgeBatch = 500

// DeleteBefore removes events that occurred before cutoff and returns how
// many were removed.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	for {
		rows, err := s.ds.Find(ctx, Table, datastore.Criteria{
			Columns: []string{"id", "occurred_at"},
			Order:   []datastore.Sort{{Column: "occurred_at"}},
			Limit:   purgeBatch,
		})
		if err != nil {
			return removed, err
		}
		round := 0
		reachedCutoff := false
		for _, r := range rows {
			if !fromRow(r).OccurredAt.Before(cutoff) {
				reachedCutoff = true
				break
			}
			gone, err := s.ds.Delete(ctx, Table, map[string]any{"id": r["id"]})
			if err != nil {
				return removed, err
			}
			round += len(gone)
		}
		removed += round
		if reachedCutoff || round == 0 || len(rows) < purgeBatch {
			return removed, nil
		}
	}
}

func toRow(e Event) (datastore.Row, error) {
	row := datastore.Row{
		"id":          e.ID,
		"occurred_at": e.OccurredAt.UTC().Format(timeLayout),
		"category":    e.Category,
		"event_type":  e.EventType,
		"success":     e.Success,
	}
	for col, v := range map[string]string{
		"user_id":        e.UserID,
		"actor_id":       e.ActorID,
		"school_id":      e.SchoolID,
		"ip":             e.IP,
		"user_agent":     e.UserAgent,
		"failure_reason": e.FailureReason,
	} {
		if v != "" {
			row[col] = v
		}
	}
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return nil, err
		}
		row["details"] = string(b)
	}
	return row, nil
}

func fromRow(r datastore.Row) Event {
	str := func(k string) string {
		s, _ := r[k].(string)
		return s
	}
	e := Event{
		ID:            str("id"),
		Category:      str("category"),
		EventType:     str("event_type"),
		UserID:        str("user_id"),
		ActorID:       str("actor_id"),
		SchoolID:      str("school_id"),
		IP:            str("ip"),
		UserAgent:     str("user_agent"),
		FailureReason: str("failure_reason"),
	}
	e.Success, _ = r["success"].(bool)
	switch v := r["occurred_at"].(type) {
	case time.Time:
		e.OccurredAt = v
	case string:
		e.OccurredAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	if d := str("details"); d != "" {
		_ = json.Unmarshal([]byte(d), &e.Details)
	}
	return e
}

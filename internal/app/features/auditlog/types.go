// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/campusdesk/internal/app/store/audit"
)

// listItem is the JSON shape of one audit event.
type listItem struct {
	ID         string            `json:"id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Category   string            `json:"category"`
	EventType  string            `json:"event_type"`
	UserID     string            `json:"user_id,omitempty"`
	UserEmail  string            `json:"user_email,omitempty"` // resolved from UserID
	ActorID    string            `json:"actor_id,omitempty"`
	ActorEmail string            `json:"actor_email,omitempty"` // resolved from ActorID
	SchoolID   string            `json:"school_id,omitempty"`
	IP         string            `json:"ip,omitempty"`
	Success    bool              `json:"success"`
	Reason     string            `json:"failure_reason,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// allCategories returns the categories a filter may name.
func allCategories() []string {
	return []string{audit.CategoryAuth, audit.CategoryData}
}

// eventTypesForCategory returns the event types for a given category.
// If category is empty, returns all event types.
func eventTypesForCategory(category string) []string {
	authEvents := []string{
		audit.EventLoginSuccess,
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedUserDisabled,
		audit.EventLoginFailedRateLimit,
		audit.EventLogout,
		audit.EventPasswordChanged,
	}
	dataEvents := []string{
		audit.EventRowsInserted,
		audit.EventRowsUpdated,
		audit.EventRowsDeleted,
	}

	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryData:
		return dataEvents
	case "":
		all := make([]string, 0, len(authEvents)+len(dataEvents))
		all = append(all, authEvents...)
		return append(all, dataEvents...)
	default:
		return nil
	}
}

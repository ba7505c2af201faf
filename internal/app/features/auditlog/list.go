// internal/app/features/auditlog/list.go
package auditlog

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/dalemusser/campusdesk/internal/app/store/audit"
	userstore "github.com/dalemusser/campusdesk/internal/app/store/users"
	"github.com/dalemusser/campusdesk/internal/app/system/apiresp"
	"github.com/dalemusser/campusdesk/internal/app/system/inputval"
	"github.com/dalemusser/campusdesk/internal/app/system/limits"
	"github.com/dalemusser/campusdesk/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// ServeList handles GET /api/audit. Query parameters user_id, school_id,
// category, event_type and limit narrow the result; events come back most
// recent first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.QueryFilter{
		UserID:    strings.TrimSpace(q.Get("user_id")),
		SchoolID:  strings.TrimSpace(q.Get("school_id")),
		Category:  strings.TrimSpace(q.Get("category")),
		EventType: strings.TrimSpace(q.Get("event_type")),
	}

	if filter.Category != "" && !slices.Contains(allCategories(), filter.Category) {
		apiresp.Error(w, http.StatusBadRequest, "unknown category: "+filter.Category)
		return
	}
	if filter.EventType != "" && !slices.Contains(eventTypesForCategory(filter.Category), filter.EventType) {
		apiresp.Error(w, http.StatusBadRequest, "unknown event type: "+filter.EventType)
		return
	}
	for _, id := range []string{filter.UserID, filter.SchoolID} {
		if id != "" && !inputval.IsValidRowID(id) {
			apiresp.Error(w, http.StatusBadRequest, "invalid id: "+id)
			return
		}
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			apiresp.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	filter.Limit = limits.ClampLimit(filter.Limit)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.List(), h.Log, "audit log list")
	defer cancel()

	events, err := h.Audit.Query(ctx, filter)
	if err != nil {
		h.Log.Error("audit query failed", zap.Error(err))
		apiresp.Error(w, http.StatusInternalServerError, "failed to load audit events")
		return
	}

	emails := h.emailResolver(ctx)
	items := make([]listItem, 0, len(events))
	for _, e := range events {
		items = append(items, listItem{
			ID:         e.ID,
			OccurredAt: e.OccurredAt,
			Category:   e.Category,
			EventType:  e.EventType,
			UserID:     e.UserID,
			UserEmail:  emails(e.UserID),
			ActorID:    e.ActorID,
			ActorEmail: emails(e.ActorID),
			SchoolID:   e.SchoolID,
			IP:         e.IP,
			Success:    e.Success,
			Reason:     e.FailureReason,
			Details:    e.Details,
		})
	}

	apiresp.Data(w, http.StatusOK, items)
}

// emailResolver looks user ids up once per request. Unknown ids and lookup
// failures resolve to "".
func (h *Handler) emailResolver(ctx context.Context) func(id string) string {
	seen := map[string]string{}
	return func(id string) string {
		if id == "" || h.Users == nil {
			return ""
		}
		if email, ok := seen[id]; ok {
			return email
		}
		u, err := h.Users.GetByID(ctx, id)
		switch {
		case err == nil:
			seen[id] = u.Email
		case errors.Is(err, userstore.ErrNotFound):
			seen[id] = ""
		default:
			h.Log.Warn("audit log: user lookup failed", zap.String("user_id", id), zap.Error(err))
			seen[id] = ""
		}
		return seen[id]
	}
}

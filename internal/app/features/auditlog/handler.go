// internal/app/features/auditlog/handler.go
package auditlog

import (
	"github.com/dalemusser/campusdesk/internal/app/store/audit"
	userstore "github.com/dalemusser/campusdesk/internal/app/store/users"
	"go.uber.org/zap"
)

// Handler serves the read side of the audit trail to administrators.
type Handler struct {
	Audit *audit.Store
	Users *userstore.Store
	Log   *zap.Logger
}

// NewHandler constructs an audit log handler. users may be nil, in which
// case events carry ids only.
func NewHandler(events *audit.Store, users *userstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Audit: events, Users: users, Log: logger}
}

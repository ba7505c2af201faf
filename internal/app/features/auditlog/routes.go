// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/dalemusser/campusdesk/internal/app/system/auth"
	"github.com/dalemusser/campusdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the audit log under the path where this router is mounted
// (typically "/api/audit" from bootstrap). Only admins may read it.
func Routes(h *Handler, bearer *auth.Bearer) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(bearer.Require)
		pr.Use(auth.RequireRole(models.RoleAdmin))

		pr.Get("/", h.ServeList)
	})

	return r
}

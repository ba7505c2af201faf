// internal/app/features/dataapi/routes.go
package dataapi

import (
	"github.com/dalemusser/campusdesk/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, bearer *auth.Bearer) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(bearer.Require)
		pr.Get("/{table}", h.ServeSelect)
		pr.Post("/{table}", h.HandleInsert)
		pr.Patch("/{table}", h.HandleUpdate)
		pr.Delete("/{table}", h.HandleDelete)
	})
	return r
}

// internal/app/features/selectionapi/routes.go
package selectionapi

import (
	"github.com/dalemusser/campusdesk/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, bearer *auth.Bearer) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(bearer.Require)
		pr.Get("/", h.ServeSelection)
		pr.Put("/school", h.HandleSelectSchool)
		pr.Put("/year", h.HandleSelectYear)
	})
	return r
}

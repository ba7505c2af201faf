// internal/app/features/students/routes.go
package students

import (
	"github.com/dalemusser/campusdesk/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, bearer *auth.Bearer) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(bearer.Require)
		pr.Get("/", h.ServeList)
		pr.Post("/", h.HandleCreate)
		pr.Post("/import", h.HandleImport)
		pr.Get("/export.xlsx", h.ServeExportXLSX)
		pr.Get("/export.csv", h.ServeExportCSV)
		pr.Get("/{id}", h.ServeStudent)
		pr.Patch("/{id}", h.HandleUpdate)
		pr.Delete("/{id}", h.HandleDelete)
	})
	return r
}

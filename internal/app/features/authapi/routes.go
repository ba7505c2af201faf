// internal/app/features/authapi/routes.go
package authapi

import (
	"github.com/dalemusser/campusdesk/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.HandleLogin)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireBearer(h.Issuer, h.Revoked, h.Log))
		pr.Get("/me", h.ServeMe)
		pr.Post("/logout", h.HandleLogout)
		pr.Post("/password", h.HandleChangePassword)
	})
	return r
}

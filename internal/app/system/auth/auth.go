// internal/app/system/auth/auth.go
// Package auth authenticates API callers. Accounts log in with a password
// (bcrypt), receive an HS256 bearer token, and every data request carries it.
// A cookie session (SessionManager) holds per-browser state such as the
// selected school and year.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dalemusser/campusdesk/internal/domain/models"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Current-user helper                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

// User is what a verified token says about its bearer. It is injected into
// r.Context() by RequireBearer.
type User struct {
	ID          string
	Email       string
	Role        string
	SchoolCodes []string
	TokenID     string
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool { return u != nil && u.Role == models.RoleAdmin }

// Account returns the user as a models.User for access checks.
func (u *User) Account() models.User {
	return models.User{ID: u.ID, Email: u.Email, Role: u.Role, SchoolCodes: u.SchoolCodes}
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user and a found flag.
func CurrentUser(r *http.Request) (*User, bool) {
	u, ok := r.Context().Value(currentUserKey).(*User)
	return u, ok
}

// WithUser returns ctx carrying u. Tests use it to skip the token step.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, currentUserKey, u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

// RequireBearer verifies the Authorization header and injects the user. A
// missing, malformed, expired or revoked token is a 401 with a JSON error
// body.
func RequireBearer(issuer *Issuer, revoked Revocations, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			claims, err := issuer.Parse(raw)
			if err != nil {
				logger.Debug("bearer token rejected", zap.Error(err))
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if revoked != nil {
				gone, err := revoked.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					logger.Warn("revocation check failed", zap.Error(err))
				}
				if gone {
					writeJSONError(w, http.StatusUnauthorized, "token has been revoked")
					return
				}
			}
			u := &User{
				ID:          claims.Subject,
				Email:       claims.Email,
				Role:        claims.Role,
				SchoolCodes: claims.SchoolCodes,
				TokenID:     claims.ID,
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// Bearer bundles what RequireBearer needs so routers can take one value.
type Bearer struct {
	Issuer  *Issuer
	Revoked Revocations
	Log     *zap.Logger
}

// NewBearer returns a Bearer for mounting on protected routes.
func NewBearer(issuer *Issuer, revoked Revocations, logger *zap.Logger) *Bearer {
	return &Bearer{Issuer: issuer, Revoked: revoked, Log: logger}
}

// Require is RequireBearer with b's settings.
func (b *Bearer) Require(next http.Handler) http.Handler {
	return RequireBearer(b.Issuer, b.Revoked, b.Log)(next)
}

// RequireRole allows only users whose role is in allowed. It must run after
// RequireBearer.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if _, has := set[strings.ToLower(u.Role)]; !has {
				writeJSONError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

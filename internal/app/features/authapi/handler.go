// internal/app/features/authapi/handler.go
package authapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/campusdesk/internal/app/store/audit"
	userstore "github.com/dalemusser/campusdesk/internal/app/store/users"
	"github.com/dalemusser/campusdesk/internal/app/system/apiresp"
	"github.com/dalemusser/campusdesk/internal/app/system/auditlog"
	"github.com/dalemusser/campusdesk/internal/app/system/auth"
	"github.com/dalemusser/campusdesk/internal/app/system/backend"
	"github.com/dalemusser/campusdesk/internal/app/system/normalize"
	"github.com/dalemusser/campusdesk/internal/app/system/ratelimit"
	"github.com/dalemusser/campusdesk/internal/app/system/timeouts"
	"github.com/dalemusser/campusdesk/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves /api/auth.
type Handler struct {
	Users    *userstore.Store
	Issuer   *auth.Issuer
	Revoked  auth.Revocations
	Limiter  *ratelimit.LoginLimiter
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(users *userstore.Store, issuer *auth.Issuer, revoked auth.Revocations, limiter *ratelimit.LoginLimiter, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    users,
		Issuer:   issuer,
		Revoked:  revoked,
		Limiter:  limiter,
		AuditLog: audit,
		Log:      logger,
	}
}

const badCredentials = "invalid email or password"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleLogin checks a password and returns a bearer token. Unknown emails
// and wrong passwords get the same answer.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := apiresp.Decode(w, r, &in); err != nil {
		apiresp.Fail(w, h.Log, "login", err)
		return
	}
	email := normalize.Email(in.Email)
	if email == "" || in.Password == "" {
		apiresp.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if h.Limiter != nil {
		if ok, msg := h.Limiter.Check(r, email); !ok {
			h.AuditLog.LoginFailed(r.Context(), r, audit.EventLoginFailedRateLimit, "", email, "rate limit exceeded")
			w.Header().Set("Retry-After", "60")
			apiresp.Error(w, http.StatusTooManyRequests, msg)
			return
		}
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "login lookup")
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if errors.Is(err, userstore.ErrNotFound) {
		h.AuditLog.LoginFailed(r.Context(), r, audit.EventLoginFailedUserNotFound, "", email, "user not found")
		apiresp.Error(w, http.StatusUnauthorized, badCredentials)
		return
	}
	if err != nil {
		apiresp.Fail(w, h.Log, "login", err)
		return
	}
	if err := auth.CheckPassword(u.PasswordHash, in.Password); err != nil {
		h.AuditLog.LoginFailed(r.Context(), r, audit.EventLoginFailedWrongPassword, u.ID, email, "wrong password")
		apiresp.Error(w, http.StatusUnauthorized, badCredentials)
		return
	}
	if u.Status != models.UserActive {
		h.AuditLog.LoginFailed(r.Context(), r, audit.EventLoginFailedUserDisabled, u.ID, email, "user disabled")
		apiresp.Error(w, http.StatusUnauthorized, "account is disabled")
		return
	}

	token, exp, err := h.Issuer.Issue(*u)
	if err != nil {
		apiresp.Fail(w, h.Log, "login", err)
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetEmail(email)
	}
	h.AuditLog.LoginSuccess(r.Context(), r, u.ID, email)
	h.Log.Info("user logged in", zap.String("user_id", u.ID), zap.String("role", u.Role))

	apiresp.JSON(w, http.StatusOK, backend.LoginResult{
		Token:     token,
		ExpiresAt: exp.UTC().Format(time.RFC3339),
		User:      *u,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /me                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeMe returns the stored account behind the token.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		apiresp.Error(w, http.StatusUnauthorized, "not signed in")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "me lookup")
	defer cancel()

	u, err := h.Users.GetByID(ctx, cu.ID)
	if errors.Is(err, userstore.ErrNotFound) {
		apiresp.Error(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	if err != nil {
		apiresp.Fail(w, h.Log, "me", err)
		return
	}
	apiresp.Data(w, http.StatusOK, u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /logout                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleLogout revokes the presented token until it would have expired.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		apiresp.Error(w, http.StatusUnauthorized, "not signed in")
		return
	}

	until := time.Now().Add(h.Issuer.TTL())
	if claims, err := h.Issuer.Parse(auth.BearerToken(r)); err == nil && claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if h.Revoked != nil && strings.TrimSpace(cu.TokenID) != "" {
		if err := h.Revoked.Revoke(r.Context(), cu.TokenID, until); err != nil {
			apiresp.Fail(w, h.Log, "logout", err)
			return
		}
	}
	h.AuditLog.Logout(r.Context(), r, cu.ID)
	w.WriteHeader(http.StatusNoContent)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /password                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// HandleChangePassword replaces the caller's password after checking the
// current one. Issued tokens stay valid.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		apiresp.Error(w, http.StatusUnauthorized, "not signed in")
		return
	}
	var in passwordRequest
	if err := apiresp.Decode(w, r, &in); err != nil {
		apiresp.Fail(w, h.Log, "change password", err)
		return
	}
	if in.CurrentPassword == "" {
		apiresp.Error(w, http.StatusBadRequest, "current_password is required")
		return
	}
	if err := auth.ValidatePassword(in.NewPassword); err != nil {
		apiresp.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Write(), h.Log, "change password")
	defer cancel()

	u, err := h.Users.GetByID(ctx, cu.ID)
	if errors.Is(err, userstore.ErrNotFound) {
		apiresp.Error(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	if err != nil {
		apiresp.Fail(w, h.Log, "change password", err)
		return
	}
	if err := auth.CheckPassword(u.PasswordHash, in.CurrentPassword); err != nil {
		apiresp.Error(w, http.StatusForbidden, "current password is incorrect")
		return
	}
	hash, err := auth.HashPassword(in.NewPassword)
	if err != nil {
		apiresp.Fail(w, h.Log, "change password", err)
		return
	}
	if err := h.Users.SetPassword(ctx, u.ID, hash); err != nil {
		apiresp.Fail(w, h.Log, "change password", err)
		return
	}
	h.AuditLog.PasswordChanged(r.Context(), r, u.ID)
	h.Log.Info("password changed", zap.String("user_id", u.ID))
	w.WriteHeader(http.StatusNoContent)
}

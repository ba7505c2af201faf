// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/dalemusser/campusdesk/internal/app/system/auth"
	"github.com/dalemusser/campusdesk/internal/app/system/normalize"
	"github.com/dalemusser/campusdesk/internal/domain/models"
)

// UserCtx returns the user's role (lowercased), id, and a found flag.
// If no user is present in context it returns "visitor", "", false.
func UserCtx(r *http.Request) (role string, userID string, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok || user.ID == "" {
		return "visitor", "", false
	}
	return normalize.Role(user.Role), user.ID, true
}

// HasAnyRole reports whether a signed-in user holds one of roles. Role
// names are compared case-insensitively.
func HasAnyRole(r *http.Request, roles ...string) bool {
	role, _, ok := UserCtx(r)
	if !ok {
		return false
	}
	for _, want := range roles {
		if role == normalize.Role(want) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the current request's user is an admin.
func IsAdmin(r *http.Request) bool { return HasAnyRole(r, models.RoleAdmin) }

// IsStaff reports whether the current request's user is a staff account.
func IsStaff(r *http.Request) bool { return HasAnyRole(r, models.RoleStaff) }

// CanAccessSchool reports whether the current user may work inside the
// school with the given code. Admins can access every school; staff only
// the codes on their account.
func CanAccessSchool(r *http.Request, code string) bool {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return false
	}
	return user.Account().CanAccessSchool(normalize.SchoolCode(code))
}

// CanWriteTable reports whether the current user may insert, update or
// delete rows of table. The school directory is admin-managed.
func CanWriteTable(r *http.Request, table string) bool {
	if !HasAnyRole(r, models.RoleAdmin, models.RoleStaff) {
		return false
	}
	if table == "schools" {
		return IsAdmin(r)
	}
	return true
}

package authz_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/campusdesk/internal/app/system/authz"
	"github.com/dalemusser/campusdesk/internal/testutil"
)

func TestIsAdmin(t *testing.T) {
	admin := testutil.WithUser(httptest.NewRequest("GET", "/test", nil), testutil.AdminUser())
	staff := testutil.WithUser(httptest.NewRequest("GET", "/test", nil), testutil.StaffUser("NHS"))
	anon := httptest.NewRequest("GET", "/test", nil)

	if !authz.IsAdmin(admin) {
		t.Error("expected IsAdmin to return true for admin user")
	}
	if authz.IsAdmin(staff) {
		t.Error("expected IsAdmin to return false for staff user")
	}
	if authz.IsAdmin(anon) {
		t.Error("expected IsAdmin to return false when no user")
	}
	if !authz.IsStaff(staff) || authz.IsStaff(admin) {
		t.Error("expected IsStaff to be true only for staff")
	}
}

func TestUserCtx_NoUser(t *testing.T) {
	role, id, ok := authz.UserCtx(httptest.NewRequest("GET", "/test", nil))
	if ok {
		t.Error("expected ok=false when no user")
	}
	if role != "visitor" || id != "" {
		t.Errorf("expected visitor with no id, got %q %q", role, id)
	}
}

func TestCanAccessSchool(t *testing.T) {
	admin := testutil.WithUser(httptest.NewRequest("GET", "/test", nil), testutil.AdminUser())
	staff := testutil.WithUser(httptest.NewRequest("GET", "/test", nil), testutil.StaffUser("NHS", "EHS"))

	tests := []struct {
		name string
		req  bool
		code string
		want bool
	}{
		{"admin any school", true, "XYZ", true},
		{"staff own school", false, "NHS", true},
		{"staff own school lower case", false, "ehs", true},
		{"staff other school", false, "XYZ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := staff
			if tt.req {
				r = admin
			}
			if got := authz.CanAccessSchool(r, tt.code); got != tt.want {
				t.Errorf("CanAccessSchool(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}

	if authz.CanAccessSchool(httptest.NewRequest("GET", "/test", nil), "NHS") {
		t.Error("expected no access without a user")
	}
}

func TestCanWriteTable(t *testing.T) {
	admin := testutil.WithUser(httptest.NewRequest("GET", "/test", nil), testutil.AdminUser())
	staff := testutil.WithUser(httptest.NewRequest("GET", "/test", nil), testutil.StaffUser("NHS"))

	if !authz.CanWriteTable(admin, "schools") {
		t.Error("expected admins to write schools")
	}
	if authz.CanWriteTable(staff, "schools") {
		t.Error("expected staff not to write schools")
	}
	if !authz.CanWriteTable(staff, "students") {
		t.Error("expected staff to write students")
	}
}

func TestHasAnyRole(t *testing.T) {
	staff := testutil.WithUser(httptest.NewRequest("GET", "/test", nil), testutil.StaffUser())

	if !authz.HasAnyRole(staff, "admin", " Staff ") {
		t.Error("expected staff to match")
	}
	if authz.HasAnyRole(staff, "admin") {
		t.Error("expected staff not to match admin")
	}
	if authz.HasAnyRole(httptest.NewRequest("GET", "/test", nil), "staff") {
		t.Error("expected no match without a user")
	}
}

func TestUnknownRole(t *testing.T) {
	u := testutil.StaffUser("NHS")
	u.Role = "principal"
	r := testutil.WithUser(httptest.NewRequest("GET", "/test", nil), u)

	if authz.IsAdmin(r) || authz.IsStaff(r) {
		t.Error("expected an unknown role to be neither admin nor staff")
	}
	if authz.CanWriteTable(r, "students") {
		t.Error("expected an unknown role not to write")
	}
}

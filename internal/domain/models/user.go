// internal/domain/models/user.go
package models

import (
	"time"
)

// User is an account on the self-hosted API.
//
// NOTE:
//   - PasswordHash never leaves the server; it has no JSON name.
//   - SchoolCodes limits which schools a staff account may select. Admins see
//     every active school regardless.
type User struct {
	ID           string   `bson:"_id" json:"id"`
	Email        string   `bson:"email" json:"email"`
	EmailCI      string   `bson:"email_ci" json:"-"` // folded for lookups
	FullName     string   `bson:"full_name" json:"full_name"`
	PasswordHash string   `bson:"password_hash" json:"-"`
	Role         string   `bson:"role" json:"role"` // admin | staff
	Status       string   `bson:"status" json:"status"`
	SchoolCodes  []string `bson:"school_codes,omitempty" json:"school_codes,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Account roles and statuses.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"

	UserActive   = "active"
	UserDisabled = "disabled"
)

// CanAccessSchool reports whether the account may work inside the school.
func (u User) CanAccessSchool(code string) bool {
	if u.Role == RoleAdmin {
		return true
	}
	for _, c := range u.SchoolCodes {
		if c == code {
			return true
		}
	}
	return false
}

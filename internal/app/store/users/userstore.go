// internal/app/store/users/userstore.go
// Package userstore keeps API accounts. It sits on the generic datastore so
// the same code serves MongoDB and Postgres deployments; the users table is
// not part of the data API registry and is only reachable from here.
package userstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
	"github.com/dalemusser/campusdesk/internal/app/system/normalize"
	"github.com/dalemusser/campusdesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
)

// Table is where accounts live.
const Table = "users"

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	// ErrNotFound is returned when no account matches.
	ErrNotFound  = errors.New("user not found")
	errBadRole   = errors.New(`role must be "admin"|"staff"`)
	errBadStatus = errors.New(`status must be "active"|"disabled"`)
	errNoEmail   = errors.New("email is required")
	errNoHash    = errors.New("password hash is required")
)

type Store struct {
	ds  datastore.Store
	now func() time.Time
}

func New(ds datastore.Store) *Store {
	return &Store{ds: ds, now: func() time.Time { return time.Now().UTC() }}
}

// GetByID loads a user by id. Returns ErrNotFound if missing.
func (s *Store) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, map[string]any{"id": id})
}

// GetByEmail looks up a user by case-insensitive email. Returns ErrNotFound if missing.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, map[string]any{"email_ci": text.Fold(normalize.Email(email))})
}

// Create inserts a new user after normalizing and validating fields.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = uuid.NewString()
	u.FullName = normalize.Name(u.FullName)
	u.Email = normalize.Email(u.Email)
	u.EmailCI = text.Fold(u.Email)
	u.Role = normalize.Role(u.Role)
	u.Status = normalize.Status(u.Status)
	u.SchoolCodes = normalize.SchoolCodes(u.SchoolCodes)
	if u.Status == "" {
		u.Status = models.UserActive
	}

	switch {
	case u.Email == "":
		return models.User{}, errNoEmail
	case u.PasswordHash == "":
		return models.User{}, errNoHash
	}
	switch u.Role {
	case models.RoleAdmin, models.RoleStaff:
	default:
		return models.User{}, errBadRole
	}
	switch u.Status {
	case models.UserActive, models.UserDisabled:
	default:
		return models.User{}, errBadStatus
	}

	// an email is unique even on engines without a unique index
	if _, err := s.GetByEmail(ctx, u.Email); err == nil {
		return models.User{}, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return models.User{}, err
	}

	now := s.now()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.ds.Insert(ctx, Table, []datastore.Row{toRow(u)}); err != nil {
		if errors.Is(err, datastore.ErrDuplicate) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// SetPassword replaces the stored hash.
func (s *Store) SetPassword(ctx context.Context, id, hash string) error {
	if hash == "" {
		return errNoHash
	}
	rows, err := s.ds.Update(ctx, Table, map[string]any{"id": id}, datastore.Row{
		"password_hash": hash,
		"updated_at":    s.now(),
	})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureAdmin creates an admin account with the given email and hash if
// no account with that email exists. It reports whether it created one.
func (s *Store) EnsureAdmin(ctx context.Context, email, fullName, hash string) (bool, error) {
	if _, err := s.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if fullName == "" {
		fullName = "Administrator"
	}
	_, err := s.Create(ctx, models.User{
		Email:        email,
		FullName:     fullName,
		Role:         models.RoleAdmin,
		PasswordHash: hash,
	})
	if errors.Is(err, ErrDuplicateEmail) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) findOne(ctx context.Context, filter map[string]any) (*models.User, error) {
	rows, err := s.ds.Find(ctx, Table, datastore.Criteria{Filter: filter, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return fromRow(rows[0])
}

// toRow and fromRow carry the fields that have no JSON name explicitly.
func toRow(u models.User) datastore.Row {
	r := datastore.Row{
		"id":            u.ID,
		"email":         u.Email,
		"email_ci":      u.EmailCI,
		"full_name":     u.FullName,
		"password_hash": u.PasswordHash,
		"role":          u.Role,
		"status":        u.Status,
		"created_at":    u.CreatedAt,
		"updated_at":    u.UpdatedAt,
	}
	if len(u.SchoolCodes) > 0 {
		r["school_codes"] = u.SchoolCodes
	}
	return r
}

func fromRow(r datastore.Row) (*models.User, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode user row: %w", err)
	}
	var u models.User
	if err := json.Unmarshal(b, &u); err != nil {
		return nil, fmt.Errorf("decode user row: %w", err)
	}
	u.EmailCI, _ = r["email_ci"].(string)
	u.PasswordHash, _ = r["password_hash"].(string)
	return &u, nil
}

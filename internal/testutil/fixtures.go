package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
	"github.com/dalemusser/campusdesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures writes test data straight into a datastore, bypassing the
// backend so tests can arrange state without counting as calls.
type Fixtures struct {
	store datastore.Store
	t     *testing.T
}

// NewFixtures creates a Fixtures instance over store (a Memory, or a Mongo
// store from SetupTestDB).
func NewFixtures(t *testing.T, store datastore.Store) *Fixtures {
	t.Helper()
	return &Fixtures{store: store, t: t}
}

// Store returns the underlying datastore.
func (f *Fixtures) Store() datastore.Store {
	return f.store
}

// CreateSchool creates an active school.
func (f *Fixtures) CreateSchool(ctx context.Context, code, name string) models.School {
	f.t.Helper()
	s := models.School{ID: uuid.NewString(), Code: code, Name: name, IsActive: true}
	f.insert(ctx, "schools", s)
	return s
}

// CreateInactiveSchool creates a school that selection must ignore.
func (f *Fixtures) CreateInactiveSchool(ctx context.Context, code, name string) models.School {
	f.t.Helper()
	s := models.School{ID: uuid.NewString(), Code: code, Name: name}
	f.insert(ctx, "schools", s)
	return s
}

// YearOpts tweaks CreateYear.
type YearOpts struct {
	Current  bool
	Archived bool
}

// CreateYear creates an academic year starting on start ("2006-01-02") and
// lasting one school year.
func (f *Fixtures) CreateYear(ctx context.Context, schoolID, name, start string, opts YearOpts) models.AcademicYear {
	f.t.Helper()
	sd, err := models.ParseDate(start)
	if err != nil {
		f.t.Fatalf("bad start date %q: %v", start, err)
	}
	end := sd.AddDate(0, 10, 0)
	y := models.AcademicYear{
		ID:         uuid.NewString(),
		SchoolID:   schoolID,
		Name:       name,
		StartDate:  sd,
		EndDate:    models.NewDate(end.Year(), end.Month(), end.Day()),
		IsCurrent:  opts.Current,
		IsArchived: opts.Archived,
	}
	f.insert(ctx, "academic_years", y)
	return y
}

// CreateStudent creates an enrolled student inside the given scope.
func (f *Fixtures) CreateStudent(ctx context.Context, schoolID, yearID, number, first, last string) models.Student {
	f.t.Helper()
	s := models.Student{
		ID:             uuid.NewString(),
		SchoolID:       schoolID,
		AcademicYearID: yearID,
		StudentNumber:  number,
		FirstName:      first,
		LastName:       last,
		Status:         models.StudentEnrolled,
	}
	f.insert(ctx, "students", s)
	return s
}

// CreateClearance creates a clearance row for a student.
func (f *Fixtures) CreateClearance(ctx context.Context, schoolID, yearID, studentID string, finance, library bool) models.Clearance {
	f.t.Helper()
	c := models.Clearance{
		ID:             uuid.NewString(),
		SchoolID:       schoolID,
		AcademicYearID: yearID,
		StudentID:      studentID,
		FinanceCleared: finance,
		LibraryCleared: library,
	}
	f.insert(ctx, "clearances", c)
	return c
}

// CreateUser creates an active account with the given bcrypt hash.
func (f *Fixtures) CreateUser(ctx context.Context, email, role, passwordHash string, schoolCodes ...string) models.User {
	f.t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	u := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		EmailCI:      text.Fold(email),
		FullName:     "Test " + role,
		PasswordHash: passwordHash,
		Role:         role,
		Status:       models.UserActive,
		SchoolCodes:  schoolCodes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	row := toRow(f.t, u)
	// hidden from JSON, stored all the same
	row["email_ci"] = u.EmailCI
	row["password_hash"] = u.PasswordHash
	if _, err := f.store.Insert(ctx, "users", []datastore.Row{row}); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

func (f *Fixtures) insert(ctx context.Context, table string, v any) {
	f.t.Helper()
	if _, err := f.store.Insert(ctx, table, []datastore.Row{toRow(f.t, v)}); err != nil {
		f.t.Fatalf("failed to create test %s row: %v", table, err)
	}
}

func toRow(t *testing.T, v any) datastore.Row {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	var r datastore.Row
	if err := json.Unmarshal(b, &r); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return r
}

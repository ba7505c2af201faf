// internal/app/system/records/students.go
package records

import (
	"context"
	"strings"

	"github.com/dalemusser/campusdesk/internal/app/system/backend"
	"github.com/dalemusser/campusdesk/internal/app/system/inputval"
	"github.com/dalemusser/campusdesk/internal/domain/models"
)

// StudentsTable holds models.Student rows.
const StudentsTable = "students"

// Students is the typed wrapper over the students table.
type Students struct {
	Hooks *Hooks
}

// List returns every student in scope ordered by last then first name.
func (s Students) List(ctx context.Context) ([]models.Student, error) {
	rows, err := s.Hooks.List(ctx, StudentsTable, ListOptions{
		Order: []backend.Order{{Column: "last_name", Ascending: true}, {Column: "first_name", Ascending: true}},
	})
	if err != nil {
		return nil, err
	}
	out := []models.Student{}
	if err := rows.Decode(&out); err != nil {
		return nil, backend.TransportError(0, "decode students", err)
	}
	return out, nil
}

// Get returns one student, or a context error if it is not in scope.
func (s Students) Get(ctx context.Context, id string) (models.Student, error) {
	rows, err := s.Hooks.List(ctx, StudentsTable, ListOptions{
		Filters: []backend.Filter{{Column: "id", Value: id}},
		Limit:   1,
	})
	if err != nil {
		return models.Student{}, err
	}
	var out []models.Student
	if err := rows.Decode(&out); err != nil {
		return models.Student{}, backend.TransportError(0, "decode student", err)
	}
	if len(out) == 0 {
		return models.Student{}, backend.ContextError("student %q not found in the selected school and year", id)
	}
	return out[0], nil
}

// Create validates st and inserts it into the current scope. Validation
// failures come back as *inputval.Error before anything is sent.
func (s Students) Create(ctx context.Context, st models.Student) (models.Student, error) {
	normalizeStudent(&st)
	if st.Status == "" {
		st.Status = models.StudentEnrolled
	}
	if err := inputval.Validate(st).Err(); err != nil {
		return models.Student{}, err
	}
	rows, err := s.Hooks.Create(ctx, StudentsTable, studentRow(st))
	if err != nil {
		return models.Student{}, err
	}
	return firstStudent(rows, st)
}

// Update replaces the editable fields of the student with st.ID.
func (s Students) Update(ctx context.Context, st models.Student) (models.Student, error) {
	normalizeStudent(&st)
	if err := inputval.Validate(st).Err(); err != nil {
		return models.Student{}, err
	}
	rows, err := s.Hooks.Update(ctx, StudentsTable, st.ID, studentRow(st))
	if err != nil {
		return models.Student{}, err
	}
	if len(rows) == 0 {
		return models.Student{}, backend.ContextError("student %q not found in the selected school and year", st.ID)
	}
	return firstStudent(rows, st)
}

// ImportResult reports what Import did with each input row.
type ImportResult struct {
	Created []models.Student `json:"created"`
	Skipped []string         `json:"skipped"` // student numbers already in scope
}

// Import validates every student, then inserts the ones whose student
// number is not already in scope in a single write. Nothing is written if
// any row is invalid.
func (s Students) Import(ctx context.Context, list []models.Student) (ImportResult, error) {
	res := ImportResult{Created: []models.Student{}, Skipped: []string{}}
	for i := range list {
		normalizeStudent(&list[i])
		if list[i].Status == "" {
			list[i].Status = models.StudentEnrolled
		}
		if err := inputval.Validate(list[i]).Err(); err != nil {
			return res, err
		}
	}

	if err := s.Hooks.Selection.Snapshot().RequireWritable(); err != nil {
		return res, err
	}
	existing, err := s.List(ctx)
	if err != nil {
		return res, err
	}
	have := make(map[string]bool, len(existing))
	for _, st := range existing {
		have[st.StudentNumber] = true
	}

	rows := make([]backend.Row, 0, len(list))
	for _, st := range list {
		if have[st.StudentNumber] {
			res.Skipped = append(res.Skipped, st.StudentNumber)
			continue
		}
		have[st.StudentNumber] = true
		rows = append(rows, studentRow(st))
	}
	if len(rows) == 0 {
		return res, nil
	}

	out, err := s.Hooks.Create(ctx, StudentsTable, rows...)
	if err != nil {
		return res, err
	}
	if err := out.Decode(&res.Created); err != nil {
		return res, backend.TransportError(0, "decode students", err)
	}
	return res, nil
}

// Delete removes one student.
func (s Students) Delete(ctx context.Context, id string) error {
	rows, err := s.Hooks.Delete(ctx, StudentsTable, id)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return backend.ContextError("student %q not found in the selected school and year", id)
	}
	return nil
}

func normalizeStudent(st *models.Student) {
	st.StudentNumber = strings.TrimSpace(st.StudentNumber)
	st.FirstName = strings.TrimSpace(st.FirstName)
	st.LastName = strings.TrimSpace(st.LastName)
	st.GradeLevel = strings.TrimSpace(st.GradeLevel)
	st.Status = strings.ToLower(strings.TrimSpace(st.Status))
}

// studentRow holds only editable columns; scope, id and timestamps are set
// by the builder and the store.
func studentRow(st models.Student) backend.Row {
	r := backend.Row{
		"student_number": st.StudentNumber,
		"first_name":     st.FirstName,
		"last_name":      st.LastName,
		"grade_level":    st.GradeLevel,
	}
	if st.Status != "" {
		r["status"] = st.Status
	}
	return r
}

func firstStudent(rows backend.Rows, fallback models.Student) (models.Student, error) {
	var out []models.Student
	if err := rows.Decode(&out); err != nil {
		return models.Student{}, backend.TransportError(0, "decode student", err)
	}
	if len(out) == 0 {
		return fallback, nil
	}
	return out[0], nil
}

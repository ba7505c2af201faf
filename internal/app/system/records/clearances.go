// internal/app/system/records/clearances.go
package records

import (
	"context"

	"github.com/dalemusser/campusdesk/internal/app/system/backend"
	"github.com/dalemusser/campusdesk/internal/app/system/merge"
	"github.com/dalemusser/campusdesk/internal/domain/models"
)

// ClearancesTable holds models.Clearance rows.
const ClearancesTable = "clearances"

// ClearanceRow is one clearance with the student it belongs to. Student is
// nil when the student row is gone.
type ClearanceRow struct {
	Clearance models.Clearance
	Student   *models.Student
}

// Clearances is the typed wrapper over the clearances table.
type Clearances struct {
	Hooks *Hooks
}

// List returns the clearances in scope.
func (c Clearances) List(ctx context.Context) ([]models.Clearance, error) {
	rows, err := c.Hooks.List(ctx, ClearancesTable, ListOptions{})
	if err != nil {
		return nil, err
	}
	out := []models.Clearance{}
	if err := rows.Decode(&out); err != nil {
		return nil, backend.TransportError(0, "decode clearances", err)
	}
	return out, nil
}

// ListWithStudents fetches clearances and students in scope as two queries
// and joins them on student id, keeping the clearance order.
func (c Clearances) ListWithStudents(ctx context.Context) ([]ClearanceRow, error) {
	cls, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	students, err := Students{Hooks: c.Hooks}.List(ctx)
	if err != nil {
		return nil, err
	}
	pairs, err := merge.ByKey(cls, students,
		func(cl models.Clearance) string { return cl.StudentID },
		func(st models.Student) string { return st.ID },
	)
	if err != nil {
		return nil, backend.ContextError("join clearances to students: %v", err)
	}
	out := make([]ClearanceRow, len(pairs))
	for i, p := range pairs {
		out[i] = ClearanceRow{Clearance: p.Left, Student: p.Right}
	}
	return out, nil
}

// SetCleared records one department's sign-off. dept is "finance" or
// "library".
func (c Clearances) SetCleared(ctx context.Context, id, dept string, cleared bool) error {
	var col string
	switch dept {
	case "finance":
		col = "finance_cleared"
	case "library":
		col = "library_cleared"
	default:
		return backend.ContextError("unknown clearance department %q", dept)
	}
	rows, err := c.Hooks.Update(ctx, ClearancesTable, id, backend.Row{col: cleared})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return backend.ContextError("clearance %q not found in the selected school and year", id)
	}
	return nil
}

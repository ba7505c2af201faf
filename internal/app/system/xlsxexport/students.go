// internal/app/system/xlsxexport/students.go
package xlsxexport

import (
	"io"

	"github.com/dalemusser/campusdesk/internal/domain/models"
)

// StudentColumns is the roster layout. Its headers read back through
// ReadRows as the same keys the CSV importer uses.
var StudentColumns = []Column[models.Student]{
	{Header: "Student Number", Width: 16, Value: func(s models.Student) any { return s.StudentNumber }},
	{Header: "First Name", Width: 20, Value: func(s models.Student) any { return s.FirstName }},
	{Header: "Last Name", Width: 20, Value: func(s models.Student) any { return s.LastName }},
	{Header: "Grade Level", Width: 12, Value: func(s models.Student) any { return s.GradeLevel }},
	{Header: "Status", Width: 12, Value: func(s models.Student) any { return s.Status }},
}

// WriteStudents renders a roster workbook.
func WriteStudents(w io.Writer, students []models.Student) error {
	return Write(w, "Students", StudentColumns, students)
}

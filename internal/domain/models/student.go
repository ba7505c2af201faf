// internal/domain/models/student.go
package models

import "time"

// Student is a scoped record: every row carries both the school and the
// academic year it belongs to.
type Student struct {
	ID             string `bson:"_id" json:"id,omitempty"`
	SchoolID       string `bson:"school_id" json:"school_id,omitempty"`
	AcademicYearID string `bson:"academic_year_id" json:"academic_year_id,omitempty"`

	StudentNumber string `bson:"student_number" json:"student_number" validate:"required,max=32"`
	FirstName     string `bson:"first_name" json:"first_name" validate:"required,max=100"`
	LastName      string `bson:"last_name" json:"last_name" validate:"required,max=100"`
	GradeLevel    string `bson:"grade_level,omitempty" json:"grade_level,omitempty" validate:"omitempty,max=20"`
	Status        string `bson:"status" json:"status,omitempty" validate:"omitempty,oneof=enrolled withdrawn graduated"`

	CreatedAt *time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Student statuses.
const (
	StudentEnrolled  = "enrolled"
	StudentWithdrawn = "withdrawn"
	StudentGraduated = "graduated"
)

// FullName returns "First Last".
func (s Student) FullName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// internal/domain/models/clearance.go
package models

// Clearance tracks end-of-year finance and library sign-off for one student.
type Clearance struct {
	ID             string `bson:"_id" json:"id,omitempty"`
	SchoolID       string `bson:"school_id" json:"school_id,omitempty"`
	AcademicYearID string `bson:"academic_year_id" json:"academic_year_id,omitempty"`
	StudentID      string `bson:"student_id" json:"student_id" validate:"required"`

	FinanceCleared bool   `bson:"finance_cleared" json:"finance_cleared"`
	LibraryCleared bool   `bson:"library_cleared" json:"library_cleared"`
	Notes          string `bson:"notes,omitempty" json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// Cleared reports whether every department has signed off.
func (c Clearance) Cleared() bool {
	return c.FinanceCleared && c.LibraryCleared
}

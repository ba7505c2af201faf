// internal/domain/models/academicyear.go
package models

import "time"

// AcademicYear is a dated period inside one school and the second-level
// partition key for scoped records.
//
// At most one year per school is flagged current. Nothing in storage enforces
// that; the application treats any archived or non-current year as read-only.
type AcademicYear struct {
	ID         string `bson:"_id" json:"id"`
	SchoolID   string `bson:"school_id" json:"school_id" validate:"required"`
	Name       string `bson:"name" json:"name" validate:"required,max=100"`
	StartDate  Date   `bson:"start_date" json:"start_date"`
	EndDate    Date   `bson:"end_date" json:"end_date"`
	IsCurrent  bool   `bson:"is_current" json:"is_current"`
	IsArchived bool   `bson:"is_archived" json:"is_archived"`

	CreatedAt *time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// ReadOnly reports whether mutations against this year must be refused.
func (y AcademicYear) ReadOnly() bool {
	return y.IsArchived || !y.IsCurrent
}

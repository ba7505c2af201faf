// internal/domain/models/school.go
package models

import "time"

// School is the top-level tenant. Nearly every query in the application is
// partitioned by a school id; the code is the human-readable handle that gets
// persisted as the last selected school.
type School struct {
	ID       string `bson:"_id" json:"id"`
	Code     string `bson:"code" json:"code" validate:"required,max=24"`
	Name     string `bson:"name" json:"name" validate:"required,max=200"`
	IsActive bool   `bson:"is_active" json:"is_active"`

	Address string `bson:"address,omitempty" json:"address,omitempty"`
	Region  string `bson:"region,omitempty" json:"region,omitempty"`

	CreatedAt *time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

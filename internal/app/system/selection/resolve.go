// internal/app/system/selection/resolve.go
package selection

import (
	"sort"

	"github.com/dalemusser/campusdesk/internal/domain/models"
)

// ResolveSchool picks the school to use: the one whose code was persisted if
// it is still active, otherwise the first active school by name.
func ResolveSchool(schools []models.School, persistedCode string) (models.School, bool) {
	var active []models.School
	for _, s := range schools {
		if !s.IsActive {
			continue
		}
		if persistedCode != "" && s.Code == persistedCode {
			return s, true
		}
		active = append(active, s)
	}
	if len(active) == 0 {
		return models.School{}, false
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Name != active[j].Name {
			return active[i].Name < active[j].Name
		}
		return active[i].Code < active[j].Code
	})
	return active[0], true
}

// ResolveYear picks the year to use from one school's years: the persisted
// id if it belongs to the set, otherwise the year flagged current, otherwise
// the earliest by start date. When several years claim to be current the
// earliest of those wins.
func ResolveYear(years []models.AcademicYear, persistedID string) (models.AcademicYear, bool) {
	if len(years) == 0 {
		return models.AcademicYear{}, false
	}
	if persistedID != "" {
		for _, y := range years {
			if y.ID == persistedID {
				return y, true
			}
		}
	}

	ordered := append([]models.AcademicYear(nil), years...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartDate.Before(ordered[j].StartDate.Time)
	})
	for _, y := range ordered {
		if y.IsCurrent {
			return y, true
		}
	}
	return ordered[0], true
}

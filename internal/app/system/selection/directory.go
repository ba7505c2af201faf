// internal/app/system/selection/directory.go
package selection

import (
	"context"
	"fmt"

	"github.com/dalemusser/campusdesk/internal/app/system/backend"
	"github.com/dalemusser/campusdesk/internal/domain/models"
)

// Directory lists the schools and years a selection can resolve against.
type Directory interface {
	ActiveSchools(ctx context.Context) ([]models.School, error)
	Years(ctx context.Context, schoolID string) ([]models.AcademicYear, error)
}

// BackendDirectory reads the directory through a backend client.
type BackendDirectory struct {
	Client backend.Client
}

func (d BackendDirectory) ActiveSchools(ctx context.Context) ([]models.School, error) {
	rows, err := d.Client.From("schools").
		Select("*").
		Eq("is_active", true).
		Order("name", true).
		Execute(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.School
	if err := rows.Decode(&out); err != nil {
		return nil, fmt.Errorf("schools: %w", err)
	}
	return out, nil
}

func (d BackendDirectory) Years(ctx context.Context, schoolID string) ([]models.AcademicYear, error) {
	rows, err := d.Client.From("academic_years").
		Select("*").
		Eq("school_id", schoolID).
		Order("start_date", true).
		Execute(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.AcademicYear
	if err := rows.Decode(&out); err != nil {
		return nil, fmt.Errorf("academic years: %w", err)
	}
	return out, nil
}

// restricted hides schools outside an allow-list.
type restricted struct {
	Directory
	codes map[string]bool
}

// Restrict limits dir to schools whose code is in codes. A nil or empty
// list hides every school.
func Restrict(dir Directory, codes []string) Directory {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return restricted{Directory: dir, codes: set}
}

// ForUser returns the directory a user may see: everything for admins, their
// assigned schools otherwise.
func ForUser(dir Directory, u models.User) Directory {
	if u.Role == models.RoleAdmin {
		return dir
	}
	return Restrict(dir, u.SchoolCodes)
}

func (r restricted) ActiveSchools(ctx context.Context) ([]models.School, error) {
	all, err := r.Directory.ActiveSchools(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.School
	for _, s := range all {
		if r.codes[s.Code] {
			out = append(out, s)
		}
	}
	return out, nil
}

package selectionapi_test

import (
	"net/http"
	"testing"

	"github.com/dalemusser/campusdesk/internal/app/features/selectionapi"
	"github.com/dalemusser/campusdesk/internal/app/system/selection"
	"github.com/dalemusser/campusdesk/internal/domain/models"
	"github.com/dalemusser/campusdesk/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type selectionView struct {
	SchoolStatus selection.Status      `json:"school_status"`
	YearStatus   selection.Status      `json:"year_status"`
	School       *models.School        `json:"school"`
	Year         *models.AcademicYear  `json:"year"`
	ReadOnly     bool                  `json:"read_only"`
	Schools      []models.School       `json:"schools"`
	Years        []models.AcademicYear `json:"years"`
}

type world struct {
	env     *testutil.APIEnv
	router  http.Handler
	east    models.School
	north   models.School
	eastNow models.AcademicYear
	eastOld models.AcademicYear
	north25 models.AcademicYear
}

func newWorld(t *testing.T) *world {
	t.Helper()
	env := testutil.NewAPIEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	w := &world{env: env}
	w.east = env.Fixtures.CreateSchool(ctx, "EHS", "East High")
	w.north = env.Fixtures.CreateSchool(ctx, "NHS", "North High")
	w.eastOld = env.Fixtures.CreateYear(ctx, w.east.ID, "2024-2025", "2024-08-01", testutil.YearOpts{Archived: true})
	w.eastNow = env.Fixtures.CreateYear(ctx, w.east.ID, "2025-2026", "2025-08-01", testutil.YearOpts{Current: true})
	w.north25 = env.Fixtures.CreateYear(ctx, w.north.ID, "2025-2026", "2025-08-01", testutil.YearOpts{Current: true})

	r := chi.NewRouter()
	r.Mount("/api/selection", selectionapi.Routes(selectionapi.NewHandler(env.Selections, zap.NewNop()), env.Bearer))
	w.router = r
	return w
}

func get(t *testing.T, c *testutil.APIClient) selectionView {
	t.Helper()
	resp := c.Do(t, http.MethodGet, "/api/selection", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var v selectionView
	testutil.DecodeData(t, resp, &v)
	return v
}

func TestGet_ResolvesDefaults(t *testing.T) {
	w := newWorld(t)
	c := w.env.Serve(t, w.router, w.env.Token(t, models.RoleAdmin))

	v := get(t, c)
	if v.School == nil || v.School.Code != "EHS" {
		t.Fatalf("expected East High first by name, got %+v", v.School)
	}
	if v.Year == nil || v.Year.ID != w.eastNow.ID {
		t.Errorf("expected the current year, got %+v", v.Year)
	}
	if v.ReadOnly {
		t.Error("expected the current year to be writable")
	}
	if len(v.Schools) != 2 || len(v.Years) != 2 {
		t.Errorf("expected 2 schools and 2 years, got %d and %d", len(v.Schools), len(v.Years))
	}
}

func TestSelectYear_PersistsAcrossRequests(t *testing.T) {
	w := newWorld(t)
	c := w.env.Serve(t, w.router, w.env.Token(t, models.RoleAdmin))

	resp := c.Do(t, http.MethodPut, "/api/selection/year", map[string]string{"year_id": w.eastOld.ID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	v := get(t, c)
	if v.Year == nil || v.Year.ID != w.eastOld.ID {
		t.Fatalf("expected the archived year to stick, got %+v", v.Year)
	}
	if !v.ReadOnly {
		t.Error("expected an archived year to be read-only")
	}
}

func TestSelectSchool_ResetsYear(t *testing.T) {
	w := newWorld(t)
	c := w.env.Serve(t, w.router, w.env.Token(t, models.RoleAdmin))

	c.Do(t, http.MethodPut, "/api/selection/year", map[string]string{"year_id": w.eastOld.ID})
	resp := c.Do(t, http.MethodPut, "/api/selection/school", map[string]string{"code": "nhs"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var v selectionView
	testutil.DecodeData(t, resp, &v)
	if v.School == nil || v.School.ID != w.north.ID {
		t.Fatalf("expected North High, got %+v", v.School)
	}
	if v.Year == nil || v.Year.ID != w.north25.ID {
		t.Errorf("expected North's current year, got %+v", v.Year)
	}

	if again := get(t, c); again.School == nil || again.School.Code != "NHS" {
		t.Errorf("expected NHS to persist, got %+v", again.School)
	}
}

func TestSelect_Errors(t *testing.T) {
	w := newWorld(t)
	c := w.env.Serve(t, w.router, w.env.Token(t, models.RoleAdmin))

	tests := []struct {
		name string
		path string
		body map[string]string
	}{
		{"unknown school", "/api/selection/school", map[string]string{"code": "ZZZ"}},
		{"blank school", "/api/selection/school", map[string]string{"code": " "}},
		{"year of another school", "/api/selection/year", map[string]string{"year_id": w.north25.ID}},
		{"blank year", "/api/selection/year", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := c.Do(t, http.MethodPut, tt.path, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestStaff_SeesOnlyOwnSchools(t *testing.T) {
	w := newWorld(t)
	c := w.env.Serve(t, w.router, w.env.Token(t, models.RoleStaff, "NHS"))

	v := get(t, c)
	if len(v.Schools) != 1 || v.School == nil || v.School.Code != "NHS" {
		t.Fatalf("expected only NHS, got %+v", v.Schools)
	}
	resp := c.Do(t, http.MethodPut, "/api/selection/school", map[string]string{"code": "EHS"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400 for a school outside the account, got %d", resp.StatusCode)
	}
}

func TestRequiresToken(t *testing.T) {
	w := newWorld(t)
	c := w.env.Serve(t, w.router, "")
	resp := c.Do(t, http.MethodGet, "/api/selection", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", resp.StatusCode)
	}
}

package students_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/dalemusser/campusdesk/internal/app/features/dataapi"
	"github.com/dalemusser/campusdesk/internal/app/features/selectionapi"
	"github.com/dalemusser/campusdesk/internal/app/features/students"
	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
	"github.com/dalemusser/campusdesk/internal/app/system/cache"
	"github.com/dalemusser/campusdesk/internal/app/system/xlsxexport"
	"github.com/dalemusser/campusdesk/internal/domain/models"
	"github.com/dalemusser/campusdesk/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type world struct {
	env     *testutil.APIEnv
	router  http.Handler
	east    models.School
	eastNow models.AcademicYear
	eastOld models.AcademicYear
	ada     models.Student
	old     models.Student
}

func newWorld(t *testing.T) *world {
	t.Helper()
	env := testutil.NewAPIEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	w := &world{env: env}
	w.east = env.Fixtures.CreateSchool(ctx, "EHS", "East High")
	w.eastOld = env.Fixtures.CreateYear(ctx, w.east.ID, "2024-2025", "2024-08-01", testutil.YearOpts{Archived: true})
	w.eastNow = env.Fixtures.CreateYear(ctx, w.east.ID, "2025-2026", "2025-08-01", testutil.YearOpts{Current: true})
	w.ada = env.Fixtures.CreateStudent(ctx, w.east.ID, w.eastNow.ID, "S-1", "Ada", "Lovelace")
	env.Fixtures.CreateStudent(ctx, w.east.ID, w.eastNow.ID, "S-2", "Grace", "Hopper")
	w.old = env.Fixtures.CreateStudent(ctx, w.east.ID, w.eastOld.ID, "S-9", "Old", "Timer")

	h := students.NewHandler(env.Client, env.Selections, cache.NewMemory(), zap.NewNop())
	r := chi.NewRouter()
	r.Mount("/api/selection", selectionapi.Routes(selectionapi.NewHandler(env.Selections, zap.NewNop()), env.Bearer))
	r.Mount("/api/students", students.Routes(h, env.Bearer))
	w.router = r
	return w
}

func (w *world) admin(t *testing.T) *testutil.APIClient {
	return w.env.Serve(t, w.router, w.env.Token(t, models.RoleAdmin))
}

func list(t *testing.T, c *testutil.APIClient) []models.Student {
	t.Helper()
	resp := c.Do(t, http.MethodGet, "/api/students", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var out []models.Student
	testutil.DecodeData(t, resp, &out)
	return out
}

func TestList_SelectedYearOnly(t *testing.T) {
	w := newWorld(t)
	got := list(t, w.admin(t))
	if len(got) != 2 {
		t.Fatalf("expected 2 students, got %d", len(got))
	}
	if got[0].LastName != "Hopper" || got[1].LastName != "Lovelace" {
		t.Errorf("expected last-name order, got %s, %s", got[0].LastName, got[1].LastName)
	}
}

func TestList_SearchAndPaging(t *testing.T) {
	w := newWorld(t)
	c := w.admin(t)

	query := func(path string) ([]models.Student, *http.Response) {
		t.Helper()
		resp := c.Do(t, http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: expected status 200, got %d", path, resp.StatusCode)
		}
		var out []models.Student
		testutil.DecodeData(t, resp, &out)
		return out, resp
	}

	got, _ := query("/api/students?q=grace")
	if len(got) != 1 || got[0].StudentNumber != "S-2" {
		t.Errorf("q=grace: got %+v", got)
	}
	got, _ = query("/api/students?q=s-1")
	if len(got) != 1 || got[0].StudentNumber != "S-1" {
		t.Errorf("q=s-1: got %+v", got)
	}
	if got, _ = query("/api/students?q=nobody"); len(got) != 0 {
		t.Errorf("q=nobody: expected no students, got %d", len(got))
	}

	got, resp := query("/api/students?limit=1")
	if len(got) != 1 || got[0].LastName != "Hopper" {
		t.Errorf("limit=1: got %+v", got)
	}
	if resp.Header.Get("X-Total-Count") != "2" || resp.Header.Get("X-Next-Start") != "2" {
		t.Errorf("unexpected paging headers: total=%q next=%q", resp.Header.Get("X-Total-Count"), resp.Header.Get("X-Next-Start"))
	}
	got, resp = query("/api/students?limit=1&start=2")
	if len(got) != 1 || got[0].LastName != "Lovelace" {
		t.Errorf("start=2: got %+v", got)
	}
	if resp.Header.Get("X-Next-Start") != "" {
		t.Errorf("expected no next page, got %q", resp.Header.Get("X-Next-Start"))
	}
}

func TestGet(t *testing.T) {
	w := newWorld(t)
	c := w.admin(t)

	resp := c.Do(t, http.MethodGet, "/api/students/"+w.ada.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var st models.Student
	testutil.DecodeData(t, resp, &st)
	if st.StudentNumber != "S-1" {
		t.Errorf("expected S-1, got %q", st.StudentNumber)
	}

	if resp := c.Do(t, http.MethodGet, "/api/students/"+w.old.ID, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for a student in another year, got %d", resp.StatusCode)
	}
}

func TestCreate(t *testing.T) {
	w := newWorld(t)
	c := w.admin(t)

	resp := c.Do(t, http.MethodPost, "/api/students", map[string]string{
		"student_number": " S-3 ", "first_name": "Alan", "last_name": "Turing",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.StatusCode)
	}
	var st models.Student
	testutil.DecodeData(t, resp, &st)
	if st.ID == "" || st.StudentNumber != "S-3" || st.Status != models.StudentEnrolled {
		t.Errorf("unexpected student %+v", st)
	}
	if st.SchoolID != w.east.ID || st.AcademicYearID != w.eastNow.ID {
		t.Errorf("expected current scope, got %s/%s", st.SchoolID, st.AcademicYearID)
	}
	if got := list(t, c); len(got) != 3 {
		t.Errorf("expected the new student in the list, got %d", len(got))
	}
}

func TestCreate_ValidationFails(t *testing.T) {
	w := newWorld(t)
	resp := w.admin(t).Do(t, http.MethodPost, "/api/students", map[string]string{"student_number": "S-3"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
}

func TestCreate_ArchivedYearConflicts(t *testing.T) {
	w := newWorld(t)
	c := w.admin(t)
	if resp := c.Do(t, http.MethodPut, "/api/selection/year", map[string]string{"year_id": w.eastOld.ID}); resp.StatusCode != http.StatusOK {
		t.Fatalf("select year: status %d", resp.StatusCode)
	}

	resp := c.Do(t, http.MethodPost, "/api/students", map[string]string{
		"student_number": "S-3", "first_name": "Alan", "last_name": "Turing",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.StatusCode)
	}

	// Reads of the archived year still work.
	got := list(t, c)
	if len(got) != 1 || got[0].ID != w.old.ID {
		t.Errorf("expected the archived roster, got %+v", got)
	}
}

func TestUpdateDelete(t *testing.T) {
	w := newWorld(t)
	c := w.admin(t)

	resp := c.Do(t, http.MethodPatch, "/api/students/"+w.ada.ID, map[string]string{
		"student_number": "S-1", "first_name": "Augusta", "last_name": "Lovelace", "status": "Graduated",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var st models.Student
	testutil.DecodeData(t, resp, &st)
	if st.FirstName != "Augusta" || st.Status != models.StudentGraduated {
		t.Errorf("unexpected student %+v", st)
	}

	if resp := c.Do(t, http.MethodDelete, "/api/students/"+w.ada.ID, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.StatusCode)
	}
	if resp := c.Do(t, http.MethodDelete, "/api/students/"+w.ada.ID, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", resp.StatusCode)
	}
	if resp := c.Do(t, http.MethodDelete, "/api/students/"+w.old.ID, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for a student in another year, got %d", resp.StatusCode)
	}
}

func TestExportCSV(t *testing.T) {
	w := newWorld(t)
	resp := w.admin(t).Do(t, http.MethodGet, "/api/students/export.csv", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, `filename="students-EHS-2025-2026.csv"`) {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	body, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "student_number,first_name,last_name,grade_level,status" {
		t.Errorf("unexpected header %q", lines[0])
	}
}

func TestExportXLSX(t *testing.T) {
	w := newWorld(t)
	resp := w.admin(t).Do(t, http.MethodGet, "/api/students/export.xlsx", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != xlsxexport.ContentType {
		t.Errorf("unexpected Content-Type %q", ct)
	}
	rows, err := xlsxexport.ReadRows(resp.Body)
	if err != nil {
		t.Fatalf("ReadRows failed: %v", err)
	}
	if len(rows) != 2 || rows[0]["student_number"] != "S-2" {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func upload(t *testing.T, c *testutil.APIClient, name, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"/api/students/import", &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.Token)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestImportCSV(t *testing.T) {
	w := newWorld(t)
	c := w.admin(t)

	resp := upload(t, c, "roster.csv", "student_number,first_name,last_name\nS-1,Ada,Lovelace\nS-3,Alan,Turing\n")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var out struct {
		Created int      `json:"created"`
		Skipped []string `json:"skipped"`
	}
	testutil.DecodeData(t, resp, &out)
	if out.Created != 1 || len(out.Skipped) != 1 || out.Skipped[0] != "S-1" {
		t.Errorf("unexpected result %+v", out)
	}
	if got := list(t, c); len(got) != 3 {
		t.Errorf("expected 3 students after import, got %d", len(got))
	}
}

func TestImport_InvalidRowsRejected(t *testing.T) {
	w := newWorld(t)
	c := w.admin(t)

	resp := upload(t, c, "roster.csv", "student_number,first_name,last_name\nS-5,,Nobody\n")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", resp.StatusCode)
	}
	var body struct {
		Error string `json:"error"`
		Data  struct {
			Errors []struct {
				Line int `json:"line"`
			} `json:"errors"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.Errors) != 1 || body.Data.Errors[0].Line != 2 {
		t.Errorf("expected one error on line 2, got %+v", body.Data.Errors)
	}
	if got := list(t, c); len(got) != 2 {
		t.Errorf("expected nothing imported, got %d students", len(got))
	}
}

func TestImport_RejectsOtherFileTypes(t *testing.T) {
	w := newWorld(t)
	resp := upload(t, w.admin(t), "roster.txt", "S-1,Ada,Lovelace\n")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", resp.StatusCode)
	}
}

func TestRequiresToken(t *testing.T) {
	w := newWorld(t)
	c := w.env.Serve(t, w.router, "")
	if resp := c.Do(t, http.MethodGet, "/api/students", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", resp.StatusCode)
	}
}

func TestList_SeesWritesMadeThroughDataAPI(t *testing.T) {
	env := testutil.NewAPIEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	school := env.Fixtures.CreateSchool(ctx, "EHS", "East High")
	year := env.Fixtures.CreateYear(ctx, school.ID, "2025-2026", "2025-08-01", testutil.YearOpts{Current: true})
	env.Fixtures.CreateStudent(ctx, school.ID, year.ID, "S-1", "Ada", "Lovelace")

	shared := cache.NewMemory()
	r := chi.NewRouter()
	r.Mount("/api/students", students.Routes(students.NewHandler(env.Client, env.Selections, shared, zap.NewNop()), env.Bearer))
	r.Mount("/api/data", dataapi.Routes(dataapi.NewHandler(env.Client, datastore.DefaultTables(), nil, shared, zap.NewNop()), env.Bearer))
	c := env.Serve(t, r, env.Token(t, models.RoleAdmin))

	if got := list(t, c); len(got) != 1 {
		t.Fatalf("expected 1 student before writes, got %d", len(got))
	}

	resp := c.Do(t, http.MethodPost, "/api/data/students", map[string]any{
		"school_id":        school.ID,
		"academic_year_id": year.ID,
		"student_number":   "S-2",
		"first_name":       "Grace",
		"last_name":        "Hopper",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("insert: expected status 201, got %d", resp.StatusCode)
	}
	if got := list(t, c); len(got) != 2 {
		t.Fatalf("expected 2 students after insert, got %d", len(got))
	}

	// No scope in the filter, so the whole table is dropped from the cache.
	byNumber := url.QueryEscape(`{"student_number":"S-2"}`)
	resp = c.Do(t, http.MethodPatch, "/api/data/students?filter="+byNumber, map[string]any{"first_name": "Gracie"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected status 200, got %d", resp.StatusCode)
	}
	got := list(t, c)
	if len(got) != 2 || got[0].FirstName != "Gracie" {
		t.Fatalf("expected renamed student first, got %+v", got)
	}

	scope := url.QueryEscape(fmt.Sprintf(`{"school_id":%q,"academic_year_id":%q}`, school.ID, year.ID))
	resp = c.Do(t, http.MethodDelete, "/api/data/students?filter="+scope, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected status 200, got %d", resp.StatusCode)
	}
	if got := list(t, c); len(got) != 0 {
		t.Errorf("expected 0 students after delete, got %d", len(got))
	}
}

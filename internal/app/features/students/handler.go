// internal/app/features/students/handler.go
package students

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/dalemusser/campusdesk/internal/app/system/apiresp"
	"github.com/dalemusser/campusdesk/internal/app/system/backend"
	"github.com/dalemusser/campusdesk/internal/app/system/cache"
	"github.com/dalemusser/campusdesk/internal/app/system/csvutil"
	"github.com/dalemusser/campusdesk/internal/app/system/paging"
	"github.com/dalemusser/campusdesk/internal/app/system/records"
	"github.com/dalemusser/campusdesk/internal/app/system/search"
	"github.com/dalemusser/campusdesk/internal/app/system/selection"
	"github.com/dalemusser/campusdesk/internal/app/system/timeouts"
	"github.com/dalemusser/campusdesk/internal/app/system/xlsxexport"
	"github.com/dalemusser/campusdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves /api/students inside the caller's selected school and
// year.
type Handler struct {
	Client     backend.Client
	Selections *selection.Provider
	Cache      cache.Cache
	Log        *zap.Logger
}

func NewHandler(client backend.Client, selections *selection.Provider, c cache.Cache, logger *zap.Logger) *Handler {
	return &Handler{Client: client, Selections: selections, Cache: c, Log: logger}
}

// students returns the typed hooks bound to this request's selection.
func (h *Handler) students(w http.ResponseWriter, r *http.Request) (records.Students, selection.Snapshot, error) {
	sel, _, err := h.Selections.ForRequest(r.Context(), w, r)
	if err != nil {
		return records.Students{}, selection.Snapshot{}, err
	}
	hooks := &records.Hooks{
		Client:    h.Client,
		Selection: sel,
		Cache:     h.Cache,
		Log:       h.Log,
		TTL:       records.DefaultTTL,
	}
	return records.Students{Hooks: hooks}, sel.Snapshot(), nil
}

// fail is apiresp.Fail with a missing student reported as 404.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	var be *backend.Error
	if errors.As(err, &be) && be.Kind == backend.KindContext && strings.HasSuffix(be.Message, "not found in the selected school and year") {
		apiresp.Error(w, http.StatusNotFound, be.Message)
		return
	}
	apiresp.Fail(w, h.Log, op, err)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Reads                                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeList returns a page of the students in scope. q filters by name or,
// when it looks like one, by student number prefix; start and limit page.
// X-Total-Count carries the filtered total.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	st, _, err := h.students(w, r)
	if err != nil {
		apiresp.Fail(w, h.Log, "list students", err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.List(), h.Log, "list students")
	defer cancel()

	out, err := st.List(ctx)
	if err != nil {
		apiresp.Fail(w, h.Log, "list students", err)
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if search.NumberPivotOK(q) {
		byNumber := []models.Student{}
		for _, s := range out {
			if search.HasPrefixFold(s.StudentNumber, q) {
				byNumber = append(byNumber, s)
			}
		}
		out = byNumber
	} else {
		out = search.Filter(out, q, func(s models.Student) []string {
			return []string{s.FirstName, s.LastName, s.StudentNumber}
		})
	}

	page, rg := paging.Window(out, paging.ParseStart(r), paging.ParseSize(r))
	w.Header().Set("X-Total-Count", strconv.Itoa(rg.Total))
	if rg.HasNext {
		w.Header().Set("X-Next-Start", strconv.Itoa(rg.NextStart))
	}
	apiresp.Data(w, http.StatusOK, page)
}

// ServeStudent returns one student.
func (h *Handler) ServeStudent(w http.ResponseWriter, r *http.Request) {
	st, _, err := h.students(w, r)
	if err != nil {
		apiresp.Fail(w, h.Log, "get student", err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "get student")
	defer cancel()

	out, err := st.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get student", err)
		return
	}
	apiresp.Data(w, http.StatusOK, out)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Writes                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleCreate adds a student to the selected year. Archived and
// non-current years answer 409.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in models.Student
	if err := apiresp.Decode(w, r, &in); err != nil {
		apiresp.Fail(w, h.Log, "create student", err)
		return
	}
	st, _, err := h.students(w, r)
	if err != nil {
		apiresp.Fail(w, h.Log, "create student", err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Write(), h.Log, "create student")
	defer cancel()

	out, err := st.Create(ctx, in)
	if err != nil {
		apiresp.Fail(w, h.Log, "create student", err)
		return
	}
	apiresp.Data(w, http.StatusCreated, out)
}

// HandleUpdate replaces the editable fields of one student.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in models.Student
	if err := apiresp.Decode(w, r, &in); err != nil {
		apiresp.Fail(w, h.Log, "update student", err)
		return
	}
	in.ID = chi.URLParam(r, "id")

	st, _, err := h.students(w, r)
	if err != nil {
		apiresp.Fail(w, h.Log, "update student", err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Write(), h.Log, "update student")
	defer cancel()

	out, err := st.Update(ctx, in)
	if err != nil {
		h.fail(w, "update student", err)
		return
	}
	apiresp.Data(w, http.StatusOK, out)
}

// HandleDelete removes one student.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	st, _, err := h.students(w, r)
	if err != nil {
		apiresp.Fail(w, h.Log, "delete student", err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Write(), h.Log, "delete student")
	defer cancel()

	if err := st.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete student", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Import                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// importResponse is the body of a successful import, or of one refused
// because rows were invalid.
type importResponse struct {
	Created int                `json:"created"`
	Skipped []string           `json:"skipped"`
	Errors  []csvutil.RowError `json:"errors,omitempty"`
}

// HandleImport reads a roster upload (form field "file", .csv or .xlsx)
// into the selected year. Any invalid row rejects the whole file.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, csvutil.MaxUploadSize)
	if err := r.ParseMultipartForm(csvutil.MaxUploadSize); err != nil {
		apiresp.Error(w, http.StatusBadRequest, "upload too large or not multipart")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		apiresp.Error(w, http.StatusBadRequest, `missing "file" upload`)
		return
	}
	defer file.Close()

	var parsed *csvutil.ParseResult
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		parsed, err = csvutil.ParseStudentsCSV(file, csvutil.DefaultParseOptions())
	case ".xlsx":
		var recs []map[string]string
		recs, err = xlsxexport.ReadRows(file)
		if err == nil {
			parsed, err = csvutil.FromRecords(recs, csvutil.DefaultParseOptions())
		}
	default:
		apiresp.Error(w, http.StatusBadRequest, "upload must be a .csv or .xlsx file")
		return
	}
	if err != nil {
		apiresp.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if parsed.HasErrors() {
		apiresp.JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": parsed.FormatErrors(5),
			"data":  importResponse{Skipped: []string{}, Errors: parsed.Errors},
		})
		return
	}

	list := make([]models.Student, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		list = append(list, row.Student())
	}

	st, _, err := h.students(w, r)
	if err != nil {
		apiresp.Fail(w, h.Log, "import students", err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Export(), h.Log, "import students")
	defer cancel()

	res, err := st.Import(ctx, list)
	if err != nil {
		apiresp.Fail(w, h.Log, "import students", err)
		return
	}
	h.Log.Info("students imported",
		zap.String("file", header.Filename),
		zap.Int("created", len(res.Created)),
		zap.Int("skipped", len(res.Skipped)))
	apiresp.Data(w, http.StatusOK, importResponse{Created: len(res.Created), Skipped: res.Skipped})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Exports                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeExportXLSX streams the roster as a workbook.
func (h *Handler) ServeExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", xlsxexport.ContentType, func(buf *bytes.Buffer, list []models.Student) error {
		return xlsxexport.WriteStudents(buf, list)
	})
}

// ServeExportCSV streams the roster as CSV in the import layout.
func (h *Handler) ServeExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", "text/csv; charset=utf-8", func(buf *bytes.Buffer, list []models.Student) error {
		return csvutil.WriteStudentsCSV(buf, list)
	})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, ext, contentType string, render func(*bytes.Buffer, []models.Student) error) {
	st, snap, err := h.students(w, r)
	if err != nil {
		apiresp.Fail(w, h.Log, "export students", err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Export(), h.Log, "export students")
	defer cancel()

	list, err := st.List(ctx)
	if err != nil {
		apiresp.Fail(w, h.Log, "export students", err)
		return
	}

	// Render fully before writing headers so a failure can still be a JSON error.
	var buf bytes.Buffer
	if err := render(&buf, list); err != nil {
		apiresp.Fail(w, h.Log, "export students", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportName(snap, ext)+`"`)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.Log.Warn("export write failed", zap.Error(err))
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// exportName is students-<school>-<year>.<ext> with anything odd squashed.
func exportName(s selection.Snapshot, ext string) string {
	parts := []string{"students"}
	if s.School != nil {
		parts = append(parts, s.School.Code)
	}
	if s.Year != nil {
		parts = append(parts, s.Year.Name)
	}
	name := unsafeName.ReplaceAllString(strings.Join(parts, "-"), "_")
	return fmt.Sprintf("%s.%s", name, ext)
}

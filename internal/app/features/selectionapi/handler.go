// internal/app/features/selectionapi/handler.go
package selectionapi

import (
	"net/http"
	"strings"

	"github.com/dalemusser/campusdesk/internal/app/system/apiresp"
	"github.com/dalemusser/campusdesk/internal/app/system/normalize"
	"github.com/dalemusser/campusdesk/internal/app/system/selection"
	"github.com/dalemusser/campusdesk/internal/app/system/timeouts"
	"github.com/dalemusser/campusdesk/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves /api/selection: the school and academic year a browser
// session is working in.
type Handler struct {
	Selections *selection.Provider
	Log        *zap.Logger
}

func NewHandler(selections *selection.Provider, logger *zap.Logger) *Handler {
	return &Handler{Selections: selections, Log: logger}
}

// view is the JSON shape of a selection.
type view struct {
	SchoolStatus selection.Status      `json:"school_status"`
	YearStatus   selection.Status      `json:"year_status"`
	School       *models.School        `json:"school"`
	Year         *models.AcademicYear  `json:"year"`
	ReadOnly     bool                  `json:"read_only"`
	Schools      []models.School       `json:"schools"`
	Years        []models.AcademicYear `json:"years"`
}

func toView(s selection.Snapshot) view {
	v := view{
		SchoolStatus: s.SchoolStatus,
		YearStatus:   s.YearStatus,
		School:       s.School,
		Year:         s.Year,
		ReadOnly:     s.IsReadOnly(),
		Schools:      s.Schools,
		Years:        s.Years,
	}
	if v.Schools == nil {
		v.Schools = []models.School{}
	}
	if v.Years == nil {
		v.Years = []models.AcademicYear{}
	}
	return v
}

// ServeSelection returns the current selection, resolving defaults on first
// use.
func (h *Handler) ServeSelection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "selection load")
	defer cancel()

	sel, save, err := h.Selections.ForRequest(ctx, w, r)
	if err != nil {
		apiresp.Fail(w, h.Log, "selection", err)
		return
	}
	if err := save(); err != nil {
		h.Log.Warn("save selection session", zap.Error(err))
	}
	apiresp.Data(w, http.StatusOK, toView(sel.Snapshot()))
}

type schoolRequest struct {
	Code string `json:"code"`
}

// HandleSelectSchool switches school; the year falls back to the new
// school's default.
func (h *Handler) HandleSelectSchool(w http.ResponseWriter, r *http.Request) {
	var in schoolRequest
	if err := apiresp.Decode(w, r, &in); err != nil {
		apiresp.Fail(w, h.Log, "select school", err)
		return
	}
	code := normalize.SchoolCode(in.Code)
	if code == "" {
		apiresp.Error(w, http.StatusBadRequest, "code is required")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "select school")
	defer cancel()

	sel, save, err := h.Selections.ForRequest(ctx, w, r)
	if err != nil {
		apiresp.Fail(w, h.Log, "select school", err)
		return
	}
	if err := sel.SelectSchool(ctx, code); err != nil {
		apiresp.Fail(w, h.Log, "select school", err)
		return
	}
	if err := save(); err != nil {
		apiresp.Fail(w, h.Log, "select school", err)
		return
	}
	apiresp.Data(w, http.StatusOK, toView(sel.Snapshot()))
}

type yearRequest struct {
	YearID string `json:"year_id"`
}

// HandleSelectYear switches year within the selected school.
func (h *Handler) HandleSelectYear(w http.ResponseWriter, r *http.Request) {
	var in yearRequest
	if err := apiresp.Decode(w, r, &in); err != nil {
		apiresp.Fail(w, h.Log, "select year", err)
		return
	}
	yearID := strings.TrimSpace(in.YearID)
	if yearID == "" {
		apiresp.Error(w, http.StatusBadRequest, "year_id is required")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Read(), h.Log, "select year")
	defer cancel()

	sel, save, err := h.Selections.ForRequest(ctx, w, r)
	if err != nil {
		apiresp.Fail(w, h.Log, "select year", err)
		return
	}
	if err := sel.SelectYear(yearID); err != nil {
		apiresp.Fail(w, h.Log, "select year", err)
		return
	}
	if err := save(); err != nil {
		apiresp.Fail(w, h.Log, "select year", err)
		return
	}
	apiresp.Data(w, http.StatusOK, toView(sel.Snapshot()))
}

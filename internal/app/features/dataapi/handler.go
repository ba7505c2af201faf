// internal/app/features/dataapi/handler.go
package dataapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/campusdesk/internal/app/store/audit"
	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
	"github.com/dalemusser/campusdesk/internal/app/system/apiresp"
	"github.com/dalemusser/campusdesk/internal/app/system/auditlog"
	"github.com/dalemusser/campusdesk/internal/app/system/auth"
	"github.com/dalemusser/campusdesk/internal/app/system/authz"
	"github.com/dalemusser/campusdesk/internal/app/system/backend"
	"github.com/dalemusser/campusdesk/internal/app/system/cache"
	"github.com/dalemusser/campusdesk/internal/app/system/htmlsanitize"
	"github.com/dalemusser/campusdesk/internal/app/system/limits"
	"github.com/dalemusser/campusdesk/internal/app/system/normalize"
	"github.com/dalemusser/campusdesk/internal/app/system/records"
	"github.com/dalemusser/campusdesk/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RichColumns keep safe HTML; every other string is reduced to plain text.
var RichColumns = []string{"notes", "remarks", "body"}

// Handler serves /api/data/{table}, the wire surface the self-hosted
// backend client talks to.
type Handler struct {
	Client   backend.Client
	Tables   datastore.Registry
	Cleaner  htmlsanitize.Cleaner
	AuditLog *auditlog.Logger
	Cache    cache.Cache // query cache shared with the records hooks; nil skips invalidation
	Log      *zap.Logger
}

// NewHandler serves tables through client. client is expected to sit on a
// datastore.Guarded built from the same registry. Successful writes drop
// the cached reads in c for the scopes they touched.
func NewHandler(client backend.Client, tables datastore.Registry, audit *auditlog.Logger, c cache.Cache, logger *zap.Logger) *Handler {
	return &Handler{
		Client:   client,
		Tables:   tables,
		Cleaner:  htmlsanitize.NewCleaner(RichColumns...),
		AuditLog: audit,
		Cache:    c,
		Log:      logger,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request parsing                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// params is the decoded query string shared by every verb.
type params struct {
	table   datastore.Table
	columns string
	filter  map[string]any
	orders  []backend.Order
	limit   int
}

func (h *Handler) parse(r *http.Request) (params, error) {
	var p params
	name := chi.URLParam(r, "table")
	t, err := h.Tables.Lookup(name)
	if err != nil {
		return p, backend.ContextError("unknown table %q", name)
	}
	p.table = t
	p.columns = normalize.Columns(query.Get(r, "select"))

	if raw := query.Get(r, "filter"); raw != "" {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		var f map[string]any
		if err := dec.Decode(&f); err != nil {
			return p, backend.ContextError("filter must be a JSON object: %v", err)
		}
		p.filter = plainRow(f)
	}

	if raw := query.Get(r, "order"); raw != "" {
		if p.orders, err = backend.ParseOrder(raw); err != nil {
			return p, err
		}
	}

	p.limit = limits.DefaultSelectLimit
	if raw := query.Get(r, "limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, backend.ContextError("limit must be a non-negative integer")
		}
		p.limit = limits.ClampLimit(n)
	}
	return p, nil
}

// statement starts a query carrying the parsed columns and filter.
func (h *Handler) statement(p params) *backend.Query {
	q := h.Client.From(p.table.Name)
	if p.columns != "" {
		q = q.Select(p.columns)
	}
	for col, v := range p.filter {
		q = q.Eq(col, v)
	}
	return q
}

// plain turns decoded json.Number values into int64 or float64 so the
// storage engines see native types.
func plain(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		return plainRow(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	}
	return v
}

func plainRow(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plain(v)
	}
	return out
}

/*─────────────────────────────────────────────────────────────────────────────*
| Access                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// authorize applies the per-account school restriction. Admins pass. Staff
// must name a school they hold on every scoped statement and every row
// they write. Any other role is refused.
func (h *Handler) authorize(ctx context.Context, r *http.Request, p params, write bool, rows []backend.Row) error {
	if write && !authz.CanWriteTable(r, p.table.Name) {
		return backend.AuthError(http.StatusForbidden, "you may not modify "+p.table.Name)
	}
	if authz.IsAdmin(r) {
		return nil
	}
	if !authz.IsStaff(r) {
		return backend.AuthError(http.StatusForbidden, "your account has no data access")
	}
	if p.table.Scope == datastore.Unscoped {
		return nil
	}

	schools := map[string]bool{}
	if len(rows) == 0 {
		id, _ := p.filter[datastore.SchoolColumn].(string)
		if id == "" {
			return backend.AuthError(http.StatusForbidden, "a school_id filter is required")
		}
		schools[id] = true
	}
	for _, row := range rows {
		if id, _ := row[datastore.SchoolColumn].(string); id != "" {
			schools[id] = true
		}
	}
	for id := range schools {
		code, err := h.schoolCode(ctx, id)
		if err != nil {
			return err
		}
		if code == "" || !authz.CanAccessSchool(r, code) {
			return backend.AuthError(http.StatusForbidden, "you do not have access to this school")
		}
	}
	return nil
}

func (h *Handler) schoolCode(ctx context.Context, id string) (string, error) {
	rows, err := h.Client.From("schools").Select("id,code").Eq("id", id).Limit(1).Execute(ctx)
	if err != nil || len(rows) == 0 {
		return "", err
	}
	code, _ := rows[0]["code"].(string)
	return code, nil
}

// visibleSchools drops directory rows the caller holds no code for.
func visibleSchools(r *http.Request, rows backend.Rows) backend.Rows {
	if authz.IsAdmin(r) {
		return rows
	}
	out := backend.Rows{}
	for _, row := range rows {
		if code, _ := row["code"].(string); code != "" && authz.CanAccessSchool(r, code) {
			out = append(out, row)
		}
	}
	return out
}

/*─────────────────────────────────────────────────────────────────────────────*
| Verbs                                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeSelect handles GET.
func (h *Handler) ServeSelect(w http.ResponseWriter, r *http.Request) {
	p, err := h.parse(r)
	if err != nil {
		apiresp.Fail(w, h.Log, "select", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.List(), h.Log, "data select")
	defer cancel()

	if err := h.authorize(ctx, r, p, false, nil); err != nil {
		apiresp.Fail(w, h.Log, "select", err)
		return
	}

	q := h.statement(p)
	for _, o := range p.orders {
		q = q.Order(o.Column, o.Ascending)
	}
	q = q.Limit(p.limit)
	rows, err := q.Execute(ctx)
	if err != nil {
		apiresp.Fail(w, h.Log, "select", err)
		return
	}
	if p.table.Name == "schools" {
		rows = visibleSchools(r, rows)
	}
	apiresp.Data(w, http.StatusOK, rows)
}

// HandleInsert handles POST. The body is one object or an array of them.
func (h *Handler) HandleInsert(w http.ResponseWriter, r *http.Request) {
	p, err := h.parse(r)
	if err != nil {
		apiresp.Fail(w, h.Log, "insert", err)
		return
	}
	var body any
	if err := apiresp.Decode(w, r, &body); err != nil {
		apiresp.Fail(w, h.Log, "insert", err)
		return
	}

	var rows []backend.Row
	switch v := body.(type) {
	case map[string]any:
		rows = []backend.Row{v}
	case []any:
		for i, e := range v {
			m, ok := e.(map[string]any)
			if !ok {
				apiresp.Fail(w, h.Log, "insert", backend.ContextError("row %d is not an object", i))
				return
			}
			rows = append(rows, m)
		}
	default:
		apiresp.Fail(w, h.Log, "insert", backend.ContextError("body must be an object or an array of objects"))
		return
	}
	if len(rows) == 0 {
		apiresp.Fail(w, h.Log, "insert", backend.ContextError("no rows to insert"))
		return
	}
	if len(rows) > limits.MaxInsertRows {
		apiresp.Fail(w, h.Log, "insert", backend.ContextError("at most %d rows per insert", limits.MaxInsertRows))
		return
	}
	for i, row := range rows {
		rows[i] = h.Cleaner.Row(plainRow(row))
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Write(), h.Log, "data insert")
	defer cancel()

	if err := h.authorize(ctx, r, p, true, rows); err != nil {
		apiresp.Fail(w, h.Log, "insert", err)
		return
	}
	q := h.Client.From(p.table.Name).Insert(rows...)
	if p.columns != "" {
		q = q.Select(p.columns)
	}
	out, err := q.Execute(ctx)
	if err != nil {
		apiresp.Fail(w, h.Log, "insert", err)
		return
	}
	h.invalidate(ctx, p.table.Name, rows...)
	h.audit(r, audit.EventRowsInserted, p, rows, len(out))
	apiresp.Data(w, http.StatusCreated, out)
}

// HandleUpdate handles PATCH. A filter is mandatory.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	p, err := h.parse(r)
	if err != nil {
		apiresp.Fail(w, h.Log, "update", err)
		return
	}
	if len(p.filter) == 0 {
		apiresp.Fail(w, h.Log, "update", backend.ContextError("update requires a filter"))
		return
	}
	var patch map[string]any
	if err := apiresp.Decode(w, r, &patch); err != nil {
		apiresp.Fail(w, h.Log, "update", err)
		return
	}
	if len(patch) == 0 {
		apiresp.Fail(w, h.Log, "update", backend.ContextError("patch is empty"))
		return
	}
	patch = h.Cleaner.Row(plainRow(patch))

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Write(), h.Log, "data update")
	defer cancel()

	if err := h.authorize(ctx, r, p, true, nil); err != nil {
		apiresp.Fail(w, h.Log, "update", err)
		return
	}
	if _, moving := patch[datastore.SchoolColumn]; moving {
		if err := h.authorize(ctx, r, p, true, []backend.Row{patch}); err != nil {
			apiresp.Fail(w, h.Log, "update", err)
			return
		}
	}
	out, err := h.statement(p).Update(patch).Execute(ctx)
	if err != nil {
		apiresp.Fail(w, h.Log, "update", err)
		return
	}
	if movesScope(patch) {
		h.invalidate(ctx, p.table.Name, backend.Row{})
	} else {
		h.invalidate(ctx, p.table.Name, p.filter)
	}
	h.audit(r, audit.EventRowsUpdated, p, nil, len(out))
	apiresp.Data(w, http.StatusOK, out)
}

// HandleDelete handles DELETE. A filter is mandatory.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	p, err := h.parse(r)
	if err != nil {
		apiresp.Fail(w, h.Log, "delete", err)
		return
	}
	if len(p.filter) == 0 {
		apiresp.Fail(w, h.Log, "delete", backend.ContextError("delete requires a filter"))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Write(), h.Log, "data delete")
	defer cancel()

	if err := h.authorize(ctx, r, p, true, nil); err != nil {
		apiresp.Fail(w, h.Log, "delete", err)
		return
	}
	out, err := h.statement(p).Delete().Execute(ctx)
	if err != nil {
		apiresp.Fail(w, h.Log, "delete", err)
		return
	}
	h.invalidate(ctx, p.table.Name, p.filter)
	h.audit(r, audit.EventRowsDeleted, p, nil, len(out))
	apiresp.Data(w, http.StatusOK, out)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Cache                                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// invalidate drops cached reads of table for the school and year named by
// each scope (a written row or the statement filter). A scope missing
// either id drops the whole table.
func (h *Handler) invalidate(ctx context.Context, table string, scopes ...map[string]any) {
	if h.Cache == nil {
		return
	}
	type pair struct{ school, year string }
	seen := map[pair]bool{}
	for _, sc := range scopes {
		school, _ := sc[datastore.SchoolColumn].(string)
		year, _ := sc[datastore.YearColumn].(string)
		if school == "" || year == "" {
			seen = map[pair]bool{{}: true}
			break
		}
		seen[pair{school, year}] = true
	}
	for p := range seen {
		if err := records.Invalidate(ctx, h.Cache, table, p.school, p.year); err != nil {
			h.Log.Warn("data cache invalidation failed", zap.String("table", table), zap.Error(err))
		}
	}
}

// movesScope reports whether patch rewrites the school or year of the rows
// it touches.
func movesScope(patch map[string]any) bool {
	_, school := patch[datastore.SchoolColumn]
	_, year := patch[datastore.YearColumn]
	return school || year
}

func (h *Handler) audit(r *http.Request, event string, p params, rows []backend.Row, n int) {
	if n == 0 {
		return
	}
	actor := ""
	if u, ok := auth.CurrentUser(r); ok {
		actor = u.ID
	}
	school, _ := p.filter[datastore.SchoolColumn].(string)
	if school == "" && len(rows) > 0 {
		school, _ = rows[0][datastore.SchoolColumn].(string)
	}
	h.AuditLog.RowsChanged(r.Context(), r, event, actor, school, p.table.Name, n)
}

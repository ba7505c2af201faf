package backend_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/campusdesk/internal/app/system/backend"
)

func TestNewBaaS_Validates(t *testing.T) {
	if _, err := backend.NewBaaS("", "key", nil); err == nil {
		t.Error("expected error for empty url")
	}
	if _, err := backend.NewBaaS("ftp://x", "key", nil); err == nil {
		t.Error("expected error for unsupported scheme")
	}
	if _, err := backend.NewBaaS("https://x.example", " ", nil); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestBaaS_SelectWireShape(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":"1","code":"NHS","name":"North High"}]`)
	}))
	defer srv.Close()

	c, err := backend.NewBaaS(srv.URL, "anon-key", srv.Client())
	if err != nil {
		t.Fatalf("NewBaaS failed: %v", err)
	}
	rows, err := c.From("schools").
		Select("id,code,name").
		Eq("is_active", true).
		Order("name", true).
		Limit(10).
		Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(rows) != 1 || rows[0]["code"] != "NHS" {
		t.Errorf("unexpected rows %v", rows)
	}

	if got.Method != http.MethodGet {
		t.Errorf("expected GET, got %s", got.Method)
	}
	if got.URL.Path != "/rest/v1/schools" {
		t.Errorf("unexpected path %q", got.URL.Path)
	}
	q := got.URL.Query()
	for k, want := range map[string]string{
		"select":    "id,code,name",
		"is_active": "eq.true",
		"order":     "name.asc",
		"limit":     "10",
	} {
		if q.Get(k) != want {
			t.Errorf("param %s: got %q, want %q", k, q.Get(k), want)
		}
	}
	if got.Header.Get("apikey") != "anon-key" {
		t.Errorf("expected apikey header, got %q", got.Header.Get("apikey"))
	}
	if got.Header.Get("Authorization") != "Bearer anon-key" {
		t.Errorf("unexpected Authorization %q", got.Header.Get("Authorization"))
	}
}

func TestBaaS_InsertSendsRowsAndPrefer(t *testing.T) {
	var (
		body   []map[string]any
		prefer string
		method string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		prefer = r.Header.Get("Prefer")
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `[{"id":"new","first_name":"Ada"}]`)
	}))
	defer srv.Close()

	c, _ := backend.NewBaaS(srv.URL, "k", srv.Client())
	rows, err := c.From("students").Insert(backend.Row{"first_name": "Ada"}).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if method != http.MethodPost {
		t.Errorf("expected POST, got %s", method)
	}
	if prefer != "return=representation" {
		t.Errorf("expected Prefer header, got %q", prefer)
	}
	if len(body) != 1 || body[0]["first_name"] != "Ada" {
		t.Errorf("unexpected body %v", body)
	}
	if len(rows) != 1 || rows[0]["id"] != "new" {
		t.Errorf("unexpected rows %v", rows)
	}
}

func TestBaaS_NullFilterAndEmptyBody(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw = r.URL.Query().Get("notes")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, _ := backend.NewBaaS(srv.URL, "k", srv.Client())
	rows, err := c.From("clearances").Delete().Eq("notes", nil).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if raw != "is.null" {
		t.Errorf("expected is.null, got %q", raw)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("expected empty rows, got %#v", rows)
	}
}

func TestBaaS_ErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   backend.ErrorKind
	}{
		{http.StatusUnauthorized, `{"message":"JWT expired","code":"PGRST301"}`, backend.KindAuth},
		{http.StatusForbidden, `{"message":"permission denied"}`, backend.KindAuth},
		{http.StatusBadRequest, `{"message":"column x does not exist","code":"42703"}`, backend.KindTransport},
		{http.StatusInternalServerError, ``, backend.KindTransport},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			io.WriteString(w, tc.body)
		}))
		c, _ := backend.NewBaaS(srv.URL, "k", srv.Client())
		_, err := c.From("schools").Execute(context.Background())
		srv.Close()

		if !backend.IsKind(err, tc.kind) {
			t.Errorf("status %d: expected %s error, got %v", tc.status, tc.kind, err)
			continue
		}
		var be *backend.Error
		if !asBackendError(err, &be) || be.Status != tc.status {
			t.Errorf("status %d: expected status recorded, got %v", tc.status, err)
		}
	}
}

func TestBaaS_NetworkFailureIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, _ := backend.NewBaaS(url, "k", nil)
	_, err := c.From("schools").Execute(context.Background())
	if !backend.IsKind(err, backend.KindTransport) {
		t.Errorf("expected transport error, got %v", err)
	}
}

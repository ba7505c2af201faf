package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dalemusser/campusdesk/internal/app/system/backend"
)

func TestREST_NoTokenMakesNoRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c, err := backend.NewREST(srv.URL, &backend.MemoryTokens{}, srv.Client())
	if err != nil {
		t.Fatalf("NewREST failed: %v", err)
	}
	_, err = c.From("schools").Execute(context.Background())
	if !backend.IsKind(err, backend.KindAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if !errors.Is(err, backend.ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Errorf("expected zero requests, got %d", n)
	}
}

func TestREST_SelectWireShape(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		io.WriteString(w, `{"data":[{"id":"y1","name":"2025/2026"}]}`)
	}))
	defer srv.Close()

	tokens := &backend.MemoryTokens{}
	tokens.SetToken("tok-123")
	c, _ := backend.NewREST(srv.URL+"/", tokens, srv.Client())

	rows, err := c.From("academic_years").
		Select("id,name").
		Eq("school_id", "s1").
		Order("start_date", false).
		Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != "y1" {
		t.Errorf("unexpected rows %v", rows)
	}
	if got.URL.Path != "/api/data/academic_years" {
		t.Errorf("unexpected path %q", got.URL.Path)
	}
	if got.Header.Get("Authorization") != "Bearer tok-123" {
		t.Errorf("unexpected Authorization %q", got.Header.Get("Authorization"))
	}
	q := got.URL.Query()
	var filter map[string]any
	if err := json.Unmarshal([]byte(q.Get("filter")), &filter); err != nil {
		t.Fatalf("filter is not JSON: %q", q.Get("filter"))
	}
	if filter["school_id"] != "s1" {
		t.Errorf("unexpected filter %v", filter)
	}
	if q.Get("select") != "id,name" {
		t.Errorf("unexpected select %q", q.Get("select"))
	}
	if q.Get("order") != "start_date.desc" {
		t.Errorf("unexpected order %q", q.Get("order"))
	}
}

func TestREST_UpdateSendsPatch(t *testing.T) {
	var (
		method string
		patch  map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		json.NewDecoder(r.Body).Decode(&patch)
		io.WriteString(w, `{"data":[{"id":"st-1","last_name":"Lovelace"}]}`)
	}))
	defer srv.Close()

	tokens := &backend.MemoryTokens{}
	tokens.SetToken("tok")
	c, _ := backend.NewREST(srv.URL, tokens, srv.Client())
	_, err := c.From("students").Update(backend.Row{"last_name": "Lovelace"}).Eq("id", "st-1").Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if method != http.MethodPatch {
		t.Errorf("expected PATCH, got %s", method)
	}
	if patch["last_name"] != "Lovelace" {
		t.Errorf("unexpected patch %v", patch)
	}
}

func TestREST_UnauthorizedClearsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"token expired"}`)
	}))
	defer srv.Close()

	tokens := &backend.MemoryTokens{}
	tokens.SetToken("stale")
	c, _ := backend.NewREST(srv.URL, tokens, srv.Client())

	_, err := c.From("schools").Execute(context.Background())
	if !backend.IsKind(err, backend.KindAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if tokens.Token() != "" {
		t.Error("expected token to be cleared after 401")
	}
}

func TestREST_ForbiddenKeepsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":"school not permitted"}`)
	}))
	defer srv.Close()

	tokens := &backend.MemoryTokens{}
	tokens.SetToken("good")
	c, _ := backend.NewREST(srv.URL, tokens, srv.Client())

	_, err := c.From("schools").Execute(context.Background())
	if !backend.IsKind(err, backend.KindAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if tokens.Token() != "good" {
		t.Error("403 should not clear the token")
	}
}

func TestREST_ServerErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tokens := &backend.MemoryTokens{}
	tokens.SetToken("tok")
	c, _ := backend.NewREST(srv.URL, tokens, srv.Client())
	_, err := c.From("schools").Execute(context.Background())
	if !backend.IsKind(err, backend.KindTransport) {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestREST_LoginStoresToken(t *testing.T) {
	var creds map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login should not send a bearer token")
		}
		json.NewDecoder(r.Body).Decode(&creds)
		io.WriteString(w, `{"token":"fresh","expires_at":"2030-01-01T00:00:00Z","user":{"id":"u1","email":"a@b.c","role":"staff"}}`)
	}))
	defer srv.Close()

	tokens := &backend.MemoryTokens{}
	c, _ := backend.NewREST(srv.URL, tokens, srv.Client())
	res, err := c.Login(context.Background(), "a@b.c", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if creds["email"] != "a@b.c" || creds["password"] != "secret" {
		t.Errorf("unexpected credentials sent %v", creds)
	}
	if tokens.Token() != "fresh" {
		t.Errorf("expected token stored, got %q", tokens.Token())
	}
	if res.User.Role != "staff" {
		t.Errorf("expected role staff, got %q", res.User.Role)
	}
}

func TestREST_LoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"invalid credentials"}`)
	}))
	defer srv.Close()

	c, _ := backend.NewREST(srv.URL, nil, srv.Client())
	_, err := c.Login(context.Background(), "a@b.c", "wrong")
	if !backend.IsKind(err, backend.KindAuth) {
		t.Errorf("expected auth error, got %v", err)
	}
	if c.Tokens().Token() != "" {
		t.Error("expected no token after rejected login")
	}
}

func TestREST_LogoutClearsToken(t *testing.T) {
	var hit int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/logout" {
			atomic.AddInt32(&hit, 1)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tokens := &backend.MemoryTokens{}
	tokens.SetToken("tok")
	c, _ := backend.NewREST(srv.URL, tokens, srv.Client())
	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if tokens.Token() != "" {
		t.Error("expected token cleared")
	}
	if atomic.LoadInt32(&hit) != 1 {
		t.Errorf("expected one logout request, got %d", hit)
	}
}

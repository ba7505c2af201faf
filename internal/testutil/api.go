package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
	"github.com/dalemusser/campusdesk/internal/app/system/auth"
	"github.com/dalemusser/campusdesk/internal/app/system/backend"
	"github.com/dalemusser/campusdesk/internal/app/system/selection"
	"github.com/dalemusser/campusdesk/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// APIEnv is the server-side wiring feature handlers share: an in-memory
// datastore behind the guarded registry, a direct backend client, bearer
// tokens and cookie sessions.
type APIEnv struct {
	Mem        *datastore.Memory
	Client     backend.Client
	Issuer     *auth.Issuer
	Bearer     *auth.Bearer
	Sessions   *auth.SessionManager
	Selections *selection.Provider
	Fixtures   *Fixtures
}

// NewAPIEnv builds an APIEnv with empty storage.
func NewAPIEnv(t *testing.T) *APIEnv {
	t.Helper()
	mem := datastore.NewMemory()
	client := backend.NewDirect(datastore.NewGuarded(mem, datastore.DefaultTables()))

	issuer, err := auth.NewIssuer("test-issuer-secret-32-characters!", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}
	sessions, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	return &APIEnv{
		Mem:        mem,
		Client:     client,
		Issuer:     issuer,
		Bearer:     auth.NewBearer(issuer, nil, zap.NewNop()),
		Sessions:   sessions,
		Selections: selection.NewProvider(selection.BackendDirectory{Client: client}, sessions, zap.NewNop()),
		Fixtures:   NewFixtures(t, mem),
	}
}

// Token issues a bearer token for a fresh account with role and schools.
func (e *APIEnv) Token(t *testing.T, role string, schoolCodes ...string) string {
	t.Helper()
	tok, _, err := e.Issuer.Issue(models.User{
		ID:          uuid.NewString(),
		Email:       role + "@test.com",
		Role:        role,
		SchoolCodes: schoolCodes,
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return tok
}

// APIClient calls a test server with a bearer token and a cookie jar, the
// way a browser front end would.
type APIClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// Serve starts h on a test server and returns a client for it.
func (e *APIEnv) Serve(t *testing.T, h http.Handler, token string) *APIClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	hc := srv.Client()
	hc.Jar = jar
	return &APIClient{BaseURL: srv.URL, Token: token, HTTP: hc}
}

// Do sends method to path with an optional JSON body.
func (c *APIClient) Do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, rd)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// DecodeData reads a {"data": ...} body into v.
func DecodeData(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	env := struct {
		Data any `json:"data"`
	}{Data: v}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

package bootstrap

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
	userstore "github.com/dalemusser/campusdesk/internal/app/store/users"
	"github.com/dalemusser/campusdesk/internal/app/system/auth"
	"github.com/dalemusser/campusdesk/internal/app/system/backend"
	"github.com/dalemusser/campusdesk/internal/app/system/timeouts"
	"github.com/dalemusser/campusdesk/internal/domain/models"
	"github.com/dalemusser/campusdesk/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

func testConfig() AppConfig {
	return AppConfig{
		Datastore:     EngineMongo,
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "campusdesk_test",
		JWTSecret:     "test-jwt-secret-at-least-32-characters",
		JWTTTL:        time.Hour,
		SessionKey:    "test-session-key-must-be-32-chars-long",
		SessionName:   "campusdesk-test",
		SessionMaxAge: time.Hour,
		AdminEmail:    "admin@campus.test",
		AdminPassword: "correct horse",
		Timeouts:      timeouts.Defaults(),
		AuditLogAuth:  "all",
		AuditLogData:  "all",
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		core    *config.CoreConfig
		wantErr string
	}{
		{"valid", func(*AppConfig) {}, nil, ""},
		{"unknown engine", func(c *AppConfig) { c.Datastore = "sqlite" }, nil, "datastore must be"},
		{"postgres needs dsn", func(c *AppConfig) { c.Datastore = EnginePostgres }, nil, "postgres_dsn"},
		{"postgres with dsn", func(c *AppConfig) {
			c.Datastore = EnginePostgres
			c.PostgresDSN = "postgres://localhost/campusdesk"
		}, nil, ""},
		{"short jwt secret", func(c *AppConfig) { c.JWTSecret = "short" }, nil, "jwt_secret"},
		{"zero ttl", func(c *AppConfig) { c.JWTTTL = 0 }, nil, "jwt_ttl"},
		{"dev secret in prod", func(c *AppConfig) { c.JWTSecret = "dev-only-change-me-jwt-secret-0123456789" }, &config.CoreConfig{Env: "prod"}, "development default"},
		{"bad admin email", func(c *AppConfig) { c.AdminEmail = "not-an-email" }, nil, "admin_email"},
		{"short admin password", func(c *AppConfig) { c.AdminPassword = "short" }, nil, "admin_password"},
		{"no admin", func(c *AppConfig) { c.AdminEmail, c.AdminPassword = "", "" }, nil, ""},
		{"bad audit mode", func(c *AppConfig) { c.AuditLogData = "sometimes" }, nil, "audit_log_data"},
		{"negative retention", func(c *AppConfig) { c.AuditRetention = -time.Hour }, nil, "audit_retention"},
		{"retention without interval", func(c *AppConfig) {
			c.AuditRetention = 90 * 24 * time.Hour
			c.AuditPurgeInterval = 0
		}, nil, "audit_purge_interval"},
		{"retention with interval", func(c *AppConfig) {
			c.AuditRetention = 90 * 24 * time.Hour
			c.AuditPurgeInterval = time.Hour
		}, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(tt.core, cfg, zap.NewNop())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEnsureAdmin_CreatesOnce(t *testing.T) {
	mem := datastore.NewMemory()
	ctx := context.Background()

	if err := ensureAdmin(ctx, mem, "admin@campus.test", "correct horse", zap.NewNop()); err != nil {
		t.Fatalf("ensureAdmin failed: %v", err)
	}
	u, err := userstore.New(mem).GetByEmail(ctx, "admin@campus.test")
	if err != nil {
		t.Fatalf("admin not created: %v", err)
	}
	if u.Role != models.RoleAdmin {
		t.Errorf("expected role admin, got %q", u.Role)
	}
	if err := auth.CheckPassword(u.PasswordHash, "correct horse"); err != nil {
		t.Errorf("expected the configured password to verify: %v", err)
	}

	// A second start with a different password leaves the account alone.
	if err := ensureAdmin(ctx, mem, "admin@campus.test", "another password", zap.NewNop()); err != nil {
		t.Fatalf("second ensureAdmin failed: %v", err)
	}
	again, _ := userstore.New(mem).GetByEmail(ctx, "admin@campus.test")
	if again.ID != u.ID || again.PasswordHash != u.PasswordHash {
		t.Error("expected the existing admin to be unchanged")
	}
}

func TestEnsureAdmin_NoEmailIsNoop(t *testing.T) {
	mem := datastore.NewMemory()
	if err := ensureAdmin(context.Background(), mem, "", "", zap.NewNop()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	rows, _ := mem.Find(context.Background(), userstore.Table, datastore.Criteria{})
	if len(rows) != 0 {
		t.Errorf("expected no users, got %d", len(rows))
	}
}

func TestEngineName(t *testing.T) {
	if got := engineName(AppConfig{Datastore: "memory"}, DBDeps{}); got != "memory" {
		t.Errorf("expected the configured name without clients, got %q", got)
	}
}

func TestShutdown_NothingOpen(t *testing.T) {
	if err := Shutdown(context.Background(), nil, testConfig(), DBDeps{}, zap.NewNop()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

// TestRouter_EndToEnd drives the mounted API the way a front end does:
// log in, read the selection, add a student, export the roster.
func TestRouter_EndToEnd(t *testing.T) {
	mem := datastore.NewMemory()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cfg := testConfig()
	if err := ensureAdmin(ctx, mem, cfg.AdminEmail, cfg.AdminPassword, zap.NewNop()); err != nil {
		t.Fatalf("ensureAdmin failed: %v", err)
	}
	fx := testutil.NewFixtures(t, mem)
	school := fx.CreateSchool(ctx, "NHS", "North High")
	year := fx.CreateYear(ctx, school.ID, "2025-2026", "2025-08-01", testutil.YearOpts{Current: true})

	h, err := newRouter(cfg, DBDeps{Store: mem}, false, zap.NewNop())
	if err != nil {
		t.Fatalf("newRouter failed: %v", err)
	}
	env := &testutil.APIEnv{}
	c := env.Serve(t, h, "")

	if resp := c.Do(t, http.MethodGet, "/health", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", resp.StatusCode)
	}

	resp := c.Do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": cfg.AdminEmail, "password": cfg.AdminPassword,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	var login backend.LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" {
		t.Fatal("login returned no token")
	}
	c.Token = login.Token

	resp = c.Do(t, http.MethodGet, "/api/selection", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("selection: expected 200, got %d", resp.StatusCode)
	}
	var sel struct {
		Year *models.AcademicYear `json:"year"`
	}
	testutil.DecodeData(t, resp, &sel)
	if sel.Year == nil || sel.Year.ID != year.ID {
		t.Fatalf("expected the current year selected, got %+v", sel.Year)
	}

	resp = c.Do(t, http.MethodPost, "/api/students", map[string]string{
		"student_number": "S-1", "first_name": "Ada", "last_name": "Lovelace",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create student: expected 201, got %d", resp.StatusCode)
	}

	resp = c.Do(t, http.MethodGet, "/api/students/export.csv", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "S-1,Ada,Lovelace") {
		t.Errorf("expected the new student in the export, got %q", body)
	}

	// users is reachable only through /api/auth.
	if resp := c.Do(t, http.MethodGet, "/api/data/users", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected users to be outside the data API, got %d", resp.StatusCode)
	}

	resp = c.Do(t, http.MethodGet, "/api/audit?category=auth", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d", resp.StatusCode)
	}
	var events []struct {
		EventType string `json:"event_type"`
		UserEmail string `json:"user_email"`
	}
	testutil.DecodeData(t, resp, &events)
	if len(events) == 0 || events[0].EventType != "login_success" || events[0].UserEmail != cfg.AdminEmail {
		t.Errorf("expected the login in the audit trail, got %+v", events)
	}

	resp = c.Do(t, http.MethodPost, "/api/auth/logout", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", resp.StatusCode)
	}
	if resp := c.Do(t, http.MethodGet, "/api/students", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected the revoked token to be refused, got %d", resp.StatusCode)
	}
}

// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/campusdesk/internal/app/system/auditlog"
	"github.com/dalemusser/campusdesk/internal/app/system/auth"
	"github.com/dalemusser/campusdesk/internal/app/system/inputval"
	"github.com/dalemusser/campusdesk/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// Storage engines accepted by the datastore key.
const (
	EngineMongo    = "mongo"
	EnginePostgres = "postgres"
)

// appConfigKeys defines the configuration keys for CampusDesk.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: CAMPUSDESK_MONGO_URI, CAMPUSDESK_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "datastore", Default: EngineMongo, Desc: "Storage engine: 'mongo' or 'postgres'"},
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "campusdesk", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "postgres_dsn", Default: "", Desc: "Postgres DSN (required when datastore is 'postgres')"},

	// Cache
	{Name: "redis_addr", Default: "", Desc: "Redis address for the query cache (blank means in-process)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	// Tokens and sessions
	{Name: "jwt_secret", Default: "dev-only-change-me-jwt-secret-0123456789", Desc: "Bearer token signing secret (32+ chars)"},
	{Name: "jwt_ttl", Default: "12h", Desc: "Bearer token lifetime"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "campusdesk-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime"},

	// Admin bootstrap
	{Name: "admin_email", Default: "", Desc: "Email of an admin account to create on startup if missing"},
	{Name: "admin_password", Default: "", Desc: "Initial password for admin_email"},

	// Timeouts
	{Name: "timeout_ping", Default: "", Desc: "Health check deadline (e.g. 2s)"},
	{Name: "timeout_read", Default: "", Desc: "Single-row read deadline"},
	{Name: "timeout_list", Default: "", Desc: "List query deadline"},
	{Name: "timeout_write", Default: "", Desc: "Write deadline"},
	{Name: "timeout_export", Default: "", Desc: "Export and import deadline"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_data", Default: "all", Desc: "Data change logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_retention", Default: "0", Desc: "How long audit events are kept (e.g. 2160h); 0 keeps them forever"},
	{Name: "audit_purge_interval", Default: "1h", Desc: "How often expired audit events are purged"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// environment variables (WAFFLE_* for core, CAMPUSDESK_* for app) and flags
// with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CAMPUSDESK", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	tset, n := timeouts.FromLookup(func(name string) string {
		return appValues.String("timeout_" + name)
	})
	if n > 0 {
		logger.Info("timeouts overridden from config", zap.Int("fields", n))
	}

	appCfg := AppConfig{
		Datastore:        strings.ToLower(strings.TrimSpace(appValues.String("datastore"))),
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		PostgresDSN:      appValues.String("postgres_dsn"),

		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),

		JWTSecret: appValues.String("jwt_secret"),
		JWTTTL:    appValues.Duration("jwt_ttl", 12*time.Hour),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 30*24*time.Hour),

		AdminEmail:    strings.TrimSpace(appValues.String("admin_email")),
		AdminPassword: appValues.String("admin_password"),

		Timeouts: timeouts.Defaults().Merge(tset),

		AuditLogAuth: appValues.String("audit_log_auth"),
		AuditLogData: appValues.String("audit_log_data"),

		AuditRetention:     appValues.Duration("audit_retention", 0),
		AuditPurgeInterval: appValues.Duration("audit_purge_interval", time.Hour),
	}
	return coreCfg, appCfg, nil
}

// ValidateConfig rejects settings that would only fail later, after
// connections are open.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	switch appCfg.Datastore {
	case EngineMongo:
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if strings.TrimSpace(appCfg.MongoDatabase) == "" {
			return fmt.Errorf("mongo_database is required")
		}
	case EnginePostgres:
		if strings.TrimSpace(appCfg.PostgresDSN) == "" {
			return fmt.Errorf("datastore 'postgres' requires postgres_dsn")
		}
	default:
		return fmt.Errorf("datastore must be %q or %q, got %q", EngineMongo, EnginePostgres, appCfg.Datastore)
	}

	if len(appCfg.JWTSecret) < 32 {
		return fmt.Errorf("jwt_secret must be at least 32 characters")
	}
	if appCfg.JWTTTL <= 0 {
		return fmt.Errorf("jwt_ttl must be positive")
	}
	if coreCfg != nil && coreCfg.Env == "prod" && strings.HasPrefix(appCfg.JWTSecret, "dev-only") {
		return fmt.Errorf("jwt_secret still has the development default")
	}

	if appCfg.AdminEmail != "" {
		if !inputval.IsValidEmail(appCfg.AdminEmail) {
			return fmt.Errorf("admin_email %q is not a valid email", appCfg.AdminEmail)
		}
		if err := auth.ValidatePassword(appCfg.AdminPassword); err != nil {
			return fmt.Errorf("admin_password: %w", err)
		}
	}

	for key, v := range map[string]string{"audit_log_auth": appCfg.AuditLogAuth, "audit_log_data": appCfg.AuditLogData} {
		switch v {
		case "", auditlog.SinkAll, auditlog.SinkDB, auditlog.SinkLog, auditlog.SinkOff:
		default:
			return fmt.Errorf("%s must be all, db, log or off, got %q", key, v)
		}
	}
	if appCfg.AuditRetention < 0 {
		return fmt.Errorf("audit_retention must not be negative")
	}
	if appCfg.AuditRetention > 0 && appCfg.AuditPurgeInterval <= 0 {
		return fmt.Errorf("audit_purge_interval must be positive when audit_retention is set")
	}
	return nil
}

// internal/app/bootstrap/appconfig.go
package bootstrap

import (
	"time"

	"github.com/dalemusser/campusdesk/internal/app/system/timeouts"
)

// AppConfig holds service-specific configuration for CampusDesk.
//
// Values come from config files, CAMPUSDESK_* environment variables or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig carries
// the framework settings (ports, TLS, logging, CORS); everything here is
// about the datastore, tokens, sessions and the seeded admin account.
type AppConfig struct {
	// Datastore selects the storage engine: "mongo" or "postgres".
	Datastore string

	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64

	// Postgres connection configuration (only used if Datastore is "postgres")
	PostgresDSN string

	// Redis backs the query cache and token revocations. Blank means an
	// in-process cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Bearer tokens
	JWTSecret string
	JWTTTL    time.Duration

	// Session cookie that persists the school and year selection
	SessionKey    string
	SessionName   string
	SessionDomain string
	SessionMaxAge time.Duration

	// Admin account created on first start when no account has this email
	AdminEmail    string
	AdminPassword string

	// Per-operation deadlines; zero fields fall back to timeouts.Defaults.
	Timeouts timeouts.Set

	// Audit logging: "all", "db", "log" or "off"
	AuditLogAuth string
	AuditLogData string

	// Audit events older than AuditRetention are purged every
	// AuditPurgeInterval. Zero retention keeps everything.
	AuditRetention     time.Duration
	AuditPurgeInterval time.Duration
}

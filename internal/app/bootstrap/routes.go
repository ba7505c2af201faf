// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	auditlogfeature "github.com/dalemusser/campusdesk/internal/app/features/auditlog"
	"github.com/dalemusser/campusdesk/internal/app/features/authapi"
	"github.com/dalemusser/campusdesk/internal/app/features/dataapi"
	healthfeature "github.com/dalemusser/campusdesk/internal/app/features/health"
	"github.com/dalemusser/campusdesk/internal/app/features/selectionapi"
	studentsfeature "github.com/dalemusser/campusdesk/internal/app/features/students"
	auditstore "github.com/dalemusser/campusdesk/internal/app/store/audit"
	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
	userstore "github.com/dalemusser/campusdesk/internal/app/store/users"
	"github.com/dalemusser/campusdesk/internal/app/system/auditlog"
	"github.com/dalemusser/campusdesk/internal/app/system/auth"
	"github.com/dalemusser/campusdesk/internal/app/system/backend"
	"github.com/dalemusser/campusdesk/internal/app/system/cache"
	"github.com/dalemusser/campusdesk/internal/app/system/ratelimit"
	"github.com/dalemusser/campusdesk/internal/app/system/selection"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for CampusDesk.
//
// WAFFLE calls this after configuration, DB connections, schema setup and
// Startup have completed. Secure cookies are enabled in production mode.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	secure := coreCfg != nil && coreCfg.Env == "prod"
	return newRouter(appCfg, deps, secure, logger)
}

// newRouter mounts every feature over deps.Store:
//
//	/health          datastore ping
//	/api/auth        login, logout, me
//	/api/data        generic table access for the self-hosted backend
//	/api/selection   school and year selection
//	/api/students    roster CRUD, import and export
//	/api/audit       audit trail, admins only
func newRouter(appCfg AppConfig, deps DBDeps, secure bool, logger *zap.Logger) (http.Handler, error) {
	tables := datastore.DefaultTables()
	client := backend.NewDirect(datastore.NewGuarded(deps.Store, tables))

	var queryCache cache.Cache = cache.NewMemory()
	if deps.Redis != nil {
		queryCache = cache.NewRedis(deps.Redis)
	}

	issuer, err := auth.NewIssuer(appCfg.JWTSecret, appCfg.JWTTTL)
	if err != nil {
		logger.Error("token issuer init failed", zap.Error(err))
		return nil, err
	}
	revoked := auth.NewCacheRevocations(queryCache)
	bearer := auth.NewBearer(issuer, revoked, logger)

	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	selections := selection.NewProvider(selection.BackendDirectory{Client: client}, sessionMgr, logger)

	events := auditstore.New(deps.Store)
	users := userstore.New(deps.Store)
	audit := auditlog.New(events, logger, auditlog.Config{
		Auth: appCfg.AuditLogAuth,
		Data: appCfg.AuditLogData,
	})

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.Store, engineName(appCfg, deps), logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication
	authHandler := authapi.NewHandler(users, issuer, revoked, ratelimit.NewLoginLimiter(), audit, logger)
	r.Mount("/api/auth", authapi.Routes(authHandler))

	// Generic table access
	dataHandler := dataapi.NewHandler(client, tables, audit, queryCache, logger)
	r.Mount("/api/data", dataapi.Routes(dataHandler, bearer))

	// Selection
	selectionHandler := selectionapi.NewHandler(selections, logger)
	r.Mount("/api/selection", selectionapi.Routes(selectionHandler, bearer))

	// Roster
	studentsHandler := studentsfeature.NewHandler(client, selections, queryCache, logger)
	r.Mount("/api/students", studentsfeature.Routes(studentsHandler, bearer))

	// Audit trail
	auditHandler := auditlogfeature.NewHandler(events, users, logger)
	r.Mount("/api/audit", auditlogfeature.Routes(auditHandler, bearer))

	return r, nil
}

func engineName(appCfg AppConfig, deps DBDeps) string {
	switch {
	case deps.MongoDatabase != nil:
		return EngineMongo
	case deps.Gorm != nil:
		return EnginePostgres
	}
	return appCfg.Datastore
}

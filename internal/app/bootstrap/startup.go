// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/campusdesk/internal/app/store/audit"
	"github.com/dalemusser/campusdesk/internal/app/system/timeouts"
	"github.com/dalemusser/campusdesk/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// retention is the running audit retention worker, stopped in Shutdown.
var retention *workers.AuditRetention

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(appCfg.Timeouts)
	t := timeouts.Current()
	logger.Info("timeouts configured",
		zap.Duration("ping", t.Ping),
		zap.Duration("read", t.Read),
		zap.Duration("list", t.List),
		zap.Duration("write", t.Write),
		zap.Duration("export", t.Export))

	if appCfg.AuditRetention > 0 && deps.Store != nil {
		retention = workers.NewAuditRetention(audit.New(deps.Store), logger, appCfg.AuditPurgeInterval, appCfg.AuditRetention)
		retention.Start()
	}
	return nil
}

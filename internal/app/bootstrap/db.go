// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
	userstore "github.com/dalemusser/campusdesk/internal/app/store/users"
	"github.com/dalemusser/campusdesk/internal/app/system/auth"
	"github.com/dalemusser/campusdesk/internal/app/system/cache"
	"github.com/dalemusser/campusdesk/internal/app/system/indexes"
	"github.com/dalemusser/campusdesk/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ConnectDB opens the configured storage engine and, if redis_addr is set,
// the Redis cache client.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	var deps DBDeps

	switch appCfg.Datastore {
	case EnginePostgres:
		db, err := gorm.Open(postgres.Open(appCfg.PostgresDSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return deps, fmt.Errorf("postgres open: %w", err)
		}
		deps.Gorm = db
		deps.Store = datastore.NewSQL(db)
		logger.Info("connected to Postgres")

	default:
		opts := options.Client().ApplyURI(appCfg.MongoURI)
		if appCfg.MongoMaxPoolSize > 0 {
			opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
		}
		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			return deps, fmt.Errorf("mongo connect: %w", err)
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return deps, fmt.Errorf("mongo ping: %w", err)
		}
		deps.MongoClient = client
		deps.MongoDatabase = client.Database(appCfg.MongoDatabase)
		deps.Store = datastore.NewMongo(deps.MongoDatabase)
		logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))
	}

	if appCfg.RedisAddr != "" {
		rc, err := cache.DialRedis(ctx, appCfg.RedisAddr, appCfg.RedisPassword, appCfg.RedisDB)
		if err != nil {
			// The cache is optional; fall back to in-process.
			logger.Warn("redis unavailable, using in-process cache",
				zap.String("addr", appCfg.RedisAddr), zap.Error(err))
		} else {
			deps.Redis = rc
			logger.Info("connected to Redis", zap.String("addr", appCfg.RedisAddr))
		}
	}
	return deps, nil
}

// EnsureSchema creates indexes and validators (Mongo) or tables (Postgres)
// for every registered table, then seeds the admin account if configured.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	tables := datastore.DefaultTables()

	switch {
	case deps.MongoDatabase != nil:
		if err := indexes.EnsureAll(ctx, deps.MongoDatabase, tables, logger); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
		if err := validators.EnsureAll(ctx, deps.MongoDatabase, tables, logger); err != nil {
			return fmt.Errorf("ensure validators: %w", err)
		}
	case deps.Gorm != nil:
		if err := datastore.MigrateSQL(ctx, deps.Gorm, tables); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("postgres schema ensured", zap.Int("tables", len(tables.Names())))
	}

	return ensureAdmin(ctx, deps.Store, appCfg.AdminEmail, appCfg.AdminPassword, logger)
}

// ensureAdmin creates the configured admin account if it does not exist.
// An existing account is left alone, including its password.
func ensureAdmin(ctx context.Context, store datastore.Store, email, password string, logger *zap.Logger) error {
	if email == "" {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	created, err := userstore.New(store).EnsureAdmin(ctx, email, "", hash)
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	if created {
		logger.Info("admin account created", zap.String("email", email))
	}
	return nil
}

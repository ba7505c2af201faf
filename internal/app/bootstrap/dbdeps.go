// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// DBDeps holds the storage clients opened in ConnectDB. Exactly one of the
// Mongo or Gorm pairs is set, matching AppConfig.Datastore.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Gorm *gorm.DB

	// Redis is nil when no redis_addr is configured.
	Redis *redis.Client

	// Store is the raw datastore over whichever engine is connected.
	Store datastore.Store
}

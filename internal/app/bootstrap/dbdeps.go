// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/crewfund/crew/internal/app/system/blob"
	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/app/system/docstore/mongostore"
	"github.com/crewfund/crew/internal/app/system/events"
	"github.com/redis/go-redis/v9"
)

const (
	backendMongo  = "mongo"
	backendMemory = "memory"
)

// DBDeps holds the store and the other back-end clients for the app.
type DBDeps struct {
	Store   docstore.Store
	Backend string
	// Mongo is set on the mongo backend only.
	Mongo *mongostore.Store

	Blobs     blob.Store
	Publisher events.Publisher
	// Redis is nil when login throttling stays in process.
	Redis redis.UniversalClient

	// Background is filled by Startup and torn down by Shutdown.
	Background *Background
}

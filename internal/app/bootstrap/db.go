// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/crewfund/crew/internal/app/system/blob"
	"github.com/crewfund/crew/internal/app/system/docstore/memstore"
	"github.com/crewfund/crew/internal/app/system/docstore/mongostore"
	"github.com/crewfund/crew/internal/app/system/events"
	"github.com/crewfund/crew/internal/app/system/indexes"
	"github.com/crewfund/crew/internal/app/system/timeouts"
	"github.com/crewfund/crew/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ConnectDB opens the document store and the other back ends named in the
// config. Anything opened before a failure is closed again.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (deps DBDeps, err error) {
	deps.Backend = appCfg.StoreBackend
	deps.Background = &Background{}
	defer func() {
		if err != nil {
			closeDeps(context.Background(), deps, logger)
		}
	}()

	switch appCfg.StoreBackend {
	case backendMongo:
		openCtx, cancel := context.WithTimeout(ctx, timeouts.Long())
		defer cancel()
		ms, err := mongostore.Open(openCtx, appCfg.MongoURI, appCfg.MongoDatabase, appCfg.MongoMaxPoolSize, logger)
		if err != nil {
			logger.Error("MongoDB connect failed", zap.Error(err))
			return deps, err
		}
		deps.Mongo = ms
		deps.Store = ms
	default:
		logger.Warn("using in-memory document store; data is lost on exit")
		deps.Store = memstore.New()
	}

	switch appCfg.StorageType {
	case "s3":
		s3, err := blob.NewS3(ctx, blob.S3Config{
			Region: appCfg.StorageS3Region,
			Bucket: appCfg.StorageS3Bucket,
			Prefix: appCfg.StorageS3Prefix,
			URLTTL: appCfg.StorageURLTTL,
		})
		if err != nil {
			return deps, fmt.Errorf("s3 storage: %w", err)
		}
		deps.Blobs = s3
		logger.Info("blob storage: s3",
			zap.String("bucket", appCfg.StorageS3Bucket),
			zap.String("region", appCfg.StorageS3Region))
	default:
		local, err := blob.NewLocal(appCfg.StorageLocalPath, appCfg.StorageLocalURL)
		if err != nil {
			return deps, fmt.Errorf("local storage: %w", err)
		}
		deps.Blobs = local
		logger.Info("blob storage: local", zap.String("path", appCfg.StorageLocalPath))
	}

	if appCfg.AMQPURL != "" {
		pub, err := events.DialAMQP(appCfg.AMQPURL, appCfg.AMQPExchange, logger)
		if err != nil {
			return deps, fmt.Errorf("amqp: %w", err)
		}
		deps.Publisher = pub
	} else {
		deps.Publisher = events.LogPublisher{Log: logger}
	}

	if appCfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: appCfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
		defer cancel()
		if err := rc.Ping(pingCtx).Err(); err != nil {
			_ = rc.Close()
			return deps, fmt.Errorf("redis: %w", err)
		}
		deps.Redis = rc
	}

	return deps, nil
}

// EnsureSchema creates indexes and collection validators. The in-memory
// store has neither.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Mongo == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Batch())
	defer cancel()

	db := deps.Mongo.Database()
	if err := validators.EnsureAll(ctx, db); err != nil {
		logger.Error("ensure validators failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	logger.Info("schema ensured", zap.String("database", appCfg.MongoDatabase))
	return nil
}

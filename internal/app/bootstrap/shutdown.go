// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work first, then closes the back ends it used.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if bg := deps.Background; bg != nil {
		if bg.Relay != nil {
			bg.Relay.Stop()
		}
		if bg.Scheduler != nil {
			if err := bg.Scheduler.Stop(ctx); err != nil {
				logger.Warn("scheduler did not stop cleanly", zap.Error(err))
			}
		}
	}
	return closeDeps(ctx, deps, logger)
}

func closeDeps(ctx context.Context, deps DBDeps, logger *zap.Logger) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if deps.Publisher != nil {
		if err := deps.Publisher.Close(); err != nil {
			logger.Warn("event publisher close failed", zap.Error(err))
			keep(err)
		}
	}
	if deps.Redis != nil {
		if err := deps.Redis.Close(); err != nil {
			logger.Warn("redis close failed", zap.Error(err))
			keep(err)
		}
	}
	if deps.Store != nil {
		logger.Info("closing document store", zap.String("backend", deps.Backend))
		if err := deps.Store.Close(ctx); err != nil {
			logger.Error("document store close failed", zap.Error(err))
			keep(err)
		}
	}
	return firstErr
}

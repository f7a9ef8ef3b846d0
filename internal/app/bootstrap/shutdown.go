// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown cleanly tears down DB connections and other resources.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if refreshWorker != nil {
		refreshWorker.Stop()
	}
	if appHub != nil {
		logger.Info("closing broadcast hub")
		appHub.Close()
	}
	if deps.CompHubMongoClient != nil {
		logger.Info("disconnecting CompHub MongoDB client")
		if err := deps.CompHubMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}

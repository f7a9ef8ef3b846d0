// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/calebdock/comphub/internal/app/hub"
	"github.com/calebdock/comphub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// appHub is the process-wide broadcast hub. BuildHandler sets it;
// Shutdown closes it. The refresh worker follows the same lifecycle.
var (
	appHub        *hub.Hub
	refreshWorker *workers.LeaderboardRefresh
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It is the
// place to warm caches or perform any app-wide setup that depends on config
// and backends.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	return nil
}

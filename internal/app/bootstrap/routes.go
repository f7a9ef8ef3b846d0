// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	"github.com/calebdock/comphub/internal/app/coordinator"
	announcementsfeature "github.com/calebdock/comphub/internal/app/features/announcements"
	eventsfeature "github.com/calebdock/comphub/internal/app/features/events"
	healthfeature "github.com/calebdock/comphub/internal/app/features/health"
	heartbeatfeature "github.com/calebdock/comphub/internal/app/features/heartbeat"
	leaderboardfeature "github.com/calebdock/comphub/internal/app/features/leaderboard"
	registrationsfeature "github.com/calebdock/comphub/internal/app/features/registrations"
	submissionsfeature "github.com/calebdock/comphub/internal/app/features/submissions"
	teamsfeature "github.com/calebdock/comphub/internal/app/features/teams"
	usersfeature "github.com/calebdock/comphub/internal/app/features/users"
	wsfeature "github.com/calebdock/comphub/internal/app/features/ws"
	"github.com/calebdock/comphub/internal/app/hub"
	"github.com/calebdock/comphub/internal/app/ranking"
	badgestore "github.com/calebdock/comphub/internal/app/store/badges"
	evaluationstore "github.com/calebdock/comphub/internal/app/store/evaluations"
	eventstore "github.com/calebdock/comphub/internal/app/store/events"
	registrationstore "github.com/calebdock/comphub/internal/app/store/registrations"
	submissionstore "github.com/calebdock/comphub/internal/app/store/submissions"
	memberstore "github.com/calebdock/comphub/internal/app/store/teammembers"
	teamstore "github.com/calebdock/comphub/internal/app/store/teams"
	userstore "github.com/calebdock/comphub/internal/app/store/users"
	"github.com/calebdock/comphub/internal/app/system/ratelimit"
	"github.com/calebdock/comphub/internal/app/system/retry"
	"github.com/calebdock/comphub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point there is access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// CompHub wires the stores, the broadcast hub, the ranking engine, and
// the registration coordinator, then mounts a feature router per API
// area.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.CompHubMongoDatabase

	users := userstore.New(db)
	events := eventstore.New(db)
	registrations := registrationstore.New(db)
	teams := teamstore.New(db)
	members := memberstore.New(db)
	submissions := submissionstore.New(db)
	evaluations := evaluationstore.New(db)
	badges := badgestore.New(db)

	appHub = hub.New(appCfg.HubSendBuffer, logger)

	engine := ranking.New(users, badges, appHub, int64(appCfg.LeaderboardTopK), logger)

	retryPolicy := retry.Policy{
		Attempts: appCfg.StoreRetryAttempts,
		Backoff:  appCfg.StoreRetryBackoff,
	}
	coord := coordinator.New(events, registrations, teams, members, submissions, evaluations, engine, appHub, retryPolicy, logger)

	refreshWorker = workers.NewLeaderboardRefresh(engine, logger, time.Minute)
	refreshWorker.Start()

	regLimiter := ratelimit.NewRegistrationLimiterWithConfig(
		appCfg.RegistrationIPLimit, time.Minute,
		appCfg.RegistrationUserLimit, time.Minute,
	)

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.CompHubMongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Liveness pings from clients
	heartbeatHandler := heartbeatfeature.NewHandler(users, logger)
	r.Mount("/api/heartbeat", heartbeatfeature.Routes(heartbeatHandler))

	// Accounts and badges
	usersHandler := usersfeature.NewHandler(users, badges, engine, logger)
	r.Mount("/api/users", usersfeature.Routes(usersHandler))

	// Events and registrations share the /api/events prefix
	registrationsHandler := registrationsfeature.NewHandler(coord, registrations, regLimiter, logger)
	eventsHandler := eventsfeature.NewHandler(coord, events, logger)
	r.Mount("/api/events", eventsfeature.Routes(eventsHandler, registrationsHandler))

	// Teams
	teamsHandler := teamsfeature.NewHandler(coord, teams, members, logger)
	r.Mount("/api/teams", teamsfeature.Routes(teamsHandler))

	// Submission and evaluation workflow
	submissionsHandler := submissionsfeature.NewHandler(coord, submissions, logger)
	r.Mount("/api/submissions", submissionsfeature.Routes(submissionsHandler))

	// Announcements broadcast to connected clients
	announcementsHandler := announcementsfeature.NewHandler(appHub, logger)
	r.Mount("/api/announcements", announcementsfeature.Routes(announcementsHandler))

	// Leaderboard reads
	leaderboardHandler := leaderboardfeature.NewHandler(engine, logger)
	r.Mount("/leaderboard", leaderboardfeature.Routes(leaderboardHandler))

	// Real-time event stream
	wsHandler := wsfeature.NewHandler(appHub, logger)
	r.Mount("/ws", wsfeature.Routes(wsHandler))

	return r, nil
}

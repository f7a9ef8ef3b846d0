// internal/app/system/workers/leaderboardrefresh.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/calebdock/comphub/internal/app/ranking"
	"go.uber.org/zap"
)

// LeaderboardRefresh is a background worker that periodically re-reads
// the watched top-of-leaderboard window.
type LeaderboardRefresh struct {
	engine   *ranking.Engine
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewLeaderboardRefresh creates a new leaderboard refresh worker.
func NewLeaderboardRefresh(engine *ranking.Engine, logger *zap.Logger, interval time.Duration) *LeaderboardRefresh {
	return &LeaderboardRefresh{
		engine:   engine,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background refresh loop.
func (w *LeaderboardRefresh) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("leaderboard refresh worker started",
		zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *LeaderboardRefresh) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("leaderboard refresh worker stopped")
}

func (w *LeaderboardRefresh) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.refresh()
		}
	}
}

func (w *LeaderboardRefresh) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	changed, err := w.engine.RefreshWindow(ctx)
	if err != nil {
		w.log.Error("leaderboard window refresh failed", zap.Error(err))
		return
	}
	if changed {
		w.log.Info("leaderboard window changed outside the engine")
	}
}

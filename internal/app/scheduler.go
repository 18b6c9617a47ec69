package app

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/interfaces"
)

// StartScheduler launches the background refresh goroutines configured
// under [scheduler]: an optional snapshot warm fetch at startup and a
// periodic market screen. Returns immediately; Close stops both.
func (a *App) StartScheduler() {
	ctx, cancel := context.WithCancel(context.Background())
	a.schedulerCancel = cancel

	if a.Config.Scheduler.WarmSnapshot {
		safeGo(a.Logger, "snapshot-warm", func() {
			warmSnapshot(ctx, a.QuoteService, a.Logger)
		})
	}

	if interval := a.Config.Scheduler.GetScreenInterval(); interval > 0 {
		a.Logger.Info().Dur("interval", interval).Msg("Screen refresher enabled")
		safeGo(a.Logger, "screen-refresh", func() {
			runScreenRefresher(ctx, a.MarketService, interval, a.Logger)
		})
	}
}

// safeGo runs fn on a new goroutine with panic recovery, so a background
// failure cannot take down the process.
func safeGo(logger *common.Logger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Background goroutine panicked")
			}
		}()
		fn()
	}()
}

// warmSnapshot fetches one market snapshot so the first screen of the day
// starts from a hot cache.
func warmSnapshot(ctx context.Context, quotes interfaces.QuoteService, logger *common.Logger) {
	start := time.Now()
	snapshot, err := quotes.FetchMarketSnapshot(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Snapshot warm fetch failed")
		return
	}
	logger.Info().
		Int("rows", len(snapshot.Rows)).
		Str("source", snapshot.Source).
		Dur("elapsed", time.Since(start)).
		Msg("Snapshot warm fetch complete")
}

// runScreenRefresher re-runs the market screen on a fixed interval. Ticks
// that land while the previous outcome is still within its TTL are skipped.
func runScreenRefresher(ctx context.Context, market interfaces.MarketService, interval time.Duration, logger *common.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Screen refresher stopped")
			return
		case <-ticker.C:
			if _, ok := market.CachedRecommendations(); ok {
				logger.Debug().Msg("Screen refresh skipped, previous outcome still fresh")
				continue
			}
			if _, err := market.ScreenMarketStocks(ctx); err != nil {
				logger.Warn().Err(err).Msg("Scheduled market screen failed")
			}
		}
	}
}

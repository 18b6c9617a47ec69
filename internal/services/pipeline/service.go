// Package pipeline drives per-symbol analysis batches through a bounded
// worker pool with per-task isolation and optional pacing.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/interfaces"
	"github.com/dawnsea/tidescan/internal/models"
	"github.com/dawnsea/tidescan/internal/signals"
)

// DefaultMaxWorkers bounds the pool when the configured size is unset.
// Kept low on purpose: upstream endpoints throttle aggressive callers.
const DefaultMaxWorkers = 3

// DefaultPrefetchThreshold is the batch size from which one shared
// snapshot prefetch beats per-symbol quote lookups.
const DefaultPrefetchThreshold = 5

const defaultHistoryDays = 60

// batchState names the phases of one Run call for logging.
type batchState string

const (
	stateIdle        batchState = "idle"
	statePrefetching batchState = "prefetching"
	stateDispatching batchState = "dispatching"
	stateCollecting  batchState = "collecting"
	stateDone        batchState = "done"
)

// Service orchestrates analysis batches: quote prefetch, bounded
// dispatch, collection in completion order, and the end-of-batch
// notification.
type Service struct {
	storage  interfaces.StorageManager
	history  interfaces.HistoryManager
	market   interfaces.MarketService
	reports  interfaces.ReportService
	analyzer interfaces.Analyzer
	notifier interfaces.Notifier
	computer *signals.Computer
	logger   *common.Logger

	maxWorkers        int
	prefetchThreshold int
	analysisDelay     time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates the pipeline service. Analyzer and notifier are
// optional and wired through their setters when configured.
func NewService(
	storage interfaces.StorageManager,
	history interfaces.HistoryManager,
	market interfaces.MarketService,
	reports interfaces.ReportService,
	config *common.PipelineConfig,
	logger *common.Logger,
) *Service {
	workers := config.MaxWorkers
	if workers <= 0 {
		workers = DefaultMaxWorkers
	}
	threshold := config.PrefetchThreshold
	if threshold <= 0 {
		threshold = DefaultPrefetchThreshold
	}
	return &Service{
		storage:           storage,
		history:           history,
		market:            market,
		reports:           reports,
		computer:          signals.NewComputer(logger),
		logger:            logger,
		maxWorkers:        workers,
		prefetchThreshold: threshold,
		analysisDelay:     config.GetAnalysisDelay(),
		now:               time.Now,
		sleep:             sleepContext,
	}
}

// SetAnalyzer wires the optional report analyzer. Without one the
// pipeline produces data-only results.
func (s *Service) SetAnalyzer(analyzer interfaces.Analyzer) {
	s.analyzer = analyzer
}

// SetNotifier wires the optional outbound notifier.
func (s *Service) SetNotifier(notifier interfaces.Notifier) {
	s.notifier = notifier
}

// SetClock overrides the time source for testing.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetSleep overrides the inter-task delay sleeper for testing.
func (s *Service) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	s.sleep = sleep
}

// Run analyzes the given symbols under the bounded pool and returns
// results in completion order. Per-symbol failures are logged and
// dropped; the batch always runs every task to a terminal state.
func (s *Service) Run(ctx context.Context, symbols []string, opts interfaces.RunOptions) ([]models.AnalysisResult, error) {
	start := time.Now()
	state := stateIdle
	advance := func(next batchState) {
		s.logger.Debug().Str("from", string(state)).Str("to", string(next)).Msg("Pipeline state change")
		state = next
	}

	if len(symbols) == 0 {
		s.logger.Warn().Msg("Pipeline run requested with no symbols")
		return []models.AnalysisResult{}, nil
	}

	s.logger.Info().
		Int("symbols", len(symbols)).
		Int("workers", s.maxWorkers).
		Bool("dry_run", opts.DryRun).
		Msg("Pipeline run starting")

	// One shared snapshot pull serves the whole batch; small batches
	// query per symbol instead.
	if len(symbols) >= s.prefetchThreshold {
		advance(statePrefetching)
		covered, err := s.history.PrefetchRealtimeQuotes(ctx, symbols)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Quote prefetch failed, tasks will fetch individually")
		} else {
			s.logger.Info().
				Int("covered", covered).
				Int("requested", len(symbols)).
				Msg("Prefetched realtime quotes for batch")
		}
	}

	advance(stateDispatching)
	outcomes := make(chan *models.AnalysisResult, len(symbols))
	sem := make(chan struct{}, s.maxWorkers)
	for _, symbol := range symbols {
		task := models.AnalysisTask{Symbol: symbol, ForceRefresh: opts.ForceRefresh}
		go func(task models.AnalysisTask) {
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes <- s.runTask(ctx, task, opts)
		}(task)
	}

	advance(stateCollecting)
	results := make([]models.AnalysisResult, 0, len(symbols))
	delay := s.analysisDelay
	for i := 0; i < len(symbols); i++ {
		if outcome := <-outcomes; outcome != nil {
			results = append(results, *outcome)
		}
		if delay > 0 && i < len(symbols)-1 {
			if err := s.sleep(ctx, delay); err != nil {
				// Canceled mid-batch: keep draining without pacing.
				delay = 0
			}
		}
	}

	advance(stateDone)
	s.logger.Info().
		Int("succeeded", len(results)).
		Int("failed", len(symbols)-len(results)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Pipeline run finished")

	if opts.SendNotification && !opts.DryRun && len(results) > 0 {
		s.notify(ctx, results)
	}

	return results, nil
}

// notify renders the batch dashboard, archives it under the reports
// area, and pushes it to the configured channel.
func (s *Service) notify(ctx context.Context, results []models.AnalysisResult) {
	if s.notifier == nil {
		s.logger.Debug().Msg("Notifier not configured, skipping batch notification")
		return
	}

	var recs *models.MarketRecommendations
	if s.market != nil {
		var err error
		recs, err = s.market.ScreenMarketStocks(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Market screen for notification failed")
		} else {
			s.archiveCharts(ctx, recs.Buy)
		}
	}

	now := s.now()
	text := s.reports.RenderDashboard(results, recs, now)

	key := fmt.Sprintf("report-%s.md", now.Format("20060102-150405"))
	if path, err := s.storage.WriteReportFile(key, []byte(text)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to archive batch report")
	} else {
		s.logger.Debug().Str("path", path).Msg("Archived batch report")
	}

	if err := s.notifier.Send(ctx, text); err != nil {
		s.logger.Warn().Err(err).Msg("Batch notification failed")
		return
	}
	s.logger.Info().Int("results", len(results)).Msg("Batch notification sent")
}

// archiveCharts renders and stores a price chart per buy pick. The bar
// series are already in the provider manager's cache after the screen,
// so this rarely touches the network.
func (s *Service) archiveCharts(ctx context.Context, picks []models.Recommendation) {
	for _, pick := range picks {
		bars, _, err := s.history.GetDailyData(ctx, pick.Code, defaultHistoryDays)
		if err != nil {
			s.logger.Debug().Str("symbol", pick.Code).Err(err).Msg("No bars for pick chart")
			continue
		}
		png, err := s.reports.RenderChart(pick.Code, bars)
		if err != nil {
			s.logger.Warn().Str("symbol", pick.Code).Err(err).Msg("Chart render failed")
			continue
		}
		key := fmt.Sprintf("chart-%s.png", pick.Code)
		if _, err := s.storage.WriteReportFile(key, png); err != nil {
			s.logger.Warn().Str("symbol", pick.Code).Err(err).Msg("Failed to archive pick chart")
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ interfaces.PipelineService = (*Service)(nil)

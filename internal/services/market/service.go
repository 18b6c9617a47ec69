// Package market runs the two-stage full-market screen: a fast funnel over
// one quote snapshot, then indicator scoring of the surviving pool, ending
// in the buy and watch recommendation buckets.
package market

import (
	"context"
	"sync"
	"time"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/interfaces"
	"github.com/dawnsea/tidescan/internal/models"
	"github.com/dawnsea/tidescan/internal/signals"
)

const (
	defaultHistoryDays = 60
	defaultConcurrency = 3
)

// Service implements interfaces.MarketService.
type Service struct {
	quotes   interfaces.QuoteService
	screens  interfaces.ScreenStore
	computer *signals.Computer
	funnel   *Funnel
	cache    *common.Slot[*models.MarketRecommendations]
	logger   *common.Logger

	historyDays int
	concurrency int
}

// NewService creates a market screening service.
func NewService(
	quotes interfaces.QuoteService,
	screens interfaces.ScreenStore,
	config *common.MarketConfig,
	logger *common.Logger,
) *Service {
	historyDays := config.HistoryDays
	if historyDays <= 0 {
		historyDays = defaultHistoryDays
	}
	concurrency := config.ScreenConcurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Service{
		quotes:      quotes,
		screens:     screens,
		computer:    signals.NewComputer(logger),
		funnel:      NewFunnel(config.MaxCandidates),
		cache:       common.NewSlot[*models.MarketRecommendations](config.GetSnapshotTTL()),
		logger:      logger,
		historyDays: historyDays,
		concurrency: concurrency,
	}
}

// SetCacheClock overrides the recommendation cache clock in tests.
func (s *Service) SetCacheClock(now func() time.Time) {
	s.cache.SetClock(now)
}

// ScreenMarketStocks produces the buy and watch buckets. A screen within
// the cache TTL returns the previous outcome. When no snapshot source is
// usable the screen degrades to empty buckets instead of failing.
func (s *Service) ScreenMarketStocks(ctx context.Context) (*models.MarketRecommendations, error) {
	if recs, ok := s.cache.Get(); ok {
		s.logger.Debug().Msg("Market screen served from cache")
		return recs, nil
	}

	started := time.Now()

	snapshot, err := s.quotes.FetchMarketSnapshot(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Market screen degraded, no snapshot source usable")
		return emptyRecommendations(time.Now()), nil
	}

	candidates := s.funnel.Select(snapshot)
	s.logger.Info().
		Int("universe", len(snapshot.Rows)).
		Int("candidates", len(candidates)).
		Str("source", snapshot.Source).
		Msg("Candidate funnel complete")

	scored := s.scoreCandidates(ctx, candidates)
	if len(scored) < len(candidates) {
		s.logger.Info().Int("scored", len(scored)).Int("skipped", len(candidates)-len(scored)).Msg("Indicator stage complete")
	}

	recs := selectRecommendations(scored, snapshot.Source, time.Now())
	s.cache.Set(recs)
	s.saveScreenRecord(ctx, recs, len(candidates), len(scored), time.Since(started))

	s.logger.Info().
		Int("buy", len(recs.Buy)).
		Int("watch", len(recs.Watch)).
		Int64("duration_ms", time.Since(started).Milliseconds()).
		Msg("Market screen complete")
	return recs, nil
}

// CachedRecommendations returns the last screen outcome when still within
// its TTL.
func (s *Service) CachedRecommendations() (*models.MarketRecommendations, bool) {
	return s.cache.Get()
}

// scoreCandidates fetches each candidate's history and scores it under a
// bounded semaphore. Candidates whose history cannot be served or is too
// short are skipped, never zero-scored.
func (s *Service) scoreCandidates(ctx context.Context, candidates []models.QuoteRow) []models.ScoredCandidate {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		scored = make([]models.ScoredCandidate, 0, len(candidates))
	)
	sem := make(chan struct{}, s.concurrency)

	for _, quote := range candidates {
		wg.Add(1)
		go func(quote models.QuoteRow) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			bars, err := s.quotes.FetchDailyHistory(ctx, quote.Code, s.historyDays)
			if err != nil {
				s.logger.Debug().Str("symbol", quote.Code).Err(err).Msg("Candidate skipped, history unavailable")
				return
			}
			indicators := s.computer.Compute(bars)
			if indicators == nil {
				s.logger.Debug().Str("symbol", quote.Code).Msg("Candidate skipped, series too short")
				return
			}

			candidate := models.ScoredCandidate{
				Quote:      quote,
				Indicators: indicators,
				Score:      score(quote, indicators),
			}
			mu.Lock()
			scored = append(scored, candidate)
			mu.Unlock()
		}(quote)
	}
	wg.Wait()
	return scored
}

func (s *Service) saveScreenRecord(ctx context.Context, recs *models.MarketRecommendations, candidates, scored int, elapsed time.Duration) {
	record := &models.ScreenRecord{
		Result:      recs,
		Candidates:  candidates,
		Scored:      scored,
		DurationMS:  elapsed.Milliseconds(),
		GeneratedAt: recs.GeneratedAt,
	}
	if err := s.screens.SaveScreen(ctx, record); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist screen record")
	}
}

func emptyRecommendations(generatedAt time.Time) *models.MarketRecommendations {
	return &models.MarketRecommendations{
		Buy:         []models.Recommendation{},
		Watch:       []models.Recommendation{},
		GeneratedAt: generatedAt,
	}
}

// Compile-time check
var _ interfaces.MarketService = (*Service)(nil)

// Package quote acquires full-market snapshots through an ordered provider
// chain and serves per-symbol history with validation on top of the history
// manager.
package quote

import (
	"context"
	"fmt"
	"time"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/interfaces"
	"github.com/dawnsea/tidescan/internal/models"
)

const (
	// DefaultMaxAttempts is how often a single provider is tried before
	// the chain moves on.
	DefaultMaxAttempts = 3

	// DefaultBackoffStep is the linear backoff unit between attempts:
	// the wait before attempt n is n * step.
	DefaultBackoffStep = 5 * time.Second

	// MinHistoryBars is the minimum series length the indicator stage
	// can work with.
	MinHistoryBars = 20
)

// Service implements interfaces.QuoteService.
type Service struct {
	providers   []interfaces.SnapshotProvider
	history     interfaces.HistoryManager
	instruments interfaces.InstrumentStore
	cache       *SnapshotCache
	logger      *common.Logger

	maxAttempts int
	backoffStep time.Duration

	// sleep is injectable so retry tests run without real delays
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates a quote service over the given provider chain. The
// chain order is the failover order.
func NewService(
	providers []interfaces.SnapshotProvider,
	history interfaces.HistoryManager,
	instruments interfaces.InstrumentStore,
	cache *SnapshotCache,
	logger *common.Logger,
) *Service {
	return &Service{
		providers:   providers,
		history:     history,
		instruments: instruments,
		cache:       cache,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		backoffStep: DefaultBackoffStep,
		sleep:       sleepContext,
	}
}

// SetSleep overrides the backoff sleeper. Tests use this to observe retry
// timing without waiting it out.
func (s *Service) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	s.sleep = sleep
}

// SetBackoff overrides the retry schedule.
func (s *Service) SetBackoff(maxAttempts int, step time.Duration) {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	s.backoffStep = step
}

// FetchMarketSnapshot returns the cached snapshot when fresh, otherwise
// walks the provider chain until one source delivers. A successful fetch is
// normalized, cached, and folded into the instrument index.
func (s *Service) FetchMarketSnapshot(ctx context.Context) (*models.QuoteSnapshot, error) {
	if snapshot, ok := s.cache.Get(); ok {
		s.logger.Debug().Str("source", snapshot.Source).Msg("Market snapshot served from cache")
		return snapshot, nil
	}

	for _, provider := range s.providers {
		snapshot, err := s.fetchWithRetry(ctx, provider)
		if err != nil {
			s.logger.Warn().Str("source", provider.Name()).Err(err).Msg("Snapshot source exhausted, moving to next")
			continue
		}

		normalizeRows(snapshot.Rows)
		s.cache.Set(snapshot)
		s.refreshInstrumentIndex(ctx, snapshot)

		s.logger.Info().
			Str("source", snapshot.Source).
			Int("rows", len(snapshot.Rows)).
			Bool("volume_ratio", snapshot.HasVolumeRatio).
			Msg("Market snapshot fetched")
		return snapshot, nil
	}

	return nil, fmt.Errorf("market snapshot: %w", models.ErrSourceExhausted)
}

// FetchDailyHistory returns at least MinHistoryBars ascending bars for a
// symbol. Source rotation happens inside the history manager; this layer
// only validates the outcome.
func (s *Service) FetchDailyHistory(ctx context.Context, symbol string, days int) ([]models.DailyBar, error) {
	bars, source, err := s.history.GetDailyData(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("daily history for %s: %w", symbol, models.ErrNoData)
	}
	if len(bars) < MinHistoryBars {
		return nil, fmt.Errorf("daily history for %s has %d bars: %w", symbol, len(bars), models.ErrInsufficientHistory)
	}

	s.logger.Debug().Str("symbol", symbol).Str("source", source).Int("bars", len(bars)).Msg("Daily history fetched")
	return bars, nil
}

// CachedSnapshot returns the snapshot currently in the cache slot without
// triggering a fetch.
func (s *Service) CachedSnapshot() (*models.QuoteSnapshot, bool) {
	return s.cache.Get()
}

func (s *Service) fetchWithRetry(ctx context.Context, provider interfaces.SnapshotProvider) (*models.QuoteSnapshot, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, time.Duration(attempt)*s.backoffStep); err != nil {
				return nil, err
			}
		}

		snapshot, err := provider.FetchSnapshot(ctx)
		if err != nil {
			lastErr = err
			s.logger.Warn().Str("source", provider.Name()).Int("attempt", attempt+1).Err(err).Msg("Snapshot fetch attempt failed")
			continue
		}
		if len(snapshot.Rows) == 0 {
			lastErr = fmt.Errorf("%s snapshot empty: %w", provider.Name(), models.ErrNoData)
			continue
		}
		return snapshot, nil
	}
	return nil, lastErr
}

func (s *Service) refreshInstrumentIndex(ctx context.Context, snapshot *models.QuoteSnapshot) {
	entries := make([]models.InstrumentEntry, 0, len(snapshot.Rows))
	for _, row := range snapshot.Rows {
		entries = append(entries, models.InstrumentEntry{
			Code:     row.Code,
			Name:     row.Name,
			LastSeen: snapshot.FetchedAt,
		})
	}
	if err := s.instruments.UpsertAll(ctx, entries); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to refresh instrument index")
	}
}

// normalizeRows applies canonical defaults before a snapshot is published.
// A missing volume ratio becomes the neutral 1.0; the snapshot-level
// HasVolumeRatio flag keeps recording whether the source carried a signal.
func normalizeRows(rows []models.QuoteRow) {
	for i := range rows {
		if rows[i].VolumeRatio <= 0 {
			rows[i].VolumeRatio = 1.0
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

// Compile-time check
var _ interfaces.QuoteService = (*Service)(nil)

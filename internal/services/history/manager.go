// Package history rotates per-symbol market data sources behind one manager.
// Callers ask for bars or quotes and see only the served data plus a source
// name; which provider answered is this package's concern alone.
package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/interfaces"
	"github.com/dawnsea/tidescan/internal/models"
)

const (
	barCacheSize   = 128
	quoteCacheSize = 256
)

// QuoteSource pairs a realtime quote provider with a loggable name.
type QuoteSource struct {
	Name     string
	Provider interfaces.QuoteProvider
}

type cachedSeries struct {
	bars      []models.DailyBar
	source    string
	fetchedAt time.Time // entries from prior trading days are stale
}

// Manager implements interfaces.HistoryManager over an ordered provider
// rotation. Each provider gets a single attempt per request; failure moves
// straight to the next source. Served series are cached for the rest of the
// trading day and written through to the bar store.
type Manager struct {
	store  interfaces.BarStore
	bars   []interfaces.HistoryProvider
	quotes []QuoteSource

	barCache   *lru.Cache[string, cachedSeries]
	quoteCache *expirable.LRU[string, models.QuoteRow]

	logger *common.Logger

	// now is injectable for tests
	now func() time.Time
}

// NewManager creates a history manager with the given rotation orders.
func NewManager(
	store interfaces.BarStore,
	barProviders []interfaces.HistoryProvider,
	quoteSources []QuoteSource,
	logger *common.Logger,
) *Manager {
	// New only fails for a non-positive size
	barCache, _ := lru.New[string, cachedSeries](barCacheSize)
	return &Manager{
		store:      store,
		bars:       barProviders,
		quotes:     quoteSources,
		barCache:   barCache,
		quoteCache: expirable.NewLRU[string, models.QuoteRow](quoteCacheSize, nil, common.FreshnessRealtimeQuote),
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock overrides the time source. Tests use this to control the
// same-day cache window.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// GetDailyData returns up to days ascending bars for a symbol and the name
// of the provider that served them. Fetched series are deduplicated by
// date, persisted, and cached for the rest of the day.
func (m *Manager) GetDailyData(ctx context.Context, symbol string, days int) ([]models.DailyBar, string, error) {
	key := fmt.Sprintf("%s:%d", symbol, days)

	if entry, ok := m.barCache.Get(key); ok {
		if common.SameTradingDay(entry.fetchedAt, m.now(), nil) {
			m.logger.Debug().Str("symbol", symbol).Str("source", entry.source).Msg("Daily bars served from cache")
			return entry.bars, entry.source, nil
		}
		m.barCache.Remove(key)
	}

	for _, provider := range m.bars {
		bars, err := provider.FetchDailyBars(ctx, symbol, days)
		if err != nil {
			m.logger.Warn().Str("symbol", symbol).Str("source", provider.Name()).Err(err).Msg("Daily bar fetch failed, rotating source")
			continue
		}
		if len(bars) == 0 {
			m.logger.Warn().Str("symbol", symbol).Str("source", provider.Name()).Msg("Daily bar fetch returned nothing, rotating source")
			continue
		}

		bars = normalizeSeries(bars)

		if saved, err := m.store.SaveDailyBars(ctx, symbol, bars, provider.Name()); err != nil {
			m.logger.Warn().Str("symbol", symbol).Err(err).Msg("Failed to persist daily bars")
		} else if saved > 0 {
			m.logger.Debug().Str("symbol", symbol).Int("new_bars", saved).Str("source", provider.Name()).Msg("Daily bars persisted")
		}

		m.barCache.Add(key, cachedSeries{bars: bars, source: provider.Name(), fetchedAt: m.now()})
		return bars, provider.Name(), nil
	}

	return nil, "", fmt.Errorf("daily bars for %s: %w", symbol, models.ErrSourceExhausted)
}

// GetRealtimeQuote returns the live quote for one symbol, trying each quote
// source in rotation order. Recently fetched quotes are served from cache.
func (m *Manager) GetRealtimeQuote(ctx context.Context, symbol string) (*models.QuoteRow, error) {
	if row, ok := m.quoteCache.Get(symbol); ok {
		return &row, nil
	}
	return m.fetchQuote(ctx, symbol)
}

// PrefetchRealtimeQuotes warms the quote cache for a batch of symbols and
// returns the number covered. Per-symbol failures are skipped; only context
// cancellation aborts the batch.
func (m *Manager) PrefetchRealtimeQuotes(ctx context.Context, symbols []string) (int, error) {
	covered := 0
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return covered, ctx.Err()
		}
		if m.quoteCache.Contains(symbol) {
			covered++
			continue
		}
		if _, err := m.fetchQuote(ctx, symbol); err != nil {
			continue
		}
		covered++
	}
	m.logger.Debug().Int("covered", covered).Int("requested", len(symbols)).Msg("Realtime quotes prefetched")
	return covered, nil
}

func (m *Manager) fetchQuote(ctx context.Context, symbol string) (*models.QuoteRow, error) {
	for _, source := range m.quotes {
		row, err := source.Provider.FetchQuote(ctx, symbol)
		if err != nil {
			m.logger.Debug().Str("symbol", symbol).Str("source", source.Name).Err(err).Msg("Realtime quote fetch failed, rotating source")
			continue
		}
		if row == nil {
			continue
		}
		m.quoteCache.Add(symbol, *row)
		return row, nil
	}
	return nil, fmt.Errorf("realtime quote for %s: %w", symbol, models.ErrSourceExhausted)
}

// normalizeSeries sorts bars ascending and collapses repeated dates,
// keeping the later row for a duplicate.
func normalizeSeries(bars []models.DailyBar) []models.DailyBar {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})

	deduped := bars[:0]
	lastDay := ""
	for _, bar := range bars {
		day := bar.Date.Format("2006-01-02")
		if day == lastDay && len(deduped) > 0 {
			deduped[len(deduped)-1] = bar
			continue
		}
		deduped = append(deduped, bar)
		lastDay = day
	}
	return deduped
}

// Compile-time check
var _ interfaces.HistoryManager = (*Manager)(nil)

package interfaces

import (
	"context"
	"time"

	"github.com/dawnsea/tidescan/internal/models"
)

// QuoteService owns market snapshot acquisition: the provider failover
// chain, the single-slot snapshot cache, and per-symbol history access.
type QuoteService interface {
	// FetchMarketSnapshot returns the cached snapshot when fresh,
	// otherwise walks the provider chain. Fails with
	// models.ErrSourceExhausted when every provider fails.
	FetchMarketSnapshot(ctx context.Context) (*models.QuoteSnapshot, error)

	// FetchDailyHistory returns at least 20 ascending daily bars.
	// Fails with models.ErrNoData on an empty fetch and
	// models.ErrInsufficientHistory below the minimum.
	FetchDailyHistory(ctx context.Context, symbol string, days int) ([]models.DailyBar, error)

	// CachedSnapshot returns the snapshot currently in the cache slot
	// without triggering a fetch.
	CachedSnapshot() (*models.QuoteSnapshot, bool)
}

// HistoryManager is the pluggable per-symbol data-provider manager. It
// performs its own source rotation; callers see only bars and a source name.
type HistoryManager interface {
	// GetDailyData returns up to days ascending bars and the name of
	// the provider that served them.
	GetDailyData(ctx context.Context, symbol string, days int) ([]models.DailyBar, string, error)

	// GetRealtimeQuote returns the live quote for one symbol. Fails
	// with models.ErrSourceExhausted when no source can serve it.
	GetRealtimeQuote(ctx context.Context, symbol string) (*models.QuoteRow, error)

	// PrefetchRealtimeQuotes warms quote data for a batch of symbols
	// ahead of individual analysis, returning the number covered.
	PrefetchRealtimeQuotes(ctx context.Context, symbols []string) (int, error)
}

// MarketService runs the market-wide screen.
type MarketService interface {
	// ScreenMarketStocks produces the buy/watch buckets. Idempotent
	// within the snapshot TTL window; degrades to empty buckets when
	// no data source is usable, never returns an error for that.
	ScreenMarketStocks(ctx context.Context) (*models.MarketRecommendations, error)

	// CachedRecommendations returns the last screen outcome when still
	// within its TTL.
	CachedRecommendations() (*models.MarketRecommendations, bool)
}

// PipelineService drives per-symbol analysis batches.
type PipelineService interface {
	// Run analyzes the given symbols under bounded concurrency and
	// returns results in completion order. Per-symbol failures are
	// logged and omitted; the batch itself never fails partway.
	Run(ctx context.Context, symbols []string, opts RunOptions) ([]models.AnalysisResult, error)
}

// RunOptions configures one pipeline batch.
type RunOptions struct {
	DryRun           bool // skip the analyzer, produce data-only results
	SendNotification bool // deliver the rendered report after the batch
	ForceRefresh     bool // refetch history even when today's bars are stored
}

// ReportService renders batch outcomes for delivery.
type ReportService interface {
	// RenderDashboard produces the deterministic report text for a
	// batch of results plus optional market recommendations.
	RenderDashboard(results []models.AnalysisResult, recs *models.MarketRecommendations, now time.Time) string

	// RenderChart draws a close/MA chart PNG for the symbol's bars.
	RenderChart(symbol string, bars []models.DailyBar) ([]byte, error)
}

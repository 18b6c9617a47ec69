// Package interfaces defines service contracts for Tidescan
package interfaces

import (
	"context"

	"github.com/dawnsea/tidescan/internal/models"
)

// SnapshotProvider fetches one full-market quote snapshot. Implementations
// normalize their native columns into the canonical QuoteRow schema; rows
// missing optional fields carry the documented defaults (volume ratio 1.0,
// 60-day change 0.0).
type SnapshotProvider interface {
	// Name identifies the provider in logs and chain configuration.
	Name() string

	// FetchSnapshot retrieves the full market in one logical call.
	FetchSnapshot(ctx context.Context) (*models.QuoteSnapshot, error)
}

// HistoryProvider fetches daily OHLCV bars for one symbol.
type HistoryProvider interface {
	// Name identifies the provider in logs and rotation order.
	Name() string

	// FetchDailyBars returns up to days bars, oldest first.
	FetchDailyBars(ctx context.Context, symbol string, days int) ([]models.DailyBar, error)
}

// QuoteProvider fetches realtime quotes for individual symbols.
type QuoteProvider interface {
	// FetchQuote returns the live quote row for one symbol.
	FetchQuote(ctx context.Context, symbol string) (*models.QuoteRow, error)
}

// Analyzer produces a natural-language analysis from prepared context.
// Opaque to the core: the core only supplies the context strings.
type Analyzer interface {
	Analyze(ctx context.Context, analysisContext string, newsContext string) (string, error)
}

// Notifier delivers a rendered report to an outbound channel.
type Notifier interface {
	Send(ctx context.Context, reportText string) error
}

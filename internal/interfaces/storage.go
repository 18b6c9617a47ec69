package interfaces

import (
	"context"
	"time"

	"github.com/dawnsea/tidescan/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	BarStore() BarStore
	AnalysisStore() AnalysisStore
	InstrumentStore() InstrumentStore
	ScreenStore() ScreenStore

	// ReportsPath returns the directory for rendered report files.
	ReportsPath() string

	// WriteReportFile writes a rendered artifact (report text, chart
	// PNG) under the reports directory atomically. The key is
	// sanitized for safe filenames.
	WriteReportFile(key string, data []byte) (string, error)

	// Lifecycle
	Close() error
}

// BarStore persists daily OHLCV bars.
type BarStore interface {
	// HasTodayData reports whether a bar for the given trading day is
	// already stored, letting the pipeline skip a refetch.
	HasTodayData(ctx context.Context, symbol string, day time.Time) (bool, error)

	// SaveDailyBars upserts bars by symbol+date and returns how many
	// were written.
	SaveDailyBars(ctx context.Context, symbol string, bars []models.DailyBar, source string) (int, error)

	// GetDailyBars returns up to days of the most recent stored bars,
	// oldest first.
	GetDailyBars(ctx context.Context, symbol string, days int) ([]models.DailyBar, error)
}

// AnalysisStore persists analysis history.
type AnalysisStore interface {
	// GetAnalysisContext returns the most recent record for a symbol,
	// or nil when none exists.
	GetAnalysisContext(ctx context.Context, symbol string) (*models.AnalysisRecord, error)

	// SaveAnalysisHistory persists one analysis record.
	SaveAnalysisHistory(ctx context.Context, record *models.AnalysisRecord) error

	// ListAnalysisHistory returns the most recent records for a
	// symbol, newest first.
	ListAnalysisHistory(ctx context.Context, symbol string, limit int) ([]*models.AnalysisRecord, error)
}

// InstrumentStore maintains the instrument directory refreshed from
// market snapshots. Batch quote providers read it as their universe.
type InstrumentStore interface {
	UpsertAll(ctx context.Context, entries []models.InstrumentEntry) error
	Get(ctx context.Context, code string) (*models.InstrumentEntry, error)
	ListCodes(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
}

// ScreenStore keeps recent market screen outcomes.
type ScreenStore interface {
	SaveScreen(ctx context.Context, record *models.ScreenRecord) error
	ListScreens(ctx context.Context, limit int) ([]*models.ScreenRecord, error)
}

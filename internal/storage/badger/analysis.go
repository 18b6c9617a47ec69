package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/models"
)

type analysisStorage struct {
	store  *Store
	logger *common.Logger
}

// NewAnalysisStorage creates a new AnalysisStore backed by BadgerHold.
func NewAnalysisStorage(store *Store, logger *common.Logger) *analysisStorage {
	return &analysisStorage{store: store, logger: logger}
}

func (s *analysisStorage) SaveAnalysisHistory(_ context.Context, record *models.AnalysisRecord) error {
	if record.Symbol == "" {
		return fmt.Errorf("analysis record requires a symbol")
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.AnalyzedAt.IsZero() {
		record.AnalyzedAt = time.Now()
	}

	if err := s.store.db.Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to save analysis record: %w", err)
	}
	s.logger.Debug().Str("symbol", record.Symbol).Str("id", record.ID).Msg("Analysis record saved")
	return nil
}

// GetAnalysisContext returns the most recent record for a symbol, nil when
// the symbol has never been analyzed.
func (s *analysisStorage) GetAnalysisContext(ctx context.Context, symbol string) (*models.AnalysisRecord, error) {
	records, err := s.ListAnalysisHistory(ctx, symbol, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (s *analysisStorage) ListAnalysisHistory(_ context.Context, symbol string, limit int) ([]*models.AnalysisRecord, error) {
	var records []models.AnalysisRecord
	if err := s.store.db.Find(&records, badgerhold.Where("Symbol").Eq(symbol)); err != nil {
		return nil, fmt.Errorf("failed to list analysis records for '%s': %w", symbol, err)
	}

	// Newest first
	sort.Slice(records, func(i, j int) bool {
		return records[i].AnalyzedAt.After(records[j].AnalyzedAt)
	})

	if limit <= 0 {
		limit = 20
	}
	if len(records) > limit {
		records = records[:limit]
	}

	result := make([]*models.AnalysisRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

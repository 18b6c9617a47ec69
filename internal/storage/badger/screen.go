package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/models"
)

const maxScreenRecords = 50

type screenStorage struct {
	store  *Store
	logger *common.Logger
}

// NewScreenStorage creates a new ScreenStore backed by BadgerHold.
func NewScreenStorage(store *Store, logger *common.Logger) *screenStorage {
	return &screenStorage{store: store, logger: logger}
}

func (s *screenStorage) SaveScreen(_ context.Context, record *models.ScreenRecord) error {
	if record.GeneratedAt.IsZero() {
		record.GeneratedAt = time.Now()
	}
	if record.ID == "" {
		record.ID = fmt.Sprintf("screen-%d", record.GeneratedAt.UnixNano())
	}

	if err := s.store.db.Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to save screen record: %w", err)
	}
	s.logger.Debug().Str("id", record.ID).Int("candidates", record.Candidates).Msg("Screen record saved")

	// Prune oldest records if over max limit
	s.pruneOldRecords()

	return nil
}

func (s *screenStorage) pruneOldRecords() {
	var records []models.ScreenRecord
	if err := s.store.db.Find(&records, nil); err != nil || len(records) <= maxScreenRecords {
		return
	}

	// Sort by GeneratedAt descending (newest first)
	sort.Slice(records, func(i, j int) bool {
		return records[i].GeneratedAt.After(records[j].GeneratedAt)
	})

	// Delete oldest records beyond the limit
	for _, old := range records[maxScreenRecords:] {
		s.store.db.Delete(old.ID, models.ScreenRecord{})
	}
	s.logger.Debug().Int("pruned", len(records)-maxScreenRecords).Msg("Pruned old screen records")
}

func (s *screenStorage) ListScreens(_ context.Context, limit int) ([]*models.ScreenRecord, error) {
	var records []models.ScreenRecord
	if err := s.store.db.Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to list screen records: %w", err)
	}

	// Sort by GeneratedAt descending (most recent first)
	sort.Slice(records, func(i, j int) bool {
		return records[i].GeneratedAt.After(records[j].GeneratedAt)
	})

	if limit <= 0 {
		limit = 20
	}
	if len(records) > limit {
		records = records[:limit]
	}

	result := make([]*models.ScreenRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

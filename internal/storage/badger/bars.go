package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/models"
)

type barStorage struct {
	store  *Store
	logger *common.Logger
}

// NewBarStorage creates a new BarStore backed by BadgerHold.
func NewBarStorage(store *Store, logger *common.Logger) *barStorage {
	return &barStorage{store: store, logger: logger}
}

func barKey(symbol string, day time.Time) string {
	return fmt.Sprintf("%s:%s", symbol, day.Format("2006-01-02"))
}

func (s *barStorage) HasTodayData(_ context.Context, symbol string, day time.Time) (bool, error) {
	var record models.DailyBarRecord
	err := s.store.db.Get(barKey(symbol, day), &record)
	if err == badgerhold.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check bar for '%s': %w", symbol, err)
	}
	return true, nil
}

// SaveDailyBars upserts bars keyed by symbol+date. Existing dates are
// overwritten (forward-adjusted values shift on corporate actions) but only
// newly inserted dates count toward the return value.
func (s *barStorage) SaveDailyBars(_ context.Context, symbol string, bars []models.DailyBar, source string) (int, error) {
	saved := 0
	now := time.Now()

	for _, bar := range bars {
		key := barKey(symbol, bar.Date)

		var existing models.DailyBarRecord
		err := s.store.db.Get(key, &existing)
		if err == badgerhold.ErrNotFound {
			saved++
		} else if err != nil {
			return saved, fmt.Errorf("failed to check bar '%s': %w", key, err)
		}

		record := models.DailyBarRecord{
			ID:     key,
			Symbol: symbol,
			Bar:    bar,
			Source: source,
			Saved:  now,
		}
		if err := s.store.db.Upsert(key, &record); err != nil {
			return saved, fmt.Errorf("failed to save bar '%s': %w", key, err)
		}
	}

	s.logger.Debug().Str("symbol", symbol).Int("bars", len(bars)).Int("new", saved).Str("source", source).Msg("Daily bars saved")
	return saved, nil
}

func (s *barStorage) GetDailyBars(_ context.Context, symbol string, days int) ([]models.DailyBar, error) {
	var records []models.DailyBarRecord
	if err := s.store.db.Find(&records, badgerhold.Where("Symbol").Eq(symbol)); err != nil {
		return nil, fmt.Errorf("failed to load bars for '%s': %w", symbol, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Bar.Date.Before(records[j].Bar.Date)
	})

	if days > 0 && len(records) > days {
		records = records[len(records)-days:]
	}

	bars := make([]models.DailyBar, len(records))
	for i, record := range records {
		bars[i] = record.Bar
	}
	return bars, nil
}

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

type instrumentStorage struct {
	store  *Store
	logger *common.Logger
}

// NewInstrumentStorage creates a new InstrumentStore backed by BadgerHold.
func NewInstrumentStorage(store *Store, logger *common.Logger) *instrumentStorage {
	return &instrumentStorage{store: store, logger: logger}
}

// UpsertAll refreshes the instrument directory from a snapshot pass. Entries
// without a code are skipped.
func (s *instrumentStorage) UpsertAll(_ context.Context, entries []models.InstrumentEntry) error {
	now := time.Now()
	count := 0

	for _, entry := range entries {
		if entry.Code == "" {
			continue
		}
		if entry.LastSeen.IsZero() {
			entry.LastSeen = now
		}
		if err := s.store.db.Upsert(entry.Code, &entry); err != nil {
			return fmt.Errorf("failed to upsert instrument '%s': %w", entry.Code, err)
		}
		count++
	}

	s.logger.Debug().Int("instruments", count).Msg("Instrument index refreshed")
	return nil
}

func (s *instrumentStorage) Get(_ context.Context, code string) (*models.InstrumentEntry, error) {
	var entry models.InstrumentEntry
	err := s.store.db.Get(code, &entry)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("instrument '%s' not found", code)
		}
		return nil, fmt.Errorf("failed to get instrument '%s': %w", code, err)
	}
	return &entry, nil
}

func (s *instrumentStorage) ListCodes(_ context.Context) ([]string, error) {
	var entries []models.InstrumentEntry
	if err := s.store.db.Find(&entries, nil); err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}

	codes := make([]string, len(entries))
	for i, entry := range entries {
		codes[i] = entry.Code
	}
	sort.Strings(codes)
	return codes, nil
}

func (s *instrumentStorage) Count(ctx context.Context) (int, error) {
	codes, err := s.ListCodes(ctx)
	if err != nil {
		return 0, err
	}
	return len(codes), nil
}

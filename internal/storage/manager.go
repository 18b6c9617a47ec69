// Package storage provides the top-level StorageManager that coordinates
// the BadgerHold database and the rendered-reports file area.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/interfaces"
	"github.com/dawnsea/tidescan/internal/storage/badger"
)

// Manager implements interfaces.StorageManager over a single BadgerHold
// store plus a plain directory for report files.
type Manager struct {
	store       *badger.Store
	reportsPath string
	logger      *common.Logger
}

// NewManager opens the database and ensures the reports directory exists.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	store, err := badger.NewStore(logger, config.Storage.Data.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create data store: %w", err)
	}

	reportsPath := config.Storage.Reports.Path
	if err := os.MkdirAll(reportsPath, 0755); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create reports path %s: %w", reportsPath, err)
	}

	logger.Info().
		Str("data", config.Storage.Data.Path).
		Str("reports", reportsPath).
		Msg("Storage manager initialized")

	return &Manager{
		store:       store,
		reportsPath: reportsPath,
		logger:      logger,
	}, nil
}

func (m *Manager) BarStore() interfaces.BarStore {
	return badger.NewBarStorage(m.store, m.logger)
}

func (m *Manager) AnalysisStore() interfaces.AnalysisStore {
	return badger.NewAnalysisStorage(m.store, m.logger)
}

func (m *Manager) InstrumentStore() interfaces.InstrumentStore {
	return badger.NewInstrumentStorage(m.store, m.logger)
}

func (m *Manager) ScreenStore() interfaces.ScreenStore {
	return badger.NewScreenStorage(m.store, m.logger)
}

func (m *Manager) ReportsPath() string {
	return m.reportsPath
}

// WriteReportFile writes a report file atomically and returns its path.
func (m *Manager) WriteReportFile(key string, data []byte) (string, error) {
	if err := os.MkdirAll(m.reportsPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", m.reportsPath, err)
	}
	target := filepath.Join(m.reportsPath, sanitizeKey(key))

	tmpFile, err := os.CreateTemp(m.reportsPath, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}
	return target, nil
}

func (m *Manager) Close() error {
	return m.store.Close()
}

func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(key)
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)

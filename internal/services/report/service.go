// Package report renders batch outcomes for delivery: the dashboard
// text pushed to notification channels and per-symbol price charts.
package report

import (
	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/interfaces"
)

// Service implements ReportService. Rendering is pure string and image
// building; callers own persistence and delivery.
type Service struct {
	logger *common.Logger
}

// NewService creates a new report service
func NewService(logger *common.Logger) *Service {
	return &Service{logger: logger}
}

var _ interfaces.ReportService = (*Service)(nil)

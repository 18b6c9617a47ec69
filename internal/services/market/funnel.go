package market

import (
	"sort"
	"strings"

	"github.com/dawnsea/tidescan/internal/models"
)

// DefaultMaxCandidates caps the pool entering the indicator stage.
const DefaultMaxCandidates = 150

// Funnel thresholds. Turnover values are CNY, market cap is CNY.
const (
	minPrice           = 5.0
	limitUpGuard       = 9.5
	candidateChangeMin = -2.0
	candidateChangeMax = 7.0
	minTurnover        = 100_000_000
	minVolumeRatio     = 1.2
	minMarketCap       = 5_000_000_000
	maxPE              = 80.0
)

// Names carrying these markers are never tradable candidates: ST risk
// flags, delisting, suspension, and fresh listings.
var excludedNameMarkers = []string{"ST", "退", "停", "N "}

// Funnel reduces a full-market snapshot to a bounded candidate pool.
type Funnel struct {
	maxCandidates int
}

// NewFunnel creates a funnel with the given pool cap.
func NewFunnel(maxCandidates int) *Funnel {
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Funnel{maxCandidates: maxCandidates}
}

// Select applies the base and candidate filters in order, ranks survivors
// by the quick score volume_ratio * (change_pct + 5), and truncates to the
// pool cap. Ties rank by code so a pass over the same snapshot always
// yields the same pool.
func (f *Funnel) Select(snapshot *models.QuoteSnapshot) []models.QuoteRow {
	candidates := make([]models.QuoteRow, 0, f.maxCandidates)
	for _, row := range snapshot.Rows {
		if !passesBase(row) {
			continue
		}
		if !passesCandidate(row, snapshot.HasVolumeRatio) {
			continue
		}
		candidates = append(candidates, row)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		qi, qj := quickRank(candidates[i]), quickRank(candidates[j])
		if qi != qj {
			return qi > qj
		}
		return candidates[i].Code < candidates[j].Code
	})
	if len(candidates) > f.maxCandidates {
		candidates = candidates[:f.maxCandidates]
	}
	return candidates
}

func quickRank(row models.QuoteRow) float64 {
	return row.VolumeRatio * (row.ChangePct + 5)
}

func passesBase(row models.QuoteRow) bool {
	for _, marker := range excludedNameMarkers {
		if strings.Contains(row.Name, marker) {
			return false
		}
	}
	if row.Price <= minPrice {
		return false
	}
	if row.Turnover <= 0 {
		return false
	}
	return row.ChangePct < limitUpGuard
}

// passesCandidate gates on liquidity, momentum, and valuation. Optional
// columns constrain only when present: a zero market cap or PE means the
// source did not carry the column, and the volume-ratio gate applies only
// when the snapshot has a real volume-ratio signal.
func passesCandidate(row models.QuoteRow, hasVolumeRatio bool) bool {
	if row.ChangePct < candidateChangeMin || row.ChangePct > candidateChangeMax {
		return false
	}
	if row.Turnover <= minTurnover {
		return false
	}
	if hasVolumeRatio && row.VolumeRatio < minVolumeRatio {
		return false
	}
	if row.MarketCap > 0 && row.MarketCap <= minMarketCap {
		return false
	}
	if row.PE != 0 && (row.PE < 0 || row.PE >= maxPE) {
		return false
	}
	return true
}

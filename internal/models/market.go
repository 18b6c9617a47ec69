// Package models defines data structures for Tidescan
package models

import (
	"time"
)

// QuoteRow holds one symbol's live attributes in the canonical schema.
// Provider column names never escape the client packages; every source
// is normalized into this shape at the fetch boundary.
type QuoteRow struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	ChangePct    float64 `json:"change_pct"`
	VolumeRatio  float64 `json:"volume_ratio"`  // defaults to 1.0 when the source lacks the column
	TurnoverRate float64 `json:"turnover_rate"` // percent of float traded today
	Turnover     float64 `json:"turnover"`      // traded value in CNY
	PE           float64 `json:"pe"`            // dynamic PE; 0 = unknown
	MarketCap    float64 `json:"market_cap"`    // total market cap in CNY; 0 = unknown
	Change60d    float64 `json:"change_60d"`    // defaults to 0.0 when the source lacks the column
}

// QuoteSnapshot is one full-market point-in-time set of quote rows.
// Immutable once fetched: a refresh builds a new snapshot and swaps it
// wholesale, never mutating rows in place.
type QuoteSnapshot struct {
	Rows      []QuoteRow `json:"rows"`
	Source    string     `json:"source"`
	FetchedAt time.Time  `json:"fetched_at"`

	// HasVolumeRatio is true when any row carries a non-zero
	// volume-ratio signal. Sources that never populate the column
	// leave it false, and the funnel skips the volume-ratio gate.
	HasVolumeRatio bool `json:"has_volume_ratio"`
}

// Row returns the snapshot row for a symbol code.
func (s *QuoteSnapshot) Row(code string) (QuoteRow, bool) {
	for i := range s.Rows {
		if s.Rows[i].Code == code {
			return s.Rows[i], true
		}
	}
	return QuoteRow{}, false
}

// DailyBar represents a single day's OHLCV data
type DailyBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// IndicatorSet is a computed, read-only snapshot of technical indicators
// for one symbol. Pointer fields are nil when the series is too short for
// that indicator; nil means unknown, never zero.
type IndicatorSet struct {
	MA5  *float64 `json:"ma5,omitempty"`
	MA10 *float64 `json:"ma10,omitempty"`
	MA20 *float64 `json:"ma20,omitempty"`
	MA60 *float64 `json:"ma60,omitempty"`

	MABullish            bool `json:"ma_bullish"`
	Is20DayHigh          bool `json:"is_20day_high"`
	IsVolumeConsolidated bool `json:"is_volume_consolidated"`

	RSI14 *float64 `json:"rsi14,omitempty"`

	MACDGoldenCross bool     `json:"macd_golden_cross"`
	MACDHistogram   *float64 `json:"macd_histogram,omitempty"`

	Gain20d    *float64 `json:"gain_20d,omitempty"`   // percent change over the trailing 20 bars
	Volatility *float64 `json:"volatility,omitempty"` // std/mean of the trailing 20 closes
}

// ScoredCandidate is a funnel survivor with its indicators and composite
// score. Created once per screening pass and never mutated after scoring.
type ScoredCandidate struct {
	Quote      QuoteRow      `json:"quote"`
	Indicators *IndicatorSet `json:"indicators"`
	Score      float64       `json:"score"` // composite, 0-100
}

// Recommendation buckets
const (
	BucketBuy   = "buy"
	BucketWatch = "watch"
)

// Recommendation is one entry in a buy or watch list.
type Recommendation struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	ChangePct    float64 `json:"change_pct"`
	VolumeRatio  float64 `json:"volume_ratio"`
	TurnoverRate float64 `json:"turnover_rate"`
	PE           float64 `json:"pe"`
	MarketCap    string  `json:"market_cap"` // rendered "N亿" or "N/A"
	Change60d    float64 `json:"change_60d"`
	Score        float64 `json:"score"`
	Reason       string  `json:"reason"` // fixed-order clause string
	Bucket       string  `json:"bucket"` // buy | watch
}

// MarketRecommendations is the result of one full market screen.
// Buy and watch are disjoint by symbol and each capped at five entries.
type MarketRecommendations struct {
	Buy         []Recommendation `json:"buy"`
	Watch       []Recommendation `json:"watch"`
	GeneratedAt time.Time        `json:"generated_at"`
	Source      string           `json:"source,omitempty"` // snapshot provider that served the pass
}

// InstrumentEntry is one row of the persisted instrument directory,
// refreshed from each successful market snapshot. Batch quote providers
// use it as their symbol universe.
type InstrumentEntry struct {
	Code     string    `json:"code" badgerhold:"key"`
	Name     string    `json:"name"`
	LastSeen time.Time `json:"last_seen"`
}

// ScreenRecord is a persisted market screen outcome, kept for history.
type ScreenRecord struct {
	ID          string                 `json:"id" badgerhold:"key"`
	Result      *MarketRecommendations `json:"result"`
	Candidates  int                    `json:"candidates"` // pool size entering the scoring stage
	Scored      int                    `json:"scored"`     // candidates that produced a score
	DurationMS  int64                  `json:"duration_ms"`
	GeneratedAt time.Time              `json:"generated_at"`
}

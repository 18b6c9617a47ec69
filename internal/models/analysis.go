package models

import "time"

// AnalysisTask is an ephemeral unit of work for one symbol: created at
// dispatch, consumed by exactly one worker, discarded after its result
// is folded into the aggregate list.
type AnalysisTask struct {
	Symbol       string `json:"symbol"`
	ForceRefresh bool   `json:"force_refresh"`
}

// AnalysisResult is the outcome of one symbol's analysis pass. A failed
// task produces no result at all rather than a partial one.
type AnalysisResult struct {
	Symbol     string        `json:"symbol"`
	Name       string        `json:"name,omitempty"`
	Quote      *QuoteRow     `json:"quote,omitempty"` // realtime enrichment; nil when unavailable
	Indicators *IndicatorSet `json:"indicators,omitempty"`
	Report     string        `json:"report,omitempty"` // analyzer markdown; empty on dry runs
	Source     string        `json:"source,omitempty"` // history provider that served the bars
	AnalyzedAt time.Time     `json:"analyzed_at"`
}

// AnalysisRecord is the persisted form of an analysis pass, queried
// later as context for follow-up analyses of the same symbol.
type AnalysisRecord struct {
	ID         string        `json:"id" badgerhold:"key"`
	Symbol     string        `json:"symbol" badgerhold:"index"`
	Name       string        `json:"name,omitempty"`
	Close      float64       `json:"close"`
	ChangePct  float64       `json:"change_pct"`
	Indicators *IndicatorSet `json:"indicators,omitempty"`
	Report     string        `json:"report,omitempty"`
	AnalyzedAt time.Time     `json:"analyzed_at"`
}

// DailyBarRecord is one persisted OHLCV bar, upserted by symbol+date.
type DailyBarRecord struct {
	ID     string    `json:"id" badgerhold:"key"` // "<symbol>:<yyyy-mm-dd>"
	Symbol string    `json:"symbol" badgerhold:"index"`
	Bar    DailyBar  `json:"bar"`
	Source string    `json:"source"`
	Saved  time.Time `json:"saved"`
}

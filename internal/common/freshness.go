package common

import "time"

// FreshnessRealtimeQuote bounds how long a per-symbol realtime quote may be
// served from cache before a source is consulted again.
const FreshnessRealtimeQuote = 5 * time.Minute

// SameTradingDay reports whether two timestamps fall on the same calendar
// day in the exchange timezone. Daily bars and analysis records are keyed
// by this day, not by a rolling 24h window.
func SameTradingDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

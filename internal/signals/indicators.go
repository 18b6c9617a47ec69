// Package signals computes technical indicators from daily bar data.
// All functions expect bars ordered oldest first and return nil (unknown)
// rather than a zero value when the series is too short.
package signals

import (
	"math"
)

// Minimum bar counts for derived indicators.
const (
	MinBars     = 20 // any indicator at all
	MinBarsMACD = 26
	MinBarsMA60 = 60
)

// SMA returns the simple trailing mean of the last period values,
// or nil when there are fewer values than the period.
func SMA(values []float64, period int) *float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	mean := sum / float64(period)
	return &mean
}

// EMA returns the exponential moving average series for the given period
// with alpha 2/(period+1), seeded at the first value. The result has the
// same length as the input; nil when the input is shorter than the period.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	alpha := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI computes the relative strength index over a trailing window of
// day-over-day deltas: average gain over average loss, each a simple mean
// across period deltas. Days moving against the direction contribute zero.
// Returns nil when the series is too short, and nil when the average loss
// is zero (the ratio is undefined, reported as unknown rather than 100).
func RSI(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}

	var gains, losses float64
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return nil
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	return &rsi
}

// MACDResult holds the last two histogram values of a 12/26/9 MACD.
type MACDResult struct {
	Histogram     float64 // latest bar
	PrevHistogram float64 // bar before it
	GoldenCross   bool    // histogram moved from <=0 to >0 between them
}

// MACD computes the 12/26 EMA difference with a 9-period EMA signal line.
// The golden cross fires when the histogram crosses from non-positive to
// positive between the last two bars. Returns nil below 26 bars.
func MACD(closes []float64, fast, slow, signal int) *MACDResult {
	if len(closes) < slow || len(closes) < 2 {
		return nil
	}

	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)

	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = emaFast[i] - emaSlow[i]
	}

	signalLine := EMA(macdLine, signal)
	if signalLine == nil {
		return nil
	}

	last := len(closes) - 1
	hist := macdLine[last] - signalLine[last]
	prev := macdLine[last-1] - signalLine[last-1]

	return &MACDResult{
		Histogram:     hist,
		PrevHistogram: prev,
		GoldenCross:   prev <= 0 && hist > 0,
	}
}

// StdDev returns the sample standard deviation of values, or 0 for
// fewer than two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

package signals

import (
	"sort"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/models"
)

// Computer derives an IndicatorSet from a daily bar series.
type Computer struct {
	logger *common.Logger
}

// NewComputer creates a new indicator computer.
func NewComputer(logger *common.Logger) *Computer {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Computer{logger: logger}
}

// Compute returns the indicator set for the series, or nil when fewer
// than 20 bars are available. Bars are sorted ascending by date before
// any computation; indicators whose own minimum is not met stay nil.
func (c *Computer) Compute(bars []models.DailyBar) *models.IndicatorSet {
	if len(bars) < MinBars {
		return nil
	}

	sorted := make([]models.DailyBar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	n := len(sorted)
	closes := make([]float64, n)
	highs := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range sorted {
		closes[i] = b.Close
		highs[i] = b.High
		volumes[i] = float64(b.Volume)
	}

	set := &models.IndicatorSet{
		MA5:  SMA(closes, 5),
		MA10: SMA(closes, 10),
		MA20: SMA(closes, 20),
		MA60: SMA(closes, 60),
	}

	if set.MA5 != nil && set.MA10 != nil && set.MA20 != nil {
		set.MABullish = *set.MA5 > *set.MA10 && *set.MA10 > *set.MA20
	}

	// Breakout: latest close at or above the highest high of the
	// prior 19 bars, current bar excluded.
	priorHigh := highs[n-20]
	for _, h := range highs[n-20 : n-1] {
		if h > priorHigh {
			priorHigh = h
		}
	}
	set.Is20DayHigh = closes[n-1] >= priorHigh

	// Volume consolidation: last 3 bars averaging under 70% of the
	// 2 bars before them.
	recent3 := Mean(volumes[n-3:])
	prev2 := Mean(volumes[n-5 : n-3])
	if prev2 > 0 {
		set.IsVolumeConsolidated = recent3 < prev2*0.7
	}

	set.RSI14 = RSI(closes, 14)

	if macd := MACD(closes, 12, 26, 9); macd != nil {
		hist := macd.Histogram
		set.MACDHistogram = &hist
		set.MACDGoldenCross = macd.GoldenCross
	}

	if base := closes[n-20]; base != 0 {
		gain := (closes[n-1]/base - 1) * 100
		set.Gain20d = &gain
	}

	window := closes[n-20:]
	if mean := Mean(window); mean != 0 {
		vol := StdDev(window) / mean
		set.Volatility = &vol
	}

	c.logger.Debug().
		Int("bars", n).
		Bool("ma_bullish", set.MABullish).
		Bool("breakout_20d", set.Is20DayHigh).
		Msg("Indicators computed")

	return set
}

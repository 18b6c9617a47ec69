package market

import (
	"math"

	"github.com/dawnsea/tidescan/internal/models"
)

// score computes the composite rank for one funnel survivor. Three purely
// additive bands sum to at most 100: trend strength (40), volume/price fit
// (35), safety margin (25). An unknown indicator contributes nothing to
// its rule.
func score(quote models.QuoteRow, ind *models.IndicatorSet) float64 {
	if ind == nil {
		ind = &models.IndicatorSet{}
	}
	return trendScore(ind) + volumeScore(quote, ind) + safetyScore(quote, ind)
}

// trendScore: 20-day gain (15) + MA alignment (10) + RSI band (8) +
// MACD signal (7).
func trendScore(ind *models.IndicatorSet) float64 {
	var s float64

	if ind.Gain20d != nil {
		switch gain := *ind.Gain20d; {
		case gain > 30:
			s += 15
		case gain > 20:
			s += 12
		case gain > 10:
			s += 8
		case gain > 5:
			s += 5
		case gain > 0:
			s += 2
		}
	}

	if ind.MABullish {
		s += 10
	} else if ind.MA5 != nil && ind.MA10 != nil && *ind.MA5 > *ind.MA10 {
		s += 5
	}

	// Strong but not overbought scores best
	if ind.RSI14 != nil {
		switch rsi := *ind.RSI14; {
		case rsi >= 50 && rsi <= 70:
			s += 8
		case (rsi >= 45 && rsi < 50) || (rsi > 70 && rsi <= 75):
			s += 5
		case rsi >= 40 && rsi < 45:
			s += 3
		}
	}

	if ind.MACDGoldenCross {
		s += 7
	} else if ind.MACDHistogram != nil && *ind.MACDHistogram > 0 {
		s += 4
	}

	return s
}

// volumeScore: volume ratio x8 capped at 16, breakout strength (10),
// day-change momentum (9).
func volumeScore(quote models.QuoteRow, ind *models.IndicatorSet) float64 {
	s := math.Min(quote.VolumeRatio*8, 16)

	switch {
	case ind.Is20DayHigh:
		s += 10
	case quote.ChangePct > 3:
		s += 6
	case quote.ChangePct > 1:
		s += 3
	}

	switch {
	case quote.ChangePct >= 0.5 && quote.ChangePct <= 5:
		s += 9
	case (quote.ChangePct >= 0 && quote.ChangePct < 0.5) || (quote.ChangePct > 5 && quote.ChangePct <= 7):
		s += 5
	}

	return s
}

// safetyScore: valuation (10), market-cap stability with the 100-500亿
// band scoring best (8), low volatility (7).
func safetyScore(quote models.QuoteRow, ind *models.IndicatorSet) float64 {
	var s float64

	switch pe := quote.PE; {
	case pe > 0 && pe <= 20:
		s += 10
	case pe > 20 && pe <= 30:
		s += 8
	case pe > 30 && pe <= 40:
		s += 5
	case pe > 40 && pe <= 60:
		s += 3
	}

	if quote.MarketCap > 0 {
		switch capYi := quote.MarketCap / 1e8; {
		case capYi >= 100 && capYi <= 500:
			s += 8
		case (capYi >= 50 && capYi < 100) || (capYi > 500 && capYi <= 1000):
			s += 5
		case capYi > 1000:
			s += 3
		}
	}

	if ind.Volatility != nil {
		switch v := *ind.Volatility; {
		case v < 0.02:
			s += 7
		case v < 0.03:
			s += 5
		case v < 0.05:
			s += 3
		}
	}

	return s
}

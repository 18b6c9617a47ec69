package market

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dawnsea/tidescan/internal/models"
)

// Bucket entry conditions. Buy wants a moderate start (gentle day change
// with a high score); watch collects the steadier runners-up.
const (
	buyChangeMin   = 0.5
	buyChangeMax   = 5.0
	buyMinScore    = 40.0
	watchChangeMin = -2.0
	watchChangeMax = 3.0
	watchMinScore  = 30.0
	bucketLimit    = 5
)

// selectRecommendations ranks scored candidates by score (ties by code)
// and splits them into the disjoint buy and watch buckets.
func selectRecommendations(scored []models.ScoredCandidate, source string, generatedAt time.Time) *models.MarketRecommendations {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Quote.Code < scored[j].Quote.Code
	})

	recs := &models.MarketRecommendations{
		Buy:         []models.Recommendation{},
		Watch:       []models.Recommendation{},
		GeneratedAt: generatedAt,
		Source:      source,
	}

	buyCodes := make(map[string]bool)
	for _, candidate := range scored {
		if len(recs.Buy) >= bucketLimit {
			break
		}
		change := candidate.Quote.ChangePct
		if change >= buyChangeMin && change <= buyChangeMax && candidate.Score >= buyMinScore {
			recs.Buy = append(recs.Buy, buildRecommendation(candidate, models.BucketBuy))
			buyCodes[candidate.Quote.Code] = true
		}
	}

	for _, candidate := range scored {
		if len(recs.Watch) >= bucketLimit {
			break
		}
		if buyCodes[candidate.Quote.Code] {
			continue
		}
		change := candidate.Quote.ChangePct
		if change >= watchChangeMin && change <= watchChangeMax && candidate.Score >= watchMinScore {
			recs.Watch = append(recs.Watch, buildRecommendation(candidate, models.BucketWatch))
		}
	}

	return recs
}

func buildRecommendation(candidate models.ScoredCandidate, bucket string) models.Recommendation {
	quote := candidate.Quote
	return models.Recommendation{
		Code:         quote.Code,
		Name:         quote.Name,
		Price:        quote.Price,
		ChangePct:    quote.ChangePct,
		VolumeRatio:  quote.VolumeRatio,
		TurnoverRate: quote.TurnoverRate,
		PE:           quote.PE,
		MarketCap:    formatMarketCap(quote.MarketCap),
		Change60d:    quote.Change60d,
		Score:        candidate.Score,
		Reason:       buildReason(candidate),
		Bucket:       bucket,
	}
}

// buildReason renders the user-facing clause string. Clause order is
// fixed; absent signals drop their clause rather than rendering a zero.
func buildReason(candidate models.ScoredCandidate) string {
	quote := candidate.Quote
	ind := candidate.Indicators
	if ind == nil {
		ind = &models.IndicatorSet{}
	}

	parts := make([]string, 0, 10)

	direction := "涨"
	if quote.ChangePct < 0 {
		direction = "跌"
	}
	parts = append(parts, fmt.Sprintf("今日%s%.1f%%", direction, math.Abs(quote.ChangePct)))

	if quote.VolumeRatio > 0 {
		desc := "量比正常"
		switch {
		case quote.VolumeRatio >= 2.0:
			desc = "明显放量"
		case quote.VolumeRatio >= 1.5:
			desc = "放量"
		}
		parts = append(parts, fmt.Sprintf("量比%.1f（%s）", quote.VolumeRatio, desc))
	}

	if ind.MABullish {
		parts = append(parts, "均线多头排列")
	} else if ind.MA5 != nil && ind.MA10 != nil && *ind.MA5 > *ind.MA10 {
		parts = append(parts, "短期趋势向上")
	}

	if ind.Is20DayHigh {
		parts = append(parts, "创20日新高")
	}

	if ind.MACDGoldenCross {
		parts = append(parts, "MACD金叉")
	}

	if ind.RSI14 != nil && *ind.RSI14 >= 50 && *ind.RSI14 <= 70 {
		parts = append(parts, fmt.Sprintf("RSI %.0f（强势）", *ind.RSI14))
	}

	if ind.Gain20d != nil && *ind.Gain20d > 10 {
		parts = append(parts, fmt.Sprintf("20日涨%.1f%%", *ind.Gain20d))
	}

	if quote.PE > 0 {
		parts = append(parts, fmt.Sprintf("PE %.0f", quote.PE))
	}

	if quote.MarketCap > 0 {
		parts = append(parts, fmt.Sprintf("市值%.0f亿", quote.MarketCap/1e8))
	}

	parts = append(parts, fmt.Sprintf("综合评分%.0f", candidate.Score))

	return strings.Join(parts, "，")
}

// formatMarketCap renders a raw CNY market cap as whole 亿, or N/A when
// the source did not carry the column.
func formatMarketCap(marketCap float64) string {
	if marketCap <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.0f亿", marketCap/1e8)
}

package market

import (
	"strings"
	"testing"
	"time"

	"github.com/dawnsea/tidescan/internal/models"
)

func scoredCandidate(code string, changePct, score float64) models.ScoredCandidate {
	return models.ScoredCandidate{
		Quote: models.QuoteRow{
			Code:        code,
			Name:        "示例股份",
			Price:       12.5,
			ChangePct:   changePct,
			VolumeRatio: 1.4,
		},
		Indicators: &models.IndicatorSet{},
		Score:      score,
	}
}

func TestSelectRecommendations_BucketsAreDisjointAndCapped(t *testing.T) {
	var scored []models.ScoredCandidate
	// Seven buy-eligible candidates with descending scores
	for i := 0; i < 7; i++ {
		scored = append(scored, scoredCandidate(
			"6001"+string(rune('0'+i))+"0", 2.0, 80.0-float64(i)))
	}
	// Three watch-eligible candidates
	scored = append(scored,
		scoredCandidate("000001", -1.0, 38.0),
		scoredCandidate("000002", 0.0, 35.0),
		scoredCandidate("000003", 2.5, 33.0),
	)

	recs := selectRecommendations(scored, "eastmoney", time.Now())

	if len(recs.Buy) != 5 {
		t.Fatalf("expected buy capped at 5, got %d", len(recs.Buy))
	}
	if len(recs.Watch) != 5 {
		t.Fatalf("expected watch filled to 5, got %d", len(recs.Watch))
	}

	buyCodes := make(map[string]bool)
	for i, rec := range recs.Buy {
		buyCodes[rec.Code] = true
		if rec.Bucket != models.BucketBuy {
			t.Errorf("buy entry %d has bucket %s", i, rec.Bucket)
		}
		if i > 0 && recs.Buy[i-1].Score < rec.Score {
			t.Errorf("buy list not score-descending at %d", i)
		}
	}
	for _, rec := range recs.Watch {
		if buyCodes[rec.Code] {
			t.Errorf("symbol %s appears in both buckets", rec.Code)
		}
		if rec.Bucket != models.BucketWatch {
			t.Errorf("watch entry %s has bucket %s", rec.Code, rec.Bucket)
		}
	}

	// The two buy overflow candidates land in watch when eligible: change
	// 2.0 fits the watch window, so ranks six and seven lead that bucket.
	if recs.Watch[0].Code != "600150" || recs.Watch[1].Code != "600160" {
		t.Errorf("expected buy overflow to lead watch, got %s, %s", recs.Watch[0].Code, recs.Watch[1].Code)
	}
}

func TestSelectRecommendations_BuyWindow(t *testing.T) {
	tests := []struct {
		name      string
		changePct float64
		score     float64
		wantBuy   bool
	}{
		{"gentle start", 0.5, 45.0, true},
		{"upper edge", 5.0, 45.0, true},
		{"flat open", 0.4, 45.0, false},
		{"chasing strength", 5.1, 45.0, false},
		{"score too low", 2.0, 39.9, false},
		{"score at floor", 2.0, 40.0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := selectRecommendations([]models.ScoredCandidate{
				scoredCandidate("600519", tt.changePct, tt.score),
			}, "eastmoney", time.Now())
			if got := len(recs.Buy) == 1; got != tt.wantBuy {
				t.Errorf("buy membership = %v, want %v", got, tt.wantBuy)
			}
		})
	}
}

func TestSelectRecommendations_WatchWindow(t *testing.T) {
	tests := []struct {
		name      string
		changePct float64
		score     float64
		wantWatch bool
	}{
		{"steady dip", -2.0, 35.0, true},
		{"mild rise", 3.0, 35.0, true},
		{"falling too fast", -2.1, 35.0, false},
		{"rising too fast", 3.1, 35.0, false},
		{"score too low", 1.0, 29.9, false},
		{"score at floor", -1.0, 30.0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := selectRecommendations([]models.ScoredCandidate{
				scoredCandidate("600519", tt.changePct, tt.score),
			}, "eastmoney", time.Now())
			if got := len(recs.Watch) == 1; got != tt.wantWatch {
				t.Errorf("watch membership = %v, want %v", got, tt.wantWatch)
			}
		})
	}
}

func TestBuildReason_FullClauseOrder(t *testing.T) {
	candidate := models.ScoredCandidate{
		Quote: models.QuoteRow{
			Code:        "600519",
			Name:        "贵州茅台",
			Price:       1705.0,
			ChangePct:   2.3,
			VolumeRatio: 2.1,
			PE:          28.4,
			MarketCap:   2.142e12,
		},
		Indicators: &models.IndicatorSet{
			MABullish:       true,
			Is20DayHigh:     true,
			MACDGoldenCross: true,
			RSI14:           floatPtr(62.4),
			Gain20d:         floatPtr(15.3),
		},
		Score: 78.6,
	}

	want := "今日涨2.3%，量比2.1（明显放量），均线多头排列，创20日新高，MACD金叉，RSI 62（强势），20日涨15.3%，PE 28，市值21420亿，综合评分79"
	if got := buildReason(candidate); got != want {
		t.Errorf("reason mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestBuildReason_QuietCandidate(t *testing.T) {
	candidate := models.ScoredCandidate{
		Quote: models.QuoteRow{
			Code:        "000001",
			ChangePct:   -1.3,
			VolumeRatio: 1.4,
		},
		Indicators: &models.IndicatorSet{
			MA5:  floatPtr(11.2),
			MA10: floatPtr(11.0),
		},
		Score: 32.0,
	}

	want := "今日跌1.3%，量比1.4（量比正常），短期趋势向上，综合评分32"
	if got := buildReason(candidate); got != want {
		t.Errorf("reason mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestBuildReason_VolumeRatioBands(t *testing.T) {
	tests := []struct {
		vr   float64
		want string
	}{
		{2.0, "量比2.0（明显放量）"},
		{1.5, "量比1.5（放量）"},
		{1.2, "量比1.2（量比正常）"},
	}
	for _, tt := range tests {
		candidate := scoredCandidate("600519", -1.3, 20.0)
		candidate.Quote.VolumeRatio = tt.vr
		reason := buildReason(candidate)
		if !containsClause(reason, tt.want) {
			t.Errorf("vr %.1f: expected clause %q in %q", tt.vr, tt.want, reason)
		}
	}
}

func containsClause(reason, clause string) bool {
	for _, part := range strings.Split(reason, "，") {
		if part == clause {
			return true
		}
	}
	return false
}

func TestFormatMarketCap(t *testing.T) {
	tests := []struct {
		marketCap float64
		want      string
	}{
		{2.142e12, "21420亿"},
		{9.8e9, "98亿"},
		{0, "N/A"},
		{-1, "N/A"},
	}
	for _, tt := range tests {
		if got := formatMarketCap(tt.marketCap); got != tt.want {
			t.Errorf("formatMarketCap(%.0f) = %s, want %s", tt.marketCap, got, tt.want)
		}
	}
}

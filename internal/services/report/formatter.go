package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dawnsea/tidescan/internal/models"
)

// RenderDashboard produces the markdown report for a batch: the market
// screen buckets first, then one digest per analyzed symbol. Section
// order and clause order are fixed so identical inputs always render
// identical text.
func (s *Service) RenderDashboard(results []models.AnalysisResult, recs *models.MarketRecommendations, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# 决策仪表盘（%s）\n\n", now.Format("2006-01-02 15:04")))

	if recs != nil {
		sb.WriteString("## 市场精选\n\n")
		sb.WriteString("### 买入关注\n\n")
		writeBucket(&sb, recs.Buy)
		sb.WriteString("### 观察\n\n")
		writeBucket(&sb, recs.Watch)
		if recs.Source != "" {
			sb.WriteString(fmt.Sprintf("数据源: %s\n\n", recs.Source))
		}
	}

	sb.WriteString(fmt.Sprintf("## 个股分析（%d 只）\n\n", len(results)))
	for i := range results {
		writeAnalysisDigest(&sb, &results[i])
	}

	return sb.String()
}

func writeBucket(sb *strings.Builder, recs []models.Recommendation) {
	if len(recs) == 0 {
		sb.WriteString("- 暂无符合条件的标的\n\n")
		return
	}
	for _, rec := range recs {
		sb.WriteString(fmt.Sprintf("- **%s（%s）** 现价 %.2f，评分 %.0f\n", rec.Name, rec.Code, rec.Price, rec.Score))
		sb.WriteString(fmt.Sprintf("  - %s\n", rec.Reason))
	}
	sb.WriteString("\n")
}

func writeAnalysisDigest(sb *strings.Builder, result *models.AnalysisResult) {
	sb.WriteString(fmt.Sprintf("### %s（%s）\n\n", result.Name, result.Symbol))

	if q := result.Quote; q != nil {
		sb.WriteString(fmt.Sprintf("- 现价 %.2f，今日%s\n", q.Price, changeText(q.ChangePct)))
		if q.VolumeRatio > 0 {
			sb.WriteString(fmt.Sprintf("- 量比 %.2f，换手率 %.2f%%\n", q.VolumeRatio, q.TurnoverRate))
		}
	}

	if flags := indicatorFlags(result.Indicators); len(flags) > 0 {
		sb.WriteString("- " + strings.Join(flags, "，") + "\n")
	}
	if metrics := indicatorMetrics(result.Indicators); len(metrics) > 0 {
		sb.WriteString("- " + strings.Join(metrics, "，") + "\n")
	}

	if result.Source != "" {
		sb.WriteString(fmt.Sprintf("- 数据来源: %s\n", result.Source))
	}
	sb.WriteString("\n")

	if result.Report != "" {
		sb.WriteString(result.Report)
		sb.WriteString("\n\n")
	}
}

// indicatorFlags collects the boolean signals that fired, in fixed order.
func indicatorFlags(ind *models.IndicatorSet) []string {
	if ind == nil {
		return nil
	}
	var flags []string
	if ind.MABullish {
		flags = append(flags, "均线多头排列")
	}
	if ind.Is20DayHigh {
		flags = append(flags, "创20日新高")
	}
	if ind.MACDGoldenCross {
		flags = append(flags, "MACD金叉")
	}
	if ind.IsVolumeConsolidated {
		flags = append(flags, "缩量整理")
	}
	return flags
}

func indicatorMetrics(ind *models.IndicatorSet) []string {
	if ind == nil {
		return nil
	}
	var metrics []string
	if ind.RSI14 != nil {
		metrics = append(metrics, fmt.Sprintf("RSI %.1f", *ind.RSI14))
	}
	if ind.Gain20d != nil {
		metrics = append(metrics, fmt.Sprintf("20日涨%.1f%%", *ind.Gain20d))
	}
	return metrics
}

func changeText(changePct float64) string {
	if changePct < 0 {
		return fmt.Sprintf("跌%.1f%%", -changePct)
	}
	return fmt.Sprintf("涨%.1f%%", changePct)
}

package pipeline

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"strings"

	"github.com/dawnsea/tidescan/internal/interfaces"
	"github.com/dawnsea/tidescan/internal/models"
)

// runTask executes the fetch/compute/analyze pass for one symbol.
// Panics and errors stay inside the task: a failed task yields nil and
// the siblings keep running.
func (s *Service) runTask(ctx context.Context, task models.AnalysisTask, opts interfaces.RunOptions) (result *models.AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("symbol", task.Symbol).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Analysis task panicked")
			result = nil
		}
	}()

	bars, source := s.loadDailyBars(ctx, task.Symbol, task.ForceRefresh)
	if len(bars) == 0 {
		s.logger.Warn().Str("symbol", task.Symbol).Msg("No daily bars available, skipping symbol")
		return nil
	}

	indicators := s.computer.Compute(bars)

	quote, err := s.history.GetRealtimeQuote(ctx, task.Symbol)
	if err != nil {
		s.logger.Debug().Str("symbol", task.Symbol).Err(err).Msg("Realtime quote unavailable, analyzing from history")
		quote = nil
	}

	name := s.resolveName(ctx, task.Symbol, quote)

	report := ""
	if opts.DryRun {
		s.logger.Debug().Str("symbol", task.Symbol).Msg("Dry run, skipping analyzer")
	} else if s.analyzer == nil {
		s.logger.Debug().Str("symbol", task.Symbol).Msg("Analyzer not configured, producing data-only result")
	} else {
		analysisContext := s.buildAnalysisContext(ctx, task.Symbol, name, quote, indicators, bars, source)
		report, err = s.analyzer.Analyze(ctx, analysisContext, "")
		if err != nil {
			s.logger.Warn().Str("symbol", task.Symbol).Err(err).Msg("Analyzer failed")
			return nil
		}
	}

	analyzed := models.AnalysisResult{
		Symbol:     task.Symbol,
		Name:       name,
		Quote:      quote,
		Indicators: indicators,
		Report:     report,
		Source:     source,
		AnalyzedAt: s.now(),
	}
	s.saveHistory(ctx, &analyzed, bars)
	return &analyzed
}

// loadDailyBars serves stored bars when today's data is already in, and
// fetches through the provider manager otherwise. The manager persists
// what it fetches, so a rerun on the same day takes the stored path.
func (s *Service) loadDailyBars(ctx context.Context, symbol string, forceRefresh bool) ([]models.DailyBar, string) {
	store := s.storage.BarStore()

	if !forceRefresh {
		stored, err := store.HasTodayData(ctx, symbol, s.now())
		if err != nil {
			s.logger.Warn().Str("symbol", symbol).Err(err).Msg("Stored-data check failed")
		} else if stored {
			bars, err := store.GetDailyBars(ctx, symbol, defaultHistoryDays)
			if err == nil && len(bars) > 0 {
				s.logger.Debug().
					Str("symbol", symbol).
					Int("bars", len(bars)).
					Msg("Today's bars already stored, skipping fetch")
				return bars, "local"
			}
			if err != nil {
				s.logger.Warn().Str("symbol", symbol).Err(err).Msg("Failed to read stored bars")
			}
		}
	}

	bars, source, err := s.history.GetDailyData(ctx, symbol, defaultHistoryDays)
	if err != nil {
		s.logger.Warn().Str("symbol", symbol).Err(err).Msg("Daily data fetch failed, falling back to stored bars")
		stored, readErr := store.GetDailyBars(ctx, symbol, defaultHistoryDays)
		if readErr != nil || len(stored) == 0 {
			return nil, ""
		}
		return stored, "local"
	}
	return bars, source
}

// resolveName prefers the live quote name, then the instrument
// directory, then a generic code-based label.
func (s *Service) resolveName(ctx context.Context, symbol string, quote *models.QuoteRow) string {
	if quote != nil && quote.Name != "" {
		return quote.Name
	}
	if entry, err := s.storage.InstrumentStore().Get(ctx, symbol); err == nil && entry.Name != "" {
		return entry.Name
	}
	return "股票" + symbol
}

// buildAnalysisContext renders the technical digest handed to the
// analyzer, which treats it as an opaque block.
func (s *Service) buildAnalysisContext(ctx context.Context, symbol, name string, quote *models.QuoteRow, indicators *models.IndicatorSet, bars []models.DailyBar, source string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "股票: %s(%s)\n", name, symbol)
	fmt.Fprintf(&b, "日期: %s\n", s.now().Format("2006-01-02"))

	last := bars[len(bars)-1]
	fmt.Fprintf(&b, "最新收盘: %.2f（来源 %s，共 %d 根日K）\n", last.Close, source, len(bars))

	if quote != nil {
		fmt.Fprintf(&b, "实时行情: 现价 %.2f，今日%s%.1f%%\n", quote.Price, direction(quote.ChangePct), math.Abs(quote.ChangePct))
		if quote.VolumeRatio > 0 {
			fmt.Fprintf(&b, "量比: %.2f（%s）\n", quote.VolumeRatio, describeVolumeRatio(quote.VolumeRatio))
		}
		if quote.TurnoverRate > 0 {
			fmt.Fprintf(&b, "换手率: %.2f%%\n", quote.TurnoverRate)
		}
	}

	if indicators != nil {
		if indicators.MA5 != nil && indicators.MA10 != nil && indicators.MA20 != nil {
			fmt.Fprintf(&b, "MA5/MA10/MA20: %.2f / %.2f / %.2f\n", *indicators.MA5, *indicators.MA10, *indicators.MA20)
		}
		fmt.Fprintf(&b, "均线多头排列: %s\n", yesNo(indicators.MABullish))
		fmt.Fprintf(&b, "创20日新高: %s\n", yesNo(indicators.Is20DayHigh))
		fmt.Fprintf(&b, "MACD金叉: %s\n", yesNo(indicators.MACDGoldenCross))
		if indicators.RSI14 != nil {
			fmt.Fprintf(&b, "RSI14: %.1f\n", *indicators.RSI14)
		}
		if indicators.Gain20d != nil {
			fmt.Fprintf(&b, "20日涨幅: %.1f%%\n", *indicators.Gain20d)
		}
	} else {
		b.WriteString("技术指标: 数据不足\n")
	}

	if prior, err := s.storage.AnalysisStore().GetAnalysisContext(ctx, symbol); err != nil {
		s.logger.Debug().Str("symbol", symbol).Err(err).Msg("Prior analysis context unavailable")
	} else if prior != nil {
		fmt.Fprintf(&b, "上次分析: %s，收盘 %.2f，涨跌 %+.1f%%\n", prior.AnalyzedAt.Format("2006-01-02"), prior.Close, prior.ChangePct)
	}

	return b.String()
}

// saveHistory persists the pass so later runs can cite it as context.
func (s *Service) saveHistory(ctx context.Context, result *models.AnalysisResult, bars []models.DailyBar) {
	record := &models.AnalysisRecord{
		Symbol:     result.Symbol,
		Name:       result.Name,
		Close:      bars[len(bars)-1].Close,
		ChangePct:  changePctOf(result.Quote, bars),
		Indicators: result.Indicators,
		Report:     result.Report,
		AnalyzedAt: result.AnalyzedAt,
	}
	if result.Quote != nil {
		record.Close = result.Quote.Price
	}
	if err := s.storage.AnalysisStore().SaveAnalysisHistory(ctx, record); err != nil {
		s.logger.Warn().Str("symbol", result.Symbol).Err(err).Msg("Failed to save analysis history")
	}
}

func changePctOf(quote *models.QuoteRow, bars []models.DailyBar) float64 {
	if quote != nil {
		return quote.ChangePct
	}
	if len(bars) >= 2 {
		prev := bars[len(bars)-2].Close
		if prev > 0 {
			return (bars[len(bars)-1].Close/prev - 1) * 100
		}
	}
	return 0
}

// describeVolumeRatio maps a volume ratio to the trader vocabulary used
// in analysis prompts.
func describeVolumeRatio(ratio float64) string {
	switch {
	case ratio < 0.5:
		return "极度萎缩"
	case ratio < 0.8:
		return "明显萎缩"
	case ratio < 1.2:
		return "正常"
	case ratio < 2.0:
		return "温和放量"
	case ratio < 3.0:
		return "明显放量"
	default:
		return "巨量"
	}
}

func direction(changePct float64) string {
	if changePct < 0 {
		return "跌"
	}
	return "涨"
}

func yesNo(v bool) string {
	if v {
		return "是"
	}
	return "否"
}

package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/dawnsea/tidescan/internal/models"
)

// RenderChart renders a PNG line chart for one symbol: close price
// (blue solid) with MA5 (amber) and MA20 (gray dashed) overlays when
// the series is long enough. Returns raw PNG bytes.
func (s *Service) RenderChart(symbol string, bars []models.DailyBar) ([]byte, error) {
	if len(bars) < 2 {
		return nil, fmt.Errorf("need at least 2 bars for %s, got %d", symbol, len(bars))
	}

	xValues := make([]time.Time, len(bars))
	closeY := make([]float64, len(bars))
	for i, bar := range bars {
		xValues[i] = bar.Date
		closeY[i] = bar.Close
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name: "收盘",
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex("2563eb"),
				StrokeWidth: 2.5,
			},
			XValues: xValues,
			YValues: closeY,
		},
	}

	if ma5 := rollingMean(closeY, 5); len(ma5) >= 2 {
		series = append(series, chart.TimeSeries{
			Name: "MA5",
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex("f59e0b"),
				StrokeWidth: 1.5,
			},
			XValues: xValues[4:],
			YValues: ma5,
		})
	}
	if ma20 := rollingMean(closeY, 20); len(ma20) >= 2 {
		series = append(series, chart.TimeSeries{
			Name: "MA20",
			Style: chart.Style{
				StrokeColor:     drawing.ColorFromHex("9ca3af"),
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{5.0, 3.0},
			},
			XValues: xValues[19:],
			YValues: ma20,
		})
	}

	graph := chart.Chart{
		Title:  symbol,
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("01-02")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.2f", f)
				}
				return ""
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

// rollingMean returns the n-period simple moving average, one value per
// bar from the n-th onward, or nil when the series is shorter than n.
func rollingMean(values []float64, n int) []float64 {
	if len(values) < n {
		return nil
	}
	out := make([]float64, 0, len(values)-n+1)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= n {
			sum -= values[i-n]
		}
		if i >= n-1 {
			out = append(out, sum/float64(n))
		}
	}
	return out
}

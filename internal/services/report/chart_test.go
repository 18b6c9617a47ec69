package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/models"
)

var pngMagic = []byte{0x89, 0x50, 0x4e, 0x47}

func chartBars(n int) []models.DailyBar {
	bars := make([]models.DailyBar, n)
	price := 10.0
	for i := 0; i < n; i++ {
		price *= 1.01
		bars[i] = models.DailyBar{
			Date:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:   price * 0.995,
			High:   price * 1.005,
			Low:    price * 0.99,
			Close:  price,
			Volume: 1_000_000,
		}
	}
	return bars
}

func TestRenderChart_ProducesPNG(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	png, err := svc.RenderChart("600519", chartBars(60))
	if err != nil {
		t.Fatalf("RenderChart failed: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Errorf("output does not start with PNG magic, got % x", png[:8])
	}
}

func TestRenderChart_ShortSeriesSkipsOverlays(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	// Too short for MA5 and MA20 but still a valid chart
	png, err := svc.RenderChart("000001", chartBars(3))
	if err != nil {
		t.Fatalf("RenderChart failed: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Error("short series should still render a PNG")
	}
}

func TestRenderChart_RejectsDegenerateSeries(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	if _, err := svc.RenderChart("600519", chartBars(1)); err == nil {
		t.Error("expected an error for a single-bar series")
	}
	if _, err := svc.RenderChart("600519", nil); err == nil {
		t.Error("expected an error for an empty series")
	}
}

func TestRollingMean(t *testing.T) {
	got := rollingMean([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("rollingMean length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rollingMean[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if rollingMean([]float64{1, 2}, 3) != nil {
		t.Error("expected nil for a series shorter than the window")
	}
}

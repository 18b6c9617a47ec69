package common

import (
	"testing"
	"time"
)

func TestSameTradingDay(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}

	tests := []struct {
		name string
		a, b time.Time
		want bool
	}{
		{
			name: "same morning and afternoon",
			a:    time.Date(2026, 1, 6, 9, 30, 0, 0, shanghai),
			b:    time.Date(2026, 1, 6, 15, 0, 0, 0, shanghai),
			want: true,
		},
		{
			name: "close yesterday vs open today",
			a:    time.Date(2026, 1, 5, 15, 0, 0, 0, shanghai),
			b:    time.Date(2026, 1, 6, 9, 30, 0, 0, shanghai),
			want: false,
		},
		{
			name: "within 24h but across midnight",
			a:    time.Date(2026, 1, 5, 23, 0, 0, 0, shanghai),
			b:    time.Date(2026, 1, 6, 1, 0, 0, 0, shanghai),
			want: false,
		},
		{
			name: "utc instants compared in exchange timezone",
			// 16:30 UTC on Jan 5 is already Jan 6 00:30 in Shanghai
			a:    time.Date(2026, 1, 5, 16, 30, 0, 0, time.UTC),
			b:    time.Date(2026, 1, 6, 2, 0, 0, 0, shanghai),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameTradingDay(tt.a, tt.b, shanghai); got != tt.want {
				t.Errorf("SameTradingDay(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSameTradingDay_NilLocationDefaultsToLocal(t *testing.T) {
	now := time.Now()
	if !SameTradingDay(now, now, nil) {
		t.Error("identical timestamps must share a trading day")
	}
}

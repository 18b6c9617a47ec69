package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/interfaces"
	"github.com/dawnsea/tidescan/internal/models"
)

// --- mock providers ---

type mockHistoryProvider struct {
	name    string
	fetchFn func(ctx context.Context, symbol string, days int) ([]models.DailyBar, error)
	calls   int
}

func (m *mockHistoryProvider) Name() string { return m.name }

func (m *mockHistoryProvider) FetchDailyBars(ctx context.Context, symbol string, days int) ([]models.DailyBar, error) {
	m.calls++
	if m.fetchFn != nil {
		return m.fetchFn(ctx, symbol, days)
	}
	return nil, fmt.Errorf("not implemented")
}

type mockQuoteProvider struct {
	fetchFn func(ctx context.Context, symbol string) (*models.QuoteRow, error)
	calls   int
}

func (m *mockQuoteProvider) FetchQuote(ctx context.Context, symbol string) (*models.QuoteRow, error) {
	m.calls++
	if m.fetchFn != nil {
		return m.fetchFn(ctx, symbol)
	}
	return nil, fmt.Errorf("not implemented")
}

// --- mock bar store ---

type savedSeries struct {
	symbol string
	source string
	count  int
}

type mockBarStore struct {
	saves []savedSeries
}

func (m *mockBarStore) HasTodayData(_ context.Context, _ string, _ time.Time) (bool, error) {
	return false, nil
}

func (m *mockBarStore) SaveDailyBars(_ context.Context, symbol string, bars []models.DailyBar, source string) (int, error) {
	m.saves = append(m.saves, savedSeries{symbol: symbol, source: source, count: len(bars)})
	return len(bars), nil
}

func (m *mockBarStore) GetDailyBars(_ context.Context, _ string, _ int) ([]models.DailyBar, error) {
	return nil, nil
}

var _ interfaces.BarStore = (*mockBarStore)(nil)

func barsOn(dates ...string) []models.DailyBar {
	bars := make([]models.DailyBar, 0, len(dates))
	for i, d := range dates {
		day, _ := time.Parse("2006-01-02", d)
		bars = append(bars, models.DailyBar{Date: day, Close: 10.0 + float64(i), Volume: 1000})
	}
	return bars
}

// --- tests ---

func TestGetDailyData_RotatesOnFailure(t *testing.T) {
	failing := &mockHistoryProvider{
		name: "eastmoney",
		fetchFn: func(_ context.Context, _ string, _ int) ([]models.DailyBar, error) {
			return nil, fmt.Errorf("upstream down")
		},
	}
	serving := &mockHistoryProvider{
		name: "sina",
		fetchFn: func(_ context.Context, _ string, _ int) ([]models.DailyBar, error) {
			return barsOn("2026-01-05", "2026-01-06", "2026-01-07"), nil
		},
	}
	store := &mockBarStore{}

	manager := NewManager(store, []interfaces.HistoryProvider{failing, serving}, nil, common.NewSilentLogger())

	bars, source, err := manager.GetDailyData(context.Background(), "600519", 60)
	if err != nil {
		t.Fatalf("GetDailyData failed: %v", err)
	}
	if source != "sina" {
		t.Errorf("expected source sina, got %s", source)
	}
	if len(bars) != 3 {
		t.Errorf("expected 3 bars, got %d", len(bars))
	}
	if failing.calls != 1 || serving.calls != 1 {
		t.Errorf("expected one attempt per source, got %d and %d", failing.calls, serving.calls)
	}
	if len(store.saves) != 1 || store.saves[0].source != "sina" || store.saves[0].count != 3 {
		t.Errorf("expected bars persisted from sina, got %+v", store.saves)
	}
}

func TestGetDailyData_RotatesOnEmptyResult(t *testing.T) {
	empty := &mockHistoryProvider{
		name: "eastmoney",
		fetchFn: func(_ context.Context, _ string, _ int) ([]models.DailyBar, error) {
			return nil, nil
		},
	}
	serving := &mockHistoryProvider{
		name: "sina",
		fetchFn: func(_ context.Context, _ string, _ int) ([]models.DailyBar, error) {
			return barsOn("2026-01-05"), nil
		},
	}

	manager := NewManager(&mockBarStore{}, []interfaces.HistoryProvider{empty, serving}, nil, common.NewSilentLogger())

	_, source, err := manager.GetDailyData(context.Background(), "600519", 60)
	if err != nil {
		t.Fatalf("GetDailyData failed: %v", err)
	}
	if source != "sina" {
		t.Errorf("expected rotation past the empty source, got %s", source)
	}
}

func TestGetDailyData_CachesForSameDay(t *testing.T) {
	provider := &mockHistoryProvider{
		name: "eastmoney",
		fetchFn: func(_ context.Context, _ string, _ int) ([]models.DailyBar, error) {
			return barsOn("2026-01-05", "2026-01-06"), nil
		},
	}
	manager := NewManager(&mockBarStore{}, []interfaces.HistoryProvider{provider}, nil, common.NewSilentLogger())

	current := time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC)
	manager.SetClock(func() time.Time { return current })

	for i := 0; i < 2; i++ {
		if _, _, err := manager.GetDailyData(context.Background(), "600519", 60); err != nil {
			t.Fatalf("GetDailyData %d failed: %v", i, err)
		}
	}
	if provider.calls != 1 {
		t.Errorf("expected same-day cache hit, got %d fetches", provider.calls)
	}

	// Entries fetched yesterday are stale the next morning
	current = current.AddDate(0, 0, 1)
	if _, _, err := manager.GetDailyData(context.Background(), "600519", 60); err != nil {
		t.Fatalf("next-day GetDailyData failed: %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("expected refetch on a new day, got %d fetches", provider.calls)
	}
}

func TestGetDailyData_SortsAndDedupes(t *testing.T) {
	provider := &mockHistoryProvider{
		name: "eastmoney",
		fetchFn: func(_ context.Context, _ string, _ int) ([]models.DailyBar, error) {
			day := func(d string) time.Time {
				parsed, _ := time.Parse("2006-01-02", d)
				return parsed
			}
			return []models.DailyBar{
				{Date: day("2026-01-07"), Close: 12.0},
				{Date: day("2026-01-05"), Close: 10.0},
				{Date: day("2026-01-06"), Close: 11.0},
				{Date: day("2026-01-06"), Close: 11.5}, // revised duplicate wins
			}, nil
		},
	}
	manager := NewManager(&mockBarStore{}, []interfaces.HistoryProvider{provider}, nil, common.NewSilentLogger())

	bars, _, err := manager.GetDailyData(context.Background(), "600519", 60)
	if err != nil {
		t.Fatalf("GetDailyData failed: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("expected 3 deduplicated bars, got %d", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			t.Errorf("bars not strictly ascending at index %d", i)
		}
	}
	if bars[1].Close != 11.5 {
		t.Errorf("expected later duplicate to win, got close %.1f", bars[1].Close)
	}
}

func TestGetDailyData_AllSourcesExhausted(t *testing.T) {
	failing := &mockHistoryProvider{
		name: "eastmoney",
		fetchFn: func(_ context.Context, _ string, _ int) ([]models.DailyBar, error) {
			return nil, fmt.Errorf("down")
		},
	}
	manager := NewManager(&mockBarStore{}, []interfaces.HistoryProvider{failing}, nil, common.NewSilentLogger())

	_, _, err := manager.GetDailyData(context.Background(), "600519", 60)
	if !errors.Is(err, models.ErrSourceExhausted) {
		t.Errorf("expected ErrSourceExhausted, got %v", err)
	}
}

func TestGetRealtimeQuote_RotatesAndCaches(t *testing.T) {
	failing := &mockQuoteProvider{
		fetchFn: func(_ context.Context, _ string) (*models.QuoteRow, error) {
			return nil, fmt.Errorf("down")
		},
	}
	serving := &mockQuoteProvider{
		fetchFn: func(_ context.Context, symbol string) (*models.QuoteRow, error) {
			return &models.QuoteRow{Code: symbol, Price: 1705.0, ChangePct: 1.2}, nil
		},
	}
	manager := NewManager(&mockBarStore{}, nil, []QuoteSource{
		{Name: "eastmoney", Provider: failing},
		{Name: "tencent", Provider: serving},
	}, common.NewSilentLogger())

	quote, err := manager.GetRealtimeQuote(context.Background(), "600519")
	if err != nil {
		t.Fatalf("GetRealtimeQuote failed: %v", err)
	}
	if quote.Price != 1705.0 {
		t.Errorf("expected price 1705.0, got %.1f", quote.Price)
	}

	// Second lookup is served from the quote cache
	if _, err := manager.GetRealtimeQuote(context.Background(), "600519"); err != nil {
		t.Fatalf("cached GetRealtimeQuote failed: %v", err)
	}
	if failing.calls != 1 || serving.calls != 1 {
		t.Errorf("expected one fetch per source, got %d and %d", failing.calls, serving.calls)
	}
}

func TestGetRealtimeQuote_AllSourcesExhausted(t *testing.T) {
	failing := &mockQuoteProvider{
		fetchFn: func(_ context.Context, _ string) (*models.QuoteRow, error) {
			return nil, fmt.Errorf("down")
		},
	}
	manager := NewManager(&mockBarStore{}, nil, []QuoteSource{
		{Name: "eastmoney", Provider: failing},
	}, common.NewSilentLogger())

	_, err := manager.GetRealtimeQuote(context.Background(), "600519")
	if !errors.Is(err, models.ErrSourceExhausted) {
		t.Errorf("expected ErrSourceExhausted, got %v", err)
	}
}

func TestPrefetchRealtimeQuotes_CountsCoverage(t *testing.T) {
	serving := &mockQuoteProvider{
		fetchFn: func(_ context.Context, symbol string) (*models.QuoteRow, error) {
			if symbol == "000002" {
				return nil, fmt.Errorf("not served")
			}
			return &models.QuoteRow{Code: symbol, Price: 10.0}, nil
		},
	}
	manager := NewManager(&mockBarStore{}, nil, []QuoteSource{
		{Name: "tencent", Provider: serving},
	}, common.NewSilentLogger())

	covered, err := manager.PrefetchRealtimeQuotes(context.Background(), []string{"600519", "000001", "000002"})
	if err != nil {
		t.Fatalf("PrefetchRealtimeQuotes failed: %v", err)
	}
	if covered != 2 {
		t.Errorf("expected 2 covered, got %d", covered)
	}

	// Warmed symbols are served without another fetch
	fetchesBefore := serving.calls
	if _, err := manager.GetRealtimeQuote(context.Background(), "600519"); err != nil {
		t.Fatalf("GetRealtimeQuote after prefetch failed: %v", err)
	}
	if serving.calls != fetchesBefore {
		t.Errorf("expected cache hit after prefetch, got %d more fetches", serving.calls-fetchesBefore)
	}
}

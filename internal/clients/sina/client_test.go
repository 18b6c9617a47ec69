package sina

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/dawnsea/tidescan/internal/models"
)

const rankingPage = `[{symbol:"sh600519",code:"600519",name:"贵州茅台",trade:"1700.500",pricechange:"39.100",changepercent:"2.353",buy:"1700.000",sell:"1700.500",settlement:"1661.400",open:"1665.000",high:"1706.000",low:"1661.000",volume:3120000,amount:5200000000,ticktime:"15:00:00",per:32.5,pb:8.83,mktcap:213600000,nmc:213600000,turnoverratio:0.25},{symbol:"sz000001",code:"000001",name:"平安银行",trade:"11.200",pricechange:"-0.060",changepercent:"-0.533",buy:"11.190",sell:"11.200",settlement:"11.260",open:"11.250",high:"11.300",low:"11.150",volume:73200000,amount:820000000,ticktime:"15:00:00",per:5.1,pb:0.62,mktcap:21000000,nmc:19400000,turnoverratio:0.38}]`

func gbkEncode(t *testing.T, s string) []byte {
	t.Helper()
	out, _, err := transform.Bytes(simplifiedchinese.GBK.NewEncoder(), []byte(s))
	if err != nil {
		t.Fatalf("gbk encode failed: %v", err)
	}
	return out
}

func TestFetchSnapshot_ParsesGBKRanking(t *testing.T) {
	var capturedQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json; charset=GBK")
		w.Write(gbkEncode(t, rankingPage))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	snap, err := client.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot failed: %v", err)
	}

	if len(snap.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(snap.Rows))
	}
	if snap.Source != "sina" {
		t.Errorf("expected source sina, got %s", snap.Source)
	}
	if snap.HasVolumeRatio {
		t.Error("ranking snapshot must not claim volume-ratio signal")
	}

	row := snap.Rows[0]
	if row.Code != "600519" {
		t.Errorf("expected code 600519, got %s", row.Code)
	}
	if row.Name != "贵州茅台" {
		t.Errorf("expected GBK-decoded name 贵州茅台, got %s", row.Name)
	}
	if row.Price != 1700.5 {
		t.Errorf("expected price 1700.5, got %.3f", row.Price)
	}
	if row.ChangePct != 2.353 {
		t.Errorf("expected change 2.353, got %.3f", row.ChangePct)
	}
	if row.Turnover != 5200000000 {
		t.Errorf("expected turnover 5.2e9, got %.0f", row.Turnover)
	}
	if row.TurnoverRate != 0.25 {
		t.Errorf("expected turnover rate 0.25, got %.2f", row.TurnoverRate)
	}
	if row.PE != 32.5 {
		t.Errorf("expected pe 32.5, got %.1f", row.PE)
	}
	// mktcap arrives in 万元
	if row.MarketCap != 213600000*1e4 {
		t.Errorf("expected market cap 2.136e12, got %.0f", row.MarketCap)
	}
	if row.VolumeRatio != 0 {
		t.Errorf("expected raw volume ratio 0, got %.2f", row.VolumeRatio)
	}
	if row.Change60d != 0 {
		t.Errorf("expected raw 60d change 0, got %.2f", row.Change60d)
	}

	want := fmt.Sprintf("page=1&num=%d&sort=changepercent&asc=0&node=hs_a", DefaultPageSize)
	if capturedQuery != want {
		t.Errorf("expected query %s, got %s", want, capturedQuery)
	}
}

func TestFetchSnapshot_StopsOnNullPage(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json; charset=GBK")
		if r.URL.Query().Get("page") == "1" {
			w.Write(gbkEncode(t, rankingPage))
			return
		}
		w.Write([]byte("null"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithPageSize(2))
	snap, err := client.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot failed: %v", err)
	}

	if len(snap.Rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(snap.Rows))
	}
	if requests != 2 {
		t.Errorf("expected 2 page requests, got %d", requests)
	}
}

func TestFetchSnapshot_EmptyMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.FetchSnapshot(context.Background())
	if !errors.Is(err, models.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestFetchDailyBars_ParsesKlines(t *testing.T) {
	var capturedSymbol string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedSymbol = r.URL.Query().Get("symbol")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"day":"2026-01-05","open":"1690.000","high":"1705.000","low":"1688.200","close":"1700.500","volume":"3120000"},{"day":"2026-01-06","open":"1701.000","high":"1718.400","low":"1699.500","close":"1712.800","volume":"2890000"}]`)
	}))
	defer srv.Close()

	client := NewClient(WithKlineURL(srv.URL))
	bars, err := client.FetchDailyBars(context.Background(), "600519", 60)
	if err != nil {
		t.Fatalf("FetchDailyBars failed: %v", err)
	}

	if capturedSymbol != "sh600519" {
		t.Errorf("expected symbol sh600519, got %s", capturedSymbol)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}

	first := bars[0]
	if first.Date.Format("2006-01-02") != "2026-01-05" {
		t.Errorf("expected date 2026-01-05, got %s", first.Date.Format("2006-01-02"))
	}
	if first.Open != 1690.0 {
		t.Errorf("expected open 1690.0, got %.2f", first.Open)
	}
	if first.High != 1705.0 {
		t.Errorf("expected high 1705.0, got %.2f", first.High)
	}
	if first.Low != 1688.2 {
		t.Errorf("expected low 1688.2, got %.2f", first.Low)
	}
	if first.Close != 1700.5 {
		t.Errorf("expected close 1700.5, got %.2f", first.Close)
	}
	if first.Volume != 3120000 {
		t.Errorf("expected volume 3120000, got %d", first.Volume)
	}
}

func TestFetchDailyBars_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	client := NewClient(WithKlineURL(srv.URL))
	_, err := client.FetchDailyBars(context.Background(), "600519", 60)
	if !errors.Is(err, models.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestSymbol(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"600519", "sh600519"},
		{"601318", "sh601318"},
		{"000001", "sz000001"},
		{"300750", "sz300750"},
		{"sh600000", "sh600000"},
		{"SZ000002", "sz000002"},
	}

	for _, tt := range tests {
		if got := Symbol(tt.code); got != tt.want {
			t.Errorf("Symbol(%s): expected %s, got %s", tt.code, tt.want, got)
		}
	}
}

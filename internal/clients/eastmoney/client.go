// Package eastmoney provides a client for the EastMoney push2 quote API
package eastmoney

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/interfaces"
	"github.com/dawnsea/tidescan/internal/models"
)

const (
	DefaultBaseURL   = "https://push2.eastmoney.com"
	DefaultKlineURL  = "https://push2his.eastmoney.com"
	DefaultMirrorURL = "https://82.push2.eastmoney.com"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 5 // requests per second
	DefaultPageSize  = 500
	DefaultMaxPages  = 24
)

// Spot list fields: f12 code, f14 name, f2 price, f3 change pct, f6 amount,
// f8 turnover rate, f10 volume ratio, f9 PE, f20 market cap, f24 60d change.
const spotFields = "f12,f14,f2,f3,f6,f8,f10,f9,f20,f24"

// The 82 mirror serves a reduced column set without volume ratio, PE,
// market cap or 60d change.
const mirrorFields = "f12,f14,f2,f3,f6,f8"

// Main-board A shares on both exchanges.
const spotMarkets = "m:1+t:2,m:0+t:2"

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	referer   = "https://quote.eastmoney.com/"
)

// Client implements the SnapshotProvider, HistoryProvider and QuoteProvider
// interfaces against the EastMoney push2 endpoints.
type Client struct {
	name       string
	baseURL    string
	klineURL   string
	fields     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	pageSize   int
	maxPages   int
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the spot list base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithKlineURL sets the kline base URL
func WithKlineURL(klineURL string) ClientOption {
	return func(c *Client) {
		c.klineURL = strings.TrimRight(klineURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithPageSize sets the spot list page size
func WithPageSize(pageSize int) ClientOption {
	return func(c *Client) {
		if pageSize > 0 {
			c.pageSize = pageSize
		}
	}
}

// WithMaxPages caps the number of spot list pages fetched per snapshot
func WithMaxPages(maxPages int) ClientOption {
	return func(c *Client) {
		if maxPages > 0 {
			c.maxPages = maxPages
		}
	}
}

// NewClient creates a client for the primary push2 endpoint with the full
// column set.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		name:     "eastmoney",
		baseURL:  DefaultBaseURL,
		klineURL: DefaultKlineURL,
		fields:   spotFields,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:   common.NewSilentLogger(),
		pageSize: DefaultPageSize,
		maxPages: DefaultMaxPages,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewMirrorClient creates a client for the 82 mirror host. The mirror carries
// the reduced column set, so snapshots from it have no volume-ratio signal.
func NewMirrorClient(opts ...ClientOption) *Client {
	c := NewClient(opts...)
	c.name = "eastmoney82"
	c.fields = mirrorFields
	if c.baseURL == DefaultBaseURL {
		c.baseURL = DefaultMirrorURL
	}
	return c
}

// Name returns the provider name used in failover chains and logs
func (c *Client) Name() string {
	return c.name
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EastMoney API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request and returns the raw body
func (c *Client) get(ctx context.Context, reqURL string, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)

	c.logger.Debug().Str("endpoint", endpoint).Str("provider", c.name).Msg("EastMoney API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   endpoint,
		}
	}

	return body, nil
}

// FetchSnapshot retrieves the full main-board spot list, paging until the
// reported total is covered.
func (c *Client) FetchSnapshot(ctx context.Context) (*models.QuoteSnapshot, error) {
	var rows []models.QuoteRow
	hasVolumeRatio := false

	for page := 1; page <= c.maxPages; page++ {
		reqURL := fmt.Sprintf("%s/api/qt/clist/get?pn=%d&pz=%d&fs=%s&fields=%s",
			c.baseURL, page, c.pageSize, spotMarkets, c.fields)

		body, err := c.get(ctx, reqURL, "/api/qt/clist/get")
		if err != nil {
			return nil, err
		}

		diff := gjson.GetBytes(body, "data.diff")
		if !diff.Exists() {
			if page == 1 {
				return nil, fmt.Errorf("spot list: missing data.diff: %w", models.ErrNoData)
			}
			break
		}

		count := 0
		diff.ForEach(func(_, item gjson.Result) bool {
			row, ok := parseSpotRow(item)
			if !ok {
				return true
			}
			if row.VolumeRatio > 0 {
				hasVolumeRatio = true
			}
			rows = append(rows, row)
			count++
			return true
		})

		total := int(gjson.GetBytes(body, "data.total").Int())
		if count == 0 || count < c.pageSize || (total > 0 && len(rows) >= total) {
			break
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("spot list: empty result: %w", models.ErrNoData)
	}

	c.logger.Debug().Int("rows", len(rows)).Str("provider", c.name).Msg("EastMoney spot snapshot fetched")

	return &models.QuoteSnapshot{
		Rows:           rows,
		Source:         c.name,
		FetchedAt:      time.Now(),
		HasVolumeRatio: hasVolumeRatio,
	}, nil
}

// parseSpotRow converts one data.diff entry. Suspended stocks report "-" for
// numeric fields, which gjson reads as 0; those rows survive here and are
// dropped later by the price filter.
func parseSpotRow(item gjson.Result) (models.QuoteRow, bool) {
	code := strings.TrimSpace(item.Get("f12").String())
	if code == "" {
		return models.QuoteRow{}, false
	}
	return models.QuoteRow{
		Code:         code,
		Name:         strings.TrimSpace(item.Get("f14").String()),
		Price:        item.Get("f2").Float(),
		ChangePct:    item.Get("f3").Float(),
		Turnover:     item.Get("f6").Float(),
		TurnoverRate: item.Get("f8").Float(),
		VolumeRatio:  item.Get("f10").Float(),
		PE:           item.Get("f9").Float(),
		MarketCap:    item.Get("f20").Float(),
		Change60d:    item.Get("f24").Float(),
	}, true
}

// FetchDailyBars retrieves up to days forward-adjusted daily klines for one
// symbol, oldest first.
func (c *Client) FetchDailyBars(ctx context.Context, symbol string, days int) ([]models.DailyBar, error) {
	if days <= 0 {
		return nil, fmt.Errorf("invalid days %d", days)
	}

	reqURL := fmt.Sprintf("%s/api/qt/stock/kline/get?secid=%s&fields1=f1,f2,f3,f4,f5,f6&fields2=f51,f52,f53,f54,f55,f56&klt=101&fqt=1&lmt=%d",
		c.klineURL, SecID(symbol), days)

	body, err := c.get(ctx, reqURL, "/api/qt/stock/kline/get")
	if err != nil {
		return nil, err
	}

	klines := gjson.GetBytes(body, "data.klines")
	if !klines.Exists() || !klines.IsArray() {
		return nil, fmt.Errorf("kline %s: missing data.klines: %w", symbol, models.ErrNoData)
	}

	bars := make([]models.DailyBar, 0, days)
	for _, line := range klines.Array() {
		bar, ok := parseKline(line.String())
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("kline %s: empty result: %w", symbol, models.ErrNoData)
	}

	return bars, nil
}

// parseKline splits one "date,open,close,high,low,volume" kline row
func parseKline(line string) (models.DailyBar, bool) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) < 6 {
		return models.DailyBar{}, false
	}

	date, err := time.Parse("2006-01-02", parts[0])
	if err != nil {
		return models.DailyBar{}, false
	}

	open, _ := strconv.ParseFloat(parts[1], 64)
	closePrice, _ := strconv.ParseFloat(parts[2], 64)
	high, _ := strconv.ParseFloat(parts[3], 64)
	low, _ := strconv.ParseFloat(parts[4], 64)
	volume, _ := strconv.ParseInt(parts[5], 10, 64)

	return models.DailyBar{
		Date:   date,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, true
}

// FetchQuote retrieves a realtime quote for a single symbol via the ulist
// endpoint, reusing the spot column set.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*models.QuoteRow, error) {
	reqURL := fmt.Sprintf("%s/api/qt/ulist.np/get?secids=%s&fields=%s",
		c.baseURL, SecID(symbol), spotFields)

	body, err := c.get(ctx, reqURL, "/api/qt/ulist.np/get")
	if err != nil {
		return nil, err
	}

	diff := gjson.GetBytes(body, "data.diff")
	if !diff.Exists() {
		return nil, fmt.Errorf("quote %s: missing data.diff: %w", symbol, models.ErrNoData)
	}

	var row models.QuoteRow
	found := false
	diff.ForEach(func(_, item gjson.Result) bool {
		r, ok := parseSpotRow(item)
		if !ok {
			return true
		}
		row = r
		found = true
		return false
	})

	if !found {
		return nil, fmt.Errorf("quote %s: empty result: %w", symbol, models.ErrNoData)
	}

	return &row, nil
}

// SecID converts a bare A-share code to the push2 secid form: Shanghai codes
// (6xxxxx) map to market 1, Shenzhen codes to market 0.
func SecID(symbol string) string {
	code := strings.TrimSpace(symbol)
	code = strings.TrimPrefix(strings.TrimPrefix(code, "sh"), "sz")
	if strings.HasPrefix(code, "6") {
		return "1." + code
	}
	return "0." + code
}

// Ensure Client implements the provider interfaces
var (
	_ interfaces.SnapshotProvider = (*Client)(nil)
	_ interfaces.HistoryProvider  = (*Client)(nil)
	_ interfaces.QuoteProvider    = (*Client)(nil)
)

// Package sina provides a client for the Sina Finance quote APIs
package sina

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/interfaces"
	"github.com/dawnsea/tidescan/internal/models"
)

const (
	DefaultBaseURL   = "https://vip.stock.finance.sina.com.cn"
	DefaultKlineURL  = "https://money.finance.sina.com.cn"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 3 // requests per second
	DefaultPageSize  = 80
	DefaultMaxPages  = 80
)

const referer = "https://finance.sina.com.cn"

// The ranking endpoint emits JS object literals with unquoted keys. Values on
// it are quoted strings or plain numbers, so quoting every key after '{' or
// ',' yields valid JSON.
var bareKeyPattern = regexp.MustCompile(`([{,])(\w+):`)

// Client implements the SnapshotProvider and HistoryProvider interfaces
// against the Sina Finance ranking and kline endpoints. The ranking API has
// no volume-ratio or 60d-change columns, so snapshots from it carry no
// volume-ratio signal.
type Client struct {
	baseURL    string
	klineURL   string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	pageSize   int
	maxPages   int
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the ranking base URL
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

// WithPageSize sets the ranking page size
func WithPageSize(pageSize int) ClientOption {
	return func(c *Client) {
		if pageSize > 0 {
			c.pageSize = pageSize
		}
	}
}

// WithMaxPages caps the number of ranking pages fetched per snapshot
func WithMaxPages(maxPages int) ClientOption {
	return func(c *Client) {
		if maxPages > 0 {
			c.maxPages = maxPages
		}
	}
}

// NewClient creates a new Sina Finance client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		klineURL: DefaultKlineURL,
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

// Name returns the provider name used in failover chains and logs
func (c *Client) Name() string {
	return "sina"
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Sina API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request. Sina serves the ranking endpoint
// GBK-encoded; decodeGBK transcodes the body to UTF-8 on the way in.
func (c *Client) get(ctx context.Context, reqURL string, endpoint string, decodeGBK bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Referer", referer)

	c.logger.Debug().Str("endpoint", endpoint).Msg("Sina API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if decodeGBK {
		reader = transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder())
	}

	body, err := io.ReadAll(reader)
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

// FetchSnapshot retrieves the A-share ranking list page by page. Market cap
// arrives in 万元 and is converted to 元; volume ratio and 60d change are not
// served and stay zero for later defaulting.
func (c *Client) FetchSnapshot(ctx context.Context) (*models.QuoteSnapshot, error) {
	var rows []models.QuoteRow

	for page := 1; page <= c.maxPages; page++ {
		reqURL := fmt.Sprintf("%s/quotes_service/api/json_v2.php/Market_Center.getHQNodeData?page=%d&num=%d&sort=changepercent&asc=0&node=hs_a",
			c.baseURL, page, c.pageSize)

		body, err := c.get(ctx, reqURL, "Market_Center.getHQNodeData", true)
		if err != nil {
			return nil, err
		}

		count := c.appendRankingRows(body, &rows)
		if count == 0 || count < c.pageSize {
			break
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("ranking list: empty result: %w", models.ErrNoData)
	}

	c.logger.Debug().Int("rows", len(rows)).Msg("Sina ranking snapshot fetched")

	return &models.QuoteSnapshot{
		Rows:           rows,
		Source:         "sina",
		FetchedAt:      time.Now(),
		HasVolumeRatio: false,
	}, nil
}

func (c *Client) appendRankingRows(body []byte, rows *[]models.QuoteRow) int {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" || trimmed == "[]" {
		return 0
	}

	parsed := gjson.Parse(bareKeyPattern.ReplaceAllString(trimmed, `$1"$2":`))
	if !parsed.IsArray() {
		return 0
	}

	count := 0
	parsed.ForEach(func(_, item gjson.Result) bool {
		code := strings.TrimSpace(item.Get("code").String())
		if code == "" {
			return true
		}
		*rows = append(*rows, models.QuoteRow{
			Code:         code,
			Name:         strings.TrimSpace(item.Get("name").String()),
			Price:        item.Get("trade").Float(),
			ChangePct:    item.Get("changepercent").Float(),
			Turnover:     item.Get("amount").Float(),
			TurnoverRate: item.Get("turnoverratio").Float(),
			PE:           item.Get("per").Float(),
			MarketCap:    item.Get("mktcap").Float() * 1e4,
		})
		count++
		return true
	})
	return count
}

// FetchDailyBars retrieves up to days daily klines for one symbol, oldest
// first. scale=240 selects the daily interval.
func (c *Client) FetchDailyBars(ctx context.Context, symbol string, days int) ([]models.DailyBar, error) {
	if days <= 0 {
		return nil, fmt.Errorf("invalid days %d", days)
	}

	reqURL := fmt.Sprintf("%s/quotes_service/api/json_v2.php/CN_MarketData.getKLineData?symbol=%s&scale=240&ma=no&datalen=%d",
		c.klineURL, Symbol(symbol), days)

	body, err := c.get(ctx, reqURL, "CN_MarketData.getKLineData", false)
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("kline %s: unexpected response: %w", symbol, models.ErrNoData)
	}

	bars := make([]models.DailyBar, 0, days)
	parsed.ForEach(func(_, item gjson.Result) bool {
		day := item.Get("day").String()
		if day == "" {
			return true
		}
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			// intraday scales append a time component
			date, err = time.Parse("2006-01-02 15:04:05", day)
			if err != nil {
				return true
			}
		}
		bars = append(bars, models.DailyBar{
			Date:   date,
			Open:   item.Get("open").Float(),
			High:   item.Get("high").Float(),
			Low:    item.Get("low").Float(),
			Close:  item.Get("close").Float(),
			Volume: item.Get("volume").Int(),
		})
		return true
	})

	if len(bars) == 0 {
		return nil, fmt.Errorf("kline %s: empty result: %w", symbol, models.ErrNoData)
	}

	return bars, nil
}

// Symbol converts a bare A-share code to the Sina symbol form: sh600519,
// sz000001. Already-prefixed symbols pass through unchanged.
func Symbol(code string) string {
	code = strings.TrimSpace(strings.ToLower(code))
	if strings.HasPrefix(code, "sh") || strings.HasPrefix(code, "sz") {
		return code
	}
	if strings.HasPrefix(code, "6") {
		return "sh" + code
	}
	return "sz" + code
}

// Ensure Client implements the provider interfaces
var (
	_ interfaces.SnapshotProvider = (*Client)(nil)
	_ interfaces.HistoryProvider  = (*Client)(nil)
)

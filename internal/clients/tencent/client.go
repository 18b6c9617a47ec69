// Package tencent provides a client for the Tencent gtimg batch quote API
package tencent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/interfaces"
	"github.com/dawnsea/tidescan/internal/models"
)

const (
	DefaultBaseURL   = "https://qt.gtimg.cn"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 10 // requests per second
	DefaultBatchSize = 60
)

// Quote line field positions after splitting on '~'. The endpoint serves a
// fixed positional record per symbol.
const (
	fieldName         = 1
	fieldCode         = 2
	fieldPrice        = 3
	fieldChangePct    = 32
	fieldAmount       = 37 // 万元
	fieldTurnoverRate = 38
	fieldPE           = 39
	fieldMarketCap    = 45 // 亿元
	fieldVolumeRatio  = 49
	minFields         = 50
)

// UniverseFunc supplies the symbol universe for a full-market snapshot,
// normally backed by the persisted instrument index.
type UniverseFunc func(ctx context.Context) ([]string, error)

// Client implements the SnapshotProvider and QuoteProvider interfaces against
// the gtimg quote endpoint. Unlike the list providers it has no market-wide
// listing, so snapshots require a universe source; an empty universe is an
// error and the failover chain moves on.
type Client struct {
	baseURL    string
	universe   UniverseFunc
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	batchSize  int
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
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

// WithBatchSize sets the number of symbols per quote request
func WithBatchSize(batchSize int) ClientOption {
	return func(c *Client) {
		if batchSize > 0 {
			c.batchSize = batchSize
		}
	}
}

// NewClient creates a new Tencent quote client
func NewClient(universe UniverseFunc, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		universe: universe,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:   rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:    common.NewSilentLogger(),
		batchSize: DefaultBatchSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the provider name used in failover chains and logs
func (c *Client) Name() string {
	return "tencent"
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Tencent API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request and transcodes the GBK body
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   "/q",
		}
	}

	return body, nil
}

// FetchSnapshot quotes the whole instrument universe in batches. The gtimg
// record has no 60d-change column, so that field stays zero for later
// defaulting.
func (c *Client) FetchSnapshot(ctx context.Context) (*models.QuoteSnapshot, error) {
	if c.universe == nil {
		return nil, fmt.Errorf("no universe source configured: %w", models.ErrNoData)
	}

	codes, err := c.universe(ctx)
	if err != nil {
		return nil, fmt.Errorf("universe lookup: %w", err)
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("instrument index empty: %w", models.ErrNoData)
	}

	var rows []models.QuoteRow
	hasVolumeRatio := false

	for start := 0; start < len(codes); start += c.batchSize {
		end := start + c.batchSize
		if end > len(codes) {
			end = len(codes)
		}

		batch, err := c.fetchBatch(ctx, codes[start:end])
		if err != nil {
			return nil, err
		}
		for _, row := range batch {
			if row.VolumeRatio > 0 {
				hasVolumeRatio = true
			}
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("batch quotes: empty result: %w", models.ErrNoData)
	}

	c.logger.Debug().Int("rows", len(rows)).Int("universe", len(codes)).Msg("Tencent batch snapshot fetched")

	return &models.QuoteSnapshot{
		Rows:           rows,
		Source:         "tencent",
		FetchedAt:      time.Now(),
		HasVolumeRatio: hasVolumeRatio,
	}, nil
}

func (c *Client) fetchBatch(ctx context.Context, codes []string) ([]models.QuoteRow, error) {
	symbols := make([]string, len(codes))
	for i, code := range codes {
		symbols[i] = marketSymbol(code)
	}

	reqURL := fmt.Sprintf("%s/q=%s", c.baseURL, strings.Join(symbols, ","))
	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	return parseQuoteLines(string(body)), nil
}

// parseQuoteLines extracts rows from v_shXXXXXX="..."; assignments. Lines
// with too few fields (delisted symbols, index entries) are skipped.
func parseQuoteLines(body string) []models.QuoteRow {
	var rows []models.QuoteRow
	for _, line := range strings.Split(body, ";") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "v_") {
			continue
		}
		quoted := strings.SplitN(line, "\"", 3)
		if len(quoted) < 2 {
			continue
		}
		fields := strings.Split(quoted[1], "~")
		if len(fields) < minFields {
			continue
		}
		code := strings.TrimSpace(fields[fieldCode])
		if code == "" {
			continue
		}
		rows = append(rows, models.QuoteRow{
			Code:         code,
			Name:         strings.TrimSpace(fields[fieldName]),
			Price:        parseFloat(fields[fieldPrice]),
			ChangePct:    parseFloat(fields[fieldChangePct]),
			Turnover:     parseFloat(fields[fieldAmount]) * 1e4,
			TurnoverRate: parseFloat(fields[fieldTurnoverRate]),
			PE:           parseFloat(fields[fieldPE]),
			MarketCap:    parseFloat(fields[fieldMarketCap]) * 1e8,
			VolumeRatio:  parseFloat(fields[fieldVolumeRatio]),
		})
	}
	return rows
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

// FetchQuote retrieves a realtime quote for a single symbol
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*models.QuoteRow, error) {
	rows, err := c.fetchBatch(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("quote %s: empty result: %w", symbol, models.ErrNoData)
	}
	return &rows[0], nil
}

// marketSymbol converts a bare A-share code to the gtimg symbol form:
// sh600519, sz000001.
func marketSymbol(code string) string {
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
	_ interfaces.QuoteProvider    = (*Client)(nil)
)

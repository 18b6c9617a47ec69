// Package webhook provides a WeCom group-robot notifier
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/interfaces"
)

const (
	DefaultTimeout = 10 * time.Second

	// WeCom rejects markdown payloads over 4096 bytes; leave headroom for
	// the JSON envelope.
	MaxContentBytes = 4000

	// Group robots are throttled to 20 messages per minute.
	defaultSendInterval = 3 * time.Second
)

// ClientOption configures the notifier
type ClientOption func(*Notifier)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(n *Notifier) {
		n.httpClient.Timeout = timeout
	}
}

// WithSendInterval overrides the minimum interval between messages
func WithSendInterval(interval time.Duration) ClientOption {
	return func(n *Notifier) {
		if interval > 0 {
			n.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// Notifier posts markdown messages to a WeCom group-robot webhook. An empty
// webhook URL disables sending; Send becomes a logged no-op so callers never
// need to special-case unconfigured notification.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// NewNotifier creates a new WeCom webhook notifier
func NewNotifier(webhookURL string, opts ...ClientOption) *Notifier {
	n := &Notifier{
		webhookURL: strings.TrimSpace(webhookURL),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:  common.NewSilentLogger(),
		limiter: rate.NewLimiter(rate.Every(defaultSendInterval), 1),
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Enabled reports whether a webhook URL is configured
func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

// Send delivers a markdown report, splitting content over the WeCom size
// limit into multiple messages on line boundaries.
func (n *Notifier) Send(ctx context.Context, content string) error {
	if !n.Enabled() {
		n.logger.Debug().Msg("Webhook not configured, skipping notification")
		return nil
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}

	for i, chunk := range splitContent(content, MaxContentBytes) {
		if err := n.sendChunk(ctx, chunk); err != nil {
			return fmt.Errorf("send chunk %d: %w", i+1, err)
		}
	}
	return nil
}

type markdownMessage struct {
	MsgType  string `json:"msgtype"`
	Markdown struct {
		Content string `json:"content"`
	} `json:"markdown"`
}

func (n *Notifier) sendChunk(ctx context.Context, content string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	msg := markdownMessage{MsgType: "markdown"}
	msg.Markdown.Content = content

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	if errcode := gjson.GetBytes(body, "errcode").Int(); errcode != 0 {
		return fmt.Errorf("webhook error %d: %s", errcode, gjson.GetBytes(body, "errmsg").String())
	}

	n.logger.Debug().Int("bytes", len(content)).Msg("Webhook notification sent")
	return nil
}

// splitContent breaks content into byte-limited chunks, preferring line
// boundaries. A single line over the limit is split mid-line.
func splitContent(content string, limit int) []string {
	if len(content) <= limit {
		return []string{content}
	}

	var chunks []string
	var current strings.Builder
	for _, line := range strings.Split(content, "\n") {
		for len(line) > limit {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, line[:limit])
			line = line[limit:]
		}
		// +1 for the newline separator
		if current.Len() > 0 && current.Len()+len(line)+1 > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// Ensure Notifier implements the Notifier interface
var _ interfaces.Notifier = (*Notifier)(nil)

// Package gemini provides a client for the Google Gemini API
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/interfaces"
)

const (
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 120 * time.Second
)

// Client implements the Analyzer interface on top of the Gemini API
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout caps the time spent on a single generation call
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client:  genaiClient,
		model:   DefaultModel,
		timeout: DefaultTimeout,
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// GenerateContent generates AI content from a prompt
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug().Str("model", c.model).Msg("Generating content")

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	contents := genai.Text(prompt)
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return extractTextFromResponse(result)
}

// Analyze produces a per-stock analysis report from the prepared technical
// context and optional news digest.
func (c *Client) Analyze(ctx context.Context, analysisContext string, newsContext string) (string, error) {
	prompt := buildAnalysisPrompt(analysisContext, newsContext)
	return c.GenerateContent(ctx, prompt)
}

// buildAnalysisPrompt assembles the Chinese analysis prompt around the
// caller-built context blocks
func buildAnalysisPrompt(analysisContext string, newsContext string) string {
	var sb strings.Builder
	sb.WriteString("你是一位专业的A股分析师。请根据以下数据对该股票进行综合分析。\n\n")
	sb.WriteString("## 技术面数据\n")
	sb.WriteString(analysisContext)
	sb.WriteString("\n")

	if newsContext != "" {
		sb.WriteString("\n## 近期消息面\n")
		sb.WriteString(newsContext)
		sb.WriteString("\n")
	}

	sb.WriteString(`
请按以下结构输出简洁的分析报告：
1. 量价表现：结合量比、换手率点评当日量价配合情况
2. 趋势研判：基于均线排列、MACD、RSI 给出短期趋势判断
3. 风险提示：指出需要警惕的信号
4. 操作参考：给出观望/关注/注意风险的倾向性结论（不构成投资建议）

要求：中文输出，总长度控制在 300 字以内。`)

	return sb.String()
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}

	return text, nil
}

// Ensure Client implements Analyzer
var _ interfaces.Analyzer = (*Client)(nil)

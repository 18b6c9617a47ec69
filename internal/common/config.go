// Package common provides shared utilities for Tidescan
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Tidescan
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Market      MarketConfig    `toml:"market"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Clients     ClientsConfig   `toml:"clients"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	AuthTokenSecret string `toml:"auth_token_secret"` // HMAC secret for bearer tokens; empty disables auth
}

// StorageConfig holds paths for the two storage areas.
type StorageConfig struct {
	Data    AreaConfig `toml:"data"`    // BadgerHold database (bars, analysis history, indexes)
	Reports AreaConfig `toml:"reports"` // Rendered report files and charts
}

// AreaConfig holds path configuration for a storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// MarketConfig holds market screening configuration
type MarketConfig struct {
	SnapshotTTL       string   `toml:"snapshot_ttl"`       // full-market snapshot cache validity, default "300s"
	Providers         []string `toml:"providers"`          // snapshot provider chain, tried in order
	MaxCandidates     int      `toml:"max_candidates"`     // funnel pool cap
	HistoryDays       int      `toml:"history_days"`       // daily bars requested per candidate
	ScreenConcurrency int      `toml:"screen_concurrency"` // concurrent history fetches during screening
}

// GetSnapshotTTL parses and returns the snapshot TTL duration
func (c *MarketConfig) GetSnapshotTTL() time.Duration {
	d, err := time.ParseDuration(c.SnapshotTTL)
	if err != nil {
		return 300 * time.Second
	}
	return d
}

// PipelineConfig holds analysis pipeline configuration
type PipelineConfig struct {
	MaxWorkers        int    `toml:"max_workers"`        // bounded worker pool size
	AnalysisDelay     string `toml:"analysis_delay"`     // pause between task completions, default "0s"
	PrefetchThreshold int    `toml:"prefetch_threshold"` // minimum batch size that triggers a snapshot prefetch
}

// GetAnalysisDelay parses and returns the inter-task delay duration
func (c *PipelineConfig) GetAnalysisDelay() time.Duration {
	d, err := time.ParseDuration(c.AnalysisDelay)
	if err != nil {
		return 0
	}
	return d
}

// SchedulerConfig holds background refresh configuration
type SchedulerConfig struct {
	WarmSnapshot   bool   `toml:"warm_snapshot"`   // fetch a market snapshot at startup
	ScreenInterval string `toml:"screen_interval"` // periodic screen refresh, empty disables
}

// GetScreenInterval parses and returns the screen refresh interval (0 = disabled)
func (c *SchedulerConfig) GetScreenInterval() time.Duration {
	if c.ScreenInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.ScreenInterval)
	if err != nil {
		return 0
	}
	return d
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EastMoney EastMoneyConfig `toml:"eastmoney"`
	Sina      SinaConfig      `toml:"sina"`
	Tencent   TencentConfig   `toml:"tencent"`
	Gemini    GeminiConfig    `toml:"gemini"`
	Webhook   WebhookConfig   `toml:"webhook"`
}

// EastMoneyConfig holds EastMoney push2 API configuration
type EastMoneyConfig struct {
	BaseURL    string `toml:"base_url"`
	KlineURL   string `toml:"kline_url"`
	MirrorURL  string `toml:"mirror_url"` // last-resort host with a reduced field set
	RateLimit  int    `toml:"rate_limit"`
	Timeout    string `toml:"timeout"`
	PageSize   int    `toml:"page_size"`
	MaxPages   int    `toml:"max_pages"`
	MaxRetries int    `toml:"max_retries"`
}

// GetTimeout parses and returns the timeout duration
func (c *EastMoneyConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SinaConfig holds Sina finance API configuration
type SinaConfig struct {
	BaseURL   string `toml:"base_url"`
	KlineURL  string `toml:"kline_url"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
	PageSize  int    `toml:"page_size"`
	MaxPages  int    `toml:"max_pages"`
}

// GetTimeout parses and returns the timeout duration
func (c *SinaConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// TencentConfig holds Tencent quote API configuration
type TencentConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
	BatchSize int    `toml:"batch_size"`
}

// GetTimeout parses and returns the timeout duration
func (c *TencentConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *GeminiConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// WebhookConfig holds notification webhook configuration
type WebhookConfig struct {
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *WebhookConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Data:    AreaConfig{Path: "data/db"},
			Reports: AreaConfig{Path: "data/reports"},
		},
		Market: MarketConfig{
			SnapshotTTL:       "300s",
			Providers:         []string{"eastmoney", "tencent", "eastmoney82", "sina"},
			MaxCandidates:     150,
			HistoryDays:       60,
			ScreenConcurrency: 3,
		},
		Pipeline: PipelineConfig{
			MaxWorkers:        3,
			AnalysisDelay:     "0s",
			PrefetchThreshold: 5,
		},
		Scheduler: SchedulerConfig{
			WarmSnapshot:   false,
			ScreenInterval: "",
		},
		Clients: ClientsConfig{
			EastMoney: EastMoneyConfig{
				BaseURL:    "https://push2.eastmoney.com",
				KlineURL:   "https://push2his.eastmoney.com",
				MirrorURL:  "https://82.push2.eastmoney.com",
				RateLimit:  5,
				Timeout:    "30s",
				PageSize:   500,
				MaxPages:   12,
				MaxRetries: 3,
			},
			Sina: SinaConfig{
				BaseURL:   "https://vip.stock.finance.sina.com.cn",
				KlineURL:  "https://money.finance.sina.com.cn",
				RateLimit: 3,
				Timeout:   "30s",
				PageSize:  80,
				MaxPages:  60,
			},
			Tencent: TencentConfig{
				BaseURL:   "https://qt.gtimg.cn",
				RateLimit: 3,
				Timeout:   "30s",
				BatchSize: 60,
			},
			Gemini: GeminiConfig{
				Model:   "gemini-2.5-flash",
				Timeout: "120s",
			},
			Webhook: WebhookConfig{
				Timeout: "15s",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TIDESCAN_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("TIDESCAN_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("TIDESCAN_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("TIDESCAN_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("TIDESCAN_DATA_PATH"); path != "" {
		config.Storage.Data.Path = filepath.Join(path, "db")
		config.Storage.Reports.Path = filepath.Join(path, "reports")
	}

	if secret := os.Getenv("TIDESCAN_AUTH_TOKEN_SECRET"); secret != "" {
		config.Server.AuthTokenSecret = secret
	}

	if url := os.Getenv("TIDESCAN_WEBHOOK_URL"); url != "" {
		config.Clients.Webhook.URL = url
	}

	if providers := os.Getenv("TIDESCAN_MARKET_PROVIDERS"); providers != "" {
		var chain []string
		for _, p := range strings.Split(providers, ",") {
			if p = strings.TrimSpace(p); p != "" {
				chain = append(chain, p)
			}
		}
		if len(chain) > 0 {
			config.Market.Providers = chain
		}
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveAPIKey resolves an API key from environment variables or the config fallback
func ResolveAPIKey(name string, fallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key": {"GEMINI_API_KEY", "TIDESCAN_GEMINI_API_KEY", "GOOGLE_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

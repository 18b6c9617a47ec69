package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dawnsea/tidescan/internal/clients/eastmoney"
	"github.com/dawnsea/tidescan/internal/clients/gemini"
	"github.com/dawnsea/tidescan/internal/clients/sina"
	"github.com/dawnsea/tidescan/internal/clients/tencent"
	"github.com/dawnsea/tidescan/internal/clients/webhook"
	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/interfaces"
	"github.com/dawnsea/tidescan/internal/services/history"
	"github.com/dawnsea/tidescan/internal/services/market"
	"github.com/dawnsea/tidescan/internal/services/pipeline"
	"github.com/dawnsea/tidescan/internal/services/quote"
	"github.com/dawnsea/tidescan/internal/services/report"
	"github.com/dawnsea/tidescan/internal/storage"
)

// App holds the initialized storage, clients, and services. It is the
// shared core wired once at startup and handed to the HTTP server.
type App struct {
	Config          *common.Config
	Logger          *common.Logger
	Storage         interfaces.StorageManager
	History         interfaces.HistoryManager
	QuoteService    interfaces.QuoteService
	MarketService   interfaces.MarketService
	ReportService   interfaces.ReportService
	PipelineService interfaces.PipelineService
	StartupTime     time.Time

	schedulerCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, clients, and services in dependency order.
// configPath may be empty, in which case the default resolution logic is
// used: TIDESCAN_CONFIG, then tidescan.toml beside the binary, then
// config/tidescan.toml.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("TIDESCAN_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "tidescan.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/tidescan.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage paths to the binary directory
	if config.Storage.Data.Path != "" && !filepath.IsAbs(config.Storage.Data.Path) {
		config.Storage.Data.Path = filepath.Join(binDir, config.Storage.Data.Path)
	}
	if config.Storage.Reports.Path != "" && !filepath.IsAbs(config.Storage.Reports.Path) {
		config.Storage.Reports.Path = filepath.Join(binDir, config.Storage.Reports.Path)
	}

	logger := common.NewLogger(config.Logging.Level)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ctx := context.Background()

	geminiKey, err := common.ResolveAPIKey("gemini_api_key", config.Clients.Gemini.APIKey)
	if err != nil {
		logger.Warn().Msg("Gemini API key not configured - analysis runs produce data-only results")
	}

	// Initialize API clients
	emConfig := config.Clients.EastMoney
	emClient := eastmoney.NewClient(
		eastmoney.WithLogger(logger),
		eastmoney.WithBaseURL(emConfig.BaseURL),
		eastmoney.WithKlineURL(emConfig.KlineURL),
		eastmoney.WithRateLimit(emConfig.RateLimit),
		eastmoney.WithTimeout(emConfig.GetTimeout()),
		eastmoney.WithPageSize(emConfig.PageSize),
		eastmoney.WithMaxPages(emConfig.MaxPages),
	)
	emMirror := eastmoney.NewMirrorClient(
		eastmoney.WithLogger(logger),
		eastmoney.WithBaseURL(emConfig.MirrorURL),
		eastmoney.WithKlineURL(emConfig.KlineURL),
		eastmoney.WithRateLimit(emConfig.RateLimit),
		eastmoney.WithTimeout(emConfig.GetTimeout()),
		eastmoney.WithPageSize(emConfig.PageSize),
		eastmoney.WithMaxPages(emConfig.MaxPages),
	)

	sinaConfig := config.Clients.Sina
	sinaClient := sina.NewClient(
		sina.WithLogger(logger),
		sina.WithBaseURL(sinaConfig.BaseURL),
		sina.WithKlineURL(sinaConfig.KlineURL),
		sina.WithRateLimit(sinaConfig.RateLimit),
		sina.WithTimeout(sinaConfig.GetTimeout()),
		sina.WithPageSize(sinaConfig.PageSize),
		sina.WithMaxPages(sinaConfig.MaxPages),
	)

	// The tencent batch API needs a symbol universe; the instrument index
	// accumulated from snapshots provides it.
	instruments := storageManager.InstrumentStore()
	universe := func(ctx context.Context) ([]string, error) {
		return instruments.ListCodes(ctx)
	}
	tencentConfig := config.Clients.Tencent
	tencentClient := tencent.NewClient(universe,
		tencent.WithLogger(logger),
		tencent.WithBaseURL(tencentConfig.BaseURL),
		tencent.WithRateLimit(tencentConfig.RateLimit),
		tencent.WithTimeout(tencentConfig.GetTimeout()),
		tencent.WithBatchSize(tencentConfig.BatchSize),
	)

	var geminiClient *gemini.Client
	if geminiKey != "" {
		geminiClient, err = gemini.NewClient(ctx, geminiKey,
			gemini.WithLogger(logger),
			gemini.WithModel(config.Clients.Gemini.Model),
			gemini.WithTimeout(config.Clients.Gemini.GetTimeout()),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client")
		}
	}

	var notifier *webhook.Notifier
	if config.Clients.Webhook.URL != "" {
		notifier = webhook.NewNotifier(config.Clients.Webhook.URL,
			webhook.WithLogger(logger),
			webhook.WithTimeout(config.Clients.Webhook.GetTimeout()),
		)
	}

	// Initialize services in dependency order
	historyManager := history.NewManager(
		storageManager.BarStore(),
		[]interfaces.HistoryProvider{emClient, sinaClient},
		[]history.QuoteSource{
			{Name: tencentClient.Name(), Provider: tencentClient},
			{Name: emClient.Name(), Provider: emClient},
		},
		logger,
	)

	snapshotCache := quote.NewSnapshotCache(config.Market.GetSnapshotTTL())
	quoteService := quote.NewService(
		snapshotChain(config.Market.Providers, emClient, emMirror, tencentClient, sinaClient, logger),
		historyManager,
		instruments,
		snapshotCache,
		logger,
	)

	marketService := market.NewService(quoteService, storageManager.ScreenStore(), &config.Market, logger)
	reportService := report.NewService(logger)

	pipelineService := pipeline.NewService(storageManager, historyManager, marketService, reportService, &config.Pipeline, logger)
	if geminiClient != nil {
		pipelineService.SetAnalyzer(geminiClient)
	}
	if notifier != nil {
		pipelineService.SetNotifier(notifier)
	}

	a := &App{
		Config:          config,
		Logger:          logger,
		Storage:         storageManager,
		History:         historyManager,
		QuoteService:    quoteService,
		MarketService:   marketService,
		ReportService:   reportService,
		PipelineService: pipelineService,
		StartupTime:     startupStart,
	}

	logger.Info().
		Bool("gemini", geminiClient != nil).
		Bool("webhook", notifier != nil).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// snapshotChain maps configured provider names to clients, preserving the
// configured failover order. Unknown names are logged and skipped.
func snapshotChain(names []string, em, mirror, tc, sn interfaces.SnapshotProvider, logger *common.Logger) []interfaces.SnapshotProvider {
	var chain []interfaces.SnapshotProvider
	for _, name := range names {
		switch name {
		case "eastmoney":
			chain = append(chain, em)
		case "eastmoney82":
			chain = append(chain, mirror)
		case "tencent":
			chain = append(chain, tc)
		case "sina":
			chain = append(chain, sn)
		default:
			logger.Warn().Str("provider", name).Msg("Unknown snapshot provider in config, skipping")
		}
	}
	return chain
}

// Close releases all resources held by the App.
// Shutdown order: cancel scheduler goroutines, close storage.
func (a *App) Close() {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}

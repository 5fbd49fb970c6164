package di

import (
	"context"
	"fmt"

	httpadapter "nav-agent/internal/adapter/http"
	"nav-agent/internal/application/port/input"
	"nav-agent/internal/application/port/output"
	"nav-agent/internal/config"
	"nav-agent/internal/domain/entity"
	"nav-agent/internal/infrastructure/browser/rod"
	"nav-agent/internal/infrastructure/export"
	"nav-agent/internal/infrastructure/imageproc"
	"nav-agent/internal/infrastructure/llm/gemini"
	"nav-agent/internal/infrastructure/llm/openrouter"
	"nav-agent/internal/infrastructure/logger"
	"nav-agent/internal/infrastructure/metrics"
	"nav-agent/internal/infrastructure/userinteraction"
	"nav-agent/internal/usecase/executor"
	"nav-agent/internal/usecase/orchestrator"
)

type Container struct {
	Config  *config.Config
	Logger  output.LoggerPort
	Model   output.VisionModelPort
	Metrics *metrics.Prometheus
	Turns   input.TurnTaker
	HTTP    *httpadapter.Handler
	Browser output.BrowserPort
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	log := logger.NewLoggerAdapter(cfg.Logger)

	model, err := NewModel(ctx, cfg.Model, log)
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	prom := metrics.NewPrometheus()

	ucCfg := orchestrator.DefaultConfig()
	ucCfg.Temperature = cfg.Model.Temperature
	ucCfg.Metrics = prom
	if cfg.Image.MaxWidth > 0 {
		ucCfg.Preparer = imageproc.NewPreparer(cfg.Image.MaxWidth, cfg.Image.JPEGQuality)
	}
	turns := orchestrator.New(model, log, ucCfg)

	handler := httpadapter.NewHandler(turns, log, httpadapter.Options{
		Provider:       model.Name(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		RequestTimeout: cfg.Server.RequestTimeout,
		TurnRateLimit:  cfg.Server.TurnRateLimit,
		TurnRateBurst:  cfg.Server.TurnRateBurst,
		AccessLog:      true,
		AccessLogJSON:  cfg.Logger.Format == "json",
		AccessLogLevel: cfg.Logger.Level,
		Metrics:        prom.Handler(),
	})

	return &Container{
		Config:  cfg,
		Logger:  log,
		Model:   model,
		Metrics: prom,
		Turns:   turns,
		HTTP:    handler,
	}, nil
}

// NewModel builds the adapter for the configured provider.
func NewModel(ctx context.Context, cfg config.ModelConfig, log output.LoggerPort) (output.VisionModelPort, error) {
	switch cfg.Provider {
	case config.ProviderOpenRouter:
		orCfg := openrouter.DefaultConfig(cfg.APIKey, cfg.Model)
		if cfg.BaseURL != "" {
			orCfg.BaseURL = cfg.BaseURL
		}
		if cfg.Timeout > 0 {
			orCfg.Timeout = cfg.Timeout
		}
		orCfg.JSONMode = cfg.JSONMode
		orCfg.Logger = log
		orCfg.LogRequests = cfg.LogRequests
		return openrouter.NewOpenRouterAdapter(orCfg), nil
	case config.ProviderGemini:
		gCfg := gemini.DefaultConfig(cfg.APIKey)
		if cfg.Model != "" {
			gCfg.Model = cfg.Model
		}
		if cfg.Timeout > 0 {
			gCfg.Timeout = cfg.Timeout
		}
		gCfg.BaseURL = cfg.BaseURL
		gCfg.JSONMode = cfg.JSONMode
		gCfg.Logger = log
		return gemini.NewGeminiAdapter(ctx, gCfg)
	}
	return nil, &entity.ConfigurationError{Key: "LLM_PROVIDER", Reason: fmt.Sprintf("unknown provider %q", cfg.Provider)}
}

// NewTaskExecutor launches a browser and returns the harness driving it. The
// browser is closed with the container.
func (c *Container) NewTaskExecutor(ctx context.Context, exportDir string) (input.TaskExecutor, error) {
	browserCfg := rod.DefaultConfig()
	browserCfg.Headless = c.Config.Browser.Headless
	browserCfg.Timeout = c.Config.Browser.Timeout

	browser, err := rod.NewBrowserAdapter(ctx, browserCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser: %w", err)
	}
	c.Browser = browser

	var exporter output.WorkflowExporter
	if exportDir != "" {
		exporter = export.NewFileExporter(exportDir)
	}

	runCfg := executor.DefaultConfig()
	runCfg.MaxSteps = c.Config.Runner.MaxSteps
	runCfg.MaxRetriesPerGoal = c.Config.Runner.MaxRetriesPerGoal
	runCfg.WaitDuration = c.Config.Runner.WaitDuration

	return executor.New(c.Turns, browser, userinteraction.NewConsoleUserInteraction(), exporter, c.Logger, runCfg), nil
}

func (c *Container) Close() error {
	if c.Browser != nil {
		c.Browser.Close()
	}
	if c.Logger != nil {
		return c.Logger.Close()
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"gorm.io/gorm"
)

// Logger
var log = logrus.New()

// App struct to hold dependencies
type App struct {
	Config   *Config
	Database *gorm.DB
	LLM      llms.Model
	Cache    *analysisCache
	Jobs     *JobStore
}

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogger(logLevel string) error {
	switch logLevel {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info", "":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		return fmt.Errorf("invalid log level: '%s'", logLevel)
	}

	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return nil
}

// createLLM creates the appropriate LLM client based on the provider
func createLLM(ctx context.Context, cfg *Config) (llms.Model, error) {
	var (
		llm llms.Model
		err error
	)

	switch cfg.LLMProvider {
	case "gateway":
		llm, err = NewGatewayProvider(cfg.LLMBaseURL, cfg.apiKey(), cfg.LLMModel, cfg.HTTPRetries, cfg.LLMTimeout)
	case "openai":
		if cfg.apiKey() == "" {
			return nil, fmt.Errorf("openai API key is not configured")
		}
		llm, err = openai.New(
			openai.WithModel(cfg.LLMModel),
			openai.WithToken(cfg.apiKey()),
		)
	case "ollama":
		llm, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
	case "googleai":
		llm, err = NewGoogleAIProvider(ctx, cfg.LLMModel, cfg.apiKey())
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
	if err != nil {
		return nil, err
	}

	return NewRateLimitedLLM(llm, RateLimitConfig{
		RequestsPerMinute:  cfg.RequestsPerMinute,
		MaxRetries:         cfg.MaxRetries,
		BackoffMaxWait:     cfg.BackoffMaxWait,
		BreakerMaxFailures: cfg.BreakerFailures,
		BreakerTimeout:     cfg.BreakerTimeout,
	}), nil
}

// newApp wires the configured dependencies. Prompts and settings are loaded
// from their directories, which are created if missing.
func newApp(ctx context.Context, cfg *Config) (*App, error) {
	promptsDir = cfg.PromptsDir
	configDir = cfg.ConfigDir

	if err := loadTemplates(); err != nil {
		return nil, err
	}
	loadSettings()

	database, err := InitializeDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	llm, err := createLLM(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	return &App{
		Config:   cfg,
		Database: database,
		LLM:      llm,
		Cache:    newAnalysisCache(cfg.CacheTTL),
		Jobs:     NewJobStore(100, cfg.JobTTL),
	}, nil
}

// setupRouter registers every route on a new gin engine
func (app *App) setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(metricsMiddleware())

	var verifier *TokenVerifier
	if app.Config.JWTSecret != "" {
		verifier = NewTokenVerifier(app.Config.JWTSecret)
	}
	requireUser := authMiddleware(verifier)
	requireAdmin := adminOnly(verifier, app.Config.AdminRole)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metricsHandler())

	// Function endpoint, callable straight from the browser
	functions := router.Group("/functions/v1", corsMiddleware())
	{
		functions.OPTIONS("/analyze-text", func(c *gin.Context) {})
		functions.POST("/analyze-text", requireUser, app.analyzeTextFunctionHandler)
	}

	api := router.Group("/api", requireUser)
	{
		api.GET("/me", meHandler)

		api.POST("/analyses", app.createAnalysisHandler)
		api.GET("/analyses", app.listAnalysesHandler)
		api.GET("/analyses/:id", app.getAnalysisHandler)
		api.DELETE("/analyses/:id", app.deleteAnalysisHandler)

		api.POST("/jobs/analyze", app.submitAnalysisJobHandler)
		api.GET("/jobs/:job_id", app.getJobStatusHandler)
		api.GET("/jobs", app.getAllJobsHandler)

		api.GET("/prompts", getPromptsHandler)
		api.POST("/prompts", requireAdmin, updatePromptsHandler)

		api.GET("/settings", getSettingsHandler)
		api.PATCH("/settings", requireAdmin, updateSettingsHandler)
	}

	return router
}

// runServer serves HTTP until SIGINT or SIGTERM, then drains in-flight requests.
func runServer(cfg *Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	if cfg.JWTSecret == "" {
		log.Warn("AUTH_JWT_SECRET is not set; every request runs as the local user")
	}

	workers := startWorkerPool(ctx, app, cfg.JobWorkers)
	if cfg.RetentionDays > 0 {
		StartBackgroundTasks(ctx, app, time.Hour)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Server started on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to run server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	workers.Wait()
	return nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wolfman30/salesbot/cmd/mainconfig"
	"github.com/wolfman30/salesbot/internal/advice"
	"github.com/wolfman30/salesbot/internal/api/router"
	"github.com/wolfman30/salesbot/internal/app/bootstrap"
	"github.com/wolfman30/salesbot/internal/channels/line"
	appconfig "github.com/wolfman30/salesbot/internal/config"
	"github.com/wolfman30/salesbot/internal/dialogue"
	"github.com/wolfman30/salesbot/internal/observability/metrics"
	"github.com/wolfman30/salesbot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting salesbot API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
		"session_backend", cfg.SessionBackend,
	)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	metricsHandler, botMetrics := setupBotMetrics()

	// Initialize repositories and services
	pool := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}
	recordsRepo := bootstrap.BuildRecordsRepository(pool, logger)

	sessions, closeSessions, err := bootstrap.BuildSessionStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build session store", "error", err)
		os.Exit(1)
	}
	defer closeSessions()

	llmClient, closeLLM, err := mainconfig.NewLLMClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build LLM client", "error", err)
		os.Exit(1)
	}
	defer closeLLM()

	advisor := advice.NewGenerator(llmClient, advice.Config{
		MaxTokens: int32(cfg.AdviceMaxTokens),
		Logger:    logger,
		Metrics:   botMetrics,
	})

	machine := dialogue.NewMachine(sessions, recordsRepo, advisor, dialogue.Config{
		Keywords: dialogue.Keywords{
			Record:  cfg.RecordKeywords,
			History: cfg.HistoryKeywords,
		},
		StrictDateTime: cfg.StrictDateTime,
		RecordsTimeout: cfg.RecordsTimeout,
		AdviceTimeout:  cfg.AdviceTimeout,
		Logger:         logger,
		Metrics:        botMetrics,
	})

	lineAdapter := line.NewAdapter(line.AdapterConfig{
		ChannelSecret:      cfg.LineChannelSecret,
		ChannelAccessToken: cfg.LineChannelAccessToken,
		APIBase:            cfg.LineAPIBaseURL,
		Handler:            machine,
		Logger:             logger,
		Metrics:            botMetrics,
	})

	// Setup router
	r := router.New(&router.Config{
		Logger:         logger,
		LineWebhook:    lineAdapter.HandleWebhook,
		MetricsHandler: metricsHandler,
	})

	// The webhook answers after the advice call returns, so the write
	// deadline must outlast ADVICE_TIMEOUT.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AdviceTimeout + cfg.RecordsTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	stop()

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupBotMetrics registers the bot collectors on a private registry along
// with the Go runtime and process collectors.
func setupBotMetrics() (http.Handler, *metrics.BotMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	botMetrics := metrics.NewBotMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), botMetrics
}

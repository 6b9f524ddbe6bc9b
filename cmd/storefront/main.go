package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/owlcraft/storefront/internal/app"
	"github.com/owlcraft/storefront/internal/catalog"
	jobmetrics "github.com/owlcraft/storefront/internal/jobs"
	"github.com/owlcraft/storefront/internal/marketsync"
	"github.com/owlcraft/storefront/internal/observability"
	"github.com/owlcraft/storefront/internal/platform/cache"
	"github.com/owlcraft/storefront/internal/platform/db"
	"github.com/owlcraft/storefront/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	syncMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService, redisClient)

	sources := app.Sources(cfg)
	fetcher := marketsync.NewHTTPFetcher(20 * time.Second)
	var newBrowser marketsync.BrowserFactory
	if !cfg.BrowserDisabled {
		newBrowser = func() (marketsync.Browser, error) {
			return marketsync.NewRodBrowser(cfg.BrowserBin, cfg.BrowserHeadless)
		}
	}
	chain := marketsync.NewChain(logger, fetcher, newBrowser)
	statusCache := marketsync.NewStatusCache(redisClient, cfg.SyncStatusTTL)
	engine := marketsync.NewEngine(catalogRepo, chain, statusCache, syncMetrics, logger)
	importer := marketsync.NewImporter(catalogRepo, sources)
	syncHandler := marketsync.NewHandler(logger, engine, importer, statusCache, catalogService, sources)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		CatalogHandler: catalogHandler,
		SyncHandler:    syncHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	// Synchronous sync runs hold the response open well past the usual write
	// timeout.
	writeTimeout := cfg.AppWriteTimeout
	if cfg.SyncRequestTimeout > writeTimeout {
		writeTimeout = cfg.SyncRequestTimeout + 10*time.Second
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: writeTimeout,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}

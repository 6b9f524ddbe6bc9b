package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/owlcraft/storefront/internal/app"
	"github.com/owlcraft/storefront/internal/catalog"
	jobmetrics "github.com/owlcraft/storefront/internal/jobs"
	"github.com/owlcraft/storefront/internal/marketsync"
	"github.com/owlcraft/storefront/internal/platform/cache"
	"github.com/owlcraft/storefront/internal/platform/db"
	"github.com/owlcraft/storefront/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	syncMetrics := jobmetrics.NewMetrics(nil)

	catalogRepo := catalog.NewRepository(pool)
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
	syncJob := marketsync.NewSyncJob(engine, sources, logger)

	var cron []jobs.CronRegistration
	specs := map[string]string{
		catalog.SourceShopee: "10 2 * * *",
		catalog.SourcePinkoi: "40 2 * * *",
	}
	for name := range sources {
		task, err := jobs.NewCatalogSyncTask(name)
		if err != nil {
			logger.Error("build sync task", slog.String("source", name), slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    specs[name],
			Task:    task,
			Options: []asynq.Option{asynq.MaxRetry(2)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCatalogSync, Handler: syncJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

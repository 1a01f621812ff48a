package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/sagra-pos/sagra-pos/internal/app"
	"github.com/sagra-pos/sagra-pos/internal/catalog"
	"github.com/sagra-pos/sagra-pos/internal/inventory"
	"github.com/sagra-pos/sagra-pos/internal/kitchen"
	"github.com/sagra-pos/sagra-pos/internal/orders"
	"github.com/sagra-pos/sagra-pos/internal/platform/cache"
	"github.com/sagra-pos/sagra-pos/internal/platform/db"
	"github.com/sagra-pos/sagra-pos/internal/platform/pubsub"
	"github.com/sagra-pos/sagra-pos/internal/shared"
	"github.com/sagra-pos/sagra-pos/jobs"
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

	broker := pubsub.NewBroker(redisClient, logger)
	auditLogger := shared.NewAuditLogger(pool)

	catalogRepo := catalog.NewRepository(pool)
	reconciler := inventory.NewReconciler(catalogRepo, logger)

	selectionStore := kitchen.NewSelectionStore(redisClient, broker, logger)

	ordersRepo := orders.NewRepository(pool)
	counterStore := orders.NewPGCounterStore(pool)
	counter := orders.NewCounter(counterStore, ordersRepo, auditLogger, logger)
	ordersService := orders.NewService(ordersRepo, counter, catalogRepo, nil, selectionStore, broker, logger)

	selectionGCTask, err := jobs.NewSelectionGCTask()
	if err != nil {
		logger.Error("build selection gc task", slog.Any("error", err))
		os.Exit(1)
	}
	beverageSweepTask, err := jobs.NewBeverageSweepTask()
	if err != nil {
		logger.Error("build beverage sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockReconcile, Handler: jobs.NewStockReconcileHandler(reconciler)},
			{Type: jobs.TaskSelectionGC, Handler: jobs.NewSelectionGCHandler(selectionStore, ordersRepo, logger)},
			{Type: jobs.TaskBeverageSweep, Handler: jobs.NewBeverageSweepHandler(ordersService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/10 * * * *", Task: selectionGCTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
			{Spec: "* * * * *", Task: beverageSweepTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

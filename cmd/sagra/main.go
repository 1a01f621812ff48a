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

	"github.com/sagra-pos/sagra-pos/internal/app"
	"github.com/sagra-pos/sagra-pos/internal/auth"
	"github.com/sagra-pos/sagra-pos/internal/availability"
	"github.com/sagra-pos/sagra-pos/internal/catalog"
	"github.com/sagra-pos/sagra-pos/internal/kitchen"
	"github.com/sagra-pos/sagra-pos/internal/orders"
	"github.com/sagra-pos/sagra-pos/internal/platform/cache"
	"github.com/sagra-pos/sagra-pos/internal/platform/db"
	"github.com/sagra-pos/sagra-pos/internal/platform/pubsub"
	"github.com/sagra-pos/sagra-pos/internal/reports"
	"github.com/sagra-pos/sagra-pos/internal/shared"
	"github.com/sagra-pos/sagra-pos/internal/system"
	"github.com/sagra-pos/sagra-pos/internal/transfer"
	"github.com/sagra-pos/sagra-pos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "sagra_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(dbpool)
	broker := pubsub.NewBroker(redisClient, logger)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, broker, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	selectionStore := kitchen.NewSelectionStore(redisClient, broker, logger)

	ordersRepo := orders.NewRepository(dbpool)
	counterStore := orders.NewPGCounterStore(dbpool)
	counter := orders.NewCounter(counterStore, ordersRepo, auditLogger, logger)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	ordersService := orders.NewService(ordersRepo, counter, catalogRepo, jobClient, selectionStore, broker, logger)
	ordersHandler := orders.NewHandler(logger, ordersService)

	availabilityHandler := availability.NewHandler(logger, catalogService)

	feed := kitchen.NewFeed(ordersRepo, catalogRepo, selectionStore, logger)
	kitchenHandler := kitchen.NewHandler(logger, feed, selectionStore)

	reportsRepo := reports.NewRepository(dbpool)
	reportsCache := reports.NewCache(redisClient, 30*time.Second)
	reportsService := reports.NewService(reportsRepo, reportsCache)
	reportsHandler := reports.NewHandler(logger, reportsService)

	transferService := transfer.NewService(dbpool, catalogRepo, ordersRepo, counter, logger)
	transferHandler := transfer.NewHandler(logger, transferService)

	resetter := system.NewResetter(ordersRepo, counter, selectionStore, auditLogger, broker, logger)
	systemHandler := system.NewHandler(logger, resetter)

	feedHandler := pubsub.NewHandler(broker, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		SessionManager:      sessionManager,
		AuthHandler:         authHandler,
		CatalogHandler:      catalogHandler,
		OrdersHandler:       ordersHandler,
		AvailabilityHandler: availabilityHandler,
		KitchenHandler:      kitchenHandler,
		ReportsHandler:      reportsHandler,
		TransferHandler:     transferHandler,
		SystemHandler:       systemHandler,
		FeedHandler:         feedHandler,
		JobHandler:          jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

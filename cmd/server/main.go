package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"owner_ledger/internal/config"
	"owner_ledger/internal/database"
	"owner_ledger/internal/handlers"
	"owner_ledger/internal/ledger"
	"owner_ledger/internal/logger"
	"owner_ledger/internal/migrations"
	"owner_ledger/internal/redis"
	"owner_ledger/internal/repository"
	"owner_ledger/internal/services"
	"owner_ledger/pkg/whatsapp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	zl, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatal("Failed to create logger: ", err)
	}
	defer zl.Sync()

	// Initialize database
	db, err := database.Initialize(cfg.DBDriver, cfg.DatabaseURL, zl)
	if err != nil {
		zl.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := migrations.SeedLookups(context.Background(), db, zl); err != nil {
		zl.Warn("Failed to seed default lookups", zap.Error(err))
	}

	// Redis is optional: without it lookups are read straight from the
	// database and unsaved rows are not kept as drafts.
	var (
		cache  services.LookupCache
		drafts ledger.DraftStore
		lister handlers.DraftLister
	)
	redisClient, err := redis.Initialize(cfg.RedisURL, time.Duration(cfg.DraftTTL)*time.Second)
	if err != nil {
		zl.Warn("Redis unavailable, running without cache and drafts", zap.Error(err))
	} else {
		defer redisClient.Close()
		zl.Info("Redis connected", zap.String("draft_session", redisClient.Session()))
		cache, drafts, lister = redisClient, redisClient, redisClient
	}

	// Initialize repositories and services
	orderRepo := repository.NewOrderRepository(db)
	lookupRepo := repository.NewLookupRepository(db)
	ledgerService := services.NewLedgerService(orderRepo, lookupRepo, cache,
		time.Duration(cfg.CacheTTL)*time.Second, cfg.PersistTimeout, zl.Named("service"))

	opts := ledger.Options{
		Kind:    ledger.KindOwnerOrder,
		Async:   cfg.PersistAsync,
		Catalog: ledgerService,
		Drafts:  drafts,
		Logger:  zl.Named("ledger"),
	}
	var alerts services.AlertService
	if cfg.AlertsEnabled() {
		whatsappClient := whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppUsername, cfg.WhatsAppPassword, cfg.WhatsAppPath)
		alerts = services.NewAlertService(whatsappClient, cfg.AlertPhone, cfg.PersistTimeout, zl.Named("alerts"))
		opts.OnPersisted = alerts.NotifyPersisted
	}
	ctrl := ledger.NewTableController(ledgerService, opts)

	orders, err := ledgerService.ListOrders(context.Background(), repository.OrderFilter{})
	if err != nil {
		zl.Fatal("Failed to load orders", zap.Error(err))
	}
	ctrl.Load(orders)

	// Setup routes
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	handlers.NewLedgerHandler(ctrl, ledgerService, lister, zl.Named("http")).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		zl.Info("Server starting", zap.String("port", cfg.ServerPort), zap.Bool("async", cfg.PersistAsync))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("Server shutdown failed", zap.Error(err))
	}
	// let queued saves finish, then the alerts they raised
	ctrl.Wait()
	if alerts != nil {
		alerts.Wait()
	}
	zl.Info("Server stopped")
}

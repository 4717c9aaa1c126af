package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventory-service/config"
	"inventory-service/internal/api"
	"inventory-service/internal/broker"
	"inventory-service/internal/memstore"
	"inventory-service/internal/redisclient"
	"inventory-service/internal/service"
	"inventory-service/internal/store"
	"inventory-service/internal/util"
	"inventory-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting inventory service")

	decimal.MarshalJSONWithoutQuotes = true

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer("inventory-service", cfg.Observ.JaegerEndpoint)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				log.Printf("Error shutting down tracer: %v", err)
			}
		}()
	}

	var repo service.Repository
	switch cfg.Database.Driver {
	case "memory":
		repo = memstore.New(cfg.Database.LockTimeout)
		logger.Warn("Using in-memory store, data is lost on restart")
	default:
		db, err := store.NewStore(cfg.Database.URL, cfg.Database.LockTimeout)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.Migrate(context.Background()); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		repo = db
		log.Println("Database connected")
	}

	// Redis is optional: without it there is no read cache, no idempotency
	// keys and no cross-replica job lock.
	var (
		cache  service.Cache
		locker worker.JobLocker
	)
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, running without cache", zap.Error(err))
	} else {
		defer redisClient.Close()
		cache = redisClient
		locker = redisClient
		log.Println("Redis connected")
	}

	var events service.EventPublisher
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		events = broker.NewEventPublisher(producer)
		log.Println("Kafka producer initialized")
	} else {
		events = broker.NewLogPublisher()
	}

	opts := service.DefaultOptions()
	opts.AutoResolveAlerts = cfg.Inventory.AlertAutoResolve
	opts.Retention = cfg.Inventory.Retention()
	opts.LockRetries = cfg.Inventory.LockRetries
	opts.RetryBackoff = cfg.Inventory.LockRetryBackoff
	opts.SKUPrefix = cfg.Inventory.SKUPrefix
	opts.DefaultThreshold = cfg.Inventory.DefaultThreshold

	alertService := service.NewAlertService(repo, events, opts)
	ledgerService := service.NewLedgerService(repo, alertService, events, cache, opts)
	reportService := service.NewReportService(repo, cache, opts)
	userService := service.NewUserService(repo, opts)
	productBin := service.NewProductBin(repo.ProductBin(), alertService, events, cache, opts)
	userBin := service.NewUserBin(repo.UserBin(), events, opts)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	sweeper := worker.NewSweeper(cfg.Jobs.SweepInterval, locker, productBin, userBin)
	sweeper.Start(workerCtx)

	scanner := worker.NewLowStockScanner(cfg.Jobs.LowStockScanInterval, locker, alertService)
	scanner.Start(workerCtx)

	var notificationWorker *worker.NotificationWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
		notificationWorker = worker.NewNotificationWorker(consumer, worker.NewLogNotifier(), userService)
		go func() {
			if err := notificationWorker.Start(workerCtx); err != nil {
				log.Printf("Notification worker error: %v", err)
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Ledger:     ledgerService,
		Alerts:     alertService,
		Reports:    reportService,
		Users:      userService,
		ProductBin: productBin,
		UserBin:    userBin,
		Store:      repo,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	sweeper.Stop()
	scanner.Stop()
	if notificationWorker != nil {
		notificationWorker.Stop()
	}

	log.Println("Server exited")
}

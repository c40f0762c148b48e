package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tarot-payment-ledger/internal/config"
	"github.com/tarot-payment-ledger/internal/data/mongo"
	"github.com/tarot-payment-ledger/internal/data/postgres"
	"github.com/tarot-payment-ledger/internal/ledger_worker/components"
	"github.com/tarot-payment-ledger/internal/ledger_worker/consumer"
	"github.com/tarot-payment-ledger/internal/ledger_worker/outbox_poller"
	"github.com/tarot-payment-ledger/internal/ledger_worker/service"
	"github.com/tarot-payment-ledger/internal/ledger_worker/sweeper"
	"github.com/tarot-payment-ledger/internal/logger"
	"github.com/tarot-payment-ledger/internal/platform/messaging/consumers"
	"github.com/tarot-payment-ledger/internal/platform/messaging/producers"
	"github.com/tarot-payment-ledger/internal/platform/persistence"
	"github.com/tarot-payment-ledger/internal/tracing"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("ledger_worker")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Ledger Worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	shutdownTracing, err := tracing.Init(appCtx, log, &cfg.Tracing, "tarot-ledger-worker")
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	orderRepo := postgres.NewOrderRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	archiveRepo := mongo.NewLedgerArchiveRepository(log, mongoDB.Database())
	if err := archiveRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure ledger archive indexes", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producers and consumer
	eventProducer, err := producers.NewLedgerEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize ledger event Kafka producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize archive pipeline
	archiveService := components.CreateArchiveService(archiveRepo, log, cfg)
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
	}
	eventHandler := consumer.NewLedgerEventHandler(log, archiveService, deadLetters)

	// Initialize outbox relay and expiry sweeper
	eventPublisher := outbox_poller.NewKafkaEventPublisher(outboxRepo, eventProducer, log)
	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, eventPublisher, log)
	expirySweeper := sweeper.NewExpirySweeper(&cfg.Order, orderRepo, log)

	// Metrics listener
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           mux,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
		}
	}

	// Create error channel for service errors
	errChan := make(chan error, 3)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.LedgerEventTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.LedgerEventTopic, cfg.Kafka.ConsumerGroup, eventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		expirySweeper.Start(appCtx)
	}()

	if metricsServer != nil {
		go func() {
			log.Info("Starting metrics listener", "port", cfg.Server.Port, "path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("metrics listener error: %w", err)
			}
		}()
	}

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Release the pool once the consumer stopped submitting
	if wpService, ok := archiveService.(*service.WorkerPoolArchiveService); ok {
		wpService.Shutdown()
	}

	if metricsServer != nil {
		if err = metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Error stopping metrics listener", "error", err)
		}
	}

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing ledger event Kafka producer", "error", err)
	}

	// dlqProducer is nil when no DLQ topic is configured
	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if err = shutdownTracing(shutdownCtx); err != nil {
		log.Error("Error flushing traces", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Ledger Worker shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Ledger Worker shutdown completed with errors")
	} else {
		log.Info("Ledger Worker shutdown completed successfully")
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tarot-payment-ledger/internal/api_gateway"
	"github.com/tarot-payment-ledger/internal/api_gateway/components"
	"github.com/tarot-payment-ledger/internal/api_gateway/service"
	"github.com/tarot-payment-ledger/internal/config"
	"github.com/tarot-payment-ledger/internal/data/mongo"
	"github.com/tarot-payment-ledger/internal/data/postgres"
	"github.com/tarot-payment-ledger/internal/domain/order"
	"github.com/tarot-payment-ledger/internal/logger"
	"github.com/tarot-payment-ledger/internal/platform/epay"
	"github.com/tarot-payment-ledger/internal/platform/persistence"
	"github.com/tarot-payment-ledger/internal/tracing"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting API Gateway",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	shutdownTracing, err := tracing.Init(appCtx, log, &cfg.Tracing, "tarot-api-gateway")
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	location, err := time.LoadLocation(cfg.Ledger.Timezone)
	if err != nil {
		log.Error("Failed to load ledger timezone", "timezone", cfg.Ledger.Timezone, "error", err)
		os.Exit(1)
	}

	// Initialize databases with app context; migrations run on connect
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

	redisClient, err := persistence.NewRedis(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	orderRepo := postgres.NewOrderRepository(log, postgresDB)
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	archiveRepo := mongo.NewLedgerArchiveRepository(log, mongoDB.Database())
	auditRepo := mongo.NewCallbackAuditRepository(log, mongoDB.Database())

	if err := archiveRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure ledger archive indexes", "error", err)
		os.Exit(1)
	}
	if err := auditRepo.EnsureIndexes(appCtx); err != nil {
		log.Warn("Failed to ensure callback audit indexes", "error", err)
	}

	// Initialize payment gateway
	scheme, err := epay.ParseScheme(cfg.Epay.SignScheme)
	if err != nil {
		log.Error("Invalid signing scheme", "error", err)
		os.Exit(1)
	}
	gateway := epay.NewGateway(epay.GatewayConfig{
		MerchantID:  cfg.Epay.MerchantID,
		MerchantKey: cfg.Epay.MerchantKey,
		SubmitURL:   cfg.Epay.SubmitURL,
		NotifyURL:   cfg.Epay.NotifyURL,
		ReturnURL:   cfg.Epay.ReturnURL,
		ProductName: cfg.Epay.ProductName,
	}, epay.NewSigner(scheme, epay.MD5Digest))

	// Initialize services
	catalog := order.DefaultCatalog()
	outboxManager := components.NewOutboxManager(outboxRepo, log)
	balanceManager := components.NewBalanceManager(ledgerRepo, outboxManager, cfg.Ledger.InitialBalance, log)

	orderService := service.NewOrderService(log, orderRepo, gateway, catalog, service.OrderPolicy{
		OutTradeNoPrefix:   cfg.Order.OutTradeNoPrefix,
		RequireCatalogItem: cfg.Order.RequireCatalogItem,
		RecentLimit:        cfg.Order.RecentLimit,
	})
	settlementService := service.NewSettlementService(log, postgresDB, orderRepo, balanceManager, gateway, auditRepo, service.SettlementPolicy{
		BonusCountsTowardRecharge: cfg.Ledger.BonusCountsTowardRecharge,
	})
	ledgerService := service.NewLedgerService(log, postgresDB, balanceManager, ledgerRepo, archiveRepo, service.LedgerPolicy{
		DailyBonus:      cfg.Ledger.DailyBonus,
		UnlockThreshold: cfg.Ledger.UnlockThreshold,
		Location:        location,
	})

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, api_gateway.Services{
		Orders:     orderService,
		Settlement: settlementService,
		Ledger:     ledgerService,
		Catalog:    catalog,
		Readiness: map[string]api_gateway.ReadinessCheck{
			"postgres": postgresDB.Ping,
			"mongodb":  mongoDB.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	}, redisClient)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before the stores go away
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	postgresDB.Close()

	if err = redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if err = shutdownTracing(shutdownCtx); err != nil {
		log.Error("Error flushing traces", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}

package api_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/tarot-payment-ledger/internal/api_gateway/handler"
	"github.com/tarot-payment-ledger/internal/api_gateway/middleware"
	"github.com/tarot-payment-ledger/internal/api_gateway/service"
	"github.com/tarot-payment-ledger/internal/config"
	"github.com/tarot-payment-ledger/internal/domain/order"
)

// limiterTTL is how long an idle client address keeps its token bucket
const limiterTTL = 3 * time.Minute

// Services bundles the business services the HTTP layer exposes
type Services struct {
	Orders     service.OrderService
	Settlement service.SettlementService
	Ledger     service.LedgerService
	Catalog    *order.Catalog

	// Readiness maps a store name to its ping, served on /ready
	Readiness map[string]ReadinessCheck
}

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger      *slog.Logger       // For structured logging
	httpServer  *http.Server       // Underlying HTTP server
	httpRouter  *gin.Engine        // Gin router instance
	stopLimiter context.CancelFunc // Stops the callback limiter cleanup loop
}

// NewServer creates and configures a new HTTP server with the given services.
// A nil redisClient disables the per-user order limiter.
func NewServer(log *slog.Logger, cfg *config.Config, services Services, redisClient redis.Cmdable) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	deps := routeDeps{
		orderHandler:    handler.NewOrderHandler(log, services.Orders, services.Catalog),
		callbackHandler: handler.NewCallbackHandler(log, services.Settlement),
		walletHandler:   handler.NewWalletHandler(log, services.Ledger),
		callbackLimiter: middleware.NewIPRateLimiter(cfg.RateLimit.CallbackRPS, cfg.RateLimit.CallbackBurst, limiterTTL),
		readiness:       services.Readiness,
	}
	if redisClient != nil {
		deps.orderLimiter = middleware.NewOrderLimiter(log, redisClient, cfg.RateLimit.OrdersPerWindow, cfg.RateLimit.OrderWindow)
	}

	setupRouter(log, httpRouter, cfg, deps)

	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	go deps.callbackLimiter.Run(limiterCtx)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:      log,
		httpServer:  httpServer,
		httpRouter:  httpRouter,
		stopLimiter: stopLimiter,
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server with a timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	defer s.stopLimiter()

	// Use server's write timeout for graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, s.httpServer.WriteTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}

	return nil
}

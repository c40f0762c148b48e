package api_gateway

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tarot-payment-ledger/internal/api_gateway/handler"
	"github.com/tarot-payment-ledger/internal/api_gateway/middleware"
	"github.com/tarot-payment-ledger/internal/config"
)

// routeDeps groups what setupRouter mounts
type routeDeps struct {
	orderHandler    *handler.OrderHandler
	callbackHandler *handler.CallbackHandler
	walletHandler   *handler.WalletHandler
	orderLimiter    *middleware.OrderLimiter  // optional
	callbackLimiter *middleware.IPRateLimiter // optional
	readiness       map[string]ReadinessCheck
}

// ReadinessCheck reports whether one backing store is reachable
type ReadinessCheck func(ctx context.Context) error

const readinessTimeout = 2 * time.Second

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, cfg *config.Config, deps routeDeps) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Metrics())

	auth := middleware.Auth(cfg.Auth)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/catalog", deps.orderHandler.Catalog)

		orders := v1.Group("/orders", auth)
		{
			create := []gin.HandlerFunc{}
			if deps.orderLimiter != nil {
				create = append(create, deps.orderLimiter.Middleware())
			}
			create = append(create, deps.orderHandler.Create)

			orders.POST("", create...)
			orders.GET("", deps.orderHandler.List)
			orders.GET("/:outTradeNo", deps.orderHandler.GetByOutTradeNo)
		}

		// Gateway callbacks are authenticated by signature only
		notify := v1.Group("/payments/epay", middleware.PlainText())
		if deps.callbackLimiter != nil {
			notify.Use(deps.callbackLimiter.Middleware())
		}
		{
			notify.GET("/notify", deps.callbackHandler.Notify)
			notify.POST("/notify", deps.callbackHandler.Notify)
		}

		wallet := v1.Group("/wallet", auth)
		{
			wallet.GET("/balance", deps.walletHandler.Balance)
			wallet.POST("/consume", deps.walletHandler.Consume)
			wallet.POST("/daily-bonus", deps.walletHandler.ClaimDailyBonus)
			wallet.GET("/transactions", deps.walletHandler.Transactions)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	r.GET("/ready", readinessHandler(logger, deps.readiness))

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}
}

// readinessHandler runs every check and answers 503 when any of them fails
func readinessHandler(logger *slog.Logger, checks map[string]ReadinessCheck) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				logger.Warn("Readiness check failed", "check", name, "error", err)
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		state := "ready"
		if status != http.StatusOK {
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	}
}

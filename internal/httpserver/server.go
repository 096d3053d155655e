// Package httpserver exposes the rewards ledger over HTTP.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/petropoint/rewards/internal/metrics"
	"github.com/petropoint/rewards/pkg/rewards"
)

// Config carries the HTTP server settings.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	JWTSigningKey  string
	JWTIssuer      string
}

// Run boots the HTTP server and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config, service *rewards.Service, logger *zap.Logger) error {
	router := NewRouter(cfg, service, logger)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rewards api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewRouter assembles the gin engine with all routes and middleware.
func NewRouter(cfg Config, service *rewards.Service, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestMetrics())
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := &httpHandler{service: service, logger: logger}

	api := router.Group("/api")
	api.Use(authMiddleware([]byte(cfg.JWTSigningKey), cfg.JWTIssuer))

	bills := api.Group("/bills")
	bills.POST("", requireRole(string(rewards.RoleAdmin), string(rewards.RoleStaff)), handler.handleCreateBill)
	bills.GET("/history/:mobile", handler.handleBillHistory)

	rewardsGroup := api.Group("/rewards")
	rewardsGroup.GET("/wallet/:mobile", handler.handleWallet)
	rewardsGroup.POST("/redeem/fuel", requireRole(string(rewards.RoleAdmin), string(rewards.RoleStaff)), handler.handleRedeemFuel)
	rewardsGroup.POST("/redeem/product", handler.handleRedeemProduct)
	rewardsGroup.GET("/history/:customer_id", handler.handleRedemptionHistory)

	products := api.Group("/products")
	products.GET("", handler.handleListProducts)
	products.POST("", requireRole(string(rewards.RoleAdmin)), handler.handleCreateProduct)
	products.PUT("/:id", requireRole(string(rewards.RoleAdmin)), handler.handleUpdateProduct)

	return router
}

func requestMetrics() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		started := time.Now()
		ctx.Next()
		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(ctx.Writer.Status())
		metrics.HTTPRequestDuration.WithLabelValues(ctx.Request.Method, path, status).Observe(time.Since(started).Seconds())
	}
}

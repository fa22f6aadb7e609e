package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/bottlebook/internal/session"
	"github.com/MarkoPoloResearchLab/bottlebook/pkg/bottlebook"
	"github.com/MarkoPoloResearchLab/bottlebook/pkg/cloudsync"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies carries the wired components the facade serves.
type Dependencies struct {
	Logger  *zap.Logger
	Service *bottlebook.Service
	Store   bottlebook.Store
	Engine  *cloudsync.Engine
	Monitor *cloudsync.Monitor
}

// Run boots the HTTP facade using the supplied configuration.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	handler := &httpHandler{deps: deps}
	router := setupRouter(cfg, handler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Info("bottlebook api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			deps.Logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(tokenMiddleware())

	api.GET("/customers", handler.handleListCustomers)
	api.POST("/customers", handler.handleAddCustomer)
	api.DELETE("/customers/:id", handler.handleDeleteCustomer)
	api.PUT("/customers/:id/trust", handler.handleUpdateTrust)
	api.GET("/customers/:id/transactions", handler.handleCustomerTransactions)
	api.GET("/customers/:id/balances", handler.handleCustomerBalances)
	api.GET("/customers/:id/inventory", handler.handleCustomerInventory)

	api.GET("/transactions", handler.handleListTransactions)
	api.POST("/transactions", handler.handleAddTransaction)
	api.DELETE("/transactions/:id", handler.handleDeleteTransaction)

	api.GET("/pending/count", handler.handlePendingCount)

	api.GET("/sync/status", handler.handleSyncStatus)
	api.POST("/sync/trigger", handler.handleTriggerSync)
	api.POST("/sync/push", handler.handlePushAll)
	api.POST("/sync/pull", handler.handlePullAll)

	api.GET("/backup/export", handler.handleExportSnapshot)
	api.POST("/backup/import", handler.handleImportSnapshot)

	return router
}

// tokenMiddleware moves the bearer token into the request context where
// the session provider expects it. Requests without a token still reach
// local-only handlers; remote-facing handlers fail with 401 later.
func tokenMiddleware() gin.HandlerFunc {
	return func(ginCtx *gin.Context) {
		header := ginCtx.GetHeader("Authorization")
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
			ginCtx.Request = ginCtx.Request.WithContext(session.WithToken(ginCtx.Request.Context(), token))
		}
		ginCtx.Next()
	}
}

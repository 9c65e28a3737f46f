package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"deresy/review-portal/review-portal-backend/internal/auth"
	"deresy/review-portal/review-portal-backend/internal/chain"
	"deresy/review-portal/review-portal-backend/internal/config"
	"deresy/review-portal/review-portal-backend/internal/evidence"
	"deresy/review-portal/review-portal-backend/internal/index"
	"deresy/review-portal/review-portal-backend/internal/notifications"
	"deresy/review-portal/review-portal-backend/internal/notifications/websocket"
	"deresy/review-portal/review-portal-backend/internal/reconcile"
	"deresy/review-portal/review-portal-backend/internal/requests"
	"deresy/review-portal/review-portal-backend/internal/reviews"
	"deresy/review-portal/review-portal-backend/internal/txflow"
	"deresy/review-portal/review-portal-backend/pkg/storage"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.Logging.Level == "debug" {
		logger, _ = zap.NewDevelopment()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to the chain
	logger.Info("Connecting to chain", zap.String("rpc_url", cfg.Chain.RPCURL))
	ethClient, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		logger.Fatal("Failed to connect to chain RPC", zap.Error(err))
	}
	defer ethClient.Close()

	chainClient, err := chain.NewClient(ethClient,
		common.HexToAddress(cfg.Chain.ReviewsContract),
		common.HexToAddress(cfg.Chain.EASContract))
	if err != nil {
		logger.Fatal("Failed to initialize chain client", zap.Error(err))
	}

	// Connect to the off-chain index
	logger.Info("Connecting to index store", zap.String("database", cfg.Mongo.Database))
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal("Failed to connect to index store", zap.Error(err))
	}
	defer func() {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()
	repo := index.NewMongoRepository(mongoClient.Database(cfg.Mongo.Database))

	// Notifications: websocket hub behind the notification service
	wsManager := websocket.NewManager(logger)
	defer wsManager.Close()
	notifier := notifications.NewService(wsManager, cfg.Chain.Production, cfg.Security.NotificationDuration, logger)

	// Transaction orchestrator signing from the session account
	orchestrator, err := txflow.NewOrchestrator(ctx, ethClient, cfg.Chain.SignerKey, notifier, logger)
	if err != nil {
		logger.Fatal("Failed to initialize transaction orchestrator", zap.Error(err))
	}
	logger.Info("Session account ready", zap.String("sender", orchestrator.Sender().Hex()))

	// Evidence renderer and the gateway serving rendered documents back
	renderer := evidence.NewClient(cfg.Renderer.BaseURL, cfg.Renderer.Timeout)
	gateway := storage.NewGatewayClient(cfg.Renderer.GatewayURL, cfg.Renderer.Timeout)

	// Verticals
	reviewsService := reviews.NewService(chainClient, orchestrator, renderer, repo, logger)
	reviewsHandler := reviews.NewHandler(reviewsService, logger)

	requestsService := requests.NewService(chainClient, orchestrator, logger)
	requestsHandler := requests.NewHandler(requestsService, logger)

	authService := auth.NewService(cfg.Security.JWTSecret, cfg.Security.PortalAPIKey, cfg.Security.TokenTTL)
	authHandler := auth.NewHandler(authService, logger)

	// Reconciliation worker for index writes orphaned after confirmation
	worker := reconcile.NewWorker(repo, logger, reconcile.DefaultWorkerConfig())
	if err := worker.Start(ctx); err != nil {
		logger.Fatal("Failed to start reconciliation worker", zap.Error(err))
	}
	defer worker.Stop()

	// Setup Router
	if !cfg.Chain.Production {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes: reads are public, mutations need a bearer token
	public := router.Group("/api/v1")
	{
		authHandler.RegisterRoutes(public)
		public.GET("/notifications/ws", func(c *gin.Context) {
			if err := wsManager.HandleConnection(c.Writer, c.Request); err != nil {
				logger.Warn("websocket upgrade failed", zap.Error(err))
			}
		})
		public.GET("/notifications/recent", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"notifications": notifier.Recent()})
		})
		public.GET("/evidence/:cid", func(c *gin.Context) {
			body, contentType, err := gateway.Fetch(c.Request.Context(), c.Param("cid"))
			if err != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			defer body.Close()
			c.DataFromReader(http.StatusOK, -1, contentType, body, nil)
		})
	}

	protected := router.Group("/api/v1", auth.MutatingOnly(authService))
	{
		reviewsHandler.RegisterRoutes(protected)
		requestsHandler.RegisterRoutes(protected)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.Int("port", cfg.Server.Port))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

// Standalone reconciliation worker. The API process runs the same
// worker in-process; this binary exists for deployments that want index
// reconciliation isolated from request serving.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"deresy/review-portal/review-portal-backend/internal/config"
	"deresy/review-portal/review-portal-backend/internal/index"
	"deresy/review-portal/review-portal-backend/internal/reconcile"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	worker := reconcile.NewWorker(repo, logger, reconcile.DefaultWorkerConfig())
	if err := worker.Start(ctx); err != nil {
		logger.Fatal("Failed to start reconciliation worker", zap.Error(err))
	}

	logger.Info("Reconciliation worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Stopping reconciliation worker")
	worker.Stop()
}

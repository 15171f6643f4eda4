// Command querylog-worker drains the search history queue into Postgres.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"finrag/internal/config"
	"finrag/internal/logging"
	postgresClient "finrag/internal/platform/postgres"
	rabbitmqClient "finrag/internal/platform/rabbitmq"
	"finrag/internal/repository"
	"finrag/internal/worker"
)

const prefetch = 32

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("build logger failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.RabbitMQ.Enabled {
		logger.Fatal("rabbitmq is disabled, nothing to consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresClient.New(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("connect postgres failed", zap.Error(err))
	}
	conn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		logger.Fatal("connect rabbitmq failed", zap.Error(err))
	}
	defer conn.Close()

	w := worker.NewQueryLogWorker(conn, repository.NewSearchLogRepository(db), cfg.RabbitMQ.QueryLogQueue, prefetch, logger.Named("querylog"))
	if err := w.Start(ctx); err != nil {
		logger.Fatal("start query log worker failed", zap.Error(err))
	}
	logger.Info("query log worker running", zap.String("queue", cfg.RabbitMQ.QueryLogQueue))

	<-ctx.Done()
	logger.Info("query log worker stopping")
	w.Close()
}

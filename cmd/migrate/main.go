// Command migrate applies or rolls back the database schema.
//
//	migrate up        apply every pending migration
//	migrate rollback  undo the most recent migration
//	migrate list      print known migration ids
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"finrag/internal/config"
	"finrag/internal/logging"
	"finrag/internal/migrations"
	postgresClient "finrag/internal/platform/postgres"
)

func main() {
	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	if cmd == "list" {
		for _, id := range migrations.IDs() {
			fmt.Println(id)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("build logger failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := postgresClient.New(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Fatal("connect postgres failed", zap.Error(err))
	}
	opts := migrations.Options{Dimension: cfg.Embedding.Dimension}

	switch cmd {
	case "up":
		err = migrations.Run(db, opts)
	case "rollback":
		err = migrations.RollbackLast(db, opts)
	default:
		logger.Fatal("unknown command, want up, rollback or list", zap.String("command", cmd))
	}
	if err != nil {
		logger.Fatal("migration failed", zap.String("command", cmd), zap.Error(err))
	}
	logger.Info("migration finished", zap.String("command", cmd), zap.Int("dimension", opts.Dimension))
}

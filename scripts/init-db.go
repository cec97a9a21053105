package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"owner_ledger/internal/config"
	"owner_ledger/internal/database"
	"owner_ledger/internal/logger"
	"owner_ledger/internal/migrations"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	demo := flag.Int("demo", 0, "number of random demo orders to insert")
	flag.Parse()

	fmt.Println("Initializing database...")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	zl, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatal("Failed to create logger: ", err)
	}
	defer zl.Sync()

	db, err := database.Open(cfg.DBDriver, cfg.DatabaseURL, gormlogger.Warn)
	if err != nil {
		zl.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := migrations.RunMigrations(db, zl); err != nil {
		zl.Fatal("Failed to migrate database", zap.Error(err))
	}

	if *demo > 0 {
		if err := migrations.SeedDemoOrders(context.Background(), db, *demo, zl); err != nil {
			zl.Fatal("Failed to seed demo orders", zap.Error(err))
		}
	}

	fmt.Println("Database initialization completed successfully!")
}

// Command notify sends the payment-due digest once and exits. Meant for
// system cron or a manual run before month end.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/sjperalta/cashflow-api/internal/config"
	"github.com/sjperalta/cashflow-api/internal/database"
	"github.com/sjperalta/cashflow-api/internal/repository"
	"github.com/sjperalta/cashflow-api/internal/services"
	"github.com/sjperalta/cashflow-api/internal/storage"
	"github.com/sjperalta/cashflow-api/pkg/logger"
)

func main() {
	force := flag.Bool("force", false, "send even when tomorrow is not month end")
	envFile := flag.String("env", ".env", "env file to load")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("Warning: %s not loaded: %v", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Setup(cfg.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.Connect(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	loans := repository.NewGormLoanStore(db)
	if cfg.LoanStore == config.LoanStoreMongo {
		mongoDB, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			logger.Error("Failed to connect to mongo", "error", err)
			os.Exit(1)
		}
		defer mongoDB.Client().Disconnect(context.Background())

		if loans, err = repository.NewMongoLoanStore(ctx, mongoDB); err != nil {
			logger.Error("Failed to open mongo loan store", "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewLocalStorage(cfg.StoragePath, cfg.MaxUploadBytes())
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// No worker: emails and audit entries are written before we exit
	svcs := services.NewServices(repository.NewRepositories(db, loans), nil, store, cfg)

	result, err := svcs.Notification.SendPaymentDueDigest(ctx, *force)
	if err != nil {
		logger.Error("Payment due digest failed", "error", err)
		os.Exit(1)
	}
	if !result.Sent {
		logger.Info("Payment due digest not sent", "reason", result.Skipped)
		return
	}
	logger.Info("Payment due digest sent",
		"recipients", result.Recipients,
		"clients", result.ClientCount,
		"outstanding", result.TotalOutstanding,
	)
}

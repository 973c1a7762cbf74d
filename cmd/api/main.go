package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	_ "github.com/joho/godotenv/autoload"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/sjperalta/cashflow-api/docs" // Swagger docs
	"github.com/sjperalta/cashflow-api/internal/config"
	"github.com/sjperalta/cashflow-api/internal/database"
	"github.com/sjperalta/cashflow-api/internal/handlers"
	"github.com/sjperalta/cashflow-api/internal/jobs"
	"github.com/sjperalta/cashflow-api/internal/middleware"
	"github.com/sjperalta/cashflow-api/internal/repository"
	"github.com/sjperalta/cashflow-api/internal/services"
	"github.com/sjperalta/cashflow-api/internal/storage"
	"github.com/sjperalta/cashflow-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// @title Cashflow API
// @version 1.0
// @description REST API for the Cashflow short-term loan CRM
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@cashflow.local

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Setup(cfg.Environment)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	if !cfg.EnableEmailNotifications {
		logger.Warn("Email notifications disabled: set ENABLE_EMAIL_NOTIFICATIONS=true to send digests and receipts")
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	// Loans live in SQL unless LOAN_STORE=mongo
	var mongoDB *mongo.Database
	loans := repository.NewGormLoanStore(db)
	if cfg.LoanStore == config.LoanStoreMongo {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		mongoDB, err = database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err == nil {
			loans, err = repository.NewMongoLoanStore(ctx, mongoDB)
		}
		cancel()
		if err != nil {
			logger.Error("Failed to open mongo loan store", "error", err)
			os.Exit(1)
		}
		logger.Info("Connected to mongo loan store", "database", cfg.MongoDatabase)
	}

	// Initialize storage
	store, err := storage.NewLocalStorage(cfg.StoragePath, cfg.MaxUploadBytes())
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	logger.Info("Initialized local storage", "path", cfg.StoragePath)

	// Initialize repositories
	repos := repository.NewRepositories(db, loans)

	// Initialize background worker
	worker := jobs.NewWorker(cfg.WorkerCount, services.LoadLocation(cfg.NotifyTimezone))
	worker.OnError(func(name string, err error) {
		logger.Error("[Job] Failed", "job", name, "error", err)
		if cfg.SentryDSN != "" {
			sentry.CaptureException(err)
		}
	})
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	// Initialize services
	svcs := services.NewServices(repos, worker, store, cfg)

	if cfg.AdminEmail != "" {
		if err := svcs.Auth.SeedAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logger.Error("Failed to seed admin user", "error", err)
		}
	}

	// Schedule recurring jobs
	scheduleJobs(worker, svcs, cfg)

	// Initialize handlers
	h := handlers.NewHandlers(svcs, handlers.LoanStoreProbe{
		Name: repos.LoanStoreName(),
		Ping: repos.PingLoanStore,
	})

	// Setup router
	router := setupRouter(h, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "loan_store", repos.LoanStoreName())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	worker.Shutdown()
	logger.Info("Background worker stopped")

	if mongoDB != nil {
		if err := mongoDB.Client().Disconnect(ctx); err != nil {
			logger.Error("Failed to disconnect from mongo", "error", err)
		}
	}

	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadBytes()

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger("/api/v1/health"))
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Redirect root to swagger
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	handlers.RegisterRoutes(router.Group("/api/v1"), h, cfg.JWTSecret)

	return router
}

func scheduleJobs(worker *jobs.Worker, svcs *services.Services, cfg *config.Config) {
	// Re-derive balances and statuses so overdue loans surface without a page view
	worker.ScheduleEveryImmediate("refresh-statuses", time.Hour, func(ctx context.Context) error {
		updated, err := svcs.Client.RefreshStatuses(ctx)
		if err != nil {
			return err
		}
		logger.Info("[Job] Refreshed loan statuses", "updated", updated)
		return nil
	})

	worker.ScheduleEvery("refresh-analytics", 15*time.Minute, svcs.Analytics.Refresh)

	// The digest itself checks for month end; the cron only picks the hours
	for i, spec := range cfg.NotifyCron {
		err := worker.ScheduleCron(fmt.Sprintf("payment-due-digest-%d", i+1), spec, func(ctx context.Context) error {
			result, err := svcs.Notification.SendPaymentDueDigest(ctx, false)
			if err != nil {
				return err
			}
			if result.Sent {
				logger.Info("[Job] Payment due digest sent", "clients", result.ClientCount, "outstanding", result.TotalOutstanding)
			}
			return nil
		})
		if err != nil {
			logger.Error("Invalid NOTIFY_CRON entry", "spec", spec, "error", err)
		}
	}

	worker.ScheduleEvery("cleanup", 24*time.Hour, func(ctx context.Context) error {
		tokens, err := svcs.Auth.CleanExpiredTokens(ctx)
		if err != nil {
			return err
		}
		cached, err := svcs.Analytics.CleanExpired(ctx)
		if err != nil {
			return err
		}
		logger.Info("[Job] Cleanup finished", "refresh_tokens", tokens, "analytics_entries", cached)
		return nil
	})

	logger.Info("Scheduled recurring jobs", "digest_cron", cfg.NotifyCron, "timezone", worker.Location().String())
}

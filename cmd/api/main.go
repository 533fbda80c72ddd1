package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "ledger-ingest/docs"
	"ledger-ingest/internal/config"
	"ledger-ingest/internal/handler"
	"ledger-ingest/internal/importlock"
	"ledger-ingest/internal/middleware"
	"ledger-ingest/internal/parser"
	"ledger-ingest/internal/reconciler"
	"ledger-ingest/internal/repository"
	"ledger-ingest/internal/service"
	"ledger-ingest/internal/validator"
	"ledger-ingest/migrations"
	"ledger-ingest/pkg/logger"
)

// @title Ledger Ingest API
// @version 1.0
// @description API for importing accounting and billing exports into the customer ledger

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.App.LogLevel)
	logger.GetLogger().Info("Starting Ledger Ingest Service")

	// Connect to database
	db, err := connectDB(cfg.Database)
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	logger.GetLogger().Info("Database connection established")

	if cfg.App.AutoMigrate {
		if err := migrations.Up(db); err != nil {
			logger.GetLogger().WithError(err).Fatal("Failed to run migrations")
		}
	}

	store := repository.NewStore(db)

	guard, closeGuard, err := importlock.New(context.Background(), cfg.Lock, store.Meta())
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to initialize import lock")
	}
	defer closeGuard()

	// Initialize services
	engine := reconciler.NewEngine(cfg.Import.BatchSize)
	markupService := service.NewMarkupImportService(store, guard, engine, cfg.Import.MarkupSource)
	stagingService := service.NewStagingService(store, parser.NewWorkbookParser(), validator.New(), engine, cfg.Import.SheetSource)
	ledgerService := service.NewLedgerQueryService(store)

	// Initialize handlers
	importHandler := handler.NewImportHandler(markupService, stagingService, cfg.Server.HistoryLimit)
	ledgerHandler := handler.NewLedgerHandler(ledgerService, cfg.Server.HistoryLimit)
	healthHandler := handler.NewHealthHandler(store)

	router := setupRouter(cfg.Server, importHandler, ledgerHandler, healthHandler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.GetLogger().WithField("address", addr).Info("Server starting")

	if err := router.Run(addr); err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to start server")
	}
}

func connectDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

func setupRouter(
	cfg config.ServerConfig,
	importHandler *handler.ImportHandler,
	ledgerHandler *handler.LedgerHandler,
	healthHandler *handler.HealthHandler,
) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = 32 << 20

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	router.NoRoute(middleware.NoRoute())

	router.GET("/health", healthHandler.Health)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.BodyLimit(cfg.UploadMaxMB << 20))
	handler.RegisterRoutes(v1, importHandler, ledgerHandler)

	return router
}

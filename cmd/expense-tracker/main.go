package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expense-tracker/internal/api"
	"expense-tracker/internal/api/handlers"
	"expense-tracker/internal/metrics"
	"expense-tracker/internal/repository"
	"expense-tracker/internal/service"
	"expense-tracker/pkg/auth"
	"expense-tracker/pkg/blobstore"
	"expense-tracker/pkg/config"
	"expense-tracker/pkg/logger"
	"expense-tracker/pkg/middleware"
	"expense-tracker/pkg/postgres"

	"go.uber.org/zap"
)

// @title Expense Tracker API
// @version 1.0
// @description Receipt-based expense tracking with spoken voice tokens for hands-free sessions

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting expense tracker")

	metrics.MustInit()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	backend, err := blobstore.NewBackend(ctx, &cfg.Storage, &cfg.Redis, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize blob storage", zap.Error(err))
	}
	defer backend.Close()

	tokenBlobs := backend.Container(cfg.Storage.TokenPrefix)
	receiptBlobs := backend.Container(cfg.Storage.ReceiptPrefix)
	if err := receiptBlobs.CreateContainerIfNotExists(ctx); err != nil {
		appLogger.Fatal("Failed to prepare receipt storage", zap.Error(err))
	}

	// Repositories
	userRepo := repository.NewUserRepository(db, appLogger)
	receiptRepo := repository.NewReceiptRepository(db, appLogger)
	expenseRepo := repository.NewExpenseRepository(db, appLogger)

	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration, cfg.JWT.RefreshExp)

	// Services
	authService := service.NewAuthService(userRepo, jwtManager, appLogger)

	voiceService := service.NewVoiceTokenService(tokenBlobs, appLogger)
	if err := voiceService.Ready(ctx); err != nil {
		// Every voice operation retries this, so the API can still start.
		appLogger.Warn("Voice token storage not ready", zap.Error(err))
	}

	visionService, err := service.NewVisionService(ctx, &cfg.GigaChat, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize vision service", zap.Error(err))
	}
	defer visionService.Close()

	ocrService := service.NewOCRService(visionService, appLogger)
	receiptService := service.NewReceiptService(receiptRepo, expenseRepo, receiptBlobs, ocrService, visionService, appLogger)
	reportService := service.NewReportService(expenseRepo, appLogger)

	validateLimiter := middleware.NewRateLimiter(cfg.RateLimit.ValidateRPS, cfg.RateLimit.ValidateBurst)
	go validateLimiter.Run(ctx, time.Minute)
	authLimiter := middleware.NewRateLimiter(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst)
	go authLimiter.Run(ctx, time.Minute)

	app := api.SetupRouter(api.Handlers{
		Auth:       handlers.NewAuthHandler(authService, appLogger),
		Receipt:    handlers.NewReceiptHandler(receiptService, appLogger),
		Expense:    handlers.NewExpenseHandler(reportService, appLogger),
		VoiceToken: handlers.NewVoiceTokenHandler(voiceService, appLogger),
	}, api.RouterConfig{
		BodyLimit:       cfg.Server.BodyLimit,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		JWTManager:      jwtManager,
		ValidateLimiter: validateLimiter,
		AuthLimiter:     authLimiter,
		HealthChecks:    map[string]func(context.Context) error{
			"database":     postgres.Check(db),
			"voice_tokens": voiceService.Ready,
		},
	}, appLogger)

	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}

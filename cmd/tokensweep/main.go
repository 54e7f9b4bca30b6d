// Command tokensweep deletes expired and unreadable voice tokens once and
// exits. Run it from cron when the API is idle for long stretches; the API
// itself only sweeps when a token is issued.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expense-tracker/internal/service"
	"expense-tracker/pkg/blobstore"
	"expense-tracker/pkg/config"
	"expense-tracker/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "abort the sweep after this long")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if cfg.Storage.Backend == "memory" {
		appLogger.Fatal("tokensweep needs a shared storage backend, not memory")
	}

	backend, err := blobstore.NewBackend(ctx, &cfg.Storage, &cfg.Redis, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize blob storage", zap.Error(err))
	}
	defer backend.Close()

	voiceService := service.NewVoiceTokenService(backend.Container(cfg.Storage.TokenPrefix), appLogger)

	stats, err := voiceService.CleanupExpired(ctx)
	if err != nil {
		appLogger.Fatal("Voice token sweep failed", zap.Error(err))
	}

	appLogger.Info("Voice token sweep finished",
		zap.Int("scanned", stats.Scanned),
		zap.Int("expired", stats.Expired),
		zap.Int("corrupt", stats.Corrupt),
		zap.Int("failed", stats.Failed),
	)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"feeledger/internal/auth"
	"feeledger/internal/cache"
	"feeledger/internal/cli"
	"feeledger/internal/config"
	apphttp "feeledger/internal/http"
	"feeledger/internal/log"
)

func main() {
	cfg, logger := cli.LoadConfig((*config.Config).Validate)
	logger.Info("Starting feeledger", "port", cfg.Port, "paid_window", cfg.PaidWindow, "restore_mode", cfg.RestoreMode)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient := cli.ConnectPublisher(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	app := cli.NewApp(cfg, repo, amqpClient)

	caches := cache.NewManager()
	caches.Register(app.Ledger.Cleaners()...)
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:               auth.NewJWTAuthenticator(cfg.JWTSecret),
		Ledger:             app.Ledger,
		Calendar:           app.Calendar,
		Directory:          app.Directory,
		Finance:            app.Finance,
		Backup:             app.Backup,
		DB:                 repo,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	// Restore bodies can reach MAX_ARCHIVE_BYTES.
	srv.ReadTimeout = 60 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

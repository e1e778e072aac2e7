// Package cli provides the initialization shared by cmd/feeledger,
// cmd/ledger-worker and cmd/ledgerctl.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"feeledger/internal/amqp"
	"feeledger/internal/archive"
	"feeledger/internal/config"
	"feeledger/internal/ledger"
	"feeledger/internal/log"
	"feeledger/internal/services"
	"feeledger/internal/session"
	"feeledger/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(levelName, format string) *log.Logger {
	cfg := log.DefaultConfig()
	if level, err := log.ParseLevel(levelName); err == nil {
		cfg.Level = level
	}
	cfg.Format = format
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration and runs validate on it.
// Exits the process on failure.
func LoadConfig(validate func(*config.Config) error) (*config.Config, *log.Logger) {
	LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		SetupLogger("info", "text").Error("Failed to load configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger := SetupLogger(cfg.LogLevel, cfg.LogFormat)
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg, logger
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	sqliteRepo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err.Error(), "path", dbPath)
		os.Exit(1)
	}
	return sqliteRepo
}

// ConnectPublisher returns an AMQP client when a URL is configured. A nil
// client means events are skipped.
func ConnectPublisher(logger *log.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, continuing without events", log.FieldError, err.Error())
		return nil
	}
	return client
}

// Calendar returns the session calendar configured by SESSION_START_MONTH.
func Calendar(cfg *config.Config) session.Calendar {
	cal, err := session.New(cfg.SessionStartMonth)
	if err != nil {
		return session.Default()
	}
	return cal
}

// App bundles the services every binary builds over one repository.
type App struct {
	Calendar   session.Calendar
	Aggregator *ledger.Aggregator
	// Ledger caches Aggregator results for the HTTP API.
	Ledger     *ledger.CachedAggregator
	Directory  *services.DirectoryService
	Finance    *services.FinanceService
	Backup     *services.BackupService
}

// NewApp wires the domain services. client may be nil.
func NewApp(cfg *config.Config, repo *storage.SQLiteRepository, client *amqp.Client) *App {
	var publisher services.EventPublisher
	if client != nil {
		publisher = client
	}

	cal := Calendar(cfg)
	mode, err := archive.ParseMode(cfg.RestoreMode)
	if err != nil {
		mode = archive.ModeAdditive
	}
	agg := ledger.NewAggregator(repo, cal, ledger.PaidWindow(cfg.PaidWindow))
	return &App{
		Calendar:   cal,
		Aggregator: agg,
		Ledger:     ledger.NewCachedAggregator(agg, 256, 30*time.Second),
		Directory:  services.NewDirectoryService(repo),
		Finance:    services.NewFinanceService(repo, publisher),
		Backup: services.NewBackupService(
			archive.NewExporter(repo),
			archive.NewImporter(archive.SQLiteTx(repo), cfg.MaxArchiveBytes),
			publisher, mode),
	}
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM, after
// cleanup has run with the given timeout.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}

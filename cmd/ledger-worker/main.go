package main

import (
	"context"
	"errors"
	"os"
	"time"

	"feeledger/internal/amqp"
	"feeledger/internal/cli"
	"feeledger/internal/config"
	"feeledger/internal/log"
	"feeledger/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig((*config.Config).ValidateWorker)
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting ledger-worker", "queue", cfg.AMQPQueue)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	app := cli.NewApp(cfg, repo, nil)
	ledgerWorker := worker.NewLedgerWorker(app.Aggregator, repo, app.Calendar)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := amqpClient.ConsumeEvents(ctx, ledgerWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption failed", log.FieldError, err.Error())
			cancel()
		}
	}()

	<-ctx.Done()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
	logger.Info("Worker shutdown complete")
}

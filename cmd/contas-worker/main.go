package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"contas/internal/amqp"
	"contas/internal/config"
	"contas/internal/export/google"
	"contas/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting contas-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	if cfg.SpreadsheetID == "" {
		logger.Error("Statement export disabled - no STATEMENT_SPREADSHEET_ID provided, nothing to do")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	statementClient, err := google.New(ctx, google.Config{
		SpreadsheetID:   cfg.SpreadsheetID,
		SheetName:       cfg.SheetName,
		CredentialsFile: cfg.CredentialsFile,
	})
	if err != nil {
		logger.Error("Failed to initialize statement client", "error", err)
		os.Exit(1)
	}
	logger.Info("Statement client initialized", "spreadsheet_id", cfg.SpreadsheetID, "sheet", cfg.SheetName)

	// The broker may come up after us; keep dialing until it does or we
	// are told to stop.
	amqpClient, err := amqp.DialWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP broker", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	statementWorker := worker.NewStatementWorker(amqpClient, statementClient)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return statementWorker.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down worker...")

		// Give the in-flight export a moment before the AMQP channel
		// closes underneath it.
		time.Sleep(2 * time.Second)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

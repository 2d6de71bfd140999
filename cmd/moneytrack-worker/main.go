package main

import (
	"os"
	"time"

	"moneytrack/internal/amqp"
	"moneytrack/internal/cli"
	"moneytrack/internal/log"
	"moneytrack/internal/sheets"
	gsheet "moneytrack/internal/sheets/google"
	memmirror "moneytrack/internal/sheets/memory"
	"moneytrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	result, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open record store", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer result.Cleanup()

	var mirror sheets.Mirror
	if cfg.MirrorEnabled() {
		mirror, err = gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Warn("Google Sheets not configured, mirroring into memory only")
		mirror = memmirror.New(logger)
	}

	var source worker.EventSource
	if cfg.AMQPURL != "" {
		consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer consumer.Close()
		source = consumer
	} else {
		logger.Info("AMQP disabled, mirroring by periodic resync only", "interval", cfg.SyncInterval)
	}

	w := worker.NewMirrorWorker(result.Store, mirror, cfg.SyncInterval, logger)
	logger.Info("Starting moneytrack-worker", log.FieldBackend, cfg.DataBackend)
	if err := w.Run(ctx, source); err != nil {
		logger.Error("Mirror worker stopped", log.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker stopped gracefully")
}

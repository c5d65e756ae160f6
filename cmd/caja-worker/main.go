package main

import (
	"context"
	"os"

	"caja/internal/amqp"
	"caja/internal/cli"
	"caja/internal/export"
	"caja/internal/log"
	"caja/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting caja-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.ExportEnabled() {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for the export worker")
		os.Exit(1)
	}

	gw := cli.OpenGateway(logger, cfg.DBPath)
	defer gw.Close()

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	sheets, err := export.NewSheets(ctx, export.SheetsConfig{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	// The worker only reads the ledger and records exports; it never publishes.
	svc := cli.NewServices(gw, logger, nil, cfg.BackupDir)
	w := worker.NewExportWorker(svc.Sessions, svc.Ledger, sheets, logger, cfg.ExportBatchSize)

	var source worker.EventSource
	if cfg.EventsEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		source = client
	} else {
		logger.Info("AMQP disabled, exporting by periodic sweep only", "interval", cfg.ExportInterval.String())
	}

	if err := w.Run(ctx, source, cfg.ExportInterval); err != nil && err != context.Canceled {
		logger.Error("Export worker stopped", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
}

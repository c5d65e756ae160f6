package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"caja/internal/amqp"
	"caja/internal/cache"
	"caja/internal/cli"
	apphttp "caja/internal/http"
	"caja/internal/log"
	"caja/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	gw := cli.OpenGateway(logger, cfg.DBPath)
	defer gw.Close()

	var publisher services.Publisher
	if cfg.EventsEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// Events are best effort; the register keeps working without a broker.
			logger.Warn("AMQP unavailable, ledger events disabled", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	svc := cli.NewServices(gw, logger, publisher, cfg.BackupDir)

	caches := cache.NewManager()
	caches.Register(svc.Categories.Cache())
	caches.OnClean(func(removed int) {
		logger.WithComponent(log.ComponentCache).Debug("Expired cache entries evicted", "removed", removed)
	})
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	srv := apphttp.NewServer(cfg.HTTPAddr, svc.Dispatcher(cfg.Currency, logger), logger,
		apphttp.Options{RateLimitPerMinute: cfg.RateLimitPerMinute})

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting caja server",
			log.FieldOperation, log.OpStartup,
			"addr", cfg.HTTPAddr,
			"db", cfg.DBPath,
			"currency", cfg.Currency,
			"events", publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "addr", cfg.HTTPAddr)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"moneytrack/internal/amqp"
	"moneytrack/internal/cli"
	"moneytrack/internal/client"
	"moneytrack/internal/dashboard"
	apphttp "moneytrack/internal/http"
	"moneytrack/internal/log"
	"moneytrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	ctx := context.Background()
	var (
		gateway dashboard.Gateway
		deps    apphttp.Deps
		closers []func() error
	)
	deps.Logger = logger

	if cfg.APIBaseURL != "" {
		// The UI talks to a remote API; this process serves no JSON routes.
		remote := client.New(cfg.APIBaseURL, logger)
		gateway = remote
		deps.Ready = func(ctx context.Context) error {
			_, err := remote.List(ctx)
			return err
		}
		logger.Info("Using remote transaction API", "api_base_url", cfg.APIBaseURL)
	} else {
		result, err := cli.OpenStore(ctx, cfg, logger)
		if err != nil {
			logger.Error("Failed to open record store", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
			os.Exit(1)
		}
		closers = append(closers, result.Cleanup)

		hub := apphttp.NewHub(logger, cfg.CORSAllowedOrigins)
		svc := services.NewTransactionService(result.Store, logger, hub)
		if cfg.AMQPURL != "" {
			publisher, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
			if err != nil {
				// Events are best effort; the API keeps working without a broker.
				logger.Warn("AMQP unavailable, change events will not be published", log.FieldError, err)
			} else {
				svc.AddNotifier(publisher)
				closers = append(closers, publisher.Close)
			}
		}

		gateway = svc
		deps.API = svc
		deps.Hub = hub
		deps.Ready = svc.Ping
	}
	deps.Dashboard = dashboard.NewController(gateway, logger)

	srv, err := apphttp.NewServer(apphttp.OptionsFromConfig(cfg), deps)
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting moneytrack server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warn("Close failed", log.FieldError, err)
		}
	}
	logger.Info("Server stopped gracefully")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"finora/internal/amqp"
	"finora/internal/backend"
	"finora/internal/backup"
	"finora/internal/cli"
	apphttp "finora/internal/http"
	"finora/internal/ledger"
	applog "finora/internal/log"
	"finora/internal/pin"
	"finora/internal/sample"
)

func main() {
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger("info", applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentApp)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	b, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to create backend", err)
	}

	scheme, err := pin.ParseScheme(cfg.PINScheme)
	if err != nil {
		cli.Fatal(logger, "Invalid PIN scheme", err)
	}
	pins := pin.NewService(b.KV, pin.Config{
		MaxAttempts:  cfg.PINMaxAttempts,
		LockDuration: cfg.PINLockDuration,
		Scheme:       scheme,
	})
	led := ledger.NewService(b.Finance, pins)

	opts := []backup.Option{
		backup.WithSample(sample.Loader(cfg.SampleDataFile)),
		backup.WithSyncLog(b.KV),
	}
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, backups will run inline", "error", err)
		} else {
			opts = append(opts, backup.WithPublisher(amqpClient))
			logger.Info("AMQP client initialized, backups are queued for finora-worker")
		}
	}
	backups := backup.NewService(b.Finance, b.Remote, backup.Config{
		Timeout:    cfg.RemoteTimeout,
		RetryDelay: cfg.RemoteRetryDelay,
	}, opts...)

	var ready apphttp.Pinger
	if p, ok := b.Finance.(apphttp.Pinger); ok {
		ready = p
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:         ":" + cfg.Port,
		Location:     cfg.Location(),
		CacheTTL:     cfg.CacheTTL,
		CacheSize:    cfg.CacheSize,
		RateLimitRPM: cfg.RateLimitRPM,
	}, led, backups, pins, ready, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", "error", err)
			}
		}
		if err := b.Close(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	})

	logger.Info("Starting finora server",
		"port", cfg.Port,
		"data_backend", cfg.DataBackend,
		"remote_backend", cfg.RemoteBackend,
		"timezone", cfg.Location().String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

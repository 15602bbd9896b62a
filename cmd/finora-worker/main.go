package main

import (
	"context"
	"errors"
	"time"

	"finora/internal/amqp"
	"finora/internal/backend"
	"finora/internal/backup"
	"finora/internal/cli"
	applog "finora/internal/log"
	"finora/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger("info", applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentWorker)
	logger.Info("Starting finora-worker")

	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "finora-worker needs a broker", errors.New("AMQP_URL is not set"))
	}
	if cfg.DataBackend != string(backend.SQLiteData) {
		logger.Warn("Worker is not sharing the server's SQLite database, queued backups will find no data",
			"data_backend", cfg.DataBackend)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	b, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to create backend", err)
	}
	if b.Remote == nil {
		_ = b.Close()
		cli.Fatal(logger, "finora-worker needs a remote backup target", backup.ErrRemoteDisabled)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		_ = b.Close()
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}

	backups := backup.NewService(b.Finance, b.Remote, backup.Config{
		Timeout:    cfg.RemoteTimeout,
		RetryDelay: cfg.RemoteRetryDelay,
	}, backup.WithSyncLog(b.KV))
	backupWorker := worker.NewBackupWorker(backups)

	consumed := make(chan struct{})
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		select {
		case <-consumed:
		case <-ctx.Done():
		}
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", "error", err)
		}
		if err := b.Close(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	})

	go func() {
		defer close(consumed)
		err := amqpClient.ConsumeBackupRequests(ctx, backupWorker.HandleBackupRequest)
		if err != nil && !errors.Is(err, context.Canceled) {
			cli.Fatal(logger, "Message consumption failed", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}

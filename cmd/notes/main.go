// Package main runs the notes service: note CRUD on Postgres, with a domain
// event sent to SQS after every committed mutation when SQS_QUEUE_URL is set.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"cloudnotes/internal/config"
	"cloudnotes/internal/core"
	"cloudnotes/internal/db"
	"cloudnotes/internal/notes"
	"cloudnotes/internal/queue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadNotesConfig(config.NewSecretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := core.NewLogger(cfg.LogLevel, "notes")
	logger.Info("notes service starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"port", cfg.Port,
	)

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	// Left nil when no queue is configured so the handler skips events.
	var events queue.Emitter
	if cfg.QueueURL != "" {
		awsCfg, err := config.NewAWSConfig(ctx, cfg.Region, cfg.AWSEndpointURL)
		if err != nil {
			return err
		}
		events = queue.NewEventProducer(sqs.NewFromConfig(awsCfg), cfg.QueueURL, logger)
	} else {
		logger.Warn("SQS_QUEUE_URL not set, note events disabled")
	}

	srv, err := notes.NewServer(db.NewNoteRepository(pool), events,
		[]core.HealthProbe{core.ProbeFunc{ProbeName: "database", Fn: pool.Ping}},
		logger,
	)
	if err != nil {
		return err
	}

	return core.ListenAndServe(ctx, ":"+cfg.Port, srv.Handler(), logger)
}

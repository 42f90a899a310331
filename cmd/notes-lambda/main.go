// Package main is the Lambda variant of the notes service. API Gateway proxy
// events are served by the same router as cmd/notes; the caller's identity is
// taken from the Cognito authorizer claims.
//
// The pool and the schema check are done once per cold start and reused by
// warm invocations.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"cloudnotes/internal/config"
	"cloudnotes/internal/core"
	"cloudnotes/internal/db"
	"cloudnotes/internal/notes"
	"cloudnotes/internal/queue"
)

func main() {
	handler, err := newHandler(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	lambda.Start(handler.Handle)
}

// newHandler does the cold-start wiring.
func newHandler(ctx context.Context) (*core.APIGatewayAdapter, error) {
	cfg, err := config.LoadNotesConfig(config.NewSecretProvider())
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := core.NewLogger(cfg.LogLevel, "notes")
	logger.Info("notes lambda cold start",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
	)

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	var events queue.Emitter
	if cfg.QueueURL != "" {
		awsCfg, err := config.NewAWSConfig(ctx, cfg.Region, cfg.AWSEndpointURL)
		if err != nil {
			pool.Close()
			return nil, err
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
		pool.Close()
		return nil, err
	}
	return core.NewAPIGatewayAdapter(srv.Handler(), logger), nil
}

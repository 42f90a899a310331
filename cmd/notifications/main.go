// Package main runs the notifications service. One process serves the
// history API and long-polls the note event queue, publishing each event to
// the SNS topic and recording it in the notifications table.
//
// Both halves stop on SIGINT or SIGTERM; a failure in either stops the other.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"golang.org/x/sync/errgroup"

	"cloudnotes/internal/config"
	"cloudnotes/internal/core"
	"cloudnotes/internal/notifications"
	"cloudnotes/internal/relay"
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

	cfg, err := config.LoadNotificationsConfig(config.NewSecretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := core.NewLogger(cfg.LogLevel, "notifications")
	logger.Info("notifications service starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"queue_url", cfg.Relay.QueueURL,
		"topic_arn", cfg.Fanout.TopicARN,
		"port", cfg.Port,
	)

	awsCfg, err := config.NewAWSConfig(ctx, cfg.Region, cfg.AWSEndpointURL)
	if err != nil {
		return err
	}
	ddb := dynamodb.NewFromConfig(awsCfg)

	publisher := notifications.NewPublisher(
		sns.NewFromConfig(awsCfg), cfg.Fanout.TopicARN,
		ddb, cfg.Fanout.NotificationTable,
		logger,
	)
	rl := relay.New(publisher, newMetrics(awsCfg, cfg.Fanout, logger), logger)
	poller := relay.NewPoller(sqs.NewFromConfig(awsCfg), rl, cfg.Relay, logger)

	history := notifications.NewHistoryStore(ddb, cfg.Fanout.NotificationTable)
	srv, err := core.NewServer("notifications", logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.RouteRegistrars = append(srv.RouteRegistrars,
		notifications.NewHandler(history, logger).RegisterRoutes,
	)
	srv.MountRoutes()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return core.ListenAndServe(gctx, ":"+cfg.Port, srv.Handler(), logger)
	})
	g.Go(func() error {
		return poller.Run(gctx)
	})
	return g.Wait()
}

func newMetrics(awsCfg aws.Config, cfg config.FanoutConfig, logger *slog.Logger) relay.Metrics {
	if !cfg.MetricsEnabled {
		return notifications.NoopMetrics{}
	}
	return notifications.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.MetricNamespace, logger)
}

// Package main is the Lambda variant of the notification relay. The SQS event
// source mapping delivers batches; messages that must be retried are reported
// back as batch item failures, so the mapping needs ReportBatchItemFailures
// enabled.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"cloudnotes/internal/config"
	"cloudnotes/internal/core"
	"cloudnotes/internal/notifications"
	"cloudnotes/internal/relay"
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
func newHandler(ctx context.Context) (*relay.LambdaHandler, error) {
	cfg, err := config.LoadRelayLambdaConfig(config.NewSecretProvider())
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := core.NewLogger(cfg.LogLevel, "relay")
	logger.Info("relay lambda cold start",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"topic_arn", cfg.Fanout.TopicARN,
	)

	awsCfg, err := config.NewAWSConfig(ctx, cfg.Region, cfg.AWSEndpointURL)
	if err != nil {
		return nil, err
	}

	publisher := notifications.NewPublisher(
		sns.NewFromConfig(awsCfg), cfg.Fanout.TopicARN,
		dynamodb.NewFromConfig(awsCfg), cfg.Fanout.NotificationTable,
		logger,
	)
	rl := relay.New(publisher, newMetrics(awsCfg, cfg.Fanout, logger), logger)
	return relay.NewLambdaHandler(rl, logger), nil
}

func newMetrics(awsCfg aws.Config, cfg config.FanoutConfig, logger *slog.Logger) relay.Metrics {
	if !cfg.MetricsEnabled {
		return notifications.NoopMetrics{}
	}
	return notifications.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.MetricNamespace, logger)
}

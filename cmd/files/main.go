// Package main runs the files service: uploads go to S3 under a per-user key
// prefix and their metadata to DynamoDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"cloudnotes/internal/config"
	"cloudnotes/internal/core"
	"cloudnotes/internal/files"
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

	cfg, err := config.LoadFilesConfig(config.NewSecretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := core.NewLogger(cfg.LogLevel, "files")
	logger.Info("files service starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"bucket", cfg.Bucket,
		"port", cfg.Port,
	)

	awsCfg, err := config.NewAWSConfig(ctx, cfg.Region, cfg.AWSEndpointURL)
	if err != nil {
		return err
	}
	objects := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// LocalStack serves buckets on the path, not as subdomains.
		o.UsePathStyle = cfg.AWSEndpointURL != ""
	})
	meta := files.NewMetadataStore(dynamodb.NewFromConfig(awsCfg), cfg.MetadataTable)
	svc := files.NewService(objects, meta, cfg.Bucket, cfg.Region, logger)

	srv, err := core.NewServer("files", logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	// Large uploads need more than the default request deadline.
	srv.RequestTimeout = 0
	srv.RouteRegistrars = append(srv.RouteRegistrars,
		files.NewHandler(svc, cfg.MaxUploadBytes, logger).RegisterRoutes,
	)
	srv.MountRoutes()

	return core.ListenAndServe(ctx, ":"+cfg.Port, srv.Handler(), logger)
}

// Package main runs the auth service, a thin JSON front over the Cognito user
// pool. It is reached only through the gateway.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"

	"cloudnotes/internal/auth"
	"cloudnotes/internal/config"
	"cloudnotes/internal/core"
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

	cfg, err := config.LoadAuthServiceConfig(config.NewSecretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := core.NewLogger(cfg.LogLevel, "auth")
	logger.Info("auth service starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"port", cfg.Port,
	)

	awsCfg, err := config.NewAWSConfig(ctx, cfg.Region, cfg.AWSEndpointURL)
	if err != nil {
		return err
	}
	svc := auth.NewService(cognitoidentityprovider.NewFromConfig(awsCfg), cfg.CognitoClientID, logger)

	srv, err := core.NewServer("auth", logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.RouteRegistrars = append(srv.RouteRegistrars,
		auth.NewHandler(svc, srv.Validator, logger).RegisterRoutes,
	)
	srv.MountRoutes()

	return core.ListenAndServe(ctx, ":"+cfg.Port, srv.Handler(), logger)
}

// Package main runs the public API gateway. It matches each /api request to a
// route rule, verifies the caller's access token where the rule requires it,
// and forwards to the owning backend with trusted identity headers.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"

	"cloudnotes/internal/config"
	"cloudnotes/internal/core"
	"cloudnotes/internal/gateway"
	"cloudnotes/internal/identity"
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

	cfg, err := config.LoadGatewayConfig(config.NewSecretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := core.NewLogger(cfg.LogLevel, "gateway")
	logger.Info("gateway starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Port,
	)

	awsCfg, err := config.NewAWSConfig(ctx, cfg.Region, cfg.AWSEndpointURL)
	if err != nil {
		return err
	}
	verifier := identity.NewVerifier(cognitoidentityprovider.NewFromConfig(awsCfg), logger)

	srv, err := buildServer(cfg, verifier, logger)
	if err != nil {
		return err
	}

	return core.ListenAndServe(ctx, ":"+cfg.Port, srv.Handler(), logger)
}

// buildServer assembles the gateway chassis around the route table described
// by cfg.
func buildServer(cfg *config.GatewayConfig, verifier gateway.TokenVerifier, logger *slog.Logger) (*core.Server, error) {
	rules, err := gateway.LoadRoutes(cfg)
	if err != nil {
		return nil, fmt.Errorf("loading routes: %w", err)
	}
	routes, err := gateway.NewRouteTable(rules)
	if err != nil {
		return nil, fmt.Errorf("building route table: %w", err)
	}
	for _, rule := range routes.Rules() {
		logger.Info("route registered",
			"prefix", rule.Prefix,
			"backend", rule.Backend,
			"requires_identity", rule.RequiresIdentity,
		)
	}

	handler, err := gateway.NewHandler(routes, verifier, cfg.Upstream, logger)
	if err != nil {
		return nil, fmt.Errorf("creating gateway handler: %w", err)
	}

	srv, err := core.NewServer("api", logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.CORSAllowedOrigins = cfg.CorsAllowedOrigins
	// Uploads stream through; backends enforce their own deadlines.
	srv.RequestTimeout = 0
	srv.RouteRegistrars = append(srv.RouteRegistrars, handler.RegisterRoutes)
	srv.MountRoutes()
	return srv, nil
}

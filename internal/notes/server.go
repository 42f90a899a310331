package notes

import (
	"fmt"
	"log/slog"

	"cloudnotes/internal/core"
	"cloudnotes/internal/queue"
)

// NewServer builds the notes service chassis. The HTTP listener and the Lambda
// adapter serve the same router.
func NewServer(store Store, events queue.Emitter, checks []core.HealthProbe, logger *slog.Logger) (*core.Server, error) {
	srv, err := core.NewServer("notes", logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = checks
	srv.RouteRegistrars = append(srv.RouteRegistrars,
		NewHandler(store, events, srv.Validator, logger).RegisterRoutes,
	)
	srv.MountRoutes()
	return srv, nil
}

// Package core provides the HTTP chassis shared by every cloudnotes service.
// It builds a chi router, applies the cross-cutting middleware chain (panic
// recovery, request ids, logging, CORS, security headers) and exposes the
// JSON envelope helpers handlers use to write responses.
package core

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RouteRegistrar mounts a domain's routes onto the service router.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the router and the dependencies shared by every
// middleware.
type Server struct {
	// Name is the service name. Health is served at /health and /<Name>/health.
	Name      string
	Logger    *slog.Logger
	Validator *Validator

	// HealthProbes are checked by GET /health; none means always healthy.
	HealthProbes []HealthProbe

	// CORSAllowedOrigins enables the CORS middleware when non-empty. Only the
	// public gateway sets it.
	CORSAllowedOrigins []string

	// RequestTimeout bounds each request context. Zero disables the deadline,
	// which the gateway uses so long uploads can stream through.
	RequestTimeout time.Duration

	RouteRegistrars []RouteRegistrar

	router *chi.Mux
}

// NewServer creates a Server for the named service.
func NewServer(name string, logger *slog.Logger) (*Server, error) {
	if name == "" {
		return nil, fmt.Errorf("service name must not be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Name:           name,
		Logger:         logger,
		Validator:      NewValidator(),
		RequestTimeout: defaultRequestTimeout,
		router:         chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cloudnotes/internal/config"
	"cloudnotes/internal/core"
	"cloudnotes/internal/identity"
	"cloudnotes/internal/types"
)

// TokenVerifier resolves a bearer token to the caller's identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*types.Identity, error)
}

// Handler routes every /api request: resolve the rule, verify identity when
// the rule requires it, then forward.
type Handler struct {
	routes        *RouteTable
	forwarders    map[string]*Forwarder
	verifier      TokenVerifier
	verifyTimeout time.Duration
	logger        *slog.Logger
}

// NewHandler builds one Forwarder per distinct backend in routes.
func NewHandler(routes *RouteTable, verifier TokenVerifier, upstream config.UpstreamConfig, logger *slog.Logger) (*Handler, error) {
	if routes == nil {
		return nil, fmt.Errorf("route table must not be nil")
	}
	if verifier == nil {
		return nil, fmt.Errorf("token verifier must not be nil")
	}

	forwarders := make(map[string]*Forwarder)
	for backend, u := range routes.Backends() {
		forwarders[backend] = NewForwarder(u, upstream, logger)
	}

	return &Handler{
		routes:        routes,
		forwarders:    forwarders,
		verifier:      verifier,
		verifyTimeout: upstream.VerifyTimeout,
		logger:        logger,
	}, nil
}

// RegisterRoutes sends everything not claimed by the chassis (health) to the
// gateway handler.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Handle("/*", h)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.routes.Resolve(r.Method, r.URL.Path)
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundRoute, "route not found", nil))
		return
	}

	injected := http.Header{}
	if rule.RequiresIdentity {
		id, err := h.verify(r)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		injected.Set(types.HeaderUserID, id.ID)
		if id.Email != "" {
			injected.Set(types.HeaderUserEmail, id.Email)
		}
	}

	h.forwarders[rule.Backend].Forward(w, r, rule, injected)
}

func (h *Handler) verify(r *http.Request) (*types.Identity, error) {
	ctx := r.Context()
	if h.verifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.verifyTimeout)
		defer cancel()
	}
	token := identity.ExtractBearerToken(r.Header.Get("Authorization"))
	return h.verifier.Verify(ctx, token)
}

package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"cloudnotes/internal/types"
)

const defaultRequestTimeout = 30 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in
// request logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"Set-Cookie",
}

// MountRoutes registers the global middleware chain, the health endpoints
// (GET and HEAD, with or without a trailing slash) and every RouteRegistrar. Call it once after the Server fields are set.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	for _, base := range []string{"/health", "/" + s.Name + "/health"} {
		for _, path := range []string{base, base + "/"} {
			s.router.Get(path, s.HandleHealth)
			s.router.Head(path, s.HandleHealth)
		}
	}

	for _, registrar := range s.RouteRegistrars {
		registrar(s.router)
	}
}

// registerGlobalMiddleware applies middleware in strict order.
//
//  1. Recoverer       - outermost, catches every panic.
//  2. RequestID       - correlation id for logs and the error envelope.
//  3. ContextTimeout  - soft deadline (skipped when zero).
//  4. SecurityHeaders
//  5. RequestLogger   - redacted headers, level by status.
//  6. CORS            - only when origins are configured.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	if s.RequestTimeout > 0 {
		s.router.Use(ContextTimeoutMiddleware(s.RequestTimeout))
	}
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	if len(s.CORSAllowedOrigins) > 0 {
		s.router.Use(NewCORSMiddleware(s.CORSAllowedOrigins))
	}
}

// ContextTimeoutMiddleware sets a deadline on the request context.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware reuses an incoming X-Request-Id or generates one,
// stores it in the context and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(types.HeaderRequestID)
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set(types.HeaderRequestID, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateRequestID returns 16 random bytes as 32 hex characters.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fallback-" + hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}

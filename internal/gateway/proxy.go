package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"

	"cloudnotes/internal/config"
	"cloudnotes/internal/core"
	"cloudnotes/internal/types"
)

// trustHeaders never pass through from the client; only the gateway sets them.
var trustHeaders = []string{types.HeaderUserID, types.HeaderUserEmail}

// Forwarder reverse-proxies requests to one backend through a circuit
// breaker. There are no retries.
type Forwarder struct {
	target    *url.URL
	transport http.RoundTripper
	logger    *slog.Logger
}

// NewForwarder creates a Forwarder for target with its own connection pool and
// breaker.
func NewForwarder(target *url.URL, cfg config.UpstreamConfig, logger *slog.Logger) *Forwarder {
	base := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
	}
	return newForwarderWithTransport(target, newBreakerTransport(target.Host, base, cfg, logger), logger)
}

func newForwarderWithTransport(target *url.URL, rt http.RoundTripper, logger *slog.Logger) *Forwarder {
	return &Forwarder{target: target, transport: rt, logger: logger}
}

// Forward proxies r to the backend with the rule's prefix rewritten and the
// trust headers replaced by injected. The backend response is streamed back
// unchanged. Transport failures become 502, an open breaker 503.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, rule RouteRule, injected http.Header) {
	requestID := types.GetRequestID(r.Context())

	rp := &httputil.ReverseProxy{
		Transport: f.transport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = rule.RewritePath(pr.In.URL.Path)
			pr.Out.URL.RawPath = ""
			if pr.In.URL.RawPath != "" {
				pr.Out.URL.RawPath = rule.RewritePath(pr.In.URL.RawPath)
			}
			pr.SetURL(f.target)
			// Rewrite drops the inbound X-Forwarded-* headers; keep the
			// client chain so SetXForwarded appends to it.
			pr.Out.Header["X-Forwarded-For"] = pr.In.Header["X-Forwarded-For"]
			pr.SetXForwarded()

			for _, h := range trustHeaders {
				pr.Out.Header.Del(h)
			}
			for k, vs := range injected {
				pr.Out.Header[http.CanonicalHeaderKey(k)] = vs
			}
			if requestID != "" {
				pr.Out.Header.Set(types.HeaderRequestID, requestID)
			}
		},
		ModifyResponse: func(res *http.Response) error {
			// The backend's headers win over anything the gateway chassis
			// already set.
			for k := range res.Header {
				w.Header().Del(k)
			}
			return nil
		},
		ErrorHandler: f.handleError,
	}

	rp.ServeHTTP(w, r)
}

func (f *Forwarder) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		f.logger.Warn("upstream circuit open",
			slog.String("backend", f.target.Host),
			slog.String("path", r.URL.Path),
		)
		core.Error(w, r, types.NewAppError(types.ErrCodeUpstreamCircuitOpen, "service temporarily unavailable", err))
	case errors.Is(err, context.Canceled):
		f.logger.Info("client cancelled proxied request", slog.String("backend", f.target.Host))
		core.Error(w, r, types.NewAppError(types.ErrCodeUpstreamUnavailable, "bad gateway", err))
	default:
		f.logger.Error("upstream request failed",
			slog.String("backend", f.target.Host),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		core.Error(w, r, types.NewAppError(types.ErrCodeUpstreamUnavailable, "bad gateway", err))
	}
}

// breakerTransport counts transport errors against a circuit breaker. HTTP
// error statuses from the backend are responses, not failures.
type breakerTransport struct {
	base    http.RoundTripper
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

func newBreakerTransport(name string, base http.RoundTripper, cfg config.UpstreamConfig, logger *slog.Logger) *breakerTransport {
	threshold := cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("upstream breaker state change",
				slog.String("backend", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &breakerTransport{base: base, breaker: cb}
}

// RoundTrip implements http.RoundTripper.
func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.breaker.Execute(func() (*http.Response, error) {
		return t.base.RoundTrip(req)
	})
}

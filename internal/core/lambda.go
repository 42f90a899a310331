package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"

	"cloudnotes/internal/types"
)

// APIGatewayAdapter serves API Gateway proxy events through an http.Handler,
// so the same chi router runs behind a listener or as a Lambda function.
//
// The caller's identity comes from the Cognito authorizer claims when the
// method has an authorizer. Without claims the request's own X-User-Id is
// kept, which is only safe when API Gateway is the sole way to invoke the
// function and every notes method is authorized.
type APIGatewayAdapter struct {
	handler http.Handler
	logger  *slog.Logger
}

func NewAPIGatewayAdapter(handler http.Handler, logger *slog.Logger) *APIGatewayAdapter {
	return &APIGatewayAdapter{handler: handler, logger: logger}
}

// Handle converts ev to an *http.Request, serves it and converts the result.
// Only a malformed event is returned as an error; handler failures are
// already encoded in the response.
func (a *APIGatewayAdapter) Handle(ctx context.Context, ev events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := a.newRequest(ctx, ev)
	if err != nil {
		a.logger.ErrorContext(ctx, "rejecting malformed api gateway event",
			"path", ev.Path,
			"error", err,
		)
		return events.APIGatewayProxyResponse{}, err
	}

	rw := newLambdaResponseWriter()
	a.handler.ServeHTTP(rw, req)
	return rw.response(), nil
}

func (a *APIGatewayAdapter) newRequest(ctx context.Context, ev events.APIGatewayProxyRequest) (*http.Request, error) {
	body := []byte(ev.Body)
	if ev.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(ev.Body)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 body: %w", err)
		}
		body = decoded
	}

	path := ev.Path
	if path == "" {
		path = "/"
	}
	u := &url.URL{Path: path, RawQuery: eventQuery(ev).Encode()}

	req, err := http.NewRequestWithContext(ctx, ev.HTTPMethod, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	for k, v := range ev.Headers {
		req.Header.Set(k, v)
	}
	for k, vs := range ev.MultiValueHeaders {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	}
	if req.Header.Get(types.HeaderRequestID) == "" && ev.RequestContext.RequestID != "" {
		req.Header.Set(types.HeaderRequestID, ev.RequestContext.RequestID)
	}
	if ip := ev.RequestContext.Identity.SourceIP; ip != "" {
		req.RemoteAddr = ip + ":0"
	}
	req.ContentLength = int64(len(body))

	applyAuthorizerIdentity(req, ev.RequestContext)
	return req, nil
}

func eventQuery(ev events.APIGatewayProxyRequest) url.Values {
	q := url.Values{}
	for k, v := range ev.QueryStringParameters {
		q.Set(k, v)
	}
	for k, vs := range ev.MultiValueQueryStringParameters {
		q[k] = append([]string(nil), vs...)
	}
	return q
}

// applyAuthorizerIdentity overwrites the trusted identity headers with the
// authorizer's view of the caller. The REST API exposes claims under
// "claims"; the HTTP API JWT authorizer nests them under "jwt".
func applyAuthorizerIdentity(req *http.Request, rc events.APIGatewayProxyRequestContext) {
	claims := authorizerClaims(rc.Authorizer)
	if sub := claimString(claims, "sub"); sub != "" {
		req.Header.Set(types.HeaderUserID, sub)
		req.Header.Del(types.HeaderUserEmail)
		if email := claimString(claims, "email"); email != "" {
			req.Header.Set(types.HeaderUserEmail, email)
		}
		return
	}
	if req.Header.Get(types.HeaderUserID) == "" && rc.Identity.CognitoIdentityID != "" {
		req.Header.Set(types.HeaderUserID, rc.Identity.CognitoIdentityID)
	}
}

func authorizerClaims(authorizer map[string]any) map[string]any {
	if claims, ok := authorizer["claims"].(map[string]any); ok {
		return claims
	}
	if jwt, ok := authorizer["jwt"].(map[string]any); ok {
		if claims, ok := jwt["claims"].(map[string]any); ok {
			return claims
		}
	}
	return nil
}

func claimString(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}

// lambdaResponseWriter buffers the handler's response for the proxy result.
type lambdaResponseWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newLambdaResponseWriter() *lambdaResponseWriter {
	return &lambdaResponseWriter{header: http.Header{}}
}

func (w *lambdaResponseWriter) Header() http.Header { return w.header }

func (w *lambdaResponseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *lambdaResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *lambdaResponseWriter) response() events.APIGatewayProxyResponse {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}

	resp := events.APIGatewayProxyResponse{
		StatusCode:        status,
		Headers:           make(map[string]string, len(w.header)),
		MultiValueHeaders: make(map[string][]string, len(w.header)),
	}
	for k, vs := range w.header {
		if len(vs) == 0 {
			continue
		}
		resp.Headers[k] = vs[0]
		resp.MultiValueHeaders[k] = append([]string(nil), vs...)
	}

	if b := w.body.Bytes(); utf8.Valid(b) {
		resp.Body = string(b)
	} else {
		resp.Body = base64.StdEncoding.EncodeToString(b)
		resp.IsBase64Encoded = true
	}
	return resp
}

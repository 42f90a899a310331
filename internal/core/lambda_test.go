package core

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudnotes/internal/types"
)

type echoed struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	Query     string `json:"query"`
	Body      string `json:"body"`
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`
	RequestID string `json:"request_id"`
}

func newEchoAdapter() *APIGatewayAdapter {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Add("X-Multi", "a")
		w.Header().Add("X-Multi", "b")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(echoed{
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			Body:      string(b),
			UserID:    r.Header.Get(types.HeaderUserID),
			UserEmail: r.Header.Get(types.HeaderUserEmail),
			RequestID: r.Header.Get(types.HeaderRequestID),
		})
	})
	return NewAPIGatewayAdapter(h, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func decodeEcho(t *testing.T, resp events.APIGatewayProxyResponse) echoed {
	t.Helper()
	var got echoed
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &got))
	return got
}

func TestAPIGatewayAdapter_TranslatesRequestAndResponse(t *testing.T) {
	a := newEchoAdapter()

	resp, err := a.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:                      http.MethodPost,
		Path:                            "/notes",
		Headers:                         map[string]string{"content-type": "application/json"},
		MultiValueQueryStringParameters: map[string][]string{"tag": {"x", "y"}},
		Body:                            `{"title":"t"}`,
		RequestContext: events.APIGatewayProxyRequestContext{
			RequestID: "apigw-req-1",
			Identity:  events.APIGatewayRequestIdentity{SourceIP: "203.0.113.9"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.False(t, resp.IsBase64Encoded)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.Equal(t, []string{"a", "b"}, resp.MultiValueHeaders["X-Multi"])

	got := decodeEcho(t, resp)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/notes", got.Path)
	assert.Equal(t, "tag=x&tag=y", got.Query)
	assert.Equal(t, `{"title":"t"}`, got.Body)
	assert.Equal(t, "apigw-req-1", got.RequestID)
}

func TestAPIGatewayAdapter_Base64Body(t *testing.T) {
	a := newEchoAdapter()

	resp, err := a.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPut,
		Path:            "/notes/1",
		Body:            base64.StdEncoding.EncodeToString([]byte(`{"content":"c"}`)),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"content":"c"}`, decodeEcho(t, resp).Body)

	_, err = a.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPut,
		Path:            "/notes/1",
		Body:            "not base64!",
		IsBase64Encoded: true,
	})
	assert.Error(t, err)
}

func TestAPIGatewayAdapter_Identity(t *testing.T) {
	tests := []struct {
		name      string
		headers   map[string]string
		rc        events.APIGatewayProxyRequestContext
		wantID    string
		wantEmail string
	}{
		{
			name:    "rest authorizer claims override headers",
			headers: map[string]string{"x-user-id": "spoofed", "x-user-email": "spoofed@example.com"},
			rc: events.APIGatewayProxyRequestContext{
				Authorizer: map[string]any{
					"claims": map[string]any{"sub": "user-1", "email": "u1@example.com"},
				},
			},
			wantID:    "user-1",
			wantEmail: "u1@example.com",
		},
		{
			name:    "claims without email clear the email header",
			headers: map[string]string{"x-user-email": "spoofed@example.com"},
			rc: events.APIGatewayProxyRequestContext{
				Authorizer: map[string]any{"claims": map[string]any{"sub": "user-1"}},
			},
			wantID: "user-1",
		},
		{
			name: "http api jwt claims",
			rc: events.APIGatewayProxyRequestContext{
				Authorizer: map[string]any{
					"jwt": map[string]any{"claims": map[string]any{"sub": "user-2"}},
				},
			},
			wantID: "user-2",
		},
		{
			name:    "falls back to x-user-id header",
			headers: map[string]string{"x-user-id": "user-3"},
			wantID:  "user-3",
		},
		{
			name: "falls back to cognito identity id",
			rc: events.APIGatewayProxyRequestContext{
				Identity: events.APIGatewayRequestIdentity{CognitoIdentityID: "us-east-1:abc"},
			},
			wantID: "us-east-1:abc",
		},
		{
			name: "no identity",
		},
	}

	a := newEchoAdapter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := a.Handle(context.Background(), events.APIGatewayProxyRequest{
				HTTPMethod:     http.MethodGet,
				Path:           "/notes",
				Headers:        tt.headers,
				RequestContext: tt.rc,
			})
			require.NoError(t, err)

			got := decodeEcho(t, resp)
			assert.Equal(t, tt.wantID, got.UserID)
			assert.Equal(t, tt.wantEmail, got.UserEmail)
		})
	}
}

func TestAPIGatewayAdapter_ThroughServer(t *testing.T) {
	srv, err := NewServer("notes", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	srv.RouteRegistrars = append(srv.RouteRegistrars, func(r chi.Router) {
		r.With(RequireTrustedIdentity).Get("/notes", func(w http.ResponseWriter, r *http.Request) {
			JSON(w, r, http.StatusOK, APIResponse{Data: MustIdentity(r).ID})
		})
	})
	srv.MountRoutes()
	a := NewAPIGatewayAdapter(srv.Handler(), srv.Logger)

	resp, err := a.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/notes",
		RequestContext: events.APIGatewayProxyRequestContext{
			Authorizer: map[string]any{"claims": map[string]any{"sub": "user-1"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Body, `"user-1"`)
	assert.NotEmpty(t, resp.Headers[types.HeaderRequestID])

	resp, err = a.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/notes",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Body, string(types.ErrCodeAuthIdentityMissing))

	resp, err = a.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/notes/health",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

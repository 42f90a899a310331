package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudnotes/internal/core"
	"cloudnotes/internal/types"
)

type stubAccounts struct {
	registered []Registration
	forgot     []string
	profileTok string
	err        error
}

func (s *stubAccounts) Register(_ context.Context, reg Registration) (string, error) {
	s.registered = append(s.registered, reg)
	return "sub-1", s.err
}

func (s *stubAccounts) Confirm(context.Context, string, string) error { return s.err }

func (s *stubAccounts) Login(context.Context, string, string) (*Tokens, *User, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return &Tokens{AccessToken: "access", ExpiresIn: 3600}, &User{ID: "sub-1", Email: "ada@example.com"}, nil
}

func (s *stubAccounts) ForgotPassword(_ context.Context, email string) {
	s.forgot = append(s.forgot, email)
}

func (s *stubAccounts) ResetPassword(context.Context, string, string, string) error { return s.err }

func (s *stubAccounts) Profile(_ context.Context, token string) (*User, error) {
	s.profileTok = token
	if s.err != nil {
		return nil, s.err
	}
	return &User{ID: "sub-1", FirstName: "Ada"}, nil
}

func newRouter(accounts Accounts) http.Handler {
	r := chi.NewRouter()
	NewHandler(accounts, core.NewValidator(), discardLogger()).RegisterRoutes(r)
	return r
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestRegisterHandler(t *testing.T) {
	accounts := &stubAccounts{}
	rec := post(t, newRouter(accounts), "/auth/register",
		`{"email":"ada@example.com","password":"pw","firstName":"Ada","lastName":"Lovelace"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp registerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sub-1", resp.UserID)
	require.Len(t, accounts.registered, 1)
	assert.Equal(t, "Lovelace", accounts.registered[0].LastName)
}

func TestRegisterHandler_Validation(t *testing.T) {
	accounts := &stubAccounts{}
	h := newRouter(accounts)

	rec := post(t, h, "/auth/register", `{"email":"ada@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), errorCode(t, rec))

	rec = post(t, h, "/auth/register", `{"email":"not-an-email","password":"pw","firstName":"A","lastName":"B"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidInput), errorCode(t, rec))

	rec = post(t, h, "/auth/register", `{`)
	assert.Equal(t, string(types.ErrCodeValidationInvalidJSON), errorCode(t, rec))

	assert.Empty(t, accounts.registered)
}

func TestLoginHandler(t *testing.T) {
	rec := post(t, newRouter(&stubAccounts{}), "/auth/login", `{"email":"ada@example.com","password":"pw"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "access", resp.Tokens.AccessToken)
	assert.Equal(t, "sub-1", resp.User.ID)
}

func TestLoginHandler_PropagatesStatus(t *testing.T) {
	accounts := &stubAccounts{err: types.NewAppError(types.ErrCodeAuthUserNotConfirmed, "user is not confirmed", nil)}

	rec := post(t, newRouter(accounts), "/auth/login", `{"email":"ada@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthUserNotConfirmed), errorCode(t, rec))
}

func TestForgotPasswordHandler_AlwaysOK(t *testing.T) {
	accounts := &stubAccounts{}
	rec := post(t, newRouter(accounts), "/auth/forgot-password", `{"email":"ghost@example.com"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), forgotPasswordMessage)
	assert.Equal(t, []string{"ghost@example.com"}, accounts.forgot)
}

func TestConfirmAndResetHandlers(t *testing.T) {
	h := newRouter(&stubAccounts{})
	assert.Equal(t, http.StatusOK,
		post(t, h, "/auth/confirm", `{"email":"ada@example.com","confirmationCode":"1"}`).Code)
	assert.Equal(t, http.StatusOK,
		post(t, h, "/auth/reset-password", `{"email":"ada@example.com","confirmationCode":"1","newPassword":"x"}`).Code)

	bad := newRouter(&stubAccounts{err: types.NewAppError(types.ErrCodeValidationCodeMismatch, "invalid code", nil)})
	rec := post(t, bad, "/auth/confirm", `{"email":"ada@example.com","confirmationCode":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationCodeMismatch), errorCode(t, rec))
}

func TestProfileHandler(t *testing.T) {
	accounts := &stubAccounts{}
	h := newRouter(accounts)

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-1", accounts.profileTok)
	assert.Contains(t, rec.Body.String(), `"firstName":"Ada"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthTokenMissing), errorCode(t, rec))
}

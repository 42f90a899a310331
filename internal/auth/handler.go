package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cloudnotes/internal/core"
	"cloudnotes/internal/identity"
	"cloudnotes/internal/types"
)

// forgotPasswordMessage is returned whether or not the account exists.
const forgotPasswordMessage = "if an account exists for this email, a reset code has been sent"

// Accounts is implemented by Service.
type Accounts interface {
	Register(ctx context.Context, reg Registration) (string, error)
	Confirm(ctx context.Context, email, code string) error
	Login(ctx context.Context, email, password string) (*Tokens, *User, error)
	ForgotPassword(ctx context.Context, email string)
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	Profile(ctx context.Context, accessToken string) (*User, error)
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

type confirmRequest struct {
	Email            string `json:"email" validate:"required,email"`
	ConfirmationCode string `json:"confirmationCode" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Email            string `json:"email" validate:"required,email"`
	ConfirmationCode string `json:"confirmationCode" validate:"required"`
	NewPassword      string `json:"newPassword" validate:"required"`
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type loginResponse struct {
	Message string  `json:"message"`
	Tokens  *Tokens `json:"tokens"`
	User    *User   `json:"user"`
}

type profileResponse struct {
	User *User `json:"user"`
}

// Handler implements the public auth API. None of its routes require a
// trusted identity; profile reads the bearer token itself.
type Handler struct {
	accounts  Accounts
	validator *core.Validator
	logger    *slog.Logger
}

func NewHandler(accounts Accounts, v *core.Validator, logger *slog.Logger) *Handler {
	return &Handler{accounts: accounts, validator: v, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/confirm", h.Confirm)
		r.Post("/login", h.Login)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/reset-password", h.ResetPassword)
		r.Get("/profile", h.Profile)
	})
}

// decode reads and validates the body into dst, writing the error response
// itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := core.DecodeJSON(w, r, dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	if err := h.validator.ValidateStruct(dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	return true
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	userID, err := h.accounts.Register(r.Context(), Registration{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "user registered", "user_id", userID)

	core.JSON(w, r, http.StatusCreated, registerResponse{
		Message: "user registered, check your email for the confirmation code",
		UserID:  userID,
	})
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.accounts.Confirm(r.Context(), req.Email, req.ConfirmationCode); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Message: "email confirmed"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	tokens, user, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "user logged in", "user_id", user.ID)

	core.JSON(w, r, http.StatusOK, loginResponse{
		Message: "login successful",
		Tokens:  tokens,
		User:    user,
	})
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.accounts.ForgotPassword(r.Context(), req.Email)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Message: forgotPasswordMessage})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.accounts.ResetPassword(r.Context(), req.Email, req.ConfirmationCode, req.NewPassword); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Message: "password reset"})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	token := identity.ExtractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authorization token required", nil))
		return
	}

	user, err := h.accounts.Profile(r.Context(), token)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, profileResponse{User: user})
}

// Package auth fronts the Cognito user pool: sign-up, confirmation, password
// login, password reset and profile lookup.
package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"

	"cloudnotes/internal/identity"
	"cloudnotes/internal/types"
)

// IdentityProvider is the subset of the Cognito client used by Service.
type IdentityProvider interface {
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	ForgotPassword(ctx context.Context, params *cip.ForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ForgotPasswordOutput, error)
	ConfirmForgotPassword(ctx context.Context, params *cip.ConfirmForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ConfirmForgotPasswordOutput, error)
	GetUser(ctx context.Context, params *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
}

// Registration is the input to Register.
type Registration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Tokens is the token set returned by a successful login.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	IDToken      string `json:"idToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType,omitempty"`
	ExpiresIn    int32  `json:"expiresIn"`
}

// User is the caller-facing view of a user pool entry.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username,omitempty"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
}

// Service talks to one user pool app client. The app client must allow the
// USER_PASSWORD_AUTH flow.
type Service struct {
	provider IdentityProvider
	clientID string
	logger   *slog.Logger
}

func NewService(provider IdentityProvider, clientID string, logger *slog.Logger) *Service {
	return &Service{provider: provider, clientID: clientID, logger: logger}
}

// Register creates an unconfirmed user and returns its subject id.
func (s *Service) Register(ctx context.Context, reg Registration) (string, error) {
	out, err := s.provider.SignUp(ctx, &cip.SignUpInput{
		ClientId: aws.String(s.clientID),
		Username: aws.String(reg.Email),
		Password: aws.String(reg.Password),
		UserAttributes: []ciptypes.AttributeType{
			{Name: aws.String("email"), Value: aws.String(reg.Email)},
			{Name: aws.String("given_name"), Value: aws.String(reg.FirstName)},
			{Name: aws.String("family_name"), Value: aws.String(reg.LastName)},
		},
	})
	if err != nil {
		return "", s.mapError(ctx, "sign up", err)
	}
	return aws.ToString(out.UserSub), nil
}

func (s *Service) Confirm(ctx context.Context, email, code string) error {
	_, err := s.provider.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(s.clientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
	})
	if err != nil {
		return s.mapError(ctx, "confirm sign up", err)
	}
	return nil
}

// Login runs the password flow and then loads the user's profile with the
// new access token.
func (s *Service) Login(ctx context.Context, email, password string) (*Tokens, *User, error) {
	out, err := s.provider.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: ciptypes.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(s.clientID),
		AuthParameters: map[string]string{
			"USERNAME": email,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return nil, nil, s.mapError(ctx, "initiate auth", err)
	}

	res := out.AuthenticationResult
	if res == nil || aws.ToString(res.AccessToken) == "" {
		// A pending challenge (MFA, new password) lands here.
		s.logger.ErrorContext(ctx, "login returned no access token",
			"challenge", string(out.ChallengeName),
		)
		return nil, nil, types.NewAppError(types.ErrCodeUpstreamIdentityProvider, "login did not produce an access token", nil)
	}

	tokens := &Tokens{
		AccessToken:  aws.ToString(res.AccessToken),
		IDToken:      aws.ToString(res.IdToken),
		RefreshToken: aws.ToString(res.RefreshToken),
		TokenType:    aws.ToString(res.TokenType),
		ExpiresIn:    res.ExpiresIn,
	}

	user, err := s.Profile(ctx, tokens.AccessToken)
	if err != nil {
		return nil, nil, err
	}
	return tokens, user, nil
}

// ForgotPassword starts a reset. Provider errors are logged and swallowed so
// the caller cannot probe which accounts exist.
func (s *Service) ForgotPassword(ctx context.Context, email string) {
	_, err := s.provider.ForgotPassword(ctx, &cip.ForgotPasswordInput{
		ClientId: aws.String(s.clientID),
		Username: aws.String(email),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "forgot password request failed", "error", err)
	}
}

func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	_, err := s.provider.ConfirmForgotPassword(ctx, &cip.ConfirmForgotPasswordInput{
		ClientId:         aws.String(s.clientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
		Password:         aws.String(newPassword),
	})
	if err != nil {
		return s.mapError(ctx, "confirm forgot password", err)
	}
	return nil
}

// Profile returns the user that owns accessToken.
func (s *Service) Profile(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenMissing, "authorization token required", nil)
	}
	out, err := s.provider.GetUser(ctx, &cip.GetUserInput{AccessToken: aws.String(accessToken)})
	if err != nil {
		if identity.IsRejectedToken(err) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid or expired token", err)
		}
		s.logger.ErrorContext(ctx, "identity provider call failed", "operation", "get user", "error", err)
		return nil, types.NewAppError(types.ErrCodeInternalVerifierUnavailable, "failed to load profile", err)
	}

	u := &User{Username: aws.ToString(out.Username)}
	for _, attr := range out.UserAttributes {
		v := aws.ToString(attr.Value)
		switch aws.ToString(attr.Name) {
		case "sub":
			u.ID = v
		case "email":
			u.Email = v
		case "email_verified":
			u.EmailVerified = v == "true"
		case "given_name":
			u.FirstName = v
		case "family_name":
			u.LastName = v
		}
	}
	return u, nil
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// mapError turns a provider error into an AppError. Unknown codes are
// logged and reported as an upstream failure.
func (s *Service) mapError(ctx context.Context, op string, err error) error {
	code := apiErrorCode(err)
	switch code {
	case "UsernameExistsException":
		return types.NewAppError(types.ErrCodeValidationUserExists, "a user with this email already exists", err)
	case "CodeMismatchException", "ExpiredCodeException":
		return types.NewAppError(types.ErrCodeValidationCodeMismatch, "invalid or expired confirmation code", err)
	case "InvalidPasswordException", "InvalidParameterException":
		var msg string
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			msg = apiErr.ErrorMessage()
		}
		if msg == "" {
			msg = "invalid input"
		}
		return types.NewAppError(types.ErrCodeValidationInvalidInput, msg, err)
	case "UserNotFoundException":
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", err)
	case "NotAuthorizedException":
		return types.NewAppError(types.ErrCodeAuthInvalidCreds, "incorrect email or password", err)
	case "UserNotConfirmedException":
		return types.NewAppError(types.ErrCodeAuthUserNotConfirmed, "user is not confirmed", err)
	}

	s.logger.ErrorContext(ctx, "identity provider call failed",
		"operation", op,
		"error_code", code,
		"error", err,
	)
	return types.NewAppError(types.ErrCodeUpstreamIdentityProvider, "identity provider error", err)
}

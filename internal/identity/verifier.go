// Package identity verifies bearer access tokens against Cognito and turns
// them into a types.Identity.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/smithy-go"

	"cloudnotes/internal/types"
)

// UserGetter is the subset of the Cognito client used by Verifier.
type UserGetter interface {
	GetUser(ctx context.Context, params *cognitoidentityprovider.GetUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.GetUserOutput, error)
}

// rejectedTokenCodes are provider error codes that mean the token itself is
// bad. Anything else is a provider fault.
var rejectedTokenCodes = map[string]struct{}{
	"NotAuthorizedException":    {},
	"UserNotFoundException":     {},
	"ResourceNotFoundException": {},
}

// Verifier resolves access tokens to identities. It holds no state beyond the
// client and is safe for concurrent use.
type Verifier struct {
	client UserGetter
	logger *slog.Logger
}

// NewVerifier creates a Verifier backed by client.
func NewVerifier(client UserGetter, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{client: client, logger: logger}
}

// Verify asks the identity provider who owns token. An empty token fails
// with auth_token_missing without calling the provider. There are no retries.
func (v *Verifier) Verify(ctx context.Context, token string) (*types.Identity, error) {
	if token == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenMissing, "authorization token required", nil)
	}

	out, err := v.client.GetUser(ctx, &cognitoidentityprovider.GetUserInput{
		AccessToken: aws.String(token),
	})
	if err != nil {
		return nil, v.classify(err)
	}

	attrs := make(map[string]string, len(out.UserAttributes))
	for _, a := range out.UserAttributes {
		attrs[aws.ToString(a.Name)] = aws.ToString(a.Value)
	}

	sub := attrs["sub"]
	if sub == "" {
		v.logger.Error("identity provider returned user without subject",
			slog.String("username", aws.ToString(out.Username)),
		)
		return nil, types.NewAppError(types.ErrCodeInternalIdentityMissingSub, "identity verification failed", nil)
	}

	return &types.Identity{ID: sub, Email: attrs["email"]}, nil
}

// IsRejectedToken reports whether err is a provider error saying the access
// token itself is bad, as opposed to a provider fault.
func IsRejectedToken(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	_, ok := rejectedTokenCodes[apiErr.ErrorCode()]
	return ok
}

func (v *Verifier) classify(err error) error {
	if IsRejectedToken(err) {
		return types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid or expired token", err)
	}

	v.logger.Error("identity provider call failed", slog.String("error", err.Error()))
	return types.NewAppError(types.ErrCodeInternalVerifierUnavailable, "identity verification failed", err)
}

// ExtractBearerToken returns the token from an "Authorization: Bearer <token>"
// header value. The scheme is case-insensitive. Anything else yields "".
func ExtractBearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	token = strings.TrimSpace(token)
	if strings.ContainsAny(token, " \t") {
		return ""
	}
	return token
}

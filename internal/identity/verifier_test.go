package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	cognitotypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cloudnotes/internal/types"
)

type mockUserGetter struct {
	mock.Mock
}

func (m *mockUserGetter) GetUser(ctx context.Context, params *cognitoidentityprovider.GetUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.GetUserOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*cognitoidentityprovider.GetUserOutput)
	return out, args.Error(1)
}

func userOutput(attrs map[string]string) *cognitoidentityprovider.GetUserOutput {
	out := &cognitoidentityprovider.GetUserOutput{Username: aws.String("alice")}
	for k, v := range attrs {
		out.UserAttributes = append(out.UserAttributes, cognitotypes.AttributeType{Name: aws.String(k), Value: aws.String(v)})
	}
	return out
}

func appErrCode(t *testing.T, err error) types.ErrorCode {
	t.Helper()
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr), "expected *types.AppError, got %T", err)
	return appErr.Code
}

func TestVerify_EmptyTokenSkipsProvider(t *testing.T) {
	client := new(mockUserGetter)
	v := NewVerifier(client, nil)

	id, err := v.Verify(context.Background(), "")
	assert.Nil(t, id)
	assert.Equal(t, types.ErrCodeAuthTokenMissing, appErrCode(t, err))
	client.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
}

func TestVerify_Success(t *testing.T) {
	client := new(mockUserGetter)
	client.On("GetUser", mock.Anything, mock.MatchedBy(func(in *cognitoidentityprovider.GetUserInput) bool {
		return aws.ToString(in.AccessToken) == "tok"
	})).Return(userOutput(map[string]string{"sub": "u1", "email": "a@example.com", "email_verified": "true"}), nil).Once()

	id, err := NewVerifier(client, nil).Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, &types.Identity{ID: "u1", Email: "a@example.com"}, id)
	client.AssertExpectations(t)
}

func TestVerify_NoEmail(t *testing.T) {
	client := new(mockUserGetter)
	client.On("GetUser", mock.Anything, mock.Anything).Return(userOutput(map[string]string{"sub": "u1"}), nil)

	id, err := NewVerifier(client, nil).Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "", id.Email)
}

func TestVerify_MissingSubject(t *testing.T) {
	client := new(mockUserGetter)
	client.On("GetUser", mock.Anything, mock.Anything).Return(userOutput(map[string]string{"email": "a@example.com"}), nil)

	_, err := NewVerifier(client, nil).Verify(context.Background(), "tok")
	code := appErrCode(t, err)
	assert.Equal(t, types.ErrCodeInternalIdentityMissingSub, code)
	assert.Equal(t, http.StatusInternalServerError, code.HTTPStatus())
}

func TestVerify_ProviderErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorCode
	}{
		{"not authorized", &smithy.GenericAPIError{Code: "NotAuthorizedException", Message: "Access Token has expired"}, types.ErrCodeAuthTokenInvalid},
		{"user not found", &smithy.GenericAPIError{Code: "UserNotFoundException"}, types.ErrCodeAuthTokenInvalid},
		{"resource not found", &smithy.GenericAPIError{Code: "ResourceNotFoundException"}, types.ErrCodeAuthTokenInvalid},
		{"typed not authorized", &cognitotypes.NotAuthorizedException{Message: aws.String("bad token")}, types.ErrCodeAuthTokenInvalid},
		{"throttled", &smithy.GenericAPIError{Code: "TooManyRequestsException"}, types.ErrCodeInternalVerifierUnavailable},
		{"network", errors.New("dial tcp: i/o timeout"), types.ErrCodeInternalVerifierUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(mockUserGetter)
			client.On("GetUser", mock.Anything, mock.Anything).Return(nil, tt.err)

			_, err := NewVerifier(client, nil).Verify(context.Background(), "tok")
			assert.Equal(t, tt.want, appErrCode(t, err))
			client.AssertNumberOfCalls(t, "GetUser", 1)
		})
	}
}

func TestIsRejectedToken(t *testing.T) {
	assert.True(t, IsRejectedToken(&smithy.GenericAPIError{Code: "NotAuthorizedException"}))
	assert.True(t, IsRejectedToken(fmt.Errorf("get user: %w", &smithy.GenericAPIError{Code: "UserNotFoundException"})))
	assert.True(t, IsRejectedToken(&cognitotypes.ResourceNotFoundException{Message: aws.String("pool gone")}))
	assert.False(t, IsRejectedToken(&smithy.GenericAPIError{Code: "InternalErrorException"}))
	assert.False(t, IsRejectedToken(errors.New("connection reset")))
	assert.False(t, IsRejectedToken(nil))
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def", "abc.def"},
		{"bearer abc", "abc"},
		{"BEARER abc", "abc"},
		{"Bearer", ""},
		{"Bearer ", ""},
		{"Basic dXNlcjpwdw==", ""},
		{"abc", ""},
		{"", ""},
		{"Bearer a b", ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBearerToken(tt.header))
		})
	}
}

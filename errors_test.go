package auth_test

import (
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/stretchr/testify/assert"
)

func TestIsTokenExpiredError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Structured session expired error",
			err:      auth.ErrSessionExpired,
			expected: true,
		},
		{
			name:     "Backend 401",
			err:      auth.NewBackendError(401, "Token expired", "profile.get"),
			expected: true,
		},
		{
			name:     "Legacy token expired error (string match)",
			err:      errors.New("some wrapper: token is expired"),
			expected: true,
		},
		{
			name:     "Different structured error",
			err:      auth.ErrProfileNotFound,
			expected: false,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.IsTokenExpiredError(tt.err))
		})
	}
}

func TestNewBackendErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		kind   auth.ErrorKind
		code   string
	}{
		{400, auth.KindValidation, auth.TextCodeValidation},
		{401, auth.KindAuth, auth.TextCodeSessionExpired},
		{403, auth.KindPermission, auth.TextCodeRoleMismatch},
		{404, auth.KindNotFound, auth.TextCodeProfileNotFound},
		{409, auth.KindConflict, auth.TextCodeConflict},
		{422, auth.KindValidation, auth.TextCodeValidation},
		{500, auth.KindUnknown, auth.TextCodeBackend},
	}

	for _, tt := range tests {
		err := auth.NewBackendError(tt.status, "", "op")
		assert.Equal(t, tt.kind, auth.KindOf(err), "status %d", tt.status)
		assert.True(t, auth.HasTextCode(err, tt.code), "status %d", tt.status)
		assert.Equal(t, tt.status, err.Code)
	}
}

func TestNewBackendErrorKeepsSentinelsIntact(t *testing.T) {
	err := auth.NewBackendError(401, "Signature has expired", "profile.get")

	assert.Equal(t, "Signature has expired", err.Message)
	assert.Equal(t, "profile.get", err.Metadata["operation"])
	assert.Equal(t, "session expired, please log in again", auth.ErrSessionExpired.Message)
	assert.Empty(t, auth.ErrSessionExpired.Metadata["operation"])
}

func TestNetworkErrors(t *testing.T) {
	cause := errors.New("connection refused")
	err := auth.NewNetworkError(cause, "auth.login")

	assert.True(t, auth.IsNetworkError(err))
	assert.False(t, auth.IsAuthError(err))
	assert.ErrorIs(t, err, cause)
}

func TestValidationErrors(t *testing.T) {
	err := auth.NewValidationError("please fix the form", map[string]string{"email": "cannot be blank"})
	assert.True(t, auth.IsValidationError(err))
	assert.Equal(t, map[string]string{"email": "cannot be blank"}, auth.ValidationFields(err))

	assert.Nil(t, auth.ValidationFields(auth.NewValidationError("no fields", nil)))
	assert.Nil(t, auth.ValidationFields(errors.New("plain")))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, auth.ErrorKind(""), auth.KindOf(nil))
	assert.Equal(t, auth.KindUnknown, auth.KindOf(errors.New("plain")))
	assert.Equal(t, auth.KindPermission, auth.KindOf(auth.ErrVerificationRequired))
	assert.Equal(t, auth.KindConflict, auth.KindOf(auth.ErrDuplicateApplication))
	assert.Equal(t, auth.KindValidation, auth.KindOf(auth.ErrMissingStatus))

	wrapped := goerrors.Wrap(auth.ErrRoleMismatch, goerrors.CategoryAuthz, "wrapped")
	assert.True(t, auth.IsPermissionError(wrapped))
}

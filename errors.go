package auth

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidation         = "VALIDATION_ERROR"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeSessionExpired     = "SESSION_EXPIRED"
	TextCodeUnauthenticated    = "UNAUTHENTICATED"
	TextCodeRoleMismatch       = "ROLE_MISMATCH"
	TextCodeVerificationNeeded = "VERIFICATION_REQUIRED"
	TextCodeVerificationWait   = "VERIFICATION_PENDING"
	TextCodeNetwork            = "NETWORK_ERROR"
	TextCodeConflict           = "CONFLICT"
	TextCodeDuplicateApply     = "DUPLICATE_APPLICATION"
	TextCodeProfileNotFound    = "PROFILE_NOT_FOUND"
	TextCodeMissingStatus      = "MISSING_APPLICATION_STATUS"
	TextCodeInvalidTransition  = "INVALID_APPLICATION_TRANSITION"
	TextCodeBackend            = "BACKEND_ERROR"
)

// ErrInvalidCredentials is returned when the backend rejects a login
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionExpired is returned when a token is no longer accepted
var ErrSessionExpired = goerrors.New("session expired, please log in again", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthenticated is returned when an action needs a session and none is present
var ErrUnauthenticated = goerrors.New("please log in to continue", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrRoleMismatch is returned when the identity role cannot perform an action
var ErrRoleMismatch = goerrors.New("action not available for this role", goerrors.CategoryAuthz).
	WithTextCode(TextCodeRoleMismatch).
	WithCode(http.StatusForbidden)

// ErrVerificationRequired blocks publishing for unverified recruiters
var ErrVerificationRequired = goerrors.New("company verification required", goerrors.CategoryAuthz).
	WithTextCode(TextCodeVerificationNeeded).
	WithCode(http.StatusForbidden)

// ErrVerificationPending blocks publishing while verification is reviewed
var ErrVerificationPending = goerrors.New("company verification pending", goerrors.CategoryAuthz).
	WithTextCode(TextCodeVerificationWait).
	WithCode(http.StatusForbidden)

// ErrDuplicateApplication is returned when the seeker already applied
var ErrDuplicateApplication = goerrors.New("you have already applied to this job", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateApply).
	WithCode(goerrors.CodeConflict)

// ErrProfileNotFound means the identity provider session has no backend profile yet
var ErrProfileNotFound = goerrors.New("profile not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeProfileNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrMissingStatus is returned before any request when a status update has no status
var ErrMissingStatus = goerrors.New("application status is required", goerrors.CategoryValidation).
	WithTextCode(TextCodeMissingStatus).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidTransition is returned when the configured policy refuses a status change
var ErrInvalidTransition = goerrors.New("application status transition not allowed", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrorKind is the client taxonomy an error belongs to.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindAuth       ErrorKind = "auth"
	KindPermission ErrorKind = "permission"
	KindNetwork    ErrorKind = "network"
	KindConflict   ErrorKind = "conflict"
	KindNotFound   ErrorKind = "not_found"
	KindUnknown    ErrorKind = "unknown"
)

// NewValidationError builds a client-side validation error. fields maps
// form field names to messages.
func NewValidationError(message string, fields map[string]string) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest)
	if len(fields) > 0 {
		meta := make(map[string]any, len(fields))
		for k, v := range fields {
			meta[k] = v
		}
		err = err.WithMetadata(map[string]any{"fields": meta})
	}
	return err
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(err error, operation string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "network request failed").
		WithTextCode(TextCodeNetwork).
		WithCode(http.StatusServiceUnavailable).
		WithMetadata(map[string]any{"operation": operation})
}

// NewBackendError maps a backend response status to the taxonomy. detail is
// the backend supplied message, when present.
func NewBackendError(status int, detail, operation string) *goerrors.Error {
	var base *goerrors.Error
	switch status {
	case http.StatusUnauthorized:
		base = ErrSessionExpired
	case http.StatusForbidden:
		base = ErrRoleMismatch
	case http.StatusNotFound:
		base = ErrProfileNotFound
	case http.StatusConflict:
		base = goerrors.New("conflict", goerrors.CategoryConflict).
			WithTextCode(TextCodeConflict).
			WithCode(goerrors.CodeConflict)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		base = goerrors.New("invalid request", goerrors.CategoryBadInput).
			WithTextCode(TextCodeValidation).
			WithCode(status)
	default:
		base = goerrors.New("backend request failed", goerrors.CategoryInternal).
			WithTextCode(TextCodeBackend).
			WithCode(status)
	}

	return withDetail(base, status, detail, operation)
}

func withDetail(base *goerrors.Error, status int, detail, operation string) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if detail != "" {
		clone.Message = detail
	}
	clone.Code = status
	clone.Source = base
	return clone.WithMetadata(map[string]any{
		"status":    status,
		"operation": operation,
		"detail":    detail,
	})
}

// KindOf classifies err into the client taxonomy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return KindUnknown
	}

	if richErr.TextCode == TextCodeNetwork {
		return KindNetwork
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return KindValidation
	case goerrors.CategoryAuth:
		return KindAuth
	case goerrors.CategoryAuthz:
		return KindPermission
	case goerrors.CategoryConflict:
		return KindConflict
	case goerrors.CategoryNotFound:
		return KindNotFound
	default:
		return KindUnknown
	}
}

// IsValidationError reports client-caught input errors
func IsValidationError(err error) bool { return KindOf(err) == KindValidation }

// IsAuthError reports bad credentials or expired/invalid tokens
func IsAuthError(err error) bool { return KindOf(err) == KindAuth }

// IsPermissionError reports role or verification mismatches
func IsPermissionError(err error) bool { return KindOf(err) == KindPermission }

// IsNetworkError reports transport failures
func IsNetworkError(err error) bool { return KindOf(err) == KindNetwork }

// IsConflictError reports duplicate or conflicting writes
func IsConflictError(err error) bool { return KindOf(err) == KindConflict }

// IsNotFoundError reports missing backend records
func IsNotFoundError(err error) bool { return KindOf(err) == KindNotFound }

// HasTextCode checks the rich error text code, if any.
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// ValidationFields returns the per-field messages attached to a validation error.
func ValidationFields(err error) map[string]string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return nil
	}

	raw, ok := richErr.Metadata["fields"].(map[string]any)
	if !ok {
		return nil
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if HasTextCode(err, TextCodeSessionExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// cloneWith returns a copy of a sentinel with metadata attached, leaving the
// shared sentinel untouched.
func cloneWith(base *goerrors.Error, metadata map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = base
	if len(metadata) == 0 {
		return clone
	}
	return clone.WithMetadata(metadata)
}

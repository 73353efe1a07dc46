package auth

import (
	"context"
)

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSessionContext stores a session state snapshot in the context.
func WithSessionContext(ctx context.Context, state SessionState) context.Context {
	return context.WithValue(ctx, sessionCtxKey, copyState(state))
}

// SessionFromContext finds the session state snapshot in the context.
func SessionFromContext(ctx context.Context) (SessionState, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(SessionState)
	return raw, ok
}

// IdentityFromContext returns the identity of an authenticated snapshot.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	state, ok := SessionFromContext(ctx)
	if !ok {
		return Identity{}, false
	}
	return state.Identity()
}

// HasRole is a convenience check for role gated handlers.
func HasRole(ctx context.Context, role Role) bool {
	identity, ok := IdentityFromContext(ctx)
	return ok && identity.Role == role
}

// CanPublish checks the verification gate rule against the context snapshot.
func CanPublish(ctx context.Context) bool {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return false
	}
	return identity.Role == RoleRecruiter && identity.EffectiveVerification() == VerificationVerified
}

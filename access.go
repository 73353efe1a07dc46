package auth

// requireRole returns the token and identity of the present session when it
// has role. Recruiters reaching a seeker action and the reverse get a
// permission error; guests get an auth error.
func requireRole(session SessionReader, role Role, operation string) (string, Identity, error) {
	state := session.Get()
	identity, ok := state.Identity()
	if !ok {
		return "", Identity{}, cloneWith(ErrUnauthenticated, map[string]any{"operation": operation})
	}

	if identity.Role != role {
		return "", Identity{}, cloneWith(ErrRoleMismatch, map[string]any{
			"operation": operation,
			"role":      identity.Role,
			"required":  role,
		})
	}

	return state.Session.Token, identity, nil
}

// requireSession is requireRole for actions open to any role.
func requireSession(session SessionReader, operation string) (string, Identity, error) {
	state := session.Get()
	identity, ok := state.Identity()
	if !ok {
		return "", Identity{}, cloneWith(ErrUnauthenticated, map[string]any{"operation": operation})
	}
	return state.Session.Token, identity, nil
}

// currentOwner is the id of the signed in user, empty without a session.
func currentOwner(session SessionReader) string {
	if identity, ok := session.Get().Identity(); ok {
		return identity.ID
	}
	return ""
}

func sessionChanged(operation string) error {
	return cloneWith(ErrUnauthenticated, map[string]any{
		"operation": operation,
		"reason":    "session changed",
	})
}

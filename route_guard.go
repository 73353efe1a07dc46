package auth

// DecisionKind is the outcome of a guard evaluation.
type DecisionKind int

const (
	// Suspend means hydration has not resolved; render nothing but a neutral
	// loading state.
	Suspend DecisionKind = iota
	Allow
	Redirect
)

func (k DecisionKind) String() string {
	switch k {
	case Suspend:
		return "suspend"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the guard's verdict for one navigation. From is set on
// redirects to login so the original path survives the round trip.
type Decision struct {
	Kind   DecisionKind
	Target string
	From   string
}

// Location is the URL to navigate to for a redirect.
func (d Decision) Location() string {
	if d.Kind != Redirect {
		return ""
	}
	if d.Target == LoginPath {
		return LoginRedirect(d.From)
	}
	return d.Target
}

// Decide maps a session state and requirement to a decision. It never
// touches the network and never returns an error.
func Decide(state SessionState, req Requirement, path string) Decision {
	if state.IsLoading() {
		return Decision{Kind: Suspend}
	}

	if req.Kind == RequireNone {
		return Decision{Kind: Allow}
	}

	identity, ok := state.Identity()
	if !ok {
		return Decision{Kind: Redirect, Target: LoginPath, From: path}
	}

	if req.Kind == RequireRole && identity.Role != req.Role {
		return Decision{Kind: Redirect, Target: identity.Role.DashboardRoot()}
	}

	return Decision{Kind: Allow}
}

// RouteGuard evaluates navigations against a route table.
type RouteGuard struct {
	session SessionReader
	routes  *RouteTable
	logger  Logger
}

// NewRouteGuard creates a guard over the default route table.
func NewRouteGuard(session SessionReader) *RouteGuard {
	_, logger := ResolveLogger("auth.route_guard", nil, nil)
	return &RouteGuard{
		session: session,
		routes:  DefaultRouteTable(),
		logger:  logger,
	}
}

func (g *RouteGuard) WithRoutes(routes *RouteTable) *RouteGuard {
	if routes != nil {
		g.routes = routes
	}
	return g
}

func (g *RouteGuard) WithLogger(logger Logger) *RouteGuard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// Evaluate decides the navigation to path using the current session.
func (g *RouteGuard) Evaluate(path string) Decision {
	return g.EvaluateState(g.session.Get(), path)
}

// EvaluateState decides against an explicit state snapshot.
func (g *RouteGuard) EvaluateState(state SessionState, path string) Decision {
	req, known := g.routes.Lookup(path)
	if !known {
		if state.IsLoading() {
			return Decision{Kind: Suspend}
		}
		g.logger.Debug("unknown route %s, redirecting to root", path)
		return Decision{Kind: Redirect, Target: RootPath}
	}

	decision := Decide(state, req, path)
	if decision.Kind == Redirect {
		g.logger.Debug("route %s redirected to %s", path, decision.Target)
	}
	return decision
}

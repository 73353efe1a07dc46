package auth

import (
	"net/url"
	"strings"
)

const (
	RootPath            = "/"
	LoginPath           = "/login"
	SignupPath          = "/signup"
	CompleteProfilePath = "/complete-profile"
	CheckInboxPath      = "/check-inbox"
	SettingsPath        = "/settings"
)

// RequirementKind says what a route needs from the session.
type RequirementKind int

const (
	// RequireNone routes render for anyone, including guests
	RequireNone RequirementKind = iota
	// RequireAuthenticated routes need any present session
	RequireAuthenticated
	// RequireRole routes need a session with a specific role
	RequireRole
)

// Requirement is a route's declared role requirement.
type Requirement struct {
	Kind RequirementKind
	Role Role
}

// Public is the requirement of guest-oriented pages.
func Public() Requirement { return Requirement{Kind: RequireNone} }

// Authenticated accepts any role.
func Authenticated() Requirement { return Requirement{Kind: RequireAuthenticated} }

// RequiresRole accepts only role.
func RequiresRole(role Role) Requirement { return Requirement{Kind: RequireRole, Role: role} }

// Route is an entry of the route table. Prefix routes match the path and
// everything below it.
type Route struct {
	Path        string
	Prefix      bool
	Requirement Requirement
}

func (r Route) matches(path string) bool {
	if path == r.Path {
		return true
	}
	if !r.Prefix {
		return false
	}
	return strings.HasPrefix(path, strings.TrimSuffix(r.Path, "/")+"/")
}

// RouteTable resolves a path to its requirement. Paths that match no entry
// are unknown and redirect to the root.
type RouteTable struct {
	routes []Route
}

// NewRouteTable creates a table. Earlier entries win on overlap.
func NewRouteTable(routes ...Route) *RouteTable {
	return &RouteTable{routes: append([]Route(nil), routes...)}
}

// DefaultRouteTable is the marketplace route table.
func DefaultRouteTable() *RouteTable {
	return NewRouteTable(
		Route{Path: RootPath, Requirement: Public()},
		Route{Path: LoginPath, Requirement: Public()},
		Route{Path: SignupPath, Requirement: Public()},
		Route{Path: CompleteProfilePath, Requirement: Public()},
		Route{Path: CheckInboxPath, Requirement: Public()},
		Route{Path: SettingsPath, Requirement: Authenticated()},
		Route{Path: SeekerDashboardRoot, Prefix: true, Requirement: RequiresRole(RoleJobSeeker)},
		Route{Path: EmployerDashboardRoot, Prefix: true, Requirement: RequiresRole(RoleRecruiter)},
	)
}

// Add appends a route.
func (t *RouteTable) Add(route Route) *RouteTable {
	t.routes = append(t.routes, route)
	return t
}

// Lookup finds the requirement for path.
func (t *RouteTable) Lookup(path string) (Requirement, bool) {
	path = cleanPath(path)
	for _, r := range t.routes {
		if r.matches(path) {
			return r.Requirement, true
		}
	}
	return Requirement{}, false
}

// PostLoginPath is where a fresh session lands: the remembered path when
// there is one, otherwise the identity's dashboard.
func PostLoginPath(identity Identity, from string) string {
	if from = safeReturnPath(from); from != "" {
		return from
	}
	return identity.Role.DashboardRoot()
}

// LoginRedirect builds the login URL remembering from.
func LoginRedirect(from string) string {
	from = safeReturnPath(from)
	if from == "" {
		return LoginPath
	}
	return LoginPath + "?from=" + url.QueryEscape(from)
}

// safeReturnPath keeps only local absolute paths so a crafted from cannot
// send the user off site.
func safeReturnPath(from string) string {
	from = strings.TrimSpace(from)
	if from == "" || !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") {
		return ""
	}
	if from == LoginPath || strings.HasPrefix(from, LoginPath+"?") {
		return ""
	}
	return from
}

func cleanPath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return RootPath
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

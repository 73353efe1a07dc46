package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/stretchr/testify/assert"
)

func stateFor(status auth.SessionStatus, identity *auth.Identity) auth.SessionState {
	state := auth.SessionState{Status: status}
	if identity != nil {
		state.Session = &auth.Session{Token: "tok", Identity: *identity}
	}
	return state
}

func TestDecide(t *testing.T) {
	seeker := seekerIdentity()
	recruiter := recruiterIdentity(auth.VerificationVerified)

	tests := []struct {
		name  string
		state auth.SessionState
		req   auth.Requirement
		path  string
		want  auth.Decision
	}{
		{
			name:  "loading suspends even public pages",
			state: stateFor(auth.SessionLoading, nil),
			req:   auth.Public(),
			path:  "/",
			want:  auth.Decision{Kind: auth.Suspend},
		},
		{
			name:  "guest on public page",
			state: stateFor(auth.SessionAbsent, nil),
			req:   auth.Public(),
			path:  "/signup",
			want:  auth.Decision{Kind: auth.Allow},
		},
		{
			name:  "guest on protected page goes to login",
			state: stateFor(auth.SessionAbsent, nil),
			req:   auth.RequiresRole(auth.RoleJobSeeker),
			path:  "/dashboard/seeker/saved",
			want:  auth.Decision{Kind: auth.Redirect, Target: auth.LoginPath, From: "/dashboard/seeker/saved"},
		},
		{
			name:  "recruiter on seeker page goes to own dashboard",
			state: stateFor(auth.SessionPresent, &recruiter),
			req:   auth.RequiresRole(auth.RoleJobSeeker),
			path:  "/dashboard/seeker",
			want:  auth.Decision{Kind: auth.Redirect, Target: auth.EmployerDashboardRoot},
		},
		{
			name:  "seeker on employer page goes to own dashboard",
			state: stateFor(auth.SessionPresent, &seeker),
			req:   auth.RequiresRole(auth.RoleRecruiter),
			path:  "/dashboard/employer/jobs",
			want:  auth.Decision{Kind: auth.Redirect, Target: auth.SeekerDashboardRoot},
		},
		{
			name:  "any role on authenticated page",
			state: stateFor(auth.SessionPresent, &recruiter),
			req:   auth.Authenticated(),
			path:  "/settings",
			want:  auth.Decision{Kind: auth.Allow},
		},
		{
			name:  "matching role",
			state: stateFor(auth.SessionPresent, &seeker),
			req:   auth.RequiresRole(auth.RoleJobSeeker),
			path:  "/dashboard/seeker",
			want:  auth.Decision{Kind: auth.Allow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.Decide(tt.state, tt.req, tt.path))
		})
	}
}

func TestRouteGuardEvaluate(t *testing.T) {
	seeker := seekerIdentity()

	t.Run("unknown routes go to root once resolved", func(t *testing.T) {
		guard := auth.NewRouteGuard(absentSession(t)).WithLogger(nopLogger{})
		d := guard.Evaluate("/nowhere")
		assert.Equal(t, auth.Redirect, d.Kind)
		assert.Equal(t, auth.RootPath, d.Location())
	})

	t.Run("unknown routes suspend while loading", func(t *testing.T) {
		guard := auth.NewRouteGuard(auth.NewSessionStore(nil)).WithLogger(nopLogger{})
		assert.Equal(t, auth.Suspend, guard.Evaluate("/nowhere").Kind)
	})

	t.Run("prefix routes cover nested pages and ignore query", func(t *testing.T) {
		guard := auth.NewRouteGuard(presentSession(t, seeker)).WithLogger(nopLogger{})
		assert.Equal(t, auth.Allow, guard.Evaluate("/dashboard/seeker/applications?page=2").Kind)
		assert.Equal(t, auth.Allow, guard.Evaluate("/dashboard/seeker/").Kind)
		assert.Equal(t, auth.Redirect, guard.Evaluate("/dashboard/seekers").Kind)
	})

	t.Run("login redirect remembers the original path", func(t *testing.T) {
		guard := auth.NewRouteGuard(absentSession(t)).WithLogger(nopLogger{})
		d := guard.Evaluate("/settings")
		assert.Equal(t, "/login?from=%2Fsettings", d.Location())
	})

	t.Run("custom table", func(t *testing.T) {
		table := auth.DefaultRouteTable().Add(auth.Route{Path: "/jobs", Prefix: true, Requirement: auth.Public()})
		guard := auth.NewRouteGuard(absentSession(t)).WithRoutes(table).WithLogger(nopLogger{})
		assert.Equal(t, auth.Allow, guard.Evaluate("/jobs/42").Kind)
	})
}

func TestDecisionLocation(t *testing.T) {
	assert.Empty(t, auth.Decision{Kind: auth.Allow}.Location())
	assert.Equal(t, auth.LoginPath, auth.Decision{Kind: auth.Redirect, Target: auth.LoginPath}.Location())
	assert.Equal(t, auth.SeekerDashboardRoot, auth.Decision{Kind: auth.Redirect, Target: auth.SeekerDashboardRoot, From: "/x"}.Location())
	assert.Equal(t, "suspend", auth.Suspend.String())
}

func TestPostLoginPath(t *testing.T) {
	seeker := seekerIdentity()
	recruiter := recruiterIdentity(auth.VerificationUnverified)

	assert.Equal(t, auth.SeekerDashboardRoot, auth.PostLoginPath(seeker, ""))
	assert.Equal(t, auth.EmployerDashboardRoot, auth.PostLoginPath(recruiter, ""))
	assert.Equal(t, "/settings", auth.PostLoginPath(seeker, "/settings"))

	for _, unsafe := range []string{"https://evil.example", "//evil.example", "settings", "/login", "/login?from=/x"} {
		assert.Equal(t, auth.SeekerDashboardRoot, auth.PostLoginPath(seeker, unsafe), unsafe)
	}
}

func TestLoginRedirect(t *testing.T) {
	assert.Equal(t, auth.LoginPath, auth.LoginRedirect(""))
	assert.Equal(t, auth.LoginPath, auth.LoginRedirect("//evil.example"))
	assert.Equal(t, "/login?from=%2Fdashboard%2Fseeker%3Ftab%3Dsaved", auth.LoginRedirect("/dashboard/seeker?tab=saved"))
}

func TestRoles(t *testing.T) {
	role, ok := auth.ParseRole("recruiter")
	assert.True(t, ok)
	assert.Equal(t, auth.RoleRecruiter, role)

	_, ok = auth.ParseRole("admin")
	assert.False(t, ok)

	assert.Equal(t, "/", auth.Role("admin").DashboardRoot())
	assert.ElementsMatch(t, []auth.Role{auth.RoleJobSeeker, auth.RoleRecruiter}, auth.GetAllRoles())
}

package auth_test

import (
	"context"
	"sync"
	"testing"

	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBackendAPI implements auth.BackendAPI
type MockBackendAPI struct {
	mock.Mock
}

func (m *MockBackendAPI) Login(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func (m *MockBackendAPI) SignupJobSeeker(ctx context.Context, req auth.SignupRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockBackendAPI) SignupRecruiter(ctx context.Context, req auth.SignupRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockBackendAPI) CompleteOAuthProfile(ctx context.Context, token string, details auth.OAuthProfileDetails) error {
	return m.Called(ctx, token, details).Error(0)
}

func (m *MockBackendAPI) FetchProfile(ctx context.Context, token string) (*auth.Identity, error) {
	args := m.Called(ctx, token)
	if v := args.Get(0); v != nil {
		return v.(*auth.Identity), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackendAPI) UpdateProfile(ctx context.Context, token string, update auth.ProfileUpdate) (*auth.Identity, error) {
	args := m.Called(ctx, token, update)
	if v := args.Get(0); v != nil {
		return v.(*auth.Identity), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackendAPI) DeleteProfile(ctx context.Context, token, password string) error {
	return m.Called(ctx, token, password).Error(0)
}

func (m *MockBackendAPI) UploadAvatar(ctx context.Context, token string, file auth.Upload) error {
	return m.Called(ctx, token, file).Error(0)
}

func (m *MockBackendAPI) UploadResume(ctx context.Context, token string, file auth.Upload) error {
	return m.Called(ctx, token, file).Error(0)
}

func (m *MockBackendAPI) UploadLegalDocument(ctx context.Context, token string, file auth.Upload) error {
	return m.Called(ctx, token, file).Error(0)
}

func (m *MockBackendAPI) ListSavedJobs(ctx context.Context, token string) ([]auth.Job, error) {
	args := m.Called(ctx, token)
	if v := args.Get(0); v != nil {
		return v.([]auth.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackendAPI) SaveJob(ctx context.Context, token, jobID string) error {
	return m.Called(ctx, token, jobID).Error(0)
}

func (m *MockBackendAPI) UnsaveJob(ctx context.Context, token, jobID string) error {
	return m.Called(ctx, token, jobID).Error(0)
}

func (m *MockBackendAPI) CreateJob(ctx context.Context, token string, draft auth.JobDraft) (*auth.Job, error) {
	args := m.Called(ctx, token, draft)
	if v := args.Get(0); v != nil {
		return v.(*auth.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackendAPI) Apply(ctx context.Context, token string, req auth.ApplyRequest) (*auth.JobApplication, error) {
	args := m.Called(ctx, token, req)
	if v := args.Get(0); v != nil {
		return v.(*auth.JobApplication), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackendAPI) UpdateApplicationStatus(ctx context.Context, token, applicationID string, update auth.ApplicationStatusUpdate) (*auth.JobApplication, error) {
	args := m.Called(ctx, token, applicationID, update)
	if v := args.Get(0); v != nil {
		return v.(*auth.JobApplication), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackendAPI) ListJobApplications(ctx context.Context, token, jobID string) ([]auth.JobApplication, error) {
	args := m.Called(ctx, token, jobID)
	if v := args.Get(0); v != nil {
		return v.([]auth.JobApplication), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackendAPI) ListMyApplications(ctx context.Context, token string) ([]auth.JobApplication, error) {
	args := m.Called(ctx, token)
	if v := args.Get(0); v != nil {
		return v.([]auth.JobApplication), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockIdentityProvider implements auth.IdentityProvider. Emit delivers an
// event to the subscribed handler the way a real provider would.
type MockIdentityProvider struct {
	mock.Mock

	mu      sync.Mutex
	handler auth.ProviderEventHandler
}

func (m *MockIdentityProvider) SignInURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockIdentityProvider) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockIdentityProvider) Subscribe(handler auth.ProviderEventHandler) func() {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.handler = nil
		m.mu.Unlock()
	}
}

func (m *MockIdentityProvider) Emit(event auth.ProviderEvent) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h(event)
	}
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Navigate(path string) {
	n.mu.Lock()
	n.paths = append(n.paths, path)
	n.mu.Unlock()
}

func (n *recordingNavigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.paths) == 0 {
		return ""
	}
	return n.paths[len(n.paths)-1]
}

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, e auth.ActivityEvent) error {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// nopLogger keeps test output quiet.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func seekerIdentity() auth.Identity {
	return auth.Identity{ID: "seeker-1", Email: "seeker@example.com", Role: auth.RoleJobSeeker, FullName: "Sam Seeker"}
}

func recruiterIdentity(status auth.VerificationStatus) auth.Identity {
	return auth.Identity{
		ID:                 "recruiter-1",
		Email:              "boss@example.com",
		Role:               auth.RoleRecruiter,
		CompanyName:        "Acme",
		VerificationStatus: status,
	}
}

// presentSession returns a store already holding identity.
func presentSession(t *testing.T, identity auth.Identity) *auth.SessionStore {
	t.Helper()
	store := auth.NewSessionStore(auth.NewMemoryStorage()).WithLogger(nopLogger{})
	require.NoError(t, store.Set(context.Background(), "tok-"+identity.ID, identity))
	return store
}

// absentSession returns a resolved store with nobody logged in.
func absentSession(t *testing.T) *auth.SessionStore {
	t.Helper()
	store := auth.NewSessionStore(auth.NewMemoryStorage()).WithLogger(nopLogger{})
	require.NoError(t, store.Clear(context.Background()))
	return store
}

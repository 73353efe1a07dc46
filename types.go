package auth

import (
	"context"
	"fmt"
	"io"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// LoggerProvider hands out named loggers so each component can be scoped.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// LoggerProviderFunc adapts a function to the LoggerProvider interface.
type LoggerProviderFunc func(name string) Logger

// GetLogger implements LoggerProvider.
func (f LoggerProviderFunc) GetLogger(name string) Logger {
	if f == nil {
		return nil
	}
	return f(name)
}

// ResolveLogger picks the logger for name: the provider's scoped logger wins,
// then the explicit logger, then the default stdout logger. The returned
// provider always yields the resolved logger for unknown names.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	resolved := logger
	if provider != nil {
		if scoped := provider.GetLogger(name); scoped != nil {
			resolved = scoped
		}
	}

	if resolved == nil {
		resolved = defLogger{}
	}

	if provider == nil {
		provider = LoggerProviderFunc(func(string) Logger { return resolved })
	} else {
		base := provider
		provider = LoggerProviderFunc(func(n string) Logger {
			if l := base.GetLogger(n); l != nil {
				return l
			}
			return resolved
		})
	}

	return provider, resolved
}

// SessionService is the contract every consumer of the current session
// depends on. Only the orchestrator holds a writer reference.
type SessionService interface {
	Get() SessionState
	Load(ctx context.Context) (*Session, error)
	Set(ctx context.Context, token string, identity Identity) error
	Update(ctx context.Context, patch IdentityPatch) (*Session, error)
	Clear(ctx context.Context) error
	Subscribe(listener SessionListener) (unsubscribe func())
}

// SessionReader is the read-only view handed to guards and gates.
type SessionReader interface {
	Get() SessionState
}

// SessionListener receives the new state after every committed change.
type SessionListener func(state SessionState)

// IdentityUpdater is the narrow writer other components use to push
// identity changes through the orchestrator.
type IdentityUpdater interface {
	UpdateIdentity(ctx context.Context, patch IdentityPatch) (*Session, error)
}

// Storage is the durable client storage behind the session. Multi-key
// writes and removals must be atomic.
type Storage interface {
	GetItems(ctx context.Context, keys ...string) (map[string]string, error)
	SetItems(ctx context.Context, items map[string]string) error
	RemoveItems(ctx context.Context, keys ...string) error
}

// Navigator performs client side navigation.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(path string)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(path string) {
	if f != nil {
		f(path)
	}
}

type noopNavigator struct{}

func (noopNavigator) Navigate(string) {}

// IdentityProvider is the third-party OAuth service.
type IdentityProvider interface {
	SignInURL(ctx context.Context) (string, error)
	SignOut(ctx context.Context) error
	Subscribe(handler ProviderEventHandler) (unsubscribe func())
}

// BackendAPI is the REST contract consumed by the client. Every call that
// needs authorization takes the bearer token explicitly.
type BackendAPI interface {
	Login(ctx context.Context, email, password string) (string, error)
	SignupJobSeeker(ctx context.Context, req SignupRequest) error
	SignupRecruiter(ctx context.Context, req SignupRequest) error
	CompleteOAuthProfile(ctx context.Context, token string, details OAuthProfileDetails) error

	FetchProfile(ctx context.Context, token string) (*Identity, error)
	UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*Identity, error)
	DeleteProfile(ctx context.Context, token, password string) error
	UploadAvatar(ctx context.Context, token string, file Upload) error
	UploadResume(ctx context.Context, token string, file Upload) error
	UploadLegalDocument(ctx context.Context, token string, file Upload) error

	ListSavedJobs(ctx context.Context, token string) ([]Job, error)
	SaveJob(ctx context.Context, token, jobID string) error
	UnsaveJob(ctx context.Context, token, jobID string) error

	CreateJob(ctx context.Context, token string, draft JobDraft) (*Job, error)
	Apply(ctx context.Context, token string, req ApplyRequest) (*JobApplication, error)
	UpdateApplicationStatus(ctx context.Context, token, applicationID string, update ApplicationStatusUpdate) (*JobApplication, error)
	ListJobApplications(ctx context.Context, token, jobID string) ([]JobApplication, error)
	ListMyApplications(ctx context.Context, token string) ([]JobApplication, error)
}

// Upload is a file handed to a multipart endpoint.
type Upload struct {
	FieldName   string
	FileName    string
	ContentType string
	Reader      io.Reader
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// Package oauth is the third-party identity provider used for "sign in
// with Google". It owns the authorization code flow and reports session
// changes to subscribers as ordered provider events.
package oauth

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-marketplace-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	TextCodeInvalidState      = "OAUTH_INVALID_STATE"
	TextCodeStateExpired      = "OAUTH_STATE_EXPIRED"
	TextCodeTokenExchangeFail = "OAUTH_TOKEN_EXCHANGE_FAILED"
)

// ErrInvalidState is returned when the callback state is unknown or was
// already used.
var ErrInvalidState = goerrors.New("invalid oauth state", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(goerrors.CodeBadRequest)

// ErrStateExpired is returned when the callback arrives after the state TTL.
var ErrStateExpired = goerrors.New("oauth state expired", goerrors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExchangeFailed is returned when the provider refuses the code.
var ErrTokenExchangeFailed = goerrors.New("token exchange failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(goerrors.CodeUnauthorized)

// DefaultStateTTL bounds how long a sign in attempt may take.
var DefaultStateTTL = 10 * time.Minute

// DefaultScopes returns the scopes requested from Google.
func DefaultScopes() []string {
	return []string{"openid", "email", "profile"}
}

// Config holds the OAuth client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint defaults to google.Endpoint.
	Endpoint oauth2.Endpoint

	StateTTL   time.Duration
	HTTPClient *http.Client
}

type pendingState struct {
	verifier  string
	expiresAt time.Time
}

var _ auth.IdentityProvider = &Provider{}

// Provider implements auth.IdentityProvider with the authorization code flow
// and PKCE. Events are delivered synchronously on the goroutine that caused
// them. Concurrent events may arrive out of order; Seq is the ordering.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time
	logger     auth.Logger

	mu       sync.Mutex
	pending  map[string]pendingState
	handlers map[string]auth.ProviderEventHandler

	seq atomic.Uint64
}

// New creates a provider for cfg.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.Endpoint.AuthURL == "" && cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint = google.Endpoint
	}
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}

	_, logger := auth.ResolveLogger("oauth", nil, nil)
	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     cfg.Endpoint,
		},
		httpClient: cfg.HTTPClient,
		ttl:        ttl,
		now:        time.Now,
		logger:     logger,
		pending:    map[string]pendingState{},
		handlers:   map[string]auth.ProviderEventHandler{},
	}
}

func (p *Provider) WithLogger(logger auth.Logger) *Provider {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// WithClock injects a custom clock (useful for tests).
func (p *Provider) WithClock(now func() time.Time) *Provider {
	if now != nil {
		p.now = now
	}
	return p
}

// SignInURL starts a new attempt and returns the consent page URL.
func (p *Provider) SignInURL(_ context.Context) (string, error) {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	p.mu.Lock()
	p.pruneLocked()
	p.pending[state] = pendingState{verifier: verifier, expiresAt: p.now().Add(p.ttl)}
	p.mu.Unlock()

	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	), nil
}

// Callback completes the attempt identified by state. On success a signed
// in event is delivered to every subscriber before Callback returns.
func (p *Provider) Callback(ctx context.Context, state, code string) (*oauth2.Token, error) {
	p.mu.Lock()
	attempt, ok := p.pending[state]
	delete(p.pending, state)
	p.mu.Unlock()

	if !ok || state == "" {
		return nil, ErrInvalidState
	}
	if p.now().After(attempt.expiresAt) {
		return nil, ErrStateExpired
	}

	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(attempt.verifier))
	if err != nil {
		p.logger.Error("oauth code exchange failed: %v", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, ErrTokenExchangeFailed.Message).
			WithTextCode(TextCodeTokenExchangeFail).
			WithCode(goerrors.CodeUnauthorized)
	}

	p.emit(auth.ProviderEvent{
		Type:        auth.ProviderSignedIn,
		AccessToken: token.AccessToken,
		Email:       emailFromIDToken(token),
	})
	return token, nil
}

// SignOut ends the provider session and notifies subscribers.
func (p *Provider) SignOut(_ context.Context) error {
	p.emit(auth.ProviderEvent{Type: auth.ProviderSignedOut})
	return nil
}

// Subscribe registers handler for every later event.
func (p *Provider) Subscribe(handler auth.ProviderEventHandler) func() {
	if handler == nil {
		return func() {}
	}

	id := uuid.NewString()
	p.mu.Lock()
	p.handlers[id] = handler
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.handlers, id)
		p.mu.Unlock()
	}
}

// Pending reports how many sign in attempts are awaiting a callback.
func (p *Provider) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruneLocked()
	return len(p.pending)
}

func (p *Provider) emit(event auth.ProviderEvent) {
	event.Seq = p.seq.Add(1)
	event.OccurredAt = p.now()

	p.mu.Lock()
	handlers := make([]auth.ProviderEventHandler, 0, len(p.handlers))
	for _, h := range p.handlers {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	p.logger.Debug("provider event %s #%d to %d subscribers", event.Type, event.Seq, len(handlers))
	for _, h := range handlers {
		h(event)
	}
}

func (p *Provider) pruneLocked() {
	now := p.now()
	for state, attempt := range p.pending {
		if now.After(attempt.expiresAt) {
			delete(p.pending, state)
		}
	}
}

// emailFromIDToken reads the email claim without verifying the signature;
// the token came straight from the token endpoint over TLS.
func emailFromIDToken(token *oauth2.Token) string {
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return ""
	}
	email, _ := claims["email"].(string)
	return email
}

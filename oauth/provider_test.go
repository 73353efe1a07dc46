package oauth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/goliatone/go-marketplace-auth/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type tokenServer struct {
	*httptest.Server
	mu       sync.Mutex
	verifier string
	code     string
}

func newTokenServer(t *testing.T, status int) *tokenServer {
	t.Helper()

	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "seeker@example.com",
	}).SignedString([]byte("test"))
	require.NoError(t, err)

	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		ts.mu.Lock()
		ts.verifier = r.PostForm.Get("code_verifier")
		ts.code = r.PostForm.Get("code")
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newProvider(ts *tokenServer) *oauth.Provider {
	return oauth.New(oauth.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/auth/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   ts.URL + "/auth",
			TokenURL:  ts.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		HTTPClient: ts.Client(),
	})
}

func stateOf(t *testing.T, signInURL string) url.Values {
	t.Helper()
	u, err := url.Parse(signInURL)
	require.NoError(t, err)
	return u.Query()
}

func TestSignInURLUsesPKCE(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	p := newProvider(ts)

	signInURL, err := p.SignInURL(context.Background())
	require.NoError(t, err)

	q := stateOf(t, signInURL)
	assert.NotEmpty(t, q.Get("state"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, 1, p.Pending())
}

func TestCallbackEmitsSignedIn(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	p := newProvider(ts)

	var events []auth.ProviderEvent
	unsubscribe := p.Subscribe(func(e auth.ProviderEvent) {
		events = append(events, e)
	})
	defer unsubscribe()

	signInURL, err := p.SignInURL(context.Background())
	require.NoError(t, err)
	state := stateOf(t, signInURL).Get("state")

	token, err := p.Callback(context.Background(), state, "the-code")
	require.NoError(t, err)
	assert.Equal(t, "provider-token", token.AccessToken)

	ts.mu.Lock()
	assert.Equal(t, "the-code", ts.code)
	assert.NotEmpty(t, ts.verifier)
	ts.mu.Unlock()

	require.Len(t, events, 1)
	assert.Equal(t, auth.ProviderSignedIn, events[0].Type)
	assert.Equal(t, "provider-token", events[0].AccessToken)
	assert.Equal(t, "seeker@example.com", events[0].Email)
	assert.Equal(t, uint64(1), events[0].Seq)
	assert.Equal(t, 0, p.Pending())

	_, err = p.Callback(context.Background(), state, "the-code")
	assert.Equal(t, oauth.ErrInvalidState, err)
}

func TestCallbackRejectsUnknownAndExpiredState(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	p := newProvider(ts)

	_, err := p.Callback(context.Background(), "nope", "code")
	assert.Equal(t, oauth.ErrInvalidState, err)

	now := time.Now()
	p.WithClock(func() time.Time { return now })
	signInURL, err := p.SignInURL(context.Background())
	require.NoError(t, err)

	now = now.Add(oauth.DefaultStateTTL + time.Second)
	_, err = p.Callback(context.Background(), stateOf(t, signInURL).Get("state"), "code")
	assert.Equal(t, oauth.ErrStateExpired, err)
}

func TestCallbackExchangeFailure(t *testing.T) {
	ts := newTokenServer(t, http.StatusBadRequest)
	p := newProvider(ts)

	called := false
	p.Subscribe(func(auth.ProviderEvent) { called = true })

	signInURL, err := p.SignInURL(context.Background())
	require.NoError(t, err)

	_, err = p.Callback(context.Background(), stateOf(t, signInURL).Get("state"), "bad")
	require.Error(t, err)
	assert.True(t, auth.IsAuthError(err))
	assert.False(t, called)
}

func TestSignOutSequencesAfterSignIn(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	p := newProvider(ts)

	var seqs []uint64
	var types []auth.ProviderEventType
	unsubscribe := p.Subscribe(func(e auth.ProviderEvent) {
		seqs = append(seqs, e.Seq)
		types = append(types, e.Type)
	})

	signInURL, err := p.SignInURL(context.Background())
	require.NoError(t, err)
	_, err = p.Callback(context.Background(), stateOf(t, signInURL).Get("state"), "code")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(context.Background()))

	assert.Equal(t, []uint64{1, 2}, seqs)
	assert.Equal(t, []auth.ProviderEventType{auth.ProviderSignedIn, auth.ProviderSignedOut}, types)

	unsubscribe()
	require.NoError(t, p.SignOut(context.Background()))
	assert.Len(t, seqs, 2)
}

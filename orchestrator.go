package auth

import (
	"context"
	"sync"
	"time"
)

var _ IdentityUpdater = &AuthOrchestrator{}

// AuthOrchestrator coordinates every way a session is created, refreshed or
// ended. It is the only component that writes the SessionService.
//
// Writes are ordered by event, not by completion: every commit captures the
// logout epoch and the highest provider sign-out sequence when its request
// starts, and is dropped if either moved while the request was in flight.
// Listeners subscribed to the session must not call back into the
// orchestrator synchronously.
type AuthOrchestrator struct {
	session   SessionService
	backend   BackendAPI
	provider  IdentityProvider
	pending   *PendingRoleSlot
	validator *FormValidator
	inspector TokenInspector
	navigator Navigator

	activitySink   ActivitySink
	logger         Logger
	loggerProvider LoggerProvider
	now            func() time.Time
	keepStale      bool

	commitMu sync.Mutex

	mu            sync.Mutex
	epoch         uint64
	signOutMark   uint64
	providerToken string
	nextFetch     uint64
	inflight      map[uint64]context.CancelFunc
}

// NewAuthOrchestrator wires the orchestrator. provider may be nil when
// third-party sign in is not configured.
func NewAuthOrchestrator(session SessionService, backend BackendAPI, provider IdentityProvider, pending *PendingRoleSlot) *AuthOrchestrator {
	if pending == nil {
		pending = NewPendingRoleSlot(nil)
	}
	loggerProvider, logger := ResolveLogger("auth.orchestrator", nil, nil)
	return &AuthOrchestrator{
		session:        session,
		backend:        backend,
		provider:       provider,
		pending:        pending,
		validator:      NewFormValidator(""),
		inspector:      NewJWTInspector(),
		navigator:      noopNavigator{},
		activitySink:   noopActivitySink{},
		logger:         logger,
		loggerProvider: loggerProvider,
		now:            time.Now,
		inflight:       map[uint64]context.CancelFunc{},
	}
}

func (o *AuthOrchestrator) WithLogger(logger Logger) *AuthOrchestrator {
	o.loggerProvider, o.logger = ResolveLogger("auth.orchestrator", o.loggerProvider, logger)
	return o
}

// WithLoggerProvider scopes the orchestrator logger through provider.
func (o *AuthOrchestrator) WithLoggerProvider(provider LoggerProvider) *AuthOrchestrator {
	o.loggerProvider, o.logger = ResolveLogger("auth.orchestrator", provider, o.logger)
	return o
}

// WithNavigator sets where redirects are sent.
func (o *AuthOrchestrator) WithNavigator(navigator Navigator) *AuthOrchestrator {
	if navigator != nil {
		o.navigator = navigator
	}
	return o
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (o *AuthOrchestrator) WithActivitySink(sink ActivitySink) *AuthOrchestrator {
	o.activitySink = normalizeActivitySink(sink)
	return o
}

// WithValidator replaces the form validator.
func (o *AuthOrchestrator) WithValidator(validator *FormValidator) *AuthOrchestrator {
	if validator != nil {
		o.validator = validator
	}
	return o
}

// WithTokenInspector replaces how hydration reads token expiry.
func (o *AuthOrchestrator) WithTokenInspector(inspector TokenInspector) *AuthOrchestrator {
	if inspector != nil {
		o.inspector = inspector
	}
	return o
}

// WithClock injects a custom clock (useful for tests).
func (o *AuthOrchestrator) WithClock(now func() time.Time) *AuthOrchestrator {
	if now != nil {
		o.now = now
	}
	return o
}

// WithStaleIdentityOnAuthFailure keeps the cached identity when hydration's
// re-fetch is rejected with an auth error. Off by default: a rejected or
// expired token ends the session.
func (o *AuthOrchestrator) WithStaleIdentityOnAuthFailure(keep bool) *AuthOrchestrator {
	o.keepStale = keep
	return o
}

// Session exposes the read side of the session to other components.
func (o *AuthOrchestrator) Session() SessionReader {
	return o.session
}

// Login exchanges credentials for a token, fetches the profile with it and
// commits both as one session.
func (o *AuthOrchestrator) Login(ctx context.Context, email, password string) (*Session, error) {
	if err := o.validator.ValidateLogin(email, password); err != nil {
		return nil, err
	}

	ticket, fetchCtx, done := o.begin(ctx)
	defer done()

	token, err := o.backend.Login(fetchCtx, email, password)
	if err != nil {
		o.logger.Error("login failed for %s: %v", email, err)
		if IsAuthError(err) {
			err = cloneWith(ErrInvalidCredentials, map[string]any{"email": email})
		}
		o.emit(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return nil, err
	}

	identity, err := o.backend.FetchProfile(fetchCtx, token)
	if err != nil {
		o.logger.Error("login profile fetch failed for %s: %v", email, err)
		o.emit(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return nil, o.supersededOr(ticket, err)
	}

	session, err := o.commit(ctx, ticket, token, *identity)
	if err != nil {
		return nil, err
	}

	o.emit(ctx, ActivityEventLoginSuccess, actorFromIdentity(identity), identity.ID, map[string]any{
		"method": "password",
	})
	return session, nil
}

// Signup registers an account. No session is created: the account is
// confirmed by email, so the caller is routed to the check inbox page.
func (o *AuthOrchestrator) Signup(ctx context.Context, req SignupRequest) (*PendingVerificationEmail, error) {
	if err := o.validator.ValidateSignup(req); err != nil {
		return nil, err
	}

	var err error
	switch req.Role {
	case RoleJobSeeker:
		err = o.backend.SignupJobSeeker(ctx, req)
	case RoleRecruiter:
		err = o.backend.SignupRecruiter(ctx, req)
	default:
		return nil, NewValidationError("invalid role", map[string]string{"role": string(req.Role)})
	}

	if err != nil {
		o.logger.Error("signup failed for %s (%s): %v", req.Email, req.Role, err)
		return nil, err
	}

	o.emit(ctx, ActivityEventSignup, ActorRef{Type: string(req.Role)}, "", map[string]any{
		"email": req.Email,
		"role":  req.Role,
	})

	o.navigator.Navigate(CheckInboxPath)
	return &PendingVerificationEmail{Email: req.Email}, nil
}

// StartOAuthSignIn records the intended role, if any, and returns the
// provider URL the browser must be sent to.
func (o *AuthOrchestrator) StartOAuthSignIn(ctx context.Context, intendedRole Role) (string, error) {
	if o.provider == nil {
		return "", cloneWith(ErrUnauthenticated, map[string]any{"reason": "identity provider not configured"})
	}

	if intendedRole != "" {
		if err := o.pending.Put(ctx, intendedRole); err != nil {
			return "", err
		}
	}

	signInURL, err := o.provider.SignInURL(ctx)
	if err != nil {
		o.logger.Error("failed to build sign in url: %v", err)
		return "", err
	}
	return signInURL, nil
}

// ConsumePendingRole reads and clears the role chosen before the provider
// redirect. Without one, job seeker is assumed.
func (o *AuthOrchestrator) ConsumePendingRole(ctx context.Context) (Role, error) {
	role, ok, err := o.pending.Consume(ctx)
	if err != nil {
		return RoleJobSeeker, err
	}
	if !ok {
		return RoleJobSeeker, nil
	}
	return role, nil
}

// CompleteOAuthProfile finalizes an account that exists at the provider but
// not at the backend, then commits the canonical profile as the session.
func (o *AuthOrchestrator) CompleteOAuthProfile(ctx context.Context, details OAuthProfileDetails) (*Session, error) {
	o.mu.Lock()
	token := o.providerToken
	o.mu.Unlock()
	if token == "" {
		return nil, cloneWith(ErrUnauthenticated, map[string]any{"operation": "oauth.complete_profile"})
	}

	// the slot is cleared on every completion; an explicit role wins
	pending, hadPending, err := o.pending.Consume(ctx)
	if err != nil {
		o.logger.Warn("pending role unreadable, defaulting to %s: %v", RoleJobSeeker, err)
	}
	if details.Role == "" {
		details.Role = RoleJobSeeker
		if hadPending {
			details.Role = pending
		}
	}

	if err := o.validator.ValidateOAuthDetails(details); err != nil {
		// keep the choice for the corrected form
		if hadPending {
			if perr := o.pending.Put(ctx, pending); perr != nil {
				o.logger.Warn("failed to restore pending role: %v", perr)
			}
		}
		return nil, err
	}

	ticket, fetchCtx, done := o.begin(ctx)
	defer done()

	if err := o.backend.CompleteOAuthProfile(fetchCtx, token, details); err != nil {
		o.logger.Error("complete profile failed: %v", err)
		return nil, o.supersededOr(ticket, err)
	}

	identity, err := o.backend.FetchProfile(fetchCtx, token)
	if err != nil {
		o.logger.Error("profile fetch after completion failed: %v", err)
		return nil, o.supersededOr(ticket, err)
	}

	session, err := o.commit(ctx, ticket, token, *identity)
	if err != nil {
		return nil, err
	}

	o.emit(ctx, ActivityEventSocialProfileCompleted, actorFromIdentity(identity), identity.ID, map[string]any{
		"role": identity.Role,
	})
	o.navigator.Navigate(identity.Role.DashboardRoot())
	return session, nil
}

// Hydrate resolves the loading state at startup. A persisted session is
// re-validated against the backend: rejected or expired tokens end the
// session, transport failures keep the cached identity.
func (o *AuthOrchestrator) Hydrate(ctx context.Context) (SessionState, error) {
	ticket, fetchCtx, done := o.begin(ctx)
	ticket.hydrate = true
	defer done()

	cached, err := o.session.Load(ctx)
	if err != nil {
		o.logger.Error("hydrate could not read persisted session: %v", err)
		o.clearIf(ctx, ticket)
		return o.session.Get(), err
	}

	if cached == nil {
		o.clearIf(ctx, ticket)
		return o.session.Get(), nil
	}

	if info, ierr := o.inspector.Inspect(cached.Token); ierr == nil && info.Expired(o.now()) && !o.keepStale {
		o.logger.Info("persisted token expired at %s, ending session", info.ExpiresAt.Format(time.RFC3339))
		o.invalidateIf(ctx, ticket, &cached.Identity, "token_expired")
		return o.session.Get(), nil
	}

	identity, err := o.backend.FetchProfile(fetchCtx, cached.Token)
	switch {
	case err == nil:
		o.warnRegression(cached.Identity, *identity)
		if _, cerr := o.commit(ctx, ticket, cached.Token, *identity); cerr != nil {
			return o.session.Get(), cerr
		}
		o.emit(ctx, ActivityEventSessionHydrated, actorFromIdentity(identity), identity.ID, map[string]any{
			"source": "backend",
		})
	case o.rejectsToken(err) && !o.keepStale:
		o.logger.Warn("hydrate re-fetch rejected the token, ending session: %v", err)
		o.invalidateIf(ctx, ticket, &cached.Identity, "token_rejected")
	default:
		if o.superseded(ticket) {
			return o.session.Get(), nil
		}
		o.logger.Warn("hydrate re-fetch failed, keeping cached identity: %v", err)
		if _, cerr := o.commit(ctx, ticket, cached.Token, cached.Identity); cerr != nil {
			return o.session.Get(), cerr
		}
		o.emit(ctx, ActivityEventSessionHydrated, actorFromIdentity(&cached.Identity), cached.Identity.ID, map[string]any{
			"source": "cache",
			"error":  err.Error(),
		})
	}

	return o.session.Get(), nil
}

// Logout ends the session unconditionally. The provider sign out is best
// effort and its failure is only logged.
func (o *AuthOrchestrator) Logout(ctx context.Context) {
	prev, _ := o.session.Get().Identity()
	o.endSession(ctx, "logout")

	if err := o.pending.Discard(ctx); err != nil {
		o.logger.Warn("logout: failed to discard pending role: %v", err)
	}

	if o.provider != nil {
		if err := o.provider.SignOut(ctx); err != nil {
			o.logger.Warn("identity provider sign out failed: %v", err)
		}
	}

	o.emit(ctx, ActivityEventLogout, actorFromIdentity(&prev), prev.ID, nil)
	o.navigator.Navigate(LoginPath)
}

// Listen subscribes the orchestrator to provider events.
func (o *AuthOrchestrator) Listen(ctx context.Context) func() {
	if o.provider == nil {
		return func() {}
	}
	return o.provider.Subscribe(func(event ProviderEvent) {
		if err := o.HandleProviderEvent(ctx, event); err != nil {
			o.logger.Error("provider event %s #%d failed: %v", event.Type, event.Seq, err)
		}
	})
}

// HandleProviderEvent applies one provider notification. A sign in whose
// sequence is not newer than the last sign out is ignored, and a sign in
// still fetching when a sign out arrives is cancelled and never committed.
func (o *AuthOrchestrator) HandleProviderEvent(ctx context.Context, event ProviderEvent) error {
	switch event.Type {
	case ProviderSignedOut:
		return o.handleSignedOut(ctx, event)
	case ProviderSignedIn:
		return o.handleSignedIn(ctx, event)
	default:
		o.logger.Warn("ignoring unknown provider event %q", event.Type)
		return nil
	}
}

func (o *AuthOrchestrator) handleSignedOut(ctx context.Context, event ProviderEvent) error {
	o.mu.Lock()
	if event.Seq > o.signOutMark {
		o.signOutMark = event.Seq
	}
	o.mu.Unlock()

	prev, had := o.session.Get().Identity()
	o.endSession(ctx, "provider_signed_out")
	if had {
		o.emit(ctx, ActivityEventSessionInvalidated, actorFromIdentity(&prev), prev.ID, map[string]any{
			"reason": "provider_signed_out",
			"seq":    event.Seq,
		})
	}
	return nil
}

func (o *AuthOrchestrator) handleSignedIn(ctx context.Context, event ProviderEvent) error {
	if event.AccessToken == "" {
		return cloneWith(ErrUnauthenticated, map[string]any{"reason": "provider event without token", "seq": event.Seq})
	}

	o.mu.Lock()
	// Seq zero is unordered; only a sign out that lands while it is in
	// flight can cancel it
	if mark := o.signOutMark; event.Seq != 0 && event.Seq <= mark {
		o.mu.Unlock()
		o.logger.Debug("ignoring stale sign in #%d, sign out #%d already recorded", event.Seq, mark)
		return nil
	}
	o.providerToken = event.AccessToken
	o.mu.Unlock()

	ticket, fetchCtx, done := o.begin(ctx)
	ticket.seq = event.Seq
	defer done()

	identity, err := o.backend.FetchProfile(fetchCtx, event.AccessToken)
	if err != nil {
		if o.superseded(ticket) {
			return nil
		}
		if IsNotFoundError(err) || IsPermissionError(err) {
			o.logger.Info("provider sign in #%d has no backend profile yet", event.Seq)
			o.emit(ctx, ActivityEventSocialProfileMissing, ActorRef{Type: "unknown"}, "", map[string]any{
				"email": event.Email,
				"seq":   event.Seq,
			})
			o.navigator.Navigate(CompleteProfilePath)
			return nil
		}
		return err
	}

	if _, err := o.commit(ctx, ticket, event.AccessToken, *identity); err != nil {
		if IsAuthError(err) && o.superseded(ticket) {
			return nil
		}
		return err
	}

	// an existing profile never reads the role picked before the redirect
	if err := o.pending.Discard(ctx); err != nil {
		o.logger.Warn("failed to discard pending role: %v", err)
	}

	o.emit(ctx, ActivityEventSocialLogin, actorFromIdentity(identity), identity.ID, map[string]any{
		"seq": event.Seq,
	})
	return nil
}

// UpdateIdentity merges patch into the present session.
func (o *AuthOrchestrator) UpdateIdentity(ctx context.Context, patch IdentityPatch) (*Session, error) {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()

	if current, ok := o.session.Get().Identity(); ok {
		o.warnRegression(current, patch.Apply(current))
	}
	return o.session.Update(ctx, patch)
}

// RefreshIdentity re-fetches the canonical profile for the present session.
func (o *AuthOrchestrator) RefreshIdentity(ctx context.Context) (*Session, error) {
	state := o.session.Get()
	if !state.IsAuthenticated() {
		return nil, cloneWith(ErrUnauthenticated, map[string]any{"operation": "identity.refresh"})
	}

	ticket, fetchCtx, done := o.begin(ctx)
	defer done()

	identity, err := o.backend.FetchProfile(fetchCtx, state.Session.Token)
	if err != nil {
		if o.rejectsToken(err) && !o.keepStale {
			o.invalidateIf(ctx, ticket, &state.Session.Identity, "token_rejected")
		}
		return nil, o.supersededOr(ticket, err)
	}

	if o.superseded(ticket) {
		return nil, cloneWith(ErrUnauthenticated, map[string]any{"reason": "signed out"})
	}
	return o.UpdateIdentity(ctx, PatchFromIdentity(*identity))
}

// fetchTicket records the ordering state a request started under. Hydrate
// tickets only ever resolve the loading state and never replace a session
// committed by another path.
type fetchTicket struct {
	id      uint64
	epoch   uint64
	signOut uint64
	seq     uint64
	hydrate bool
}

func (o *AuthOrchestrator) begin(ctx context.Context) (fetchTicket, context.Context, func()) {
	fetchCtx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	o.nextFetch++
	ticket := fetchTicket{id: o.nextFetch, epoch: o.epoch, signOut: o.signOutMark}
	o.inflight[ticket.id] = cancel
	o.mu.Unlock()

	return ticket, fetchCtx, func() {
		o.mu.Lock()
		delete(o.inflight, ticket.id)
		o.mu.Unlock()
		cancel()
	}
}

// superseded reports whether a logout or provider sign out happened after
// ticket was issued.
func (o *AuthOrchestrator) superseded(ticket fetchTicket) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.epoch != ticket.epoch || o.signOutMark != ticket.signOut {
		return true
	}
	return ticket.seq != 0 && ticket.seq <= o.signOutMark
}

func (o *AuthOrchestrator) supersededOr(ticket fetchTicket, err error) error {
	if o.superseded(ticket) {
		return cloneWith(ErrUnauthenticated, map[string]any{"reason": "signed out"})
	}
	return err
}

func (o *AuthOrchestrator) commit(ctx context.Context, ticket fetchTicket, token string, identity Identity) (*Session, error) {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()

	if o.superseded(ticket) {
		o.logger.Debug("dropping session commit for %s, signed out while in flight", identity.ID)
		return nil, cloneWith(ErrUnauthenticated, map[string]any{"reason": "signed out"})
	}

	if ticket.hydrate {
		if state := o.session.Get(); !state.IsLoading() {
			o.logger.Debug("hydrate result for %s dropped, session already resolved", identity.ID)
			return state.Session, nil
		}
	}

	if err := o.session.Set(ctx, token, identity); err != nil {
		o.logger.Error("failed to commit session for %s: %v", identity.ID, err)
		return nil, err
	}
	return &Session{Token: token, Identity: identity}, nil
}

func (o *AuthOrchestrator) clearIf(ctx context.Context, ticket fetchTicket) {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	if ticket.hydrate {
		if !o.session.Get().IsLoading() {
			return
		}
	} else if o.superseded(ticket) {
		return
	}
	if err := o.session.Clear(ctx); err != nil {
		o.logger.Error("failed to clear session: %v", err)
	}
}

func (o *AuthOrchestrator) invalidateIf(ctx context.Context, ticket fetchTicket, prev *Identity, reason string) {
	o.clearIf(ctx, ticket)
	o.emit(ctx, ActivityEventSessionInvalidated, actorFromIdentity(prev), identityID(prev), map[string]any{
		"reason": reason,
	})
}

// endSession bumps the epoch, cancels every in-flight request and clears
// the store. The clear waits for any commit already past its check.
func (o *AuthOrchestrator) endSession(ctx context.Context, reason string) {
	o.mu.Lock()
	o.epoch++
	o.providerToken = ""
	cancels := make([]context.CancelFunc, 0, len(o.inflight))
	for id, cancel := range o.inflight {
		cancels = append(cancels, cancel)
		delete(o.inflight, id)
	}
	o.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	o.commitMu.Lock()
	err := o.session.Clear(ctx)
	o.commitMu.Unlock()
	if err != nil {
		o.logger.Error("%s: failed to clear persisted session: %v", reason, err)
	}
}

func (o *AuthOrchestrator) rejectsToken(err error) bool {
	return IsAuthError(err) || IsNotFoundError(err) || IsPermissionError(err)
}

func (o *AuthOrchestrator) warnRegression(cached, fresh Identity) {
	if cached.Role != RoleRecruiter {
		return
	}
	if fresh.EffectiveVerification().rank() < cached.EffectiveVerification().rank() {
		o.logger.Warn("verification status for %s regressed from %s to %s",
			cached.ID, cached.EffectiveVerification(), fresh.EffectiveVerification())
	}
}

func (o *AuthOrchestrator) emit(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	recordActivity(ctx, o.activitySink, o.logger, o.now, ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	})
}

func identityID(identity *Identity) string {
	if identity == nil {
		return ""
	}
	return identity.ID
}

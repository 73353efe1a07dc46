// Package web serves the marketplace client shell over HTTP: page requests
// pass through the route guard, and the auth endpoints drive the
// orchestrator.
package web

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/goliatone/go-router"
	"golang.org/x/oauth2"
)

// SessionLocalsKey is where the guard stores the allowed session state.
const SessionLocalsKey = "marketplace.session"

// CallbackHandler completes a provider sign in. Subscribers must have been
// notified by the time it returns.
type CallbackHandler interface {
	Callback(ctx context.Context, state, code string) (*oauth2.Token, error)
}

// Navigator turns orchestrator navigations into HTTP redirects. The client
// serves one user, so the last navigation is the one to follow.
type Navigator struct {
	mu   sync.Mutex
	last string
}

var _ auth.Navigator = &Navigator{}

func (n *Navigator) Navigate(path string) {
	n.mu.Lock()
	n.last = path
	n.mu.Unlock()
}

// Take returns and forgets the pending navigation.
func (n *Navigator) Take() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	path := n.last
	n.last = ""
	return path
}

// Config wires the server.
type Config struct {
	Orchestrator *auth.AuthOrchestrator
	Guard        *auth.RouteGuard
	Gate         *auth.VerificationGate
	Workflow     *auth.ApplicationWorkflow
	Callbacks    CallbackHandler
	Navigator    *Navigator
	Logger       auth.Logger
}

// Server is the go-router fiber adapter and its handlers.
type Server struct {
	srv          router.Server[*fiber.App]
	orchestrator *auth.AuthOrchestrator
	session      auth.SessionReader
	guard        *auth.RouteGuard
	gate         *auth.VerificationGate
	workflow     *auth.ApplicationWorkflow
	callbacks    CallbackHandler
	nav          *Navigator
	logger       auth.Logger
}

// New builds the server. The orchestrator should navigate through
// cfg.Navigator so redirects reach the browser.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		_, logger = auth.ResolveLogger("web", nil, nil)
	}

	nav := cfg.Navigator
	if nav == nil {
		nav = &Navigator{}
	}

	session := cfg.Orchestrator.Session()
	guard := cfg.Guard
	if guard == nil {
		guard = auth.NewRouteGuard(session).WithLogger(logger)
	}

	s := &Server{
		orchestrator: cfg.Orchestrator,
		session:      session,
		guard:        guard,
		gate:         cfg.Gate,
		workflow:     cfg.Workflow,
		callbacks:    cfg.Callbacks,
		nav:          nav,
		logger:       logger,
	}

	s.srv = router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:               "marketplace",
			DisableStartupMessage: true,
			ErrorHandler:          ErrorHandler(logger),
		}))
	})
	s.routes(s.srv.Router())
	return s
}

// App exposes the wrapped fiber application.
func (s *Server) App() *fiber.App {
	return s.srv.WrappedRouter()
}

// Listen serves on addr until the server is shut down.
func (s *Server) Listen(addr string) error {
	return s.srv.Serve(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) routes(r router.Router[*fiber.App]) {
	api := r.Group("/api")
	api.Get("/session", s.currentSession)
	api.Post("/login", s.login)
	api.Post("/logout", s.logout)
	api.Post("/complete-profile", s.completeProfile)
	api.Get("/publish", s.publishDecision)
	api.Post("/applications/:id/status", s.applicationStatus)

	r.Get("/auth/google/start", s.startOAuth)
	r.Get("/auth/callback", s.oauthCallback)

	r.Get("/*", s.page, GuardMiddleware(s.guard, s.session))
}

// GuardMiddleware applies the route guard to page requests. Allowed
// requests carry the session state in locals and the request context.
func GuardMiddleware(guard *auth.RouteGuard, session auth.SessionReader) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			state := session.Get()
			decision := guard.EvaluateState(state, ctx.OriginalURL())

			switch decision.Kind {
			case auth.Suspend:
				ctx.SetHeader(fiber.HeaderRetryAfter, "1")
				return ctx.JSON(fiber.StatusServiceUnavailable, map[string]any{"status": "loading"})
			case auth.Redirect:
				return ctx.Redirect(decision.Location(), fiber.StatusFound)
			}

			ctx.Locals(SessionLocalsKey, state)
			ctx.SetContext(auth.WithSessionContext(ctx.Context(), state))
			return next(ctx)
		}
	}
}

func (s *Server) page(ctx router.Context) error {
	body := map[string]any{"path": ctx.Path()}
	if identity, ok := auth.IdentityFromContext(ctx.Context()); ok {
		body["identity"] = identity
	}
	return ctx.JSON(fiber.StatusOK, body)
}

func (s *Server) currentSession(ctx router.Context) error {
	state := s.session.Get()
	body := map[string]any{"status": state.Status.String()}
	if identity, ok := state.Identity(); ok {
		body["identity"] = identity
	}
	return ctx.JSON(fiber.StatusOK, body)
}

type loginPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	From     string `json:"from" form:"from"`
}

func (s *Server) login(ctx router.Context) error {
	payload := &loginPayload{}
	if err := ctx.Bind(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed login payload")
	}
	if payload.From == "" {
		payload.From = strings.Clone(ctx.Query("from"))
	}

	session, err := s.orchestrator.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"redirect": auth.PostLoginPath(session.Identity, payload.From),
		"identity": session.Identity,
	})
}

func (s *Server) logout(ctx router.Context) error {
	s.orchestrator.Logout(ctx.Context())
	target := s.nav.Take()
	if target == "" {
		target = auth.LoginPath
	}
	return ctx.JSON(fiber.StatusOK, map[string]any{"redirect": target})
}

func (s *Server) completeProfile(ctx router.Context) error {
	details := &auth.OAuthProfileDetails{}
	if err := ctx.Bind(details); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed profile payload")
	}

	session, err := s.orchestrator.CompleteOAuthProfile(ctx.Context(), *details)
	if err != nil {
		return err
	}
	s.nav.Take()

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"redirect": session.Identity.Role.DashboardRoot(),
		"identity": session.Identity,
	})
}

func (s *Server) publishDecision(ctx router.Context) error {
	if s.gate == nil {
		return fiber.ErrNotFound
	}
	decision := s.gate.Current()
	return ctx.JSON(fiber.StatusOK, map[string]any{
		"can_publish": decision.CanPublish,
		"reason":      decision.Reason,
		"status":      decision.Status,
	})
}

type statusPayload struct {
	JobID          string                 `json:"job_id"`
	SeekerID       string                 `json:"seeker_id"`
	Current        auth.ApplicationStatus `json:"current"`
	Status         auth.ApplicationStatus `json:"status"`
	RecruiterNotes *string                `json:"recruiter_notes"`
	Reason         string                 `json:"reason"`
	Force          bool                   `json:"force"`
}

func (s *Server) applicationStatus(ctx router.Context) error {
	if s.workflow == nil {
		return fiber.ErrNotFound
	}

	payload := &statusPayload{}
	if err := ctx.Bind(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed status payload")
	}

	app := &auth.JobApplication{
		ID:       strings.Clone(ctx.Param("id")),
		JobID:    payload.JobID,
		SeekerID: payload.SeekerID,
		Status:   payload.Current,
	}

	opts := []auth.TransitionOption{auth.WithTransitionReason(payload.Reason)}
	if payload.Force {
		opts = append(opts, auth.WithForceTransition())
	}

	updated, err := s.workflow.SetStatus(ctx.Context(), app, auth.StatusChange{
		Status:         payload.Status,
		RecruiterNotes: payload.RecruiterNotes,
	}, opts...)
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.StatusOK, updated)
}

func (s *Server) startOAuth(ctx router.Context) error {
	// query values alias the request buffer; the role outlives the request
	role := auth.Role(strings.Clone(ctx.Query("role")))
	if role != "" && !role.IsValid() {
		return auth.NewValidationError("invalid role", map[string]string{"role": string(role)})
	}

	target, err := s.orchestrator.StartOAuthSignIn(ctx.Context(), role)
	if err != nil {
		return err
	}
	return ctx.Redirect(target, fiber.StatusFound)
}

func (s *Server) oauthCallback(ctx router.Context) error {
	if s.callbacks == nil {
		return fiber.ErrNotFound
	}

	s.nav.Take()
	state := strings.Clone(ctx.Query("state"))
	code := strings.Clone(ctx.Query("code"))
	if _, err := s.callbacks.Callback(ctx.Context(), state, code); err != nil {
		s.logger.Warn("oauth callback failed: %v", err)
		return ctx.Redirect(auth.LoginPath, fiber.StatusFound)
	}

	// the provider event ran synchronously; a missing profile navigated
	if target := s.nav.Take(); target != "" {
		return ctx.Redirect(target, fiber.StatusFound)
	}
	if identity, ok := s.session.Get().Identity(); ok {
		return ctx.Redirect(auth.PostLoginPath(identity, ""), fiber.StatusFound)
	}
	return ctx.Redirect(auth.LoginPath, fiber.StatusFound)
}

// ErrorHandler renders taxonomy errors as JSON with a matching status.
func ErrorHandler(logger auth.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		status := StatusFor(err)
		if status >= fiber.StatusInternalServerError {
			logger.Error("%s %s: %v", c.Method(), c.Path(), err)
		}

		body := fiber.Map{
			"error": auth.UserMessage(err),
			"kind":  auth.KindOf(err),
		}
		if fields := auth.ValidationFields(err); len(fields) > 0 {
			body["fields"] = fields
		}
		return c.Status(status).JSON(body)
	}
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err error) int {
	switch auth.KindOf(err) {
	case auth.KindValidation:
		return fiber.StatusUnprocessableEntity
	case auth.KindAuth:
		return fiber.StatusUnauthorized
	case auth.KindPermission:
		return fiber.StatusForbidden
	case auth.KindConflict:
		return fiber.StatusConflict
	case auth.KindNotFound:
		return fiber.StatusNotFound
	case auth.KindNetwork:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

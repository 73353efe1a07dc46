package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/goliatone/go-marketplace-auth/backend"
	"github.com/goliatone/go-marketplace-auth/config"
	"github.com/goliatone/go-marketplace-auth/oauth"
	"github.com/goliatone/go-marketplace-auth/storage"
	"github.com/goliatone/go-marketplace-auth/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("marketplace: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg := config.Load()

	store, err := storage.Open(ctx, "file:"+cfg.GetStoragePath()+"?cache=shared")
	if err != nil {
		return err
	}
	defer store.Close()

	client := backend.New(backend.Config{
		BaseURL:   cfg.GetAPIURL(),
		Timeout:   cfg.GetHTTPTimeout(),
		UserAgent: "marketplace-client",
	})

	var provider auth.IdentityProvider
	var callbacks web.CallbackHandler
	if cfg.OAuthEnabled() {
		p := oauth.New(oauth.Config{
			ClientID:     cfg.GetOAuthClientID(),
			ClientSecret: cfg.GetOAuthClientSecret(),
			RedirectURL:  cfg.GetOAuthRedirectURL(),
		})
		provider, callbacks = p, p
	} else {
		log.Printf("oauth not configured, third-party sign in disabled")
	}

	validator := auth.NewFormValidator(cfg.GetPhoneRegion())
	nav := &web.Navigator{}
	activityLog := storage.NewActivityLog(store)
	activity := auth.ActivitySinkFunc(func(ctx context.Context, e auth.ActivityEvent) error {
		log.Printf("activity %s user=%s", e.EventType, e.UserID)
		return activityLog.Record(ctx, e)
	})

	session := auth.NewSessionStore(store)
	orchestrator := auth.NewAuthOrchestrator(session, client, provider, auth.NewPendingRoleSlot(store)).
		WithNavigator(nav).
		WithValidator(validator).
		WithActivitySink(activity).
		WithStaleIdentityOnAuthFailure(cfg.GetKeepStaleIdentity())

	unsubscribe := orchestrator.Listen(ctx)
	defer unsubscribe()

	gate := auth.NewVerificationGate(orchestrator.Session(), orchestrator, client).
		WithValidator(validator).
		WithActivitySink(activity)

	workflow := auth.NewApplicationWorkflow(client, orchestrator.Session(),
		auth.WithWorkflowPolicy(auth.ParseTransitionPolicy(cfg.GetTransitionPolicy())),
		auth.WithWorkflowActivitySink(activity),
	)

	server := web.New(web.Config{
		Orchestrator: orchestrator,
		Gate:         gate,
		Workflow:     workflow,
		Callbacks:    callbacks,
		Navigator:    nav,
	})

	// the guard suspends page requests until this resolves
	go func() {
		state, err := orchestrator.Hydrate(ctx)
		if err != nil {
			log.Printf("hydrate: %v", err)
		}
		log.Printf("session %s, transition policy %s", state.Status, workflow.Policy().Name())
	}()

	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on %s, backend %s", cfg.GetHTTPAddr(), cfg.GetAPIURL())
		errc <- server.Listen(cfg.GetHTTPAddr())
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

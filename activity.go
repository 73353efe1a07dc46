package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess             ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure             ActivityEventType = "auth.login.failure"
	ActivityEventLogout                   ActivityEventType = "auth.logout"
	ActivityEventSignup                   ActivityEventType = "auth.signup"
	ActivityEventSocialLogin              ActivityEventType = "auth.social.login"
	ActivityEventSocialProfileMissing     ActivityEventType = "auth.social.profile_missing"
	ActivityEventSocialProfileCompleted   ActivityEventType = "auth.social.profile_completed"
	ActivityEventSessionHydrated          ActivityEventType = "auth.session.hydrated"
	ActivityEventSessionInvalidated       ActivityEventType = "auth.session.invalidated"
	ActivityEventLegalDocumentSubmitted   ActivityEventType = "recruiter.verification.submitted"
	ActivityEventApplicationStatusChanged ActivityEventType = "application.status.changed"
	ActivityEventApplicationNotesChanged  ActivityEventType = "application.notes.changed"
	ActivityEventAccountDeleted           ActivityEventType = "account.deleted"
)

// ActorRef identifies who/what triggered an action.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	FromStatus string
	ToStatus   string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

func actorFromIdentity(identity *Identity) ActorRef {
	if identity == nil || identity.ID == "" {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{ID: identity.ID, Type: string(identity.Role)}
}

func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, now func() time.Time, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		if now == nil {
			now = time.Now
		}
		event.OccurredAt = now()
	}

	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil && logger != nil {
		logger.Warn("activity sink record error: %v", err)
	}
}

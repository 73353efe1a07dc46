package activitymap

import (
	"strings"
	"time"

	auth "github.com/goliatone/go-marketplace-auth"
)

const (
	// MetadataKeyActorType stores the actor type derived from auth.ActorRef.Type.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyFromStatus stores the source status of a verification or
	// application transition.
	MetadataKeyFromStatus = "from_status"
	// MetadataKeyToStatus stores the target status of a transition.
	MetadataKeyToStatus = "to_status"
)

const (
	ObjectUser        = "user"
	ObjectApplication = "application"

	defaultActorID = "system"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(auth.ActivityEvent) string
}

// Normalize converts an auth.ActivityEvent into a generic normalized shape.
// Without options the channel is the first segment of the event type
// (auth, recruiter, application, account) and application events point at
// the application instead of the seeker.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{actorFallback: defaultActorID}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	channel := options.channel
	if channel == "" {
		channel = channelOf(event.EventType)
	}

	objectType := options.objectType
	if objectType == "" {
		objectType = objectTypeOf(event)
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(event.Actor.ID),
		strings.TrimSpace(event.UserID),
		options.actorFallback,
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: objectType,
		ObjectID:   resolveObjectID(event, objectType, options.objectIDResolver),
		Channel:    channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithChannel pins the channel instead of deriving it from the event type.
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithObjectType pins the object type.
func WithObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from ActivityEvent.
func WithObjectIDResolver(resolver func(auth.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the final actor-id fallback when actor/user ids are empty.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

func channelOf(eventType auth.ActivityEventType) string {
	verb := string(eventType)
	if i := strings.IndexByte(verb, '.'); i > 0 {
		return verb[:i]
	}
	return "auth"
}

func objectTypeOf(event auth.ActivityEvent) string {
	if strings.HasPrefix(string(event.EventType), ObjectApplication+".") {
		return ObjectApplication
	}
	return ObjectUser
}

func resolveObjectID(event auth.ActivityEvent, objectType string, resolver func(auth.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	if objectType == ObjectApplication {
		if id, ok := event.Metadata["application_id"].(string); ok && id != "" {
			return id
		}
	}
	return strings.TrimSpace(event.UserID)
}

func normalizeMetadata(event auth.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	set := func(key, value string, overwrite bool) {
		if value == "" {
			return
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[key]; exists && !overwrite {
			return
		}
		metadata[key] = value
	}

	set(MetadataKeyActorType, strings.TrimSpace(event.Actor.Type), false)
	set(MetadataKeyFromStatus, event.FromStatus, true)
	set(MetadataKeyToStatus, event.ToStatus, true)

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

package auth

import "time"

// ProviderEventType is the kind of session change the identity provider reports.
type ProviderEventType string

const (
	ProviderSignedIn  ProviderEventType = "signed_in"
	ProviderSignedOut ProviderEventType = "signed_out"
)

// ProviderEvent is a session-changed notification. Seq is assigned by the
// provider in emission order and is the only ordering the orchestrator
// trusts; delivery and completion order may differ. Sequences start at 1;
// zero marks an unsequenced event that no earlier sign out can make stale.
type ProviderEvent struct {
	Type        ProviderEventType
	Seq         uint64
	AccessToken string
	Email       string
	OccurredAt  time.Time
}

// ProviderEventHandler receives provider events. Providers may call it
// from any goroutine.
type ProviderEventHandler func(event ProviderEvent)

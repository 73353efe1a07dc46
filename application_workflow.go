package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ApplicationStatus is the review state of a job application.
type ApplicationStatus string

const (
	ApplicationApplied   ApplicationStatus = "applied"
	ApplicationReviewed  ApplicationStatus = "reviewed"
	ApplicationInterview ApplicationStatus = "interview"
	ApplicationHired     ApplicationStatus = "hired"
	ApplicationRejected  ApplicationStatus = "rejected"
)

// IsValid checks the status is part of the review lifecycle
func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationApplied, ApplicationReviewed, ApplicationInterview, ApplicationHired, ApplicationRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports the conventionally final statuses.
func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationHired || s == ApplicationRejected
}

func (s ApplicationStatus) stage() int {
	switch s {
	case ApplicationReviewed:
		return 1
	case ApplicationInterview:
		return 2
	case ApplicationHired, ApplicationRejected:
		return 3
	default:
		return 0
	}
}

// JobApplication is the client cache of a backend application record.
type JobApplication struct {
	ID             string            `json:"id"`
	JobID          string            `json:"job_id"`
	SeekerID       string            `json:"seeker_id"`
	Status         ApplicationStatus `json:"status"`
	RecruiterNotes string            `json:"recruiter_notes,omitempty"`
	AIScore        *float64          `json:"ai_score,omitempty"`
	AIReason       string            `json:"ai_reason,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// EffectiveStatus treats a missing status as applied.
func (a JobApplication) EffectiveStatus() ApplicationStatus {
	if a.Status == "" {
		return ApplicationApplied
	}
	return a.Status
}

// ApplicationStatusUpdate is the PUT /applications/:id/status body. Status
// is always sent, even for notes only edits.
type ApplicationStatusUpdate struct {
	Status         ApplicationStatus `json:"status"`
	RecruiterNotes *string           `json:"recruiter_notes,omitempty"`
	AIScore        *float64          `json:"ai_score,omitempty"`
	AIReason       *string           `json:"ai_reason,omitempty"`
}

// Validate rejects updates the backend would treat as malformed.
func (u ApplicationStatusUpdate) Validate() error {
	if u.Status == "" {
		return ErrMissingStatus
	}
	if !u.Status.IsValid() {
		return cloneWith(ErrInvalidTransition, map[string]any{"to": u.Status, "reason": "unknown status"})
	}
	return nil
}

// TransitionPolicy decides whether an application may move between statuses.
type TransitionPolicy interface {
	Allowed(from, to ApplicationStatus) bool
	Name() string
}

// TransitionPolicyFunc adapts a function to TransitionPolicy.
type TransitionPolicyFunc func(from, to ApplicationStatus) bool

func (f TransitionPolicyFunc) Allowed(from, to ApplicationStatus) bool { return f(from, to) }
func (f TransitionPolicyFunc) Name() string                            { return "custom" }

type unconstrainedPolicy struct{}

func (unconstrainedPolicy) Allowed(_, to ApplicationStatus) bool { return to.IsValid() }
func (unconstrainedPolicy) Name() string                         { return "unconstrained" }

type terminalLockPolicy struct{}

func (terminalLockPolicy) Allowed(from, to ApplicationStatus) bool {
	return to.IsValid() && !from.IsTerminal()
}
func (terminalLockPolicy) Name() string { return "terminal_lock" }

type forwardOnlyPolicy struct{}

func (forwardOnlyPolicy) Allowed(from, to ApplicationStatus) bool {
	if !to.IsValid() || from.IsTerminal() {
		return false
	}
	return to.stage() > from.stage()
}
func (forwardOnlyPolicy) Name() string { return "forward_only" }

// UnconstrainedPolicy lets recruiters move any status to any other,
// including reverting a mistaken rejection.
func UnconstrainedPolicy() TransitionPolicy { return unconstrainedPolicy{} }

// TerminalLockPolicy refuses to leave hired or rejected.
func TerminalLockPolicy() TransitionPolicy { return terminalLockPolicy{} }

// ForwardOnlyPolicy only moves along applied -> reviewed -> interview -> hired|rejected.
func ForwardOnlyPolicy() TransitionPolicy { return forwardOnlyPolicy{} }

// ParseTransitionPolicy maps a config value to a policy. Unknown names fall
// back to unconstrained.
func ParseTransitionPolicy(name string) TransitionPolicy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "terminal_lock", "terminal-lock":
		return TerminalLockPolicy()
	case "forward_only", "forward-only":
		return ForwardOnlyPolicy()
	default:
		return UnconstrainedPolicy()
	}
}

// StatusChange is a recruiter's edit to an application.
type StatusChange struct {
	Status         ApplicationStatus
	RecruiterNotes *string
	AIScore        *float64
	AIReason       *string
}

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks.
type TransitionContext struct {
	Actor       ActorRef
	Application *JobApplication
	From        ApplicationStatus
	To          ApplicationStatus
	Meta        TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after the request.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// WorkflowOption customizes workflow construction.
type WorkflowOption func(*ApplicationWorkflow)

// WithWorkflowPolicy sets the transition policy.
func WithWorkflowPolicy(policy TransitionPolicy) WorkflowOption {
	return func(w *ApplicationWorkflow) {
		if policy != nil {
			w.policy = policy
		}
	}
}

// WithWorkflowClock injects a custom clock (useful for tests).
func WithWorkflowClock(clock func() time.Time) WorkflowOption {
	return func(w *ApplicationWorkflow) {
		if clock != nil {
			w.now = clock
		}
	}
}

// WithWorkflowActivitySink sets the ActivitySink used to publish status events.
func WithWorkflowActivitySink(sink ActivitySink) WorkflowOption {
	return func(w *ApplicationWorkflow) {
		w.activitySink = normalizeActivitySink(sink)
	}
}

// WithWorkflowHookErrorHandler overrides how hook failures are propagated.
// By default the hook error is returned to the caller unchanged.
func WithWorkflowHookErrorHandler(handler HookErrorHandler) WorkflowOption {
	return func(w *ApplicationWorkflow) {
		if handler != nil {
			w.hookErrorHandler = handler
		}
	}
}

// WithWorkflowLogger overrides the logger.
func WithWorkflowLogger(logger Logger) WorkflowOption {
	return func(w *ApplicationWorkflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithForceTransition bypasses the configured policy.
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

// WithBeforeTransitionHook adds a hook executed before the request is sent.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the backend accepts the update.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// ApplicationWorkflow drives recruiter side status changes. Every request
// carries the application's status, read from the cached record when the
// edit does not change it.
type ApplicationWorkflow struct {
	backend          BackendAPI
	session          SessionReader
	policy           TransitionPolicy
	now              func() time.Time
	activitySink     ActivitySink
	logger           Logger
	hookErrorHandler HookErrorHandler
}

type transitionOptions struct {
	metadata    TransitionMetadata
	force       bool
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

// NewApplicationWorkflow creates a workflow with the unconstrained policy.
func NewApplicationWorkflow(backend BackendAPI, session SessionReader, opts ...WorkflowOption) *ApplicationWorkflow {
	_, logger := ResolveLogger("auth.application_workflow", nil, nil)
	w := &ApplicationWorkflow{
		backend:      backend,
		session:      session,
		policy:       UnconstrainedPolicy(),
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       logger,
		hookErrorHandler: func(_ context.Context, _ TransitionHookPhase, err error, _ TransitionContext) error {
			return err
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	return w
}

// Policy returns the active transition policy.
func (w *ApplicationWorkflow) Policy() TransitionPolicy {
	return w.policy
}

// SetStatus sends change for app. An empty change.Status resends the
// current status so notes and screening edits stay well formed.
func (w *ApplicationWorkflow) SetStatus(ctx context.Context, app *JobApplication, change StatusChange, opts ...TransitionOption) (*JobApplication, error) {
	if app == nil || app.ID == "" {
		return nil, cloneWith(ErrInvalidTransition, map[string]any{"reason": "application is required"})
	}

	token, actor, err := w.recruiter()
	if err != nil {
		return nil, err
	}

	from := app.EffectiveStatus()
	target := change.Status
	if target == "" {
		target = from
	}

	update := ApplicationStatusUpdate{
		Status:         target,
		RecruiterNotes: change.RecruiterNotes,
		AIScore:        change.AIScore,
		AIReason:       change.AIReason,
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}

	options := w.buildTransitionOptions(opts...)

	if from != target && !options.force && !w.policy.Allowed(from, target) {
		return nil, cloneWith(ErrInvalidTransition, map[string]any{
			"from":   from,
			"to":     target,
			"policy": w.policy.Name(),
		})
	}

	tc := TransitionContext{
		Actor:       actor,
		Application: app,
		From:        from,
		To:          target,
		Meta:        options.cloneMetadata(),
	}

	if err := w.runHooks(ctx, options.beforeHooks, tc, HookPhaseBefore); err != nil {
		return nil, err
	}

	updated, err := w.backend.UpdateApplicationStatus(ctx, token, app.ID, update)
	if err != nil {
		w.logger.Error("application %s status update failed: %v", app.ID, err)
		return nil, err
	}

	result := w.merge(*app, updated, update)

	if err := w.runHooks(ctx, options.afterHooks, tc, HookPhaseAfter); err != nil {
		return nil, err
	}

	if from != target {
		recordActivity(ctx, w.activitySink, w.logger, w.now, ActivityEvent{
			EventType:  ActivityEventApplicationStatusChanged,
			Actor:      actor,
			UserID:     app.SeekerID,
			FromStatus: string(from),
			ToStatus:   string(target),
			Metadata:   w.transitionMetadata(app, tc.Meta),
		})
	}

	return &result, nil
}

// UpdateNotes saves recruiter notes when they differ from the last known
// server value. It returns the unchanged application and false otherwise.
func (w *ApplicationWorkflow) UpdateNotes(ctx context.Context, app *JobApplication, notes string) (*JobApplication, bool, error) {
	if app == nil {
		return nil, false, cloneWith(ErrInvalidTransition, map[string]any{"reason": "application is required"})
	}
	if notes == app.RecruiterNotes {
		out := *app
		return &out, false, nil
	}

	updated, err := w.SetStatus(ctx, app, StatusChange{RecruiterNotes: &notes})
	if err != nil {
		return nil, false, err
	}

	actor := ActorRef{Type: string(RoleRecruiter)}
	if identity, ok := w.session.Get().Identity(); ok {
		actor = actorFromIdentity(&identity)
	}
	recordActivity(ctx, w.activitySink, w.logger, w.now, ActivityEvent{
		EventType: ActivityEventApplicationNotesChanged,
		Actor:     actor,
		UserID:    app.SeekerID,
		ToStatus:  string(updated.EffectiveStatus()),
		Metadata:  map[string]any{"application_id": app.ID},
	})

	return updated, true, nil
}

func (w *ApplicationWorkflow) recruiter() (string, ActorRef, error) {
	state := w.session.Get()
	if !state.IsAuthenticated() {
		return "", ActorRef{}, cloneWith(ErrUnauthenticated, map[string]any{"operation": "application.status"})
	}

	identity := state.Session.Identity
	switch identity.Role {
	case RoleRecruiter:
		return state.Session.Token, actorFromIdentity(&identity), nil
	case RoleJobSeeker:
		return "", ActorRef{}, cloneWith(ErrRoleMismatch, map[string]any{
			"operation": "application.status",
			"role":      identity.Role,
		})
	default:
		return "", ActorRef{}, cloneWith(ErrRoleMismatch, map[string]any{"role": identity.Role})
	}
}

func (w *ApplicationWorkflow) merge(app JobApplication, updated *JobApplication, sent ApplicationStatusUpdate) JobApplication {
	if updated != nil {
		if updated.Status == "" {
			updated.Status = sent.Status
		}
		if updated.ID == "" {
			updated.ID = app.ID
		}
		return *updated
	}

	app.Status = sent.Status
	if sent.RecruiterNotes != nil {
		app.RecruiterNotes = *sent.RecruiterNotes
	}
	if sent.AIScore != nil {
		score := *sent.AIScore
		app.AIScore = &score
	}
	if sent.AIReason != nil {
		app.AIReason = *sent.AIReason
	}
	return app
}

func (w *ApplicationWorkflow) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if w.hookErrorHandler == nil {
				return err
			}
			return w.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func (w *ApplicationWorkflow) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

func (w *ApplicationWorkflow) transitionMetadata(app *JobApplication, meta TransitionMetadata) map[string]any {
	result := map[string]any{
		"application_id": app.ID,
		"job_id":         app.JobID,
		"policy":         w.policy.Name(),
	}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}

// HookFailure wraps a hook error with the transition it interrupted.
func HookFailure(phase TransitionHookPhase, err error, tc TransitionContext) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, fmt.Sprintf("%s hook failed", phase)).
		WithMetadata(map[string]any{
			"application_id": applicationID(tc.Application),
			"from":           tc.From,
			"to":             tc.To,
			"reason":         tc.Meta.Reason,
		})
}

func applicationID(app *JobApplication) string {
	if app == nil {
		return ""
	}
	return app.ID
}

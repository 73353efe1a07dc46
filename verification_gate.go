package auth

import (
	"bufio"
	"bytes"
	"context"
	"mime"
	"path/filepath"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ReasonVerificationRequired = "verification required"
	ReasonVerificationPending  = "verification pending"
	ReasonRecruitersOnly       = "only recruiters can publish jobs"
)

const pdfContentType = "application/pdf"

var pdfMagic = []byte("%PDF-")

// PublishDecision is whether the publish control is enabled, and if not,
// the one reason shown next to it.
type PublishDecision struct {
	CanPublish bool
	Reason     string
	Status     VerificationStatus
}

// VerificationGate derives a recruiter's publish capability from the cached
// verification status. The backend enforces the same rule; the gate only
// saves a request that would be rejected.
type VerificationGate struct {
	session   SessionReader
	updater   IdentityUpdater
	backend   BackendAPI
	validator *FormValidator

	activitySink ActivitySink
	logger       Logger
	now          func() time.Time
}

// NewVerificationGate creates a gate. updater is the orchestrator, the only
// path through which the cached status changes.
func NewVerificationGate(session SessionReader, updater IdentityUpdater, backend BackendAPI) *VerificationGate {
	_, logger := ResolveLogger("auth.verification_gate", nil, nil)
	return &VerificationGate{
		session:      session,
		updater:      updater,
		backend:      backend,
		validator:    NewFormValidator(""),
		activitySink: noopActivitySink{},
		logger:       logger,
		now:          time.Now,
	}
}

func (g *VerificationGate) WithLogger(logger Logger) *VerificationGate {
	if logger != nil {
		g.logger = logger
	}
	return g
}

func (g *VerificationGate) WithActivitySink(sink ActivitySink) *VerificationGate {
	g.activitySink = normalizeActivitySink(sink)
	return g
}

func (g *VerificationGate) WithValidator(validator *FormValidator) *VerificationGate {
	if validator != nil {
		g.validator = validator
	}
	return g
}

// Evaluate is true only for verified recruiters.
func (g *VerificationGate) Evaluate(identity Identity) PublishDecision {
	status := identity.EffectiveVerification()
	if identity.Role != RoleRecruiter {
		return PublishDecision{Reason: ReasonRecruitersOnly, Status: status}
	}

	switch status {
	case VerificationVerified:
		return PublishDecision{CanPublish: true, Status: status}
	case VerificationPending:
		return PublishDecision{Reason: ReasonVerificationPending, Status: status}
	default:
		return PublishDecision{Reason: ReasonVerificationRequired, Status: VerificationUnverified}
	}
}

// Current evaluates the present session.
func (g *VerificationGate) Current() PublishDecision {
	identity, ok := g.session.Get().Identity()
	if !ok {
		return PublishDecision{Reason: ReasonRecruitersOnly, Status: VerificationUnverified}
	}
	return g.Evaluate(identity)
}

// CanSubmitDocument is true only for unverified recruiters. Submission is
// one way; a pending recruiter cannot resubmit.
func (g *VerificationGate) CanSubmitDocument(identity Identity) bool {
	return identity.Role == RoleRecruiter && identity.EffectiveVerification() == VerificationUnverified
}

// SubmitLegalDocument uploads a PDF and moves the cached status to pending.
func (g *VerificationGate) SubmitLegalDocument(ctx context.Context, file Upload) (*Session, error) {
	state := g.session.Get()
	identity, ok := state.Identity()
	if !ok {
		return nil, cloneWith(ErrUnauthenticated, map[string]any{"operation": "verification.submit"})
	}

	if identity.Role != RoleRecruiter {
		return nil, cloneWith(ErrRoleMismatch, map[string]any{"operation": "verification.submit", "role": identity.Role})
	}

	if !g.CanSubmitDocument(identity) {
		base := ErrVerificationPending
		if identity.EffectiveVerification() == VerificationVerified {
			base = goerrors.New("company already verified", goerrors.CategoryConflict).
				WithTextCode(TextCodeConflict).
				WithCode(goerrors.CodeConflict)
		}
		return nil, cloneWith(base, map[string]any{"status": identity.EffectiveVerification()})
	}

	file, err := requirePDF(file)
	if err != nil {
		return nil, err
	}

	if err := g.backend.UploadLegalDocument(ctx, state.Session.Token, file); err != nil {
		g.logger.Error("legal document upload failed for %s: %v", identity.ID, err)
		return nil, err
	}

	pending := VerificationPending
	session, err := g.updater.UpdateIdentity(ctx, IdentityPatch{VerificationStatus: &pending})
	if err != nil {
		g.logger.Error("failed to mark %s verification pending: %v", identity.ID, err)
		return nil, err
	}

	recordActivity(ctx, g.activitySink, g.logger, g.now, ActivityEvent{
		EventType:  ActivityEventLegalDocumentSubmitted,
		Actor:      actorFromIdentity(&identity),
		UserID:     identity.ID,
		FromStatus: string(VerificationUnverified),
		ToStatus:   string(VerificationPending),
		Metadata:   map[string]any{"file_name": file.FileName},
	})

	return session, nil
}

// PublishJob creates a job. Blocked recruiters get a permission error and no
// request is sent.
func (g *VerificationGate) PublishJob(ctx context.Context, draft JobDraft) (*Job, error) {
	state := g.session.Get()
	identity, ok := state.Identity()
	if !ok {
		return nil, cloneWith(ErrUnauthenticated, map[string]any{"operation": "job.publish"})
	}

	decision := g.Evaluate(identity)
	if !decision.CanPublish {
		g.logger.Debug("publish blocked for %s: %s", identity.ID, decision.Reason)
		return nil, blockedError(decision)
	}

	if err := g.validator.ValidateJobDraft(draft); err != nil {
		return nil, err
	}

	job, err := g.backend.CreateJob(ctx, state.Session.Token, draft)
	if err != nil {
		g.logger.Error("publish job failed for %s: %v", identity.ID, err)
		return nil, err
	}
	return job, nil
}

func blockedError(decision PublishDecision) error {
	switch decision.Reason {
	case ReasonVerificationPending:
		return cloneWith(ErrVerificationPending, map[string]any{"reason": decision.Reason})
	case ReasonVerificationRequired:
		return cloneWith(ErrVerificationRequired, map[string]any{"reason": decision.Reason})
	default:
		return cloneWith(ErrRoleMismatch, map[string]any{"reason": decision.Reason})
	}
}

// requirePDF accepts a declared PDF whose content starts with the PDF
// signature. The returned upload replays the peeked bytes.
func requirePDF(file Upload) (Upload, error) {
	reject := func(reason string) (Upload, error) {
		return file, NewValidationError("please upload a PDF file", map[string]string{"legal_document": reason})
	}

	if file.Reader == nil {
		return reject("file is required")
	}

	declared := strings.EqualFold(filepath.Ext(file.FileName), ".pdf")
	if file.ContentType != "" {
		mediaType, _, err := mime.ParseMediaType(file.ContentType)
		if err != nil || mediaType != pdfContentType {
			return reject("must be a PDF")
		}
		declared = true
	}
	if !declared {
		return reject("must be a PDF")
	}

	buffered := bufio.NewReader(file.Reader)
	head, err := buffered.Peek(len(pdfMagic))
	if err != nil || !bytes.Equal(head, pdfMagic) {
		return reject("file content is not a PDF")
	}

	file.Reader = buffered
	if file.ContentType == "" {
		file.ContentType = pdfContentType
	}
	if file.FieldName == "" {
		file.FieldName = "legal_document"
	}
	return file, nil
}

package auth

import (
	"context"
	"strings"
	"time"
)

// SessionEnder ends the current session. AuthOrchestrator implements it.
type SessionEnder interface {
	Logout(ctx context.Context)
}

// ProfileService handles settings page edits for the present identity.
type ProfileService struct {
	session   SessionReader
	updater   IdentityUpdater
	ender     SessionEnder
	backend   BackendAPI
	validator *FormValidator

	activitySink ActivitySink
	logger       Logger
	now          func() time.Time
}

// NewProfileService creates a profile service. orchestrator is used both to
// merge the returned identity and to log out after account deletion.
func NewProfileService(orchestrator *AuthOrchestrator, backend BackendAPI) *ProfileService {
	return newProfileService(orchestrator.Session(), orchestrator, orchestrator, backend)
}

func newProfileService(session SessionReader, updater IdentityUpdater, ender SessionEnder, backend BackendAPI) *ProfileService {
	_, logger := ResolveLogger("auth.profile", nil, nil)
	return &ProfileService{
		session:      session,
		updater:      updater,
		ender:        ender,
		backend:      backend,
		validator:    NewFormValidator(""),
		activitySink: noopActivitySink{},
		logger:       logger,
		now:          time.Now,
	}
}

func (p *ProfileService) WithLogger(logger Logger) *ProfileService {
	if logger != nil {
		p.logger = logger
	}
	return p
}

func (p *ProfileService) WithValidator(validator *FormValidator) *ProfileService {
	if validator != nil {
		p.validator = validator
	}
	return p
}

func (p *ProfileService) WithActivitySink(sink ActivitySink) *ProfileService {
	p.activitySink = normalizeActivitySink(sink)
	return p
}

// Update validates the form for the identity's role, saves it and merges
// the canonical result into the session without touching the token.
func (p *ProfileService) Update(ctx context.Context, update ProfileUpdate) (*Session, error) {
	token, identity, err := requireSession(p.session, "profile.update")
	if err != nil {
		return nil, err
	}

	if err := p.validator.ValidateProfile(identity.Role, update); err != nil {
		return nil, err
	}

	fresh, err := p.backend.UpdateProfile(ctx, token, update)
	if err != nil {
		p.logger.Error("profile update failed for %s: %v", identity.ID, err)
		return nil, err
	}

	patch := IdentityPatch{}
	if fresh != nil {
		patch = PatchFromIdentity(*fresh)
	} else {
		if update.FullName != "" {
			patch.FullName = &update.FullName
		}
		if update.CompanyName != "" {
			patch.CompanyName = &update.CompanyName
		}
	}

	return p.updater.UpdateIdentity(ctx, patch)
}

// UploadAvatar replaces the profile picture.
func (p *ProfileService) UploadAvatar(ctx context.Context, file Upload) error {
	token, identity, err := requireSession(p.session, "profile.avatar")
	if err != nil {
		return err
	}
	if file.Reader == nil {
		return NewValidationError("please choose an image", map[string]string{"avatar": "file is required"})
	}
	if file.ContentType != "" && !strings.HasPrefix(file.ContentType, "image/") {
		return NewValidationError("please choose an image", map[string]string{"avatar": "must be an image"})
	}
	if file.FieldName == "" {
		file.FieldName = "file"
	}

	if err := p.backend.UploadAvatar(ctx, token, file); err != nil {
		p.logger.Error("avatar upload failed for %s: %v", identity.ID, err)
		return err
	}
	return nil
}

// UploadResume replaces the seeker's résumé.
func (p *ProfileService) UploadResume(ctx context.Context, file Upload) error {
	token, identity, err := requireRole(p.session, RoleJobSeeker, "profile.resume")
	if err != nil {
		return err
	}
	if file.Reader == nil {
		return NewValidationError("please choose a file", map[string]string{"resume": "file is required"})
	}
	if file.FieldName == "" {
		file.FieldName = "file"
	}

	if err := p.backend.UploadResume(ctx, token, file); err != nil {
		p.logger.Error("resume upload failed for %s: %v", identity.ID, err)
		return err
	}
	return nil
}

// DeleteAccount removes the account after password re-entry, then logs
// out. On failure the session is left as it was.
func (p *ProfileService) DeleteAccount(ctx context.Context, password string) error {
	token, identity, err := requireSession(p.session, "profile.delete")
	if err != nil {
		return err
	}

	if strings.TrimSpace(password) == "" {
		return NewValidationError("please enter your password to confirm", map[string]string{"password": "cannot be blank"})
	}

	if err := p.backend.DeleteProfile(ctx, token, password); err != nil {
		p.logger.Error("account deletion failed for %s: %v", identity.ID, err)
		if IsAuthError(err) {
			return cloneWith(ErrInvalidCredentials, map[string]any{"operation": "profile.delete"})
		}
		return err
	}

	recordActivity(ctx, p.activitySink, p.logger, p.now, ActivityEvent{
		EventType: ActivityEventAccountDeleted,
		Actor:     actorFromIdentity(&identity),
		UserID:    identity.ID,
	})

	p.ender.Logout(ctx)
	return nil
}

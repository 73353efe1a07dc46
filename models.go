package auth

import (
	"time"
)

// VerificationStatus tracks a recruiter's company verification.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
)

// IsValid checks the status is one of the three known values
func (v VerificationStatus) IsValid() bool {
	switch v {
	case VerificationUnverified, VerificationPending, VerificationVerified:
		return true
	default:
		return false
	}
}

// rank orders statuses along unverified -> pending -> verified.
func (v VerificationStatus) rank() int {
	switch v {
	case VerificationPending:
		return 1
	case VerificationVerified:
		return 2
	default:
		return 0
	}
}

// Identity is the canonical authenticated user record.
type Identity struct {
	ID                 string             `json:"id"`
	Email              string             `json:"email"`
	Role               Role               `json:"role"`
	FullName           string             `json:"full_name,omitempty"`
	CompanyName        string             `json:"company_name,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status,omitempty"`
	LegalDocumentRef   string             `json:"legal_document_url,omitempty"`
}

// EffectiveVerification returns the verification status, treating an
// unset value as unverified.
func (i Identity) EffectiveVerification() VerificationStatus {
	if i.VerificationStatus == "" {
		return VerificationUnverified
	}
	return i.VerificationStatus
}

// DisplayName mirrors the dashboard greeting fallbacks.
func (i Identity) DisplayName() string {
	switch {
	case i.FullName != "":
		return i.FullName
	case i.CompanyName != "":
		return i.CompanyName
	}
	for idx := 0; idx < len(i.Email); idx++ {
		if i.Email[idx] == '@' {
			return i.Email[:idx]
		}
	}
	if i.Email != "" {
		return i.Email
	}
	return "User"
}

// IdentityPatch carries the identity fields that can change after account
// creation. Role, ID and email are fixed.
type IdentityPatch struct {
	FullName           *string
	CompanyName        *string
	VerificationStatus *VerificationStatus
	LegalDocumentRef   *string
}

// IsEmpty reports whether the patch changes nothing.
func (p IdentityPatch) IsEmpty() bool {
	return p.FullName == nil && p.CompanyName == nil &&
		p.VerificationStatus == nil && p.LegalDocumentRef == nil
}

// Apply returns a copy of identity with the patch merged in.
func (p IdentityPatch) Apply(identity Identity) Identity {
	if p.FullName != nil {
		identity.FullName = *p.FullName
	}
	if p.CompanyName != nil {
		identity.CompanyName = *p.CompanyName
	}
	if p.VerificationStatus != nil {
		identity.VerificationStatus = *p.VerificationStatus
	}
	if p.LegalDocumentRef != nil {
		identity.LegalDocumentRef = *p.LegalDocumentRef
	}
	return identity
}

// PatchFromIdentity builds a patch carrying every mutable field of identity.
func PatchFromIdentity(identity Identity) IdentityPatch {
	fullName := identity.FullName
	company := identity.CompanyName
	status := identity.VerificationStatus
	doc := identity.LegalDocumentRef
	patch := IdentityPatch{
		FullName:         &fullName,
		CompanyName:      &company,
		LegalDocumentRef: &doc,
	}
	if status != "" {
		patch.VerificationStatus = &status
	}
	return patch
}

// Session pairs a bearer token with a cached identity snapshot.
type Session struct {
	Token    string   `json:"token"`
	Identity Identity `json:"identity"`
}

// SessionStatus is the tri-state the store reports.
type SessionStatus int

const (
	SessionLoading SessionStatus = iota
	SessionAbsent
	SessionPresent
)

func (s SessionStatus) String() string {
	switch s {
	case SessionLoading:
		return "loading"
	case SessionAbsent:
		return "absent"
	case SessionPresent:
		return "present"
	default:
		return "unknown"
	}
}

// SessionState is what SessionStore.Get returns. Session is non nil only
// when Status is SessionPresent.
type SessionState struct {
	Status  SessionStatus
	Session *Session
}

// IsLoading reports whether hydration has not resolved yet.
func (s SessionState) IsLoading() bool { return s.Status == SessionLoading }

// IsAuthenticated reports whether a session is present.
func (s SessionState) IsAuthenticated() bool {
	return s.Status == SessionPresent && s.Session != nil
}

// Identity returns the cached identity when a session is present.
func (s SessionState) Identity() (Identity, bool) {
	if !s.IsAuthenticated() {
		return Identity{}, false
	}
	return s.Session.Identity, true
}

// PendingVerificationEmail is the result of a signup: the account exists
// but must be confirmed out of band.
type PendingVerificationEmail struct {
	Email string
}

// JobStatus is the publication state of a job.
type JobStatus string

const (
	JobStatusOpen   JobStatus = "open"
	JobStatusClosed JobStatus = "closed"
	JobStatusDraft  JobStatus = "draft"
)

// Job is the client cache of a backend job.
type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"desc,omitempty"`
	Location    string    `json:"location,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	OwnerID     string    `json:"recruiter_id,omitempty"`
	Status      JobStatus `json:"status,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// JobDraft is the recruiter's publish form.
type JobDraft struct {
	Title          string
	Description    string
	Location       string
	LocationType   string
	EmploymentType string
	SalaryMin      int
	SalaryMax      int
	Currency       string
	Skills         []string
	Deadline       *time.Time
}

// ApplyRequest is a seeker's application to a job.
type ApplyRequest struct {
	JobID       string `json:"job_id"`
	CoverLetter string `json:"cover_letter,omitempty"`
}

// OAuthProfileDetails finalizes a provider-authenticated account.
type OAuthProfileDetails struct {
	Role        Role   `json:"role"`
	FullName    string `json:"full_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

// ProfileUpdate is the settings form submitted to PUT /profile/me.
type ProfileUpdate struct {
	FullName        string `json:"full_name,omitempty"`
	Headline        string `json:"headline,omitempty"`
	Bio             string `json:"bio,omitempty"`
	Skills          string `json:"skills,omitempty"`
	YearsExperience string `json:"years_experience,omitempty"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	Location        string `json:"location,omitempty"`
	GithubURL       string `json:"github_url,omitempty"`
	LinkedInURL     string `json:"linked_in_url,omitempty"`
	PortfolioURL    string `json:"portfolio_url,omitempty"`
	CompanyName     string `json:"company_name,omitempty"`
	AboutCompany    string `json:"about_company,omitempty"`
	WebsiteURL      string `json:"website_url,omitempty"`
	Industry        string `json:"industry,omitempty"`
	CompanySize     string `json:"company_size,omitempty"`
	FoundedYear     string `json:"founded_year,omitempty"`
}

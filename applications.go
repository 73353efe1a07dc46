package auth

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultCountConcurrency bounds parallel applicant list fetches.
var DefaultCountConcurrency = 8

// SeekerApplications covers the job seeker's side of applications.
type SeekerApplications struct {
	session SessionReader
	backend BackendAPI
	logger  Logger

	mu      sync.Mutex
	owner   string
	applied map[string]JobApplication
	loaded  bool
}

// NewSeekerApplications creates the seeker's application cache.
func NewSeekerApplications(session SessionReader, backend BackendAPI) *SeekerApplications {
	_, logger := ResolveLogger("auth.seeker_applications", nil, nil)
	return &SeekerApplications{
		session: session,
		backend: backend,
		logger:  logger,
		applied: map[string]JobApplication{},
	}
}

func (a *SeekerApplications) WithLogger(logger Logger) *SeekerApplications {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Refresh loads the seeker's applications.
func (a *SeekerApplications) Refresh(ctx context.Context) ([]JobApplication, error) {
	token, identity, err := requireRole(a.session, RoleJobSeeker, "applications.mine")
	if err != nil {
		return nil, err
	}

	apps, err := a.backend.ListMyApplications(ctx, token)
	if err != nil {
		a.logger.Error("failed to list applications: %v", err)
		return nil, err
	}

	a.mu.Lock()
	if a.syncOwnerLocked() != identity.ID {
		a.mu.Unlock()
		return nil, sessionChanged("applications.mine")
	}
	a.applied = make(map[string]JobApplication, len(apps))
	for _, app := range apps {
		a.applied[app.JobID] = app
	}
	a.loaded = true
	a.mu.Unlock()

	return apps, nil
}

// HasApplied reports whether the cache holds an application for jobID.
func (a *SeekerApplications) HasApplied(jobID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.syncOwnerLocked()
	_, ok := a.applied[jobID]
	return ok
}

// Apply submits an application. Only job seekers may apply, and a job that
// already has an application is refused before any request.
func (a *SeekerApplications) Apply(ctx context.Context, req ApplyRequest) (*JobApplication, error) {
	if req.JobID == "" {
		return nil, NewValidationError("job is required", map[string]string{"job_id": "cannot be blank"})
	}

	token, identity, err := requireRole(a.session, RoleJobSeeker, "applications.apply")
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.syncOwnerLocked()
	loaded := a.loaded
	a.mu.Unlock()
	if !loaded {
		if _, err := a.Refresh(ctx); err != nil {
			a.logger.Warn("could not load applications before applying: %v", err)
		}
	}

	if a.HasApplied(req.JobID) {
		return nil, cloneWith(ErrDuplicateApplication, map[string]any{"job_id": req.JobID})
	}

	app, err := a.backend.Apply(ctx, token, req)
	if err != nil {
		if IsConflictError(err) {
			return nil, cloneWith(ErrDuplicateApplication, map[string]any{"job_id": req.JobID, "source": "backend"})
		}
		a.logger.Error("apply to %s failed for %s: %v", req.JobID, identity.ID, err)
		return nil, err
	}

	if app.Status == "" {
		app.Status = ApplicationApplied
	}
	if app.JobID == "" {
		app.JobID = req.JobID
	}

	a.mu.Lock()
	if a.syncOwnerLocked() == identity.ID {
		a.applied[app.JobID] = *app
	}
	a.mu.Unlock()

	return app, nil
}

// Reset drops the cache, used when the session ends.
func (a *SeekerApplications) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = map[string]JobApplication{}
	a.loaded = false
}

func (a *SeekerApplications) syncOwnerLocked() string {
	owner := currentOwner(a.session)
	if owner != a.owner {
		a.owner = owner
		a.applied = map[string]JobApplication{}
		a.loaded = false
	}
	return owner
}

// Applicants covers the recruiter's view of who applied.
type Applicants struct {
	session     SessionReader
	backend     BackendAPI
	logger      Logger
	concurrency int
}

// NewApplicants creates the recruiter applicant reader.
func NewApplicants(session SessionReader, backend BackendAPI) *Applicants {
	_, logger := ResolveLogger("auth.applicants", nil, nil)
	return &Applicants{
		session:     session,
		backend:     backend,
		logger:      logger,
		concurrency: DefaultCountConcurrency,
	}
}

func (a *Applicants) WithLogger(logger Logger) *Applicants {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithConcurrency bounds parallel fetches in Counts.
func (a *Applicants) WithConcurrency(n int) *Applicants {
	if n > 0 {
		a.concurrency = n
	}
	return a
}

// List returns the applications for one job.
func (a *Applicants) List(ctx context.Context, jobID string) ([]JobApplication, error) {
	token, _, err := requireRole(a.session, RoleRecruiter, "applications.job")
	if err != nil {
		return nil, err
	}
	return a.backend.ListJobApplications(ctx, token, jobID)
}

// Counts fetches applicant counts for every job in parallel. Each job
// writes its own slot; a failed fetch counts as zero.
func (a *Applicants) Counts(ctx context.Context, jobIDs []string) (map[string]int, error) {
	token, _, err := requireRole(a.session, RoleRecruiter, "applications.counts")
	if err != nil {
		return nil, err
	}

	counts := make([]int, len(jobIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, jobID := range jobIDs {
		i, jobID := i, jobID
		g.Go(func() error {
			apps, err := a.backend.ListJobApplications(gctx, token, jobID)
			if err != nil {
				a.logger.Warn("applicant count for job %s failed, using 0: %v", jobID, err)
				return nil
			}
			counts[i] = len(apps)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]int, len(jobIDs))
	for i, jobID := range jobIDs {
		out[jobID] = counts[i]
	}
	return out, nil
}

package auth

import (
	"context"
	"sync"
)

// SavedJobs is the seeker's saved jobs cache. It never holds the same job
// twice, whatever the backend returns, and belongs to one signed in user:
// a different or absent identity empties it.
type SavedJobs struct {
	session SessionReader
	backend BackendAPI
	logger  Logger

	mu    sync.Mutex
	owner string
	order []string
	jobs  map[string]Job
}

// NewSavedJobs creates an empty cache.
func NewSavedJobs(session SessionReader, backend BackendAPI) *SavedJobs {
	_, logger := ResolveLogger("auth.saved_jobs", nil, nil)
	return &SavedJobs{
		session: session,
		backend: backend,
		logger:  logger,
		jobs:    map[string]Job{},
	}
}

func (s *SavedJobs) WithLogger(logger Logger) *SavedJobs {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Refresh replaces the cache with the backend list.
func (s *SavedJobs) Refresh(ctx context.Context) ([]Job, error) {
	token, identity, err := requireRole(s.session, RoleJobSeeker, "saved_jobs.list")
	if err != nil {
		return nil, err
	}

	jobs, err := s.backend.ListSavedJobs(ctx, token)
	if err != nil {
		s.logger.Error("failed to list saved jobs: %v", err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncOwnerLocked() != identity.ID {
		return nil, sessionChanged("saved_jobs.list")
	}
	s.order = s.order[:0]
	s.jobs = make(map[string]Job, len(jobs))
	for _, job := range jobs {
		s.addLocked(job)
	}
	return s.listLocked(), nil
}

// List returns the cached saved jobs in the order they were saved.
func (s *SavedJobs) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncOwnerLocked()
	return s.listLocked()
}

// IsSaved reports whether jobID is in the cache.
func (s *SavedJobs) IsSaved(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncOwnerLocked()
	_, ok := s.jobs[jobID]
	return ok
}

// Toggle saves an unsaved job or unsaves a saved one and returns the new
// saved state. Toggling twice restores the original state.
func (s *SavedJobs) Toggle(ctx context.Context, job Job) (bool, error) {
	if job.ID == "" {
		return false, NewValidationError("job is required", map[string]string{"job_id": "cannot be blank"})
	}

	token, identity, err := requireRole(s.session, RoleJobSeeker, "saved_jobs.toggle")
	if err != nil {
		return false, err
	}

	if s.IsSaved(job.ID) {
		if err := s.backend.UnsaveJob(ctx, token, job.ID); err != nil {
			s.logger.Error("failed to unsave job %s: %v", job.ID, err)
			return true, err
		}
		s.mu.Lock()
		if s.syncOwnerLocked() == identity.ID {
			s.removeLocked(job.ID)
		}
		s.mu.Unlock()
		return false, nil
	}

	if err := s.backend.SaveJob(ctx, token, job.ID); err != nil {
		if !IsConflictError(err) {
			s.logger.Error("failed to save job %s: %v", job.ID, err)
			return false, err
		}
		s.logger.Debug("job %s already saved at the backend", job.ID)
	}

	s.mu.Lock()
	if s.syncOwnerLocked() == identity.ID {
		s.addLocked(job)
	}
	s.mu.Unlock()
	return true, nil
}

// Reset drops the cache, used when the session ends.
func (s *SavedJobs) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.jobs = map[string]Job{}
}

// syncOwnerLocked empties the cache when the signed in user differs from
// the one it was filled for, and returns the current user.
func (s *SavedJobs) syncOwnerLocked() string {
	owner := currentOwner(s.session)
	if owner != s.owner {
		s.owner = owner
		s.order = nil
		s.jobs = map[string]Job{}
	}
	return owner
}

func (s *SavedJobs) addLocked(job Job) {
	if job.ID == "" {
		return
	}
	if _, ok := s.jobs[job.ID]; !ok {
		s.order = append(s.order, job.ID)
	}
	s.jobs[job.ID] = job
}

func (s *SavedJobs) removeLocked(jobID string) {
	if _, ok := s.jobs[jobID]; !ok {
		return
	}
	delete(s.jobs, jobID)
	for i, id := range s.order {
		if id == jobID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *SavedJobs) listLocked() []Job {
	out := make([]Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id])
	}
	return out
}

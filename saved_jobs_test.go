package auth_test

import (
	"context"
	"testing"

	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func jobIDs(jobs []auth.Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.ID)
	}
	return out
}

func TestSavedJobsRefreshDedupes(t *testing.T) {
	backend := &MockBackendAPI{}
	saved := auth.NewSavedJobs(presentSession(t, seekerIdentity()), backend).WithLogger(nopLogger{})

	backend.On("ListSavedJobs", mock.Anything, "tok-seeker-1").Return([]auth.Job{
		{ID: "a", Title: "first"}, {ID: "b"}, {ID: "a", Title: "again"}, {ID: ""},
	}, nil)

	jobs, err := saved.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, jobIDs(jobs))
	assert.Equal(t, "again", jobs[0].Title)
}

func TestSavedJobsToggleRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := &MockBackendAPI{}
	saved := auth.NewSavedJobs(presentSession(t, seekerIdentity()), backend).WithLogger(nopLogger{})
	job := auth.Job{ID: "job-9", Title: "Designer"}

	backend.On("SaveJob", mock.Anything, "tok-seeker-1", "job-9").Return(nil).Once()
	backend.On("UnsaveJob", mock.Anything, "tok-seeker-1", "job-9").Return(nil).Once()

	on, err := saved.Toggle(ctx, job)
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, saved.IsSaved("job-9"))

	off, err := saved.Toggle(ctx, job)
	require.NoError(t, err)
	assert.False(t, off)
	assert.Empty(t, saved.List())
	backend.AssertExpectations(t)
}

func TestSavedJobsToggleAlreadySavedAtBackend(t *testing.T) {
	backend := &MockBackendAPI{}
	saved := auth.NewSavedJobs(presentSession(t, seekerIdentity()), backend).WithLogger(nopLogger{})
	backend.On("SaveJob", mock.Anything, mock.Anything, "job-1").Return(auth.NewBackendError(409, "", "jobs.save"))

	on, err := saved.Toggle(context.Background(), auth.Job{ID: "job-1"})
	require.NoError(t, err)
	assert.True(t, on)
	assert.Len(t, saved.List(), 1)
}

func TestSavedJobsFailuresLeaveCache(t *testing.T) {
	ctx := context.Background()
	backend := &MockBackendAPI{}
	saved := auth.NewSavedJobs(presentSession(t, seekerIdentity()), backend).WithLogger(nopLogger{})
	backend.On("SaveJob", mock.Anything, mock.Anything, "job-1").Return(auth.NewBackendError(500, "", "jobs.save"))

	on, err := saved.Toggle(ctx, auth.Job{ID: "job-1"})
	require.Error(t, err)
	assert.False(t, on)
	assert.False(t, saved.IsSaved("job-1"))

	_, err = saved.Toggle(ctx, auth.Job{})
	assert.True(t, auth.IsValidationError(err))
}

func TestSavedJobsRecruiterBlocked(t *testing.T) {
	backend := &MockBackendAPI{}
	saved := auth.NewSavedJobs(presentSession(t, recruiterIdentity(auth.VerificationVerified)), backend).WithLogger(nopLogger{})

	_, err := saved.Toggle(context.Background(), auth.Job{ID: "job-1"})
	assert.True(t, auth.IsPermissionError(err))
	_, err = saved.Refresh(context.Background())
	assert.True(t, auth.IsPermissionError(err))
	backend.AssertNotCalled(t, "SaveJob", mock.Anything, mock.Anything, mock.Anything)

	saved.Reset()
	assert.Empty(t, saved.List())
}

func TestSavedJobsBelongToTheSignedInUser(t *testing.T) {
	ctx := context.Background()
	session := presentSession(t, seekerIdentity())
	backend := &MockBackendAPI{}
	saved := auth.NewSavedJobs(session, backend).WithLogger(nopLogger{})

	backend.On("SaveJob", mock.Anything, "tok-seeker-1", "job-9").Return(nil).Once()
	_, err := saved.Toggle(ctx, auth.Job{ID: "job-9"})
	require.NoError(t, err)
	require.True(t, saved.IsSaved("job-9"))

	require.NoError(t, session.Clear(ctx))
	assert.False(t, saved.IsSaved("job-9"))
	assert.Empty(t, saved.List())

	other := seekerIdentity()
	other.ID = "seeker-2"
	require.NoError(t, session.Set(ctx, "tok-seeker-2", other))
	assert.False(t, saved.IsSaved("job-9"))

	backend.On("SaveJob", mock.Anything, "tok-seeker-2", "job-9").Return(nil).Once()
	on, err := saved.Toggle(ctx, auth.Job{ID: "job-9"})
	require.NoError(t, err)
	assert.True(t, on)
	backend.AssertExpectations(t)
}

func TestSavedJobsRefreshAcrossSessionChange(t *testing.T) {
	ctx := context.Background()
	session := presentSession(t, seekerIdentity())
	backend := &MockBackendAPI{}
	saved := auth.NewSavedJobs(session, backend).WithLogger(nopLogger{})

	other := seekerIdentity()
	other.ID = "seeker-2"
	backend.On("ListSavedJobs", mock.Anything, "tok-seeker-1").
		Run(func(mock.Arguments) {
			require.NoError(t, session.Set(ctx, "tok-seeker-2", other))
		}).
		Return([]auth.Job{{ID: "job-1"}}, nil).Once()

	_, err := saved.Refresh(ctx)
	assert.True(t, auth.IsAuthError(err))
	assert.Empty(t, saved.List())
}

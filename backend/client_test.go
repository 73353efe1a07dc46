package backend_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/goliatone/go-marketplace-auth/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newClient(t *testing.T, mux *http.ServeMux) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return backend.New(backend.Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}).WithLogger(nopLogger{})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get(backend.RequestIDHeader))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret-pass" {
			writeJSON(w, http.StatusUnauthorized, `{"detail":"Incorrect email or password"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"access_token":"tok-1","token_type":"bearer"}`)
	})
	client := newClient(t, mux)

	token, err := client.Login(context.Background(), "sam@example.com", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	_, err = client.Login(context.Background(), "sam@example.com", "nope")
	require.Error(t, err)
	assert.True(t, auth.IsAuthError(err))
	assert.Equal(t, "Incorrect email or password", auth.UserMessage(err))
}

func TestErrorDetailShapes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","deadline"],"msg":"deadline must be in the future"}]}`)
	})
	mux.HandleFunc("/api/v1/saved-jobs/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, `{"message":"already saved"}`)
	})
	mux.HandleFunc("/api/v1/profile/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"u1","role":"admin"}`)
	})
	client := newClient(t, mux)
	ctx := context.Background()

	_, err := client.CreateJob(ctx, "tok", auth.JobDraft{Title: "x"})
	assert.True(t, auth.IsValidationError(err))
	assert.Equal(t, "deadline must be in the future", auth.UserMessage(err))

	err = client.SaveJob(ctx, "tok", "job-1")
	assert.True(t, auth.IsConflictError(err))
	assert.Equal(t, "already saved", auth.UserMessage(err))

	_, err = client.FetchProfile(ctx, "tok")
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeBackend), "malformed profile is a backend error")
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := backend.New(backend.Config{BaseURL: url, Timeout: time.Second}).WithLogger(nopLogger{})
	_, err := client.FetchProfile(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, auth.IsNetworkError(err))
}

func TestFetchProfileSendsBearer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/profile/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeJSON(w, http.StatusUnauthorized, `{"detail":"Could not validate credentials"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"id":"r1","email":"boss@example.com","role":"recruiter","profile":{"company_name":"Acme","legal_document_url":"docs/a.pdf"}}`)
	})
	client := newClient(t, mux)

	identity, err := client.FetchProfile(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", identity.CompanyName)
	assert.Equal(t, auth.VerificationPending, identity.VerificationStatus)

	_, err = client.FetchProfile(context.Background(), "other")
	assert.True(t, auth.IsTokenExpiredError(err))
}

func TestCreateJobPayload(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusCreated, `{"id":"job-1","title":"Engineer","desc":"Build","recruiter_id":"r1","status":"open","created_at":"2024-05-01T10:00:00Z"}`)
	})
	client := newClient(t, mux)

	job, err := client.CreateJob(context.Background(), "tok", auth.JobDraft{
		Title:        "Engineer",
		Description:  "Build",
		Location:     "Addis Ababa",
		LocationType: "Remote",
		SalaryMax:    5000,
	})
	require.NoError(t, err)

	assert.Equal(t, "Build", got["desc"])
	assert.Equal(t, true, got["is_remote"])
	assert.Nil(t, got["salary_min"])
	assert.Equal(t, float64(5000), got["salary_max"])
	assert.Equal(t, "USD", got["currency"])
	assert.Equal(t, []any{}, got["requirements"])
	assert.Nil(t, got["deadline"])
	assert.Equal(t, "open", got["status"])

	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, "r1", job.OwnerID)
	assert.Equal(t, auth.JobStatusOpen, job.Status)
	assert.Equal(t, 2024, job.CreatedAt.Year())
}

func TestListEnvelopes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/saved-jobs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data":[{"id":"s1","job":{"id":"job-1","title":"A"}},{"id":"job-2","title":"B"}]}`)
	})
	mux.HandleFunc("/api/v1/applications/job/job-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":"a1","job_id":"job-1","seeker_id":"u1","status":"reviewed","ai_score":0.75},{"id":"a2","job":{"id":"job-1"},"user_id":"u2"}]`)
	})
	client := newClient(t, mux)
	ctx := context.Background()

	jobs, err := client.ListSavedJobs(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-1", jobs[0].ID)
	assert.Equal(t, "job-2", jobs[1].ID)

	apps, err := client.ListJobApplications(ctx, "tok", "job-1")
	require.NoError(t, err)
	require.Len(t, apps, 2)
	require.NotNil(t, apps[0].AIScore)
	assert.Equal(t, 0.75, *apps[0].AIScore)
	assert.Equal(t, auth.ApplicationReviewed, apps[0].Status)
	assert.Equal(t, "job-1", apps[1].JobID)
	assert.Equal(t, "u2", apps[1].SeekerID)
	assert.Equal(t, auth.ApplicationApplied, apps[1].EffectiveStatus())
}

func TestUpdateApplicationStatus(t *testing.T) {
	var sent map[string]any
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/applications/app-1/status", func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		writeJSON(w, http.StatusOK, `{"message":"updated"}`)
	})
	client := newClient(t, mux)
	ctx := context.Background()

	_, err := client.UpdateApplicationStatus(ctx, "tok", "app-1", auth.ApplicationStatusUpdate{})
	assert.True(t, auth.HasTextCode(err, auth.TextCodeMissingStatus))
	assert.Equal(t, 0, calls)

	notes := "strong"
	app, err := client.UpdateApplicationStatus(ctx, "tok", "app-1", auth.ApplicationStatusUpdate{
		Status:         auth.ApplicationInterview,
		RecruiterNotes: &notes,
	})
	require.NoError(t, err)
	assert.Nil(t, app, "acknowledgement without a record")
	assert.Equal(t, "interview", sent["status"])
	assert.Equal(t, "strong", sent["recruiter_notes"])
	_, hasScore := sent["ai_score"]
	assert.False(t, hasScore)
}

func TestUpdateProfileAcknowledgement(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/profile/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	client := newClient(t, mux)

	identity, err := client.UpdateProfile(context.Background(), "tok", auth.ProfileUpdate{CompanyName: "Acme"})
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestUploadLegalDocumentIsMultipart(t *testing.T) {
	var field, name, content string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/profile/me/legal-document", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		for key, files := range r.MultipartForm.File {
			field = key
			name = files[0].Filename
			f, err := files[0].Open()
			require.NoError(t, err)
			raw, _ := io.ReadAll(f)
			content = string(raw)
		}
		writeJSON(w, http.StatusOK, `{"ok":true}`)
	})
	client := newClient(t, mux)

	err := client.UploadLegalDocument(context.Background(), "tok", auth.Upload{
		FieldName:   "legal_document",
		FileName:    "license.pdf",
		ContentType: "application/pdf",
		Reader:      strings.NewReader("%PDF-1.4"),
	})
	require.NoError(t, err)
	assert.Equal(t, "legal_document", field)
	assert.Equal(t, "license.pdf", name)
	assert.Equal(t, "%PDF-1.4", content)
}

func TestIDsAreEscapedIntoPaths(t *testing.T) {
	var paths []string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.EscapedPath())
		writeJSON(w, http.StatusOK, `{"message":"ok"}`)
	})
	client := newClient(t, mux)
	ctx := context.Background()
	id := "job 1/x?y"

	require.NoError(t, client.SaveJob(ctx, "tok", id))
	require.NoError(t, client.UnsaveJob(ctx, "tok", id))
	_, err := client.ListJobApplications(ctx, "tok", id)
	require.NoError(t, err)
	_, err = client.UpdateApplicationStatus(ctx, "tok", id, auth.ApplicationStatusUpdate{Status: auth.ApplicationHired})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"POST /api/v1/saved-jobs/job%201%2Fx%3Fy",
		"DELETE /api/v1/saved-jobs/job%201%2Fx%3Fy",
		"GET /api/v1/applications/job/job%201%2Fx%3Fy",
		"PUT /api/v1/applications/job%201%2Fx%3Fy/status",
	}, paths)
}

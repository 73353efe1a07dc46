package backend

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/tidwall/gjson"
)

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	r := c.request(ctx, "").SetBody(map[string]string{
		"email":    email,
		"password": password,
	})

	resp, err := c.send("auth.login", r, http.MethodPost, "/auth/login")
	if err != nil {
		return "", err
	}

	token := gjson.GetBytes(resp.Body(), "access_token").String()
	if token == "" {
		return "", malformed("auth.login", fmt.Errorf("missing access_token"))
	}
	return token, nil
}

// SignupJobSeeker posts the job seeker multipart form.
func (c *Client) SignupJobSeeker(ctx context.Context, req auth.SignupRequest) error {
	fields := map[string]string{
		"email":    req.Email,
		"password": req.Password,
	}
	if s := req.JobSeeker; s != nil {
		fields["full_name"] = s.FullName
		fields["headline"] = s.Headline
		fields["bio"] = s.Bio
		fields["skills"] = s.Skills
		fields["years_experience"] = strconv.Itoa(s.YearsExperience)
		fields["phone_number"] = s.PhoneNumber
		fields["linked_in_url"] = s.LinkedInURL
		fields["portfolio_url"] = s.PortfolioURL
	}

	r := c.request(ctx, "").SetMultipartFormData(fields)
	attach(r, "resume", req.Resume)
	attach(r, "profile_picture", req.ProfilePicture)

	_, err := c.send("auth.signup.job_seeker", r, http.MethodPost, "/auth/signup/job_seeker")
	return err
}

// SignupRecruiter posts the recruiter multipart form.
func (c *Client) SignupRecruiter(ctx context.Context, req auth.SignupRequest) error {
	fields := map[string]string{
		"email":    req.Email,
		"password": req.Password,
	}
	if s := req.Recruiter; s != nil {
		fields["company_name"] = s.CompanyName
		fields["industry"] = s.Industry
		fields["company_size"] = s.CompanySize
		fields["website_url"] = s.WebsiteURL
		fields["location"] = s.Location
		fields["about_company"] = s.AboutCompany
	}

	r := c.request(ctx, "").SetMultipartFormData(fields)
	attach(r, "profile_picture", req.ProfilePicture)

	_, err := c.send("auth.signup.recruiter", r, http.MethodPost, "/auth/signup/recruiter")
	return err
}

// CompleteOAuthProfile finalizes the role and profile of a provider account.
func (c *Client) CompleteOAuthProfile(ctx context.Context, token string, details auth.OAuthProfileDetails) error {
	r := c.request(ctx, token).SetBody(details)
	_, err := c.send("auth.oauth.complete_profile", r, http.MethodPost, "/auth/oauth/complete-profile")
	return err
}

// FetchProfile returns the canonical identity of token's owner.
func (c *Client) FetchProfile(ctx context.Context, token string) (*auth.Identity, error) {
	resp, err := c.send("profile.get", c.request(ctx, token), http.MethodGet, "/profile/me")
	if err != nil {
		return nil, err
	}
	return c.decodeProfile("profile.get", resp.Body())
}

// UpdateProfile saves the settings form and returns the canonical identity.
func (c *Client) UpdateProfile(ctx context.Context, token string, update auth.ProfileUpdate) (*auth.Identity, error) {
	resp, err := c.send("profile.update", c.request(ctx, token).SetBody(update), http.MethodPut, "/profile/me")
	if err != nil {
		return nil, err
	}

	// some deployments answer 204 or a bare acknowledgement
	body := resp.Body()
	if len(body) == 0 || (!gjson.GetBytes(body, "role").Exists() && !gjson.GetBytes(body, "profile").Exists()) {
		return nil, nil
	}
	return c.decodeProfile("profile.update", body)
}

// DeleteProfile removes the account, confirmed by password.
func (c *Client) DeleteProfile(ctx context.Context, token, password string) error {
	r := c.request(ctx, token).SetBody(map[string]string{"password": password})
	_, err := c.send("profile.delete", r, http.MethodDelete, "/profile/me")
	return err
}

func (c *Client) UploadAvatar(ctx context.Context, token string, file auth.Upload) error {
	return c.upload(ctx, "profile.avatar", "/profile/me/avatar", token, file)
}

func (c *Client) UploadResume(ctx context.Context, token string, file auth.Upload) error {
	return c.upload(ctx, "profile.resume", "/profile/me/resume", token, file)
}

func (c *Client) UploadLegalDocument(ctx context.Context, token string, file auth.Upload) error {
	return c.upload(ctx, "profile.legal_document", "/profile/me/legal-document", token, file)
}

func (c *Client) upload(ctx context.Context, operation, path, token string, file auth.Upload) error {
	if file.FieldName == "" {
		file.FieldName = "file"
	}
	r := c.request(ctx, token)
	attach(r, file.FieldName, &file)
	_, err := c.send(operation, r, http.MethodPost, path)
	return err
}

// ListSavedJobs returns the seeker's saved jobs.
func (c *Client) ListSavedJobs(ctx context.Context, token string) ([]auth.Job, error) {
	resp, err := c.send("saved_jobs.list", c.request(ctx, token), http.MethodGet, "/saved-jobs")
	if err != nil {
		return nil, err
	}

	items := listItems(resp.Body())
	jobs := make([]auth.Job, 0, len(items))
	for _, item := range items {
		// saved entries either are the job or wrap it
		if nested := item.Get("job"); nested.IsObject() {
			item = nested
		}
		jobs = append(jobs, parseJob(item))
	}
	return jobs, nil
}

func (c *Client) SaveJob(ctx context.Context, token, jobID string) error {
	_, err := c.send("saved_jobs.save", c.request(ctx, token).SetPathParam("id", jobID), http.MethodPost, "/saved-jobs/{id}")
	return err
}

func (c *Client) UnsaveJob(ctx context.Context, token, jobID string) error {
	_, err := c.send("saved_jobs.unsave", c.request(ctx, token).SetPathParam("id", jobID), http.MethodDelete, "/saved-jobs/{id}")
	return err
}

// CreateJob publishes a job. Field names follow the backend schema.
func (c *Client) CreateJob(ctx context.Context, token string, draft auth.JobDraft) (*auth.Job, error) {
	resp, err := c.send("jobs.create", c.request(ctx, token).SetBody(jobPayload(draft)), http.MethodPost, "/jobs")
	if err != nil {
		return nil, err
	}

	body := gjson.ParseBytes(resp.Body())
	if !body.IsObject() {
		return nil, malformed("jobs.create", fmt.Errorf("job response is not an object"))
	}
	job := parseJob(body)
	return &job, nil
}

// Apply submits a seeker application.
func (c *Client) Apply(ctx context.Context, token string, req auth.ApplyRequest) (*auth.JobApplication, error) {
	resp, err := c.send("applications.apply", c.request(ctx, token).SetBody(req), http.MethodPost, "/applications")
	if err != nil {
		return nil, err
	}
	app := parseApplication(gjson.ParseBytes(resp.Body()))
	return &app, nil
}

// UpdateApplicationStatus sends the status update body as is.
func (c *Client) UpdateApplicationStatus(ctx context.Context, token, applicationID string, update auth.ApplicationStatusUpdate) (*auth.JobApplication, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	req := c.request(ctx, token).SetPathParam("id", applicationID).SetBody(update)
	resp, err := c.send("applications.status", req, http.MethodPut, "/applications/{id}/status")
	if err != nil {
		return nil, err
	}

	body := gjson.ParseBytes(resp.Body())
	if !body.IsObject() || !body.Get("id").Exists() {
		return nil, nil
	}
	app := parseApplication(body)
	return &app, nil
}

func (c *Client) ListJobApplications(ctx context.Context, token, jobID string) ([]auth.JobApplication, error) {
	resp, err := c.send("applications.job", c.request(ctx, token).SetPathParam("id", jobID), http.MethodGet, "/applications/job/{id}")
	if err != nil {
		return nil, err
	}
	return parseApplications(resp.Body()), nil
}

func (c *Client) ListMyApplications(ctx context.Context, token string) ([]auth.JobApplication, error) {
	resp, err := c.send("applications.mine", c.request(ctx, token), http.MethodGet, "/applications/me")
	if err != nil {
		return nil, err
	}
	return parseApplications(resp.Body()), nil
}

func (c *Client) decodeProfile(operation string, body []byte) (*auth.Identity, error) {
	profile, err := ParseProfile(body)
	if err != nil {
		return nil, malformed(operation, err)
	}
	c.logger.Debug("%s decoded %s profile for %s", operation, profile.Shape, profile.Identity.ID)
	identity := profile.Identity
	return &identity, nil
}

func attach(r *resty.Request, field string, file *auth.Upload) {
	if file == nil || file.Reader == nil {
		return
	}
	name := file.FileName
	if name == "" {
		name = field
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	r.SetMultipartField(field, name, contentType, file.Reader)
}

func jobPayload(draft auth.JobDraft) map[string]any {
	currency := draft.Currency
	if currency == "" {
		currency = "USD"
	}

	payload := map[string]any{
		"title":        draft.Title,
		"desc":         draft.Description,
		"location":     draft.Location,
		"is_remote":    strings.EqualFold(draft.LocationType, "remote"),
		"job_type":     draft.EmploymentType,
		"salary_min":   nil,
		"salary_max":   nil,
		"currency":     currency,
		"requirements": nonNilStrings(draft.Skills),
		"deadline":     nil,
		"status":       auth.JobStatusOpen,
	}
	if draft.SalaryMin > 0 {
		payload["salary_min"] = draft.SalaryMin
	}
	if draft.SalaryMax > 0 {
		payload["salary_max"] = draft.SalaryMax
	}
	if draft.Deadline != nil {
		payload["deadline"] = draft.Deadline.UTC().Format(time.RFC3339)
	}
	return payload
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func parseJob(r gjson.Result) auth.Job {
	job := auth.Job{
		ID:          r.Get("id").String(),
		Title:       r.Get("title").String(),
		Description: firstString(r, gjson.Result{}, "desc", "description"),
		Location:    r.Get("location").String(),
		CompanyName: firstString(r, gjson.Result{}, "company_name", "company.name", "company"),
		OwnerID:     firstString(r, gjson.Result{}, "recruiter_id", "owner_id", "user_id"),
		Status:      auth.JobStatus(r.Get("status").String()),
	}
	if ts := r.Get("created_at").String(); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			job.CreatedAt = t
		}
	}
	return job
}

func parseApplications(body []byte) []auth.JobApplication {
	items := listItems(body)
	apps := make([]auth.JobApplication, 0, len(items))
	for _, item := range items {
		apps = append(apps, parseApplication(item))
	}
	return apps
}

func parseApplication(r gjson.Result) auth.JobApplication {
	app := auth.JobApplication{
		ID:             r.Get("id").String(),
		JobID:          firstString(r, gjson.Result{}, "job_id", "job.id"),
		SeekerID:       firstString(r, gjson.Result{}, "seeker_id", "user_id", "applicant_id"),
		Status:         auth.ApplicationStatus(r.Get("status").String()),
		RecruiterNotes: r.Get("recruiter_notes").String(),
		AIReason:       r.Get("ai_reason").String(),
	}
	if score := r.Get("ai_score"); score.Exists() && score.Type == gjson.Number {
		v := score.Float()
		app.AIScore = &v
	}
	if ts := r.Get("created_at").String(); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			app.CreatedAt = t
		}
	}
	return app
}

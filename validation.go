package auth

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used when a FormValidator has no region configured.
var DefaultPhoneRegion = "ET"

// MinPasswordLength is the shortest password accepted at signup
var MinPasswordLength = 8

// JobSeekerSignup holds the profile fields a job seeker submits at signup.
type JobSeekerSignup struct {
	FullName        string `json:"full_name"`
	Headline        string `json:"headline"`
	Bio             string `json:"bio"`
	Skills          string `json:"skills"`
	YearsExperience int    `json:"years_experience"`
	PhoneNumber     string `json:"phone_number"`
	LinkedInURL     string `json:"linked_in_url"`
	PortfolioURL    string `json:"portfolio_url"`
}

// RecruiterSignup holds the company fields a recruiter submits at signup.
type RecruiterSignup struct {
	CompanyName  string `json:"company_name"`
	Industry     string `json:"industry"`
	CompanySize  string `json:"company_size"`
	WebsiteURL   string `json:"website_url"`
	Location     string `json:"location"`
	AboutCompany string `json:"about_company"`
}

// SignupRequest is the dual-role signup form. Exactly one of JobSeeker or
// Recruiter is read, selected by Role.
type SignupRequest struct {
	Role            Role   `json:"role"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`

	JobSeeker *JobSeekerSignup
	Recruiter *RecruiterSignup

	Resume         *Upload
	ProfilePicture *Upload
}

// FormValidator runs the client-side checks that happen before any request.
type FormValidator struct {
	PhoneRegion string
}

// NewFormValidator creates a validator for the given phone region.
func NewFormValidator(region string) *FormValidator {
	if region == "" {
		region = DefaultPhoneRegion
	}
	return &FormValidator{PhoneRegion: strings.ToUpper(region)}
}

func (v *FormValidator) region() string {
	if v == nil || v.PhoneRegion == "" {
		return DefaultPhoneRegion
	}
	return v.PhoneRegion
}

// ValidateLogin checks the login form.
func (v *FormValidator) ValidateLogin(email, password string) error {
	form := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}

	err := validation.ValidateStruct(&form,
		validation.Field(&form.Email, validation.Required, is.Email),
		validation.Field(&form.Password, validation.Required),
	)
	return toValidationError("please check your login details", err, nil)
}

// ValidateSignup checks the common and role specific signup fields.
func (v *FormValidator) ValidateSignup(req SignupRequest) error {
	fields := map[string]string{}

	err := validation.ValidateStruct(&req,
		validation.Field(&req.Role, validation.Required, validation.In(RoleJobSeeker, RoleRecruiter)),
		validation.Field(&req.Email, validation.Required, is.Email),
		validation.Field(&req.Password, validation.Required, validation.Length(MinPasswordLength, 0)),
	)
	collect(fields, "", err)

	if req.ConfirmPassword != req.Password {
		fields["confirm_password"] = "passwords do not match"
	}

	switch req.Role {
	case RoleJobSeeker:
		if req.JobSeeker == nil {
			fields["full_name"] = "cannot be blank"
			break
		}
		seeker := req.JobSeeker
		collect(fields, "", validation.ValidateStruct(seeker,
			validation.Field(&seeker.FullName, validation.Required),
			validation.Field(&seeker.YearsExperience, validation.Min(0)),
			validation.Field(&seeker.PhoneNumber, v.phoneRule()),
			validation.Field(&seeker.LinkedInURL, is.URL),
			validation.Field(&seeker.PortfolioURL, is.URL),
		))
	case RoleRecruiter:
		if req.Recruiter == nil {
			fields["company_name"] = "cannot be blank"
			break
		}
		recruiter := req.Recruiter
		collect(fields, "", validation.ValidateStruct(recruiter,
			validation.Field(&recruiter.CompanyName, validation.Required),
			validation.Field(&recruiter.WebsiteURL, is.URL),
		))
	}

	return toValidationError("please fill in required fields", nil, fields)
}

// ValidateOAuthDetails checks the complete-profile form.
func (v *FormValidator) ValidateOAuthDetails(details OAuthProfileDetails) error {
	details.FullName = strings.TrimSpace(details.FullName)
	details.CompanyName = strings.TrimSpace(details.CompanyName)

	requiredFor := func(role Role) []validation.Rule {
		if details.Role == role {
			return []validation.Rule{validation.Required}
		}
		return nil
	}

	err := validation.ValidateStruct(&details,
		validation.Field(&details.Role, validation.Required, validation.In(RoleJobSeeker, RoleRecruiter)),
		validation.Field(&details.FullName, requiredFor(RoleJobSeeker)...),
		validation.Field(&details.CompanyName, requiredFor(RoleRecruiter)...),
	)
	return toValidationError("please complete your profile", err, nil)
}

// ValidateProfile checks the settings form for role.
func (v *FormValidator) ValidateProfile(role Role, update ProfileUpdate) error {
	var err error
	switch role {
	case RoleJobSeeker:
		err = validation.ValidateStruct(&update,
			validation.Field(&update.Headline, validation.Required),
			validation.Field(&update.Skills, validation.Required),
			validation.Field(&update.YearsExperience, validation.Required, is.Digit),
			validation.Field(&update.GithubURL, validation.Required, is.URL),
			validation.Field(&update.PhoneNumber, validation.Required, v.phoneRule()),
			validation.Field(&update.Location, validation.Required),
			validation.Field(&update.LinkedInURL, is.URL),
			validation.Field(&update.PortfolioURL, is.URL),
		)
	case RoleRecruiter:
		err = validation.ValidateStruct(&update,
			validation.Field(&update.CompanyName, validation.Required),
			validation.Field(&update.Industry, validation.Required),
			validation.Field(&update.CompanySize, validation.Required),
			validation.Field(&update.Location, validation.Required),
			validation.Field(&update.FoundedYear, validation.Required, is.Digit),
			validation.Field(&update.PhoneNumber, validation.Required, v.phoneRule()),
			validation.Field(&update.WebsiteURL, is.URL),
		)
	default:
		return NewValidationError("unknown role", map[string]string{"role": string(role)})
	}
	return toValidationError("please fill in all required fields", err, nil)
}

// ValidateJobDraft checks the publish form.
func (v *FormValidator) ValidateJobDraft(draft JobDraft) error {
	form := struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Location    string `json:"location"`
		Salary      [2]int `json:"salary"`
	}{
		Title:       strings.TrimSpace(draft.Title),
		Description: strings.TrimSpace(draft.Description),
		Location:    strings.TrimSpace(draft.Location),
		Salary:      [2]int{draft.SalaryMin, draft.SalaryMax},
	}

	err := validation.ValidateStruct(&form,
		validation.Field(&form.Title, validation.Required),
		validation.Field(&form.Description, validation.Required),
		validation.Field(&form.Location, validation.Required),
		validation.Field(&form.Salary, validation.By(salaryRange)),
	)
	return toValidationError("please check the job details", err, nil)
}

// salaryRange checks a [min, max] pair; a zero max means open ended.
func salaryRange(value interface{}) error {
	pair, _ := value.([2]int)
	switch {
	case pair[0] < 0 || pair[1] < 0:
		return errors.New("salary cannot be negative")
	case pair[1] > 0 && pair[0] > pair[1]:
		return errors.New("minimum salary exceeds maximum")
	}
	return nil
}

// ValidPhone reports whether phone is a valid number for the region.
func (v *FormValidator) ValidPhone(phone string) bool {
	num, err := phonenumbers.Parse(phone, v.region())
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumberForRegion(num, v.region())
}

func (v *FormValidator) phoneRule() validation.Rule {
	return validation.By(func(value interface{}) error {
		phone, _ := value.(string)
		if phone == "" {
			return nil
		}
		if !v.ValidPhone(phone) {
			return errors.New("must be a valid phone number")
		}
		return nil
	})
}

func collect(fields map[string]string, prefix string, err error) {
	if err == nil {
		return
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for k, e := range verrs {
			if e != nil {
				fields[prefix+k] = e.Error()
			}
		}
		return
	}

	fields[prefix+"_form"] = err.Error()
}

func toValidationError(message string, err error, fields map[string]string) error {
	if fields == nil {
		fields = map[string]string{}
	}
	collect(fields, "", err)
	if len(fields) == 0 {
		return nil
	}
	return NewValidationError(message, fields)
}

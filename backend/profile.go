package backend

import (
	"fmt"

	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/tidwall/gjson"
)

// ProfileShape tags how GET /profile/me nested the identity.
type ProfileShape int

const (
	// ProfileFlat has every field at the top level.
	ProfileFlat ProfileShape = iota
	// ProfileNested keeps account fields at the top level and profile
	// fields under "profile".
	ProfileNested
)

func (s ProfileShape) String() string {
	if s == ProfileNested {
		return "nested"
	}
	return "flat"
}

// ProfileResponse is a decoded profile body. Identity is already canonical;
// Shape is kept for diagnostics only.
type ProfileResponse struct {
	Shape    ProfileShape
	Identity auth.Identity
}

// ParseProfile normalizes both profile body shapes into one Identity. Nested
// values win over top level ones for profile fields; account fields (id,
// email, role) come from the top level first.
func ParseProfile(body []byte) (ProfileResponse, error) {
	if !gjson.ValidBytes(body) {
		return ProfileResponse{}, fmt.Errorf("profile response is not valid JSON")
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return ProfileResponse{}, fmt.Errorf("profile response is not an object")
	}

	resp := ProfileResponse{Shape: ProfileFlat}
	nested := root.Get("profile")
	if nested.IsObject() {
		resp.Shape = ProfileNested
	} else {
		nested = gjson.Result{}
	}

	account := func(paths ...string) string { return firstString(root, nested, paths...) }
	profile := func(paths ...string) string { return firstString(nested, root, paths...) }

	role, ok := auth.ParseRole(account("role", "user_role"))
	if !ok {
		return ProfileResponse{}, fmt.Errorf("profile response has unknown role %q", account("role", "user_role"))
	}

	resp.Identity = auth.Identity{
		ID:               account("id", "user_id"),
		Email:            account("email"),
		Role:             role,
		FullName:         profile("full_name", "name"),
		CompanyName:      profile("company_name", "company"),
		LegalDocumentRef: profile("legal_document_url", "legal_document"),
	}

	if resp.Identity.ID == "" {
		return ProfileResponse{}, fmt.Errorf("profile response has no id")
	}

	resp.Identity.VerificationStatus = verificationStatus(root, nested, resp.Identity)
	return resp, nil
}

// verificationStatus reads verification_status when present, otherwise
// derives it from is_verified and the legal document reference.
func verificationStatus(primary, secondary gjson.Result, identity auth.Identity) auth.VerificationStatus {
	if identity.Role != auth.RoleRecruiter {
		return ""
	}

	if raw := firstString(secondary, primary, "verification_status"); raw != "" {
		if status := auth.VerificationStatus(raw); status.IsValid() {
			return status
		}
	}

	for _, r := range []gjson.Result{secondary, primary} {
		if v := r.Get("is_verified"); v.Exists() && v.Bool() {
			return auth.VerificationVerified
		}
	}

	if identity.LegalDocumentRef != "" {
		return auth.VerificationPending
	}
	return auth.VerificationUnverified
}

func firstString(a, b gjson.Result, paths ...string) string {
	for _, r := range []gjson.Result{a, b} {
		if !r.Exists() {
			continue
		}
		for _, p := range paths {
			if v := r.Get(p); v.Exists() && v.Type != gjson.Null && !v.IsObject() && !v.IsArray() {
				if s := v.String(); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

package auth

import (
	"encoding/json"
	"fmt"
)

// Role is fixed at account creation. The set is closed: every switch over
// Role handles both values and treats anything else as invalid.
type Role string

const (
	// RoleJobSeeker browses, saves and applies to jobs
	RoleJobSeeker Role = "job_seeker"
	// RoleRecruiter publishes jobs and manages applicants
	RoleRecruiter Role = "recruiter"
)

const (
	SeekerDashboardRoot   = "/dashboard/seeker"
	EmployerDashboardRoot = "/dashboard/employer"
)

// IsValid checks if the role is one of the predefined roles
func (r Role) IsValid() bool {
	switch r {
	case RoleJobSeeker, RoleRecruiter:
		return true
	default:
		return false
	}
}

// DashboardRoot is where an identity with this role lands by default.
func (r Role) DashboardRoot() string {
	switch r {
	case RoleRecruiter:
		return EmployerDashboardRoot
	case RoleJobSeeker:
		return SeekerDashboardRoot
	default:
		return "/"
	}
}

func (r Role) String() string {
	return string(r)
}

// UnmarshalJSON rejects roles outside the closed set.
func (r *Role) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	role, ok := ParseRole(raw)
	if !ok {
		return fmt.Errorf("unknown role %q", raw)
	}
	*r = role
	return nil
}

// GetAllRoles returns all roles
func GetAllRoles() []Role {
	return []Role{RoleJobSeeker, RoleRecruiter}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}

package profile

// Business rule constants
const (
	RoleOwner = "owner"
	RoleStaff = "staff"
)

// GymRef carries the embedded tenant name from a joined profile read.
type GymRef struct {
	Name string `json:"name"`
}

// Profile binds an identity-service user to a tenant and role.
// Created exactly once per user, either by the workspace bootstrap or by an
// administrative seed; read-only everywhere else.
type Profile struct {
	UserID string  `json:"user_id,omitempty"`
	GymID  *string `json:"gym_id"`
	Role   string  `json:"role"`
	Gym    *GymRef `json:"gym,omitempty"`
}

// HasTenant reports whether the profile is bound to a gym.
// A profile without a tenant is the "needs onboarding" state, not an error.
func (p *Profile) HasTenant() bool {
	return p != nil && p.GymID != nil && *p.GymID != ""
}

// GymName returns the joined tenant name, if present.
func (p *Profile) GymName() string {
	if p == nil || p.Gym == nil {
		return ""
	}
	return p.Gym.Name
}

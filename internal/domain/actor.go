package domain

// Role is a user's permission class inside an organization
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAdvisor    Role = "advisor"
	RoleCompliance Role = "compliance"
	RoleSystem     Role = "system" // scheduler
)

// Actor is the authenticated caller of an operation
type Actor struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Role  Role   `json:"role"`
}

// SystemActor is used by background jobs; it is bound to one organization per call
func SystemActor(orgID string) Actor {
	return Actor{ID: "system", OrgID: orgID, Role: RoleSystem}
}

// IsAdmin reports whether the actor has admin rights
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanReview reports whether the actor's role may record compliance decisions
func (a Actor) CanReview() bool {
	return a.Role == RoleCompliance || a.Role == RoleAdmin
}

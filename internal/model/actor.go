package model

// Role is the authorization level of an actor.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Actor is the authenticated principal performing an operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the actor has administrative rights.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// SystemActor is used for mutations performed by background workers.
var SystemActor = Actor{ID: "system", Role: RoleAdmin}

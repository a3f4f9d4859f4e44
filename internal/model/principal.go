package model

import "github.com/google/uuid"

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Principal is the authenticated actor extracted from the access token.
// Read scope is hierarchical (superadmin ⊇ admin ⊇ user); write transitions
// are checked per role in the service layer.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

func (p Principal) IsUser() bool {
	return p.Role == RoleUser || p.Role == RoleAdmin || p.Role == RoleSuperAdmin
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin || p.Role == RoleSuperAdmin
}

func (p Principal) IsSuperAdmin() bool {
	return p.Role == RoleSuperAdmin
}

package auth

import "errors"

const (
	RoleAdmin      = "admin"
	RoleStaff      = "staff"
	RoleTechnician = "technician"
	RoleCustomer   = "customer"
)

var validRoles = map[string]struct{}{
	RoleAdmin:      {},
	RoleStaff:      {},
	RoleTechnician: {},
	RoleCustomer:   {},
}

func IsValidRole(role string) bool {
	_, ok := validRoles[role]
	return ok
}

// Principal is the authenticated caller as seen by the service layer.
type Principal struct {
	UserID string
	Role   string
}

func (p Principal) Is(roles ...string) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// IsBackOffice reports whether the caller works for the service center.
func (p Principal) IsBackOffice() bool {
	return p.Is(RoleAdmin, RoleStaff)
}

var ErrInvalidRole = errors.New("invalid role")

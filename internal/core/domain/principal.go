package domain

const (
	RoleAdmin    = "admin"
	RoleBusiness = "business"
)

// Principal is the authenticated caller of the BFF. Business users are
// bound to one business; admins may act on any.
type Principal struct {
	Username   string `json:"username"`
	Role       string `json:"role"`
	BusinessID uint   `json:"business_id,omitempty"`
}

// Scope returns the business the principal may act on. requested is the
// business named by the request (0 when absent). Admins get requested as
// is; business users get their own business and ErrForbidden for any
// other.
func (p Principal) Scope(requested uint) (uint, error) {
	if p.Role == RoleAdmin {
		return requested, nil
	}
	if requested != 0 && requested != p.BusinessID {
		return 0, ErrForbidden
	}
	return p.BusinessID, nil
}

package user

// Identity is what a verified bearer credential resolves to.
type Identity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Suspended bool   `json:"suspended"`
	IsActive  bool   `json:"isActive"`
}

// NewIdentity derives the suspended/active flags from a stored account status.
func NewIdentity(id, name string, role Role, status Status) Identity {
	return Identity{
		ID:        id,
		Name:      name,
		Role:      role,
		Suspended: status == StatusSuspended,
		IsActive:  status == StatusActive,
	}
}

// CanConnect reports whether the account may open a live connection.
func (identity Identity) CanConnect() bool {
	return identity.ID != "" && identity.Role.Valid() && identity.IsActive && !identity.Suspended
}

package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

type FamilyMember struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// IsChild reports whether the member can hold assignments, points and redemptions.
func (m *FamilyMember) IsChild() bool {
	return m != nil && m.Active && m.Role == RoleChild
}

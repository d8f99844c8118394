package models

// Role is a Telegram chat member status.
type Role string

const (
	RoleCreator       Role = "creator"
	RoleAdministrator Role = "administrator"
	RoleMember        Role = "member"
	RoleRestricted    Role = "restricted"
	RoleLeft          Role = "left"
	RoleKicked        Role = "kicked"
)

// IsMember reports whether the status still grants access to the group.
func (r Role) IsMember() bool {
	return r != RoleLeft && r != RoleKicked
}

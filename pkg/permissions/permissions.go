// Package permissions maps Telegram group roles to capabilities and holds
// the ownership rules for editing, deleting and moving content.
package permissions

import (
	"context"

	"tgspace-backend/pkg/models"
)

// Permissions is the capability set derived from a role.
type Permissions struct {
	CanRead         bool `json:"canRead"`
	CanWrite        bool `json:"canWrite"`
	CanDeleteOwn    bool `json:"canDeleteOwn"`
	CanDeleteOthers bool `json:"canDeleteOthers"`
	CanManage       bool `json:"canManage"`
}

var (
	full     = Permissions{CanRead: true, CanWrite: true, CanDeleteOwn: true, CanDeleteOthers: true, CanManage: true}
	member   = Permissions{CanRead: true, CanWrite: true, CanDeleteOwn: true}
	readOnly = Permissions{CanRead: true}
	none     = Permissions{}
)

// ForRole returns the capabilities of role. Unknown roles get nothing.
func ForRole(role models.Role) Permissions {
	switch role {
	case models.RoleCreator, models.RoleAdministrator:
		return full
	case models.RoleMember:
		return member
	case models.RoleRestricted:
		return readOnly
	default:
		return none
	}
}

// CanEdit allows managers to edit anything and writers to edit their own content.
func CanEdit(p Permissions, isOwner bool) bool {
	return p.CanManage || (isOwner && p.CanWrite)
}

// CanDelete checks the delete capability matching ownership.
func CanDelete(p Permissions, isOwner bool) bool {
	if isOwner {
		return p.CanDeleteOwn
	}
	return p.CanDeleteOthers
}

// CanMove reports whether sections and items may be relocated.
func CanMove(p Permissions) bool {
	return p.CanManage
}

// MembershipOracle reports a user's current status in a chat.
type MembershipOracle interface {
	ResolveMembership(ctx context.Context, chatID, userID int64) (models.Role, error)
}

// Refresher recomputes permissions from the live membership status.
type Refresher struct {
	oracle MembershipOracle
}

func NewRefresher(oracle MembershipOracle) *Refresher {
	return &Refresher{oracle: oracle}
}

// Refresh queries the oracle. Any failure yields the permissions of `left`.
func (r *Refresher) Refresh(ctx context.Context, chatID, telegramID int64) (models.Role, Permissions) {
	if r == nil || r.oracle == nil {
		return models.RoleLeft, ForRole(models.RoleLeft)
	}
	role, err := r.oracle.ResolveMembership(ctx, chatID, telegramID)
	if err != nil {
		return models.RoleLeft, ForRole(models.RoleLeft)
	}
	return role, ForRole(role)
}

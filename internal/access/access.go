// Package access decides which accounts an acting user may see and manage.
//
// The four predicates are independent. A row can be visible but not
// manageable, so callers receive all of them per target.
package access

import (
	"fmt"

	"stockmaster/console/internal/domain"
	"stockmaster/console/internal/store"
)

// Rank orders roles for authorization. Viewer and User share the bottom
// rank; unknown roles rank below everything.
func Rank(role domain.Role) int {
	switch role {
	case domain.RoleViewer, domain.RoleUser:
		return 1
	case domain.RoleManager:
		return 2
	case domain.RoleAdmin:
		return 3
	case domain.RoleSuperAdmin:
		return 4
	default:
		return 0
	}
}

type Permissions struct {
	CanView         bool `json:"can_view"`
	CanManageStatus bool `json:"can_manage_status"`
	CanChangeRole   bool `json:"can_change_role"`
	CanDelete       bool `json:"can_delete"`
}

func isSelf(actor domain.Identity, target domain.User) bool {
	return actor.ID != "" && actor.ID == target.ID
}

// belowAdmin is true only for recognised roles ranked under Admin.
func belowAdmin(role domain.Role) bool {
	r := Rank(role)
	return r > 0 && r < Rank(domain.RoleAdmin)
}

func CanView(actor domain.Identity, target domain.User) bool {
	if isSelf(actor, target) {
		return true
	}
	switch actor.Role {
	case domain.RoleSuperAdmin:
		return true
	case domain.RoleAdmin:
		return belowAdmin(target.Role)
	default:
		return true
	}
}

func CanManageStatus(actor domain.Identity, target domain.User) bool {
	if isSelf(actor, target) {
		return false
	}
	switch actor.Role {
	case domain.RoleSuperAdmin:
		return true
	case domain.RoleAdmin:
		return belowAdmin(target.Role)
	default:
		return false
	}
}

func CanChangeRole(actor domain.Identity, target domain.User) bool {
	if isSelf(actor, target) {
		return false
	}
	return actor.Role == domain.RoleSuperAdmin
}

func CanDelete(actor domain.Identity, target domain.User) bool {
	if isSelf(actor, target) {
		return false
	}
	return actor.Role == domain.RoleSuperAdmin
}

func Evaluate(actor domain.Identity, target domain.User) Permissions {
	return Permissions{
		CanView:         CanView(actor, target),
		CanManageStatus: CanManageStatus(actor, target),
		CanChangeRole:   CanChangeRole(actor, target),
		CanDelete:       CanDelete(actor, target),
	}
}

// AssignableRoles lists the values offered by the role selector. SuperAdmin
// is never among them, not even for a SuperAdmin.
func AssignableRoles(actor domain.Identity) []domain.Role {
	if actor.Role != domain.RoleSuperAdmin {
		return nil
	}
	return []domain.Role{domain.RoleViewer, domain.RoleUser, domain.RoleManager, domain.RoleAdmin}
}

func IsAssignable(actor domain.Identity, role domain.Role) bool {
	for _, r := range AssignableRoles(actor) {
		if r == role {
			return true
		}
	}
	return false
}

// VisibleUsers filters users down to the ones actor may see, keeping order.
func VisibleUsers(actor domain.Identity, users []domain.User) []domain.User {
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		if CanView(actor, u) {
			out = append(out, u)
		}
	}
	return out
}

// NextStatus is the target of the status toggle control.
func NextStatus(current domain.AccountStatus) domain.AccountStatus {
	if current == domain.AccountActive {
		return domain.AccountInactive
	}
	return domain.AccountActive
}

// ValidStatusTransition allows Pending→Active and Active↔Inactive.
func ValidStatusTransition(from domain.AccountStatus, to domain.AccountStatus) bool {
	switch from {
	case domain.AccountPending:
		return to == domain.AccountActive
	case domain.AccountActive:
		return to == domain.AccountInactive
	case domain.AccountInactive:
		return to == domain.AccountActive
	default:
		return to == domain.AccountActive || to == domain.AccountInactive
	}
}

// CheckStatusChange combines the management predicate with the transition rule.
func CheckStatusChange(actor domain.Identity, target domain.User, to domain.AccountStatus) error {
	if !CanManageStatus(actor, target) {
		return fmt.Errorf("%w: cannot change status of %s", store.ErrForbidden, target.Name)
	}
	if !ValidStatusTransition(target.Status, to) {
		return fmt.Errorf("%w: %s cannot move from %s to %s", store.ErrInvalidInput, target.Name, target.Status, to)
	}
	return nil
}

func CheckRoleChange(actor domain.Identity, target domain.User, to domain.Role) error {
	if !CanChangeRole(actor, target) {
		return fmt.Errorf("%w: cannot change role of %s", store.ErrForbidden, target.Name)
	}
	if !IsAssignable(actor, to) {
		return fmt.Errorf("%w: role %q is not assignable", store.ErrInvalidInput, to)
	}
	return nil
}

func CheckDelete(actor domain.Identity, target domain.User) error {
	if !CanDelete(actor, target) {
		return fmt.Errorf("%w: cannot delete %s", store.ErrForbidden, target.Name)
	}
	return nil
}

// CanManageInventory covers product create/edit/delete and restock.
func CanManageInventory(role domain.Role) bool {
	return Rank(role) >= Rank(domain.RoleManager)
}

// CanAdministerUsers gates the user list and the audit log.
func CanAdministerUsers(role domain.Role) bool {
	return Rank(role) >= Rank(domain.RoleAdmin)
}

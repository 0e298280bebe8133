package service

import "github.com/sandeepkv93/sitedeck/internal/domain"

// CanModifyUser holds when a staff actor acts on someone else who is not
// above or beside them: admins may not touch admins or super admins.
func CanModifyUser(actor, target *domain.User) bool {
	if actor == nil || target == nil || !actor.Role.IsStaff() {
		return false
	}
	if actor.ID == target.ID {
		return false
	}
	if target.Role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
		return false
	}
	if actor.Role == domain.RoleAdmin && target.Role == domain.RoleAdmin {
		return false
	}
	return true
}

// CanChangeStatus additionally protects super admins from being disabled.
func CanChangeStatus(actor, target *domain.User) bool {
	return CanModifyUser(actor, target) && target.Role != domain.RoleSuperAdmin
}

// CanChangeRole allows only super admins to move users between user and
// admin; super_admin is never granted or taken away here.
func CanChangeRole(actor, target *domain.User, newRole domain.Role) bool {
	if !CanModifyUser(actor, target) || actor.Role != domain.RoleSuperAdmin {
		return false
	}
	if target.Role == domain.RoleSuperAdmin {
		return false
	}
	return newRole == domain.RoleUser || newRole == domain.RoleAdmin
}

// Affordances tells a client which controls to render for one user row.
type Affordances struct {
	CanModify       bool `json:"can_modify"`
	CanChangeStatus bool `json:"can_change_status"`
	CanChangeRole   bool `json:"can_change_role"`
}

func AffordancesFor(actor, target *domain.User) Affordances {
	return Affordances{
		CanModify:       CanModifyUser(actor, target),
		CanChangeStatus: CanChangeStatus(actor, target),
		CanChangeRole:   CanChangeRole(actor, target, domain.RoleUser) || CanChangeRole(actor, target, domain.RoleAdmin),
	}
}

package service

import (
	"testing"

	"github.com/sandeepkv93/sitedeck/internal/domain"
)

func testUser(id uint, role domain.Role) *domain.User {
	return &domain.User{ID: id, Email: "u@example.com", Name: "U", Role: role, Status: domain.UserStatusActive}
}

func TestCanModifyUserMatrix(t *testing.T) {
	roles := []domain.Role{domain.RoleUser, domain.RoleAdmin, domain.RoleSuperAdmin}
	want := map[[2]domain.Role]bool{
		{domain.RoleAdmin, domain.RoleUser}:            true,
		{domain.RoleAdmin, domain.RoleAdmin}:           false,
		{domain.RoleAdmin, domain.RoleSuperAdmin}:      false,
		{domain.RoleSuperAdmin, domain.RoleUser}:       true,
		{domain.RoleSuperAdmin, domain.RoleAdmin}:      true,
		{domain.RoleSuperAdmin, domain.RoleSuperAdmin}: true,
	}
	for _, actorRole := range roles {
		for _, targetRole := range roles {
			actor, target := testUser(1, actorRole), testUser(2, targetRole)
			got := CanModifyUser(actor, target)
			if got != want[[2]domain.Role{actorRole, targetRole}] {
				t.Fatalf("CanModifyUser(%s, %s) = %v", actorRole, targetRole, got)
			}
		}
	}
}

func TestCanModifyUserRejectsSelfAndNil(t *testing.T) {
	self := testUser(5, domain.RoleSuperAdmin)
	if CanModifyUser(self, self) {
		t.Fatal("actors must not modify themselves")
	}
	if CanModifyUser(nil, testUser(2, domain.RoleUser)) || CanModifyUser(self, nil) {
		t.Fatal("nil actor or target must be rejected")
	}
}

func TestCanChangeStatusNeverDisablesSuperAdmin(t *testing.T) {
	target := testUser(2, domain.RoleSuperAdmin)
	for _, role := range []domain.Role{domain.RoleUser, domain.RoleAdmin, domain.RoleSuperAdmin} {
		if CanChangeStatus(testUser(1, role), target) {
			t.Fatalf("%s must not change a super admin's status", role)
		}
	}
	if !CanChangeStatus(testUser(1, domain.RoleAdmin), testUser(2, domain.RoleUser)) {
		t.Fatal("admin should change a user's status")
	}
}

func TestCanChangeRoleAdminOnAdminRejectedForEveryRole(t *testing.T) {
	actor, target := testUser(1, domain.RoleAdmin), testUser(2, domain.RoleAdmin)
	for _, role := range []domain.Role{domain.RoleUser, domain.RoleAdmin, domain.RoleSuperAdmin, "bogus"} {
		if CanChangeRole(actor, target, role) {
			t.Fatalf("admin changed admin to %q", role)
		}
	}
}

func TestCanChangeRoleRules(t *testing.T) {
	super := testUser(1, domain.RoleSuperAdmin)
	cases := []struct {
		name   string
		actor  *domain.User
		target *domain.User
		role   domain.Role
		want   bool
	}{
		{"super promotes user", super, testUser(2, domain.RoleUser), domain.RoleAdmin, true},
		{"super demotes admin", super, testUser(2, domain.RoleAdmin), domain.RoleUser, true},
		{"super never grants super", super, testUser(2, domain.RoleAdmin), domain.RoleSuperAdmin, false},
		{"admin cannot promote user", testUser(3, domain.RoleAdmin), testUser(2, domain.RoleUser), domain.RoleAdmin, false},
		{"super cannot change self", super, super, domain.RoleUser, false},
		{"super cannot demote super to user", super, testUser(2, domain.RoleSuperAdmin), domain.RoleUser, false},
		{"super cannot demote super to admin", super, testUser(2, domain.RoleSuperAdmin), domain.RoleAdmin, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanChangeRole(tc.actor, tc.target, tc.role); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestAffordancesFor(t *testing.T) {
	got := AffordancesFor(testUser(1, domain.RoleAdmin), testUser(2, domain.RoleUser))
	if !got.CanModify || !got.CanChangeStatus || got.CanChangeRole {
		t.Fatalf("unexpected admin affordances: %+v", got)
	}
	got = AffordancesFor(testUser(1, domain.RoleSuperAdmin), testUser(2, domain.RoleSuperAdmin))
	if !got.CanModify || got.CanChangeStatus || got.CanChangeRole {
		t.Fatalf("unexpected super admin affordances: %+v", got)
	}
}

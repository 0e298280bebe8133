package service

import (
	"context"
	"fmt"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

// UserRow is one admin listing entry with the controls the actor may use.
type UserRow struct {
	domain.User
	Affordances Affordances `json:"affordances"`
}

type UserFilter struct {
	repository.PageRequest
	Email  string
	Role   domain.Role
	Status domain.UserStatus
}

type Stats struct {
	UsersByRole      map[domain.Role]int64          `json:"users_by_role"`
	WebsitesByStatus map[domain.WebsiteStatus]int64 `json:"websites_by_status"`
}

type UserService struct {
	users    repository.UserRepository
	websites repository.WebsiteRepository
	sessions *SessionService
	bulk     BulkRunner
}

func NewUserService(users repository.UserRepository, websites repository.WebsiteRepository, sessions *SessionService, bulk BulkRunner) *UserService {
	return &UserService{users: users, websites: websites, sessions: sessions, bulk: bulk}
}

func (s *UserService) List(ctx context.Context, actor *domain.User, f UserFilter) (repository.PageResult[UserRow], error) {
	if !isStaff(actor) {
		return repository.PageResult[UserRow]{}, forbidden("only staff may list users")
	}
	if f.Role != "" && !f.Role.Valid() {
		return repository.PageResult[UserRow]{}, invalid("role", "must be one of user, admin, super_admin")
	}
	if f.Status != "" && !f.Status.Valid() {
		return repository.PageResult[UserRow]{}, invalid("status", "must be one of active, inactive")
	}
	req := repository.NormalizePageRequest(f.PageRequest)
	page, err := s.users.List(ctx, repository.UserListQuery{
		PageRequest: req,
		Email:       normalizeEmail(f.Email),
		Role:        f.Role,
		Status:      f.Status,
	})
	if err != nil {
		return repository.PageResult[UserRow]{}, err
	}
	rows := make([]UserRow, 0, len(page.Items))
	for i := range page.Items {
		rows = append(rows, UserRow{User: page.Items[i], Affordances: AffordancesFor(actor, &page.Items[i])})
	}
	return repository.NewPageResult(req, rows, page.Total), nil
}

// SetStatus disables or re-enables an account. Disabling revokes every
// session of the target.
func (s *UserService) SetStatus(ctx context.Context, actor *domain.User, id uint, status domain.UserStatus) (*domain.User, error) {
	if !status.Valid() {
		return nil, invalid("status", "must be one of active, inactive")
	}
	target, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanChangeStatus(actor, target) {
		observability.RecordAdminMutation(ctx, "user", "status", "forbidden")
		return nil, forbidden("you may not change this user's status")
	}
	if err := s.users.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	if status == domain.UserStatusInactive {
		if err := s.sessions.RevokeAll(ctx, id, "disabled"); err != nil {
			return nil, err
		}
	}
	observability.RecordAdminMutation(ctx, "user", "status", "success")
	target.Status = status
	return target, nil
}

func (s *UserService) SetRole(ctx context.Context, actor *domain.User, id uint, role domain.Role) (*domain.User, error) {
	target, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanChangeRole(actor, target, role) {
		observability.RecordAdminMutation(ctx, "user", "role", "forbidden")
		return nil, forbidden("you may not grant this role to this user")
	}
	if err := s.users.SetRole(ctx, id, role); err != nil {
		return nil, err
	}
	// Session tokens embed the role; force a fresh sign-in.
	if err := s.sessions.RevokeAll(ctx, id, "role_change"); err != nil {
		return nil, err
	}
	observability.RecordAdminMutation(ctx, "user", "role", "success")
	target.Role = role
	return target, nil
}

func (s *UserService) SetTrusted(ctx context.Context, actor *domain.User, id uint, trusted bool) (*domain.User, error) {
	target, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanModifyUser(actor, target) {
		observability.RecordAdminMutation(ctx, "user", "trusted", "forbidden")
		return nil, forbidden("you may not modify this user")
	}
	if err := s.users.SetTrusted(ctx, id, trusted); err != nil {
		return nil, err
	}
	observability.RecordAdminMutation(ctx, "user", "trusted", "success")
	target.Trusted = trusted
	return target, nil
}

func (s *UserService) BulkDisable(ctx context.Context, actor *domain.User, ids []uint) (*BulkResult, error) {
	if !isStaff(actor) {
		return nil, forbidden("only staff may disable users")
	}
	return s.bulk.Run(ctx, "user_disable", ids, func(ctx context.Context, id uint) error {
		_, err := s.SetStatus(ctx, actor, id, domain.UserStatusInactive)
		return err
	})
}

func (s *UserService) Stats(ctx context.Context, actor *domain.User) (*Stats, error) {
	if !isStaff(actor) {
		return nil, forbidden("only staff may view stats")
	}
	byRole, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	byStatus, err := s.websites.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count websites: %w", err)
	}
	return &Stats{UsersByRole: byRole, WebsitesByStatus: byStatus}, nil
}

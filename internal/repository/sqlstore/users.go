package sqlstore

import (
	"context"
	"time"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

const userColumns = "id, email, name, role, status, trusted, password_hash, last_login_at, created_at, updated_at"

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, u *domain.User) error {
	ts := now()
	id, err := r.s.insert(ctx, r.s.db, "users",
		[]string{"email", "name", "role", "status", "trusted", "password_hash", "last_login_at", "created_at", "updated_at"},
		u.Email, u.Name, u.Role, u.Status, u.Trusted, u.PasswordHash, u.LastLoginAt, ts, ts)
	if err != nil {
		return observe(ctx, "user", "create", mapError(err, nil))
	}
	u.ID, u.CreatedAt, u.UpdatedAt = id, ts, ts
	return observe(ctx, "user", "create", nil)
}

func (r *userRepo) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	var u domain.User
	err := r.s.db.GetContext(ctx, &u, r.s.q("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	if err != nil {
		return nil, observe(ctx, "user", "find_by_id", mapError(err, repository.ErrUserNotFound))
	}
	return &u, observe(ctx, "user", "find_by_id", nil)
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.s.db.GetContext(ctx, &u, r.s.q("SELECT "+userColumns+" FROM users WHERE email = ?"), email)
	if err != nil {
		return nil, observe(ctx, "user", "find_by_email", mapError(err, repository.ErrUserNotFound))
	}
	return &u, observe(ctx, "user", "find_by_email", nil)
}

func (r *userRepo) List(ctx context.Context, q repository.UserListQuery) (repository.PageResult[domain.User], error) {
	page := repository.NormalizePageRequest(q.PageRequest)
	var where filter
	if q.Email != "" {
		where.add("LOWER(email) LIKE ? ESCAPE '"+repository.LikeEscape+"'", repository.LikePattern(q.Email))
	}
	if q.Role != "" {
		where.add("role = ?", q.Role)
	}
	if q.Status != "" {
		where.add("status = ?", q.Status)
	}

	var total int64
	if err := r.s.db.GetContext(ctx, &total, r.s.q("SELECT COUNT(*) FROM users"+where.sql()), where.args...); err != nil {
		return repository.PageResult[domain.User]{}, observe(ctx, "user", "list", err)
	}
	var users []domain.User
	query := "SELECT " + userColumns + " FROM users" + where.sql() + " ORDER BY id ASC LIMIT ? OFFSET ?"
	if err := r.s.db.SelectContext(ctx, &users, r.s.q(query), append(where.args, page.PageSize, page.Offset())...); err != nil {
		return repository.PageResult[domain.User]{}, observe(ctx, "user", "list", err)
	}
	observe(ctx, "user", "list", nil)
	return repository.NewPageResult(page, users, total), nil
}

func (r *userRepo) Update(ctx context.Context, u *domain.User) error {
	err := r.s.updateByID(ctx, r.s.db, "users", u.ID, repository.ErrUserNotFound,
		"email = ?, name = ?, role = ?, status = ?, trusted = ?, updated_at = ?",
		u.Email, u.Name, u.Role, u.Status, u.Trusted, now())
	return observe(ctx, "user", "update", err)
}

func (r *userRepo) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return r.setColumn(ctx, "update_password", id, "password_hash", hash)
}

func (r *userRepo) SetRole(ctx context.Context, id uint, role domain.Role) error {
	return r.setColumn(ctx, "set_role", id, "role", role)
}

func (r *userRepo) SetStatus(ctx context.Context, id uint, status domain.UserStatus) error {
	return r.setColumn(ctx, "set_status", id, "status", status)
}

func (r *userRepo) SetTrusted(ctx context.Context, id uint, trusted bool) error {
	return r.setColumn(ctx, "set_trusted", id, "trusted", trusted)
}

func (r *userRepo) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.setColumn(ctx, "touch_last_login", id, "last_login_at", at.UTC())
}

// setColumn updates one whitelisted column; callers pass constant names only.
func (r *userRepo) setColumn(ctx context.Context, op string, id uint, column string, value any) error {
	err := r.s.updateByID(ctx, r.s.db, "users", id, repository.ErrUserNotFound, column+" = ?, updated_at = ?", value, now())
	return observe(ctx, "user", op, err)
}

func (r *userRepo) CountByRole(ctx context.Context) (map[domain.Role]int64, error) {
	var rows []struct {
		Role  domain.Role `db:"role"`
		Total int64       `db:"total"`
	}
	if err := r.s.db.SelectContext(ctx, &rows, "SELECT role, COUNT(*) AS total FROM users GROUP BY role"); err != nil {
		return nil, observe(ctx, "user", "count_by_role", err)
	}
	out := make(map[domain.Role]int64, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Total
	}
	return out, observe(ctx, "user", "count_by_role", nil)
}

// filter accumulates AND-ed WHERE conditions and their arguments.
type filter struct {
	conds []string
	args  []any
}

func (f *filter) add(cond string, args ...any) {
	f.conds = append(f.conds, cond)
	f.args = append(f.args, args...)
}

func (f *filter) sql() string {
	if len(f.conds) == 0 {
		return ""
	}
	out := " WHERE " + f.conds[0]
	for _, c := range f.conds[1:] {
		out += " AND " + c
	}
	return out
}

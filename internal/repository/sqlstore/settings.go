package sqlstore

import (
	"context"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

const settingColumns = "setting_key, value, description, created_at, updated_at"

type settingRepo struct{ s *Store }

func (r *settingRepo) Get(ctx context.Context, key string) (*domain.SystemSetting, error) {
	var st domain.SystemSetting
	err := r.s.db.GetContext(ctx, &st, r.s.q("SELECT "+settingColumns+" FROM system_settings WHERE setting_key = ?"), key)
	if err != nil {
		return nil, observe(ctx, "setting", "get", mapError(err, repository.ErrSettingNotFound))
	}
	return &st, observe(ctx, "setting", "get", nil)
}

func (r *settingRepo) List(ctx context.Context) ([]domain.SystemSetting, error) {
	var out []domain.SystemSetting
	err := r.s.db.SelectContext(ctx, &out, "SELECT "+settingColumns+" FROM system_settings ORDER BY setting_key ASC")
	return out, observe(ctx, "setting", "list", err)
}

func (r *settingRepo) Upsert(ctx context.Context, st *domain.SystemSetting) error {
	ts := now()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = ts
	}
	st.UpdatedAt = ts
	query := r.s.d.upsert("system_settings",
		[]string{"setting_key", "value", "description", "created_at", "updated_at"},
		"setting_key",
		[]string{"value", "description", "updated_at"})
	_, err := r.s.db.ExecContext(ctx, r.s.q(query), st.Key, st.Value, st.Description, st.CreatedAt, st.UpdatedAt)
	return observe(ctx, "setting", "upsert", err)
}

func (r *settingRepo) Delete(ctx context.Context, key string) error {
	n, err := exec(ctx, r.s.db, r.s.q("DELETE FROM system_settings WHERE setting_key = ?"), key)
	if err != nil {
		return observe(ctx, "setting", "delete", err)
	}
	if n == 0 {
		return observe(ctx, "setting", "delete", repository.ErrSettingNotFound)
	}
	return observe(ctx, "setting", "delete", nil)
}

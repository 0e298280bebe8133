package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

const categoryColumns = "id, name, gradient_from, gradient_to, created_at, updated_at"

type categoryRepo struct{ s *Store }

func (r *categoryRepo) Create(ctx context.Context, c *domain.Category) error {
	ts := now()
	id, err := r.s.insert(ctx, r.s.db, "categories",
		[]string{"name", "gradient_from", "gradient_to", "created_at", "updated_at"},
		c.Name, c.GradientFrom, c.GradientTo, ts, ts)
	if err != nil {
		return observe(ctx, "category", "create", mapError(err, nil))
	}
	c.ID, c.CreatedAt, c.UpdatedAt = id, ts, ts
	return observe(ctx, "category", "create", nil)
}

func (r *categoryRepo) FindByID(ctx context.Context, id uint) (*domain.Category, error) {
	var c domain.Category
	err := r.s.db.GetContext(ctx, &c, r.s.q("SELECT "+categoryColumns+" FROM categories WHERE id = ?"), id)
	if err != nil {
		return nil, observe(ctx, "category", "find_by_id", mapError(err, repository.ErrCategoryNotFound))
	}
	return &c, observe(ctx, "category", "find_by_id", nil)
}

func (r *categoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := r.s.db.SelectContext(ctx, &out, "SELECT "+categoryColumns+" FROM categories ORDER BY name ASC")
	return out, observe(ctx, "category", "list", err)
}

func (r *categoryRepo) ListWithUsage(ctx context.Context) ([]domain.CategoryWithUsage, error) {
	var out []domain.CategoryWithUsage
	err := r.s.db.SelectContext(ctx, &out, `SELECT c.id, c.name, c.gradient_from, c.gradient_to, c.created_at, c.updated_at,
		(SELECT COUNT(*) FROM websites w WHERE w.category_id = c.id) AS website_count
		FROM categories c ORDER BY c.name ASC`)
	return out, observe(ctx, "category", "list_with_usage", err)
}

func (r *categoryRepo) Update(ctx context.Context, c *domain.Category) error {
	ts := now()
	err := r.s.updateByID(ctx, r.s.db, "categories", c.ID, repository.ErrCategoryNotFound,
		"name = ?, gradient_from = ?, gradient_to = ?, updated_at = ?",
		c.Name, c.GradientFrom, c.GradientTo, ts)
	if err == nil {
		c.UpdatedAt = ts
	}
	return observe(ctx, "category", "update", err)
}

func (r *categoryRepo) Delete(ctx context.Context, id uint) error {
	err := r.s.withTx(ctx, func(tx *sqlx.Tx) error {
		var inUse int64
		if err := tx.GetContext(ctx, &inUse, r.s.q("SELECT COUNT(*) FROM websites WHERE category_id = ?"), id); err != nil {
			return err
		}
		if inUse > 0 {
			return repository.ErrCategoryInUse
		}
		n, err := exec(ctx, tx, r.s.q("DELETE FROM categories WHERE id = ?"), id)
		if err != nil {
			return err
		}
		if n == 0 {
			return repository.ErrCategoryNotFound
		}
		return nil
	})
	return observe(ctx, "category", "delete", err)
}

package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

type tagRepo struct{ s *Store }

func (r *tagRepo) FindOrCreate(ctx context.Context, name string) (*domain.Tag, error) {
	tag, err := r.s.findOrCreateTag(ctx, r.s.db, name)
	return tag, observe(ctx, "tag", "find_or_create", mapError(err, nil))
}

func (r *tagRepo) FindByName(ctx context.Context, name string) (*domain.Tag, error) {
	var t domain.Tag
	if err := r.s.db.GetContext(ctx, &t, r.s.q("SELECT id, name, created_at FROM tags WHERE name = ?"), name); err != nil {
		return nil, observe(ctx, "tag", "find_by_name", mapError(err, repository.ErrTagNotFound))
	}
	return &t, observe(ctx, "tag", "find_by_name", nil)
}

func (r *tagRepo) List(ctx context.Context) ([]domain.TagWithUsage, error) {
	var out []domain.TagWithUsage
	err := r.s.db.SelectContext(ctx, &out, `SELECT t.id, t.name, t.created_at,
		(SELECT COUNT(*) FROM website_tags wt WHERE wt.tag_id = t.id) AS website_count
		FROM tags t ORDER BY t.name ASC`)
	return out, observe(ctx, "tag", "list", err)
}

func (r *tagRepo) Delete(ctx context.Context, id uint) error {
	err := r.s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, r.s.q("DELETE FROM website_tags WHERE tag_id = ?"), id); err != nil {
			return err
		}
		n, err := exec(ctx, tx, r.s.q("DELETE FROM tags WHERE id = ?"), id)
		if err != nil {
			return err
		}
		if n == 0 {
			return repository.ErrTagNotFound
		}
		return nil
	})
	return observe(ctx, "tag", "delete", err)
}

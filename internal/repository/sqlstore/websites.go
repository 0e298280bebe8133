package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

type websiteRepo struct{ s *Store }

func (r *websiteRepo) loadByIDs(ctx context.Context, q sqlx.QueryerContext, ids []uint) ([]domain.Website, error) {
	if len(ids) == 0 {
		return []domain.Website{}, nil
	}
	query, args, err := sqlx.In(websiteReadSelect+" WHERE w.id IN (?) ORDER BY w.id, t.name", ids)
	if err != nil {
		return nil, err
	}
	var rows []websiteRow
	if err := sqlx.SelectContext(ctx, q, &rows, r.s.q(query), args...); err != nil {
		return nil, err
	}
	return orderByIDs(groupWebsiteRows(rows), ids), nil
}

func (r *websiteRepo) loadOne(ctx context.Context, op string, where string, arg any) (*domain.Website, error) {
	var ids []uint
	if err := r.s.db.SelectContext(ctx, &ids, r.s.q("SELECT w.id FROM websites w WHERE "+where), arg); err != nil {
		return nil, observe(ctx, "website", op, err)
	}
	items, err := r.loadByIDs(ctx, r.s.db, ids)
	if err != nil {
		return nil, observe(ctx, "website", op, err)
	}
	if len(items) == 0 {
		return nil, observe(ctx, "website", op, repository.ErrWebsiteNotFound)
	}
	return &items[0], observe(ctx, "website", op, nil)
}

func (r *websiteRepo) FindByID(ctx context.Context, id uint) (*domain.Website, error) {
	return r.loadOne(ctx, "find_by_id", "w.id = ?", id)
}

func (r *websiteRepo) FindByURLKey(ctx context.Context, key string) (*domain.Website, error) {
	return r.loadOne(ctx, "find_by_url_key", "w.url_key = ?", key)
}

func (r *websiteRepo) reload(ctx context.Context, w *domain.Website) error {
	loaded, err := r.FindByID(ctx, w.ID)
	if err != nil {
		return err
	}
	*w = *loaded
	return nil
}

func (r *websiteRepo) Create(ctx context.Context, w *domain.Website, tagNames []string) error {
	ts := now()
	err := r.s.withTx(ctx, func(tx *sqlx.Tx) error {
		if w.Status == "" {
			status, err := r.resolveInitialStatus(ctx, tx, w.SubmittedBy)
			if err != nil {
				return err
			}
			w.Status = status
		}
		id, err := r.s.insert(ctx, tx, "websites",
			[]string{"title", "url", "url_key", "description", "favicon_url", "category_id", "status", "submitted_by", "created_at", "updated_at"},
			w.Title, w.URL, w.URLKey, w.Description, w.FaviconURL, w.CategoryID, w.Status, w.SubmittedBy, ts, ts)
		if err != nil {
			return err
		}
		w.ID = id
		return r.s.linkTags(ctx, tx, id, tagNames)
	})
	if err != nil {
		return observe(ctx, "website", "create", mapError(err, nil))
	}
	observe(ctx, "website", "create", nil)
	return r.reload(ctx, w)
}

// resolveInitialStatus reads the auto-approve setting and the submitter's
// trusted flag on the insert transaction.
func (r *websiteRepo) resolveInitialStatus(ctx context.Context, tx *sqlx.Tx, submittedBy *uint) (domain.WebsiteStatus, error) {
	if submittedBy == nil {
		return domain.WebsiteStatusPending, nil
	}
	autoApprove := false
	var setting domain.SystemSetting
	err := tx.GetContext(ctx, &setting, r.s.q("SELECT "+settingColumns+" FROM system_settings WHERE setting_key = ?"), domain.SettingAutoApproveTrustedUsers)
	switch {
	case err == nil:
		autoApprove, _ = setting.BoolValue()
	case !errors.Is(err, sql.ErrNoRows):
		return "", err
	}
	var trusted bool
	if err := tx.GetContext(ctx, &trusted, r.s.q("SELECT trusted FROM users WHERE id = ?"), *submittedBy); err != nil {
		return "", mapError(err, repository.ErrUserNotFound)
	}
	return domain.InitialWebsiteStatus(autoApprove, trusted), nil
}

func (s *Store) linkTags(ctx context.Context, tx *sqlx.Tx, websiteID uint, names []string) error {
	for _, name := range domain.NormalizeTagNames(names) {
		tag, err := s.findOrCreateTag(ctx, tx, name)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(s.d.insertIgnore("website_tags", []string{"website_id", "tag_id"})), websiteID, tag.ID); err != nil {
			return err
		}
	}
	return nil
}

// findOrCreateTag tolerates a concurrent insert of the same name.
func (s *Store) findOrCreateTag(ctx context.Context, e sqlx.ExtContext, name string) (*domain.Tag, error) {
	if _, err := e.ExecContext(ctx, s.q(s.d.insertIgnore("tags", []string{"name", "created_at"})), name, now()); err != nil {
		return nil, err
	}
	var tag domain.Tag
	if err := sqlx.GetContext(ctx, e, &tag, s.q("SELECT id, name, created_at FROM tags WHERE name = ?"), name); err != nil {
		return nil, mapError(err, repository.ErrTagNotFound)
	}
	return &tag, nil
}

func (r *websiteRepo) List(ctx context.Context, q repository.WebsiteQuery) (repository.PageResult[domain.Website], error) {
	page := repository.NormalizePageRequest(q.PageRequest)
	var where filter
	if q.Status != "" {
		where.add("w.status = ?", q.Status)
	}
	if q.CategoryID != 0 {
		where.add("w.category_id = ?", q.CategoryID)
	}
	if q.SubmittedBy != 0 {
		where.add("w.submitted_by = ?", q.SubmittedBy)
	}
	if q.Search != "" {
		p := repository.LikePattern(q.Search)
		esc := " ESCAPE '" + repository.LikeEscape + "'"
		where.add("(LOWER(w.title) LIKE ?"+esc+" OR LOWER(w.description) LIKE ?"+esc+" OR LOWER(w.url) LIKE ?"+esc+")", p, p, p)
	}
	if tag := domain.NormalizeTagName(q.Tag); tag != "" {
		where.add("w.id IN (SELECT wt.website_id FROM website_tags wt JOIN tags t ON t.id = wt.tag_id WHERE t.name = ?)", tag)
	}

	var total int64
	if err := r.s.db.GetContext(ctx, &total, r.s.q("SELECT COUNT(*) FROM websites w"+where.sql()), where.args...); err != nil {
		return repository.PageResult[domain.Website]{}, observe(ctx, "website", "list", err)
	}
	var ids []uint
	query := "SELECT w.id FROM websites w" + where.sql() + " ORDER BY " + q.OrderClause("w") + " LIMIT ? OFFSET ?"
	if err := r.s.db.SelectContext(ctx, &ids, r.s.q(query), append(where.args, page.PageSize, page.Offset())...); err != nil {
		return repository.PageResult[domain.Website]{}, observe(ctx, "website", "list", err)
	}
	items, err := r.loadByIDs(ctx, r.s.db, ids)
	if err != nil {
		return repository.PageResult[domain.Website]{}, observe(ctx, "website", "list", err)
	}
	observe(ctx, "website", "list", nil)
	return repository.NewPageResult(page, items, total), nil
}

func (r *websiteRepo) Update(ctx context.Context, w *domain.Website, tagNames *[]string) error {
	err := r.s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := r.s.updateByID(ctx, tx, "websites", w.ID, repository.ErrWebsiteNotFound,
			"title = ?, url = ?, url_key = ?, description = ?, favicon_url = ?, category_id = ?, status = ?, updated_at = ?",
			w.Title, w.URL, w.URLKey, w.Description, w.FaviconURL, w.CategoryID, w.Status, now())
		if err != nil || tagNames == nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.s.q("DELETE FROM website_tags WHERE website_id = ?"), w.ID); err != nil {
			return err
		}
		return r.s.linkTags(ctx, tx, w.ID, *tagNames)
	})
	if err != nil {
		return observe(ctx, "website", "update", mapError(err, repository.ErrWebsiteNotFound))
	}
	observe(ctx, "website", "update", nil)
	return r.reload(ctx, w)
}

func (r *websiteRepo) SetStatus(ctx context.Context, id uint, status domain.WebsiteStatus) error {
	err := r.s.updateByID(ctx, r.s.db, "websites", id, repository.ErrWebsiteNotFound, "status = ?, updated_at = ?", status, now())
	return observe(ctx, "website", "set_status", err)
}

func (r *websiteRepo) SetFavicon(ctx context.Context, id uint, faviconURL string) error {
	err := r.s.updateByID(ctx, r.s.db, "websites", id, repository.ErrWebsiteNotFound, "favicon_url = ?, updated_at = ?", faviconURL, now())
	return observe(ctx, "website", "set_favicon", err)
}

func (r *websiteRepo) Delete(ctx context.Context, id uint) error {
	err := r.s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, stmt := range []string{
			"DELETE FROM website_tags WHERE website_id = ?",
			"DELETE FROM favorites WHERE website_id = ?",
		} {
			if _, err := tx.ExecContext(ctx, r.s.q(stmt), id); err != nil {
				return err
			}
		}
		n, err := exec(ctx, tx, r.s.q("DELETE FROM websites WHERE id = ?"), id)
		if err != nil {
			return err
		}
		if n == 0 {
			return repository.ErrWebsiteNotFound
		}
		return nil
	})
	return observe(ctx, "website", "delete", err)
}

func (r *websiteRepo) CountByStatus(ctx context.Context) (map[domain.WebsiteStatus]int64, error) {
	var rows []struct {
		Status domain.WebsiteStatus `db:"status"`
		Total  int64                `db:"total"`
	}
	if err := r.s.db.SelectContext(ctx, &rows, "SELECT status, COUNT(*) AS total FROM websites GROUP BY status"); err != nil {
		return nil, observe(ctx, "website", "count_by_status", err)
	}
	out := make(map[domain.WebsiteStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, observe(ctx, "website", "count_by_status", nil)
}

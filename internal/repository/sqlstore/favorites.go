package sqlstore

import (
	"context"

	"github.com/sandeepkv93/sitedeck/internal/domain"
)

type favoriteRepo struct{ s *Store }

func (r *favoriteRepo) Add(ctx context.Context, userID, websiteID uint) (bool, error) {
	n, err := exec(ctx, r.s.db, r.s.q(r.s.d.insertIgnore("favorites", []string{"user_id", "website_id", "created_at"})), userID, websiteID, now())
	if err != nil {
		return false, observe(ctx, "favorite", "add", mapError(err, nil))
	}
	return n > 0, observe(ctx, "favorite", "add", nil)
}

func (r *favoriteRepo) Remove(ctx context.Context, userID, websiteID uint) error {
	_, err := exec(ctx, r.s.db, r.s.q("DELETE FROM favorites WHERE user_id = ? AND website_id = ?"), userID, websiteID)
	return observe(ctx, "favorite", "remove", err)
}

func (r *favoriteRepo) Exists(ctx context.Context, userID, websiteID uint) (bool, error) {
	var n int
	err := r.s.db.GetContext(ctx, &n, r.s.q("SELECT COUNT(*) FROM favorites WHERE user_id = ? AND website_id = ?"), userID, websiteID)
	return n > 0, observe(ctx, "favorite", "exists", err)
}

// ListWebsites returns the user's approved favorites, most recently added first.
func (r *favoriteRepo) ListWebsites(ctx context.Context, userID uint) ([]domain.Website, error) {
	var ids []uint
	err := r.s.db.SelectContext(ctx, &ids, r.s.q(`SELECT w.id FROM favorites f
		JOIN websites w ON w.id = f.website_id
		WHERE f.user_id = ? AND w.status = ?
		ORDER BY f.created_at DESC, w.id DESC`), userID, domain.WebsiteStatusApproved)
	if err != nil {
		return nil, observe(ctx, "favorite", "list_websites", err)
	}
	items, err := r.s.websites.loadByIDs(ctx, r.s.db, ids)
	return items, observe(ctx, "favorite", "list_websites", err)
}

func (r *favoriteRepo) ListWebsiteIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids := []uint{}
	err := r.s.db.SelectContext(ctx, &ids, r.s.q("SELECT website_id FROM favorites WHERE user_id = ? ORDER BY created_at DESC"), userID)
	return ids, observe(ctx, "favorite", "list_website_ids", err)
}

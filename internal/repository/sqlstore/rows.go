package sqlstore

import (
	"database/sql"

	"github.com/sandeepkv93/sitedeck/internal/domain"
)

// websiteRow is one flat row of the website read join: the website, its
// category, its submitter and at most one tag.
type websiteRow struct {
	domain.Website
	CategoryRowID        sql.NullInt64  `db:"c_id"`
	CategoryName         sql.NullString `db:"c_name"`
	CategoryGradientFrom sql.NullString `db:"c_gradient_from"`
	CategoryGradientTo   sql.NullString `db:"c_gradient_to"`
	CategoryCreatedAt    sql.NullTime   `db:"c_created_at"`
	CategoryUpdatedAt    sql.NullTime   `db:"c_updated_at"`
	SubmitterID          sql.NullInt64  `db:"u_id"`
	SubmitterName        sql.NullString `db:"u_name"`
	SubmitterEmail       sql.NullString `db:"u_email"`
	TagID                sql.NullInt64  `db:"t_id"`
	TagName              sql.NullString `db:"t_name"`
	TagCreatedAt         sql.NullTime   `db:"t_created_at"`
}

const websiteReadSelect = `SELECT w.id, w.title, w.url, w.url_key, w.description, w.favicon_url, w.category_id,
	w.status, w.submitted_by, w.created_at, w.updated_at,
	c.id AS c_id, c.name AS c_name, c.gradient_from AS c_gradient_from, c.gradient_to AS c_gradient_to,
	c.created_at AS c_created_at, c.updated_at AS c_updated_at,
	u.id AS u_id, u.name AS u_name, u.email AS u_email,
	t.id AS t_id, t.name AS t_name, t.created_at AS t_created_at
FROM websites w
LEFT JOIN categories c ON c.id = w.category_id
LEFT JOIN users u ON u.id = w.submitted_by
LEFT JOIN website_tags wt ON wt.website_id = w.id
LEFT JOIN tags t ON t.id = wt.tag_id`

// groupWebsiteRows folds join rows back into websites, keeping the order in
// which each website first appears and the row order of its tags.
func groupWebsiteRows(rows []websiteRow) []domain.Website {
	out := make([]domain.Website, 0, len(rows))
	index := make(map[uint]int, len(rows))
	seenTag := make(map[[2]uint]struct{}, len(rows))
	for _, row := range rows {
		pos, ok := index[row.ID]
		if !ok {
			w := row.Website
			w.Tags = []domain.Tag{}
			if row.CategoryRowID.Valid {
				w.Category = &domain.Category{
					ID:           uint(row.CategoryRowID.Int64),
					Name:         row.CategoryName.String,
					GradientFrom: row.CategoryGradientFrom.String,
					GradientTo:   row.CategoryGradientTo.String,
					CreatedAt:    row.CategoryCreatedAt.Time,
					UpdatedAt:    row.CategoryUpdatedAt.Time,
				}
			}
			if row.SubmitterID.Valid {
				w.Submitter = &domain.UserSummary{
					ID:    uint(row.SubmitterID.Int64),
					Name:  row.SubmitterName.String,
					Email: row.SubmitterEmail.String,
				}
			}
			out = append(out, w)
			pos = len(out) - 1
			index[row.ID] = pos
		}
		if !row.TagID.Valid {
			continue
		}
		key := [2]uint{row.ID, uint(row.TagID.Int64)}
		if _, dup := seenTag[key]; dup {
			continue
		}
		seenTag[key] = struct{}{}
		out[pos].Tags = append(out[pos].Tags, domain.Tag{
			ID:        uint(row.TagID.Int64),
			Name:      row.TagName.String,
			CreatedAt: row.TagCreatedAt.Time,
		})
	}
	return out
}

// orderByIDs returns items arranged to follow ids; ids without an item are skipped.
func orderByIDs(items []domain.Website, ids []uint) []domain.Website {
	byID := make(map[uint]domain.Website, len(items))
	for _, w := range items {
		byID[w.ID] = w
	}
	out := make([]domain.Website, 0, len(ids))
	for _, id := range ids {
		if w, ok := byID[id]; ok {
			out = append(out, w)
		}
	}
	return out
}

package sqlstore

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/sitedeck/internal/config"
	"github.com/sandeepkv93/sitedeck/internal/domain"
)

func flatten(items []domain.Website) []websiteRow {
	var rows []websiteRow
	for _, w := range items {
		base := websiteRow{Website: w}
		base.Website.Tags = nil
		base.Website.Category = nil
		base.Website.Submitter = nil
		if w.Category != nil {
			base.CategoryRowID = sql.NullInt64{Int64: int64(w.Category.ID), Valid: true}
			base.CategoryName = sql.NullString{String: w.Category.Name, Valid: true}
			base.CategoryGradientFrom = sql.NullString{String: w.Category.GradientFrom, Valid: true}
			base.CategoryGradientTo = sql.NullString{String: w.Category.GradientTo, Valid: true}
			base.CategoryCreatedAt = sql.NullTime{Time: w.Category.CreatedAt, Valid: true}
			base.CategoryUpdatedAt = sql.NullTime{Time: w.Category.UpdatedAt, Valid: true}
		}
		if w.Submitter != nil {
			base.SubmitterID = sql.NullInt64{Int64: int64(w.Submitter.ID), Valid: true}
			base.SubmitterName = sql.NullString{String: w.Submitter.Name, Valid: true}
			base.SubmitterEmail = sql.NullString{String: w.Submitter.Email, Valid: true}
		}
		if len(w.Tags) == 0 {
			rows = append(rows, base)
			continue
		}
		for _, tag := range w.Tags {
			row := base
			row.TagID = sql.NullInt64{Int64: int64(tag.ID), Valid: true}
			row.TagName = sql.NullString{String: tag.Name, Valid: true}
			row.TagCreatedAt = sql.NullTime{Time: tag.CreatedAt, Valid: true}
			rows = append(rows, row)
		}
	}
	return rows
}

func TestGroupWebsiteRowsReshapesFlatJoin(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	submitter := uint(7)
	cat := &domain.Category{ID: 3, Name: "Dev", GradientFrom: "from-a", GradientTo: "to-b", CreatedAt: ts, UpdatedAt: ts}
	want := []domain.Website{
		{
			ID: 10, Title: "Go", URL: "https://go.dev", URLKey: "go.dev", Description: "lang", CategoryID: 3,
			Status: domain.WebsiteStatusApproved, SubmittedBy: &submitter, CreatedAt: ts, UpdatedAt: ts,
			Category:  cat,
			Tags:      []domain.Tag{{ID: 1, Name: "go", CreatedAt: ts}, {ID: 2, Name: "lang", CreatedAt: ts}},
			Submitter: &domain.UserSummary{ID: 7, Name: "Ann", Email: "ann@example.com"},
		},
		{
			ID: 4, Title: "Bare", URL: "https://bare.example.com", URLKey: "bare.example.com", Description: "no tags",
			CategoryID: 3, Status: domain.WebsiteStatusPending, CreatedAt: ts, UpdatedAt: ts,
			Category: cat,
			Tags:     []domain.Tag{},
		},
	}

	got := groupWebsiteRows(flatten(want))
	require.Len(t, got, 2)
	assert.Equal(t, want, got)
}

func TestGroupWebsiteRowsDropsRepeatedTagRows(t *testing.T) {
	row := websiteRow{Website: domain.Website{ID: 1}}
	row.TagID = sql.NullInt64{Int64: 5, Valid: true}
	row.TagName = sql.NullString{String: "dup", Valid: true}
	got := groupWebsiteRows([]websiteRow{row, row})
	require.Len(t, got, 1)
	assert.Len(t, got[0].Tags, 1)
	assert.Nil(t, got[0].Category)
	assert.Nil(t, got[0].Submitter)
}

func TestOrderByIDs(t *testing.T) {
	items := []domain.Website{{ID: 1}, {ID: 2}, {ID: 3}}
	got := orderByIDs(items, []uint{3, 9, 1})
	require.Len(t, got, 2)
	assert.Equal(t, uint(3), got[0].ID)
	assert.Equal(t, uint(1), got[1].ID)
}

func TestDialectStatements(t *testing.T) {
	pg, err := dialectFor(config.DialectPostgres)
	require.NoError(t, err)
	my, err := dialectFor(config.DialectMySQL)
	require.NoError(t, err)
	lite, err := dialectFor(config.DialectSQLite)
	require.NoError(t, err)

	assert.True(t, pg.returning)
	assert.False(t, my.returning)
	assert.Equal(t, "pgx", pg.driver)

	assert.Equal(t, "INSERT IGNORE INTO favorites (user_id, website_id) VALUES (?, ?)", my.insertIgnore("favorites", []string{"user_id", "website_id"}))
	assert.Equal(t, "INSERT INTO favorites (user_id, website_id) VALUES (?, ?) ON CONFLICT DO NOTHING", lite.insertIgnore("favorites", []string{"user_id", "website_id"}))

	cols := []string{"setting_key", "value"}
	assert.Equal(t, "INSERT INTO s (setting_key, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)", my.upsert("s", cols, "setting_key", []string{"value"}))
	assert.Equal(t, "INSERT INTO s (setting_key, value) VALUES (?, ?) ON CONFLICT (setting_key) DO UPDATE SET value = excluded.value", pg.upsert("s", cols, "setting_key", []string{"value"}))
}

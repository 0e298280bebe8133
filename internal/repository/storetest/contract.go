// Package storetest holds the behavioral suite every repository.Store
// adapter must pass.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

// Factory returns an empty, migrated store. It is invoked once per subtest.
type Factory func(t *testing.T) repository.Store

func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s repository.Store)
	}{
		{"users", testUsers},
		{"categories", testCategories},
		{"website auto approval", testWebsiteAutoApproval},
		{"website tags", testWebsiteTags},
		{"website listing", testWebsiteListing},
		{"website delete", testWebsiteDelete},
		{"tags", testTags},
		{"favorites", testFavorites},
		{"settings", testSettings},
		{"sessions", testSessions},
		{"password resets", testPasswordResets},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func mustUser(t *testing.T, s repository.Store, email string, role domain.Role, trusted bool) *domain.User {
	t.Helper()
	u := &domain.User{
		Email:        email,
		Name:         "User " + email,
		Role:         role,
		Status:       domain.UserStatusActive,
		Trusted:      trusted,
		PasswordHash: "hash",
	}
	require.NoError(t, s.Users().Create(context.Background(), u))
	require.NotZero(t, u.ID)
	return u
}

func mustCategory(t *testing.T, s repository.Store, name string) *domain.Category {
	t.Helper()
	c := &domain.Category{Name: name, GradientFrom: "from-blue-500", GradientTo: "to-cyan-500"}
	require.NoError(t, s.Categories().Create(context.Background(), c))
	require.NotZero(t, c.ID)
	return c
}

func newWebsite(t *testing.T, title, rawURL string, categoryID uint, submitter *domain.User) *domain.Website {
	t.Helper()
	key, err := domain.URLKey(rawURL)
	require.NoError(t, err)
	w := &domain.Website{
		Title:       title,
		URL:         rawURL,
		URLKey:      key,
		Description: title + " description",
		CategoryID:  categoryID,
	}
	if submitter != nil {
		id := submitter.ID
		w.SubmittedBy = &id
	}
	return w
}

func mustWebsite(t *testing.T, s repository.Store, title, rawURL string, categoryID uint, status domain.WebsiteStatus, tags ...string) *domain.Website {
	t.Helper()
	w := newWebsite(t, title, rawURL, categoryID, nil)
	w.Status = status
	require.NoError(t, s.Websites().Create(context.Background(), w, tags))
	return w
}

func setAutoApprove(t *testing.T, s repository.Store, on bool) {
	t.Helper()
	require.NoError(t, s.Settings().Upsert(context.Background(), &domain.SystemSetting{
		Key:   domain.SettingAutoApproveTrustedUsers,
		Value: domain.BoolSettingValue(on),
	}))
}

func testUsers(t *testing.T, s repository.Store) {
	ctx := context.Background()
	users := s.Users()
	alice := mustUser(t, s, "alice@example.com", domain.RoleUser, false)
	mustUser(t, s, "bob@example.com", domain.RoleAdmin, false)

	dup := &domain.User{Email: "alice@example.com", Name: "Dup", Role: domain.RoleUser, Status: domain.UserStatusActive, PasswordHash: "x"}
	assert.ErrorIs(t, users.Create(ctx, dup), repository.ErrDuplicate)

	byEmail, err := users.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	_, err = users.FindByID(ctx, 9999)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	_, err = users.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	require.NoError(t, users.SetRole(ctx, alice.ID, domain.RoleAdmin))
	require.NoError(t, users.SetStatus(ctx, alice.ID, domain.UserStatusInactive))
	require.NoError(t, users.SetTrusted(ctx, alice.ID, true))
	require.NoError(t, users.UpdatePassword(ctx, alice.ID, "new-hash"))
	require.NoError(t, users.TouchLastLogin(ctx, alice.ID, time.Now().UTC()))
	// Repeating a write that changes nothing is still a success.
	require.NoError(t, users.SetTrusted(ctx, alice.ID, true))

	got, err := users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.Equal(t, domain.UserStatusInactive, got.Status)
	assert.True(t, got.Trusted)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.NotNil(t, got.LastLoginAt)

	got.Name = "Alice Renamed"
	require.NoError(t, users.Update(ctx, got))
	renamed, err := users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Renamed", renamed.Name)

	assert.ErrorIs(t, users.SetRole(ctx, 9999, domain.RoleUser), repository.ErrUserNotFound)

	page, err := users.List(ctx, repository.UserListQuery{Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	page, err = users.List(ctx, repository.UserListQuery{Email: "BOB", PageRequest: repository.PageRequest{Page: 1, PageSize: 1}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "bob@example.com", page.Items[0].Email)
	assert.Equal(t, 1, page.TotalPages)

	page, err = users.List(ctx, repository.UserListQuery{Status: domain.UserStatusInactive})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, alice.ID, page.Items[0].ID)

	counts, err := users.CountByRole(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[domain.RoleAdmin])
	assert.EqualValues(t, 0, counts[domain.RoleUser])
}

func testCategories(t *testing.T, s repository.Store) {
	ctx := context.Background()
	cats := s.Categories()
	dev := mustCategory(t, s, "Development")
	design := mustCategory(t, s, "Design")
	assert.ErrorIs(t, cats.Create(ctx, &domain.Category{Name: "Design"}), repository.ErrDuplicate)

	mustWebsite(t, s, "Go", "https://go.dev", dev.ID, domain.WebsiteStatusApproved)
	mustWebsite(t, s, "Pkg", "https://pkg.go.dev", dev.ID, domain.WebsiteStatusPending)

	usage, err := cats.ListWithUsage(ctx)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	counts := map[string]int64{}
	for _, u := range usage {
		counts[u.Name] = u.WebsiteCount
	}
	assert.Equal(t, map[string]int64{"Development": 2, "Design": 0}, counts)
	assert.Equal(t, "Design", usage[0].Name, "categories are listed by name")

	assert.ErrorIs(t, cats.Delete(ctx, dev.ID), repository.ErrCategoryInUse)
	still, err := cats.FindByID(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Development", still.Name)

	design.Name = "UI Design"
	design.GradientTo = "to-pink-500"
	require.NoError(t, cats.Update(ctx, design))
	reloaded, err := cats.FindByID(ctx, design.ID)
	require.NoError(t, err)
	assert.Equal(t, "UI Design", reloaded.Name)
	assert.Equal(t, "to-pink-500", reloaded.GradientTo)

	require.NoError(t, cats.Delete(ctx, design.ID))
	_, err = cats.FindByID(ctx, design.ID)
	assert.ErrorIs(t, err, repository.ErrCategoryNotFound)
	assert.ErrorIs(t, cats.Delete(ctx, design.ID), repository.ErrCategoryNotFound)
	assert.ErrorIs(t, cats.Update(ctx, &domain.Category{ID: 9999, Name: "x"}), repository.ErrCategoryNotFound)

	all, err := cats.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func testWebsiteAutoApproval(t *testing.T, s repository.Store) {
	ctx := context.Background()
	cat := mustCategory(t, s, "Tools")
	trusted := mustUser(t, s, "trusted@example.com", domain.RoleUser, true)
	plain := mustUser(t, s, "plain@example.com", domain.RoleUser, false)

	submit := func(n int, by *domain.User) domain.WebsiteStatus {
		t.Helper()
		w := newWebsite(t, fmt.Sprintf("Site %d", n), fmt.Sprintf("https://site%d.example.com", n), cat.ID, by)
		require.NoError(t, s.Websites().Create(ctx, w, nil))
		return w.Status
	}

	assert.Equal(t, domain.WebsiteStatusPending, submit(1, trusted), "no setting row means no auto approval")

	setAutoApprove(t, s, false)
	assert.Equal(t, domain.WebsiteStatusPending, submit(2, trusted))
	assert.Equal(t, domain.WebsiteStatusPending, submit(3, plain))

	setAutoApprove(t, s, true)
	assert.Equal(t, domain.WebsiteStatusApproved, submit(4, trusted))
	assert.Equal(t, domain.WebsiteStatusPending, submit(5, plain))

	anonymous := newWebsite(t, "Anon", "https://anon.example.com", cat.ID, nil)
	require.NoError(t, s.Websites().Create(ctx, anonymous, nil))
	assert.Equal(t, domain.WebsiteStatusPending, anonymous.Status)

	ghost := &domain.User{ID: 9999}
	err := s.Websites().Create(ctx, newWebsite(t, "Ghost", "https://ghost.example.com", cat.ID, ghost), nil)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	_, err = s.Websites().FindByURLKey(ctx, "ghost.example.com")
	assert.ErrorIs(t, err, repository.ErrWebsiteNotFound, "failed create leaves no row")
}

func testWebsiteTags(t *testing.T, s repository.Store) {
	ctx := context.Background()
	cat := mustCategory(t, s, "Reference")
	author := mustUser(t, s, "author@example.com", domain.RoleUser, false)

	w := newWebsite(t, "MDN", "https://developer.mozilla.org/", cat.ID, author)
	require.NoError(t, s.Websites().Create(ctx, w, []string{"Docs", " docs ", "Web  Platform"}))
	require.NotZero(t, w.ID)
	assert.Equal(t, []string{"docs", "web platform"}, w.TagNames())
	require.NotNil(t, w.Category)
	assert.Equal(t, "Reference", w.Category.Name)
	require.NotNil(t, w.Submitter)
	assert.Equal(t, author.ID, w.Submitter.ID)
	assert.Equal(t, author.Email, w.Submitter.Email)

	dup := newWebsite(t, "MDN again", "http://www.developer.mozilla.org", cat.ID, nil)
	assert.ErrorIs(t, s.Websites().Create(ctx, dup, nil), repository.ErrDuplicate)

	byKey, err := s.Websites().FindByURLKey(ctx, w.URLKey)
	require.NoError(t, err)
	assert.Equal(t, w.ID, byKey.ID)

	w.Title = "MDN Web Docs"
	require.NoError(t, s.Websites().Update(ctx, w, nil))
	assert.Equal(t, "MDN Web Docs", w.Title)
	assert.Equal(t, []string{"docs", "web platform"}, w.TagNames(), "nil tag list keeps tags")

	replacement := []string{"reference", "docs"}
	require.NoError(t, s.Websites().Update(ctx, w, &replacement))
	assert.Equal(t, []string{"docs", "reference"}, w.TagNames())

	empty := []string{}
	require.NoError(t, s.Websites().Update(ctx, w, &empty))
	assert.Empty(t, w.TagNames())
	assert.NotNil(t, w.Tags)

	require.NoError(t, s.Websites().SetFavicon(ctx, w.ID, "https://cdn.example.com/mdn.png"))
	require.NoError(t, s.Websites().SetStatus(ctx, w.ID, domain.WebsiteStatusApproved))
	got, err := s.Websites().FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/mdn.png", got.FaviconURL)
	assert.Equal(t, domain.WebsiteStatusApproved, got.Status)

	assert.ErrorIs(t, s.Websites().SetStatus(ctx, 9999, domain.WebsiteStatusApproved), repository.ErrWebsiteNotFound)
	missing := *w
	missing.ID = 9999
	assert.ErrorIs(t, s.Websites().Update(ctx, &missing, nil), repository.ErrWebsiteNotFound)
}

func testWebsiteListing(t *testing.T, s repository.Store) {
	ctx := context.Background()
	dev := mustCategory(t, s, "Development")
	news := mustCategory(t, s, "News")
	author := mustUser(t, s, "author@example.com", domain.RoleUser, false)

	mustWebsite(t, s, "Alpha 100% Go", "https://alpha.example.com", dev.ID, domain.WebsiteStatusApproved, "go")
	mustWebsite(t, s, "Beta", "https://beta.example.com", dev.ID, domain.WebsiteStatusPending, "go", "tools")
	mustWebsite(t, s, "Gamma", "https://gamma.example.com", news.ID, domain.WebsiteStatusApproved)
	mine := newWebsite(t, "Delta", "https://delta.example.com", news.ID, author)
	mine.Status = domain.WebsiteStatusRejected
	require.NoError(t, s.Websites().Create(ctx, mine, nil))

	list := func(q repository.WebsiteQuery) []string {
		t.Helper()
		page, err := s.Websites().List(ctx, q)
		require.NoError(t, err)
		titles := make([]string, 0, len(page.Items))
		for _, w := range page.Items {
			titles = append(titles, w.Title)
		}
		return titles
	}

	assert.Equal(t, []string{"Alpha 100% Go", "Gamma"}, list(repository.WebsiteQuery{Status: domain.WebsiteStatusApproved, SortBy: repository.WebsiteSortTitle}))
	assert.Equal(t, []string{"Beta", "Alpha 100% Go"}, list(repository.WebsiteQuery{CategoryID: dev.ID, SortBy: repository.WebsiteSortTitle, SortDesc: true}))
	assert.Equal(t, []string{"Alpha 100% Go"}, list(repository.WebsiteQuery{Search: "100%"}))
	assert.Empty(t, list(repository.WebsiteQuery{Search: "10_%"}))
	assert.Equal(t, []string{"Gamma"}, list(repository.WebsiteQuery{Search: "GAMMA.example"}))
	assert.Equal(t, []string{"Alpha 100% Go", "Beta"}, list(repository.WebsiteQuery{Tag: "Go", SortBy: repository.WebsiteSortTitle}))
	assert.Equal(t, []string{"Delta"}, list(repository.WebsiteQuery{SubmittedBy: author.ID}))

	page, err := s.Websites().List(ctx, repository.WebsiteQuery{
		PageRequest: repository.PageRequest{Page: 2, PageSize: 3},
		SortBy:      repository.WebsiteSortTitle,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Gamma", page.Items[0].Title)

	page, err = s.Websites().List(ctx, repository.WebsiteQuery{Tag: "go", SortBy: repository.WebsiteSortTitle})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, []string{"go", "tools"}, page.Items[1].TagNames(), "filtering by one tag still returns every tag")
	assert.Equal(t, "Development", page.Items[1].Category.Name)

	counts, err := s.Websites().CountByStatus(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[domain.WebsiteStatusApproved])
	assert.EqualValues(t, 1, counts[domain.WebsiteStatusPending])
	assert.EqualValues(t, 1, counts[domain.WebsiteStatusRejected])
}

func testWebsiteDelete(t *testing.T, s repository.Store) {
	ctx := context.Background()
	cat := mustCategory(t, s, "Misc")
	u := mustUser(t, s, "fan@example.com", domain.RoleUser, false)
	w := mustWebsite(t, s, "Doomed", "https://doomed.example.com", cat.ID, domain.WebsiteStatusApproved, "temp")
	_, err := s.Favorites().Add(ctx, u.ID, w.ID)
	require.NoError(t, err)

	require.NoError(t, s.Websites().Delete(ctx, w.ID))
	_, err = s.Websites().FindByID(ctx, w.ID)
	assert.ErrorIs(t, err, repository.ErrWebsiteNotFound)
	ids, err := s.Favorites().ListWebsiteIDs(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.ErrorIs(t, s.Websites().Delete(ctx, w.ID), repository.ErrWebsiteNotFound)

	require.NoError(t, s.Categories().Delete(ctx, cat.ID), "category is free once its websites are gone")
}

func testTags(t *testing.T, s repository.Store) {
	ctx := context.Background()
	tags := s.Tags()
	first, err := tags.FindOrCreate(ctx, "golang")
	require.NoError(t, err)
	again, err := tags.FindOrCreate(ctx, "golang")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	cat := mustCategory(t, s, "Dev")
	mustWebsite(t, s, "One", "https://one.example.com", cat.ID, domain.WebsiteStatusApproved, "golang", "cli")
	mustWebsite(t, s, "Two", "https://two.example.com", cat.ID, domain.WebsiteStatusApproved, "golang")

	usage, err := tags.List(ctx)
	require.NoError(t, err)
	got := map[string]int64{}
	for _, tg := range usage {
		got[tg.Name] = tg.WebsiteCount
	}
	assert.Equal(t, map[string]int64{"cli": 1, "golang": 2}, got)

	byName, err := tags.FindByName(ctx, "cli")
	require.NoError(t, err)
	require.NoError(t, tags.Delete(ctx, byName.ID))
	_, err = tags.FindByName(ctx, "cli")
	assert.ErrorIs(t, err, repository.ErrTagNotFound)
	assert.ErrorIs(t, tags.Delete(ctx, byName.ID), repository.ErrTagNotFound)

	page, err := s.Websites().List(ctx, repository.WebsiteQuery{Search: "one"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, []string{"golang"}, page.Items[0].TagNames())
}

func testFavorites(t *testing.T, s repository.Store) {
	ctx := context.Background()
	favs := s.Favorites()
	u := mustUser(t, s, "fan@example.com", domain.RoleUser, false)
	cat := mustCategory(t, s, "Fun")
	a := mustWebsite(t, s, "A", "https://a.example.com", cat.ID, domain.WebsiteStatusApproved)
	b := mustWebsite(t, s, "B", "https://b.example.com", cat.ID, domain.WebsiteStatusApproved)
	p := mustWebsite(t, s, "P", "https://p.example.com", cat.ID, domain.WebsiteStatusPending)

	created, err := favs.Add(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = favs.Add(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, created, "second add is a no-op")

	ids, err := favs.ListWebsiteIDs(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID}, ids)

	_, err = favs.Add(ctx, u.ID, b.ID)
	require.NoError(t, err)
	_, err = favs.Add(ctx, u.ID, p.ID)
	require.NoError(t, err)

	listed, err := favs.ListWebsites(ctx, u.ID)
	require.NoError(t, err)
	titles := []string{}
	for _, w := range listed {
		titles = append(titles, w.Title)
	}
	assert.ElementsMatch(t, []string{"A", "B"}, titles, "pending websites are hidden")

	exists, err := favs.Exists(ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, favs.Remove(ctx, u.ID, b.ID))
	require.NoError(t, favs.Remove(ctx, u.ID, b.ID))
	exists, err = favs.Exists(ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func testSettings(t *testing.T, s repository.Store) {
	ctx := context.Background()
	settings := s.Settings()
	_, err := settings.Get(ctx, domain.SettingSiteName)
	assert.ErrorIs(t, err, repository.ErrSettingNotFound)

	require.NoError(t, settings.Upsert(ctx, &domain.SystemSetting{Key: domain.SettingSiteName, Value: domain.JSONValue(`"Sitedeck"`), Description: "Display name"}))
	require.NoError(t, settings.Upsert(ctx, &domain.SystemSetting{Key: domain.SettingSiteName, Value: domain.JSONValue(`"Renamed"`), Description: "Display name"}))
	setAutoApprove(t, s, true)

	got, err := settings.Get(ctx, domain.SettingSiteName)
	require.NoError(t, err)
	assert.JSONEq(t, `"Renamed"`, string(got.Value))
	assert.Equal(t, "Display name", got.Description)

	all, err := settings.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.SettingAutoApproveTrustedUsers, all[0].Key)
	on, ok := all[0].BoolValue()
	assert.True(t, ok)
	assert.True(t, on)

	require.NoError(t, settings.Delete(ctx, domain.SettingSiteName))
	assert.ErrorIs(t, settings.Delete(ctx, domain.SettingSiteName), repository.ErrSettingNotFound)
}

func testSessions(t *testing.T, s repository.Store) {
	ctx := context.Background()
	sessions := s.Sessions()
	u := mustUser(t, s, "session@example.com", domain.RoleUser, false)
	now := time.Now().UTC()

	live := &domain.Session{TokenID: "jti-live", TokenHash: "h1", UserID: u.ID, UserAgent: "ua", IP: "10.0.0.1", ExpiresAt: now.Add(time.Hour)}
	stale := &domain.Session{TokenID: "jti-stale", TokenHash: "h2", UserID: u.ID, ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, sessions.Create(ctx, live))
	require.NoError(t, sessions.Create(ctx, stale))
	assert.ErrorIs(t, sessions.Create(ctx, &domain.Session{TokenID: "jti-live", TokenHash: "h3", UserID: u.ID, ExpiresAt: now}), repository.ErrDuplicate)

	got, err := sessions.FindByTokenID(ctx, "jti-live")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)
	assert.Equal(t, "10.0.0.1", got.IP)
	assert.False(t, got.Expired(now))

	removed, err := sessions.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
	_, err = sessions.FindByTokenID(ctx, "jti-stale")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)

	require.NoError(t, sessions.Create(ctx, &domain.Session{TokenID: "jti-other", TokenHash: "h4", UserID: u.ID, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, sessions.DeleteByTokenID(ctx, "jti-other"))
	require.NoError(t, sessions.DeleteByTokenID(ctx, "jti-other"))

	revoked, err := sessions.DeleteByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, revoked)
}

func testPasswordResets(t *testing.T, s repository.Store) {
	ctx := context.Background()
	resets := s.PasswordResets()
	u := mustUser(t, s, "reset@example.com", domain.RoleUser, false)
	now := time.Now().UTC()

	valid := &domain.PasswordResetToken{UserID: u.ID, TokenHash: "valid", ExpiresAt: now.Add(time.Hour)}
	expired := &domain.PasswordResetToken{UserID: u.ID, TokenHash: "expired", ExpiresAt: now.Add(-time.Minute)}
	require.NoError(t, resets.Create(ctx, valid))
	require.NoError(t, resets.Create(ctx, expired))

	_, err := resets.FindValidByHash(ctx, "expired", now)
	assert.ErrorIs(t, err, repository.ErrPasswordResetNotFound)

	got, err := resets.FindValidByHash(ctx, "valid", now)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)

	require.NoError(t, resets.MarkUsed(ctx, got.ID, now))
	assert.ErrorIs(t, resets.MarkUsed(ctx, got.ID, now), repository.ErrPasswordResetNotFound)
	_, err = resets.FindValidByHash(ctx, "valid", now)
	assert.ErrorIs(t, err, repository.ErrPasswordResetNotFound)

	require.NoError(t, resets.DeleteByUserID(ctx, u.ID))
}

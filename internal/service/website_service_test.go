package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

func countWebsites(t *testing.T, f *serviceFixture) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&domain.Website{}).Count(&n).Error; err != nil {
		t.Fatalf("count websites: %v", err)
	}
	return n
}

func TestSubmitRejectsMissingRequiredFields(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "submitter@example.com", domain.RoleUser, domain.UserStatusActive, false)
	cat := f.firstCategory(t)
	valid := WebsiteInput{Title: "Go", URL: "https://go.dev", Description: "The Go language", CategoryID: cat.ID}

	tests := []struct {
		name  string
		mut   func(in *WebsiteInput)
		field string
	}{
		{name: "title", mut: func(in *WebsiteInput) { in.Title = "" }, field: "title"},
		{name: "markup-only title", mut: func(in *WebsiteInput) { in.Title = "<script></script>" }, field: "title"},
		{name: "url", mut: func(in *WebsiteInput) { in.URL = "" }, field: "url"},
		{name: "non-http url", mut: func(in *WebsiteInput) { in.URL = "ftp://go.dev" }, field: "url"},
		{name: "description", mut: func(in *WebsiteInput) { in.Description = " " }, field: "description"},
		{name: "category", mut: func(in *WebsiteInput) { in.CategoryID = 0 }, field: "category_id"},
		{name: "unknown category", mut: func(in *WebsiteInput) { in.CategoryID = 9999 }, field: "category_id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mut(&in)
			_, err := f.websites.Submit(ctx, user, in)
			var vErr *ValidationError
			if !errors.As(err, &vErr) || vErr.Field != tc.field {
				t.Fatalf("expected validation error on %q, got %v", tc.field, err)
			}
		})
	}
	if n := countWebsites(t, f); n != 0 {
		t.Fatalf("expected no rows after rejected submissions, got %d", n)
	}
}

func TestSubmitRejectsURLsBeyondColumnWidths(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "long@example.com", domain.RoleUser, domain.UserStatusActive, false)
	cat := f.firstCategory(t)

	// Fits the 2048 url limit but not the 768-byte url_key column.
	longPath := "https://example.com/" + strings.Repeat("a", domain.MaxURLKeyLength)
	_, err := f.websites.Submit(ctx, user, WebsiteInput{Title: "Long", URL: longPath, Description: "d", CategoryID: cat.ID})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "url" {
		t.Fatalf("expected url validation error, got %v", err)
	}
	if _, err := f.websites.CheckDuplicate(ctx, longPath); !errors.As(err, &vErr) {
		t.Fatalf("expected duplicate check to reject the same url, got %v", err)
	}

	// Escaping can grow a URL past the url column after validation.
	escaped := "https://example.com/" + strings.Repeat(" a", 600)
	if _, err := f.websites.Submit(ctx, user, WebsiteInput{Title: "Spaces", URL: escaped, Description: "d", CategoryID: cat.ID}); !errors.As(err, &vErr) || vErr.Field != "url" {
		t.Fatalf("expected url validation error for escaped length, got %v", err)
	}

	fits := "https://example.com/" + strings.Repeat("a", domain.MaxURLKeyLength-len("example.com/"))
	if _, err := f.websites.Submit(ctx, user, WebsiteInput{Title: "Fits", URL: fits, Description: "d", CategoryID: cat.ID}); err != nil {
		t.Fatalf("expected a key of exactly %d bytes to be accepted: %v", domain.MaxURLKeyLength, err)
	}
	if n := countWebsites(t, f); n != 1 {
		t.Fatalf("expected only the fitting url to be stored, got %d rows", n)
	}
}

func TestOversizedTagsAreRejected(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	admin := f.createUser(t, "tags@example.com", domain.RoleAdmin, domain.UserStatusActive, false)
	cat := f.firstCategory(t)
	long := strings.Repeat("x", domain.MaxTagLength+1)

	_, err := f.websites.Submit(ctx, admin, WebsiteInput{
		Title: "Tagged", URL: "https://tagged.example", Description: "d", CategoryID: cat.ID,
		Tags: []string{"go", long},
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "tags" {
		t.Fatalf("expected tags validation error on submit, got %v", err)
	}
	if n := countWebsites(t, f); n != 0 {
		t.Fatalf("expected no row after rejected submit, got %d", n)
	}

	w := f.submit(t, admin, "Plain", "https://plain.example")
	tags := []string{long}
	if _, err := f.websites.Update(ctx, admin, w.ID, WebsitePatch{Tags: &tags}); !errors.As(err, &vErr) || vErr.Field != "tags" {
		t.Fatalf("expected tags validation error on update, got %v", err)
	}
}

func TestSubmitInitialStatus(t *testing.T) {
	tests := []struct {
		name        string
		autoApprove bool
		trusted     bool
		want        domain.WebsiteStatus
	}{
		{name: "trusted with auto approve", autoApprove: true, trusted: true, want: domain.WebsiteStatusApproved},
		{name: "trusted without auto approve", autoApprove: false, trusted: true, want: domain.WebsiteStatusPending},
		{name: "untrusted with auto approve", autoApprove: true, trusted: false, want: domain.WebsiteStatusPending},
		{name: "untrusted without auto approve", autoApprove: false, trusted: false, want: domain.WebsiteStatusPending},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newServiceFixture(t)
			f.setBool(t, domain.SettingAutoApproveTrustedUsers, tc.autoApprove)
			u := f.createUser(t, "s@example.com", domain.RoleUser, domain.UserStatusActive, tc.trusted)
			w := f.submit(t, u, "Example", "https://example.com")
			if w.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, w.Status)
			}
			stored, err := f.store.Websites().FindByID(context.Background(), w.ID)
			if err != nil || stored.Status != tc.want {
				t.Fatalf("expected stored status %s, got %+v / %v", tc.want, stored, err)
			}
		})
	}
}

func TestSubmitClosedForNonStaff(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.setBool(t, domain.SettingAllowWebsiteSubmission, false)
	user := f.createUser(t, "u@example.com", domain.RoleUser, domain.UserStatusActive, true)
	admin := f.createUser(t, "a@example.com", domain.RoleAdmin, domain.UserStatusActive, false)
	in := WebsiteInput{Title: "Go", URL: "https://go.dev", Description: "Go", CategoryID: f.firstCategory(t).ID}

	if _, err := f.websites.Submit(ctx, user, in); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden while submissions are closed, got %v", err)
	}
	if _, err := f.websites.Submit(ctx, admin, in); err != nil {
		t.Fatalf("staff may still submit: %v", err)
	}
	if _, err := f.websites.Submit(ctx, nil, in); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for anonymous, got %v", err)
	}
}

func TestSubmitDuplicateURL(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "dup@example.com", domain.RoleUser, domain.UserStatusActive, false)
	first := f.submit(t, user, "Go Home", "https://go.dev/")

	check, err := f.websites.CheckDuplicate(ctx, "http://www.GO.dev")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !check.IsDuplicate || check.Existing == nil || check.Existing.Title != "Go Home" || check.Existing.ID != first.ID {
		t.Fatalf("expected duplicate match on the existing title, got %+v", check)
	}
	if check.Existing.SubmittedBy == nil || check.Existing.SubmittedBy.ID != user.ID {
		t.Fatalf("expected submitter summary, got %+v", check.Existing.SubmittedBy)
	}

	_, err = f.websites.Submit(ctx, user, WebsiteInput{Title: "Again", URL: "https://go.dev", Description: "dup", CategoryID: first.CategoryID})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "url" || !strings.Contains(vErr.Message, "Go Home") {
		t.Fatalf("expected duplicate validation error naming the existing title, got %v", err)
	}
	if n := countWebsites(t, f); n != 1 {
		t.Fatalf("expected one row, got %d", n)
	}

	unique, err := f.websites.CheckDuplicate(ctx, "https://pkg.go.dev")
	if err != nil || unique.IsDuplicate {
		t.Fatalf("expected unique url, got %+v / %v", unique, err)
	}
	if _, err := f.websites.CheckDuplicate(ctx, "not a url"); err == nil {
		t.Fatal("expected validation error for an invalid url")
	}
}

func TestApproveMakesWebsitePublic(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "u@example.com", domain.RoleUser, domain.UserStatusActive, false)
	admin := f.createUser(t, "a@example.com", domain.RoleAdmin, domain.UserStatusActive, false)
	w := f.submit(t, user, "Pending Site", "https://pending.example")
	if w.Status != domain.WebsiteStatusPending {
		t.Fatalf("expected pending, got %s", w.Status)
	}

	public, err := f.websites.List(ctx, nil, WebsiteFilter{})
	if err != nil || public.Total != 0 {
		t.Fatalf("expected empty public listing, got %d / %v", public.Total, err)
	}
	if _, err := f.websites.Get(ctx, nil, w.ID); !errors.Is(err, repository.ErrWebsiteNotFound) {
		t.Fatalf("pending site must be hidden from anonymous viewers, got %v", err)
	}
	if got, err := f.websites.Get(ctx, user, w.ID); err != nil || got.ID != w.ID {
		t.Fatalf("submitter should see own pending site, got %v", err)
	}

	if _, err := f.websites.Approve(ctx, user, w.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for non-staff approve, got %v", err)
	}
	approved, err := f.websites.Approve(ctx, admin, w.ID)
	if err != nil || approved.Status != domain.WebsiteStatusApproved {
		t.Fatalf("approve: %+v / %v", approved, err)
	}

	public, err = f.websites.List(ctx, nil, WebsiteFilter{})
	if err != nil || public.Total != 1 || public.Items[0].ID != w.ID {
		t.Fatalf("expected approved site in public listing, got %+v / %v", public, err)
	}
}

func TestListVisibilityRules(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice@example.com", domain.RoleUser, domain.UserStatusActive, false)
	bob := f.createUser(t, "bob@example.com", domain.RoleUser, domain.UserStatusActive, false)
	admin := f.createUser(t, "admin@example.com", domain.RoleAdmin, domain.UserStatusActive, false)
	pending := f.submit(t, alice, "Alice Pending", "https://alice.example")
	rejected := f.submit(t, alice, "Alice Rejected", "https://alice-two.example")
	if _, err := f.websites.Reject(ctx, admin, rejected.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	own, err := f.websites.List(ctx, alice, WebsiteFilter{SubmittedBy: alice.ID})
	if err != nil || own.Total != 2 {
		t.Fatalf("expected alice to see both submissions, got %d / %v", own.Total, err)
	}
	other, err := f.websites.List(ctx, bob, WebsiteFilter{SubmittedBy: alice.ID, Status: domain.WebsiteStatusPending})
	if err != nil || other.Total != 0 {
		t.Fatalf("bob must not see alice's unapproved submissions, got %d / %v", other.Total, err)
	}
	staff, err := f.websites.List(ctx, admin, WebsiteFilter{Status: domain.WebsiteStatusPending})
	if err != nil || staff.Total != 1 || staff.Items[0].ID != pending.ID {
		t.Fatalf("staff should filter by pending, got %+v / %v", staff, err)
	}
	if _, err := f.websites.List(ctx, admin, WebsiteFilter{Status: "bogus"}); err == nil {
		t.Fatal("expected invalid status filter to fail")
	}
}

func TestUpdateWebsite(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	admin := f.createUser(t, "a@example.com", domain.RoleAdmin, domain.UserStatusActive, false)
	user := f.createUser(t, "u@example.com", domain.RoleUser, domain.UserStatusActive, false)
	one := f.submit(t, admin, "One", "https://one.example")
	f.submit(t, admin, "Two", "https://two.example")

	title := "One, renamed"
	tags := []string{"Go", " tools ", "go"}
	status := domain.WebsiteStatusRejected
	if _, err := f.websites.Update(ctx, user, one.ID, WebsitePatch{Title: &title}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	got, err := f.websites.Update(ctx, admin, one.ID, WebsitePatch{Title: &title, Tags: &tags, Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != title || got.Status != status {
		t.Fatalf("unexpected update result %+v", got)
	}
	if names := got.TagNames(); len(names) != 2 {
		t.Fatalf("expected deduplicated tags, got %v", names)
	}

	clash := "https://www.two.example/"
	_, err = f.websites.Update(ctx, admin, one.ID, WebsitePatch{URL: &clash})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "url" {
		t.Fatalf("expected duplicate url on update, got %v", err)
	}
	empty := ""
	if _, err := f.websites.Update(ctx, admin, one.ID, WebsitePatch{Description: &empty}); !errors.As(err, &vErr) {
		t.Fatalf("expected description to stay required, got %v", err)
	}
	if _, err := f.websites.Update(ctx, admin, 9999, WebsitePatch{Title: &title}); !errors.Is(err, repository.ErrWebsiteNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBulkSetStatusReportsPerItem(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	admin := f.createUser(t, "a@example.com", domain.RoleAdmin, domain.UserStatusActive, false)
	a := f.submit(t, admin, "A", "https://a.example")
	b := f.submit(t, admin, "B", "https://b.example")

	res, err := f.websites.BulkSetStatus(ctx, admin, []uint{a.ID, 4242, b.ID, a.ID}, domain.WebsiteStatusApproved)
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if res.Total != 3 || res.Succeeded != 2 || res.Failed != 1 {
		t.Fatalf("unexpected summary %+v", res)
	}
	for _, item := range res.Results {
		if item.ID == 4242 && (item.Success || item.Error != "not found") {
			t.Fatalf("expected not found for missing id, got %+v", item)
		}
	}
	for _, id := range []uint{a.ID, b.ID} {
		w, _ := f.store.Websites().FindByID(ctx, id)
		if w.Status != domain.WebsiteStatusApproved {
			t.Fatalf("website %d not approved despite partial failure", id)
		}
	}

	if _, err := f.websites.BulkSetStatus(ctx, admin, nil, domain.WebsiteStatusApproved); err == nil {
		t.Fatal("expected empty id list to fail validation")
	}
	if _, err := f.websites.BulkSetStatus(ctx, admin, []uint{a.ID}, "bogus"); err == nil {
		t.Fatal("expected invalid status to fail validation")
	}
}

func TestBulkDeleteWebsites(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	admin := f.createUser(t, "a@example.com", domain.RoleAdmin, domain.UserStatusActive, false)
	user := f.createUser(t, "u@example.com", domain.RoleUser, domain.UserStatusActive, false)
	a := f.submit(t, admin, "A", "https://a.example")

	if _, err := f.websites.BulkDelete(ctx, user, []uint{a.ID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	res, err := f.websites.BulkDelete(ctx, admin, []uint{a.ID, 777})
	if err != nil || res.Succeeded != 1 || res.Failed != 1 {
		t.Fatalf("unexpected bulk delete result %+v / %v", res, err)
	}
	if n := countWebsites(t, f); n != 0 {
		t.Fatalf("expected website removed, got %d rows", n)
	}
}

type fakeFaviconStore struct {
	put     []uint
	deleted []string
	err     error
}

func (s *fakeFaviconStore) PutFavicon(_ context.Context, websiteID uint, file io.Reader, _ int64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if _, err := io.ReadAll(file); err != nil {
		return "", err
	}
	s.put = append(s.put, websiteID)
	return "https://cdn.example/favicons/" + string(rune('a'+len(s.put))) + ".png", nil
}

func (s *fakeFaviconStore) DeleteFavicon(_ context.Context, objectURL string) error {
	s.deleted = append(s.deleted, objectURL)
	return nil
}

func TestUploadFaviconReplacesPrevious(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	store := &fakeFaviconStore{}
	f.websites.favicons = store
	admin := f.createUser(t, "a@example.com", domain.RoleAdmin, domain.UserStatusActive, false)
	w := f.submit(t, admin, "Icon", "https://icon.example")

	first, err := f.websites.UploadFavicon(ctx, admin, w.ID, bytes.NewReader([]byte("png")), 3)
	if err != nil || !strings.HasPrefix(first.FaviconURL, "https://cdn.example/") {
		t.Fatalf("first upload: %+v / %v", first, err)
	}
	second, err := f.websites.UploadFavicon(ctx, admin, w.ID, bytes.NewReader([]byte("png")), 3)
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != first.FaviconURL || second.FaviconURL == first.FaviconURL {
		t.Fatalf("expected old favicon cleanup, deleted=%v", store.deleted)
	}

	store.err = ErrInvalidFileType
	var vErr *ValidationError
	if _, err := f.websites.UploadFavicon(ctx, admin, w.ID, bytes.NewReader(nil), 1); !errors.As(err, &vErr) || vErr.Field != "file" {
		t.Fatalf("expected file validation error, got %v", err)
	}
}

func TestUploadFaviconWithStorageDisabled(t *testing.T) {
	f := newServiceFixture(t)
	admin := f.createUser(t, "a@example.com", domain.RoleAdmin, domain.UserStatusActive, false)
	w := f.submit(t, admin, "Icon", "https://icon.example")
	_, err := f.websites.UploadFavicon(context.Background(), admin, w.ID, bytes.NewReader([]byte("x")), 1)
	if !errors.Is(err, ErrStorageDisabled) {
		t.Fatalf("expected storage disabled, got %v", err)
	}
}

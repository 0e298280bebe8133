package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

type WebsiteInput struct {
	Title       string   `json:"title" validate:"required,max=255"`
	URL         string   `json:"url" validate:"required,max=2048"`
	Description string   `json:"description" validate:"required,max=5000"`
	CategoryID  uint     `json:"category_id" validate:"required"`
	FaviconURL  string   `json:"favicon_url" validate:"omitempty,max=2048"`
	Tags        []string `json:"tags" validate:"max=20"`
}

// WebsitePatch carries the fields a moderator may edit; nil leaves a field
// unchanged.
type WebsitePatch struct {
	Title       *string               `json:"title" validate:"omitempty,max=255"`
	URL         *string               `json:"url" validate:"omitempty,max=2048"`
	Description *string               `json:"description" validate:"omitempty,max=5000"`
	CategoryID  *uint                 `json:"category_id"`
	FaviconURL  *string               `json:"favicon_url" validate:"omitempty,max=2048"`
	Status      *domain.WebsiteStatus `json:"status"`
	Tags        *[]string             `json:"tags" validate:"omitempty,max=20"`
}

type WebsiteFilter struct {
	repository.PageRequest
	Status      domain.WebsiteStatus
	CategoryID  uint
	Search      string
	Tag         string
	SubmittedBy uint
	SortBy      string
	SortDesc    bool
}

type DuplicateMatch struct {
	ID          uint                 `json:"id"`
	Title       string               `json:"title"`
	URL         string               `json:"url"`
	Status      domain.WebsiteStatus `json:"status"`
	SubmittedBy *domain.UserSummary  `json:"submitted_by,omitempty"`
}

type DuplicateCheck struct {
	IsDuplicate bool            `json:"is_duplicate"`
	Existing    *DuplicateMatch `json:"existing,omitempty"`
}

type WebsiteService struct {
	websites   repository.WebsiteRepository
	categories repository.CategoryRepository
	settings   *SettingService
	favicons   FaviconStore
	cache      *ListCache
	bulk       BulkRunner
	logger     *slog.Logger
}

func NewWebsiteService(
	websites repository.WebsiteRepository,
	categories repository.CategoryRepository,
	settings *SettingService,
	favicons FaviconStore,
	cache *ListCache,
	bulk BulkRunner,
	logger *slog.Logger,
) *WebsiteService {
	if favicons == nil {
		favicons = DisabledFaviconStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebsiteService{
		websites:   websites,
		categories: categories,
		settings:   settings,
		favicons:   favicons,
		cache:      cache,
		bulk:       bulk,
		logger:     logger,
	}
}

// Submit validates and stores a new website. Its initial status is decided
// by the store from the auto-approve setting and the submitter's trust.
func (s *WebsiteService) Submit(ctx context.Context, actor *domain.User, in WebsiteInput) (*domain.Website, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	if !actor.Role.IsStaff() && !s.settings.Bool(ctx, domain.SettingAllowWebsiteSubmission, true) {
		observability.RecordWebsiteSubmission(ctx, "closed")
		return nil, forbidden("website submission is currently disabled")
	}
	in.Title = cleanText(in.Title)
	in.Description = cleanText(in.Description)
	in.URL = strings.TrimSpace(in.URL)
	in.FaviconURL = strings.TrimSpace(in.FaviconURL)
	if err := validateInput(in); err != nil {
		observability.RecordWebsiteSubmission(ctx, "invalid")
		return nil, err
	}
	canonical, key, err := s.parseURL("url", in.URL)
	if err != nil {
		observability.RecordWebsiteSubmission(ctx, "invalid")
		return nil, err
	}
	if err := validateTags(in.Tags); err != nil {
		observability.RecordWebsiteSubmission(ctx, "invalid")
		return nil, err
	}
	if in.FaviconURL != "" {
		if in.FaviconURL, _, err = s.parseURL("favicon_url", in.FaviconURL); err != nil {
			return nil, err
		}
	}
	if err := s.requireCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	if existing, err := s.websites.FindByURLKey(ctx, key); err == nil {
		observability.RecordWebsiteSubmission(ctx, "duplicate")
		return nil, duplicateURL(existing.Title)
	} else if !errors.Is(err, repository.ErrWebsiteNotFound) {
		return nil, err
	}

	submitter := actor.ID
	w := &domain.Website{
		Title:       in.Title,
		URL:         canonical,
		URLKey:      key,
		Description: in.Description,
		FaviconURL:  in.FaviconURL,
		CategoryID:  in.CategoryID,
		SubmittedBy: &submitter,
	}
	if err := s.websites.Create(ctx, w, domain.NormalizeTagNames(in.Tags)); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			observability.RecordWebsiteSubmission(ctx, "duplicate")
			return nil, duplicateURL("")
		}
		observability.RecordWebsiteSubmission(ctx, "error")
		return nil, fmt.Errorf("create website: %w", err)
	}
	s.cache.Invalidate(ctx, CacheNamespaceWebsites, CacheNamespaceTags, CacheNamespaceCategories)
	observability.RecordWebsiteSubmission(ctx, string(w.Status))
	return w, nil
}

// CheckDuplicate reports whether a URL normalizing to the same key exists.
func (s *WebsiteService) CheckDuplicate(ctx context.Context, rawURL string) (*DuplicateCheck, error) {
	_, key, err := s.parseURL("url", rawURL)
	if err != nil {
		return nil, err
	}
	w, err := s.websites.FindByURLKey(ctx, key)
	if errors.Is(err, repository.ErrWebsiteNotFound) {
		observability.RecordDuplicateCheck(ctx, "unique")
		return &DuplicateCheck{}, nil
	}
	if err != nil {
		return nil, err
	}
	observability.RecordDuplicateCheck(ctx, "duplicate")
	match := &DuplicateMatch{ID: w.ID, Title: w.Title, URL: w.URL, Status: w.Status}
	if w.Submitter != nil {
		match.SubmittedBy = &domain.UserSummary{ID: w.Submitter.ID, Name: w.Submitter.Name}
	}
	return &DuplicateCheck{IsDuplicate: true, Existing: match}, nil
}

// Get hides unapproved websites from everyone but staff and the submitter.
func (s *WebsiteService) Get(ctx context.Context, viewer *domain.User, id uint) (*domain.Website, error) {
	w, err := s.websites.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeWebsite(viewer, w) {
		return nil, repository.ErrWebsiteNotFound
	}
	return w, nil
}

// List serves the browse listing. Non-staff see approved websites only,
// except when listing their own submissions.
func (s *WebsiteService) List(ctx context.Context, viewer *domain.User, f WebsiteFilter) (repository.PageResult[domain.Website], error) {
	q := repository.WebsiteQuery{
		PageRequest: repository.NormalizePageRequest(f.PageRequest),
		Status:      f.Status,
		CategoryID:  f.CategoryID,
		Search:      strings.TrimSpace(f.Search),
		Tag:         domain.NormalizeTagName(f.Tag),
		SubmittedBy: f.SubmittedBy,
		SortBy:      f.SortBy,
		SortDesc:    f.SortDesc,
	}
	if q.Status != "" && !q.Status.Valid() {
		return repository.PageResult[domain.Website]{}, invalid("status", "must be one of pending, approved, rejected")
	}
	ownSubmissions := viewer != nil && q.SubmittedBy != 0 && q.SubmittedBy == viewer.ID
	if !isStaff(viewer) && !ownSubmissions {
		q.Status = domain.WebsiteStatusApproved
	}
	if q.Status != domain.WebsiteStatusApproved || ownSubmissions {
		return s.websites.List(ctx, q)
	}
	key := fmt.Sprintf("%d:%d:%d:%s:%s:%d:%s:%t", q.Page, q.PageSize, q.CategoryID, q.Search, q.Tag, q.SubmittedBy, q.SortBy, q.SortDesc)
	return cachedList(ctx, s.cache, CacheNamespaceWebsites, key, func(ctx context.Context) (repository.PageResult[domain.Website], error) {
		return s.websites.List(ctx, q)
	})
}

func (s *WebsiteService) Update(ctx context.Context, actor *domain.User, id uint, patch WebsitePatch) (*domain.Website, error) {
	if !isStaff(actor) {
		return nil, forbidden("only staff may edit websites")
	}
	patch.Title = cleanTextPtr(patch.Title)
	patch.Description = cleanTextPtr(patch.Description)
	if err := validateInput(patch); err != nil {
		return nil, err
	}
	w, err := s.websites.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		if *patch.Title == "" {
			return nil, invalid("title", "is required")
		}
		w.Title = *patch.Title
	}
	if patch.Description != nil {
		if *patch.Description == "" {
			return nil, invalid("description", "is required")
		}
		w.Description = *patch.Description
	}
	if patch.URL != nil {
		canonical, key, err := s.parseURL("url", *patch.URL)
		if err != nil {
			return nil, err
		}
		if key != w.URLKey {
			if other, err := s.websites.FindByURLKey(ctx, key); err == nil && other.ID != w.ID {
				return nil, duplicateURL(other.Title)
			} else if err != nil && !errors.Is(err, repository.ErrWebsiteNotFound) {
				return nil, err
			}
		}
		w.URL, w.URLKey = canonical, key
	}
	if patch.CategoryID != nil {
		if err := s.requireCategory(ctx, *patch.CategoryID); err != nil {
			return nil, err
		}
		w.CategoryID = *patch.CategoryID
	}
	if patch.FaviconURL != nil {
		fav := strings.TrimSpace(*patch.FaviconURL)
		if fav != "" {
			if fav, _, err = s.parseURL("favicon_url", fav); err != nil {
				return nil, err
			}
		}
		w.FaviconURL = fav
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, invalid("status", "must be one of pending, approved, rejected")
		}
		w.Status = *patch.Status
	}
	var tags *[]string
	if patch.Tags != nil {
		if err := validateTags(*patch.Tags); err != nil {
			return nil, err
		}
		normalized := domain.NormalizeTagNames(*patch.Tags)
		tags = &normalized
	}
	if err := s.websites.Update(ctx, w, tags); err != nil {
		observability.RecordModerationAction(ctx, "update", repository.Outcome(err))
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, duplicateURL("")
		}
		return nil, err
	}
	s.cache.Invalidate(ctx, CacheNamespaceWebsites, CacheNamespaceTags, CacheNamespaceCategories)
	observability.RecordModerationAction(ctx, "update", "success")
	return s.websites.FindByID(ctx, id)
}

func (s *WebsiteService) Approve(ctx context.Context, actor *domain.User, id uint) (*domain.Website, error) {
	return s.setStatus(ctx, actor, id, domain.WebsiteStatusApproved, "approve")
}

func (s *WebsiteService) Reject(ctx context.Context, actor *domain.User, id uint) (*domain.Website, error) {
	return s.setStatus(ctx, actor, id, domain.WebsiteStatusRejected, "reject")
}

func (s *WebsiteService) setStatus(ctx context.Context, actor *domain.User, id uint, status domain.WebsiteStatus, action string) (*domain.Website, error) {
	if !isStaff(actor) {
		return nil, forbidden("only staff may moderate websites")
	}
	if err := s.websites.SetStatus(ctx, id, status); err != nil {
		observability.RecordModerationAction(ctx, action, repository.Outcome(err))
		return nil, err
	}
	s.cache.Invalidate(ctx, CacheNamespaceWebsites, CacheNamespaceTags, CacheNamespaceCategories)
	observability.RecordModerationAction(ctx, action, "success")
	return s.websites.FindByID(ctx, id)
}

func (s *WebsiteService) Delete(ctx context.Context, actor *domain.User, id uint) error {
	if !isStaff(actor) {
		return forbidden("only staff may delete websites")
	}
	w, err := s.websites.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.websites.Delete(ctx, id); err != nil {
		observability.RecordModerationAction(ctx, "delete", repository.Outcome(err))
		return err
	}
	if w.FaviconURL != "" {
		if err := s.favicons.DeleteFavicon(ctx, w.FaviconURL); err != nil {
			s.logger.WarnContext(ctx, "favicon cleanup failed", "website_id", id, "error", err)
		}
	}
	s.cache.Invalidate(ctx, CacheNamespaceWebsites, CacheNamespaceTags, CacheNamespaceCategories)
	observability.RecordModerationAction(ctx, "delete", "success")
	return nil
}

func (s *WebsiteService) BulkDelete(ctx context.Context, actor *domain.User, ids []uint) (*BulkResult, error) {
	if !isStaff(actor) {
		return nil, forbidden("only staff may delete websites")
	}
	return s.bulk.Run(ctx, "website_delete", ids, func(ctx context.Context, id uint) error {
		return s.Delete(ctx, actor, id)
	})
}

func (s *WebsiteService) BulkSetStatus(ctx context.Context, actor *domain.User, ids []uint, status domain.WebsiteStatus) (*BulkResult, error) {
	if !isStaff(actor) {
		return nil, forbidden("only staff may moderate websites")
	}
	if !status.Valid() {
		return nil, invalid("status", "must be one of pending, approved, rejected")
	}
	return s.bulk.Run(ctx, "website_status", ids, func(ctx context.Context, id uint) error {
		_, err := s.setStatus(ctx, actor, id, status, "bulk_"+string(status))
		return err
	})
}

// UploadFavicon stores an image and points the website at it.
func (s *WebsiteService) UploadFavicon(ctx context.Context, actor *domain.User, id uint, file io.Reader, size int64) (*domain.Website, error) {
	if !isStaff(actor) {
		return nil, forbidden("only staff may change favicons")
	}
	w, err := s.websites.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	objectURL, err := s.favicons.PutFavicon(ctx, id, file, size)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooBig):
			return nil, invalid("file", "is too large")
		case errors.Is(err, ErrInvalidFileType):
			return nil, invalid("file", "%s", ErrInvalidFileType.Error())
		}
		return nil, err
	}
	if err := s.websites.SetFavicon(ctx, id, objectURL); err != nil {
		return nil, err
	}
	if w.FaviconURL != "" && w.FaviconURL != objectURL {
		if err := s.favicons.DeleteFavicon(ctx, w.FaviconURL); err != nil {
			s.logger.WarnContext(ctx, "old favicon cleanup failed", "website_id", id, "error", err)
		}
	}
	s.cache.Invalidate(ctx, CacheNamespaceWebsites)
	return s.websites.FindByID(ctx, id)
}

// parseURL returns the canonical form of raw and its duplicate-detection key.
func (s *WebsiteService) parseURL(field, raw string) (canonical, key string, err error) {
	u, err := domain.ParseWebsiteURL(raw)
	if err != nil {
		return "", "", invalid(field, "must be an absolute http or https URL")
	}
	key, err = domain.URLKey(raw)
	if err != nil {
		return "", "", invalid(field, "must be an absolute http or https URL")
	}
	canonical = u.String()
	if len(canonical) > domain.MaxWebsiteURLLength {
		return "", "", invalid(field, "must be at most %d characters", domain.MaxWebsiteURLLength)
	}
	// Only the website URL is stored in the unique url_key column.
	if field == "url" && len(key) > domain.MaxURLKeyLength {
		return "", "", invalid(field, "is too long to index; shorten the path or query")
	}
	return canonical, key, nil
}

func validateTags(names []string) error {
	if err := domain.ValidateTagNames(names); err != nil {
		return invalid("tags", "each tag must be at most %d characters", domain.MaxTagLength)
	}
	return nil
}

func (s *WebsiteService) requireCategory(ctx context.Context, id uint) error {
	if id == 0 {
		return invalid("category_id", "is required")
	}
	if _, err := s.categories.FindByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return invalid("category_id", "does not exist")
		}
		return err
	}
	return nil
}

func duplicateURL(existingTitle string) error {
	if existingTitle == "" {
		return invalid("url", "has already been submitted")
	}
	return invalid("url", "has already been submitted as %q", existingTitle)
}

func canSeeWebsite(viewer *domain.User, w *domain.Website) bool {
	if w.Status == domain.WebsiteStatusApproved || isStaff(viewer) {
		return true
	}
	return viewer != nil && w.SubmittedBy != nil && *w.SubmittedBy == viewer.ID
}

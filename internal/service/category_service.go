package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

type CategoryInput struct {
	Name         string `json:"name" validate:"required,max=120"`
	GradientFrom string `json:"gradient_from" validate:"max=64"`
	GradientTo   string `json:"gradient_to" validate:"max=64"`
}

type CategoryPatch struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=120"`
	GradientFrom *string `json:"gradient_from" validate:"omitempty,max=64"`
	GradientTo   *string `json:"gradient_to" validate:"omitempty,max=64"`
}

type CategoryService struct {
	categories repository.CategoryRepository
	cache      *ListCache
	bulk       BulkRunner
}

func NewCategoryService(categories repository.CategoryRepository, cache *ListCache, bulk BulkRunner) *CategoryService {
	return &CategoryService{categories: categories, cache: cache, bulk: bulk}
}

func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	return cachedList(ctx, s.cache, CacheNamespaceCategories, "plain", s.categories.List)
}

// ListWithUsage includes each category's website count.
func (s *CategoryService) ListWithUsage(ctx context.Context) ([]domain.CategoryWithUsage, error) {
	return cachedList(ctx, s.cache, CacheNamespaceCategories, "usage", s.categories.ListWithUsage)
}

func (s *CategoryService) Get(ctx context.Context, id uint) (*domain.Category, error) {
	return s.categories.FindByID(ctx, id)
}

func (s *CategoryService) Create(ctx context.Context, actor *domain.User, in CategoryInput) (*domain.Category, error) {
	if !isStaff(actor) {
		return nil, forbidden("only staff may manage categories")
	}
	in.Name = cleanText(in.Name)
	in.GradientFrom = cleanText(in.GradientFrom)
	in.GradientTo = cleanText(in.GradientTo)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	c := &domain.Category{Name: in.Name, GradientFrom: in.GradientFrom, GradientTo: in.GradientTo}
	if err := s.categories.Create(ctx, c); err != nil {
		observability.RecordAdminMutation(ctx, "category", "create", "error")
		return nil, s.wrap(c.Name, err)
	}
	s.cache.Invalidate(ctx, CacheNamespaceCategories)
	observability.RecordAdminMutation(ctx, "category", "create", "success")
	return c, nil
}

func (s *CategoryService) Update(ctx context.Context, actor *domain.User, id uint, patch CategoryPatch) (*domain.Category, error) {
	if !isStaff(actor) {
		return nil, forbidden("only staff may manage categories")
	}
	patch.Name = cleanTextPtr(patch.Name)
	patch.GradientFrom = cleanTextPtr(patch.GradientFrom)
	patch.GradientTo = cleanTextPtr(patch.GradientTo)
	if patch.Name != nil && *patch.Name == "" {
		return nil, invalid("name", "is required")
	}
	if err := validateInput(patch); err != nil {
		return nil, err
	}
	c, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.GradientFrom != nil {
		c.GradientFrom = *patch.GradientFrom
	}
	if patch.GradientTo != nil {
		c.GradientTo = *patch.GradientTo
	}
	if err := s.categories.Update(ctx, c); err != nil {
		observability.RecordAdminMutation(ctx, "category", "update", "error")
		return nil, s.wrap(c.Name, err)
	}
	// Website reads embed the category.
	s.cache.Invalidate(ctx, CacheNamespaceCategories, CacheNamespaceWebsites)
	observability.RecordAdminMutation(ctx, "category", "update", "success")
	return c, nil
}

// Delete is refused with repository.ErrCategoryInUse while websites
// reference the category.
func (s *CategoryService) Delete(ctx context.Context, actor *domain.User, id uint) error {
	if !isStaff(actor) {
		return forbidden("only staff may manage categories")
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		observability.RecordAdminMutation(ctx, "category", "delete", repository.Outcome(err))
		return err
	}
	s.cache.Invalidate(ctx, CacheNamespaceCategories)
	observability.RecordAdminMutation(ctx, "category", "delete", "success")
	return nil
}

func (s *CategoryService) BulkDelete(ctx context.Context, actor *domain.User, ids []uint) (*BulkResult, error) {
	if !isStaff(actor) {
		return nil, forbidden("only staff may manage categories")
	}
	return s.bulk.Run(ctx, "category_delete", ids, func(ctx context.Context, id uint) error {
		return s.Delete(ctx, actor, id)
	})
}

func (s *CategoryService) wrap(name string, err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("category %q: %w", name, err)
	}
	return err
}

package service

import (
	"context"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

type TagService struct {
	tags  repository.TagRepository
	cache *ListCache
}

func NewTagService(tags repository.TagRepository, cache *ListCache) *TagService {
	return &TagService{tags: tags, cache: cache}
}

func (s *TagService) List(ctx context.Context) ([]domain.TagWithUsage, error) {
	return cachedList(ctx, s.cache, CacheNamespaceTags, "all", s.tags.List)
}

// Create returns the existing tag when the normalized name is already taken.
func (s *TagService) Create(ctx context.Context, actor *domain.User, name string) (*domain.Tag, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	normalized := domain.NormalizeTagName(cleanText(name))
	if normalized == "" {
		return nil, invalid("name", "must be 1-%d characters", domain.MaxTagLength)
	}
	tag, err := s.tags.FindOrCreate(ctx, normalized)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, CacheNamespaceTags)
	return tag, nil
}

func (s *TagService) Delete(ctx context.Context, actor *domain.User, id uint) error {
	if !isStaff(actor) {
		return forbidden("only staff may delete tags")
	}
	if err := s.tags.Delete(ctx, id); err != nil {
		observability.RecordAdminMutation(ctx, "tag", "delete", repository.Outcome(err))
		return err
	}
	s.cache.Invalidate(ctx, CacheNamespaceTags, CacheNamespaceWebsites)
	observability.RecordAdminMutation(ctx, "tag", "delete", "success")
	return nil
}

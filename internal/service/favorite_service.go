package service

import (
	"context"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

type FavoriteService struct {
	favorites repository.FavoriteRepository
	websites  repository.WebsiteRepository
}

func NewFavoriteService(favorites repository.FavoriteRepository, websites repository.WebsiteRepository) *FavoriteService {
	return &FavoriteService{favorites: favorites, websites: websites}
}

// Add is idempotent; created reports whether a new row was written.
func (s *FavoriteService) Add(ctx context.Context, user *domain.User, websiteID uint) (created bool, err error) {
	if user == nil {
		return false, ErrUnauthorized
	}
	w, err := s.websites.FindByID(ctx, websiteID)
	if err != nil {
		return false, err
	}
	if w.Status != domain.WebsiteStatusApproved {
		return false, repository.ErrWebsiteNotFound
	}
	created, err = s.favorites.Add(ctx, user.ID, websiteID)
	if err != nil {
		observability.RecordFavoriteEvent(ctx, "add", "error")
		return false, err
	}
	outcome := "exists"
	if created {
		outcome = "created"
	}
	observability.RecordFavoriteEvent(ctx, "add", outcome)
	return created, nil
}

func (s *FavoriteService) Remove(ctx context.Context, user *domain.User, websiteID uint) error {
	if user == nil {
		return ErrUnauthorized
	}
	if err := s.favorites.Remove(ctx, user.ID, websiteID); err != nil {
		observability.RecordFavoriteEvent(ctx, "remove", "error")
		return err
	}
	observability.RecordFavoriteEvent(ctx, "remove", "success")
	return nil
}

func (s *FavoriteService) IsFavorite(ctx context.Context, user *domain.User, websiteID uint) (bool, error) {
	if user == nil {
		return false, ErrUnauthorized
	}
	return s.favorites.Exists(ctx, user.ID, websiteID)
}

func (s *FavoriteService) List(ctx context.Context, user *domain.User) ([]domain.Website, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	return s.favorites.ListWebsites(ctx, user.ID)
}

func (s *FavoriteService) ListIDs(ctx context.Context, user *domain.User) ([]uint, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	return s.favorites.ListWebsiteIDs(ctx, user.ID)
}

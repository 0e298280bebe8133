package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

type SettingUpdate struct {
	Value       json.RawMessage `json:"value"`
	Description *string         `json:"description"`
}

type SettingService struct {
	settings repository.SettingRepository
	cache    *ListCache
	logger   *slog.Logger
}

func NewSettingService(settings repository.SettingRepository, cache *ListCache, logger *slog.Logger) *SettingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingService{settings: settings, cache: cache, logger: logger}
}

// List returns every setting to staff and only the public keys to others.
func (s *SettingService) List(ctx context.Context, viewer *domain.User) ([]domain.SystemSetting, error) {
	all, err := cachedList(ctx, s.cache, CacheNamespaceSettings, "all", func(ctx context.Context) ([]domain.SystemSetting, error) {
		return s.settings.List(ctx)
	})
	if err != nil {
		return nil, err
	}
	if isStaff(viewer) {
		return all, nil
	}
	out := make([]domain.SystemSetting, 0, len(domain.PublicSettingKeys))
	for _, st := range all {
		if domain.IsPublicSetting(st.Key) {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *SettingService) Get(ctx context.Context, viewer *domain.User, key string) (*domain.SystemSetting, error) {
	if !domain.IsPublicSetting(key) && !isStaff(viewer) {
		return nil, repository.ErrSettingNotFound
	}
	return s.settings.Get(ctx, key)
}

func (s *SettingService) Update(ctx context.Context, actor *domain.User, key string, in SettingUpdate) (*domain.SystemSetting, error) {
	if !isStaff(actor) {
		return nil, forbidden("only staff may change settings")
	}
	if key == "" || len(key) > 100 {
		return nil, invalid("key", "must be 1-100 characters")
	}
	if len(in.Value) == 0 || !json.Valid(in.Value) {
		return nil, invalid("value", "must be a JSON value")
	}
	if isBoolSetting(key) {
		probe := domain.SystemSetting{Value: domain.JSONValue(in.Value)}
		if _, ok := probe.BoolValue(); !ok {
			return nil, invalid("value", "must be a boolean")
		}
	}

	setting := &domain.SystemSetting{Key: key, Value: domain.JSONValue(in.Value)}
	if current, err := s.settings.Get(ctx, key); err == nil {
		setting.Description = current.Description
	} else if !errors.Is(err, repository.ErrSettingNotFound) {
		return nil, err
	}
	if in.Description != nil {
		setting.Description = cleanText(*in.Description)
	}
	if err := s.settings.Upsert(ctx, setting); err != nil {
		observability.RecordAdminMutation(ctx, "setting", "update", "error")
		return nil, fmt.Errorf("upsert setting: %w", err)
	}
	s.cache.Invalidate(ctx, CacheNamespaceSettings)
	observability.RecordAdminMutation(ctx, "setting", "update", "success")
	return s.settings.Get(ctx, key)
}

// Bool reads a boolean setting, falling back to def when the key is absent
// or unreadable.
func (s *SettingService) Bool(ctx context.Context, key string, def bool) bool {
	st, err := s.settings.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrSettingNotFound) {
			s.logger.WarnContext(ctx, "setting read failed", "key", key, "error", err)
		}
		return def
	}
	v, ok := st.BoolValue()
	if !ok {
		return def
	}
	return v
}

func isBoolSetting(key string) bool {
	return key == domain.SettingAllowWebsiteSubmission || key == domain.SettingAutoApproveTrustedUsers
}

func isStaff(u *domain.User) bool { return u != nil && u.Role.IsStaff() }

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/repository"
	"github.com/sandeepkv93/sitedeck/internal/service"
)

type stubCategoryService struct {
	service.CategoryServiceInterface
	deleteErr error
	usage     bool
}

func (s *stubCategoryService) List(context.Context) ([]domain.Category, error) {
	return []domain.Category{{ID: 1, Name: "Tools"}}, nil
}

func (s *stubCategoryService) ListWithUsage(context.Context) ([]domain.CategoryWithUsage, error) {
	s.usage = true
	return []domain.CategoryWithUsage{{Category: domain.Category{ID: 1, Name: "Tools"}, WebsiteCount: 4}}, nil
}

func (s *stubCategoryService) Delete(context.Context, *domain.User, uint) error { return s.deleteErr }

type stubTagService struct {
	service.TagServiceInterface
	created map[string]*domain.Tag
}

func (s *stubTagService) Create(_ context.Context, _ *domain.User, name string) (*domain.Tag, error) {
	if t, ok := s.created[domain.NormalizeTagName(name)]; ok {
		return t, nil
	}
	t := &domain.Tag{ID: uint(len(s.created) + 1), Name: domain.NormalizeTagName(name)}
	s.created[t.Name] = t
	return t, nil
}

type stubFavoriteService struct {
	service.FavoriteServiceInterface
	set map[uint]bool
}

func (s *stubFavoriteService) Add(_ context.Context, _ *domain.User, id uint) (bool, error) {
	if id == 404 {
		return false, repository.ErrWebsiteNotFound
	}
	if s.set[id] {
		return false, nil
	}
	s.set[id] = true
	return true, nil
}

func (s *stubFavoriteService) IsFavorite(_ context.Context, _ *domain.User, id uint) (bool, error) {
	return s.set[id], nil
}

type stubSettingService struct {
	service.SettingServiceInterface
	updateFn func(actor *domain.User, key string, in service.SettingUpdate) (*domain.SystemSetting, error)
}

func (s *stubSettingService) Update(_ context.Context, actor *domain.User, key string, in service.SettingUpdate) (*domain.SystemSetting, error) {
	return s.updateFn(actor, key, in)
}

func TestListCategoriesWithUsage(t *testing.T) {
	svc := &stubCategoryService{}
	h := NewCatalogHandler(svc, &stubTagService{})

	rr := httptest.NewRecorder()
	h.ListCategories(rr, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
	if rr.Code != http.StatusOK || svc.usage {
		t.Fatalf("expected plain listing, code=%d usage=%v", rr.Code, svc.usage)
	}

	rr = httptest.NewRecorder()
	h.ListCategories(rr, httptest.NewRequest(http.MethodGet, "/api/v1/categories?with_usage=true", nil))
	if rr.Code != http.StatusOK || !svc.usage {
		t.Fatalf("expected usage listing, code=%d usage=%v", rr.Code, svc.usage)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte(`"website_count":4`)) {
		t.Fatalf("expected website_count in body, got %s", rr.Body.String())
	}
}

func TestDeleteCategoryInUse(t *testing.T) {
	h := NewCatalogHandler(&stubCategoryService{deleteErr: repository.ErrCategoryInUse}, &stubTagService{})
	rr := httptest.NewRecorder()
	h.DeleteCategory(rr, withURLParam(asUser(httptest.NewRequest(http.MethodDelete, "/", nil), staff), "id", "1"))
	if rr.Code != http.StatusConflict || errorCode(t, rr) != "CATEGORY_IN_USE" {
		t.Fatalf("expected 409 CATEGORY_IN_USE, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestCreateTagIsFindOrCreate(t *testing.T) {
	h := NewCatalogHandler(&stubCategoryService{}, &stubTagService{created: map[string]*domain.Tag{}})
	var ids []uint
	for _, name := range []string{"Golang", "  golang "} {
		rr := httptest.NewRecorder()
		h.CreateTag(rr, asUser(jsonRequest(http.MethodPost, "/api/v1/tags", `{"name":"`+name+`"}`), &domain.User{ID: 2}))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var tag domain.Tag
		if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &tag); err != nil {
			t.Fatalf("decode tag: %v", err)
		}
		ids = append(ids, tag.ID)
	}
	if ids[0] != ids[1] {
		t.Fatalf("expected the same tag twice, got %v", ids)
	}
}

func TestFavoriteAddIsIdempotent(t *testing.T) {
	h := NewFavoriteHandler(&stubFavoriteService{set: map[uint]bool{}})
	user := &domain.User{ID: 2}
	for i, want := range []int{http.StatusCreated, http.StatusOK} {
		rr := httptest.NewRecorder()
		h.Add(rr, withURLParam(asUser(httptest.NewRequest(http.MethodPut, "/", nil), user), "website_id", "5"))
		if rr.Code != want {
			t.Fatalf("attempt %d: expected %d, got %d", i+1, want, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	h.Check(rr, withURLParam(asUser(httptest.NewRequest(http.MethodGet, "/", nil), user), "website_id", "5"))
	if !bytes.Contains(rr.Body.Bytes(), []byte(`"is_favorite":true`)) {
		t.Fatalf("expected favorite state, got %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.Add(rr, withURLParam(asUser(httptest.NewRequest(http.MethodPut, "/", nil), user), "website_id", "404"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown website, got %d", rr.Code)
	}
}

func TestUpdateSettingForwardsRawValue(t *testing.T) {
	h := NewSettingHandler(&stubSettingService{updateFn: func(_ *domain.User, key string, in service.SettingUpdate) (*domain.SystemSetting, error) {
		if key != "site_name" || string(in.Value) != `"Sitedeck"` {
			t.Fatalf("unexpected update key=%s value=%s", key, in.Value)
		}
		return &domain.SystemSetting{Key: key, Value: domain.JSONValue(in.Value)}, nil
	}})
	req := withURLParam(asUser(jsonRequest(http.MethodPut, "/", `{"value":"Sitedeck"}`), staff), "key", "site_name")
	rr := httptest.NewRecorder()
	h.Update(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

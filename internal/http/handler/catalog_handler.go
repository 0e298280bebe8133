package handler

import (
	"net/http"

	"github.com/sandeepkv93/sitedeck/internal/http/response"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/service"
)

// CatalogHandler serves the category and tag taxonomies.
type CatalogHandler struct {
	categorySvc service.CategoryServiceInterface
	tagSvc      service.TagServiceInterface
}

func NewCatalogHandler(categorySvc service.CategoryServiceInterface, tagSvc service.TagServiceInterface) *CatalogHandler {
	return &CatalogHandler{categorySvc: categorySvc, tagSvc: tagSvc}
}

type tagRequest struct {
	Name string `json:"name"`
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	if parseBoolQuery(r, "with_usage") {
		items, err := h.categorySvc.ListWithUsage(r.Context())
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		response.JSON(w, r, http.StatusOK, items)
		return
	}
	items, err := h.categorySvc.List(r.Context())
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, items)
}

func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.categorySvc.Get(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, c)
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in service.CategoryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	u := actor(r)
	c, err := h.categorySvc.Create(r.Context(), u, in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "category.create", "user_id", u.ID, "category_id", c.ID)
	response.JSON(w, r, http.StatusCreated, c)
}

func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var patch service.CategoryPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	u := actor(r)
	c, err := h.categorySvc.Update(r.Context(), u, id, patch)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "category.update", "user_id", u.ID, "category_id", id)
	response.JSON(w, r, http.StatusOK, c)
}

func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u := actor(r)
	if err := h.categorySvc.Delete(r.Context(), u, id); err != nil {
		observability.Audit(r, "category.delete.failed", "user_id", u.ID, "category_id", id, "reason", failureReason(err))
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "category.delete", "user_id", u.ID, "category_id", id)
	response.Message(w, r, http.StatusOK, "category deleted", nil)
}

func (h *CatalogHandler) BulkDeleteCategories(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u := actor(r)
	result, err := h.categorySvc.BulkDelete(r.Context(), u, req.IDs)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "category.bulk_delete", "user_id", u.ID, "succeeded", result.Succeeded, "failed", result.Failed)
	response.JSON(w, r, http.StatusOK, result)
}

func (h *CatalogHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	items, err := h.tagSvc.List(r.Context())
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, items)
}

// CreateTag returns the existing tag when the name is already taken.
func (h *CatalogHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tag, err := h.tagSvc.Create(r.Context(), actor(r), req.Name)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, tag)
}

func (h *CatalogHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u := actor(r)
	if err := h.tagSvc.Delete(r.Context(), u, id); err != nil {
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "tag.delete", "user_id", u.ID, "tag_id", id)
	response.Message(w, r, http.StatusOK, "tag deleted", nil)
}

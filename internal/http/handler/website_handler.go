package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/http/response"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/service"
)

type WebsiteHandler struct {
	websiteSvc      service.WebsiteServiceInterface
	faviconMaxBytes int64
}

func NewWebsiteHandler(websiteSvc service.WebsiteServiceInterface, faviconMaxBytes int64) *WebsiteHandler {
	if faviconMaxBytes <= 0 {
		faviconMaxBytes = 256 << 10
	}
	return &WebsiteHandler{websiteSvc: websiteSvc, faviconMaxBytes: faviconMaxBytes}
}

// List serves GET /websites. Query: page, page_size, status, category_id,
// q, tag, mine, sort_by, sort_order.
func (h *WebsiteHandler) List(w http.ResponseWriter, r *http.Request) {
	pageReq, err := parsePageRequest(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, err.Error(), nil)
		return
	}
	categoryID, err := parseOptionalUint(r, "category_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, err.Error(), nil)
		return
	}
	q := r.URL.Query()
	sortOrder := strings.ToLower(strings.TrimSpace(q.Get("sort_order")))
	if sortOrder != "" && sortOrder != "asc" && sortOrder != "desc" {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "sort_order must be asc or desc", nil)
		return
	}
	viewer := actor(r)
	f := service.WebsiteFilter{
		PageRequest: pageReq,
		Status:      domain.WebsiteStatus(strings.TrimSpace(q.Get("status"))),
		CategoryID:  categoryID,
		Search:      q.Get("q"),
		Tag:         q.Get("tag"),
		SortBy:      strings.ToLower(strings.TrimSpace(q.Get("sort_by"))),
		SortDesc:    sortOrder != "asc",
	}
	if parseBoolQuery(r, "mine") {
		if viewer == nil {
			response.FromError(w, r, service.ErrUnauthorized)
			return
		}
		f.SubmittedBy = viewer.ID
	}
	page, err := h.websiteSvc.List(r.Context(), viewer, f)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, page)
}

func (h *WebsiteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	site, err := h.websiteSvc.Get(r.Context(), actor(r), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, site)
}

// CheckURL reports whether a URL is already listed, before submission.
func (h *WebsiteHandler) CheckURL(w http.ResponseWriter, r *http.Request) {
	result, err := h.websiteSvc.CheckDuplicate(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

func (h *WebsiteHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var in service.WebsiteInput
	if !decodeJSON(w, r, &in) {
		return
	}
	u := actor(r)
	site, err := h.websiteSvc.Submit(r.Context(), u, in)
	if err != nil {
		if u != nil {
			observability.Audit(r, "website.submit.failed", "user_id", u.ID, "reason", failureReason(err))
		}
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "website.submit.success", "user_id", u.ID, "website_id", site.ID, "status", site.Status)
	msg := "website submitted for review"
	if site.Status == domain.WebsiteStatusApproved {
		msg = "website published"
	}
	response.Message(w, r, http.StatusCreated, msg, site)
}

func (h *WebsiteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var patch service.WebsitePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	u := actor(r)
	site, err := h.websiteSvc.Update(r.Context(), u, id, patch)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "website.update", "user_id", u.ID, "website_id", id)
	response.JSON(w, r, http.StatusOK, site)
}

func (h *WebsiteHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "approve", h.websiteSvc.Approve)
}

func (h *WebsiteHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "reject", h.websiteSvc.Reject)
}

type moderationFunc func(ctx context.Context, actor *domain.User, id uint) (*domain.Website, error)

func (h *WebsiteHandler) moderate(w http.ResponseWriter, r *http.Request, action string, fn moderationFunc) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u := actor(r)
	site, err := fn(r.Context(), u, id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "website."+action, "user_id", u.ID, "website_id", id)
	response.JSON(w, r, http.StatusOK, site)
}

func (h *WebsiteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u := actor(r)
	if err := h.websiteSvc.Delete(r.Context(), u, id); err != nil {
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "website.delete", "user_id", u.ID, "website_id", id)
	response.Message(w, r, http.StatusOK, "website deleted", nil)
}

func (h *WebsiteHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u := actor(r)
	result, err := h.websiteSvc.BulkDelete(r.Context(), u, req.IDs)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "website.bulk_delete", "user_id", u.ID, "succeeded", result.Succeeded, "failed", result.Failed)
	response.JSON(w, r, http.StatusOK, result)
}

func (h *WebsiteHandler) BulkSetStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u := actor(r)
	result, err := h.websiteSvc.BulkSetStatus(r.Context(), u, req.IDs, domain.WebsiteStatus(req.Status))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "website.bulk_status", "user_id", u.ID, "status", req.Status, "succeeded", result.Succeeded, "failed", result.Failed)
	response.JSON(w, r, http.StatusOK, result)
}

// UploadFavicon accepts a multipart form with the image in the "file" field.
func (h *WebsiteHandler) UploadFavicon(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	// Leave room for the multipart envelope around the file part.
	r.Body = http.MaxBytesReader(w, r.Body, h.faviconMaxBytes+64<<10)
	if err := r.ParseMultipartForm(h.faviconMaxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(w, r, http.StatusRequestEntityTooLarge, response.CodeValidationFailed, "file is too large", map[string]string{"field": "file"})
			return
		}
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "expected multipart form data", nil)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	file, header, err := r.FormFile("file")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeValidationFailed, "file is required", map[string]string{"field": "file"})
		return
	}
	defer file.Close()

	u := actor(r)
	site, err := h.websiteSvc.UploadFavicon(r.Context(), u, id, file, header.Size)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "website.favicon.upload", "user_id", u.ID, "website_id", id, "bytes", header.Size)
	response.JSON(w, r, http.StatusOK, site)
}

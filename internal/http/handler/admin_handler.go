package handler

import (
	"net/http"
	"strings"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/http/response"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/service"
)

// AdminHandler serves user management for staff.
type AdminHandler struct {
	userSvc service.UserServiceInterface
}

func NewAdminHandler(userSvc service.UserServiceInterface) *AdminHandler {
	return &AdminHandler{userSvc: userSvc}
}

type setStatusRequest struct {
	Status string `json:"status"`
}

type setRoleRequest struct {
	Role string `json:"role"`
}

type setTrustedRequest struct {
	Trusted *bool `json:"trusted"`
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	pageReq, err := parsePageRequest(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, err.Error(), nil)
		return
	}
	q := r.URL.Query()
	page, err := h.userSvc.List(r.Context(), actor(r), service.UserFilter{
		PageRequest: pageReq,
		Email:       q.Get("email"),
		Role:        domain.Role(strings.TrimSpace(q.Get("role"))),
		Status:      domain.UserStatus(strings.TrimSpace(q.Get("status"))),
	})
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, page)
}

func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req setStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u := actor(r)
	target, err := h.userSvc.SetStatus(r.Context(), u, id, domain.UserStatus(req.Status))
	if err != nil {
		observability.Audit(r, "admin.user.status.denied", "actor_id", u.ID, "target_id", id, "reason", failureReason(err))
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "admin.user.status", "actor_id", u.ID, "target_id", id, "status", target.Status)
	response.JSON(w, r, http.StatusOK, target)
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req setRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u := actor(r)
	target, err := h.userSvc.SetRole(r.Context(), u, id, domain.Role(req.Role))
	if err != nil {
		observability.Audit(r, "admin.user.role.denied", "actor_id", u.ID, "target_id", id, "reason", failureReason(err))
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "admin.user.role", "actor_id", u.ID, "target_id", id, "role", target.Role)
	response.JSON(w, r, http.StatusOK, target)
}

func (h *AdminHandler) SetTrusted(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req setTrustedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Trusted == nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeValidationFailed, "trusted: is required", map[string]string{"field": "trusted"})
		return
	}
	u := actor(r)
	target, err := h.userSvc.SetTrusted(r.Context(), u, id, *req.Trusted)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "admin.user.trusted", "actor_id", u.ID, "target_id", id, "trusted", target.Trusted)
	response.JSON(w, r, http.StatusOK, target)
}

func (h *AdminHandler) BulkDisable(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u := actor(r)
	result, err := h.userSvc.BulkDisable(r.Context(), u, req.IDs)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "admin.user.bulk_disable", "actor_id", u.ID, "succeeded", result.Succeeded, "failed", result.Failed)
	response.JSON(w, r, http.StatusOK, result)
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.userSvc.Stats(r.Context(), actor(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, stats)
}

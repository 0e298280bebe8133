package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/sitedeck/internal/http/response"
	"github.com/sandeepkv93/sitedeck/internal/observability"
	"github.com/sandeepkv93/sitedeck/internal/service"
)

type SettingHandler struct {
	settingSvc service.SettingServiceInterface
}

func NewSettingHandler(settingSvc service.SettingServiceInterface) *SettingHandler {
	return &SettingHandler{settingSvc: settingSvc}
}

func (h *SettingHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.settingSvc.List(r.Context(), actor(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, items)
}

func (h *SettingHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.settingSvc.Get(r.Context(), actor(r), chi.URLParam(r, "key"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, s)
}

func (h *SettingHandler) Update(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var in service.SettingUpdate
	if !decodeJSON(w, r, &in) {
		return
	}
	u := actor(r)
	s, err := h.settingSvc.Update(r.Context(), u, key, in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, "setting.update", "user_id", u.ID, "key", key)
	response.JSON(w, r, http.StatusOK, s)
}

package handler

import (
	"net/http"

	"github.com/sandeepkv93/sitedeck/internal/http/response"
	"github.com/sandeepkv93/sitedeck/internal/service"
)

type FavoriteHandler struct {
	favoriteSvc service.FavoriteServiceInterface
}

func NewFavoriteHandler(favoriteSvc service.FavoriteServiceInterface) *FavoriteHandler {
	return &FavoriteHandler{favoriteSvc: favoriteSvc}
}

type favoriteState struct {
	WebsiteID  uint `json:"website_id"`
	IsFavorite bool `json:"is_favorite"`
}

// List returns the user's favorite websites, or only their ids with ?ids_only=true.
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	if parseBoolQuery(r, "ids_only") {
		ids, err := h.favoriteSvc.ListIDs(r.Context(), actor(r))
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		response.JSON(w, r, http.StatusOK, ids)
		return
	}
	sites, err := h.favoriteSvc.List(r.Context(), actor(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, sites)
}

func (h *FavoriteHandler) Check(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "website_id")
	if !ok {
		return
	}
	fav, err := h.favoriteSvc.IsFavorite(r.Context(), actor(r), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, favoriteState{WebsiteID: id, IsFavorite: fav})
}

// Add is idempotent: 201 when the favorite is new, 200 when it already existed.
func (h *FavoriteHandler) Add(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "website_id")
	if !ok {
		return
	}
	created, err := h.favoriteSvc.Add(r.Context(), actor(r), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.JSON(w, r, status, favoriteState{WebsiteID: id, IsFavorite: true})
}

func (h *FavoriteHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "website_id")
	if !ok {
		return
	}
	if err := h.favoriteSvc.Remove(r.Context(), actor(r), id); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, favoriteState{WebsiteID: id, IsFavorite: false})
}

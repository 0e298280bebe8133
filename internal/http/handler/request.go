package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/http/middleware"
	"github.com/sandeepkv93/sitedeck/internal/http/response"
	"github.com/sandeepkv93/sitedeck/internal/repository"
)

// bulkRequest is the body shared by every bulk endpoint.
type bulkRequest struct {
	IDs    []uint `json:"ids"`
	Status string `json:"status,omitempty"`
}

// decodeJSON reads a single JSON object into dst and writes the error
// response itself when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			response.Error(w, r, http.StatusRequestEntityTooLarge, response.CodeBadRequest, "request body too large", nil)
		case errors.Is(err, io.EOF):
			response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "request body is required", nil)
		default:
			response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid json payload", nil)
		}
		return false
	}
	if dec.More() {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "request body must contain a single json object", nil)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := parsePathID(chi.URLParam(r, name))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid "+name, nil)
		return 0, false
	}
	return id, true
}

func parsePathID(input string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(input), 10, 0)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid id %q", input)
	}
	return uint(n), nil
}

func parsePageRequest(r *http.Request) (repository.PageRequest, error) {
	page := repository.DefaultPage
	pageSize := repository.DefaultPageSize
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return repository.PageRequest{}, errors.New("page must be a positive integer")
		}
		page = v
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("page_size")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return repository.PageRequest{}, errors.New("page_size must be a positive integer")
		}
		if v > repository.MaxPageSize {
			return repository.PageRequest{}, fmt.Errorf("page_size must be <= %d", repository.MaxPageSize)
		}
		pageSize = v
	}
	return repository.PageRequest{Page: page, PageSize: pageSize}, nil
}

func parseOptionalUint(r *http.Request, name string) (uint, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	id, err := parsePathID(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

func parseBoolQuery(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(name)))
	return err == nil && v
}

// actor returns the signed-in user, or nil for anonymous requests.
func actor(r *http.Request) *domain.User {
	u, _ := middleware.UserFromContext(r.Context())
	return u
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

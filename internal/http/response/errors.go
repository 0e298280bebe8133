package response

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sandeepkv93/sitedeck/internal/repository"
	"github.com/sandeepkv93/sitedeck/internal/service"
)

const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeConflict         = "CONFLICT"
	CodeCategoryInUse    = "CATEGORY_IN_USE"
	CodeUserNotFound     = "USER_NOT_FOUND"
	CodeAccountDisabled  = "ACCOUNT_DISABLED"
	CodeInvalidPassword  = "INVALID_PASSWORD"
	CodeInvalidToken     = "INVALID_TOKEN"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeTooManyAttempts  = "TOO_MANY_ATTEMPTS"
	CodeRateLimited      = "RATE_LIMITED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeBadRequest       = "BAD_REQUEST"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
	CodeInternal         = "INTERNAL"
)

// FromError maps a service or repository error onto the API error taxonomy.
// Unrecognized errors are logged and answered with a generic 500.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *service.ValidationError
	var retry *service.RetryAfterError
	switch {
	case errors.As(err, &vErr):
		var details any
		if vErr.Field != "" {
			details = map[string]string{"field": vErr.Field}
		}
		Error(w, r, http.StatusBadRequest, CodeValidationFailed, vErr.Error(), details)
	case errors.Is(err, repository.ErrCategoryInUse):
		Error(w, r, http.StatusConflict, CodeCategoryInUse, "category is in use by websites", nil)
	case errors.Is(err, repository.ErrDuplicate):
		Error(w, r, http.StatusConflict, CodeConflict, "a record with the same unique value already exists", nil)
	case errors.Is(err, service.ErrUserNotFound):
		Error(w, r, http.StatusUnauthorized, CodeUserNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrAccountDisabled):
		Error(w, r, http.StatusForbidden, CodeAccountDisabled, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidPassword):
		Error(w, r, http.StatusUnauthorized, CodeInvalidPassword, err.Error(), nil)
	case errors.Is(err, service.ErrWeakPassword):
		Error(w, r, http.StatusBadRequest, CodeValidationFailed, err.Error(), map[string]string{"field": "password"})
	case errors.Is(err, service.ErrInvalidResetToken):
		Error(w, r, http.StatusBadRequest, CodeInvalidToken, err.Error(), nil)
	case errors.Is(err, service.ErrUnauthorized):
		Error(w, r, http.StatusUnauthorized, CodeUnauthorized, err.Error(), nil)
	case errors.As(err, &retry):
		w.Header().Set("Retry-After", RetryAfterSeconds(retry.RetryAfter.Seconds()))
		Error(w, r, http.StatusTooManyRequests, CodeTooManyAttempts, err.Error(), nil)
	case errors.Is(err, service.ErrTooManyAttempts):
		Error(w, r, http.StatusTooManyRequests, CodeTooManyAttempts, err.Error(), nil)
	case errors.Is(err, service.ErrForbidden):
		Error(w, r, http.StatusForbidden, CodeForbidden, err.Error(), nil)
	case repository.IsNotFound(err), errors.Is(err, service.ErrNotFound):
		Error(w, r, http.StatusNotFound, CodeNotFound, "resource not found", nil)
	case errors.Is(err, service.ErrStorageDisabled):
		Error(w, r, http.StatusServiceUnavailable, CodeUnavailable, err.Error(), nil)
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		Error(w, r, http.StatusInternalServerError, CodeInternal, "internal server error", nil)
	}
}

// RetryAfterSeconds renders a Retry-After header value, never below one.
func RetryAfterSeconds(seconds float64) string {
	n := int(seconds + 0.999)
	if n < 1 {
		n = 1
	}
	return strconv.Itoa(n)
}

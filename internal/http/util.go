package httpx

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/t3eHawk/rapo/internal/data"
	apperrors "github.com/t3eHawk/rapo/internal/errors"
)

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// parseIDQuery returns a required positive int64 query param.
func parseIDQuery(r *http.Request, key string) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, apperrors.Validationf("%s is required", key)
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validationf("%s must be a positive integer", key)
	}
	return id, nil
}

// parseBoolQuery interprets true/false/1/0/y/n, defaulting on absence.
func parseBoolQuery(r *http.Request, key string, def bool) bool {
	switch r.URL.Query().Get(key) {
	case "true", "1", "y", "Y":
		return true
	case "false", "0", "n", "N":
		return false
	default:
		return def
	}
}

// Accepted timestamp layouts of date query parameters, most specific
// first. A bare date spans that whole day.
var timeQueryLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimeQuery parses an optional timestamp query param.
func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	for _, layout := range timeQueryLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, apperrors.Validationf("%s: unrecognized timestamp %q", key, v)
}

// ParseLimitOffset parses common pagination params and clamps to sane bounds.
// - defLimit: default limit when not specified
// - maxLimit: maximum allowed limit (values > maxLimit are clamped to maxLimit).
func ParseLimitOffset(r *http.Request, defLimit, maxLimit int) (int, int) {
	if maxLimit < 1 {
		maxLimit = 1
	}

	lim := parseIntQuery(r, "limit", defLimit)
	off := parseIntQuery(r, "offset", 0)
	if lim < 1 {
		lim = 1
	}
	if lim > maxLimit {
		lim = maxLimit
	}
	if off < 0 {
		off = 0
	}
	return lim, off
}

// writeServiceError maps service-layer errors onto HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, data.ErrRunNotFound):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "run_not_found", Err: err})
	case errors.Is(err, data.ErrControlNotFound):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "control_not_found", Err: err})
	case errors.Is(err, data.ErrControlNameExists):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "control_name_exists", Err: err})
	case apperrors.IsValidation(err):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation_failed", Err: err})
	case apperrors.IsNotFound(err):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: err})
	case apperrors.IsConflict(err):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "conflict", Err: err})
	default:
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal_error", Err: err})
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"orbitspeed/internal/dto"
	"orbitspeed/internal/estimation"
	"orbitspeed/internal/logger"
)

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseTime accepts RFC 3339 timestamps or plain dates ("2006-01-02").
func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t
	}
	return time.Time{}
}

const (
	maxPageSize = 500
	maxPage     = 1_000_000
)

// pagination reads ?page= and ?limit= clamped to [1, maxPage] and
// [1, maxPageSize] so the row offset cannot overflow.
func pagination(q url.Values, defaultLimit int) (page, limit, offset int) {
	page = min(atoiDefault(q.Get("page"), 1), maxPage)
	limit = min(atoiDefault(q.Get("limit"), defaultLimit), maxPageSize)
	return page, limit, (page - 1) * limit
}

func totalPages(length, limit int) int {
	if length == 0 {
		return 0
	}
	return (length + limit - 1) / limit
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// statusFor maps pipeline failures onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, estimation.ErrEmptyImage),
		errors.Is(err, estimation.ErrDecodeFailure),
		errors.Is(err, estimation.ErrInvalidOptions):
		return http.StatusBadRequest
	case estimation.IsTransient(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *logger.Logger, err error) {
	writeJSON(w, logger, statusFor(err), dto.ErrorResponse{
		Error:     err.Error(),
		Transient: estimation.IsTransient(err),
	})
}

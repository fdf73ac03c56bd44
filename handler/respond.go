// Package handler serves the HTTP admin API: risk summaries, the login audit
// trail, attempt ingestion and health.
package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/MichaelAJay/go-login-security/errors"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Details string           `json:"details,omitempty"`
}

// PageResponse wraps a list endpoint result.
type PageResponse[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
}

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// RespondError writes err as an ErrorResponse. AppError codes and the
// not-found sentinels choose the status; anything else is a 500 without
// internal detail.
func RespondError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		RespondJSON(w, StatusForCode(appErr.Code), ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		})
		return
	}

	switch {
	case errors.IsErrorType(err, errors.ErrSummaryNotFound):
		RespondJSON(w, http.StatusNotFound, ErrorResponse{Code: errors.CodeSummaryNotFound, Message: "Risk summary not found"})
	case errors.IsErrorType(err, errors.ErrAttemptNotFound):
		RespondJSON(w, http.StatusNotFound, ErrorResponse{Code: errors.CodeAttemptNotFound, Message: "Login attempt not found"})
	default:
		RespondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Code:    errors.CodeInternalError,
			Message: "internal server error",
		})
	}
}

// StatusForCode maps an error code to its HTTP status.
func StatusForCode(code errors.ErrorCode) int {
	switch code {
	case errors.CodeAttemptNotFound, errors.CodeSummaryNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidAttempt,
		errors.CodeInvalidIPAddress,
		errors.CodeInvalidRiskLevel,
		errors.CodeValidationFailed,
		errors.CodeRequiredFieldMissing,
		errors.CodeFieldTooLong:
		return http.StatusBadRequest
	case errors.CodeServiceUnavailable, errors.CodeHistoryUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON reads and decodes a JSON request body into dst.
func DecodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64<<10))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

// pagination reads offset and limit query parameters. Missing values fall
// back to 0 and defaultPageLimit; limit is capped at maxPageLimit.
func pagination(r *http.Request) (offset, limit int, err error) {
	query := r.URL.Query()

	limit = defaultPageLimit
	if raw := query.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.NewValidationError("offset", "must be a non-negative integer")
		}
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, errors.NewValidationError("limit", "must be a positive integer")
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return offset, limit, nil
}

package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/MichaelAJay/go-logger"

	"github.com/MichaelAJay/go-login-security/audit"
	"github.com/MichaelAJay/go-login-security/errors"
	"github.com/MichaelAJay/go-login-security/validation"
)

// AttemptRecorder stores a login attempt. *audit.Recorder satisfies it.
type AttemptRecorder interface {
	Record(ctx context.Context, attempt *audit.LoginAttempt) (*audit.LoginAttempt, error)
}

// LoginAttemptHandler serves the login audit trail and accepts new attempts.
type LoginAttemptHandler struct {
	attempts audit.LoginAttemptRepository
	recorder AttemptRecorder
	logger   logger.Logger
}

// NewLoginAttemptHandler creates a new LoginAttemptHandler.
func NewLoginAttemptHandler(attempts audit.LoginAttemptRepository, recorder AttemptRecorder, logger logger.Logger) *LoginAttemptHandler {
	return &LoginAttemptHandler{attempts: attempts, recorder: recorder, logger: logger}
}

// recordAttemptRequest is the body of POST /api/login-attempts.
type recordAttemptRequest struct {
	UserID       string     `json:"user_id"`
	UserName     string     `json:"user_name"`
	Provider     string     `json:"provider"`
	Success      bool       `json:"success"`
	IPAddress    string     `json:"ip_address,omitempty"`
	BrowserInfo  string     `json:"browser_info,omitempty"`
	Region       string     `json:"region,omitempty"`
	LoginTimeUTC *time.Time `json:"login_time_utc,omitempty"`
}

// List handles GET /api/login-attempts?user_id&ip&success&offset&limit,
// newest first.
func (h *LoginAttemptHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pagination(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	query := r.URL.Query()
	filter := audit.ListFilter{
		UserID:    query.Get("user_id"),
		IPAddress: query.Get("ip"),
		Offset:    offset,
		Limit:     limit,
	}
	if filter.IPAddress != "" {
		if err := validation.ValidateIPAddress(filter.IPAddress); err != nil {
			RespondError(w, err)
			return
		}
		filter.IPAddress = validation.NormalizeIPAddress(filter.IPAddress)
	}
	if raw := query.Get("success"); raw != "" {
		success, err := strconv.ParseBool(raw)
		if err != nil {
			RespondError(w, errors.NewValidationError("success", "must be true or false"))
			return
		}
		filter.Success = &success
	}

	attempts, total, err := h.attempts.List(r.Context(), filter)
	if err != nil {
		RespondError(w, err)
		return
	}
	if attempts == nil {
		attempts = []*audit.LoginAttempt{}
	}

	RespondJSON(w, http.StatusOK, PageResponse[*audit.LoginAttempt]{
		Items:  attempts,
		Total:  total,
		Offset: offset,
		Limit:  limit,
	})
}

// Create handles POST /api/login-attempts. The client address and user
// agent of the request fill in a missing ip_address and browser_info.
func (h *LoginAttemptHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req recordAttemptRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, errors.NewValidationError("body", err.Error()))
		return
	}

	attempt := &audit.LoginAttempt{
		UserID:      req.UserID,
		UserName:    req.UserName,
		Provider:    req.Provider,
		Success:     req.Success,
		IPAddress:   req.IPAddress,
		BrowserInfo: req.BrowserInfo,
		Region:      req.Region,
	}
	if attempt.Provider == "" {
		attempt.Provider = audit.ProviderLocal
	}
	if attempt.IPAddress == "" {
		attempt.IPAddress = audit.ClientIP(r)
	} else if err := validation.ValidateIPAddress(attempt.IPAddress); err != nil {
		RespondError(w, err)
		return
	}
	if attempt.BrowserInfo == "" {
		attempt.BrowserInfo = audit.UserAgent(r)
	}
	if req.LoginTimeUTC != nil {
		attempt.LoginTimeUTC = req.LoginTimeUTC.UTC()
	}

	stored, err := h.recorder.Record(r.Context(), attempt)
	if stored == nil {
		RespondError(w, err)
		return
	}
	if err != nil {
		h.logger.WithContext(r.Context()).Warn("Login attempt stored but a handler failed",
			logger.Field{Key: "attempt_id", Value: stored.ID},
			logger.Field{Key: "error", Value: err.Error()})
	}

	RespondJSON(w, http.StatusCreated, stored)
}

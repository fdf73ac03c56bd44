package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MichaelAJay/go-login-security/errors"
	"github.com/MichaelAJay/go-login-security/security"
)

// RiskSummaryHandler serves the per-user risk summaries.
type RiskSummaryHandler struct {
	summaries security.RiskSummaryRepository
}

// NewRiskSummaryHandler creates a new RiskSummaryHandler.
func NewRiskSummaryHandler(summaries security.RiskSummaryRepository) *RiskSummaryHandler {
	return &RiskSummaryHandler{summaries: summaries}
}

// List handles GET /api/risk-summaries, highest score first.
func (h *RiskSummaryHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pagination(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	summaries, total, err := h.summaries.List(r.Context(), offset, limit)
	if err != nil {
		RespondError(w, err)
		return
	}
	if summaries == nil {
		summaries = []*security.UserLoginRiskSummary{}
	}

	RespondJSON(w, http.StatusOK, PageResponse[*security.UserLoginRiskSummary]{
		Items:  summaries,
		Total:  total,
		Offset: offset,
		Limit:  limit,
	})
}

// Get handles GET /api/risk-summaries/{userID}.
func (h *RiskSummaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		RespondError(w, errors.NewRequiredFieldError("user_id"))
		return
	}

	summary, err := h.summaries.GetByUserID(r.Context(), userID)
	if err != nil {
		if errors.IsErrorType(err, errors.ErrSummaryNotFound) {
			RespondError(w, errors.NewSummaryNotFoundError(userID))
			return
		}
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, summary)
}

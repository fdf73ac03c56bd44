package security

import (
	"strings"
	"time"

	"github.com/MichaelAJay/go-login-security/validation"
	"github.com/google/uuid"
)

// noRiskDescription is stored when no rule triggered.
const noRiskDescription = "No risk factors detected."

// UserLoginRiskSummary is the persisted, one-row-per-user view of the most
// recent analysis. Rows are created on a user's first analyzed attempt and
// overwritten afterwards; this package never deletes them.
//
// Primary Key: ID, Unique: UserID
type UserLoginRiskSummary struct {
	ID       string `json:"id" db:"id"`
	UserID   string `json:"user_id" db:"user_id"`
	UserName string `json:"user_name" db:"user_name"`

	RiskLevel RiskLevel `json:"risk_level" db:"risk_level"`
	RiskScore int       `json:"risk_score" db:"risk_score"`

	// Description lists the risk factors, at most 1000 characters
	Description string `json:"description" db:"description"`

	// Advice joins the advice strings, at most 1000 characters
	Advice string `json:"advice" db:"advice"`

	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	CreatedBy      string    `json:"created_by" db:"created_by"`
	LastModifiedAt time.Time `json:"last_modified_at" db:"last_modified_at"`
	LastModifiedBy string    `json:"last_modified_by" db:"last_modified_by"`
}

// NewUserLoginRiskSummary creates an empty Low summary for a user.
func NewUserLoginRiskSummary(userID, userName string) *UserLoginRiskSummary {
	return &UserLoginRiskSummary{
		ID:        uuid.New().String(),
		UserID:    userID,
		UserName:  userName,
		RiskLevel: RiskLevelLow,
	}
}

// Apply overwrites the summary with analysis, stamping actor and now as the
// modifier. Creation metadata is only set on rows that have none.
func (s *UserLoginRiskSummary) Apply(analysis *AnalysisResult, actor string, now time.Time) {
	s.RiskLevel = analysis.RiskLevel
	s.RiskScore = analysis.RiskScore
	s.Description = DescribeAnalysis(analysis)
	s.Advice = validation.Truncate(strings.Join(analysis.SecurityAdvice, " "), validation.MaxAdviceLength)

	now = now.UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
		s.CreatedBy = actor
	}
	s.LastModifiedAt = now
	s.LastModifiedBy = actor
}

// DescribeAnalysis renders the risk factors as a single description line.
func DescribeAnalysis(analysis *AnalysisResult) string {
	if len(analysis.RiskFactors) == 0 {
		return noRiskDescription
	}
	return validation.Truncate(strings.Join(analysis.RiskFactors, "; "), validation.MaxDescriptionLength)
}

// Clone returns a copy of the summary.
func (s *UserLoginRiskSummary) Clone() *UserLoginRiskSummary {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

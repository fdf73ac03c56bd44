package security

import (
	"context"
	"time"

	"github.com/MichaelAJay/go-login-security/audit"
)

// HistoryReader is the read side of the login attempt store used for
// analysis. audit.LoginAttemptRepository satisfies it.
type HistoryReader interface {
	ListByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]*audit.LoginAttempt, error)
	ListSuccessfulByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]*audit.LoginAttempt, error)
	ListByIPSince(ctx context.Context, ipAddress string, since time.Time, limit int) ([]*audit.LoginAttempt, error)
}

// RiskSummaryRepository stores one UserLoginRiskSummary per user.
type RiskSummaryRepository interface {
	// GetByUserID returns errors.ErrSummaryNotFound when the user has no summary
	GetByUserID(ctx context.Context, userID string) (*UserLoginRiskSummary, error)

	// Upsert inserts the summary or overwrites the row with the same UserID.
	// Concurrent writers for one user resolve last-write-wins; the existing
	// row keeps its ID and creation metadata, which are copied back into
	// summary.
	Upsert(ctx context.Context, summary *UserLoginRiskSummary) error

	// List returns summaries ordered by RiskScore descending, then UserID,
	// with the total row count
	List(ctx context.Context, offset, limit int) ([]*UserLoginRiskSummary, int64, error)
}

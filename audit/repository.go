package audit

import (
	"context"
	"time"
)

// LoginAttemptRepository persists login attempts and serves history windows.
// Implementations return attempts ordered by LoginTimeUTC descending.
type LoginAttemptRepository interface {
	// Create stores the attempt and sets its ID
	Create(ctx context.Context, attempt *LoginAttempt) error

	// GetByID returns errors.ErrAttemptNotFound when absent
	GetByID(ctx context.Context, id int64) (*LoginAttempt, error)

	// ListByUserSince returns attempts for userID with LoginTimeUTC >= since
	ListByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]*LoginAttempt, error)

	// ListSuccessfulByUserSince returns successful attempts for userID with
	// LoginTimeUTC >= since
	ListSuccessfulByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]*LoginAttempt, error)

	// ListByIPSince returns attempts from ipAddress with LoginTimeUTC >= since
	ListByIPSince(ctx context.Context, ipAddress string, since time.Time, limit int) ([]*LoginAttempt, error)

	// List returns a filtered page of attempts and the total match count
	List(ctx context.Context, filter ListFilter) ([]*LoginAttempt, int64, error)
}

// ListFilter narrows List results. Zero values mean "any".
type ListFilter struct {
	UserID    string
	IPAddress string
	Success   *bool
	Since     time.Time
	Offset    int
	Limit     int
}

// Matches reports whether attempt satisfies the filter's predicates.
// Offset and Limit are ignored.
func (f ListFilter) Matches(attempt *LoginAttempt) bool {
	if f.UserID != "" && attempt.UserID != f.UserID {
		return false
	}
	if f.IPAddress != "" && attempt.IPAddress != f.IPAddress {
		return false
	}
	if f.Success != nil && attempt.Success != *f.Success {
		return false
	}
	if !f.Since.IsZero() && attempt.LoginTimeUTC.Before(f.Since) {
		return false
	}
	return true
}

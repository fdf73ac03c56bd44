// repository/memory/login_attempts.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MichaelAJay/go-login-security/audit"
	"github.com/MichaelAJay/go-login-security/errors"
)

// failureSwitch injects repository errors for tests and chaos drills.
type failureSwitch struct {
	always map[string]bool
	next   map[string]int
}

func newFailureSwitch() failureSwitch {
	return failureSwitch{always: make(map[string]bool), next: make(map[string]int)}
}

// shouldFail must be called with the owning repository's lock held.
func (f *failureSwitch) shouldFail(method string) bool {
	if f.always[method] {
		return true
	}
	if f.next[method] > 0 {
		f.next[method]--
		return true
	}
	return false
}

// LoginAttemptRepository implements audit.LoginAttemptRepository in memory.
type LoginAttemptRepository struct {
	mu       sync.Mutex
	attempts []*audit.LoginAttempt
	nextID   int64
	failures failureSwitch
}

// NewLoginAttemptRepository creates an empty repository.
func NewLoginAttemptRepository() *LoginAttemptRepository {
	return &LoginAttemptRepository{failures: newFailureSwitch()}
}

// SetShouldFail makes every call to method fail.
func (r *LoginAttemptRepository) SetShouldFail(method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures.always[method] = true
}

// FailNext makes the next n calls to method fail.
func (r *LoginAttemptRepository) FailNext(method string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures.next[method] = n
}

// Create stores a copy of attempt and assigns its ID.
func (r *LoginAttemptRepository) Create(ctx context.Context, attempt *audit.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failures.shouldFail("Create") {
		return errors.NewServiceUnavailableError("login attempt store", errors.ErrRepositoryFailure)
	}

	r.nextID++
	attempt.ID = r.nextID
	stored := attempt.Clone()
	stored.LoginTimeUTC = stored.LoginTimeUTC.UTC()
	r.attempts = append(r.attempts, stored)
	return nil
}

// GetByID returns a copy of the attempt with id.
func (r *LoginAttemptRepository) GetByID(ctx context.Context, id int64) (*audit.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failures.shouldFail("GetByID") {
		return nil, errors.NewServiceUnavailableError("login attempt store", errors.ErrRepositoryFailure)
	}

	for _, a := range r.attempts {
		if a.ID == id {
			return a.Clone(), nil
		}
	}
	return nil, errors.ErrAttemptNotFound
}

// ListByUserSince returns the user's attempts at or after since, newest first.
func (r *LoginAttemptRepository) ListByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]*audit.LoginAttempt, error) {
	return r.listMatching(ctx, "ListByUserSince", audit.ListFilter{UserID: userID, Since: since, Limit: limit})
}

// ListSuccessfulByUserSince returns the user's successful attempts at or
// after since, newest first.
func (r *LoginAttemptRepository) ListSuccessfulByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]*audit.LoginAttempt, error) {
	success := true
	return r.listMatching(ctx, "ListSuccessfulByUserSince", audit.ListFilter{UserID: userID, Success: &success, Since: since, Limit: limit})
}

// ListByIPSince returns attempts from ipAddress at or after since, newest first.
func (r *LoginAttemptRepository) ListByIPSince(ctx context.Context, ipAddress string, since time.Time, limit int) ([]*audit.LoginAttempt, error) {
	if ipAddress == "" {
		return []*audit.LoginAttempt{}, nil
	}
	return r.listMatching(ctx, "ListByIPSince", audit.ListFilter{IPAddress: ipAddress, Since: since, Limit: limit})
}

// List returns a filtered page, newest first, and the total match count.
func (r *LoginAttemptRepository) List(ctx context.Context, filter audit.ListFilter) ([]*audit.LoginAttempt, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failures.shouldFail("List") {
		return nil, 0, errors.NewServiceUnavailableError("login attempt store", errors.ErrRepositoryFailure)
	}

	matched := r.matchLocked(filter)
	total := int64(len(matched))

	start := filter.Offset
	if start < 0 {
		start = 0
	}
	if start >= len(matched) {
		return []*audit.LoginAttempt{}, total, nil
	}
	end := len(matched)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return matched[start:end], total, nil
}

func (r *LoginAttemptRepository) listMatching(ctx context.Context, method string, filter audit.ListFilter) ([]*audit.LoginAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failures.shouldFail(method) {
		return nil, errors.NewServiceUnavailableError("login attempt store", errors.ErrRepositoryFailure)
	}

	matched := r.matchLocked(filter)
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// matchLocked returns copies of matching attempts ordered newest first, ties by ID descending.
func (r *LoginAttemptRepository) matchLocked(filter audit.ListFilter) []*audit.LoginAttempt {
	matched := make([]*audit.LoginAttempt, 0)
	for _, a := range r.attempts {
		if filter.Matches(a) {
			matched = append(matched, a.Clone())
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].LoginTimeUTC.Equal(matched[j].LoginTimeUTC) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].LoginTimeUTC.After(matched[j].LoginTimeUTC)
	})
	return matched
}

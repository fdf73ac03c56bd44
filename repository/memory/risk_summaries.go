// repository/memory/risk_summaries.go
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/MichaelAJay/go-login-security/errors"
	"github.com/MichaelAJay/go-login-security/security"
)

// RiskSummaryRepository implements security.RiskSummaryRepository in memory.
// The mutex serializes upserts, so concurrent writers resolve last-write-wins.
type RiskSummaryRepository struct {
	mu        sync.RWMutex
	summaries map[string]*security.UserLoginRiskSummary // userID -> summary
	writes    int
	failures  failureSwitch
}

// NewRiskSummaryRepository creates an empty repository.
func NewRiskSummaryRepository() *RiskSummaryRepository {
	return &RiskSummaryRepository{
		summaries: make(map[string]*security.UserLoginRiskSummary),
		failures:  newFailureSwitch(),
	}
}

// SetShouldFail makes every call to method fail.
func (r *RiskSummaryRepository) SetShouldFail(method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures.always[method] = true
}

// FailNext makes the next n calls to method fail.
func (r *RiskSummaryRepository) FailNext(method string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures.next[method] = n
}

// Writes returns how many upserts succeeded.
func (r *RiskSummaryRepository) Writes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}

// GetByUserID returns a copy of the user's summary.
func (r *RiskSummaryRepository) GetByUserID(ctx context.Context, userID string) (*security.UserLoginRiskSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failures.shouldFail("GetByUserID") {
		return nil, errors.NewServiceUnavailableError("risk summary store", errors.ErrRepositoryFailure)
	}

	summary, exists := r.summaries[userID]
	if !exists {
		return nil, errors.ErrSummaryNotFound
	}
	return summary.Clone(), nil
}

// Upsert stores summary, keeping the ID and creation metadata of an existing
// row and copying them back into summary.
func (r *RiskSummaryRepository) Upsert(ctx context.Context, summary *security.UserLoginRiskSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failures.shouldFail("Upsert") {
		return errors.NewServiceUnavailableError("risk summary store", errors.ErrRepositoryFailure)
	}
	if summary.UserID == "" {
		return errors.NewRequiredFieldError("user_id")
	}

	stored := summary.Clone()
	if existing, exists := r.summaries[summary.UserID]; exists {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
		stored.CreatedBy = existing.CreatedBy
	}
	r.summaries[summary.UserID] = stored
	r.writes++

	summary.ID = stored.ID
	summary.CreatedAt = stored.CreatedAt
	summary.CreatedBy = stored.CreatedBy
	return nil
}

// List returns summaries by RiskScore descending, then UserID ascending.
func (r *RiskSummaryRepository) List(ctx context.Context, offset, limit int) ([]*security.UserLoginRiskSummary, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failures.shouldFail("List") {
		return nil, 0, errors.NewServiceUnavailableError("risk summary store", errors.ErrRepositoryFailure)
	}

	all := make([]*security.UserLoginRiskSummary, 0, len(r.summaries))
	for _, s := range r.summaries {
		all = append(all, s.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].RiskScore != all[j].RiskScore {
			return all[i].RiskScore > all[j].RiskScore
		}
		return all[i].UserID < all[j].UserID
	})

	total := int64(len(all))
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []*security.UserLoginRiskSummary{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

// repository/postgres/risk_summary_repository.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/MichaelAJay/go-login-security/errors"
	"github.com/MichaelAJay/go-login-security/security"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const riskSummaryColumns = `id, user_id, user_name, risk_level, risk_score, description, advice,
			   created_at, created_by, last_modified_at, last_modified_by`

// riskSummaryRepository implements security.RiskSummaryRepository for PostgreSQL using pgx/v5
type riskSummaryRepository struct {
	pool *pgxpool.Pool
}

// NewRiskSummaryRepository creates a new PostgreSQL risk summary repository
func NewRiskSummaryRepository(pool *pgxpool.Pool) security.RiskSummaryRepository {
	return &riskSummaryRepository{
		pool: pool,
	}
}

// GetByUserID retrieves the summary for a user
func (r *riskSummaryRepository) GetByUserID(ctx context.Context, userID string) (*security.UserLoginRiskSummary, error) {
	query := `SELECT ` + riskSummaryColumns + ` FROM user_login_risk_summaries WHERE user_id = $1`

	summary, err := scanRiskSummary(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrSummaryNotFound
		}
		return nil, fmt.Errorf("failed to get risk summary: %w", err)
	}

	return summary, nil
}

// Upsert inserts the summary or overwrites the user's existing row. The
// existing row keeps its id and creation metadata, which are scanned back
// into summary.
func (r *riskSummaryRepository) Upsert(ctx context.Context, summary *security.UserLoginRiskSummary) error {
	if summary.UserID == "" {
		return apperrors.NewRequiredFieldError("user_id")
	}

	query := `
		INSERT INTO user_login_risk_summaries (
			id, user_id, user_name, risk_level, risk_score, description, advice,
			created_at, created_by, last_modified_at, last_modified_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE
		SET user_name = EXCLUDED.user_name,
			risk_level = EXCLUDED.risk_level,
			risk_score = EXCLUDED.risk_score,
			description = EXCLUDED.description,
			advice = EXCLUDED.advice,
			last_modified_at = EXCLUDED.last_modified_at,
			last_modified_by = EXCLUDED.last_modified_by
		RETURNING id, created_at, created_by`

	var createdAt time.Time
	err := r.pool.QueryRow(ctx, query,
		summary.ID,
		summary.UserID,
		summary.UserName,
		summary.RiskLevel.String(),
		summary.RiskScore,
		summary.Description,
		summary.Advice,
		summary.CreatedAt.UTC(),
		summary.CreatedBy,
		summary.LastModifiedAt.UTC(),
		summary.LastModifiedBy,
	).Scan(&summary.ID, &createdAt, &summary.CreatedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return apperrors.NewValidationError(pgErr.ConstraintName, pgErr.Message)
		}
		return fmt.Errorf("failed to upsert risk summary: %w", err)
	}

	summary.CreatedAt = createdAt.UTC()
	return nil
}

// List returns summaries by risk score descending, then user id, with the total count
func (r *riskSummaryRepository) List(ctx context.Context, offset, limit int) ([]*security.UserLoginRiskSummary, int64, error) {
	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM user_login_risk_summaries`
	if err := r.pool.QueryRow(ctx, countQuery).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count risk summaries: %w", err)
	}

	if offset < 0 {
		offset = 0
	}
	query := `
		SELECT ` + riskSummaryColumns + `
		FROM user_login_risk_summaries
		ORDER BY risk_score DESC, user_id ASC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limitOrAll(limit), offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list risk summaries: %w", err)
	}
	defer rows.Close()

	summaries := []*security.UserLoginRiskSummary{}
	for rows.Next() {
		summary, err := scanRiskSummary(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan risk summary row: %w", err)
		}
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating risk summary rows: %w", err)
	}

	return summaries, totalCount, nil
}

func scanRiskSummary(row pgx.Row) (*security.UserLoginRiskSummary, error) {
	summary := &security.UserLoginRiskSummary{}
	var levelStr string

	err := row.Scan(
		&summary.ID,
		&summary.UserID,
		&summary.UserName,
		&levelStr,
		&summary.RiskScore,
		&summary.Description,
		&summary.Advice,
		&summary.CreatedAt,
		&summary.CreatedBy,
		&summary.LastModifiedAt,
		&summary.LastModifiedBy,
	)
	if err != nil {
		return nil, err
	}

	level, err := security.ParseRiskLevel(levelStr)
	if err != nil {
		return nil, err
	}
	summary.RiskLevel = level
	summary.CreatedAt = summary.CreatedAt.UTC()
	summary.LastModifiedAt = summary.LastModifiedAt.UTC()

	return summary, nil
}

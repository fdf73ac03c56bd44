// repository/postgres/login_attempt_repository.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MichaelAJay/go-login-security/audit"
	apperrors "github.com/MichaelAJay/go-login-security/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const loginAttemptColumns = `id, login_time_utc, user_id, user_name, ip_address, browser_info,
			   region, provider, device_hash, success`

// loginAttemptRepository implements audit.LoginAttemptRepository for PostgreSQL using pgx/v5
type loginAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewLoginAttemptRepository creates a new PostgreSQL login attempt repository
func NewLoginAttemptRepository(pool *pgxpool.Pool) audit.LoginAttemptRepository {
	return &loginAttemptRepository{
		pool: pool,
	}
}

// Create inserts the attempt and sets its generated ID
func (r *loginAttemptRepository) Create(ctx context.Context, attempt *audit.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (
			login_time_utc, user_id, user_name, ip_address, browser_info,
			region, provider, device_hash, success
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		attempt.LoginTimeUTC.UTC(),
		attempt.UserID,
		attempt.UserName,
		attempt.IPAddress,
		attempt.BrowserInfo,
		attempt.Region,
		attempt.Provider,
		attempt.DeviceHash,
		attempt.Success,
	).Scan(&attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to create login attempt: %w", err)
	}

	return nil
}

// GetByID retrieves a login attempt by its ID
func (r *loginAttemptRepository) GetByID(ctx context.Context, id int64) (*audit.LoginAttempt, error) {
	query := `SELECT ` + loginAttemptColumns + ` FROM login_attempts WHERE id = $1`

	attempt, err := scanLoginAttempt(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get login attempt: %w", err)
	}

	return attempt, nil
}

// ListByUserSince returns the account's attempts at or after since, newest first
func (r *loginAttemptRepository) ListByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]*audit.LoginAttempt, error) {
	query := `
		SELECT ` + loginAttemptColumns + `
		FROM login_attempts
		WHERE user_id = $1 AND login_time_utc >= $2
		ORDER BY login_time_utc DESC, id DESC
		LIMIT $3`

	return r.query(ctx, query, userID, since.UTC(), limitOrAll(limit))
}

// ListSuccessfulByUserSince returns the account's successful attempts at or after since, newest first
func (r *loginAttemptRepository) ListSuccessfulByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]*audit.LoginAttempt, error) {
	query := `
		SELECT ` + loginAttemptColumns + `
		FROM login_attempts
		WHERE user_id = $1 AND success AND login_time_utc >= $2
		ORDER BY login_time_utc DESC, id DESC
		LIMIT $3`

	return r.query(ctx, query, userID, since.UTC(), limitOrAll(limit))
}

// ListByIPSince returns attempts from ipAddress at or after since, any account, newest first
func (r *loginAttemptRepository) ListByIPSince(ctx context.Context, ipAddress string, since time.Time, limit int) ([]*audit.LoginAttempt, error) {
	if ipAddress == "" {
		return []*audit.LoginAttempt{}, nil
	}

	query := `
		SELECT ` + loginAttemptColumns + `
		FROM login_attempts
		WHERE ip_address = $1 AND login_time_utc >= $2
		ORDER BY login_time_utc DESC, id DESC
		LIMIT $3`

	return r.query(ctx, query, ipAddress, since.UTC(), limitOrAll(limit))
}

// List returns a filtered page of attempts, newest first, with the total match count
func (r *loginAttemptRepository) List(ctx context.Context, filter audit.ListFilter) ([]*audit.LoginAttempt, int64, error) {
	where, args := listFilterClause(filter)

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM login_attempts` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count login attempts: %w", err)
	}

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limitOrAll(filter.Limit), offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM login_attempts%s
		ORDER BY login_time_utc DESC, id DESC
		LIMIT $%d OFFSET $%d`, loginAttemptColumns, where, len(args)-1, len(args))

	attempts, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return attempts, totalCount, nil
}

func (r *loginAttemptRepository) query(ctx context.Context, query string, args ...any) ([]*audit.LoginAttempt, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list login attempts: %w", err)
	}
	defer rows.Close()

	attempts := []*audit.LoginAttempt{}
	for rows.Next() {
		attempt, err := scanLoginAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login attempt row: %w", err)
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating login attempt rows: %w", err)
	}

	return attempts, nil
}

func scanLoginAttempt(row pgx.Row) (*audit.LoginAttempt, error) {
	attempt := &audit.LoginAttempt{}
	err := row.Scan(
		&attempt.ID,
		&attempt.LoginTimeUTC,
		&attempt.UserID,
		&attempt.UserName,
		&attempt.IPAddress,
		&attempt.BrowserInfo,
		&attempt.Region,
		&attempt.Provider,
		&attempt.DeviceHash,
		&attempt.Success,
	)
	if err != nil {
		return nil, err
	}
	attempt.LoginTimeUTC = attempt.LoginTimeUTC.UTC()
	return attempt, nil
}

// listFilterClause builds the WHERE clause for filter with positional args.
func listFilterClause(filter audit.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.IPAddress != "" {
		add("ip_address = $%d", filter.IPAddress)
	}
	if filter.Success != nil {
		add("success = $%d", *filter.Success)
	}
	if !filter.Since.IsZero() {
		add("login_time_utc >= $%d", filter.Since.UTC())
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// limitOrAll maps a non-positive limit to SQL's LIMIT ALL.
func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

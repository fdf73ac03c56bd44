// repository/provider.go
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/MichaelAJay/go-login-security/errors"
	"github.com/MichaelAJay/go-login-security/repository/memory"
	"github.com/MichaelAJay/go-login-security/repository/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Provider defines the interface for repository providers
type Provider interface {
	// GetLoginAttemptRepository returns the login audit repository implementation
	GetLoginAttemptRepository() LoginAttemptRepository

	// GetRiskSummaryRepository returns the risk summary repository implementation
	GetRiskSummaryRepository() RiskSummaryRepository

	// Close cleans up any resources held by the provider
	Close() error

	// Ping checks if the underlying storage is accessible
	Ping(ctx context.Context) error
}

// ProviderType represents different repository provider types
type ProviderType string

const (
	// ProviderTypePostgres represents PostgreSQL repository provider
	ProviderTypePostgres ProviderType = "postgres"

	// ProviderTypeMemory represents in-memory repository provider (for testing)
	ProviderTypeMemory ProviderType = "memory"
)

// Config contains configuration for repository providers
type Config struct {
	Type ProviderType `json:"type"`

	// Database connection settings (for SQL providers)
	DatabaseURL     string `json:"database_url,omitempty"`
	MaxOpenConns    int    `json:"max_open_conns,omitempty"`
	MaxIdleConns    int    `json:"max_idle_conns,omitempty"`
	ConnMaxLifetime string `json:"conn_max_lifetime,omitempty"`
}

// NewProvider creates a new repository provider based on the configuration
func NewProvider(ctx context.Context, config Config) (Provider, error) {
	switch config.Type {
	case ProviderTypePostgres:
		return NewPostgresProvider(ctx, config)
	case ProviderTypeMemory:
		return NewMemoryProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported repository provider type: %s", config.Type)
	}
}

// PostgresProvider implements Provider for PostgreSQL using pgx/v5
type PostgresProvider struct {
	pool          *pgxpool.Pool
	attemptRepo   LoginAttemptRepository
	summariesRepo RiskSummaryRepository
}

// NewPostgresProvider creates a new PostgreSQL repository provider
func NewPostgresProvider(ctx context.Context, config Config) (*PostgresProvider, error) {
	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL is required for PostgreSQL provider")
	}

	// Configure connection pool
	poolConfig, err := pgxpool.ParseConfig(config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if config.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime != "" {
		duration, err := time.ParseDuration(config.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("invalid conn_max_lifetime %q: %w", config.ConnMaxLifetime, err)
		}
		poolConfig.MaxConnLifetime = duration
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.NewServiceUnavailableError("database", fmt.Errorf("%w: %w", errors.ErrDatabaseConnection, err))
	}

	return &PostgresProvider{
		pool:          pool,
		attemptRepo:   postgres.NewLoginAttemptRepository(pool),
		summariesRepo: postgres.NewRiskSummaryRepository(pool),
	}, nil
}

// GetLoginAttemptRepository returns the login audit repository implementation
func (p *PostgresProvider) GetLoginAttemptRepository() LoginAttemptRepository {
	return p.attemptRepo
}

// GetRiskSummaryRepository returns the risk summary repository implementation
func (p *PostgresProvider) GetRiskSummaryRepository() RiskSummaryRepository {
	return p.summariesRepo
}

// Close closes the connection pool
func (p *PostgresProvider) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// Ping checks if the database is accessible
func (p *PostgresProvider) Ping(ctx context.Context) error {
	if p.pool == nil {
		return errors.NewServiceUnavailableError("database", errors.ErrDatabaseConnection)
	}
	if err := p.pool.Ping(ctx); err != nil {
		return errors.NewServiceUnavailableError("database", fmt.Errorf("%w: %w", errors.ErrDatabaseConnection, err))
	}
	return nil
}

// MemoryProvider implements Provider for in-memory storage (useful for testing)
type MemoryProvider struct {
	attemptRepo   *memory.LoginAttemptRepository
	summariesRepo *memory.RiskSummaryRepository
}

// NewMemoryProvider creates a new in-memory repository provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		attemptRepo:   memory.NewLoginAttemptRepository(),
		summariesRepo: memory.NewRiskSummaryRepository(),
	}
}

// GetLoginAttemptRepository returns the login audit repository implementation
func (p *MemoryProvider) GetLoginAttemptRepository() LoginAttemptRepository {
	return p.attemptRepo
}

// GetRiskSummaryRepository returns the risk summary repository implementation
func (p *MemoryProvider) GetRiskSummaryRepository() RiskSummaryRepository {
	return p.summariesRepo
}

// Close cleans up any resources (no-op for memory provider)
func (p *MemoryProvider) Close() error {
	return nil
}

// Ping checks if the provider is accessible (always true for memory provider)
func (p *MemoryProvider) Ping(ctx context.Context) error {
	return nil
}

// Command risk-analyzer records login attempts, scores them for account
// takeover risk and serves the resulting per-user summaries.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/MichaelAJay/go-cache"
	"github.com/MichaelAJay/go-encrypter"
	"github.com/MichaelAJay/go-logger"
	"golang.org/x/sync/errgroup"

	"github.com/MichaelAJay/go-login-security/audit"
	"github.com/MichaelAJay/go-login-security/configuration"
	"github.com/MichaelAJay/go-login-security/events"
	"github.com/MichaelAJay/go-login-security/handler"
	"github.com/MichaelAJay/go-login-security/logging"
	"github.com/MichaelAJay/go-login-security/repository"
	"github.com/MichaelAJay/go-login-security/repository/postgres"
	"github.com/MichaelAJay/go-login-security/repository/rediscache"
	"github.com/MichaelAJay/go-login-security/security"
	"github.com/MichaelAJay/go-login-security/telemetry"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "risk-analyzer: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.NewZapLogger(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "risk-analyzer: create logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync(log)

	if err := run(cfg, log); err != nil {
		log.Error("risk-analyzer failed", logger.Field{Key: "error", Value: err})
		logging.Sync(log)
		os.Exit(1)
	}
}

func run(cfg *Config, log logger.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings, err := configuration.NewViperConfig(configuration.Options{File: cfg.SettingsFile})
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	provider, err := newProvider(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer provider.Close()

	registry := telemetry.NewPrometheusRegistry(cfg.MetricsNamespace)

	summaryCache, err := newSummaryCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	if summaryCache != nil {
		defer summaryCache.Close()
	}

	analyzer, err := security.NewAnalyzer(
		provider.GetLoginAttemptRepository(),
		provider.GetRiskSummaryRepository(),
		log,
		summaryCache,
		settings,
		registry,
	)
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
	}

	hasher, err := newDeviceHasher(cfg, log)
	if err != nil {
		return err
	}

	publisher := events.NewPublisher(cfg.Brokers(), cfg.KafkaTopic, cfg.KafkaEnabled, log, registry)
	defer publisher.Close()
	consumer := events.NewConsumer(cfg.Brokers(), cfg.KafkaTopic, cfg.KafkaGroupID, cfg.KafkaEnabled, analyzer, log, registry)
	defer consumer.Close()

	// With Kafka the analyzer runs behind the consumer; without it, inline.
	var recordHandler audit.Handler = analyzer
	if publisher.Enabled() {
		recordHandler = publisher
	}
	recorder := audit.NewRecorder(provider.GetLoginAttemptRepository(), hasher, log, registry, recordHandler)

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: handler.NewRouter(handler.Dependencies{
			Attempts:       provider.GetLoginAttemptRepository(),
			Summaries:      provider.GetRiskSummaryRepository(),
			Recorder:       recorder,
			Store:          provider,
			Logger:         log,
			Metrics:        registry,
			MetricsHandler: registry.Handler(),
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		log.Info("HTTP server starting", logger.Field{Key: "addr", Value: srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("risk-analyzer stopped")
	return nil
}

func newProvider(ctx context.Context, cfg *Config, log logger.Logger) (repository.Provider, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		return repository.NewProvider(ctx, repository.Config{Type: repository.ProviderTypeMemory})
	}

	if cfg.MigrateOnStart {
		if err := postgres.RunMigrations(cfg.DatabaseURL, log); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	provider, err := repository.NewProvider(ctx, repository.Config{
		Type:            repository.ProviderTypePostgres,
		DatabaseURL:     cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxConns,
		MaxIdleConns:    cfg.DBMinConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Info("Connected to PostgreSQL")
	return provider, nil
}

// newSummaryCache returns nil when Redis is not configured.
func newSummaryCache(ctx context.Context, cfg *Config, log logger.Logger) (cache.Cache, error) {
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set, risk summary cache disabled")
		return nil, nil
	}
	c, err := rediscache.NewFromURL(ctx, cfg.RedisURL, log, rediscache.Options{Prefix: cfg.RedisPrefix})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return c, nil
}

// newDeviceHasher returns nil when no key is configured; attempts are then
// stored without a device hash.
func newDeviceHasher(cfg *Config, log logger.Logger) (audit.LookupHasher, error) {
	if cfg.EncryptionKey == "" {
		log.Warn("ENCRYPTION_KEY not set, device hashes disabled")
		return nil, nil
	}
	enc, err := encrypter.NewAESEncrypter([]byte(cfg.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("create encrypter: %w", err)
	}
	return enc, nil
}

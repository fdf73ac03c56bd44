package audit

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MichaelAJay/go-logger"
	"github.com/MichaelAJay/go-metrics"
	"github.com/google/uuid"
)

// LookupHasher produces deterministic keyed hashes. go-encrypter's Encrypter
// satisfies it.
type LookupHasher interface {
	HashLookupData(data []byte) []byte
}

// Recorder persists login attempts and notifies registered handlers.
// Errors are logged and returned, but callers on the login path are expected
// to ignore them so auditing never blocks authentication.
type Recorder struct {
	repository LoginAttemptRepository
	hasher     LookupHasher
	logger     logger.Logger
	metrics    metrics.Registry

	mu       sync.RWMutex
	handlers []Handler
}

// NewRecorder creates a Recorder. hasher may be nil, in which case no device
// hash is stored.
func NewRecorder(
	repository LoginAttemptRepository,
	hasher LookupHasher,
	logger logger.Logger,
	metrics metrics.Registry,
	handlers ...Handler,
) *Recorder {
	return &Recorder{
		repository: repository,
		hasher:     hasher,
		logger:     logger,
		metrics:    metrics,
		handlers:   handlers,
	}
}

// AddHandler registers h to receive LoginAttemptRecorded events.
func (r *Recorder) AddHandler(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

// Record sanitizes and stores attempt, then dispatches the recorded event to
// every handler in registration order. The stored copy is returned even when
// a handler fails.
func (r *Recorder) Record(ctx context.Context, attempt *LoginAttempt) (*LoginAttempt, error) {
	startTime := time.Now()
	defer func() {
		r.metrics.Timer(metrics.Options{Name: "login_audit.record_duration"}).RecordSince(startTime)
	}()

	if attempt == nil {
		r.metrics.Counter(metrics.Options{Name: "login_audit.record_invalid"}).Inc()
		return nil, (*LoginAttempt)(nil).Validate()
	}

	stored := attempt.Clone()
	stored.ID = 0
	stored.Sanitize()
	if stored.LoginTimeUTC.IsZero() {
		stored.LoginTimeUTC = startTime.UTC()
	}

	if err := stored.Validate(); err != nil {
		r.metrics.Counter(metrics.Options{Name: "login_audit.record_invalid"}).Inc()
		r.logger.Warn("Rejected invalid login attempt",
			logger.Field{Key: "user_id", Value: stored.UserID},
			logger.Field{Key: "error", Value: err.Error()})
		return nil, err
	}

	if stored.BrowserInfo != "" && r.hasher != nil {
		stored.DeviceHash = hex.EncodeToString(r.hasher.HashLookupData([]byte(stored.BrowserInfo)))
	}

	if err := r.repository.Create(ctx, stored); err != nil {
		r.metrics.Counter(metrics.Options{Name: "login_audit.record_failed"}).Inc()
		r.logger.Error("Failed to store login attempt",
			logger.Field{Key: "user_id", Value: stored.UserID},
			logger.Field{Key: "ip_address", Value: stored.IPAddress},
			logger.Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("failed to store login attempt: %w", err)
	}

	r.metrics.Counter(metrics.Options{
		Name: "login_audit.recorded",
		Tags: metrics.Tags{"success": fmt.Sprintf("%t", stored.Success)},
	}).Inc()

	r.logger.Info("Login attempt recorded",
		logger.Field{Key: "attempt_id", Value: stored.ID},
		logger.Field{Key: "user_id", Value: stored.UserID},
		logger.Field{Key: "success", Value: stored.Success},
		logger.Field{Key: "provider", Value: stored.Provider})

	return stored, r.dispatch(ctx, stored)
}

// RecordFromRequest records an attempt using the client address and user
// agent of an HTTP request.
func (r *Recorder) RecordFromRequest(
	ctx context.Context,
	req *http.Request,
	userID, userName, provider string,
	success bool,
) (*LoginAttempt, error) {
	return r.Record(ctx, &LoginAttempt{
		LoginTimeUTC: time.Now().UTC(),
		UserID:       userID,
		UserName:     userName,
		IPAddress:    ClientIP(req),
		BrowserInfo:  UserAgent(req),
		Provider:     provider,
		Success:      success,
	})
}

func (r *Recorder) dispatch(ctx context.Context, stored *LoginAttempt) error {
	r.mu.RLock()
	handlers := make([]Handler, len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	event := LoginAttemptRecorded{
		EventID:    uuid.NewString(),
		RecordedAt: time.Now().UTC(),
		Attempt:    *stored,
	}

	var errs []error
	for _, h := range handlers {
		if err := h.HandleLoginAttemptRecorded(ctx, event); err != nil {
			r.metrics.Counter(metrics.Options{Name: "login_audit.handler_failed"}).Inc()
			r.logger.Warn("Login attempt handler failed",
				logger.Field{Key: "event_id", Value: event.EventID},
				logger.Field{Key: "user_id", Value: stored.UserID},
				logger.Field{Key: "error", Value: err.Error()})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

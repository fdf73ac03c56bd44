package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MichaelAJay/go-logger"
	"github.com/MichaelAJay/go-metrics"

	"github.com/MichaelAJay/go-login-security/errors"
)

// Mock Logger Implementation
type mockLogger struct {
	mu    sync.Mutex
	warns []string
}

func (m *mockLogger) Debug(msg string, fields ...logger.Field) {}
func (m *mockLogger) Info(msg string, fields ...logger.Field)  {}
func (m *mockLogger) Warn(msg string, fields ...logger.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}
func (m *mockLogger) Error(msg string, fields ...logger.Field) {}
func (m *mockLogger) Fatal(msg string, fields ...logger.Field) {}
func (m *mockLogger) With(fields ...logger.Field) logger.Logger {
	return m
}
func (m *mockLogger) WithContext(ctx context.Context) logger.Logger {
	return m
}

// Mock Metrics Implementation that counts counter increments by name
type mockMetrics struct {
	mu       sync.Mutex
	counters map[string]int
}
type mockTimer struct{}
type mockCounter struct {
	name    string
	metrics *mockMetrics
}
type mockGauge struct{}
type mockHistogram struct{}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{counters: make(map[string]int)}
}

func (m *mockMetrics) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *mockMetrics) Tags() metrics.Tags         { return metrics.Tags{} }
func (m *mockMetrics) Registry() metrics.Registry { return m }
func (m *mockMetrics) Counter(opts metrics.Options) metrics.Counter {
	return &mockCounter{name: opts.Name, metrics: m}
}
func (m *mockMetrics) Gauge(opts metrics.Options) metrics.Gauge { return &mockGauge{} }
func (m *mockMetrics) Histogram(opts metrics.Options) metrics.Histogram {
	return &mockHistogram{}
}
func (m *mockMetrics) Timer(opts metrics.Options) metrics.Timer { return &mockTimer{} }
func (m *mockMetrics) Each(fn func(metrics.Metric))             {}
func (m *mockMetrics) Unregister(name string)                   {}

func (c *mockCounter) Name() string        { return c.name }
func (c *mockCounter) Description() string { return "mock counter" }
func (c *mockCounter) Type() metrics.Type  { return metrics.TypeCounter }
func (c *mockCounter) Tags() metrics.Tags  { return metrics.Tags{} }
func (c *mockCounter) Inc()                { c.Add(1) }
func (c *mockCounter) Add(v float64) {
	c.metrics.mu.Lock()
	defer c.metrics.mu.Unlock()
	c.metrics.counters[c.name] += int(v)
}
func (c *mockCounter) With(tags metrics.Tags) metrics.Counter { return c }

func (m *mockGauge) Name() string                         { return "mock gauge" }
func (m *mockGauge) Description() string                  { return "mock gauge" }
func (m *mockGauge) Type() metrics.Type                   { return metrics.TypeGauge }
func (m *mockGauge) Tags() metrics.Tags                   { return metrics.Tags{} }
func (m *mockGauge) Set(float64)                          {}
func (m *mockGauge) Add(float64)                          {}
func (m *mockGauge) Inc()                                 {}
func (m *mockGauge) Dec()                                 {}
func (m *mockGauge) With(tags metrics.Tags) metrics.Gauge { return m }

func (m *mockHistogram) Name() string                             { return "mock histogram" }
func (m *mockHistogram) Description() string                      { return "mock histogram" }
func (m *mockHistogram) Type() metrics.Type                       { return metrics.TypeHistogram }
func (m *mockHistogram) Tags() metrics.Tags                       { return metrics.Tags{} }
func (m *mockHistogram) Record(float64)                           {}
func (m *mockHistogram) RecordSince(start time.Time)              {}
func (m *mockHistogram) Time(fn func()) time.Duration             { return time.Duration(0) }
func (m *mockHistogram) Observe(float64)                          {}
func (m *mockHistogram) With(tags metrics.Tags) metrics.Histogram { return m }

func (m *mockTimer) Name() string                         { return "mock timer" }
func (m *mockTimer) Description() string                  { return "mock timer" }
func (m *mockTimer) Type() metrics.Type                   { return metrics.TypeTimer }
func (m *mockTimer) Tags() metrics.Tags                   { return metrics.Tags{} }
func (m *mockTimer) Record(d time.Duration)               {}
func (m *mockTimer) RecordSince(start time.Time)          {}
func (m *mockTimer) Time(fn func()) time.Duration         { return time.Duration(0) }
func (m *mockTimer) With(tags metrics.Tags) metrics.Timer { return m }

// Mock Hasher Implementation
type mockHasher struct{}

func (m *mockHasher) HashLookupData(data []byte) []byte {
	return append([]byte("hash:"), data...)
}

// Mock Repository Implementation
type mockRepository struct {
	mu         sync.Mutex
	attempts   []*LoginAttempt
	nextID     int64
	createFunc func(context.Context, *LoginAttempt) error
}

func newMockRepository() *mockRepository {
	return &mockRepository{}
}

func (m *mockRepository) Create(ctx context.Context, attempt *LoginAttempt) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, attempt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	attempt.ID = m.nextID
	m.attempts = append(m.attempts, attempt.Clone())
	return nil
}

func (m *mockRepository) GetByID(ctx context.Context, id int64) (*LoginAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.ID == id {
			return a.Clone(), nil
		}
	}
	return nil, errors.ErrAttemptNotFound
}

func (m *mockRepository) ListByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]*LoginAttempt, error) {
	attempts, _, err := m.List(ctx, ListFilter{UserID: userID, Since: since, Limit: limit})
	return attempts, err
}

func (m *mockRepository) ListSuccessfulByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]*LoginAttempt, error) {
	success := true
	attempts, _, err := m.List(ctx, ListFilter{UserID: userID, Success: &success, Since: since, Limit: limit})
	return attempts, err
}

func (m *mockRepository) ListByIPSince(ctx context.Context, ip string, since time.Time, limit int) ([]*LoginAttempt, error) {
	attempts, _, err := m.List(ctx, ListFilter{IPAddress: ip, Since: since, Limit: limit})
	return attempts, err
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter) ([]*LoginAttempt, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*LoginAttempt
	for _, a := range m.attempts {
		if filter.Matches(a) {
			matched = append(matched, a.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].LoginTimeUTC.After(matched[j].LoginTimeUTC)
	})
	total := int64(len(matched))
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

package security_test

import (
	"context"
	"sync"
	"time"

	"github.com/MichaelAJay/go-cache"
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

func (m *mockLogger) warnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.warns)
}

// Mock Cache Implementation
type mockCache struct {
	mu   sync.Mutex
	data map[string]interface{}
	sets int
}

func newMockCache() *mockCache {
	return &mockCache{
		data: make(map[string]interface{}),
	}
}

func (m *mockCache) Get(ctx context.Context, key string) (any, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, exists := m.data[key]; exists {
		return val, true, nil
	}
	return nil, false, errors.ErrCacheMiss
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockCache) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]interface{})
	return nil
}

func (m *mockCache) Has(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.data[key]
	return exists
}

func (m *mockCache) GetKeys(ctx context.Context) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return keys
}

func (m *mockCache) Close() error {
	return nil
}

func (m *mockCache) GetMany(ctx context.Context, keys []string) (map[string]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	values := make(map[string]interface{}, len(keys))
	for _, key := range keys {
		if val, exists := m.data[key]; exists {
			values[key] = val
		}
	}
	return values, nil
}

func (m *mockCache) SetMany(ctx context.Context, items map[string]interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, value := range items {
		m.data[key] = value
	}
	return nil
}

func (m *mockCache) DeleteMany(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockCache) GetMetadata(ctx context.Context, key string) (*cache.CacheEntryMetadata, error) {
	return nil, nil
}

func (m *mockCache) GetManyMetadata(ctx context.Context, keys []string) (map[string]*cache.CacheEntryMetadata, error) {
	return nil, nil
}

func (m *mockCache) GetMetrics() *cache.CacheMetricsSnapshot {
	return nil
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

// fixedClock always reports the same instant.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

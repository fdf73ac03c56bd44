package security

import (
	"testing"
	"time"

	"github.com/MichaelAJay/go-config"
	"github.com/MichaelAJay/go-login-security/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock Config Implementation
type mockConfig struct {
	values map[string]interface{}
}

func newMockConfig(values map[string]interface{}) *mockConfig {
	if values == nil {
		values = map[string]interface{}{}
	}
	return &mockConfig{values: values}
}

func (m *mockConfig) Get(key string) (any, bool) {
	val, exists := m.values[key]
	return val, exists
}

func (m *mockConfig) GetString(key string) (string, bool) {
	if val, exists := m.values[key]; exists {
		if str, ok := val.(string); ok {
			return str, true
		}
	}
	return "", false
}

func (m *mockConfig) GetInt(key string) (int, bool) {
	if val, exists := m.values[key]; exists {
		if i, ok := val.(int); ok {
			return i, true
		}
	}
	return 0, false
}

func (m *mockConfig) GetBool(key string) (bool, bool) {
	if val, exists := m.values[key]; exists {
		if b, ok := val.(bool); ok {
			return b, true
		}
	}
	return false, false
}

func (m *mockConfig) GetFloat(key string) (float64, bool) {
	if val, exists := m.values[key]; exists {
		if f, ok := val.(float64); ok {
			return f, true
		}
	}
	return 0, false
}

func (m *mockConfig) GetStringSlice(key string) ([]string, bool) {
	if val, exists := m.values[key]; exists {
		if ss, ok := val.([]string); ok {
			return ss, true
		}
	}
	return nil, false
}

func (m *mockConfig) Set(key string, value any) error {
	m.values[key] = value
	return nil
}

func (m *mockConfig) Load(source config.Source) error {
	return nil
}

func (m *mockConfig) Validate() error {
	return nil
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.Validate())

	assert.Equal(t, 30*24*time.Hour, opts.HistoryWindow())
	assert.Equal(t, 10*time.Minute, opts.BruteForceWindow())
	assert.Equal(t, 15*time.Minute, opts.CacheExpiration())
	assert.Equal(t, 3, opts.AccountBruteForceThreshold)
	assert.Equal(t, 10, opts.IPBruteForceThreshold)
	assert.Equal(t, 3, opts.IPBruteForceAccountThreshold)
	assert.Equal(t, [4]int{50, 50, 25, 15},
		[4]int{opts.AccountBruteForceScore, opts.IPBruteForceScore, opts.NewDeviceScore, opts.UnusualTimeScore})
	assert.Equal(t, [3]int{40, 60, 80},
		[3]int{opts.MediumRiskThreshold, opts.HighRiskThreshold, opts.CriticalRiskThreshold})
	assert.Equal(t, 3*time.Second, opts.HistoryQueryTimeout)
	assert.Equal(t, 200*time.Millisecond, opts.HistoryRetryBackoff)
	assert.Equal(t, time.UTC, opts.Location())
}

func TestLoadOptions_Overrides(t *testing.T) {
	cfg := newMockConfig(map[string]interface{}{
		"security_analysis.account_brute_force_threshold": 5,
		"security_analysis.unusual_time_start_hour":       0,
		"security_analysis.unusual_time_end_hour":         5,
		"security_analysis.history_query_timeout":         "750ms",
		"security_analysis.cache_expiration_minutes":      0,
	})

	opts, err := LoadOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, opts.AccountBruteForceThreshold)
	assert.Equal(t, 0, opts.UnusualTimeStartHour, "explicit zero is honoured")
	assert.Equal(t, 5, opts.UnusualTimeEndHour)
	assert.Equal(t, 750*time.Millisecond, opts.HistoryQueryTimeout)
	assert.Zero(t, opts.CacheExpiration())
	assert.Equal(t, 10, opts.IPBruteForceThreshold, "unset keys keep defaults")
}

func TestLoadOptions_NilConfig(t *testing.T) {
	opts, err := LoadOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions().HistoryDays, opts.HistoryDays)
}

func TestLoadOptions_RejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
	}{
		{"negative threshold", map[string]interface{}{"security_analysis.account_brute_force_threshold": -1}},
		{"zero window", map[string]interface{}{"security_analysis.brute_force_window_minutes": 0}},
		{"negative score", map[string]interface{}{"security_analysis.new_device_score": -5}},
		{"hour out of range", map[string]interface{}{"security_analysis.unusual_time_end_hour": 24}},
		{"cutoffs not ascending", map[string]interface{}{"security_analysis.high_risk_threshold": 40}},
		{"unknown time zone", map[string]interface{}{"security_analysis.time_zone": "Mars/Olympus_Mons"}},
		{"bad duration", map[string]interface{}{"security_analysis.history_retry_backoff": "soon"}},
		{"negative cache", map[string]interface{}{"security_analysis.cache_expiration_minutes": -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadOptions(newMockConfig(tt.values))
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigurationError, errors.GetErrorCode(err))
			assert.True(t, errors.IsErrorType(err, errors.ErrConfigurationError))
		})
	}
}

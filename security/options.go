package security

import (
	"fmt"
	"time"

	"github.com/MichaelAJay/go-config"
	"github.com/MichaelAJay/go-login-security/errors"
)

// configPrefix namespaces analyzer settings in config.Config.
const configPrefix = "security_analysis."

// Options holds every threshold, window and score used by the analyzer.
type Options struct {
	// History windows
	HistoryDays             int `json:"history_days" default:"30"`
	BruteForceWindowMinutes int `json:"brute_force_window_minutes" default:"10"`

	// Brute force thresholds
	AccountBruteForceThreshold   int `json:"account_brute_force_threshold" default:"3"`
	IPBruteForceThreshold        int `json:"ip_brute_force_threshold" default:"10"`
	IPBruteForceAccountThreshold int `json:"ip_brute_force_account_threshold" default:"3"`

	// Per-rule score contributions
	AccountBruteForceScore int `json:"account_brute_force_score" default:"50"`
	IPBruteForceScore      int `json:"ip_brute_force_score" default:"50"`
	NewDeviceScore         int `json:"new_device_score" default:"25"`
	UnusualTimeScore       int `json:"unusual_time_score" default:"15"`

	// Night window [start, end) in TimeZone, wrapping midnight when start > end
	UnusualTimeStartHour int    `json:"unusual_time_start_hour" default:"22"`
	UnusualTimeEndHour   int    `json:"unusual_time_end_hour" default:"6"`
	TimeZone             string `json:"time_zone" default:"UTC"`

	// Level cutoffs, inclusive lower bounds
	MediumRiskThreshold   int `json:"medium_risk_threshold" default:"40"`
	HighRiskThreshold     int `json:"high_risk_threshold" default:"60"`
	CriticalRiskThreshold int `json:"critical_risk_threshold" default:"80"`

	// MaxRiskScore caps the aggregate score when positive
	MaxRiskScore int `json:"max_risk_score" default:"0"`

	// CacheExpirationMinutes of zero disables the summary cache
	CacheExpirationMinutes int `json:"cache_expiration_minutes" default:"15"`

	// History query behaviour
	HistoryQueryTimeout time.Duration `json:"history_query_timeout" default:"3s"`
	HistoryRetryBackoff time.Duration `json:"history_retry_backoff" default:"200ms"`
	MaxHistoryRecords   int           `json:"max_history_records" default:"500"`

	location *time.Location
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() *Options {
	return &Options{
		HistoryDays:                  30,
		BruteForceWindowMinutes:      10,
		AccountBruteForceThreshold:   3,
		IPBruteForceThreshold:        10,
		IPBruteForceAccountThreshold: 3,
		AccountBruteForceScore:       50,
		IPBruteForceScore:            50,
		NewDeviceScore:               25,
		UnusualTimeScore:             15,
		UnusualTimeStartHour:         22,
		UnusualTimeEndHour:           6,
		TimeZone:                     "UTC",
		MediumRiskThreshold:          40,
		HighRiskThreshold:            60,
		CriticalRiskThreshold:        80,
		MaxRiskScore:                 0,
		CacheExpirationMinutes:       15,
		HistoryQueryTimeout:          3 * time.Second,
		HistoryRetryBackoff:          200 * time.Millisecond,
		MaxHistoryRecords:            500,
		location:                     time.UTC,
	}
}

// LoadOptions reads security_analysis.* keys from cfg over the defaults and
// validates the result. A nil cfg yields the defaults.
func LoadOptions(cfg config.Config) (*Options, error) {
	opts := DefaultOptions()
	if cfg == nil {
		return opts, opts.Validate()
	}

	ints := []struct {
		key    string
		target *int
	}{
		{"history_days", &opts.HistoryDays},
		{"brute_force_window_minutes", &opts.BruteForceWindowMinutes},
		{"account_brute_force_threshold", &opts.AccountBruteForceThreshold},
		{"ip_brute_force_threshold", &opts.IPBruteForceThreshold},
		{"ip_brute_force_account_threshold", &opts.IPBruteForceAccountThreshold},
		{"account_brute_force_score", &opts.AccountBruteForceScore},
		{"ip_brute_force_score", &opts.IPBruteForceScore},
		{"new_device_score", &opts.NewDeviceScore},
		{"unusual_time_score", &opts.UnusualTimeScore},
		{"unusual_time_start_hour", &opts.UnusualTimeStartHour},
		{"unusual_time_end_hour", &opts.UnusualTimeEndHour},
		{"medium_risk_threshold", &opts.MediumRiskThreshold},
		{"high_risk_threshold", &opts.HighRiskThreshold},
		{"critical_risk_threshold", &opts.CriticalRiskThreshold},
		{"max_risk_score", &opts.MaxRiskScore},
		{"cache_expiration_minutes", &opts.CacheExpirationMinutes},
		{"max_history_records", &opts.MaxHistoryRecords},
	}
	for _, setting := range ints {
		if value, ok := cfg.GetInt(configPrefix + setting.key); ok {
			*setting.target = value
		}
	}

	if tz, ok := cfg.GetString(configPrefix + "time_zone"); ok && tz != "" {
		opts.TimeZone = tz
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"history_query_timeout", &opts.HistoryQueryTimeout},
		{"history_retry_backoff", &opts.HistoryRetryBackoff},
	}
	for _, setting := range durations {
		raw, ok := cfg.GetString(configPrefix + setting.key)
		if !ok || raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, errors.NewConfigurationError(configPrefix+setting.key, fmt.Sprintf("invalid duration %q", raw))
		}
		*setting.target = parsed
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate rejects settings that indicate a deployment mistake.
func (o *Options) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"history_days", o.HistoryDays},
		{"brute_force_window_minutes", o.BruteForceWindowMinutes},
		{"account_brute_force_threshold", o.AccountBruteForceThreshold},
		{"ip_brute_force_threshold", o.IPBruteForceThreshold},
		{"ip_brute_force_account_threshold", o.IPBruteForceAccountThreshold},
		{"max_history_records", o.MaxHistoryRecords},
	}
	for _, setting := range positive {
		if setting.value <= 0 {
			return errors.NewConfigurationError(configPrefix+setting.name, "must be greater than zero")
		}
	}

	nonNegative := []struct {
		name  string
		value int
	}{
		{"account_brute_force_score", o.AccountBruteForceScore},
		{"ip_brute_force_score", o.IPBruteForceScore},
		{"new_device_score", o.NewDeviceScore},
		{"unusual_time_score", o.UnusualTimeScore},
		{"max_risk_score", o.MaxRiskScore},
		{"cache_expiration_minutes", o.CacheExpirationMinutes},
	}
	for _, setting := range nonNegative {
		if setting.value < 0 {
			return errors.NewConfigurationError(configPrefix+setting.name, "must not be negative")
		}
	}

	if o.UnusualTimeStartHour < 0 || o.UnusualTimeStartHour > 23 {
		return errors.NewConfigurationError(configPrefix+"unusual_time_start_hour", "must be between 0 and 23")
	}
	if o.UnusualTimeEndHour < 0 || o.UnusualTimeEndHour > 23 {
		return errors.NewConfigurationError(configPrefix+"unusual_time_end_hour", "must be between 0 and 23")
	}

	if o.MediumRiskThreshold <= 0 ||
		o.HighRiskThreshold <= o.MediumRiskThreshold ||
		o.CriticalRiskThreshold <= o.HighRiskThreshold {
		return errors.NewConfigurationError(configPrefix+"risk_thresholds",
			fmt.Sprintf("cutoffs must be positive and ascending, got %d/%d/%d",
				o.MediumRiskThreshold, o.HighRiskThreshold, o.CriticalRiskThreshold))
	}

	if o.HistoryQueryTimeout <= 0 {
		return errors.NewConfigurationError(configPrefix+"history_query_timeout", "must be greater than zero")
	}
	if o.HistoryRetryBackoff < 0 {
		return errors.NewConfigurationError(configPrefix+"history_retry_backoff", "must not be negative")
	}

	loc, err := time.LoadLocation(o.TimeZone)
	if err != nil {
		return errors.NewConfigurationError(configPrefix+"time_zone", fmt.Sprintf("unknown time zone %q", o.TimeZone))
	}
	o.location = loc

	return nil
}

// BruteForceWindow is the trailing window used by both brute force rules.
func (o *Options) BruteForceWindow() time.Duration {
	return time.Duration(o.BruteForceWindowMinutes) * time.Minute
}

// HistoryWindow is the trailing window used to build the user's baseline.
func (o *Options) HistoryWindow() time.Duration {
	return time.Duration(o.HistoryDays) * 24 * time.Hour
}

// CacheExpiration is how long a computed summary may be served from cache.
func (o *Options) CacheExpiration() time.Duration {
	return time.Duration(o.CacheExpirationMinutes) * time.Minute
}

// Location returns the time zone used by the unusual time rule. Validate
// resolves it once; unvalidated options fall back to a lookup per call.
func (o *Options) Location() *time.Location {
	if o.location != nil {
		return o.location
	}
	if loc, err := time.LoadLocation(o.TimeZone); err == nil {
		return loc
	}
	return time.UTC
}

package security

import (
	"fmt"
	"time"

	"github.com/MichaelAJay/go-login-security/audit"
)

// Rule names, also used as ScoreBreakdown keys.
const (
	RuleAccountBruteForce = "AccountBruteForce"
	RuleIPBruteForce      = "IPBruteForce"
	RuleNewDeviceLocation = "NewDeviceLocation"
	RuleUnusualTime       = "UnusualTime"
)

// RuleNames lists every rule in priority order.
func RuleNames() []string {
	return []string{RuleAccountBruteForce, RuleIPBruteForce, RuleNewDeviceLocation, RuleUnusualTime}
}

// History is the evidence a rule may inspect.
type History struct {
	// UserAttempts holds the account's attempts over the brute force window
	// and its successful sign-ins over the baseline window (HistoryDays)
	UserAttempts []*audit.LoginAttempt

	// IPAttempts covers the source IP over the brute force window, any account
	IPAttempts []*audit.LoginAttempt
}

// Rule evaluates one risk signal. Rules are pure and never fail; missing
// evidence yields a zero score.
type Rule func(attempt *audit.LoginAttempt, history History, opts *Options) RuleResult

// DefaultRules returns the built-in rules in priority order.
func DefaultRules() []Rule {
	return []Rule{
		AccountBruteForce,
		IPBruteForce,
		NewDeviceLocation,
		UnusualTime,
	}
}

// inTrailingWindow reports whether t lies in (end-window, end]. The window
// start is exclusive.
func inTrailingWindow(t, end time.Time, window time.Duration) bool {
	return t.After(end.Add(-window)) && !t.After(end)
}

// AccountBruteForce flags repeated failures for the attempt's account.
func AccountBruteForce(attempt *audit.LoginAttempt, history History, opts *Options) RuleResult {
	result := RuleResult{RuleName: RuleAccountBruteForce}
	if attempt == nil || attempt.UserID == "" || attempt.LoginTimeUTC.IsZero() {
		return result
	}

	window := opts.BruteForceWindow()
	failures := 0
	for _, a := range history.UserAttempts {
		if a.UserID == attempt.UserID && !a.Success && inTrailingWindow(a.LoginTimeUTC, attempt.LoginTimeUTC, window) {
			failures++
		}
	}

	if failures >= opts.AccountBruteForceThreshold {
		result.Score = opts.AccountBruteForceScore
		result.Factors = append(result.Factors, fmt.Sprintf(
			"%d failed login attempts for this account in the last %d minutes",
			failures, opts.BruteForceWindowMinutes))
	}
	return result
}

// IPBruteForce flags a source IP with many failures or many targeted
// accounts. Either condition triggers the same single contribution.
func IPBruteForce(attempt *audit.LoginAttempt, history History, opts *Options) RuleResult {
	result := RuleResult{RuleName: RuleIPBruteForce}
	if attempt == nil || attempt.IPAddress == "" || attempt.LoginTimeUTC.IsZero() {
		return result
	}

	window := opts.BruteForceWindow()
	failures := 0
	accounts := make(map[string]struct{})
	for _, a := range history.IPAttempts {
		if a.IPAddress != attempt.IPAddress || a.Success {
			continue
		}
		if !inTrailingWindow(a.LoginTimeUTC, attempt.LoginTimeUTC, window) {
			continue
		}
		failures++
		if a.UserID != "" {
			accounts[a.UserID] = struct{}{}
		}
	}

	if failures >= opts.IPBruteForceThreshold {
		result.Factors = append(result.Factors, fmt.Sprintf(
			"%d failed login attempts from IP %s in the last %d minutes",
			failures, attempt.IPAddress, opts.BruteForceWindowMinutes))
	}
	if len(accounts) >= opts.IPBruteForceAccountThreshold {
		result.Factors = append(result.Factors, fmt.Sprintf(
			"IP %s failed to sign in to %d different accounts in the last %d minutes",
			attempt.IPAddress, len(accounts), opts.BruteForceWindowMinutes))
	}
	if len(result.Factors) > 0 {
		result.Score = opts.IPBruteForceScore
	}
	return result
}

// NewDeviceLocation flags a sign-in whose IP and region were both absent
// from the account's successful sign-ins in the baseline window.
func NewDeviceLocation(attempt *audit.LoginAttempt, history History, opts *Options) RuleResult {
	result := RuleResult{RuleName: RuleNewDeviceLocation}
	if attempt == nil || attempt.LoginTimeUTC.IsZero() {
		return result
	}
	if attempt.IPAddress == "" && attempt.Region == "" {
		return result
	}

	window := opts.HistoryWindow()
	knownIPs := make(map[string]struct{})
	knownRegions := make(map[string]struct{})
	knownDevices := make(map[string]struct{})
	baseline := 0

	for _, a := range history.UserAttempts {
		if a.UserID != attempt.UserID || !a.Success || a.SameAttempt(attempt) {
			continue
		}
		if !inTrailingWindow(a.LoginTimeUTC, attempt.LoginTimeUTC, window) {
			continue
		}
		baseline++
		if a.IPAddress != "" {
			knownIPs[a.IPAddress] = struct{}{}
		}
		if a.Region != "" {
			knownRegions[a.Region] = struct{}{}
		}
		if a.DeviceHash != "" {
			knownDevices[a.DeviceHash] = struct{}{}
		}
	}

	if baseline == 0 {
		return result
	}

	if _, ok := knownIPs[attempt.IPAddress]; ok && attempt.IPAddress != "" {
		return result
	}
	if _, ok := knownRegions[attempt.Region]; ok && attempt.Region != "" {
		return result
	}

	if attempt.IPAddress != "" {
		result.Factors = append(result.Factors, fmt.Sprintf("Login from new IP address %s", attempt.IPAddress))
	}
	if attempt.Region != "" {
		result.Factors = append(result.Factors, fmt.Sprintf("Login from new location %s", attempt.Region))
	}
	if attempt.DeviceHash != "" {
		if _, ok := knownDevices[attempt.DeviceHash]; !ok {
			result.Factors = append(result.Factors, "Login from unrecognized device")
		}
	}
	result.Score = opts.NewDeviceScore
	return result
}

// UnusualTime flags attempts whose local hour falls in the night window.
func UnusualTime(attempt *audit.LoginAttempt, history History, opts *Options) RuleResult {
	result := RuleResult{RuleName: RuleUnusualTime}
	if attempt == nil || attempt.LoginTimeUTC.IsZero() {
		return result
	}

	start, end := opts.UnusualTimeStartHour, opts.UnusualTimeEndHour
	if start == end {
		return result
	}

	local := attempt.LoginTimeUTC.In(opts.Location())
	hour := local.Hour()

	var inWindow bool
	if start < end {
		inWindow = hour >= start && hour < end
	} else {
		inWindow = hour >= start || hour < end
	}

	if inWindow {
		result.Score = opts.UnusualTimeScore
		result.Factors = append(result.Factors, fmt.Sprintf(
			"Login at unusual time %s (%s)", local.Format("15:04"), opts.TimeZone))
	}
	return result
}

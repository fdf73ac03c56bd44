package audit

import (
	"strings"
	"time"

	"github.com/MichaelAJay/go-login-security/errors"
	"github.com/MichaelAJay/go-login-security/validation"
)

// Authentication provider labels stored with each attempt.
const (
	// ProviderLocal marks a username/password sign-in
	ProviderLocal = "Local"

	// ProviderDirect marks a sign-in performed on the user's behalf without credentials
	ProviderDirect = "Direct"

	// twoFactorPrefix is prepended to the second-factor provider name
	twoFactorPrefix = "2FA-"
)

// TwoFactorProvider returns the label for a second-factor sign-in through provider.
func TwoFactorProvider(provider string) string {
	return twoFactorPrefix + provider
}

// ExternalProvider returns the label for a sign-in through an external
// identity provider such as "Google" or "Microsoft".
func ExternalProvider(name string) string {
	if strings.TrimSpace(name) == "" {
		return ProviderDirect
	}
	return name
}

// LoginAttempt is an immutable record of one authentication attempt.
type LoginAttempt struct {
	// ID is assigned by the store; zero before persistence
	ID int64 `json:"id" db:"id"`

	// LoginTimeUTC is when the attempt happened, always UTC
	LoginTimeUTC time.Time `json:"login_time_utc" db:"login_time_utc"`

	UserID   string `json:"user_id" db:"user_id"`
	UserName string `json:"user_name" db:"user_name"`

	// IPAddress is the client address, empty when unknown
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// BrowserInfo is the raw user agent, truncated to 1000 characters
	BrowserInfo string `json:"browser_info,omitempty" db:"browser_info"`

	// Region is a coarse location label filled by a collaborator (geo lookup)
	Region string `json:"region,omitempty" db:"region"`

	// Provider is the authentication provider label
	Provider string `json:"provider" db:"provider"`

	// DeviceHash is a keyed lookup hash of BrowserInfo
	DeviceHash string `json:"device_hash,omitempty" db:"device_hash"`

	Success bool `json:"success" db:"success"`
}

// Sanitize strips control characters and enforces storage limits in place.
// UserID and UserName are trimmed but never truncated; oversize values fail
// validation instead.
func (a *LoginAttempt) Sanitize() {
	a.UserID = validation.SanitizeString(a.UserID)
	a.UserName = validation.SanitizeString(a.UserName)
	a.IPAddress = validation.NormalizeIPAddress(a.IPAddress)
	a.BrowserInfo = validation.SanitizeAndTruncate(a.BrowserInfo, validation.MaxBrowserInfoLength)
	a.Region = validation.SanitizeAndTruncate(a.Region, validation.MaxRegionLength)
	a.Provider = validation.SanitizeAndTruncate(a.Provider, validation.MaxProviderLength)
	if !a.LoginTimeUTC.IsZero() {
		a.LoginTimeUTC = a.LoginTimeUTC.UTC()
	}
}

// Validate checks required fields and length limits.
func (a *LoginAttempt) Validate() error {
	if a == nil {
		return errors.NewAppErrorWithCause(errors.CodeInvalidAttempt, "Login attempt is required", errors.ErrInvalidAttempt)
	}

	v := validation.NewFieldValidator()
	if err := v.ValidateStringField("user_id", a.UserID, validation.MaxUserIDLength, true); err != nil {
		return err
	}
	if err := v.ValidateStringField("user_name", a.UserName, validation.MaxUserNameLength, true); err != nil {
		return err
	}
	if err := v.ValidateStringField("ip_address", a.IPAddress, validation.MaxIPAddressLength, false); err != nil {
		return err
	}
	if err := v.ValidateStringField("browser_info", a.BrowserInfo, validation.MaxBrowserInfoLength, false); err != nil {
		return err
	}
	if err := v.ValidateStringField("region", a.Region, validation.MaxRegionLength, false); err != nil {
		return err
	}
	if err := v.ValidateStringField("provider", a.Provider, validation.MaxProviderLength, false); err != nil {
		return err
	}
	if a.LoginTimeUTC.IsZero() {
		return errors.NewRequiredFieldError("login_time_utc")
	}
	return nil
}

// Clone returns a copy of the attempt.
func (a *LoginAttempt) Clone() *LoginAttempt {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// SameAttempt reports whether other refers to the same recorded attempt.
// Persisted attempts compare by ID; unsaved ones by time, account, source and outcome.
func (a *LoginAttempt) SameAttempt(other *LoginAttempt) bool {
	if a == nil || other == nil {
		return false
	}
	if a.ID != 0 && other.ID != 0 {
		return a.ID == other.ID
	}
	return a.LoginTimeUTC.Equal(other.LoginTimeUTC) &&
		a.UserID == other.UserID &&
		a.IPAddress == other.IPAddress &&
		a.Success == other.Success
}

package validation

import (
	"net"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MichaelAJay/go-login-security/errors"
)

// Storage limits for login attempt fields.
const (
	MaxUserIDLength      = 450
	MaxUserNameLength    = 256
	MaxIPAddressLength   = 45
	MaxBrowserInfoLength = 1000
	MaxRegionLength      = 500
	MaxProviderLength    = 100
	MaxDescriptionLength = 1000
	MaxAdviceLength      = 1000
)

// LoopbackAddress is the canonical form stored for local connections.
const LoopbackAddress = "127.0.0.1"

// FieldValidator provides common field validation functionality.
type FieldValidator struct {
	// MaxStringLength is the default maximum length for string fields
	MaxStringLength int
}

// NewFieldValidator creates a new FieldValidator with default settings.
func NewFieldValidator() *FieldValidator {
	return &FieldValidator{
		MaxStringLength: 255,
	}
}

// ValidateStringField validates a string field with common rules.
// Lengths are counted in runes.
func (v *FieldValidator) ValidateStringField(fieldName, value string, maxLength int, required bool) error {
	if strings.TrimSpace(value) == "" {
		if required {
			return errors.NewRequiredFieldError(fieldName)
		}
		return nil
	}

	if maxLength <= 0 {
		maxLength = v.MaxStringLength
	}
	if utf8.RuneCountInString(value) > maxLength {
		return errors.NewFieldTooLongError(fieldName, maxLength)
	}

	if containsNullBytes(value) {
		return errors.NewValidationError(fieldName, "contains invalid characters")
	}

	return nil
}

// SanitizeString strips control characters, including CR and LF, and trims
// surrounding whitespace. Values end up in logs and audit rows, so line
// breaks are never kept.
func SanitizeString(input string) string {
	var result strings.Builder
	result.Grow(len(input))
	for _, char := range input {
		if unicode.IsControl(char) {
			continue
		}
		if unicode.IsPrint(char) || unicode.IsSpace(char) {
			result.WriteRune(char)
		}
	}

	return strings.TrimSpace(result.String())
}

// Truncate shortens value to at most maxLength runes.
func Truncate(value string, maxLength int) string {
	if maxLength <= 0 || utf8.RuneCountInString(value) <= maxLength {
		return value
	}
	runes := []rune(value)
	return string(runes[:maxLength])
}

// SanitizeAndTruncate is SanitizeString followed by Truncate.
func SanitizeAndTruncate(value string, maxLength int) string {
	return Truncate(SanitizeString(value), maxLength)
}

// NormalizeIPAddress sanitizes an address taken from request metadata.
// Loopback addresses collapse to 127.0.0.1, a trailing port is dropped and
// anything that does not parse as an IP is returned sanitized but unchanged.
func NormalizeIPAddress(raw string) string {
	ip := SanitizeString(raw)
	if ip == "" {
		return ""
	}

	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ip = strings.Trim(ip, "[]")

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Truncate(ip, MaxIPAddressLength)
	}
	if parsed.IsLoopback() {
		return LoopbackAddress
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.String()
	}
	return parsed.String()
}

// ValidateIPAddress returns an error when ip is non-empty and not a valid address.
func ValidateIPAddress(ip string) error {
	if ip == "" {
		return nil
	}
	if net.ParseIP(ip) == nil {
		return errors.NewInvalidIPAddressError(ip)
	}
	return nil
}

// containsNullBytes checks if a string contains null bytes or other control characters.
func containsNullBytes(value string) bool {
	for _, char := range value {
		if char == 0 || (unicode.IsControl(char) && char != '\t') {
			return true
		}
	}
	return false
}

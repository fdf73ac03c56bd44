package audit

import (
	"net/http"
	"strings"

	"github.com/MichaelAJay/go-login-security/validation"
)

// ClientIP returns the caller address for r. The first X-Forwarded-For entry
// wins, then X-Real-IP, then the connection's remote address.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}

	if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if ip := validation.NormalizeIPAddress(first); ip != "" {
			return ip
		}
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		if ip := validation.NormalizeIPAddress(realIP); ip != "" {
			return ip
		}
	}

	return validation.NormalizeIPAddress(r.RemoteAddr)
}

// UserAgent returns the sanitized User-Agent header, truncated for storage.
func UserAgent(r *http.Request) string {
	if r == nil {
		return ""
	}
	return validation.SanitizeAndTruncate(r.UserAgent(), validation.MaxBrowserInfoLength)
}

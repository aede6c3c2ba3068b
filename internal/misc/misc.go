// Package misc holds small, dependency-free helpers shared across the auth
// and provider packages that don't warrant their own package.
package misc

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	log "github.com/meitianwang/llm-gateway/internal/logging"
)

// GenerateRandomState returns a random hex-encoded string suitable for use as
// an OAuth CSRF state parameter.
func GenerateRandomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// EnsureHeader sets key to value on dst unless the inbound client already
// supplied that header in src, in which case the client's value is kept.
// This lets upstream provider requests pass through a caller-supplied
// User-Agent or client metadata header instead of always overriding it.
func EnsureHeader(dst http.Header, src http.Header, key, value string) {
	if src != nil {
		if existing := src.Get(key); existing != "" {
			dst.Set(key, existing)
			return
		}
	}
	dst.Set(key, value)
}

// LogCredentialSeparator writes a blank debug-level line, used to visually
// separate credential registration log bursts in verbose output.
func LogCredentialSeparator() {
	log.Debug("")
}

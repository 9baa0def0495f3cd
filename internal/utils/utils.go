package utils

import (
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/scythe504/rps-backend/internal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

var gameIDPattern = regexp.MustCompile(`^[a-fA-F0-9]{8}$`)

// GenerateGameID returns an 8-character lower-case hex game identifier.
func GenerateGameID() string {
	return uuid.NewString()[:internal.GameIDLength]
}

// GenerateID returns a participant token. The length is clamped to a full uuid.
func GenerateID(length int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if length <= 0 || length > len(id) {
		return id
	}
	return id[:length]
}

// NormalizeGameID validates a raw identifier and lower-cases it.
func NormalizeGameID(raw string) (string, bool) {
	if !gameIDPattern.MatchString(raw) {
		return "", false
	}
	return strings.ToLower(raw), true
}

// =============================================================================
// CLIENT ADDRESS
// =============================================================================

// RealIP resolves the client address, preferring proxy headers.
func RealIP(r *http.Request) string {
	for _, header := range []string{"X-Forwarded-For", "Fly-Client-IP", "CF-Connecting-IP", "X-Real-IP"} {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		first := strings.TrimSpace(strings.Split(value, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package http

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// parseBool accepts the usual form spellings of true. Anything else is false.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes", "y":
		return true
	}
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}

// requestIDFromHeader honours an upstream X-Request-ID when present.
func requestIDFromHeader(v string) string {
	v = sanitizeInput(v)
	if v == "" || len(v) > 64 {
		return generateRequestID()
	}
	return v
}

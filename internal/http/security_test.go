package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct", "203.0.113.7:5000", "", "", "203.0.113.7"},
		{"untrusted peer ignores forwarding", "203.0.113.7:5000", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy uses first forwarded", "10.0.0.2:80", "198.51.100.1, 10.0.0.2", "", "198.51.100.1"},
		{"trusted proxy falls back to real ip", "127.0.0.1:80", "garbage", "198.51.100.9", "198.51.100.9"},
		{"no port", "198.51.100.3", "", "", "198.51.100.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	var m securityMetrics

	clean := httptest.NewRequest(http.MethodGet, "/reports/monthly?year=2024", nil)
	if detectSuspiciousRequest(clean, &m) {
		t.Error("clean request flagged")
	}

	for _, target := range []string{"/.env", "/export?file=../../etc/passwd", "/wp-admin/"} {
		if !detectSuspiciousRequest(httptest.NewRequest(http.MethodGet, target, nil), &m) {
			t.Errorf("%s not flagged", target)
		}
	}
	scanner := httptest.NewRequest(http.MethodGet, "/", nil)
	scanner.Header.Set("User-Agent", "sqlmap/1.7")
	if !detectSuspiciousRequest(scanner, &m) {
		t.Error("scanner user agent not flagged")
	}

	if got := m.snapshot()["suspicious_requests"]; got != 4 {
		t.Errorf("suspicious_requests = %d, want 4", got)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()

	now := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	var m securityMetrics

	if !rl.allow("a", &m) || !rl.allow("a", &m) {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("a", &m) {
		t.Fatal("third request should be limited")
	}
	if !rl.allow("b", &m) {
		t.Fatal("limits are per client")
	}

	now = now.Add(time.Minute)
	if !rl.allow("a", &m) {
		t.Fatal("new window should reset the budget")
	}
	if m.rateLimitHits != 1 {
		t.Errorf("rateLimitHits = %d", m.rateLimitHits)
	}

	now = now.Add(11 * time.Minute)
	if removed := rl.cleanupStaleEntries(); removed != 2 {
		t.Errorf("cleanupStaleEntries() = %d, want 2", removed)
	}
}

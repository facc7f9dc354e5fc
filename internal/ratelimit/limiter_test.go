package ratelimit

import (
	"net/http"
	"sync"
	"testing"
	"time"
)

// mockClock is a controllable clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCheckSubmission_Cooldown(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		SubmitCooldown:     2 * time.Second,
		SubmitMaxPerHour:   10,
		SubmitMaxIPPerHour: 30,
		DeclineMaxAttempts: 5,
		DeclineLockout:     30 * time.Minute,
		Clock:              clock,
	})
	defer limiter.Close()

	payer := "player-1"
	ip := "203.0.113.10"

	result := limiter.CheckSubmission(payer, ip)
	if !result.Allowed {
		t.Fatalf("First submission should be allowed, got blocked: %s", result.Reason)
	}
	limiter.RecordSubmission(payer, ip)

	clock.Advance(time.Second)
	result = limiter.CheckSubmission(payer, ip)
	if result.Allowed || result.Reason != "cooldown" {
		t.Fatalf("Expected cooldown, got %+v", result)
	}
	if result.RetryAfter != time.Second {
		t.Errorf("Expected RetryAfter 1s, got %v", result.RetryAfter)
	}

	clock.Advance(time.Second)
	if result = limiter.CheckSubmission(payer, ip); !result.Allowed {
		t.Errorf("Submission after cooldown should be allowed, got blocked: %s", result.Reason)
	}
}

func TestCheckSubmission_Limits(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		payers     []string
		wantReason string
	}{
		{
			name:       "payer hourly limit",
			cfg:        Config{SubmitMaxPerHour: 3, SubmitMaxIPPerHour: 30, DeclineMaxAttempts: 5},
			payers:     []string{"player-1", "player-1", "player-1"},
			wantReason: "hourly_limit",
		},
		{
			name:       "ip hourly limit across payers",
			cfg:        Config{SubmitMaxPerHour: 10, SubmitMaxIPPerHour: 3, DeclineMaxAttempts: 5},
			payers:     []string{"player-1", "player-2", "player-3"},
			wantReason: "ip_hourly_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newMockClock()
			cfg := tt.cfg
			cfg.Clock = clock
			limiter := New(&cfg)
			defer limiter.Close()

			ip := "203.0.113.10"
			for _, payer := range tt.payers {
				if result := limiter.CheckSubmission(payer, ip); !result.Allowed {
					t.Fatalf("submission for %s blocked early: %s", payer, result.Reason)
				}
				limiter.RecordSubmission(payer, ip)
				clock.Advance(time.Minute)
			}

			result := limiter.CheckSubmission(tt.payers[0], ip)
			if result.Allowed || result.Reason != tt.wantReason {
				t.Fatalf("expected %s, got %+v", tt.wantReason, result)
			}

			clock.Advance(time.Hour)
			if result := limiter.CheckSubmission(tt.payers[0], ip); !result.Allowed {
				t.Fatalf("expected window to reset, got %s", result.Reason)
			}
		})
	}
}

func TestCheckSubmission_PayerNormalization(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{SubmitMaxPerHour: 1, SubmitMaxIPPerHour: 30, DeclineMaxAttempts: 5, Clock: clock})
	defer limiter.Close()

	limiter.RecordSubmission("Payer@Example.com", "203.0.113.10")
	clock.Advance(time.Minute)
	if result := limiter.CheckSubmission("  payer@example.com ", "203.0.113.11"); result.Allowed {
		t.Fatal("expected normalized payer to share the limit")
	}
}

func TestRecordDecline_Lockout(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		SubmitMaxPerHour:   100,
		SubmitMaxIPPerHour: 100,
		DeclineMaxAttempts: 3,
		DeclineLockout:     30 * time.Minute,
		Clock:              clock,
	})
	defer limiter.Close()

	payer := "player-1"
	for i := 1; i <= 3; i++ {
		locked := limiter.RecordDecline(payer)
		if locked != (i == 3) {
			t.Fatalf("decline %d: lockedOut = %v", i, locked)
		}
	}

	result := limiter.CheckSubmission(payer, "203.0.113.10")
	if result.Allowed || result.Reason != "decline_lockout" {
		t.Fatalf("expected decline lockout, got %+v", result)
	}

	clock.Advance(31 * time.Minute)
	if result := limiter.CheckSubmission(payer, "203.0.113.10"); !result.Allowed {
		t.Fatalf("expected lockout to expire, got %s", result.Reason)
	}
}

func TestResetDeclines(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{SubmitMaxPerHour: 100, SubmitMaxIPPerHour: 100, DeclineMaxAttempts: 2, DeclineLockout: time.Hour, Clock: clock})
	defer limiter.Close()

	limiter.RecordDecline("player-1")
	limiter.ResetDeclines("player-1")
	if limiter.RecordDecline("player-1") {
		t.Fatal("expected counter to restart after reset")
	}
}

func TestGetClientIP_TrustProxy(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trustProxy bool
		expected   string
	}{
		{
			name:       "TrustProxy=true, XFF rightmost public IP",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50, 10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "203.0.113.50", // Rightmost non-private
		},
		{
			name:       "TrustProxy=true, XFF all private",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1, 10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "10.0.0.1", // Last one when all private
		},
		{
			name:       "TrustProxy=true, X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "203.0.113.51"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "203.0.113.51",
		},
		{
			name:       "TrustProxy=false, ignores XFF",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50"},
			remoteAddr: "192.168.1.100:54321",
			trustProxy: false,
			expected:   "192.168.1.100", // Uses RemoteAddr, ignores spoofed XFF
		},
		{
			name:       "TrustProxy=false, ignores X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "203.0.113.51"},
			remoteAddr: "192.168.1.100:54321",
			trustProxy: false,
			expected:   "192.168.1.100",
		},
		{
			name:       "No headers, RemoteAddr only",
			headers:    map[string]string{},
			remoteAddr: "192.168.1.100:54321",
			trustProxy: true,
			expected:   "192.168.1.100",
		},
		{
			name:       "RemoteAddr without port",
			headers:    map[string]string{},
			remoteAddr: "192.168.1.100",
			trustProxy: false,
			expected:   "192.168.1.100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			got := GetClientIP(r, tt.trustProxy)
			if got != tt.expected {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGetClientIP_SpoofingPrevention(t *testing.T) {
	// Attacker sends fake X-Forwarded-For header
	r, _ := http.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "1.2.3.4") // Attacker-supplied
	r.RemoteAddr = "192.168.1.100:54321"       // Real connection

	// With TrustProxy=false, the fake header is ignored
	got := GetClientIP(r, false)
	if got != "192.168.1.100" {
		t.Errorf("Should ignore X-Forwarded-For when TrustProxy=false, got %q", got)
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"john.doe@example.com", "jo***@example.com"},
		{"JOHN.DOE@EXAMPLE.COM", "jo***@example.com"}, // Normalized to lowercase
		{"ab@example.com", "***@example.com"},
		{"a@example.com", "***@example.com"},
		{"player-9f1c4567", "***4567"},
		{"123", "***"},
		{"", "***"},
		{"  User@Example.Com  ", "us***@example.com"}, // Trimmed and lowercased
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := SanitizeIdentifier(tt.input)
			if got != tt.expected {
				t.Errorf("SanitizeIdentifier(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.SubmitCooldown != 2*time.Second {
		t.Errorf("SubmitCooldown = %v, want 2s", cfg.SubmitCooldown)
	}
	if cfg.SubmitMaxPerHour != 10 {
		t.Errorf("SubmitMaxPerHour = %d, want 10", cfg.SubmitMaxPerHour)
	}
	if cfg.SubmitMaxIPPerHour != 30 {
		t.Errorf("SubmitMaxIPPerHour = %d, want 30", cfg.SubmitMaxIPPerHour)
	}
	if cfg.DeclineMaxAttempts != 5 {
		t.Errorf("DeclineMaxAttempts = %d, want 5", cfg.DeclineMaxAttempts)
	}
	if cfg.DeclineLockout != 30*time.Minute {
		t.Errorf("DeclineLockout = %v, want 30m", cfg.DeclineLockout)
	}
}

func TestNew_NilConfig(t *testing.T) {
	limiter := New(nil)
	defer limiter.Close()

	if limiter.config.SubmitMaxPerHour != 10 {
		t.Error("New(nil) should use default config")
	}
}

func TestLimiter_Close(t *testing.T) {
	limiter := New(nil)

	// Trigger cleanup goroutine
	limiter.CheckSubmission("player-1", "1.2.3.4")

	done := make(chan struct{})
	go func() {
		limiter.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Error("Close() should not hang")
	}
}

func TestConcurrentAccess(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		SubmitMaxPerHour:   1000,
		SubmitMaxIPPerHour: 1000,
		DeclineMaxAttempts: 1000,
		DeclineLockout:     5 * time.Minute,
		Clock:              clock,
	})
	defer limiter.Close()

	var wg sync.WaitGroup
	numGoroutines := 100
	numOps := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				if result := limiter.CheckSubmission("player-1", "192.168.1.1"); result.Allowed {
					limiter.RecordSubmission("player-1", "192.168.1.1")
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				limiter.RecordDecline("player-2")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				limiter.ResetDeclines("player-2")
			}
		}()
	}

	wg.Wait()
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip       string
		expected bool
	}{
		// IPv4 private ranges
		{"10.0.0.1", true},
		{"10.255.255.255", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"192.168.1.1", true},
		{"192.168.255.255", true},
		{"127.0.0.1", true},
		// IPv6 private/reserved
		{"::1", true},
		{"fc00::1", true},
		{"fe80::1", true}, // Link-local
		// IPv4-mapped IPv6 addresses (must match their IPv4 equivalents)
		{"::ffff:10.0.0.1", true},
		{"::ffff:192.168.1.1", true},
		{"::ffff:172.16.0.1", true},
		{"::ffff:127.0.0.1", true},
		{"::ffff:8.8.8.8", false},   // Public IP in IPv4-mapped format
		{"::ffff:1.1.1.1", false},   // Public IP in IPv4-mapped format
		// Public IPs
		{"203.0.113.50", false},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"2001:4860:4860::8888", false}, // Google DNS IPv6
		// Invalid
		{"invalid", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			got := isPrivateIP(tt.ip)
			if got != tt.expected {
				t.Errorf("isPrivateIP(%q) = %v, want %v", tt.ip, got, tt.expected)
			}
		})
	}
}

func TestCheckAndRecord_SeparateOps(t *testing.T) {
	// Check must not consume quota; only Record does.
	clock := newMockClock()
	limiter := New(&Config{
		SubmitCooldown:     60 * time.Second,
		SubmitMaxPerHour:   1,
		SubmitMaxIPPerHour: 100,
		DeclineMaxAttempts: 5,
		Clock:              clock,
	})
	defer limiter.Close()

	for i := 0; i < 10; i++ {
		if result := limiter.CheckSubmission("player-1", "192.168.1.1"); !result.Allowed {
			t.Errorf("Check %d should be allowed without prior Record", i+1)
		}
	}

	limiter.RecordSubmission("player-1", "192.168.1.1")

	if result := limiter.CheckSubmission("player-1", "192.168.1.1"); result.Allowed {
		t.Error("Check after Record should be blocked")
	}
}

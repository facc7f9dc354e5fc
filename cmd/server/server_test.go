package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codr1/leagueoffice/internal/api/auth"
	"github.com/codr1/leagueoffice/internal/config"
	"github.com/codr1/leagueoffice/internal/db"
)

const testOpsKey = "server-test-operator-key-000001"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg, err := config.Parse([]byte(`
app:
  name: "League Office"
  port: 8080
database:
  driver: sqlite
  filename: "unused.db"
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	hash, err := auth.HashOpsKey(testOpsKey)
	if err != nil {
		t.Fatalf("hash ops key: %v", err)
	}
	cfg.Payments.StripeSecretKey = "sk_test_server"
	cfg.Payments.StripeWebhookSecret = "whsec_server"
	cfg.Payments.PeerWebhookSecret = "peer_server"
	cfg.Auth.JWTSecret = "server-jwt-secret"
	cfg.Auth.OpsAPIKeyHash = hash

	database, err := db.New(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	a, err := newApp(cfg, database)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(a.Close)

	server := httptest.NewServer(newServer(cfg, a).Handler)
	t.Cleanup(server.Close)
	return server
}

func TestRoutes(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		headers    map[string]string
		wantStatus int
	}{
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "submit requires user", method: http.MethodPost, path: "/api/v1/payments", body: `{}`, wantStatus: http.StatusUnauthorized},
		{name: "wrong method", method: http.MethodGet, path: "/api/v1/payments", wantStatus: http.StatusMethodNotAllowed},
		{name: "card webhook without signature", method: http.MethodPost, path: "/api/v1/webhooks/card", body: `{}`, wantStatus: http.StatusUnauthorized},
		{name: "peer webhook bad signature", method: http.MethodPost, path: "/api/v1/webhooks/peer", body: `{}`, headers: map[string]string{"X-Peer-Signature": "deadbeef"}, wantStatus: http.StatusUnauthorized},
		{name: "admin requires credentials", method: http.MethodGet, path: "/api/v1/admin/outcomes", wantStatus: http.StatusUnauthorized},
		{name: "admin with ops key", method: http.MethodGet, path: "/api/v1/admin/outcomes", headers: map[string]string{auth.OpsKeyHeader: testOpsKey}, wantStatus: http.StatusOK},
		{name: "unknown team with ops key", method: http.MethodGet, path: "/api/v1/teams/T404", headers: map[string]string{auth.OpsKeyHeader: testOpsKey}, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, server.URL+tt.path, strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("new request: %v", err)
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			resp, err := server.Client().Do(req)
			if err != nil {
				t.Fatalf("do request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if resp.Header.Get("X-Request-ID") == "" {
				t.Fatal("expected X-Request-ID header")
			}
		})
	}
}

func TestNewAppRejectsLiveKeyInSandbox(t *testing.T) {
	cfg, err := config.Parse([]byte("app:\n  name: x\n  port: 1\n"))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Payments.StripeSecretKey = "sk_live_nope"

	database, err := db.New(filepath.Join(t.TempDir(), "live.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if _, err := newApp(cfg, database); err == nil {
		t.Fatal("expected error for live key in sandbox")
	}
}

// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/leagueoffice/internal/api"
	"github.com/codr1/leagueoffice/internal/api/admin"
	"github.com/codr1/leagueoffice/internal/api/auth"
	apipayments "github.com/codr1/leagueoffice/internal/api/payments"
	"github.com/codr1/leagueoffice/internal/api/teams"
	"github.com/codr1/leagueoffice/internal/config"
	"github.com/codr1/leagueoffice/internal/db"
	"github.com/codr1/leagueoffice/internal/email"
	"github.com/codr1/leagueoffice/internal/fulfillment"
	"github.com/codr1/leagueoffice/internal/gateway"
	"github.com/codr1/leagueoffice/internal/payments"
	"github.com/codr1/leagueoffice/internal/ratelimit"
	"github.com/codr1/leagueoffice/internal/scheduler"
	"github.com/codr1/leagueoffice/internal/webhooks"
)

// app holds the constructed services.
type app struct {
	authenticator *auth.Authenticator
	limiter       *ratelimit.Limiter
	scheduler     *scheduler.Service

	payments *apipayments.Handler
	teams    *teams.Handler
	admin    *admin.Handler
	webhooks *webhooks.Handler

	cardSource webhooks.Source
	peerSource webhooks.Source
}

func newApp(cfg *config.Config, database *db.DB) (*app, error) {
	gw, err := gateway.NewStripeGateway(
		cfg.Payments.StripeSecretKey,
		cfg.Payments.Environment,
		cfg.Payments.StatementDescriptor,
	)
	if err != nil {
		return nil, fmt.Errorf("configure payment gateway: %w", err)
	}

	sesClient, err := email.NewSESClientFromConfig(cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("configure email: %w", err)
	}
	var receipts email.EmailSender
	if sesClient != nil {
		receipts = sesClient
	} else {
		log.Warn().Msg("Email is not configured; payment receipts will not be sent")
	}

	processor := fulfillment.NewProcessor(database, cfg.Jobs.MaxFulfillmentRetries)
	service := payments.NewService(database, gw, processor, payments.Options{
		Currency:   cfg.Payments.Currency,
		LeagueName: cfg.App.Name,
		Receipts:   receipts,
	})

	limiterCfg := ratelimit.DefaultConfig()
	limiterCfg.SubmitMaxPerHour = cfg.Payments.SubmitMaxPerHour
	limiterCfg.SubmitMaxIPPerHour = cfg.Payments.SubmitMaxIPPerHour
	limiter := ratelimit.New(limiterCfg)

	ledger := webhooks.NewLedger(database)

	sched, err := scheduler.New()
	if err != nil {
		limiter.Close()
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	if err := scheduler.RegisterJobs(sched, scheduler.Jobs{
		Payments:    service,
		Fulfillment: processor,
		Ledger:      ledger,
		Config:      cfg.Jobs,
	}); err != nil {
		limiter.Close()
		_ = sched.Stop()
		return nil, err
	}

	if cfg.Payments.StripeWebhookSecret == "" {
		log.Warn().Msg("STRIPE_WEBHOOK_SECRET is not set; card webhooks will be rejected")
	}
	if cfg.Payments.PeerWebhookSecret == "" {
		log.Warn().Msg("PEER_WEBHOOK_SECRET is not set; peer webhooks will be rejected")
	}

	return &app{
		authenticator: auth.NewAuthenticator(cfg.Auth),
		limiter:       limiter,
		scheduler:     sched,
		payments:      apipayments.NewHandler(service, limiter, cfg.App.TrustProxy),
		teams:         teams.NewHandler(database, service),
		admin:         admin.NewHandler(processor),
		webhooks:      webhooks.NewHandler(ledger, service),
		cardSource:    webhooks.NewStripeSource(cfg.Payments.StripeWebhookSecret, cfg.WebhookTolerance()),
		peerSource:    webhooks.NewPeerSource(cfg.Payments.PeerWebhookSecret),
	}, nil
}

func (a *app) Close() {
	if err := a.scheduler.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop scheduler")
	}
	a.limiter.Close()
}

func newServer(cfg *config.Config, a *app) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	// Register routes
	registerRoutes(router, a)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, a *app) {
	user := func(h http.HandlerFunc) http.Handler {
		return api.ChainMiddleware(h, api.RequireUser, api.WithAuth(a.authenticator))
	}
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return api.ChainMiddleware(h, api.RequireAdmin, api.WithAuth(a.authenticator))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Payment routes
	mux.Handle("POST /api/v1/payments/intents", user(a.payments.HandleCreateIntent))
	mux.Handle("POST /api/v1/payments", user(a.payments.HandleSubmit))
	mux.Handle("GET /api/v1/payments/{id}", user(a.payments.HandleGet))

	// Webhooks authenticate by signature only
	mux.Handle("POST /api/v1/webhooks/card", a.webhooks.Endpoint(a.cardSource))
	mux.Handle("POST /api/v1/webhooks/peer", a.webhooks.Endpoint(a.peerSource))

	// Front office
	mux.Handle("GET /api/v1/teams/{id}", user(a.teams.HandleGetTeam))
	mux.Handle("POST /api/v1/teams/{id}/change-requests", user(a.teams.HandleCreateChangeRequest))
	mux.Handle("POST /api/v1/registrations", user(a.teams.HandleCreateRegistration))

	// Operator routes
	mux.Handle("GET /api/v1/admin/payments/{id}/outcome", adminOnly(a.admin.HandleGetOutcome))
	mux.Handle("POST /api/v1/admin/payments/{id}/retry", adminOnly(a.admin.HandleRetry))
	mux.Handle("GET /api/v1/admin/outcomes", adminOnly(a.admin.HandleListOutcomes))
}

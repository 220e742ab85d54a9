package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-bridge/config"
	httpHandler "payment-bridge/internal/adapter/http/handler"
	memStorage "payment-bridge/internal/adapter/storage/memory"
	pgStorage "payment-bridge/internal/adapter/storage/postgres"
	redisStorage "payment-bridge/internal/adapter/storage/redis"
	"payment-bridge/internal/core/domain"
	"payment-bridge/internal/core/ports"
	"payment-bridge/internal/service"
	"payment-bridge/pkg/logger"

	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	version, authMode, sigMode, _ := cfg.Gateway.Modes()
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("ledger", cfg.Ledger.Backend).
		Str("api_version", string(version)).
		Str("auth_mode", string(authMode)).
		Str("signature_mode", string(sigMode)).
		Str("client_id", cfg.Gateway.ClientID).
		Str("client_secret", logger.Mask(cfg.Gateway.ClientSecret)).
		Msg("Starting Payment Bridge")

	ctx := context.Background()

	// Core services
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	var (
		ledger         ports.OrderRepository
		auditRepo      ports.AuditRepository
		healthCheckers []ports.HealthChecker
	)

	// Order ledger
	switch cfg.Ledger.Backend {
	case config.LedgerPostgres:
		encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize encryption service")
		}

		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		log.Info().Msg("PostgreSQL connected")

		if err := pgStorage.Migrate(ctx, pool, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}

		ledger = pgStorage.NewOrderRepo(pool, encSvc)
		auditRepo = pgStorage.NewAuditRepository(pool)
		healthCheckers = append(healthCheckers, pgStorage.NewHealthCheck(pool))
	default:
		ledger = memStorage.NewOrderLedger()
		log.Warn().Msg("Using in-memory order ledger, orders are lost on restart")
	}

	// Redis stores
	var (
		idempotencyCache ports.IdempotencyCache
		nonceStore       ports.NonceStore
		rateLimitStore   ports.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		nonceStore = redisStorage.NewNonceStore(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: no webhook replay protection, rate limiting or create replay")
	}

	// Gateway
	creds := cfg.Gateway.Credentials()
	httpClient := &http.Client{}

	var tokens ports.AccessTokenProvider
	if authMode == domain.AuthModeOAuth {
		tokens = service.NewTokenCache(creds, httpClient, log,
			service.WithSafetyMargin(cfg.Gateway.TokenSafetyMargin),
			service.WithDefaultTokenTTL(cfg.Gateway.DefaultTokenTTL),
			service.WithAuthTimeout(cfg.Gateway.AuthTimeout),
		)
	}
	signer := service.NewChecksumSigner(sigMode, creds)
	gateway := service.NewGatewayClient(creds, gatewayOptions(cfg.Gateway, version, authMode), tokens, signer, httpClient, log)

	// Reconciliation
	reconcilerOpts := []service.ReconcilerOption{}
	if nonceStore != nil {
		reconcilerOpts = append(reconcilerOpts, service.WithReplayProtection(nonceStore, cfg.Webhook.ReplayTTL))
	}
	var auditSvc ports.AuditService
	if auditRepo != nil {
		auditSvc = service.NewAuditService(auditRepo, log)
		reconcilerOpts = append(reconcilerOpts, service.WithConflictAudit(auditSvc))
	}
	if cfg.Notifier.URL != "" {
		notifier := service.NewStatusNotifier(cfg.Notifier.URL, cfg.Notifier.Secret, sigSvc, httpClient, nil, log)
		reconcilerOpts = append(reconcilerOpts, service.WithStatusNotifier(notifier))
	}
	reconciler := service.NewReconciliationEngine(ledger, gateway, sigSvc, cfg.Webhook.Secret, log, reconcilerOpts...)

	// Business services
	var paymentOpts []service.PaymentOption
	if nonceStore != nil {
		paymentOpts = append(paymentOpts, service.WithCreateReservation(nonceStore, service.DefaultCreateReservationTTL))
	}
	paymentSvc := service.NewPaymentService(ledger, gateway, reconciler, idempotencyCache, log, paymentOpts...)
	webhookSvc := service.NewWebhookService(reconciler, log)
	authSvc := service.NewOperatorAuthService(cfg.Operator.Username, cfg.Operator.PasswordHash, hashSvc, tokenSvc)

	deps := httpHandler.RouterDeps{
		PaymentSvc:       paymentSvc,
		WebhookSvc:       webhookSvc,
		AuthSvc:          authSvc,
		TokenSvc:         tokenSvc,
		SignatureHeaders: cfg.Webhook.SignatureHeaders,
		RateLimitStore:   rateLimitStore,
		AuditSvc:         auditSvc,
		HealthCheckers:   healthCheckers,
		Mode:             cfg.Server.Mode,
		Logger:           log,
	}
	router := httpHandler.SetupRouter(deps)

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdown(srv, cfg.Server.ShutdownTimeout, log)
}

// gatewayOptions overlays configured paths, URLs and limits on the defaults
// of the selected API version.
func gatewayOptions(g config.GatewayConfig, version domain.APIVersion, authMode domain.AuthMode) service.GatewayOptions {
	opts := service.DefaultGatewayOptions(version)
	opts.AuthMode = authMode
	if g.PayPath != "" {
		opts.PayPath = g.PayPath
	}
	if g.StatusPath != "" {
		opts.StatusPath = g.StatusPath
	}
	if g.RefundPath != "" {
		opts.RefundPath = g.RefundPath
	}
	opts.DefaultRedirectURL = g.RedirectURL
	opts.DefaultCallbackURL = g.CallbackURL
	if g.CreateTimeout > 0 {
		opts.CreateTimeout = g.CreateTimeout
	}
	if g.StatusTimeout > 0 {
		opts.StatusTimeout = g.StatusTimeout
	}
	if g.RefundTimeout > 0 {
		opts.RefundTimeout = g.RefundTimeout
	}
	opts.RateLimit = g.RateLimit
	opts.Burst = g.Burst
	return opts
}

func shutdown(srv *http.Server, timeout time.Duration, log zerolog.Logger) {
	log.Info().Msg("Shutting down server...")

	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

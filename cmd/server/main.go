package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"creator-subscription-api/internal/api"
	"creator-subscription-api/internal/config"
	"creator-subscription-api/internal/database"
	"creator-subscription-api/internal/gateway"
	"creator-subscription-api/internal/middleware"
	"creator-subscription-api/internal/services"
	"creator-subscription-api/pkg/logging"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Registered first so it runs after every other deferred cleanup
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatal("Failed to initialize config:", err)
	}
	cfg := config.AppConfig

	// Initialize logging
	logging.InitLogging(cfg.Mode)

	// Initialize database
	if err := database.InitDatabase(); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.CloseDatabase()

	db := database.GetDB()
	redisClient := database.GetRedis()

	gw, err := newGateway(cfg)
	if err != nil {
		log.Fatal("Failed to initialize payment gateway:", err)
	}

	// Ledgers and activation fan-out
	bus := services.NewActivationBus()
	pricing := services.NewPricingService(db, cfg.DefaultSubscriptionFee, cfg.MinSubscriptionFee, cfg.RevenueShareRate, cfg.Currency)
	validity := time.Duration(cfg.SubscriptionValidityDays) * 24 * time.Hour
	ledger := services.NewSubscriptionLedger(db, bus, validity, cfg.AmountMismatchPolicy)
	earnings := services.NewEarningsLedger(db, pricing)
	bus.SubscribeInTx(earnings.HandleActivation)

	if cfg.NotifyWebhookURL != "" {
		notifier := services.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyWebhookSecret)
		bus.SubscribeAfterCommit(notifier.HandleActivation)
	}

	// Redis backs locks and replay tracking across instances
	var (
		locker services.Locker
		replay services.ReplayGuard
	)
	if redisClient != nil {
		locker = services.NewRedisLocker(redisClient)
		replay = services.NewRedisReplayGuard(redisClient, 24*time.Hour)
	} else {
		locker = services.NewMemoryLocker()
		memoryReplay := services.NewMemoryReplayGuard(24 * time.Hour)
		defer memoryReplay.Stop()
		replay = memoryReplay
	}

	var mailer services.WithdrawalMailer
	if cfg.BrevoAPIKey != "" {
		mailer = services.NewBrevoMailer(cfg.BrevoAPIKey, cfg.BrevoFromEmail, cfg.BrevoFromName, cfg.ServiceName, "")
	} else {
		logging.Warnf("BREVO_API_KEY is not set, withdrawal decision emails are disabled")
	}
	withdrawals := services.NewWithdrawalWorkflow(db, earnings, locker, mailer, cfg.MinWithdrawalAmount, cfg.Currency)

	callbackURL := strings.TrimRight(cfg.PublicURL, "/") + "/api/payments/callback"
	orchestrator := services.NewOrchestrator(db, gw, ledger, pricing, replay, callbackURL)

	poller := services.NewPoller(orchestrator,
		time.Duration(cfg.PollIntervalSeconds)*time.Second,
		time.Duration(cfg.PollTimeoutMinutes)*time.Minute,
		cfg.PollMaxActive)
	defer poller.Shutdown()

	if cfg.ExpirySweepMinutes > 0 {
		sweeper := services.NewExpirySweeper(ledger, time.Duration(cfg.ExpirySweepMinutes)*time.Minute)
		sweeper.Start()
		defer sweeper.Stop()
	}

	verifiers, err := newVerifiers(cfg)
	if err != nil {
		log.Fatal("Failed to initialize authentication:", err)
	}

	// Set Gin mode
	gin.SetMode(cfg.Mode)

	// Create Gin engine
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.CORSOrigin, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Setup routes
	handler := api.NewHandler(api.Services{
		Orchestrator: orchestrator,
		Poller:       poller,
		Ledger:       ledger,
		Earnings:     earnings,
		Withdrawals:  withdrawals,
		Pricing:      pricing,
	}, gw.Name(), cfg.AppURL)
	api.SetupRoutes(r, handler, middleware.AuthMiddleware(verifiers...), cfg.ServiceName)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Infof("Starting server on port %s with %s payments", cfg.Port, gw.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Returning runs the deferred poller, sweeper and database cleanup
	select {
	case err := <-serverErr:
		logging.Errorf("Server failed: %v", err)
		exitCode = 1
		return
	case <-quit:
	}

	logging.Infof("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Errorf("Server shutdown failed: %v", err)
	}
}

// newGateway builds the adapter for the configured payment provider
func newGateway(cfg *config.Config) (gateway.Gateway, error) {
	switch cfg.PaymentProvider {
	case config.ProviderStripe:
		if cfg.StripeSecretKey == "" {
			return nil, errors.New("STRIPE_SECRET_KEY is required")
		}
		return gateway.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil), nil
	case config.ProviderFlutterwave:
		if cfg.FlutterwaveSecretKey == "" {
			return nil, errors.New("FLUTTERWAVE_SECRET_KEY is required")
		}
		return gateway.NewFlutterwaveGateway(cfg.FlutterwaveBaseURL, cfg.FlutterwaveSecretKey, cfg.FlutterwaveSecretHash), nil
	default:
		return nil, fmt.Errorf("unsupported payment provider %q", cfg.PaymentProvider)
	}
}

// newVerifiers builds the bearer token verifiers. At least one of
// JWT_SECRET and OIDC_ISSUER_URL must be set.
func newVerifiers(cfg *config.Config) ([]middleware.TokenVerifier, error) {
	var verifiers []middleware.TokenVerifier

	if cfg.JWTSecret != "" {
		verifiers = append(verifiers, middleware.NewJWTVerifier(cfg.JWTSecret))
	}

	if cfg.OIDCIssuerURL != "" {
		oidcVerifier, err := middleware.NewOIDCVerifier(context.Background(), cfg.OIDCIssuerURL, cfg.OIDCClientID)
		if err != nil {
			return nil, err
		}
		verifiers = append(verifiers, oidcVerifier)
	}

	if len(verifiers) == 0 {
		return nil, errors.New("JWT_SECRET or OIDC_ISSUER_URL is required")
	}
	return verifiers, nil
}

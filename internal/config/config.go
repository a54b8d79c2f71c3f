package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port       string
	Mode       string
	CORSOrigin string
	AppURL     string
	PublicURL  string

	// Database configuration
	DatabaseURL string

	// Redis configuration (optional, locks and replay guard fall back to memory)
	RedisURL string

	// Identity configuration
	JWTSecret     string
	OIDCIssuerURL string
	OIDCClientID  string

	// Payment gateway configuration
	PaymentProvider       string
	Currency              string
	StripeSecretKey       string
	StripeWebhookSecret   string
	FlutterwaveSecretKey  string
	FlutterwaveSecretHash string
	FlutterwaveBaseURL    string

	// Subscription and ledger rules
	SubscriptionValidityDays int
	RevenueShareRate         float64
	MinWithdrawalAmount      int64
	DefaultSubscriptionFee   int64
	MinSubscriptionFee       int64
	AmountMismatchPolicy     string
	ExpirySweepMinutes       int

	// Polling fallback
	PollIntervalSeconds int
	PollTimeoutMinutes  int
	PollMaxActive       int

	// Downstream activation webhook
	NotifyWebhookURL    string
	NotifyWebhookSecret string

	// Brevo email configuration
	BrevoAPIKey    string
	BrevoFromEmail string
	BrevoFromName  string
	ServiceName    string
}

const (
	ProviderStripe      = "stripe"
	ProviderFlutterwave = "flutterwave"

	MismatchPolicyLog    = "log"
	MismatchPolicyReject = "reject"
)

var AppConfig *Config

func InitConfig() error {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// Ignore error if .env file doesn't exist
	}

	AppConfig = &Config{
		Port:       getEnv("PORT", "8080"),
		Mode:       getEnv("GIN_MODE", "debug"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:5173"),
		AppURL:     getEnv("APP_URL", "http://localhost:5173"),
		PublicURL:  getEnv("PUBLIC_URL", "http://localhost:8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		OIDCIssuerURL: getEnv("OIDC_ISSUER_URL", ""),
		OIDCClientID:  getEnv("OIDC_CLIENT_ID", ""),

		PaymentProvider:       strings.ToLower(getEnv("PAYMENT_PROVIDER", ProviderStripe)),
		Currency:              strings.ToUpper(getEnv("CURRENCY", "NGN")),
		StripeSecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
		FlutterwaveSecretKey:  getEnv("FLUTTERWAVE_SECRET_KEY", ""),
		FlutterwaveSecretHash: getEnv("FLUTTERWAVE_SECRET_HASH", ""),
		FlutterwaveBaseURL:    getEnv("FLUTTERWAVE_BASE_URL", "https://api.flutterwave.com"),

		SubscriptionValidityDays: getEnvInt("SUBSCRIPTION_VALIDITY_DAYS", 30),
		RevenueShareRate:         getEnvFloat("REVENUE_SHARE_RATE", 0.85),
		MinWithdrawalAmount:      int64(getEnvInt("MIN_WITHDRAWAL_AMOUNT", 5000)),
		DefaultSubscriptionFee:   int64(getEnvInt("DEFAULT_SUBSCRIPTION_FEE", 10000)),
		MinSubscriptionFee:       int64(getEnvInt("MIN_SUBSCRIPTION_FEE", 1000)),
		AmountMismatchPolicy:     strings.ToLower(getEnv("AMOUNT_MISMATCH_POLICY", MismatchPolicyLog)),
		ExpirySweepMinutes:       getEnvInt("EXPIRY_SWEEP_MINUTES", 0),

		PollIntervalSeconds: getEnvInt("POLL_INTERVAL_SECONDS", 3),
		PollTimeoutMinutes:  getEnvInt("POLL_TIMEOUT_MINUTES", 5),
		PollMaxActive:       getEnvInt("POLL_MAX_ACTIVE", 50),

		NotifyWebhookURL:    getEnv("NOTIFY_WEBHOOK_URL", ""),
		NotifyWebhookSecret: getEnv("NOTIFY_WEBHOOK_SECRET", ""),

		BrevoAPIKey:    getEnv("BREVO_API_KEY", ""),
		BrevoFromEmail: getEnv("BREVO_FROM_EMAIL", ""),
		BrevoFromName:  getEnv("BREVO_FROM_NAME", "Creator Payouts"),
		ServiceName:    getEnv("SERVICE_NAME", "Creator Subscriptions"),
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

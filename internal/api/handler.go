package api

import (
	"creator-subscription-api/internal/services"
)

// Handler carries the services behind the HTTP API
type Handler struct {
	orchestrator *services.Orchestrator
	poller       *services.Poller
	ledger       *services.SubscriptionLedger
	earnings     *services.EarningsLedger
	withdrawals  *services.WithdrawalWorkflow
	pricing      *services.PricingService

	provider string
	appURL   string
}

// Services groups the dependencies of NewHandler
type Services struct {
	Orchestrator *services.Orchestrator
	Poller       *services.Poller
	Ledger       *services.SubscriptionLedger
	Earnings     *services.EarningsLedger
	Withdrawals  *services.WithdrawalWorkflow
	Pricing      *services.PricingService
}

// NewHandler creates the API handler. provider is the name of the active
// payment gateway; appURL, when set, is where browser redirects land.
func NewHandler(svc Services, provider, appURL string) *Handler {
	return &Handler{
		orchestrator: svc.Orchestrator,
		poller:       svc.Poller,
		ledger:       svc.Ledger,
		earnings:     svc.Earnings,
		withdrawals:  svc.Withdrawals,
		pricing:      svc.Pricing,
		provider:     provider,
		appURL:       appURL,
	}
}

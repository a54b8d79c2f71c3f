package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"creator-subscription-api/internal/models"
	"creator-subscription-api/pkg/logging"
)

// WebhookNotifier tells the downstream content gate that a subscription went live
type WebhookNotifier struct {
	httpClient  *http.Client
	callbackURL string
	secret      string
	retryDelays []time.Duration
	now         func() time.Time
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(callbackURL, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		callbackURL: callbackURL,
		secret:      secret,
		retryDelays: []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second},
		now:         time.Now,
	}
}

// WebhookPayload is the body POSTed to the callback URL
type WebhookPayload struct {
	Event          string `json:"event"`
	SubscriptionID string `json:"subscription_id"`
	OwnerID        string `json:"owner_id"`
	SubscriberID   string `json:"subscriber_id"`
	Reference      string `json:"reference"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	ActivatedAt    string `json:"activated_at"` // ISO 8601
	ExpiresAt      string `json:"expires_at"`   // ISO 8601
	Timestamp      string `json:"timestamp"`
}

// HandleActivation is an after-commit activation listener. Delivery runs in
// its own goroutine so the caller never waits on the downstream service.
func (wn *WebhookNotifier) HandleActivation(ctx context.Context, event models.SubscriptionActivated) {
	if wn.callbackURL == "" {
		return
	}
	go wn.sendWithRetry(wn.buildPayload(event))
}

func (wn *WebhookNotifier) buildPayload(event models.SubscriptionActivated) WebhookPayload {
	return WebhookPayload{
		Event:          "subscription.activated",
		SubscriptionID: event.SubscriptionID,
		OwnerID:        event.OwnerID,
		SubscriberID:   event.SubscriberID,
		Reference:      event.Reference,
		Amount:         event.Amount,
		Currency:       event.Currency,
		ActivatedAt:    event.ActivatedAt.Format(time.RFC3339),
		ExpiresAt:      event.ExpiresAt.Format(time.RFC3339),
		Timestamp:      wn.now().UTC().Format(time.RFC3339),
	}
}

// sendWithRetry sends the webhook, retrying on the configured delays
func (wn *WebhookNotifier) sendWithRetry(payload WebhookPayload) error {
	maxAttempts := len(wn.retryDelays)
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = wn.sendWebhook(payload)
		if err == nil {
			logging.Infof("Webhook notification sent successfully - url: %s, reference: %s, attempt: %d",
				wn.callbackURL, payload.Reference, attempt+1)
			return nil
		}

		logging.Errorf("Webhook notification failed - url: %s, reference: %s, attempt: %d, error: %v",
			wn.callbackURL, payload.Reference, attempt+1, err)

		if attempt < maxAttempts-1 {
			time.Sleep(wn.retryDelays[attempt])
		}
	}

	logging.Errorf("Webhook notification failed after %d attempts - url: %s, reference: %s",
		maxAttempts, wn.callbackURL, payload.Reference)
	return err
}

// sendWebhook sends a single webhook request
func (wn *WebhookNotifier) sendWebhook(payload WebhookPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, wn.callbackURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "CreatorSubscriptions-Webhook/1.0")

	if wn.secret != "" {
		req.Header.Set("X-Webhook-Signature", generateSignature(jsonData, wn.secret))
	}

	resp, err := wn.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// generateSignature generates HMAC-SHA256 signature for webhook payload
func generateSignature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

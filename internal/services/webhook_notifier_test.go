package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"creator-subscription-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activationEvent() models.SubscriptionActivated {
	return models.SubscriptionActivated{
		SubscriptionID: "sub-1",
		OwnerID:        "creator-1",
		SubscriberID:   "fan-1",
		Amount:         10000,
		Currency:       "NGN",
		Reference:      "ref1",
		ActivatedAt:    testStart,
		ExpiresAt:      testStart.Add(validity),
	}
}

func TestWebhookNotifier_SignsPayload(t *testing.T) {
	received := make(chan WebhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		assert.Equal(t, generateSignature(body, "s3cret"), r.Header.Get("X-Webhook-Signature"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload WebhookPayload
		require.NoError(t, json.Unmarshal(body, &payload))
		received <- payload
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL, "s3cret")
	notifier.HandleActivation(context.Background(), activationEvent())

	select {
	case payload := <-received:
		assert.Equal(t, "subscription.activated", payload.Event)
		assert.Equal(t, "ref1", payload.Reference)
		assert.Equal(t, "creator-1", payload.OwnerID)
		assert.Equal(t, int64(10000), payload.Amount)
		assert.Equal(t, "2026-01-31T12:00:00Z", payload.ExpiresAt)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestWebhookNotifier_Retries(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL, "")
	notifier.retryDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}

	err := notifier.sendWithRetry(notifier.buildPayload(activationEvent()))
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestWebhookNotifier_GivesUp(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL, "")
	notifier.retryDelays = []time.Duration{time.Millisecond, time.Millisecond}

	err := notifier.sendWithRetry(notifier.buildPayload(activationEvent()))
	assert.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestWebhookNotifier_DisabledWithoutURL(t *testing.T) {
	notifier := NewWebhookNotifier("", "")
	// Must return without spawning a delivery
	notifier.HandleActivation(context.Background(), activationEvent())
}

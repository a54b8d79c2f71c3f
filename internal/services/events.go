package services

import (
	"context"
	"sync"

	"creator-subscription-api/internal/models"
	"creator-subscription-api/pkg/logging"

	"gorm.io/gorm"
)

// ActivationHandler runs inside the activation transaction. Returning an
// error rolls the activation back.
type ActivationHandler func(ctx context.Context, tx *gorm.DB, event models.SubscriptionActivated) error

// ActivationListener runs after the activation has committed
type ActivationListener func(ctx context.Context, event models.SubscriptionActivated)

// ActivationBus delivers SubscriptionActivated to the components that react
// to a subscription going live
type ActivationBus struct {
	mu          sync.RWMutex
	handlers    []ActivationHandler
	afterCommit []ActivationListener
}

// NewActivationBus creates an empty bus
func NewActivationBus() *ActivationBus {
	return &ActivationBus{}
}

// SubscribeInTx registers a handler that shares the activation transaction
func (b *ActivationBus) SubscribeInTx(h ActivationHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// SubscribeAfterCommit registers a listener notified once the activation is durable
func (b *ActivationBus) SubscribeAfterCommit(l ActivationListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.afterCommit = append(b.afterCommit, l)
}

func (b *ActivationBus) publishInTx(ctx context.Context, tx *gorm.DB, event models.SubscriptionActivated) error {
	b.mu.RLock()
	handlers := append([]ActivationHandler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, tx, event); err != nil {
			return err
		}
	}
	return nil
}

func (b *ActivationBus) publishAfterCommit(ctx context.Context, event models.SubscriptionActivated) {
	b.mu.RLock()
	listeners := append([]ActivationListener(nil), b.afterCommit...)
	b.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Errorf("Activation listener panicked - reference: %s, panic: %v", event.Reference, r)
				}
			}()
			l(ctx, event)
		}()
	}
}

package services

import (
	"context"
	"sync"
	"time"

	"creator-subscription-api/pkg/logging"
)

// ExpirySweeper periodically writes status=expired on lapsed subscriptions.
// Access checks never rely on it; it keeps stored statuses tidy for reporting.
type ExpirySweeper struct {
	ledger   *SubscriptionLedger
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewExpirySweeper creates a sweeper
func NewExpirySweeper(ledger *SubscriptionLedger, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		ledger:   ledger,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop
func (s *ExpirySweeper) Start() {
	go s.startCleanupRoutine()
}

func (s *ExpirySweeper) startCleanupRoutine() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *ExpirySweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	expired, err := s.ledger.ExpireLapsed(ctx)
	if err != nil {
		logging.Errorf("Expiry sweep failed: %v", err)
		return
	}
	if expired > 0 {
		logging.Infof("Expiry sweep: marked %d subscriptions expired", expired)
	}
}

// Stop stops the loop and waits for it to exit. Stop must only be called
// after Start.
func (s *ExpirySweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

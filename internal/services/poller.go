package services

import (
	"context"
	"sync"
	"time"

	"creator-subscription-api/pkg/logging"
)

// StatusChecker runs one verification round for a reference
type StatusChecker interface {
	PollOnce(ctx context.Context, reference string) (*Outcome, error)
}

type pollTask struct {
	cancel context.CancelFunc
}

// Poller runs the bounded polling fallback. Each reference gets at most one
// task, which checks on a fixed interval and stops on a final outcome,
// timeout or Cancel. At most maxActive tasks run at once; references beyond
// that rely on the provider callback and the client status route. Polls
// only read from the gateway, so cancelling has no side effect.
type Poller struct {
	checker   StatusChecker
	interval  time.Duration
	timeout   time.Duration
	maxActive int

	mu      sync.Mutex
	tasks   map[string]*pollTask
	wg      sync.WaitGroup
	rootCtx context.Context
	stopAll context.CancelFunc
}

// NewPoller creates a poller. maxActive <= 0 means no cap.
func NewPoller(checker StatusChecker, interval, timeout time.Duration, maxActive int) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		checker:   checker,
		interval:  interval,
		timeout:   timeout,
		maxActive: maxActive,
		tasks:     make(map[string]*pollTask),
		rootCtx:   ctx,
		stopAll:   cancel,
	}
}

// Start begins polling a reference. It returns false if the reference is
// already being polled, the poller is at capacity or it has shut down.
func (p *Poller) Start(reference string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rootCtx.Err() != nil {
		return false
	}
	if _, exists := p.tasks[reference]; exists {
		return false
	}
	if p.maxActive > 0 && len(p.tasks) >= p.maxActive {
		logging.Warnf("Poller at capacity, not polling - reference: %s, active: %d", reference, len(p.tasks))
		return false
	}

	ctx, cancel := context.WithTimeout(p.rootCtx, p.timeout)
	task := &pollTask{cancel: cancel}
	p.tasks[reference] = task

	p.wg.Add(1)
	go p.run(ctx, reference, task)
	return true
}

// Cancel stops polling a reference. It reports whether a task was running.
func (p *Poller) Cancel(reference string) bool {
	p.mu.Lock()
	task, exists := p.tasks[reference]
	if exists {
		delete(p.tasks, reference)
	}
	p.mu.Unlock()

	if exists {
		task.cancel()
	}
	return exists
}

// Active reports whether a reference is being polled
func (p *Poller) Active(reference string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, exists := p.tasks[reference]
	return exists
}

// Shutdown cancels every task and waits for them to exit
func (p *Poller) Shutdown() {
	p.stopAll()
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context, reference string, task *pollTask) {
	defer p.wg.Done()
	defer func() {
		task.cancel()
		p.mu.Lock()
		if p.tasks[reference] == task {
			delete(p.tasks, reference)
		}
		p.mu.Unlock()
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				logging.Infof("Polling gave up - reference: %s, timeout: %v", reference, p.timeout)
			}
			return
		case <-ticker.C:
			outcome, err := p.checker.PollOnce(ctx, reference)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logging.Warnf("Poll failed - reference: %s, error: %v", reference, err)
				continue
			}
			if outcome.Finished() {
				logging.Infof("Polling finished - reference: %s, status: %s", reference, outcome.Status)
				return
			}
		}
	}
}

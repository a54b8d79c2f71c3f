package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"creator-subscription-api/pkg/logging"

	"github.com/redis/go-redis/v9"
)

// ReplayGuard drops gateway callbacks that have already been processed.
// Events are only marked once processing reached a final result, so a
// delivery that fails or is still in flight never hides a redelivery.
type ReplayGuard interface {
	// Processed reports whether the event was marked within the TTL
	Processed(ctx context.Context, provider, eventID string) (bool, error)
	// MarkProcessed records a finished event
	MarkProcessed(ctx context.Context, provider, eventID string) error
}

// generateEventKey 生成事件的唯一标识符
func generateEventKey(provider, eventID string) string {
	data := fmt.Sprintf("%s:%s", provider, eventID)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// MemoryReplayGuard 重放攻击防护 (in-process)
type MemoryReplayGuard struct {
	processedEvents map[string]time.Time
	mutex           sync.Mutex
	cleanupInterval time.Duration
	eventTTL        time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewMemoryReplayGuard 创建重放攻击防护实例
func NewMemoryReplayGuard(eventTTL time.Duration) *MemoryReplayGuard {
	g := &MemoryReplayGuard{
		processedEvents: make(map[string]time.Time),
		cleanupInterval: time.Hour,
		eventTTL:        eventTTL,
		stopCleanup:     make(chan struct{}),
	}

	// 启动清理协程
	go g.startCleanupRoutine()

	return g
}

func (g *MemoryReplayGuard) Processed(ctx context.Context, provider, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}

	key := generateEventKey(provider, eventID)

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if processedAt, exists := g.processedEvents[key]; exists && time.Since(processedAt) <= g.eventTTL {
		logging.Infof("Replay detected - provider: %s, event: %s, previously processed at: %v", provider, eventID, processedAt)
		return true, nil
	}
	return false, nil
}

func (g *MemoryReplayGuard) MarkProcessed(ctx context.Context, provider, eventID string) error {
	if eventID == "" {
		return nil
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.processedEvents[generateEventKey(provider, eventID)] = time.Now()
	return nil
}

// startCleanupRoutine 启动清理协程
func (g *MemoryReplayGuard) startCleanupRoutine() {
	ticker := time.NewTicker(g.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.cleanup()
		case <-g.stopCleanup:
			return
		}
	}
}

// cleanup 清理过期的事件记录
func (g *MemoryReplayGuard) cleanup() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	now := time.Now()
	initialCount := len(g.processedEvents)

	for key, processedAt := range g.processedEvents {
		if now.Sub(processedAt) > g.eventTTL {
			delete(g.processedEvents, key)
		}
	}

	if cleaned := initialCount - len(g.processedEvents); cleaned > 0 {
		logging.Infof("Replay guard cleanup: removed %d expired events, remaining: %d", cleaned, len(g.processedEvents))
	}
}

// Stop 停止清理协程
func (g *MemoryReplayGuard) Stop() {
	g.stopOnce.Do(func() {
		close(g.stopCleanup)
	})
}

// RedisReplayGuard shares processed event ids across instances
type RedisReplayGuard struct {
	client   *redis.Client
	eventTTL time.Duration
}

// NewRedisReplayGuard creates a Redis-backed replay guard
func NewRedisReplayGuard(client *redis.Client, eventTTL time.Duration) *RedisReplayGuard {
	return &RedisReplayGuard{
		client:   client,
		eventTTL: eventTTL,
	}
}

func (g *RedisReplayGuard) Processed(ctx context.Context, provider, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	n, err := g.client.Exists(ctx, redisEventKey(provider, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to look up event: %w", err)
	}
	return n > 0, nil
}

func (g *RedisReplayGuard) MarkProcessed(ctx context.Context, provider, eventID string) error {
	if eventID == "" {
		return nil
	}
	if err := g.client.Set(ctx, redisEventKey(provider, eventID), time.Now().Unix(), g.eventTTL).Err(); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

func redisEventKey(provider, eventID string) string {
	return "payment_event:" + generateEventKey(provider, eventID)
}

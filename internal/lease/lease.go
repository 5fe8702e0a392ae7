package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when another owner holds the tenant lease.
var ErrHeld = errors.New("tenant lease already held")

// Locker serializes drain work per tenant so the two cron triggers and the
// manual process endpoints never run the same tenant's queue concurrently.
type Locker interface {
	WithTenantLock(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a locker backed by a per-tenant Redis key. The TTL
// bounds how long a crashed holder can block a tenant.
func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{client: client, ttl: ttl}
}

func (l *redisLocker) WithTenantLock(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:confirmations:%s", tenantID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire tenant lease: %w", err)
	}
	if !ok {
		return ErrHeld
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	return fn(ctx)
}

// unlockScript releases the lease only when the token still matches, so an
// expired lease taken over by another owner is never deleted.
var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release tenant lease: %w", err)
	}
	return nil
}

type memoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryLocker creates an in-process locker for tests and single-node
// deployments without Redis.
func NewMemoryLocker() Locker {
	return &memoryLocker{held: make(map[string]bool)}
}

func (l *memoryLocker) WithTenantLock(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.held[tenantID] {
		l.mu.Unlock()
		return ErrHeld
	}
	l.held[tenantID] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, tenantID)
		l.mu.Unlock()
	}()

	return fn(ctx)
}

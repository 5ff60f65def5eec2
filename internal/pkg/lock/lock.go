package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PayFox/internal/pkg/cache"
	"github.com/ManuelReschke/PayFox/internal/pkg/env"
)

const DefaultTTL = 30 * time.Second

// ErrBusy is returned when another processor currently holds the lock for
// the same event id.
var ErrBusy = errors.New("event lock is held by another processor")

// releaseScript deletes the key only when this handle still owns it, so a
// holder whose TTL already expired cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Coordinator hands out short-lived advisory locks keyed by event id. The
// lock only reduces duplicate work under concurrent delivery; the dedup
// ledger's unique constraint stays the authoritative guard.
type Coordinator struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// Handle is a scoped acquisition. Callers must Release on every exit path;
// the TTL bounds staleness if a holder crashes without releasing.
type Handle struct {
	coordinator *Coordinator
	key         string
	token       string
}

// NewCoordinator creates a lock coordinator over the given Redis client.
func NewCoordinator(client *redis.Client, namespace string, ttl time.Duration) *Coordinator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Coordinator{client: client, namespace: namespace, ttl: ttl}
}

// NewCoordinatorFromEnv wires the coordinator to the shared cache client.
func NewCoordinatorFromEnv(namespace string) *Coordinator {
	ttl := DefaultTTL
	if raw := env.GetEnv("LOCK_TTL_SECONDS", ""); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			ttl = time.Duration(secs) * time.Second
		}
	}
	return NewCoordinator(cache.GetClient(), namespace, ttl)
}

// Acquire takes the per-event lock via SET NX EX. ErrBusy means another
// delivery of the same event is in flight and the caller should answer so
// the provider redelivers later.
func (c *Coordinator) Acquire(ctx context.Context, eventID string) (*Handle, error) {
	key := c.keyFor(eventID)
	token := uuid.New().String()

	ok, err := c.client.SetNX(ctx, key, token, c.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock acquire failed: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	return &Handle{coordinator: c, key: key, token: token}, nil
}

// Release frees the lock if this handle still owns it.
func (h *Handle) Release(ctx context.Context) error {
	if h == nil {
		return nil
	}
	return releaseScript.Run(ctx, h.coordinator.client, []string{h.key}, h.token).Err()
}

func (c *Coordinator) keyFor(eventID string) string {
	return fmt.Sprintf("lock:%s:%s", c.namespace, eventID)
}

// Package idempotency tracks which external events have already been applied
// so at-least-once gateway deliveries collapse into exactly-once domain state
// changes. Keys are source:nativeEventID — gateways redeliver the same native
// id on retry, which is what makes the dedup meaningful.
package idempotency

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/types"
)

// Key builds the canonical dedup key for a gateway event.
func Key(source types.PaymentGateway, eventID string) string {
	return fmt.Sprintf("%s:%s", source, eventID)
}

// Ledger records processed event keys with a TTL. Record must have
// set-if-absent semantics so the check-then-write stays correct under
// concurrent delivery of the same event.
type Ledger interface {
	// Seen reports whether a non-expired record exists for the key.
	Seen(ctx context.Context, key string) (bool, error)
	// Record writes the key with the ledger's TTL. Recording a key that is
	// already present is not an error.
	Record(ctx context.Context, key string) error
}

// memoryLedger keeps records in process memory. Sufficient for a single
// instance; expired entries are swept by the cache janitor.
type memoryLedger struct {
	cache *gocache.Cache
}

// NewMemoryLedger creates an in-memory ledger. Entries expire after ttl and
// are garbage-collected hourly.
func NewMemoryLedger(ttl time.Duration) Ledger {
	return &memoryLedger{
		cache: gocache.New(ttl, time.Hour),
	}
}

func (l *memoryLedger) Seen(_ context.Context, key string) (bool, error) {
	_, found := l.cache.Get(key)
	return found, nil
}

func (l *memoryLedger) Record(_ context.Context, key string) error {
	// Add is atomic under the cache mutex and fails when the key exists,
	// which is exactly the set-if-absent we need. An existing key is a
	// duplicate record, not a failure.
	_ = l.cache.Add(key, time.Now().UTC(), gocache.DefaultExpiration)
	return nil
}

// redisLedger backs the ledger with a shared key-value store so multiple
// instances dedup against the same state. Redis owns the TTL.
type redisLedger struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisLedger creates a redis-backed ledger.
func NewRedisLedger(client *redis.Client, ttl time.Duration) Ledger {
	return &redisLedger{
		client: client,
		ttl:    ttl,
		prefix: "idempotency:",
	}
}

func (l *redisLedger) Seen(ctx context.Context, key string) (bool, error) {
	count, err := l.client.Exists(ctx, l.prefix+key).Result()
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to check idempotency record").
			Mark(ierr.ErrSystem)
	}
	return count > 0, nil
}

func (l *redisLedger) Record(ctx context.Context, key string) error {
	// SET NX keeps the first writer's record and TTL intact.
	if err := l.client.SetNX(ctx, l.prefix+key, time.Now().UTC().Unix(), l.ttl).Err(); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to write idempotency record").
			Mark(ierr.ErrSystem)
	}
	return nil
}

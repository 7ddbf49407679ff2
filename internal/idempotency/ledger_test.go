package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/relaycrm/internal/types"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "asaas:evt_123", Key(types.PaymentGatewayAsaas, "evt_123"))
	assert.Equal(t, "abacatepay:bill_9", Key(types.PaymentGatewayAbacatePay, "bill_9"))
}

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(24 * time.Hour)

	key := Key(types.PaymentGatewayAsaas, "evt_1")

	seen, err := ledger.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, ledger.Record(ctx, key))

	seen, err = ledger.Seen(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)

	// recording the same key again is a no-op, not an error
	require.NoError(t, ledger.Record(ctx, key))

	seen, err = ledger.Seen(ctx, Key(types.PaymentGatewayAbacatePay, "evt_1"))
	require.NoError(t, err)
	assert.False(t, seen, "keys are namespaced by source")
}

func TestMemoryLedgerExpiry(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(20 * time.Millisecond)

	key := Key(types.PaymentGatewayAsaas, "evt_ttl")
	require.NoError(t, ledger.Record(ctx, key))

	time.Sleep(50 * time.Millisecond)

	seen, err := ledger.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen, "expired records no longer short-circuit")
}

func TestRedisLedger(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})

	ctx := context.Background()
	ledger := NewRedisLedger(client, 24*time.Hour)

	key := Key(types.PaymentGatewayAbacatePay, "evt_42")

	seen, err := ledger.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, ledger.Record(ctx, key))

	seen, err = ledger.Seen(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)

	// TTL expiry through the backing store
	srv.FastForward(25 * time.Hour)

	seen, err = ledger.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)
}

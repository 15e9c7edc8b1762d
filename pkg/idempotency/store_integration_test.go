//go:build integration

package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/storefront-reconciler/internal/testenv"
)

func TestStore(t *testing.T) {
	rdb := testenv.Redis(t)
	s := NewStore(rdb, time.Minute)
	ctx := context.Background()
	key := s.Key("payments.notifications", 0, 42)
	assert.Equal(t, "handled:payments.notifications:0:42", key)

	done, err := s.Done(ctx, key)
	require.NoError(t, err)
	assert.False(t, done)

	// checking does not record
	done, err = s.Done(ctx, key)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, s.MarkDone(ctx, key))
	done, err = s.Done(ctx, key)
	require.NoError(t, err)
	assert.True(t, done)

	ttl, err := rdb.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

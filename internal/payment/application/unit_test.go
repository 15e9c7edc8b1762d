package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLocker struct {
	events []string
}

func (l *recordingLocker) Lock(_ context.Context, key string) (func(), error) {
	if key == "broken" {
		return nil, errors.New("lock backend down")
	}
	l.events = append(l.events, "lock "+key)
	return func() { l.events = append(l.events, "unlock "+key) }, nil
}

func TestLockedUnit_ReleasesInReverseOrder(t *testing.T) {
	locks := &recordingLocker{}
	unit := NewLockedUnit(locks, nil, nil)

	err := unit.Do(context.Background(), func(ctx context.Context, s Scope) error {
		require.NoError(t, s.Lock(ctx, "payment:1"))
		require.NoError(t, s.Lock(ctx, "order:1"))
		require.NoError(t, s.Lock(ctx, "payment:1"))
		return errors.New("stop")
	})
	require.EqualError(t, err, "stop")
	assert.Equal(t, []string{"lock payment:1", "lock order:1", "unlock order:1", "unlock payment:1"}, locks.events)
}

func TestLockedUnit_LockFailureKeepsHeldKeys(t *testing.T) {
	locks := &recordingLocker{}
	unit := NewLockedUnit(locks, nil, nil)

	err := unit.Do(context.Background(), func(ctx context.Context, s Scope) error {
		require.NoError(t, s.Lock(ctx, "payment:1"))
		return s.Lock(ctx, "broken")
	})
	require.Error(t, err)
	assert.Equal(t, []string{"lock payment:1", "unlock payment:1"}, locks.events)
}

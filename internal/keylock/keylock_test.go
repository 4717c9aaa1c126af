package keylock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockTimesOutOnHeldKey(t *testing.T) {
	l := New(20 * time.Millisecond)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "SKU-1")
	require.NoError(t, err)
	defer unlock()

	_, err = l.Lock(ctx, "SKU-1")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	l := New(20 * time.Millisecond)
	ctx := context.Background()

	unlock1, err := l.Lock(ctx, "SKU-1")
	require.NoError(t, err)
	defer unlock1()

	unlock2, err := l.Lock(ctx, "SKU-2")
	require.NoError(t, err)
	unlock2()
}

func TestUnlockReleasesAndCleansUp(t *testing.T) {
	l := New(time.Second)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())

	unlock()
	unlock()
	assert.Equal(t, 0, l.Len())

	unlock, err = l.Lock(ctx, "SKU-1")
	require.NoError(t, err)
	unlock()
}

func TestLockSerializesCriticalSection(t *testing.T) {
	l := New(5 * time.Second)
	ctx := context.Background()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "hot")
			if err != nil {
				return
			}
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, l.Len())
}

func TestLockHonoursCancelledContext(t *testing.T) {
	l := New(time.Second)

	unlock, err := l.Lock(context.Background(), "SKU-1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Lock(ctx, "SKU-1")
	assert.ErrorIs(t, err, context.Canceled)
}

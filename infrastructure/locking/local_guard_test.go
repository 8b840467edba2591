package locking

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalGuard_ExclusivePerKey(t *testing.T) {
	g := NewLocalGuard()
	ctx := context.Background()

	release, ok, err := g.TryAcquire(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = g.TryAcquire(ctx, "a")
	assert.False(t, ok, "held key is refused")

	otherRelease, ok, _ := g.TryAcquire(ctx, "b")
	assert.True(t, ok, "keys are independent")
	otherRelease()

	release()
	release() // second call is a no-op
	assert.False(t, g.Held("a"))

	again, ok, _ := g.TryAcquire(ctx, "a")
	assert.True(t, ok)
	again()
}

func TestLocalGuard_OneWinnerUnderContention(t *testing.T) {
	g := NewLocalGuard()
	var winners atomic.Int32
	start := make(chan struct{})
	var wg sync.WaitGroup
	releases := make(chan func(), 32)

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if release, ok, _ := g.TryAcquire(context.Background(), "session"); ok {
				winners.Add(1)
				releases <- release
			}
		}()
	}
	close(start)
	wg.Wait()
	close(releases)

	assert.Equal(t, int32(1), winners.Load())
	for r := range releases {
		r()
	}
}

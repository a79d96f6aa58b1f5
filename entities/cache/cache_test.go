package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoadsOnMiss(t *testing.T) {
	var calls int32
	c := New(10, time.Minute, func(ctx context.Context, key string) (Entry[int], error) {
		atomic.AddInt32(&calls, 1)
		return Entry[int]{Exists: true, Revision: 1, Value: 42}, nil
	})

	entry, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 42, entry.Value)

	entry, err = c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 42, entry.Value)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetCoalescesConcurrentLoads(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	c := New(10, time.Minute, func(ctx context.Context, key string) (Entry[int], error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return Entry[int]{Exists: true, Revision: 1, Value: 7}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := c.Get(context.Background(), "shared")
			require.NoError(t, err)
			assert.Equal(t, 7, entry.Value)
		}()
	}

	close(release)
	wg.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetPropagatesLoaderFailureWithoutCaching(t *testing.T) {
	var calls int32
	c := New(10, time.Minute, func(ctx context.Context, key string) (Entry[int], error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return Entry[int]{}, fmt.Errorf("boom")
		}
		return Entry[int]{Exists: true, Value: 99}, nil
	})

	_, err := c.Get(context.Background(), "k")
	require.Error(t, err)

	entry, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 99, entry.Value)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestInvalidateForcesReload(t *testing.T) {
	var calls int32
	c := New(10, time.Minute, func(ctx context.Context, key string) (Entry[int], error) {
		n := atomic.AddInt32(&calls, 1)
		return Entry[int]{Exists: true, Value: int(n)}, nil
	})

	entry, _ := c.Get(context.Background(), "k")
	assert.Equal(t, 1, entry.Value)

	c.Invalidate("k")

	entry, _ = c.Get(context.Background(), "k")
	assert.Equal(t, 2, entry.Value)
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	loads := map[string]int{}
	c := New(2, time.Minute, func(ctx context.Context, key string) (Entry[int], error) {
		loads[key]++
		return Entry[int]{Exists: true, Value: loads[key]}, nil
	})

	ctx := context.Background()
	c.Get(ctx, "a")
	c.Get(ctx, "b")
	c.Get(ctx, "a") // a is now most-recently-used
	c.Get(ctx, "c") // evicts b

	entry, _ := c.Get(ctx, "a")
	assert.Equal(t, 1, entry.Value) // never evicted

	entry, _ = c.Get(ctx, "b")
	assert.Equal(t, 2, entry.Value) // reloaded, loads["b"] went 1 -> 2
}

func TestExpiryTriggersReload(t *testing.T) {
	var calls int32
	c := New(10, 10*time.Millisecond, func(ctx context.Context, key string) (Entry[int], error) {
		atomic.AddInt32(&calls, 1)
		return Entry[int]{Exists: true, Value: 1}, nil
	})

	c.Get(context.Background(), "k")
	time.Sleep(20 * time.Millisecond)
	c.Get(context.Background(), "k")

	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestShouldReload(t *testing.T) {
	cases := []struct {
		name       string
		entry      Entry[int]
		hasEntry   bool
		required   int64
		invalidate bool
		iteration  int
		want       bool
	}{
		{"second iteration never reloads", Entry[int]{Exists: true, Revision: 5}, true, 5, true, 1, false},
		{"invalidate forces reload", Entry[int]{Exists: true, Revision: 5}, true, 5, true, 0, true},
		{"missing entry forces reload", Entry[int]{}, false, 5, false, 0, true},
		{"nonexistent entry forces reload", Entry[int]{Exists: false}, true, 5, false, 0, true},
		{"stale revision forces reload", Entry[int]{Exists: true, Revision: 3}, true, 5, false, 0, true},
		{"fresh entry skips reload", Entry[int]{Exists: true, Revision: 5}, true, 5, false, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ShouldReload(tc.entry, tc.hasEntry, tc.required, tc.invalidate, tc.iteration)
			assert.Equal(t, tc.want, got)
		})
	}
}

package negcache

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, size int) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.UnixMilli(10 * time.Hour.Milliseconds())}
	c, err := New(size, time.Hour, clock.Now)
	require.NoError(t, err)
	return c, clock
}

func TestObserve_SameBucket(t *testing.T) {
	c, clock := newTestCache(t, 0)

	assert.True(t, c.Observe("/bin/tool.exe"))
	clock.Advance(59 * time.Minute)
	assert.False(t, c.Observe("/bin/tool.exe"))
	assert.Equal(t, 1, c.Len())
}

func TestObserve_NextBucket(t *testing.T) {
	c, clock := newTestCache(t, 0)

	assert.True(t, c.Observe("/bin/tool.exe"))
	clock.Advance(time.Hour)
	assert.True(t, c.Observe("/bin/tool.exe"))
	assert.False(t, c.Observe("/bin/tool.exe"))
}

func TestObserve_BucketsAreAligned(t *testing.T) {
	c, clock := newTestCache(t, 0)

	// Thirty minutes before the boundary and one minute after it fall in
	// different buckets even though they are closer than the window.
	clock.Advance(30 * time.Minute)
	assert.True(t, c.Observe("/bin/tool.exe"))
	clock.Advance(31 * time.Minute)
	assert.True(t, c.Observe("/bin/tool.exe"))
}

func TestObserve_DistinctPaths(t *testing.T) {
	c, _ := newTestCache(t, 0)

	assert.True(t, c.Observe("/bin/a.exe"))
	assert.True(t, c.Observe("/bin/b.exe"))
	assert.False(t, c.Observe("/bin/a.exe"))
}

func TestObserve_Eviction(t *testing.T) {
	c, _ := newTestCache(t, 2)

	assert.True(t, c.Observe("/a"))
	assert.True(t, c.Observe("/b"))
	assert.True(t, c.Observe("/c"))
	assert.Equal(t, 2, c.Len())

	// "/a" was evicted, so it is reported again.
	assert.True(t, c.Observe("/a"))
}

func TestObserve_Concurrent(t *testing.T) {
	c, _ := newTestCache(t, 0)

	var firsts atomic.Int32
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Observe("/bin/shared.exe") {
				firsts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), firsts.Load())
}

func TestKey(t *testing.T) {
	c, _ := newTestCache(t, 0)

	want := digest.FromString("/bin/tool.exe_" + strconv.Itoa(10))
	assert.Equal(t, want, c.Key("/bin/tool.exe"))
	assert.Equal(t, digest.SHA256, c.Key("/bin/tool.exe").Algorithm())
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultWindow, c.Window())

	c, err = New(1, time.Nanosecond, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Millisecond, c.Window())
	assert.True(t, c.Observe("/x"))
}

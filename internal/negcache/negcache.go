// Package negcache remembers which files recently failed to yield a signer
// certificate, so that the failure is reported once per time window instead
// of on every lookup.
//
// Time is divided into fixed buckets of the configured window. An entry is
// keyed by the SHA-256 digest of the path and the bucket number, so a path
// that keeps failing is reported again as soon as the clock moves into the
// next bucket. Entries carry no payload and never change what a lookup
// returns; they only suppress repeated diagnostics.
package negcache

import (
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/opencontainers/go-digest"
)

const (
	// DefaultWindow is the bucket size used when none is configured.
	DefaultWindow = time.Hour
	// DefaultSize is the number of keys kept before the least recently seen
	// is evicted.
	DefaultSize = 4096
)

// Clock returns the current time.
type Clock func() time.Time

// Cache is a bounded set of (path, bucket) keys. It is safe for concurrent
// use.
type Cache struct {
	keys   *lru.Cache[digest.Digest, struct{}]
	window time.Duration
	now    Clock
}

// New returns a cache holding at most size keys with buckets of window.
// Non-positive values select the defaults and a nil clock selects time.Now.
// Windows are counted in whole milliseconds.
func New(size int, window time.Duration, now Clock) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if window < time.Millisecond {
		window = time.Millisecond
	}
	if now == nil {
		now = time.Now
	}
	keys, err := lru.New[digest.Digest, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &Cache{keys: keys, window: window, now: now}, nil
}

// Observe records a failure for path in the current bucket. It reports true
// only for the first observation of path in that bucket. Concurrent callers
// racing on the same key see exactly one true.
func (c *Cache) Observe(path string) bool {
	found, _ := c.keys.ContainsOrAdd(c.Key(path), struct{}{})
	return !found
}

// Key returns the cache key for path at the current time.
func (c *Cache) Key(path string) digest.Digest {
	bucket := c.now().UnixMilli() / c.window.Milliseconds()
	return digest.FromString(path + "_" + strconv.FormatInt(bucket, 10))
}

// Len returns the number of keys held.
func (c *Cache) Len() int {
	return c.keys.Len()
}

// Window returns the bucket size.
func (c *Cache) Window() time.Duration {
	return c.window
}

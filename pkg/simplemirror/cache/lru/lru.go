package lru

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-mirror/pkg/simplemirror"
	"github.com/tendant/simple-mirror/pkg/simplemirror/metrics"
)

const (
	DefaultSize = 10000
	DefaultTTL  = time.Hour
)

// Cache keeps recent positive lookups of another CacheStore in a per-process
// LRU with TTL. Misses and errors always go to the backing store, so a URL
// mirrored by another process is picked up on its next lookup.
type Cache struct {
	next  simplemirror.CacheStore
	cache *expirable.LRU[string, string]

	hits   prometheus.Counter
	misses prometheus.Counter
}

var _ simplemirror.CacheStore = (*Cache)(nil)

// Option configures the LRU front
type Option func(*options)

type options struct {
	size       int
	ttl        time.Duration
	registerer prometheus.Registerer
}

// WithSize sets the maximum number of entries
func WithSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.size = n
		}
	}
}

// WithTTL sets how long an entry stays after being added
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithRegisterer registers the hit and miss counters with reg. Counters
// already registered on reg by an earlier Cache are shared.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// New wraps next with an LRU front
func New(next simplemirror.CacheStore, opts ...Option) (*Cache, error) {
	o := options{size: DefaultSize, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache{
		next:  next,
		cache: expirable.NewLRU[string, string](o.size, nil, o.ttl),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simple_mirror_lru_hits_total",
			Help: "Lookups answered by the in-process LRU.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simple_mirror_lru_misses_total",
			Help: "Lookups forwarded to the backing cache store.",
		}),
	}
	if o.registerer == nil {
		return c, nil
	}

	var err error
	if c.hits, err = metrics.Register(o.registerer, c.hits); err != nil {
		return nil, err
	}
	if c.misses, err = metrics.Register(o.registerer, c.misses); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) Lookup(ctx context.Context, oldURL string) (string, error) {
	if newURL, ok := c.cache.Get(oldURL); ok {
		c.hits.Inc()
		return newURL, nil
	}
	c.misses.Inc()

	newURL, err := c.next.Lookup(ctx, oldURL)
	if err != nil {
		return "", err
	}
	c.cache.Add(oldURL, newURL)
	return newURL, nil
}

// Insert writes through to the backing store and leaves the LRU alone; the
// next lookup reads back whichever mapping won.
func (c *Cache) Insert(ctx context.Context, oldURL, newURL string) error {
	return c.next.Insert(ctx, oldURL, newURL)
}

// Len returns the number of entries currently held in the LRU
func (c *Cache) Len() int {
	return c.cache.Len()
}

// pkg/cache/cache.go
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/instrument"
)

// Producer computes the encoded value for a key on a miss.
type Producer func(ctx context.Context) ([]byte, error)

// Options tune how misses are filled.
type Options struct {
	// ComputeTimeout bounds one producer run. The run is detached from the
	// caller that started it, so it only stops on this timeout.
	ComputeTimeout time.Duration
	// LockWait is how long to wait for another replica's fill before computing anyway.
	LockWait time.Duration
	// PollInterval is the re-read interval while waiting on another replica.
	PollInterval time.Duration
}

// Cache is a TTL cache with one in-flight fill per key.
// Failed fills are never stored, and entries are never invalidated before their TTL.
type Cache struct {
	backend Backend
	group   singleflight.Group
	opts    Options
	logger  log.FieldLogger
}

func New(backend Backend, opts Options, logger log.FieldLogger) *Cache {
	if opts.ComputeTimeout <= 0 {
		opts.ComputeTimeout = 30 * time.Second
	}
	if opts.LockWait <= 0 {
		opts.LockWait = opts.ComputeTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 50 * time.Millisecond
	}
	return &Cache{backend: backend, opts: opts, logger: logger}
}

// Key builds "namespace:scope", or "namespace:scope:<hash>" when a filter is given.
// The hash is the first 16 hex digits of the SHA-256 of the filter's JSON encoding,
// so equal filters always share a key.
func Key(namespace, scope string, filter any) string {
	if filter == nil {
		return namespace + ":" + scope
	}
	b, err := json.Marshal(filter)
	if err != nil {
		b = []byte(fmt.Sprintf("%#v", filter))
	}
	sum := sha256.Sum256(b)
	return namespace + ":" + scope + ":" + hex.EncodeToString(sum[:])[:16]
}

// GetOrCompute returns the cached bytes for key, or runs produce and caches its result for ttl.
// Concurrent callers of one key share a single produce run. A caller whose ctx ends stops
// waiting, but the run continues for the others.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, produce Producer) ([]byte, error) {
	if val, ok := c.lookup(ctx, key); ok {
		instrument.CacheLookups.WithLabelValues(c.backend.Name(), "hit").Inc()
		return val, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.fill(ctx, key, ttl, produce)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			instrument.CacheLookups.WithLabelValues(c.backend.Name(), "error").Inc()
			return nil, res.Err
		}
		result := "miss"
		if res.Shared {
			result = "shared"
		}
		instrument.CacheLookups.WithLabelValues(c.backend.Name(), result).Inc()
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// lookup treats backend errors as misses; the store stays the source of truth.
func (c *Cache) lookup(ctx context.Context, key string) ([]byte, bool) {
	val, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("cache read failed")
		return nil, false
	}
	return val, ok
}

// fill runs outside the request goroutine, where a panic would escape chi's Recoverer,
// so a panicking producer is reported as a failed fill instead.
func (c *Cache) fill(ctx context.Context, key string, ttl time.Duration, produce Producer) (val []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithField("key", key).WithField("panic", r).Error("cache producer panicked")
			val, err = nil, fmt.Errorf("cache fill %s panicked: %v", key, r)
		}
	}()

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ComputeTimeout)
	defer cancel()

	// A fill may have landed between the first lookup and joining the flight.
	if val, ok := c.lookup(fctx, key); ok {
		return val, nil
	}

	if locker, ok := c.backend.(Locker); ok {
		val, found, unlock := c.awaitLock(fctx, locker, key)
		if found {
			return val, nil
		}
		if unlock != nil {
			defer unlock()
		}
	}

	val, err = produce(fctx)
	if err != nil {
		return nil, err
	}
	if err := c.backend.Set(fctx, key, val, ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("cache write failed")
	}
	return val, nil
}

// awaitLock takes the fill lock, or waits for the holder's value until LockWait runs out.
// found reports a value written by another replica.
func (c *Cache) awaitLock(ctx context.Context, locker Locker, key string) (val []byte, found bool, unlock func()) {
	deadline := time.Now().Add(c.opts.LockWait)
	for {
		unlock, acquired, err := locker.TryLock(ctx, key, c.opts.ComputeTimeout)
		if err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("cache lock failed, computing unlocked")
			return nil, false, nil
		}
		if acquired {
			return nil, false, unlock
		}
		if time.Now().After(deadline) {
			c.logger.WithField("key", key).Warn("gave up waiting for cache fill lock")
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, nil
		case <-time.After(c.opts.PollInterval):
		}
		if val, ok := c.lookup(ctx, key); ok {
			return val, true, nil
		}
	}
}

// Fetch is GetOrCompute for JSON-encodable values.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, produce func(context.Context) (T, error)) (T, error) {
	var out T
	raw, err := c.GetOrCompute(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := produce(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return out, nil
}

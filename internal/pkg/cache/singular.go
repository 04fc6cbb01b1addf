package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("cache: key not found")

// Singular memoizes one value under a fixed key. It fits results whose
// inputs never vary at runtime, such as a remote dataset fetched with a
// fixed set of query parameters.
type Singular[T any] struct {
	// m is a mutex for MutexGetSet for concurrent prevention
	m sync.Mutex

	key string

	c *gocache.Cache
}

func NewSingular[T any](key string) *Singular[T] {
	return &Singular[T]{
		key: key,
		c:   gocache.New(gocache.NoExpiration, time.Minute*10),
	}
}

func (c *Singular[T]) Get() (T, error) {
	var zero T
	v, ok := c.c.Get(c.key)
	if !ok {
		return zero, ErrNotFound
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.Errorf("cache: unexpected value of type %T under key %s", v, c.key)
	}
	return t, nil
}

func (c *Singular[T]) Set(value T, expire time.Duration) {
	c.c.Set(c.key, value, expire)
}

// MutexGetSet returns the cached value, or if the key does not exist, executes
// valueFunc to compute it, stores it and returns it. Concurrent callers on a
// cold cache are serially dispatched so valueFunc runs at most once.
func (c *Singular[T]) MutexGetSet(valueFunc func() (T, error), expire time.Duration) (T, error) {
	if v, err := c.Get(); err == nil {
		return v, nil
	}
	// onwards, cache key does not exist

	return c.slowMutexGetSet(valueFunc, expire)
}

func (c *Singular[T]) slowMutexGetSet(valueFunc func() (T, error), expire time.Duration) (T, error) {
	c.m.Lock()
	defer c.m.Unlock()

	if v, err := c.Get(); err == nil {
		return v, nil
	}

	value, err := valueFunc()
	if err != nil {
		log.Error().Err(err).Str("key", c.key).Msg("failed to get value from valueFunc() in MutexGetSet")
		var zero T
		return zero, err
	}

	c.Set(value, expire)
	return value, nil
}

func (c *Singular[T]) Delete() {
	c.c.Flush()
}

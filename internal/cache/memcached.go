package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// Memcached implements Cache over one or more memcached servers.
type Memcached struct {
	client *memcache.Client
}

func NewMemcached(addrs ...string) *Memcached {
	return &Memcached{client: memcache.New(addrs...)}
}

func (m *Memcached) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return item.Value, nil
}

func (m *Memcached) Set(key string, value []byte, ttl time.Duration) error {
	item := &memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(ttl.Seconds()),
	}
	if err := m.client.Set(item); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (m *Memcached) Delete(key string) error {
	if err := m.client.Delete(key); err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

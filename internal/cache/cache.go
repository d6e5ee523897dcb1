// Package cache provides the best-effort key-value cache used for the
// poll-advisory header and for collection metadata lookups. It is never
// authoritative: every caller must tolerate ErrUnavailable.
package cache

import (
	"errors"
	"time"
)

var (
	// ErrMiss reports an absent key.
	ErrMiss = errors.New("cache: key not found")

	// ErrUnavailable reports an unreachable cache backend. Callers treat it
	// as "no cached value", never as a request failure.
	ErrUnavailable = errors.New("cache: backend unavailable")
)

type Cache interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}

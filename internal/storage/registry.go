package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/dimitrije/appsync-api/internal/cache"
	"github.com/dimitrije/appsync-api/internal/config"
)

// Factory builds a backend from configuration. The cache handle may be nil;
// backends that support a metadata cache treat it as optional.
type Factory func(ctx context.Context, cfg *config.Config, c cache.Cache) (Storage, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Factory)
)

// Register makes a backend constructor available under a configuration name.
// Backends register themselves from init.
func Register(name string, factory Factory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, dup := backends[name]; dup {
		panic("storage: backend registered twice: " + name)
	}
	backends[name] = factory
}

// Open constructs the backend selected by name.
func Open(ctx context.Context, name string, cfg *config.Config, c cache.Cache) (Storage, error) {
	backendsMu.RLock()
	factory, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown storage backend %q", name)
	}
	return factory(ctx, cfg, c)
}

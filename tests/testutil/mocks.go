package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/dimitrije/appsync-api/internal/cache"
	"github.com/dimitrije/appsync-api/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockStorage mocks the storage contract
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) ReadSince(ctx context.Context, user, collection string, since int64) (*models.CollectionPage, error) {
	args := m.Called(ctx, user, collection, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CollectionPage), args.Error(1)
}

func (m *MockStorage) Write(ctx context.Context, user, collection string, apps []models.AppRecord, lastGet *int64) (*models.WriteResult, error) {
	args := m.Called(ctx, user, collection, apps, lastGet)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WriteResult), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, user, collection string, req models.DeleteRequest) error {
	args := m.Called(ctx, user, collection, req)
	return args.Error(0)
}

func (m *MockStorage) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockVerifier mocks the identity-assertion verifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, assertion, audience string) (*models.Identity, error) {
	args := m.Called(ctx, assertion, audience)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

// MockSessionService mocks the SessionService
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) IssueToken(email string) (string, int64, error) {
	args := m.Called(email)
	return args.String(0), args.Get(1).(int64), args.Error(2)
}

// MockCache mocks the cache with testify expectations
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(key string) ([]byte, error) {
	args := m.Called(key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCache) Set(key string, value []byte, ttl time.Duration) error {
	args := m.Called(key, value, ttl)
	return args.Error(0)
}

func (m *MockCache) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

// FakeCache is an in-memory stand-in for memcached
type FakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewFakeCache() *FakeCache {
	return &FakeCache{data: make(map[string][]byte)}
}

func (f *FakeCache) Get(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return value, nil
}

func (f *FakeCache) Set(key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *FakeCache) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

// DownCache fails every call, simulating an unreachable cache backend
type DownCache struct{}

func (DownCache) Get(string) ([]byte, error)                { return nil, cache.ErrUnavailable }
func (DownCache) Set(string, []byte, time.Duration) error   { return cache.ErrUnavailable }
func (DownCache) Delete(string) error                       { return cache.ErrUnavailable }

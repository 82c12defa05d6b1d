package cart

import (
	"context"
	"sync"

	pkgredis "github.com/vitrineapp/cart-service/pkg/redis"
)

// StateStore is the local durable storage a manager persists to on every
// state transition. Implementations are already scoped to one user; keys are
// short suffixes like "state" or "modified:<storeID>".
type StateStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// RedisStateStore persists manager state under the user's namespaced keys.
type RedisStateStore struct {
	client *pkgredis.Client
	userID string
}

// NewRedisStateStore scopes a state store to one user.
func NewRedisStateStore(client *pkgredis.Client, userID string) *RedisStateStore {
	return &RedisStateStore{client: client, userID: userID}
}

func (s *RedisStateStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.client.GetOptional(ctx, s.client.CartKey(s.userID, key))
}

func (s *RedisStateStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.client.CartKey(s.userID, key), value, 0)
}

func (s *RedisStateStore) Remove(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.client.CartKey(s.userID, key))
}

// MemoryStateStore is an in-process StateStore used by tests and local
// tooling.
type MemoryStateStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{values: map[string]string{}}
}

func (s *MemoryStateStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *MemoryStateStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStateStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

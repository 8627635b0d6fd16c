package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryStore implementa Store sobre go-cache.
// Útil para desarrollo y testing; no sirve para múltiples instancias.
type memoryStore struct {
	prefix string
	data   *gocache.Cache
	// go-cache no ofrece get+delete atómico; este mutex serializa
	// ConsumeOnce para conservar la semántica de un solo consumidor.
	mu sync.Mutex
}

// NewMemory crea un store en memoria.
func NewMemory(prefix string) *memoryStore {
	return &memoryStore{
		prefix: prefix,
		data:   gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (s *memoryStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *memoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.data.Set(s.key(key), value, ttl)
	return nil
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, error) {
	v, ok := s.data.Get(s.key(key))
	if !ok {
		return "", ErrNotFound
	}
	return v.(string), nil
}

func (s *memoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := s.data.Get(s.key(key))
	return ok, nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.data.Delete(s.key(key))
	return nil
}

func (s *memoryStore) ConsumeOnce(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(key)
	v, ok := s.data.Get(k)
	if !ok {
		return "", ErrNotFound
	}
	s.data.Delete(k)
	return v.(string), nil
}

func (s *memoryStore) Ping(ctx context.Context) error { return nil }

func (s *memoryStore) Close() error { return nil }

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore implementa Store usando Redis.
type redisStore struct {
	client    *redis.Client
	prefix    string
	opTimeout time.Duration
}

// NewRedis crea un store Redis.
func NewRedis(cfg Config) (*redisStore, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verificar conexión
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, wrapRedisErr(err)
	}

	opt := cfg.OpTimeout
	if opt <= 0 {
		opt = 2 * time.Second
	}

	return &redisStore{client: rdb, prefix: cfg.Prefix, opTimeout: opt}, nil
}

// Client expone el cliente redis subyacente para features que necesitan
// primitivas que el Store no abstrae (INCR del rate limiter).
func (s *redisStore) Client() *redis.Client { return s.client }

func (s *redisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *redisStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// wrapRedisErr traduce fallas de red/timeout a ErrUnavailable.
// El caller nunca ve errores internos de go-redis.
func wrapRedisErr(err error) error {
	if err == nil {
		return nil
	}
	if err == redis.Nil {
		return ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrUnavailable
	}
	return ErrUnavailable
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return wrapRedisErr(err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		return "", wrapRedisErr(err)
	}
	return val, nil
}

func (s *redisStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, wrapRedisErr(err)
	}
	return n > 0, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return wrapRedisErr(err)
	}
	return nil
}

// ConsumeOnce usa GETDEL: leer y borrar en una sola operación atómica
// del lado del server. Dos consumidores concurrentes nunca obtienen ambos
// el valor.
func (s *redisStore) ConsumeOnce(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	val, err := s.client.GetDel(ctx, s.key(key)).Result()
	if err != nil {
		return "", wrapRedisErr(err)
	}
	return val, nil
}

func (s *redisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return wrapRedisErr(err)
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

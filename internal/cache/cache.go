// Package cache provee el store efímero del core: blacklist de revocación,
// tokens de un solo uso (desafíos MFA, reset de password) y cache corto del
// verificador. Un solo store lógico con dos backends:
//
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (para producción; la consistencia inmediata de la revocación
//     depende de que todas las instancias consulten el mismo Redis)
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store define las operaciones del store efímero.
// Todas las operaciones son atómicas por clave.
type Store interface {
	// Set guarda un valor con TTL. ttl <= 0 no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) (string, error)

	// Exists verifica si una key existe.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete elimina una key. No falla si no existe.
	Delete(ctx context.Context, key string) error

	// ConsumeOnce elimina la key y retorna su valor de forma atómica.
	// Retorna ErrNotFound si no existe: exactamente un caller gana cuando
	// dos requests compiten por consumir el mismo token de un solo uso.
	ConsumeOnce(ctx context.Context, key string) (string, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Config configuración para crear un store.
type Config struct {
	Kind     string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string // Prefijo para todas las keys
	// OpTimeout acota cada operación contra el backend. Un deadline vencido
	// se traduce a ErrUnavailable (falla transitoria, reintentable).
	OpTimeout time.Duration
}

// Errores del store.
var (
	ErrNotFound    = errNotFound{}
	ErrUnavailable = errUnavailable{}
)

type errNotFound struct{}

func (e errNotFound) Error() string { return "cache: key not found" }

type errUnavailable struct{}

func (e errUnavailable) Error() string { return "cache: store unavailable" }

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// IsUnavailable verifica si el error es una falla transitoria del backend.
func IsUnavailable(err error) bool {
	_, ok := err.(errUnavailable)
	return ok
}

// RedisClient retorna el cliente redis subyacente si el store es el backend
// Redis. false para el backend en memoria.
func RedisClient(s Store) (*redis.Client, bool) {
	type clienter interface{ Client() *redis.Client }
	if c, ok := s.(clienter); ok {
		return c.Client(), true
	}
	return nil, false
}

// New crea un store según la configuración.
func New(cfg Config) (Store, error) {
	switch cfg.Kind {
	case "redis":
		return NewRedis(cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix), nil
	default:
		return NewMemory(cfg.Prefix), nil
	}
}

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/cache"
	"github.com/dropDatabas3/gatekeeper/internal/metrics"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/token"
)

// RevokeDeps contiene las dependencias del revoke service.
type RevokeDeps struct {
	Cache cache.Store
	Codec *token.Codec
}

type revokeService struct {
	deps RevokeDeps
}

// NewRevokeService crea el servicio de revocación.
func NewRevokeService(deps RevokeDeps) RevokeService {
	return &revokeService{deps: deps}
}

// Revoke agrega el jti del token a la blacklist con TTL igual al tiempo de
// vida restante del token: la entrada muere sola cuando el token ya no puede
// presentarse. Idempotente; un token ya expirado es un no-op exitoso.
func (s *revokeService) Revoke(ctx context.Context, rawToken string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.revoke"),
		logger.Op("Revoke"),
	)

	if strings.TrimSpace(rawToken) == "" {
		return ErrMissingFields
	}

	// Access y refresh son ambos revocables: no exigimos kind.
	cl, err := s.deps.Codec.DecodeAny(rawToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			// Ya no puede presentarse: nada que revocar.
			log.Debug("token already expired, nothing to revoke")
			return nil
		}
		log.Debug("revoke decode failed", logger.Err(err))
		return err
	}

	ttl := time.Until(cl.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := s.deps.Cache.Set(ctx, keyBlacklist+cl.JTI, "1", ttl); err != nil {
		log.Error("blacklist insert failed", logger.JTI(cl.JTI), logger.Err(err))
		return ErrStoreUnavailable
	}

	log.Info("token revoked",
		logger.UserID(cl.Subject),
		logger.JTI(cl.JTI),
		logger.TokenKind(string(cl.Kind)),
	)
	metrics.RecordRevoked()
	return nil
}

// SignOut revoca el access token y, si viene, también el refresh.
// El access es obligatorio; el refresh es best-effort pero sus errores de
// store sí se propagan (el cliente debe poder reintentar).
func (s *revokeService) SignOut(ctx context.Context, accessToken, refreshToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return ErrMissingFields
	}

	if err := s.Revoke(ctx, accessToken); err != nil {
		return err
	}

	if strings.TrimSpace(refreshToken) != "" {
		if err := s.Revoke(ctx, refreshToken); err != nil {
			return err
		}
	}
	return nil
}

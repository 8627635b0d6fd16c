package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/gatekeeper/internal/cache"
	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	dto "github.com/dropDatabas3/gatekeeper/internal/http/dto/auth"
	"github.com/dropDatabas3/gatekeeper/internal/metrics"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/token"
)

// VerifyDeps contiene las dependencias del verify service.
type VerifyDeps struct {
	Users       repository.UserRepository
	Memberships repository.MembershipRepository
	Cache       cache.Store
	Codec       *token.Codec

	// CacheTTL acota cuánto vive el snapshot user+membership en el store
	// efímero. 0 deshabilita el cache. Revocación y watermark NUNCA se
	// cachean: se consultan en cada llamada.
	CacheTTL time.Duration

	// StrictService convierte la falta de membresía (o servicio inexistente)
	// en error en vez de un snapshot con service_valid=false.
	StrictService bool
}

type verifyService struct {
	deps  VerifyDeps
	group singleflight.Group
}

// NewVerifyService crea el servicio de verificación de access tokens.
func NewVerifyService(deps VerifyDeps) VerifyService {
	return &verifyService{deps: deps}
}

func (s *verifyService) VerifyToken(ctx context.Context, rawToken, serviceID string) (*dto.VerifyTokenData, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.verify"),
		logger.Op("VerifyToken"),
	)

	if rawToken == "" || serviceID == "" {
		return nil, ErrMissingFields
	}

	// Paso 1: Firma, expiración y kind. Local, sin tocar ningún store.
	cl, err := s.deps.Codec.Decode(rawToken, token.KindAccess)
	if err != nil {
		log.Debug("token decode failed", logger.Err(err))
		metrics.RecordVerify("rejected")
		return nil, err
	}

	log = log.With(logger.UserID(cl.Subject), logger.JTI(cl.JTI), logger.ServiceID(serviceID))

	// Paso 2: Revocación. Siempre contra el store, nunca cacheada.
	if err := checkRevoked(ctx, s.deps.Cache, cl); err != nil {
		log.Debug("token rejected", logger.Err(err))
		if err == ErrStoreUnavailable {
			metrics.RecordVerify("error")
		} else {
			metrics.RecordVerify("rejected")
		}
		return nil, err
	}

	// Paso 3: Snapshot user+membership (cacheable, colapsado con singleflight)
	data, err := s.snapshot(ctx, cl.Subject, serviceID)
	if err != nil {
		log.Debug("snapshot failed", logger.Err(err))
		if err == ErrStoreUnavailable {
			metrics.RecordVerify("error")
		} else {
			metrics.RecordVerify("rejected")
		}
		return nil, err
	}

	// Paso 4: Policy sobre el snapshot. El estado de la cuenta y el modo
	// estricto se evalúan siempre, venga el snapshot del cache o de la DB.
	if !data.IsActive {
		log.Info("user inactive")
		metrics.RecordVerify("rejected")
		return nil, ErrInactiveUser
	}
	if s.deps.StrictService && !data.ServiceValid {
		log.Debug("strict service policy rejected", logger.String("service_status", data.ServiceStatus))
		metrics.RecordVerify("rejected")
		if data.ServiceStatus == serviceStatusNotFound {
			return nil, ErrServiceNotFound
		}
		return nil, ErrNoMembership
	}

	metrics.RecordVerify("ok")
	return data, nil
}

const (
	serviceStatusActive    = "active"
	serviceStatusInactive  = "inactive"
	serviceStatusNotMember = "not_member"
	serviceStatusNotFound  = "not_found"
)

// snapshot resuelve el estado user+membership, con cache corto en el store
// efímero y singleflight para colapsar misses concurrentes de la misma key.
func (s *verifyService) snapshot(ctx context.Context, userUUID, serviceID string) (*dto.VerifyTokenData, error) {
	key := keyVerifyCache + userUUID + ":" + serviceID

	if s.deps.CacheTTL > 0 {
		if raw, err := s.deps.Cache.Get(ctx, key); err == nil {
			var data dto.VerifyTokenData
			if jerr := json.Unmarshal([]byte(raw), &data); jerr == nil {
				return &data, nil
			}
			// snapshot corrupto: lo descartamos y recargamos
			_ = s.deps.Cache.Delete(ctx, key)
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		data, err := s.load(ctx, userUUID, serviceID)
		if err != nil {
			return nil, err
		}
		if s.deps.CacheTTL > 0 {
			if raw, jerr := json.Marshal(data); jerr == nil {
				// best-effort: un fallo del cache no invalida la respuesta
				_ = s.deps.Cache.Set(ctx, key, string(raw), s.deps.CacheTTL)
			}
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*dto.VerifyTokenData), nil
}

// load arma el snapshot desde el Credential Store.
func (s *verifyService) load(ctx context.Context, userUUID, serviceID string) (*dto.VerifyTokenData, error) {
	user, err := s.deps.Users.GetByUUID(ctx, userUUID)
	if err != nil {
		if repository.IsUnavailable(err) {
			return nil, ErrStoreUnavailable
		}
		return nil, ErrUserNotFound
	}

	data := &dto.VerifyTokenData{
		UUID:       user.UUID,
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role,
		IsActive:   user.IsActive,
		MFAEnabled: user.MFAEnabled,
		ServiceID:  serviceID,
	}

	m, err := s.deps.Memberships.GetForUserService(ctx, userUUID, serviceID)
	switch {
	case err == nil:
		data.ServiceName = m.ServiceName
		data.ServiceRole = m.Role
		switch {
		case !m.ServiceActive:
			data.ServiceStatus = serviceStatusInactive
		case !m.MemberActive:
			data.ServiceStatus = serviceStatusInactive
		default:
			data.ServiceStatus = serviceStatusActive
			data.ServiceValid = true
		}
	case repository.IsUnavailable(err):
		return nil, ErrStoreUnavailable
	case errors.Is(err, repository.ErrServiceNotFound):
		data.ServiceStatus = serviceStatusNotFound
	default:
		// servicio existe, usuario sin membresía: soft-fail
		data.ServiceStatus = serviceStatusNotMember
	}

	return data, nil
}

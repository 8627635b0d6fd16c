package auth

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/cache"
	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	dto "github.com/dropDatabas3/gatekeeper/internal/http/dto/auth"
	"github.com/dropDatabas3/gatekeeper/internal/metrics"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/security/password"
	tokens "github.com/dropDatabas3/gatekeeper/internal/security/token"
	"github.com/dropDatabas3/gatekeeper/internal/security/totp"
	"github.com/dropDatabas3/gatekeeper/internal/token"
)

// SessionDeps contiene las dependencias del session service.
type SessionDeps struct {
	Users        repository.UserRepository
	Cache        cache.Store
	Codec        *token.Codec
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	ChallengeTTL time.Duration
	OTPWindow    int // pasos de tolerancia TOTP hacia cada lado
}

type sessionService struct {
	deps SessionDeps
}

// NewSessionService crea el servicio de emisión de sesiones.
func NewSessionService(deps SessionDeps) SessionService {
	if deps.ChallengeTTL <= 0 {
		deps.ChallengeTTL = 5 * time.Minute
	}
	if deps.OTPWindow <= 0 {
		deps.OTPWindow = 1
	}
	return &sessionService{deps: deps}
}

func (s *sessionService) SignIn(ctx context.Context, in dto.SignInRequest) (*SessionResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.session"),
		logger.Op("SignIn"),
	)

	// Paso 0: Normalización
	in.Identifier = strings.TrimSpace(in.Identifier)

	if in.Identifier == "" || in.Password == "" {
		return nil, ErrMissingFields
	}

	// Paso 1: Buscar usuario. Usuario inexistente y password incorrecto
	// responden exactamente igual: InvalidCredentials genérico.
	user, err := s.deps.Users.GetByIdentifier(ctx, in.Identifier)
	if err != nil {
		if repository.IsUnavailable(err) {
			log.Error("user lookup failed", logger.Err(err))
			metrics.RecordLogin("error")
			return nil, ErrStoreUnavailable
		}
		log.Debug("user not found")
		metrics.RecordLogin("invalid")
		return nil, ErrInvalidCredentials
	}

	log = log.With(logger.UserID(user.UUID))

	// Paso 2: Verificar password
	if !password.Verify(in.Password, user.PasswordHash) {
		log.Debug("password check failed")
		metrics.RecordLogin("invalid")
		return nil, ErrInvalidCredentials
	}

	// Paso 3: Estado de la cuenta. Recién después del check de password:
	// un atacante sin credenciales no distingue "inactivo" de "inexistente".
	if !user.IsActive {
		log.Info("user inactive")
		metrics.RecordLogin("inactive")
		return nil, ErrInactiveUser
	}

	// Paso 4: MFA gate
	if user.MFAEnabled && user.MFASecret != nil && *user.MFASecret != "" {
		mfaToken, err := tokens.GenerateOpaqueToken(32)
		if err != nil {
			log.Error("failed to generate mfa token", logger.Err(err))
			return nil, ErrTokenIssueFailed
		}

		cacheKey := keyMFA + tokens.SHA256Base64URL(mfaToken)
		if err := s.deps.Cache.Set(ctx, cacheKey, user.UUID, s.deps.ChallengeTTL); err != nil {
			log.Error("failed to cache mfa challenge", logger.Err(err))
			return nil, ErrStoreUnavailable
		}

		log.Info("mfa challenge issued")
		metrics.RecordMFA("issued")
		metrics.RecordLogin("mfa_required")
		return &SessionResult{MFARequired: true, MFAToken: mfaToken}, nil
	}

	// Paso 5: Emitir par de tokens
	result, err := s.issuePair(user.UUID)
	if err != nil {
		log.Error("failed to issue tokens", logger.Err(err))
		return nil, err
	}

	log.Info("sign-in successful")
	metrics.RecordLogin("ok")
	return result, nil
}

func (s *sessionService) VerifyMFA(ctx context.Context, in dto.VerifyMFARequest) (*SessionResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.session"),
		logger.Op("VerifyMFA"),
	)

	if in.MFAToken == "" || in.OTP == "" {
		return nil, ErrMissingFields
	}

	cacheKey := keyMFA + tokens.SHA256Base64URL(in.MFAToken)

	// Paso 1: Resolver el desafío sin consumirlo todavía. Un OTP incorrecto
	// no quema el desafío: el usuario puede reintentar dentro del TTL.
	userUUID, err := s.deps.Cache.Get(ctx, cacheKey)
	if err != nil {
		if cache.IsNotFound(err) {
			log.Debug("mfa challenge not found")
			metrics.RecordMFA("invalid_challenge")
			return nil, ErrInvalidChallenge
		}
		log.Error("mfa challenge lookup failed", logger.Err(err))
		return nil, ErrStoreUnavailable
	}

	log = log.With(logger.UserID(userUUID))

	user, err := s.deps.Users.GetByUUID(ctx, userUUID)
	if err != nil {
		if repository.IsUnavailable(err) {
			return nil, ErrStoreUnavailable
		}
		log.Debug("challenge user not found")
		return nil, ErrInvalidChallenge
	}
	if !user.IsActive {
		log.Info("user inactive")
		return nil, ErrInactiveUser
	}
	if user.MFASecret == nil || *user.MFASecret == "" {
		log.Debug("user has no mfa secret")
		return nil, ErrInvalidChallenge
	}

	// Paso 2: Verificar OTP
	secret, err := totp.DecodeSecret(*user.MFASecret)
	if err != nil {
		log.Error("stored mfa secret is not valid base32", logger.Err(err))
		return nil, ErrInvalidChallenge
	}
	if !totp.Verify(secret, in.OTP, time.Now(), s.deps.OTPWindow) {
		log.Debug("otp check failed")
		metrics.RecordMFA("invalid_otp")
		return nil, ErrInvalidOTP
	}

	// Paso 3: Consumir el desafío. ConsumeOnce es atómico: si dos requests
	// compiten con el mismo token, exactamente uno llega acá con éxito.
	if _, err := s.deps.Cache.ConsumeOnce(ctx, cacheKey); err != nil {
		if cache.IsNotFound(err) {
			log.Debug("mfa challenge already consumed")
			metrics.RecordMFA("invalid_challenge")
			return nil, ErrInvalidChallenge
		}
		return nil, ErrStoreUnavailable
	}

	// Paso 4: Emitir par de tokens
	result, err := s.issuePair(user.UUID)
	if err != nil {
		log.Error("failed to issue tokens", logger.Err(err))
		return nil, err
	}

	log.Info("mfa verification successful")
	metrics.RecordMFA("ok")
	metrics.RecordLogin("ok")
	return result, nil
}

func (s *sessionService) Refresh(ctx context.Context, refreshToken string) (*SessionResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.session"),
		logger.Op("Refresh"),
	)

	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrMissingFields
	}

	// Paso 1: Decodificar. Los errores del códec suben sin mapear
	// (Malformed, BadSignature, Expired, KindMismatch).
	cl, err := s.deps.Codec.Decode(refreshToken, token.KindRefresh)
	if err != nil {
		log.Debug("refresh decode failed", logger.Err(err))
		return nil, err
	}

	log = log.With(logger.UserID(cl.Subject), logger.JTI(cl.JTI))

	// Paso 2: Blacklist + watermark de cambio de contraseña
	if err := checkRevoked(ctx, s.deps.Cache, cl); err != nil {
		log.Debug("refresh rejected", logger.Err(err))
		return nil, err
	}

	// Paso 3: El usuario tiene que seguir existiendo y activo
	user, err := s.deps.Users.GetByUUID(ctx, cl.Subject)
	if err != nil {
		if repository.IsUnavailable(err) {
			return nil, ErrStoreUnavailable
		}
		log.Debug("refresh subject not found")
		return nil, ErrUserNotFound
	}
	if !user.IsActive {
		log.Info("user inactive")
		return nil, ErrInactiveUser
	}

	// Paso 4: Emitir un access token nuevo. El refresh no rota: sigue siendo
	// válido hasta su expiración o revocación.
	access, accessClaims, err := s.deps.Codec.Issue(user.UUID, token.KindAccess, s.deps.AccessTTL)
	if err != nil {
		log.Error("failed to issue access token", logger.Err(err))
		return nil, ErrTokenIssueFailed
	}

	log.Info("refresh successful")
	return &SessionResult{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(time.Until(accessClaims.ExpiresAt).Seconds()),
	}, nil
}

// issuePair emite access + refresh con jtis frescos.
func (s *sessionService) issuePair(userUUID string) (*SessionResult, error) {
	access, accessClaims, err := s.deps.Codec.Issue(userUUID, token.KindAccess, s.deps.AccessTTL)
	if err != nil {
		return nil, ErrTokenIssueFailed
	}
	refresh, _, err := s.deps.Codec.Issue(userUUID, token.KindRefresh, s.deps.RefreshTTL)
	if err != nil {
		return nil, ErrTokenIssueFailed
	}
	return &SessionResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(accessClaims.ExpiresAt).Seconds()),
	}, nil
}

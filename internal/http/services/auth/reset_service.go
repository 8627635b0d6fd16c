package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/cache"
	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/email"
	dto "github.com/dropDatabas3/gatekeeper/internal/http/dto/auth"
	"github.com/dropDatabas3/gatekeeper/internal/metrics"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/security/password"
	tokens "github.com/dropDatabas3/gatekeeper/internal/security/token"
)

// ResetDeps contiene las dependencias del reset service.
type ResetDeps struct {
	Users     repository.UserRepository
	Cache     cache.Store
	Sender    email.Sender
	Templates *email.Templates

	BaseURL    string // base para armar el link del correo
	ResetTTL   time.Duration
	RefreshTTL time.Duration // TTL del watermark pwdchanged
	Policy     password.Policy
	Hasher     password.Params
}

type resetService struct {
	deps ResetDeps
}

// NewResetService crea el servicio de reset de contraseña.
func NewResetService(deps ResetDeps) ResetService {
	if deps.ResetTTL <= 0 {
		deps.ResetTTL = 30 * time.Minute
	}
	if deps.Hasher == (password.Params{}) {
		deps.Hasher = password.Default
	}
	return &resetService{deps: deps}
}

// RequestReset emite un token de reset de un solo uso y lo envía por correo.
// Siempre responde igual exista o no el email: el endpoint no es un oráculo
// de cuentas registradas. Emitir un token nuevo invalida el anterior: sólo
// el último token pedido es canjeable.
func (s *resetService) RequestReset(ctx context.Context, addr string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.reset"),
		logger.Op("RequestReset"),
	)

	addr = strings.TrimSpace(strings.ToLower(addr))
	if addr == "" {
		return ErrMissingFields
	}

	user, err := s.deps.Users.GetByEmail(ctx, addr)
	if err != nil {
		if repository.IsUnavailable(err) {
			log.Error("user lookup failed", logger.Err(err))
			return ErrStoreUnavailable
		}
		// Silencioso: misma respuesta que el caso exitoso.
		log.Debug("reset requested for unknown email")
		metrics.RecordPasswordReset("request", "unknown_email")
		return nil
	}

	log = log.With(logger.UserID(user.UUID))

	// Cuenta desactivada: misma respuesta silenciosa que un email desconocido,
	// sin emitir token ni mandar correo.
	if !user.IsActive {
		log.Debug("reset requested for inactive user")
		metrics.RecordPasswordReset("request", "inactive")
		return nil
	}

	raw, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		log.Error("failed to generate reset token", logger.Err(err))
		return ErrTokenIssueFailed
	}
	hash := tokens.SHA256Base64URL(raw)

	// Invalidar el token anterior si hay uno vigente
	if prev, gerr := s.deps.Cache.Get(ctx, keyResetUser+user.UUID); gerr == nil && prev != "" {
		_ = s.deps.Cache.Delete(ctx, keyReset+prev)
	}

	if err := s.deps.Cache.Set(ctx, keyReset+hash, user.UUID, s.deps.ResetTTL); err != nil {
		log.Error("failed to store reset token", logger.Err(err))
		return ErrStoreUnavailable
	}
	if err := s.deps.Cache.Set(ctx, keyResetUser+user.UUID, hash, s.deps.ResetTTL); err != nil {
		log.Error("failed to store reset token index", logger.Err(err))
		return ErrStoreUnavailable
	}

	// Enviar correo. Best-effort: un SMTP caído no debe delatar que el email
	// existe; el error queda en el log.
	link := strings.TrimRight(s.deps.BaseURL, "/") + "/api/v1/auth/reset-password?token=" + raw
	if s.deps.Sender != nil && s.deps.Templates != nil {
		vars := email.ResetVars{
			Username: user.Username,
			Link:     link,
			TTL:      fmt.Sprintf("%d minutos", int(s.deps.ResetTTL.Minutes())),
		}
		htmlBody, textBody, rerr := s.deps.Templates.RenderReset(vars)
		if rerr != nil {
			log.Error("failed to render reset email", logger.Err(rerr))
		} else if serr := s.deps.Sender.Send(user.Email, "Restablecer contraseña", htmlBody, textBody); serr != nil {
			log.Error("failed to send reset email", logger.Err(serr))
		}
	}

	log.Info("reset token issued")
	metrics.RecordPasswordReset("request", "ok")
	return nil
}

// ResetPassword canjea el token de reset por un cambio de contraseña.
// El token es de un solo uso; consumirlo es atómico.
func (s *resetService) ResetPassword(ctx context.Context, in dto.ResetPasswordRequest) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.reset"),
		logger.Op("ResetPassword"),
	)

	if in.Token == "" || in.NewPassword == "" || in.ConfirmPassword == "" {
		return ErrMissingFields
	}
	if in.NewPassword != in.ConfirmPassword {
		metrics.RecordPasswordReset("confirm", "mismatch")
		return ErrPasswordMismatch
	}

	hash := tokens.SHA256Base64URL(in.Token)

	// Paso 1: Resolver el token sin consumirlo: una contraseña rechazada por
	// policy no debe quemar el token.
	userUUID, err := s.deps.Cache.Get(ctx, keyReset+hash)
	if err != nil {
		if cache.IsNotFound(err) {
			log.Debug("reset token not found")
			metrics.RecordPasswordReset("confirm", "invalid_token")
			return ErrInvalidResetToken
		}
		return ErrStoreUnavailable
	}

	log = log.With(logger.UserID(userUUID))

	user, err := s.deps.Users.GetByUUID(ctx, userUUID)
	if err != nil {
		if repository.IsUnavailable(err) {
			return ErrStoreUnavailable
		}
		log.Debug("reset token subject not found")
		return ErrInvalidResetToken
	}

	// Paso 2: Policy de contraseñas
	if ok, reasons := s.deps.Policy.Validate(user.Username, in.NewPassword); !ok {
		log.Debug("password rejected by policy", logger.Any("reasons", reasons))
		metrics.RecordPasswordReset("confirm", "weak_password")
		return fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(reasons, ", "))
	}

	// Paso 3: Consumir el token. Atómico: ante dos canjes concurrentes del
	// mismo token, exactamente uno pasa de acá.
	if _, err := s.deps.Cache.ConsumeOnce(ctx, keyReset+hash); err != nil {
		if cache.IsNotFound(err) {
			log.Debug("reset token already consumed")
			metrics.RecordPasswordReset("confirm", "invalid_token")
			return ErrInvalidResetToken
		}
		return ErrStoreUnavailable
	}
	_ = s.deps.Cache.Delete(ctx, keyResetUser+userUUID)

	// Paso 4: Persistir la contraseña nueva
	phc, err := password.Hash(s.deps.Hasher, in.NewPassword)
	if err != nil {
		log.Error("failed to hash password", logger.Err(err))
		return ErrTokenIssueFailed
	}
	if err := s.deps.Users.UpdatePassword(ctx, userUUID, phc, userUUID); err != nil {
		if repository.IsUnavailable(err) {
			return ErrStoreUnavailable
		}
		log.Error("failed to update password", logger.Err(err))
		return ErrInvalidResetToken
	}

	// Paso 5: Watermark. Todo token emitido antes de este instante queda
	// revocado sin enumerar jtis. Vive lo que el refresh más largo posible.
	now := strconv.FormatInt(time.Now().Unix(), 10)
	if err := s.deps.Cache.Set(ctx, keyPwdChanged+userUUID, now, s.deps.RefreshTTL); err != nil {
		// La contraseña ya cambió; dejar constancia aunque el watermark falle.
		log.Error("failed to set password-changed watermark", logger.Err(err))
	}

	log.Info("password reset successful")
	metrics.RecordPasswordReset("confirm", "ok")
	return nil
}

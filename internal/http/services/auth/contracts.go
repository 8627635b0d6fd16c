// Package auth implementa la lógica de negocio del flujo de autenticación:
// emisión de sesiones (sign-in / MFA / refresh), verificación de tokens con
// autorización por servicio, revocación y reset de contraseña.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/cache"
	dto "github.com/dropDatabas3/gatekeeper/internal/http/dto/auth"
	"github.com/dropDatabas3/gatekeeper/internal/token"
)

// Prefijos de keys en el store efímero. Todos los tokens de un solo uso se
// guardan hasheados (sha256) para que un dump del store no sirva para usarlos.
const (
	keyBlacklist   = "bl:"        // bl:<jti> -> "1"
	keyMFA         = "mfa:"       // mfa:<sha256(token)> -> user uuid
	keyReset       = "reset:"     // reset:<sha256(token)> -> user uuid
	keyResetUser   = "resetuser:" // resetuser:<uuid> -> sha256 del token vigente
	keyPwdChanged  = "pwdchanged:" // pwdchanged:<uuid> -> unix seconds del último cambio
	keyVerifyCache = "vt:"        // vt:<uuid>:<service> -> snapshot JSON
)

// Errores compartidos entre services. Los controllers los mapean a AppError.
var (
	ErrMissingFields       = errors.New("missing required fields")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInactiveUser        = errors.New("inactive user")
	ErrInvalidChallenge    = errors.New("invalid mfa challenge")
	ErrInvalidOTP          = errors.New("invalid otp")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrUserNotFound        = errors.New("user not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrNoMembership        = errors.New("no membership for service")
	ErrPasswordMismatch    = errors.New("password confirmation mismatch")
	ErrWeakPassword        = errors.New("password too weak")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
	ErrTokenIssueFailed    = errors.New("failed to issue token")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

// SessionService emite sesiones: sign-in, resolución de MFA y refresh.
type SessionService interface {
	SignIn(ctx context.Context, in dto.SignInRequest) (*SessionResult, error)
	VerifyMFA(ctx context.Context, in dto.VerifyMFARequest) (*SessionResult, error)
	Refresh(ctx context.Context, refreshToken string) (*SessionResult, error)
}

// VerifyService valida un access token y resuelve la autorización del usuario
// contra un servicio destino.
type VerifyService interface {
	VerifyToken(ctx context.Context, rawToken, serviceID string) (*dto.VerifyTokenData, error)
}

// RevokeService agrega tokens a la blacklist.
type RevokeService interface {
	Revoke(ctx context.Context, rawToken string) error
	SignOut(ctx context.Context, accessToken, refreshToken string) error
}

// ResetService maneja el flujo de recuperación de contraseña.
type ResetService interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in dto.ResetPasswordRequest) error
}

// SessionResult es el resultado de una operación de emisión.
type SessionResult struct {
	MFARequired  bool
	MFAToken     string
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// checkRevoked consulta blacklist y watermark de cambio de contraseña.
// Fail-closed: si el store efímero no responde, el token no pasa.
func checkRevoked(ctx context.Context, store cache.Store, cl *token.Claims) error {
	revoked, err := store.Exists(ctx, keyBlacklist+cl.JTI)
	if err != nil {
		return ErrStoreUnavailable
	}
	if revoked {
		return ErrTokenRevoked
	}

	// Tokens emitidos antes del último cambio de contraseña quedan inválidos
	// aunque su jti no esté en la blacklist.
	wm, err := store.Get(ctx, keyPwdChanged+cl.Subject)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil
		}
		return ErrStoreUnavailable
	}
	if ts, perr := parseUnix(wm); perr == nil && cl.IssuedAt.Before(ts) {
		return ErrTokenRevoked
	}
	return nil
}

func parseUnix(s string) (time.Time, error) {
	var sec int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return time.Time{}, errors.New("bad unix timestamp")
		}
		sec = sec*10 + int64(c-'0')
	}
	return time.Unix(sec, 0).UTC(), nil
}

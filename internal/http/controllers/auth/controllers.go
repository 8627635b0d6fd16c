// Package auth contiene los controllers HTTP del flujo de autenticación.
// Los controllers sólo parsean requests, delegan al service y mapean
// sentinels a AppError; ninguna regla de negocio vive acá.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	dto "github.com/dropDatabas3/gatekeeper/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/gatekeeper/internal/http/errors"
	svc "github.com/dropDatabas3/gatekeeper/internal/http/services/auth"
	"github.com/dropDatabas3/gatekeeper/internal/token"
)

const (
	maxBodySize     = 64 * 1024 // 64KB
	contentTypeJSON = "application/json; charset=utf-8"
)

// Controllers agrupa todos los controllers del flujo para el router.
type Controllers struct {
	Session *SessionController
	Verify  *VerifyController
	Revoke  *RevokeController
	Reset   *ResetController
}

// New construye el set completo de controllers.
func New(session svc.SessionService, verify svc.VerifyService, revoke svc.RevokeService, reset svc.ResetService) *Controllers {
	return &Controllers{
		Session: NewSessionController(session),
		Verify:  NewVerifyController(verify),
		Revoke:  NewRevokeController(revoke),
		Reset:   NewResetController(reset),
	}
}

// decodeJSON parsea el body JSON con límite de tamaño.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return nil
}

// writeEnvelope responde con el sobre JSON estándar.
func writeEnvelope(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.OK(status, message, data))
}

// writeServiceError traduce los sentinels de services y del códec a AppError.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, svc.ErrMissingFields):
		httperrors.WriteError(w, httperrors.ErrMissingFields)
	case errors.Is(err, svc.ErrInvalidCredentials):
		httperrors.WriteError(w, httperrors.ErrInvalidCredentials)
	case errors.Is(err, svc.ErrInactiveUser):
		httperrors.WriteError(w, httperrors.ErrInactiveUser)
	case errors.Is(err, svc.ErrInvalidChallenge):
		httperrors.WriteError(w, httperrors.ErrInvalidChallenge)
	case errors.Is(err, svc.ErrInvalidOTP):
		httperrors.WriteError(w, httperrors.ErrInvalidOTP)
	case errors.Is(err, svc.ErrTokenRevoked):
		httperrors.WriteError(w, httperrors.ErrTokenRevoked)
	case errors.Is(err, svc.ErrUserNotFound):
		httperrors.WriteError(w, httperrors.ErrUserNotFound)
	case errors.Is(err, svc.ErrServiceNotFound):
		httperrors.WriteError(w, httperrors.ErrServiceNotFound)
	case errors.Is(err, svc.ErrNoMembership):
		httperrors.WriteError(w, httperrors.ErrForbidden.WithDetail("el usuario no es miembro del servicio"))
	case errors.Is(err, svc.ErrPasswordMismatch):
		httperrors.WriteError(w, httperrors.ErrPasswordMismatch)
	case errors.Is(err, svc.ErrWeakPassword):
		httperrors.WriteError(w, httperrors.ErrPasswordTooWeak.WithDetail(err.Error()))
	case errors.Is(err, svc.ErrInvalidResetToken):
		httperrors.WriteError(w, httperrors.ErrInvalidOrExpiredToken)
	case errors.Is(err, svc.ErrStoreUnavailable):
		w.Header().Set("Retry-After", "1")
		httperrors.WriteError(w, httperrors.ErrStoreUnavailable)

	case errors.Is(err, token.ErrMalformed):
		httperrors.WriteError(w, httperrors.ErrTokenMalformed)
	case errors.Is(err, token.ErrBadSignature):
		httperrors.WriteError(w, httperrors.ErrTokenBadSignature)
	case errors.Is(err, token.ErrExpired):
		httperrors.WriteError(w, httperrors.ErrTokenExpired)
	case errors.Is(err, token.ErrKindMismatch):
		httperrors.WriteError(w, httperrors.ErrTokenKindMismatch)

	default:
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
	}
}

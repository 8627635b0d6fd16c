package auth

import (
	"net/http"

	dto "github.com/dropDatabas3/gatekeeper/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/gatekeeper/internal/http/errors"
	svc "github.com/dropDatabas3/gatekeeper/internal/http/services/auth"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
)

// SessionController maneja sign-in, verify-mfa y refresh.
type SessionController struct {
	service svc.SessionService
}

// NewSessionController crea el controller de sesiones.
func NewSessionController(service svc.SessionService) *SessionController {
	return &SessionController{service: service}
}

// SignIn maneja POST /api/v1/auth/sign-in
func (c *SessionController) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SessionController.SignIn"))

	var req dto.SignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	result, err := c.service.SignIn(ctx, req)
	if err != nil {
		log.Debug("sign-in failed", logger.Err(err))
		writeServiceError(w, err)
		return
	}

	if result.MFARequired {
		writeEnvelope(w, http.StatusOK, "Se requiere verificación MFA", dto.MFARequiredData{
			MFARequired: true,
			MFAToken:    result.MFAToken,
		})
		return
	}

	writeEnvelope(w, http.StatusOK, "Inicio de sesión exitoso", dto.TokenPairData{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.ExpiresIn,
	})
}

// VerifyMFA maneja POST /api/v1/auth/verify-mfa
func (c *SessionController) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SessionController.VerifyMFA"))

	var req dto.VerifyMFARequest
	if err := decodeJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	result, err := c.service.VerifyMFA(ctx, req)
	if err != nil {
		log.Debug("verify-mfa failed", logger.Err(err))
		writeServiceError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "Verificación MFA exitosa", dto.TokenPairData{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.ExpiresIn,
	})
}

// Refresh maneja POST /api/v1/auth/refresh
func (c *SessionController) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SessionController.Refresh"))

	var req dto.RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	result, err := c.service.Refresh(ctx, req.RefreshToken)
	if err != nil {
		log.Debug("refresh failed", logger.Err(err))
		writeServiceError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "Token renovado", dto.TokenPairData{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.ExpiresIn,
	})
}

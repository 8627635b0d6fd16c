package auth

import (
	"html/template"
	"net/http"

	dto "github.com/dropDatabas3/gatekeeper/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/gatekeeper/internal/http/errors"
	svc "github.com/dropDatabas3/gatekeeper/internal/http/services/auth"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
)

// ResetController maneja el flujo de recuperación de contraseña.
type ResetController struct {
	service svc.ResetService
	form    *template.Template // página HTML del form de reset; nil = sólo API
}

// NewResetController crea el controller de reset.
func NewResetController(service svc.ResetService) *ResetController {
	return &ResetController{service: service}
}

// WithForm agrega la página HTML para GET /reset-password.
func (c *ResetController) WithForm(form *template.Template) *ResetController {
	c.form = form
	return c
}

// ForgotPassword maneja POST /api/v1/auth/forgot-password.
// Siempre responde 200 con el mismo mensaje exista o no el email.
func (c *ResetController) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ResetController.ForgotPassword"))

	var req dto.ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if req.Email == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields)
		return
	}

	if err := c.service.RequestReset(ctx, req.Email); err != nil {
		log.Debug("forgot-password failed", logger.Err(err))
		writeServiceError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "Si el correo existe, se envió un enlace de recuperación", nil)
}

// ResetPassword maneja POST /api/v1/auth/reset-password.
func (c *ResetController) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ResetController.ResetPassword"))

	var req dto.ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	if err := c.service.ResetPassword(ctx, req); err != nil {
		log.Debug("reset-password failed", logger.Err(err))
		writeServiceError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "Contraseña actualizada", nil)
}

// ResetPasswordForm maneja GET /api/v1/auth/reset-password?token=...
// Sirve la página HTML que postea contra el endpoint JSON.
func (c *ResetController) ResetPasswordForm(w http.ResponseWriter, r *http.Request) {
	if c.form == nil {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
		return
	}

	tokenRaw := r.URL.Query().Get("token")
	if tokenRaw == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("falta el parámetro token"))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := c.form.Execute(w, map[string]string{"Token": tokenRaw}); err != nil {
		logger.From(r.Context()).Error("failed to render reset form", logger.Err(err))
	}
}

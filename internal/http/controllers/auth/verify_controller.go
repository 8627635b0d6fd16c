package auth

import (
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/gatekeeper/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/gatekeeper/internal/http/errors"
	svc "github.com/dropDatabas3/gatekeeper/internal/http/services/auth"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
)

// VerifyController maneja la verificación de access tokens para servicios
// downstream.
type VerifyController struct {
	service svc.VerifyService
}

// NewVerifyController crea el controller de verificación.
func NewVerifyController(service svc.VerifyService) *VerifyController {
	return &VerifyController{service: service}
}

// VerifyToken maneja POST /api/v1/auth/verify-token.
// El token puede venir en el body o como Bearer en Authorization.
func (c *VerifyController) VerifyToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("VerifyController.VerifyToken"))

	var req dto.VerifyTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	if req.Token == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			req.Token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}
	if req.Token == "" {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}

	data, err := c.service.VerifyToken(ctx, req.Token, req.ServiceID)
	if err != nil {
		log.Debug("verify-token failed", logger.Err(err))
		writeServiceError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "Token válido", data)
}

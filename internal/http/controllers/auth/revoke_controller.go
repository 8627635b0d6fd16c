package auth

import (
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/gatekeeper/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/gatekeeper/internal/http/errors"
	svc "github.com/dropDatabas3/gatekeeper/internal/http/services/auth"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
)

// RevokeController maneja el cierre de sesión (revocación de tokens).
type RevokeController struct {
	service svc.RevokeService
}

// NewRevokeController crea el controller de revocación.
func NewRevokeController(service svc.RevokeService) *RevokeController {
	return &RevokeController{service: service}
}

// SignOut maneja DELETE /api/v1/auth/sign-out.
// El access token puede venir en el body o como Bearer; el refresh es
// opcional y si viene también se revoca.
func (c *RevokeController) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RevokeController.SignOut"))

	var req dto.SignOutRequest
	// DELETE con body vacío es válido si viene Authorization
	_ = decodeJSON(w, r, &req)

	if req.AccessToken == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			req.AccessToken = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}
	if req.AccessToken == "" {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}

	if err := c.service.SignOut(ctx, req.AccessToken, req.RefreshToken); err != nil {
		log.Debug("sign-out failed", logger.Err(err))
		writeServiceError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "Sesión cerrada", nil)
}

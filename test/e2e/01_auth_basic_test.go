package e2e

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
)

// 01 - Flujo básico: sign-in, verify-token con membresía, refresh sin
// rotación, sign-out y rechazo posterior del token revocado.
func Test_01_Auth_Basic(t *testing.T) {
	e := newEnv(t, envOpts{})
	e.seedUser(t, "u-alice", "alice", "alice@example.com", "correcthorse1", false)

	role := "viewer"
	e.memberships.addMembership("u-alice", &repository.Membership{
		ServiceUUID:   "svc-billing",
		ServiceName:   "billing",
		ServiceActive: true,
		MemberActive:  true,
		Role:          &role,
	})

	type tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
	}

	var pair tokens

	t.Run("sign-in emite el par de tokens", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/sign-in", map[string]string{
			"identifier": "alice",
			"password":   "correcthorse1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)
		decodeData(t, body, &pair)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
		require.Equal(t, "Bearer", pair.TokenType)
		require.Greater(t, pair.ExpiresIn, int64(0))
	})

	t.Run("sign-in con password incorrecto es 401 genérico", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/sign-in", map[string]string{
			"identifier": "alice",
			"password":   "nope",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("verify-token resuelve la membresía", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/verify-token", map[string]string{
			"token":      pair.AccessToken,
			"service_id": "svc-billing",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

		var data struct {
			UUID          string  `json:"uuid"`
			Username      string  `json:"username"`
			ServiceValid  bool    `json:"service_valid"`
			ServiceRole   *string `json:"service_role"`
			ServiceStatus string  `json:"service_status"`
		}
		decodeData(t, body, &data)
		require.Equal(t, "u-alice", data.UUID)
		require.Equal(t, "alice", data.Username)
		require.True(t, data.ServiceValid)
		require.NotNil(t, data.ServiceRole)
		require.Equal(t, "viewer", *data.ServiceRole)
		require.Equal(t, "active", data.ServiceStatus)
	})

	t.Run("refresh emite nuevo access y conserva el refresh", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/refresh", map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

		var refreshed tokens
		decodeData(t, body, &refreshed)
		require.NotEmpty(t, refreshed.AccessToken)
		require.NotEqual(t, pair.AccessToken, refreshed.AccessToken)
		require.Equal(t, pair.RefreshToken, refreshed.RefreshToken)
	})

	t.Run("refresh con un access token es 401", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/refresh", map[string]string{
			"refresh_token": pair.AccessToken,
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("sign-out revoca y verify-token lo rechaza", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodDelete, e.srv.URL+"/api/v1/auth/sign-out", map[string]string{
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

		resp, _ = doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/verify-token", map[string]string{
			"token":      pair.AccessToken,
			"service_id": "svc-billing",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, _ = doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/refresh", map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("verify-token contra un service inexistente es soft-fail", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/sign-in", map[string]string{
			"identifier": "alice@example.com",
			"password":   "correcthorse1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)
		var fresh tokens
		decodeData(t, body, &fresh)

		resp, body = doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/verify-token", map[string]string{
			"token":      fresh.AccessToken,
			"service_id": "svc-ghost",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

		var data struct {
			ServiceValid  bool   `json:"service_valid"`
			ServiceStatus string `json:"service_status"`
		}
		decodeData(t, body, &data)
		require.False(t, data.ServiceValid)
		require.Equal(t, "not_found", data.ServiceStatus)
	})
}

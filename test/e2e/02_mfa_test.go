package e2e

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// 02 - MFA: el sign-in de un usuario con MFA devuelve un desafío opaco, el
// OTP incorrecto no quema el desafío y el desafío es de un solo uso.
func Test_02_MFA(t *testing.T) {
	e := newEnv(t, envOpts{})
	secret := e.seedUser(t, "u-bob", "bob", "bob@example.com", "hunter2hunter2", true)

	var mfaToken string

	t.Run("sign-in devuelve desafío en vez de tokens", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/sign-in", map[string]string{
			"identifier": "bob",
			"password":   "hunter2hunter2",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

		var data struct {
			MFARequired bool   `json:"mfa_required"`
			MFAToken    string `json:"mfa_token"`
			AccessToken string `json:"access_token"`
		}
		decodeData(t, body, &data)
		require.True(t, data.MFARequired)
		require.NotEmpty(t, data.MFAToken)
		require.Empty(t, data.AccessToken, "no debe haber tokens antes del OTP")
		mfaToken = data.MFAToken
	})

	t.Run("OTP incorrecto es 401 y preserva el desafío", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/verify-mfa", map[string]string{
			"mfa_token": mfaToken,
			"otp":       "000000",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("OTP correcto emite el par y consume el desafío", func(t *testing.T) {
		otp := totpCode(t, secret, time.Now())
		resp, body := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/verify-mfa", map[string]string{
			"mfa_token": mfaToken,
			"otp":       otp,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

		var data struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		}
		decodeData(t, body, &data)
		require.NotEmpty(t, data.AccessToken)
		require.NotEmpty(t, data.RefreshToken)

		// reuso del mismo desafío: un solo uso
		resp, _ = doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/verify-mfa", map[string]string{
			"mfa_token": mfaToken,
			"otp":       totpCode(t, secret, time.Now()),
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("desafío desconocido es 401", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/verify-mfa", map[string]string{
			"mfa_token": "no-such-challenge",
			"otp":       "123456",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

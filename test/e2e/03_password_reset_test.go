package e2e

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// 03 - Reset de password: forgot-password manda el link por correo, el token
// es de un solo uso y el password viejo deja de servir.
func Test_03_Password_Reset(t *testing.T) {
	e := newEnv(t, envOpts{})
	e.seedUser(t, "u-carol", "carol", "carol@example.com", "oldpassword1", false)

	var resetToken string

	t.Run("forgot-password responde genérico y manda el correo", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/forgot-password", map[string]string{
			"email": "carol@example.com",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

		resetToken = resetTokenFromMail(t, e.sender.lastText())
		require.NotEmpty(t, resetToken)
	})

	t.Run("forgot-password de email desconocido responde igual y no manda nada", func(t *testing.T) {
		before := e.sender.lastText()
		resp, _ := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/forgot-password", map[string]string{
			"email": "ghost@example.com",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, before, e.sender.lastText(), "no debe salir correo para emails desconocidos")
	})

	t.Run("confirmación con passwords distintos es 422 y no quema el token", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/reset-password", map[string]string{
			"token":            resetToken,
			"new_password":     "newpassword1",
			"confirm_password": "otracosa1234",
		})
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("confirmación válida cambia el password", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/reset-password", map[string]string{
			"token":            resetToken,
			"new_password":     "newpassword1",
			"confirm_password": "newpassword1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

		// password viejo rechazado, nuevo acceptado
		resp, _ = doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/sign-in", map[string]string{
			"identifier": "carol",
			"password":   "oldpassword1",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, _ = doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/sign-in", map[string]string{
			"identifier": "carol",
			"password":   "newpassword1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("el token de reset es de un solo uso", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/reset-password", map[string]string{
			"token":            resetToken,
			"new_password":     "anotherpwd12",
			"confirm_password": "anotherpwd12",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

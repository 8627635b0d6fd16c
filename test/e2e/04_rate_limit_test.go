package e2e

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatekeeper/internal/rate"
)

// 04 - Rate limit en endpoints de credenciales: pasado el máximo por ventana
// el sign-in responde 429 con Retry-After; verify-token no se limita.
func Test_04_Rate_Limit(t *testing.T) {
	e := newEnv(t, envOpts{limiter: rate.NewMemoryLimiter(3, time.Minute)})
	e.seedUser(t, "u-dave", "dave", "dave@example.com", "davepassword1", false)

	for i := 0; i < 3; i++ {
		resp, _ := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/sign-in", map[string]string{
			"identifier": "dave",
			"password":   "wrong-guess",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "hit %d", i+1)
	}

	resp, _ := doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/sign-in", map[string]string{
		"identifier": "dave",
		"password":   "davepassword1",
	})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))

	// verify-token queda fuera del limiter aunque la IP esté bloqueada:
	// responde por el token (401 malformed), nunca 429
	resp, _ = doJSON(t, http.MethodPost, e.srv.URL+"/api/v1/auth/verify-token", map[string]string{
		"token":      "garbage",
		"service_id": "svc-any",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

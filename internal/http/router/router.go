// Package router arma el mux del servicio y cuelga las rutas.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authctrl "github.com/dropDatabas3/gatekeeper/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/gatekeeper/internal/http/controllers/health"
	httperrors "github.com/dropDatabas3/gatekeeper/internal/http/errors"
	mw "github.com/dropDatabas3/gatekeeper/internal/http/middlewares"
	"github.com/dropDatabas3/gatekeeper/internal/metrics"
	"github.com/dropDatabas3/gatekeeper/internal/rate"
)

// Deps contiene todas las dependencias del router.
type Deps struct {
	Auth    *authctrl.Controllers
	Health  *healthctrl.Controller
	Metrics http.Handler // handler de /metrics; nil = no se expone

	// RateLimit protege los endpoints de credenciales. nil = deshabilitado.
	RateLimit rate.Limiter

	CORSAllowedOrigins []string
}

// New construye el handler HTTP completo con la cadena de middlewares base.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// Observabilidad y probes fuera de la cadena pesada
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	if deps.Health != nil {
		r.Get("/healthz", deps.Health.Healthz)
		r.Get("/readyz", deps.Health.Readyz)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		a := deps.Auth

		// Los endpoints que devuelven tokens nunca se cachean
		noStore := mw.WithNoStore()
		// Rate limit sólo donde entran credenciales; verify-token y refresh
		// son tráfico M2M y quedan afuera.
		limited := mw.WithRateLimit(deps.RateLimit)

		r.Method(http.MethodPost, "/sign-in", mw.ChainFunc(a.Session.SignIn, noStore, limited))
		r.Method(http.MethodPost, "/verify-mfa", mw.ChainFunc(a.Session.VerifyMFA, noStore, limited))
		r.Method(http.MethodPost, "/refresh", mw.ChainFunc(a.Session.Refresh, noStore))
		r.Method(http.MethodDelete, "/sign-out", mw.ChainFunc(a.Revoke.SignOut, noStore))
		r.Method(http.MethodPost, "/verify-token", mw.ChainFunc(a.Verify.VerifyToken, noStore))
		r.Method(http.MethodPost, "/forgot-password", mw.ChainFunc(a.Reset.ForgotPassword, limited))
		r.Method(http.MethodPost, "/reset-password", mw.ChainFunc(a.Reset.ResetPassword, limited))
		r.Get("/reset-password", a.Reset.ResetPasswordForm)
	})

	// Cadena base: recover primero hacia adentro del request-id/logging para
	// que los panics queden logueados con contexto.
	return mw.Chain(r,
		mw.WithRequestID(),
		mw.WithLogging(),
		metricsMiddleware(),
		mw.WithRecover(),
		mw.WithSecurityHeaders(),
		mw.WithCORS(deps.CORSAllowedOrigins),
	)
}

func metricsMiddleware() mw.Middleware {
	return func(next http.Handler) http.Handler {
		return metrics.WithHTTP(next)
	}
}

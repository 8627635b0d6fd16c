package middlewares

import "net/http"

// WithNoStore agrega Cache-Control: no-store a la respuesta.
// Útil para endpoints que devuelven tokens o datos de sesión.
func WithNoStore() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}

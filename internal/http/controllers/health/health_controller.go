// Package health expone los endpoints de liveness y readiness.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger abstrae un backend con chequeo de conexión.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller responde /healthz y /readyz.
type Controller struct {
	DB    Pinger
	Cache Pinger
}

// New crea el controller de health.
func New(db, cache Pinger) *Controller {
	return &Controller{DB: db, Cache: cache}
}

// Healthz responde 200 mientras el proceso esté vivo.
func (c *Controller) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Readyz verifica los backends: 200 si todos responden, 503 si alguno falla.
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if c.DB != nil {
		if err := c.DB.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}
	if c.Cache != nil {
		if err := c.Cache.Ping(ctx); err != nil {
			checks["cache"] = err.Error()
			healthy = false
		} else {
			checks["cache"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(checks)
}

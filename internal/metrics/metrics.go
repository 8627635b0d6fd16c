// Package metrics define las métricas Prometheus del servicio. Está en un
// paquete propio para evitar ciclos de import entre HTTP y los services.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once
	metricsErr  error

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	// Auth metrics
	loginsTotal         *prometheus.CounterVec
	verifyRequestsTotal *prometheus.CounterVec
	tokensRevokedTotal  prometheus.Counter
	mfaChallengesTotal  *prometheus.CounterVec
	passwordResetsTotal *prometheus.CounterVec
)

// Config agrupa dependencias necesarias para exponer /metrics.
type Config struct {
	Registry   prometheus.Registerer
	GlobalPool func() *pgxpool.Pool
}

// Register inicializa las métricas y devuelve el handler para /metrics.
func Register(cfg Config) (http.Handler, error) {
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		httpInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"})

		loginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Intentos de sign-in por resultado",
		}, []string{"result"}) // result: ok|mfa_required|invalid|inactive|error

		verifyRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_verify_requests_total",
			Help: "Verificaciones de token por resultado",
		}, []string{"result"}) // result: ok|rejected|error

		tokensRevokedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_tokens_revoked_total",
			Help: "Tokens agregados a la blacklist",
		})

		mfaChallengesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_mfa_challenges_total",
			Help: "Desafíos MFA por resultado",
		}, []string{"result"}) // result: issued|ok|invalid_otp|invalid_challenge

		passwordResetsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_password_resets_total",
			Help: "Flujo de reset de contraseña por etapa y resultado",
		}, []string{"stage", "result"}) // stage: request|confirm

		for _, c := range []prometheus.Collector{
			httpRequestsTotal, httpRequestDuration, httpInflight,
			loginsTotal, verifyRequestsTotal, tokensRevokedTotal,
			mfaChallengesTotal, passwordResetsTotal,
		} {
			if err := registerCollector(registry, c); err != nil {
				metricsErr = err
				return
			}
		}
	})
	if metricsErr != nil {
		return nil, metricsErr
	}

	if cfg.GlobalPool != nil {
		collector := newDBPoolCollector(cfg.GlobalPool)
		if err := registerCollector(registry, collector); err != nil {
			return nil, err
		}
	}

	// Usamos el gatherer global por compatibilidad, ya que las métricas se registran allí.
	return promhttp.Handler(), nil
}

// WithHTTP instrumenta requests HTTP (contadores, latencia, inflight).
func WithHTTP(next http.Handler) http.Handler {
	if next == nil {
		return nil
	}
	if httpRequestsTotal == nil || httpRequestDuration == nil || httpInflight == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		pathLabel := normalizePath(r.URL.Path)

		httpInflight.WithLabelValues(method, pathLabel).Inc()
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			httpInflight.WithLabelValues(method, pathLabel).Dec()
			httpRequestDuration.WithLabelValues(method, pathLabel).Observe(time.Since(start).Seconds())

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(method, pathLabel, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(rec, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// RecordLogin registra un intento de sign-in.
func RecordLogin(result string) {
	if loginsTotal != nil {
		loginsTotal.WithLabelValues(result).Inc()
	}
}

// RecordVerify registra una verificación de token.
func RecordVerify(result string) {
	if verifyRequestsTotal != nil {
		verifyRequestsTotal.WithLabelValues(result).Inc()
	}
}

// RecordRevoked registra un token agregado a la blacklist.
func RecordRevoked() {
	if tokensRevokedTotal != nil {
		tokensRevokedTotal.Inc()
	}
}

// RecordMFA registra un evento del flujo MFA.
func RecordMFA(result string) {
	if mfaChallengesTotal != nil {
		mfaChallengesTotal.WithLabelValues(result).Inc()
	}
}

// RecordPasswordReset registra un evento del flujo de reset.
func RecordPasswordReset(stage, result string) {
	if passwordResetsTotal != nil {
		passwordResetsTotal.WithLabelValues(stage, result).Inc()
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		ReadTimeout        string   `yaml:"read_timeout"`
		WriteTimeout       string   `yaml:"write_timeout"`
	} `yaml:"server"`

	Storage struct {
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		// Timeout por operación contra el store (se mapea a StoreUnavailable).
		OpTimeout string `yaml:"op_timeout"`
	} `yaml:"cache"`

	JWT struct {
		Issuer string `yaml:"issuer"`
		// Secreto compartido HS256. Inyectado, nunca singleton de proceso.
		Secret     string `yaml:"secret"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	Auth struct {
		MFA struct {
			ChallengeTTL string `yaml:"challenge_ttl"`
		} `yaml:"mfa"`
		Reset struct {
			TTL string `yaml:"ttl"`
		} `yaml:"reset"`
		Verify struct {
			// TTL del snapshot user+membership cacheado por verify-token.
			// 0 desactiva el cache.
			CacheTTL string `yaml:"cache_ttl"`
			// true ⇒ verify-token falla duro si el service no existe
			// (política abierta del diseño, resuelta por configuración).
			StrictService bool `yaml:"strict_service"`
		} `yaml:"verify"`
	} `yaml:"auth"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Email struct {
		BaseURL        string `yaml:"base_url"`
		TemplatesDir   string `yaml:"templates_dir"`
		DebugEchoLinks bool   `yaml:"debug_echo_links"`
	} `yaml:"email"`

	Security struct {
		PasswordPolicy struct {
			MinLength int `yaml:"min_length"`
		} `yaml:"password_policy"`
		RateLimit struct {
			// Max requests por IP+path por ventana en los endpoints de
			// credenciales. 0 deshabilita el rate limiting.
			Max    int    `yaml:"max"`
			Window string `yaml:"window"`
		} `yaml:"rate_limit"`
	} `yaml:"security"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "15s"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.OpTimeout == "" {
		c.Cache.OpTimeout = "2s"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "15m"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "24h"
	}
	if c.Auth.MFA.ChallengeTTL == "" {
		c.Auth.MFA.ChallengeTTL = "5m"
	}
	if c.Auth.Reset.TTL == "" {
		c.Auth.Reset.TTL = "30m"
	}
	if c.Auth.Verify.CacheTTL == "" {
		c.Auth.Verify.CacheTTL = "60s"
	}
	if c.Security.PasswordPolicy.MinLength == 0 {
		c.Security.PasswordPolicy.MinLength = 8
	}
	if c.Security.RateLimit.Window == "" {
		c.Security.RateLimit.Window = "1m"
	}

	// Overrides por env antes de validar: una duración rota que llega por
	// variable de entorno tiene que frenar el arranque igual que en el YAML.
	c.applyEnvOverrides()

	// validate string durations
	for _, d := range []string{
		c.Server.ReadTimeout,
		c.Server.WriteTimeout,
		c.Cache.OpTimeout,
		c.JWT.AccessTTL,
		c.JWT.RefreshTTL,
		c.Auth.MFA.ChallengeTTL,
		c.Auth.Reset.TTL,
		c.Auth.Verify.CacheTTL,
		c.Security.RateLimit.Window,
	} {
		if _, err := time.ParseDuration(d); err != nil {
			return nil, err
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return nil, err
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	// Guardia dura: en prod NUNCA exponemos los links de reset por headers.
	if strings.EqualFold(c.App.Env, "prod") {
		c.Email.DebugEchoLinks = false
	}

	return &c, nil
}

// Validate chequea los invariantes mínimos para poder arrancar.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("config: jwt.secret es requerido (o env JWT_SECRET)")
	}
	if strings.EqualFold(c.App.Env, "prod") && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("config: jwt.secret demasiado corto para prod (mínimo 32 bytes)")
	}
	return nil
}

// ---- Duraciones ya validadas ----

func (c *Config) AccessTTL() time.Duration    { return mustDur(c.JWT.AccessTTL) }
func (c *Config) RefreshTTL() time.Duration   { return mustDur(c.JWT.RefreshTTL) }
func (c *Config) ChallengeTTL() time.Duration { return mustDur(c.Auth.MFA.ChallengeTTL) }
func (c *Config) ResetTTL() time.Duration     { return mustDur(c.Auth.Reset.TTL) }
func (c *Config) ReadTimeout() time.Duration  { return mustDur(c.Server.ReadTimeout) }
func (c *Config) WriteTimeout() time.Duration { return mustDur(c.Server.WriteTimeout) }
func (c *Config) VerifyCacheTTL() time.Duration {
	return mustDur(c.Auth.Verify.CacheTTL)
}
func (c *Config) CacheOpTimeout() time.Duration { return mustDur(c.Cache.OpTimeout) }
func (c *Config) RateLimitWindow() time.Duration {
	return mustDur(c.Security.RateLimit.Window)
}

func mustDur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_IDLE_CONNS"); ok {
		c.Storage.Postgres.MaxIdleConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}

	// AUTH
	if v, ok := getEnvStr("MFA_CHALLENGE_TTL"); ok {
		c.Auth.MFA.ChallengeTTL = v
	}
	if v, ok := getEnvStr("RESET_TTL"); ok {
		c.Auth.Reset.TTL = v
	}
	if v, ok := getEnvBool("VERIFY_STRICT_SERVICE"); ok {
		c.Auth.Verify.StrictService = v
	}
	if v, ok := getEnvInt("RATE_LIMIT_MAX"); ok {
		c.Security.RateLimit.Max = v
	}
	if v, ok := getEnvStr("RATE_LIMIT_WINDOW"); ok {
		c.Security.RateLimit.Window = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}

	// EMAIL
	if v, ok := getEnvStr("EMAIL_BASE_URL"); ok {
		c.Email.BaseURL = v
	}
}

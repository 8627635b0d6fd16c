package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
jwt:
  secret: "test-secret-test-secret-test-secret"
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Cache.Kind != "memory" {
		t.Errorf("Cache.Kind = %q", cfg.Cache.Kind)
	}
	if got := cfg.AccessTTL(); got != 15*time.Minute {
		t.Errorf("AccessTTL = %v", got)
	}
	if got := cfg.RefreshTTL(); got != 24*time.Hour {
		t.Errorf("RefreshTTL = %v", got)
	}
	if got := cfg.ChallengeTTL(); got != 5*time.Minute {
		t.Errorf("ChallengeTTL = %v", got)
	}
	if got := cfg.ResetTTL(); got != 30*time.Minute {
		t.Errorf("ResetTTL = %v", got)
	}
	if got := cfg.RateLimitWindow(); got != time.Minute {
		t.Errorf("RateLimitWindow = %v", got)
	}
	if cfg.Security.PasswordPolicy.MinLength != 8 {
		t.Errorf("MinLength = %d", cfg.Security.PasswordPolicy.MinLength)
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	if _, err := Load(writeConfig(t, "server:\n  addr: \":9000\"\n")); err == nil {
		t.Fatal("expected error without jwt.secret")
	}
}

func TestLoad_RejectsInvalidDuration(t *testing.T) {
	body := minimalYAML + `
auth:
  mfa:
    challenge_ttl: "cinco minutos"
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":7777")
	t.Setenv("CACHE_KIND", "redis")
	t.Setenv("VERIFY_STRICT_SERVICE", "true")
	t.Setenv("RATE_LIMIT_MAX", "5")

	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7777" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Cache.Kind != "redis" {
		t.Errorf("Cache.Kind = %q", cfg.Cache.Kind)
	}
	if !cfg.Auth.Verify.StrictService {
		t.Error("StrictService should be overridden to true")
	}
	if cfg.Security.RateLimit.Max != 5 {
		t.Errorf("RateLimit.Max = %d", cfg.Security.RateLimit.Max)
	}
}

func TestLoad_RejectsInvalidDurationFromEnv(t *testing.T) {
	t.Setenv("JWT_ACCESS_TTL", "bogus")
	if _, err := Load(writeConfig(t, minimalYAML)); err == nil {
		t.Fatal("expected error for invalid env duration")
	}
}

func TestLoad_ProdForcesEchoLinksOff(t *testing.T) {
	body := minimalYAML + `
app:
  app_env: prod
email:
  debug_echo_links: true
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Email.DebugEchoLinks {
		t.Error("DebugEchoLinks must be forced off in prod")
	}
}

func TestLoad_ProdRejectsShortSecret(t *testing.T) {
	body := `
app:
  app_env: prod
jwt:
  secret: "short"
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error for short secret in prod")
	}
}

// seed carga datos mínimos de desarrollo: roles base, un usuario admin,
// un service demo y su membresía. Idempotente: corre sobre ON CONFLICT.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/dropDatabas3/gatekeeper/internal/config"
	"github.com/dropDatabas3/gatekeeper/internal/security/password"
	"github.com/dropDatabas3/gatekeeper/internal/security/totp"
)

func strEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path al YAML de configuración")
		withMFA    = flag.Bool("mfa", false, "Habilitar MFA en el usuario seed (imprime el secret)")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	var (
		adminUser  = strEnv("SEED_ADMIN_USERNAME", "admin")
		adminEmail = strEnv("SEED_ADMIN_EMAIL", "admin@example.com")
		adminPass  = strEnv("SEED_ADMIN_PASSWORD", "admin-changeme-123")
		svcName    = strEnv("SEED_SERVICE_NAME", "demo-service")
	)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
	if err != nil {
		log.Fatalf("pgxpool: %v", err)
	}
	defer pool.Close()

	// Roles base
	for _, role := range []string{"admin", "editor", "viewer"} {
		if _, err := pool.Exec(ctx,
			`INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, role); err != nil {
			log.Fatalf("seed role %s: %v", role, err)
		}
	}

	hash, err := password.Hash(password.Default, adminPass)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	var mfaSecret *string
	if *withMFA {
		_, b32, err := totp.GenerateSecret()
		if err != nil {
			log.Fatalf("totp secret: %v", err)
		}
		mfaSecret = &b32
	}

	userUUID := uuid.NewString()
	err = pool.QueryRow(ctx, `
		INSERT INTO users (uuid, username, email, password_hash, role_id, is_active, mfa_enabled, mfa_secret)
		VALUES ($1, $2, $3, $4, (SELECT id FROM roles WHERE name = 'admin'), TRUE, $5, $6)
		ON CONFLICT (username) WHERE deleted_at IS NULL
		DO UPDATE SET email = EXCLUDED.email
		RETURNING uuid`,
		userUUID, adminUser, adminEmail, hash, *withMFA, mfaSecret,
	).Scan(&userUUID)
	if err != nil {
		log.Fatalf("seed user: %v", err)
	}

	svcUUID := uuid.NewString()
	err = pool.QueryRow(ctx, `
		INSERT INTO services (uuid, name, is_active)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (name) WHERE deleted_at IS NULL
		DO UPDATE SET is_active = TRUE
		RETURNING uuid`,
		svcUUID, svcName,
	).Scan(&svcUUID)
	if err != nil {
		log.Fatalf("seed service: %v", err)
	}

	if _, err := pool.Exec(ctx, `
		INSERT INTO service_memberships (service_uuid, user_uuid, role_id, is_active)
		VALUES ($1, $2, (SELECT id FROM roles WHERE name = 'admin'), TRUE)
		ON CONFLICT (service_uuid, user_uuid) DO UPDATE SET is_active = TRUE`,
		svcUUID, userUUID); err != nil {
		log.Fatalf("seed membership: %v", err)
	}

	log.Printf("seed ok: user=%s (%s) service=%s (%s)", adminUser, userUUID, svcName, svcUUID)
	if mfaSecret != nil {
		log.Printf("mfa secret (base32): %s", *mfaSecret)
		log.Printf("otpauth url: %s", totp.OTPAuthURL("gatekeeper", adminEmail, *mfaSecret))
	}
}

package main

import (
	"context"
	"html/template"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/gatekeeper/internal/cache"
	"github.com/dropDatabas3/gatekeeper/internal/config"
	"github.com/dropDatabas3/gatekeeper/internal/email"
	authctrl "github.com/dropDatabas3/gatekeeper/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/gatekeeper/internal/http/controllers/health"
	"github.com/dropDatabas3/gatekeeper/internal/http/router"
	"github.com/dropDatabas3/gatekeeper/internal/http/server"
	svc "github.com/dropDatabas3/gatekeeper/internal/http/services/auth"
	"github.com/dropDatabas3/gatekeeper/internal/metrics"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/rate"
	"github.com/dropDatabas3/gatekeeper/internal/security/password"
	"github.com/dropDatabas3/gatekeeper/internal/store/pg"
	"github.com/dropDatabas3/gatekeeper/internal/token"
)

func main() {
	// .env opcional: en dev es cómodo, en prod mandan las env del entorno.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, using system environment: %v", err)
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", cfgPath, err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       os.Getenv("LOG_LEVEL"),
		ServiceName: "gatekeeper",
	})
	defer func() { _ = logger.Sync() }()
	logMain := logger.Named("main")

	ctx := context.Background()

	// Credential Store (Postgres)
	store, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		logMain.Fatal("postgres init failed", logger.Err(err))
	}
	defer store.Close()

	// Store efímero (blacklist, desafíos MFA, reset, cache de verify)
	eph, err := cache.New(cache.Config{
		Kind:      cfg.Cache.Kind,
		Addr:      cfg.Cache.Redis.Addr,
		Password:  cfg.Cache.Redis.Password,
		DB:        cfg.Cache.Redis.DB,
		Prefix:    cfg.Cache.Redis.Prefix,
		OpTimeout: cfg.CacheOpTimeout(),
	})
	if err != nil {
		logMain.Fatal("cache init failed", logger.Err(err))
	}
	defer func() { _ = eph.Close() }()

	codec := token.NewCodec(cfg.JWT.Issuer, cfg.JWT.Secret)

	// Correo: SMTP si hay host configurado, si no los links salen por el log.
	var sender email.Sender
	if cfg.SMTP.Host != "" && !cfg.Email.DebugEchoLinks {
		smtp := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
		smtp.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
		sender = smtp
	} else {
		sender = email.EchoSender{}
		logMain.Warn("using echo email sender, reset links will be logged")
	}

	tplDir := cfg.Email.TemplatesDir
	if tplDir == "" {
		tplDir = "web/templates"
	}
	tpls, err := email.LoadTemplates(tplDir)
	if err != nil {
		logMain.Fatal("email templates load failed", logger.Err(err), logger.String("dir", tplDir))
	}

	policy := password.Policy{MinLength: cfg.Security.PasswordPolicy.MinLength}

	session := svc.NewSessionService(svc.SessionDeps{
		Users:        store.Users(),
		Cache:        eph,
		Codec:        codec,
		AccessTTL:    cfg.AccessTTL(),
		RefreshTTL:   cfg.RefreshTTL(),
		ChallengeTTL: cfg.ChallengeTTL(),
	})
	verify := svc.NewVerifyService(svc.VerifyDeps{
		Users:         store.Users(),
		Memberships:   store.Memberships(),
		Cache:         eph,
		Codec:         codec,
		CacheTTL:      cfg.VerifyCacheTTL(),
		StrictService: cfg.Auth.Verify.StrictService,
	})
	revoke := svc.NewRevokeService(svc.RevokeDeps{
		Cache: eph,
		Codec: codec,
	})
	reset := svc.NewResetService(svc.ResetDeps{
		Users:      store.Users(),
		Cache:      eph,
		Sender:     sender,
		Templates:  tpls,
		BaseURL:    cfg.Email.BaseURL,
		ResetTTL:   cfg.ResetTTL(),
		RefreshTTL: cfg.RefreshTTL(),
		Policy:     policy,
	})

	controllers := authctrl.New(session, verify, revoke, reset)

	// Página para abrir el link de reset desde el correo.
	if form, err := template.ParseFiles(filepath.Join(tplDir, "reset_form.html")); err == nil {
		controllers.Reset.WithForm(form)
	} else {
		logMain.Warn("reset form template not found, GET /reset-password disabled", logger.Err(err))
	}

	health := healthctrl.New(store, eph)

	var limiter rate.Limiter
	if max := cfg.Security.RateLimit.Max; max > 0 {
		if rc, ok := cache.RedisClient(eph); ok {
			limiter = rate.NewRedisLimiter(rc, cfg.Cache.Redis.Prefix+":rl:", max, cfg.RateLimitWindow())
		} else {
			limiter = rate.NewMemoryLimiter(max, cfg.RateLimitWindow())
		}
	}

	metricsHandler, err := metrics.Register(metrics.Config{
		GlobalPool: store.Pool,
	})
	if err != nil {
		logMain.Fatal("metrics register failed", logger.Err(err))
	}

	handler := router.New(router.Deps{
		Auth:               controllers,
		Health:             health,
		Metrics:            metricsHandler,
		RateLimit:          limiter,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}, handler)

	if err := srv.Run(ctx); err != nil {
		logMain.Fatal("server exited with error", logger.Err(err))
	}
}

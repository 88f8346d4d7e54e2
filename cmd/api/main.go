package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	appanalysis "github.com/userlens/sessionlens/internal/application/analysis"
	"github.com/userlens/sessionlens/internal/config"
	domain "github.com/userlens/sessionlens/internal/domain/analysis"
	"github.com/userlens/sessionlens/internal/domain/sessions"
	"github.com/userlens/sessionlens/internal/infra/ai/openai"
	mysqlp "github.com/userlens/sessionlens/internal/infra/db/mysql"
	pgp "github.com/userlens/sessionlens/internal/infra/db/postgres"
	"github.com/userlens/sessionlens/internal/infra/httpserver"
	"github.com/userlens/sessionlens/internal/infra/redact"
	minioStore "github.com/userlens/sessionlens/internal/infra/storage"
	"github.com/userlens/sessionlens/internal/logger"
	"github.com/userlens/sessionlens/internal/middleware"
)

func main() {
	// .env is optional; real deployments set env directly
	_ = godotenv.Load()

	log := logger.New()

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.WithError(err).Fatal("config load error")
	}

	ctx := context.Background()

	db, err := connectDB(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("database connect error")
	}
	defer db.Close()

	var (
		sessionRepo sessions.Repository
		catalogRepo sessions.CatalogRepository
		runRepo     domain.RunRepository
		insightRepo domain.InsightRepository
	)
	switch cfg.Database.Driver {
	case "postgres":
		sessionRepo = pgp.NewSessionRepository(db)
		catalogRepo = pgp.NewCatalogRepository(db)
		runRepo = pgp.NewRunRepository(db)
		insightRepo = pgp.NewInsightRepository(db)
	default:
		sessionRepo = mysqlp.NewSessionRepository(db)
		catalogRepo = mysqlp.NewCatalogRepository(db)
		runRepo = mysqlp.NewRunRepository(db)
		insightRepo = mysqlp.NewInsightRepository(db)
	}

	// AI provider optional; tanpa API key langsung fallback mode
	var ai domain.Inference
	if cfg.OpenAI.APIKey != "" {
		ai = openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	} else {
		log.Warn("openai api key not set, analyses will use the fallback generator")
	}

	var artifacts domain.ArtifactStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.WithError(err).Fatal("minio init error")
		}
		artifacts = store
	}

	svc := &appanalysis.Service{
		Sessions:  sessionRepo,
		Runs:      runRepo,
		Insights:  insightRepo,
		AI:        ai,
		Redactor:  redact.New(),
		Artifacts: artifacts,
		Features:  cfg.Features,
		Clock:     appanalysis.SystemClock{},
		Log:       log,
	}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-Request-ID"},
		MaxAge:         300,
	}))
	mux.Use(middleware.Logging(log))
	mux.Use(middleware.MetricsMiddleware)
	if len(cfg.Auth.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	}
	if cfg.RateLimit.Capacity > 0 {
		refill := time.Second
		if cfg.RateLimit.RefillRate > 0 {
			refill = time.Second / time.Duration(cfg.RateLimit.RefillRate)
		}
		rl := middleware.NewRateLimiter(cfg.RateLimit.Capacity, refill)
		mux.Use(rl.Middleware)
	}

	mux.Get("/health", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}))
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Mount("/", httpserver.NewRouter(svc, catalogRepo))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.WithError(err).Error("shutdown error")
	}
}

// connectDB retries the initial connection so the service survives the
// database coming up after it in compose environments.
func connectDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	var db *sql.DB
	op := func() error {
		var err error
		switch cfg.Database.Driver {
		case "postgres":
			db, err = pgp.Connect(ctx, cfg.PostgresDSN())
		default:
			db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		}
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return db, nil
}

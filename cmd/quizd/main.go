package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	api "github.com/mind-engage/quizpractice/internal/api/http"
	auth "github.com/mind-engage/quizpractice/internal/auth/middleware"
	"github.com/mind-engage/quizpractice/internal/bank"
	"github.com/mind-engage/quizpractice/internal/config"
	"github.com/mind-engage/quizpractice/internal/journal"
	"github.com/mind-engage/quizpractice/internal/kv"
	"github.com/mind-engage/quizpractice/internal/logging"
	"github.com/mind-engage/quizpractice/internal/metrics"
	"github.com/mind-engage/quizpractice/internal/progress"
	"github.com/mind-engage/quizpractice/internal/quiz"
	"github.com/mind-engage/quizpractice/internal/tracing"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg, v, err := config.Load(getenvOr("QUIZ_CONFIG", "quiz.yaml"))
	if err != nil {
		panic(err)
	}

	log, level := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer func() { _ = log.Sync() }()

	config.Watch(v, func(next config.Config, e fsnotify.Event) {
		level.SetLevel(logging.ParseLevel(next.LogLevel))
		log.Info("config reloaded", zap.String("file", e.Name), zap.String("log_level", next.LogLevel))
	})

	if cfg.TracingEnabled {
		tp, err := tracing.Init("quizpractice", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("tracing disabled", zap.Error(err))
		} else {
			defer func() { _ = tp.Shutdown(context.Background()) }()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Catalog ---
	catalog := bank.Default()
	if cfg.CatalogPath != "" {
		if catalog, err = bank.LoadFile(cfg.CatalogPath); err != nil {
			log.Fatal("catalog load failed", zap.String("path", cfg.CatalogPath), zap.Error(err))
		}
	}

	// --- Storage ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	backend, err := kv.Open(openCtx, kv.Options{
		Driver:     cfg.StoreDriver,
		DSN:        cfg.StoreDSN,
		BasePath:   cfg.StoreBasePath,
		QuotaBytes: cfg.StoreQuotaBytes,
		Redis: kv.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		},
		Object: kv.ObjectOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		},
	})
	cancel()
	if err != nil {
		log.Fatal("store open failed", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer func() { _ = backend.Close() }()
	if err := kv.Probe(ctx, backend.Store); err != nil {
		// sessions still run, answers just are not persisted
		log.Warn("store probe failed", zap.Error(err))
	}

	m := metrics.New()
	pool := api.NewProgressPool(backend.Store, catalog,
		progress.WithLogger(log.Named("progress")),
		progress.WithMetrics(m),
		progress.WithTimeout(cfg.PersistTimeout),
		progress.WithQuota(cfg.StoreQuotaBytes),
	)

	notifiers := quiz.Fanout{quiz.LogNotifier{Log: log.Named("notice")}}
	if backend.SQL != nil {
		notifiers = append(notifiers, journal.Notifier{
			Repo:    journal.NewEventRepo(backend.SQL),
			Timeout: cfg.PersistTimeout,
			Log:     log.Named("journal"),
		})
	}
	sessions := api.NewRegistry(func(owner string, inbox quiz.Notifier) *quiz.Session {
		return quiz.New(catalog, pool.For(owner),
			quiz.WithTickInterval(cfg.TickInterval),
			quiz.WithNotifier(append(quiz.Fanout{inbox}, notifiers...)),
			quiz.WithLogger(log.Named("quiz").With(zap.String("owner", owner))),
			quiz.WithMetrics(m),
		)
	}, cfg.SessionIdleTTL, m, log.Named("sessions"))
	go sessions.Run(ctx, time.Minute)

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(m.Middleware)
	r.Use(api.RateLimit(ctx, cfg.RateLimitMax, cfg.RateLimitWindow))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.Mount(r, api.Deps{
		Catalog:       catalog,
		Sessions:      sessions,
		Progress:      pool,
		Usage:         pool.Global(),
		Auth:          authSvc,
		GuestAuth:     cfg.EnableGuestAuth,
		SecureCookie:  cfg.Mode == config.ModeProd,
		AdminUser:     cfg.AdminUser,
		AdminPassHash: cfg.AdminPassHash,
		Ready: func(ctx context.Context) error {
			return kv.Probe(ctx, backend.Store)
		},
	})
	r.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("mode", string(cfg.Mode)),
		zap.String("store", cfg.StoreDriver),
		zap.Int("exam_types", len(catalog.ExamTypes())))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}
}

func getenvOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

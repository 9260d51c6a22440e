package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/feedworks/prefeed/internal/config"
	"github.com/feedworks/prefeed/internal/db"
	dbPostgres "github.com/feedworks/prefeed/internal/db/postgres"
	dbRedis "github.com/feedworks/prefeed/internal/db/redis"
	"github.com/feedworks/prefeed/internal/domain/preference"
	logpkg "github.com/feedworks/prefeed/internal/logger"
	"github.com/feedworks/prefeed/internal/metrics"
	"github.com/feedworks/prefeed/internal/prefstore"
	likerepo "github.com/feedworks/prefeed/internal/repository/like"
	postrepo "github.com/feedworks/prefeed/internal/repository/post"
	"github.com/feedworks/prefeed/internal/repository/postcache"
	userprefrepo "github.com/feedworks/prefeed/internal/repository/userpref"
	chiTransport "github.com/feedworks/prefeed/internal/transport/chi"
	feeduc "github.com/feedworks/prefeed/internal/usecase/feed"
	healthuc "github.com/feedworks/prefeed/internal/usecase/health"
	"github.com/feedworks/prefeed/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting prefeed API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_host", cfg.Database.Host),
		zap.Int("vector_dim", cfg.Feed.VectorDim),
		zap.Float64("alpha", cfg.Feed.Alpha),
	)

	// Relational store
	pg, err := dbPostgres.Connect(dbPostgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer func() { _ = pg.Close() }()

	ctx := context.Background()
	if err := pg.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	metrics.RegisterFeedMetrics()

	// Optional Redis post-vector cache
	var cache db.KVStore
	if cfg.Cache.Enabled {
		cache, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer cache.Close()
		logger.Info("Post-vector cache enabled", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// EMA updater — alpha already validated by config, validate again at
	// the domain boundary.
	updater, err := preference.New(cfg.Feed.Alpha)
	if err != nil {
		logger.Fatal("Invalid learning rate", zap.Error(err))
	}

	// Repositories
	userprefRepo := userprefrepo.New(pg.DB(), cfg.Feed.VectorDim, logger)
	likeRepo := likerepo.New(pg.DB())

	var posts feeduc.PostReader = postrepo.New(pg.DB(), cfg.Feed.VectorDim, logger)
	if cache != nil {
		posts = postcache.New(
			posts, cache,
			time.Duration(cfg.Cache.TTLSec)*time.Second,
			cfg.Feed.VectorDim,
			metrics.PostVectorCacheTotal,
			logger,
		)
	}

	// Startup load: durable store is the source of truth exactly once.
	vectors, err := userprefRepo.LoadAll(ctx)
	if err != nil {
		logger.Fatal("Failed to load user vectors", zap.Error(err))
	}
	prefs := prefstore.New(userprefRepo, vectors)
	metrics.LoadedUsers.Set(float64(prefs.Len()))
	logger.Info("Loaded user vectors into memory", zap.Int("users", prefs.Len()))

	// Use case services
	feedSvc := feeduc.New(prefs, posts, likeRepo, updater, logger).
		WithSizes(cfg.Feed.FeedSize, cfg.Feed.SampleSize)

	var cachePinger healthuc.CachePinger
	if cache != nil {
		cachePinger = cache
	}
	healthSvc := healthuc.New(pg, cachePinger)

	// HTTP server
	server := chiTransport.NewServer(feedSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}

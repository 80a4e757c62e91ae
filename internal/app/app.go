// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/pushrelay/internal/config"
	"github.com/bissquit/pushrelay/internal/identity/jwt"
	"github.com/bissquit/pushrelay/internal/pkg/ctxlog"
	"github.com/bissquit/pushrelay/internal/pkg/httputil"
	"github.com/bissquit/pushrelay/internal/pkg/metrics"
	"github.com/bissquit/pushrelay/internal/pkg/postgres"
	"github.com/bissquit/pushrelay/internal/push"
	pushpostgres "github.com/bissquit/pushrelay/internal/push/postgres"
	"github.com/bissquit/pushrelay/internal/push/webpush"
	"github.com/bissquit/pushrelay/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	cancel        context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := NewLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		config: cfg,
		logger: logger,
		db:     db,
		cancel: cancel,
	}

	metrics.BuildInfo.WithLabelValues(version.Version, version.GitCommit).Set(1)
	go app.collectDBMetrics(ctx)

	router, err := app.setupRouter(ctx)
	if err != nil {
		db.Close()
		cancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"version", version.Version,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application. In-flight dispatches finish
// before the database pool is closed, bounded by ctx.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.cancel()

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	for name, srv := range map[string]*http.Server{"server": a.server, "metrics server": a.metricsServer} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db.Stat())

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db.Stat())
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	pushHandler, err := a.newPushHandler()
	if err != nil {
		return nil, err
	}

	var tokenValidator httputil.TokenValidator
	if a.config.Auth.JWTSecret != "" {
		tokenValidator = jwt.NewAuthenticator(jwt.Config{
			SecretKey: a.config.Auth.JWTSecret,
			Issuer:    a.config.Auth.Issuer,
			Audience:  a.config.Auth.Audience,
		})
	} else {
		slog.Warn("auth.jwt_secret is empty: push API accepts unauthenticated requests")
	}

	r.Route("/api/v1", func(r chi.Router) {
		pushHandler.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			if a.config.RateLimit.Enabled {
				limiter := httputil.NewRateLimiter(ctx, a.config.RateLimit.RPS, a.config.RateLimit.Burst)
				r.Use(limiter.Middleware)
			}
			r.Use(httputil.AuthMiddleware(tokenValidator))

			pushHandler.RegisterRoutes(r)
		})
	})

	return r, nil
}

func (a *App) newPushHandler() (*push.Handler, error) {
	pushCfg := a.config.Push

	slog.Info("push configured", "enabled", pushCfg.Enabled())

	var transport push.Transport
	if pushCfg.Enabled() {
		sender, err := webpush.NewSender(webpush.Config{
			VAPIDPublicKey:  pushCfg.VAPIDPublicKey,
			VAPIDPrivateKey: pushCfg.VAPIDPrivateKey,
			Subject:         pushCfg.Subject,
			TTL:             pushCfg.TTL,
			Urgency:         pushCfg.Urgency,
			Timeout:         pushCfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create webpush sender: %w", err)
		}
		transport = sender
	} else {
		slog.Warn("VAPID keys are not configured: push delivery is disabled")
	}

	payloads := push.NewPayloadBuilder(push.PayloadConfig{
		DefaultTitle:  pushCfg.DefaultTitle,
		DefaultBody:   pushCfg.DefaultBody,
		DefaultURL:    pushCfg.DefaultURL,
		ChatTagPrefix: pushCfg.ChatTagPrefix,
		DefaultTag:    pushCfg.DefaultTag,
	})

	repo := pushpostgres.NewRepository(a.db)
	service := push.NewService(repo, transport, payloads)

	return push.NewHandler(service, pushCfg.VAPIDPublicKey), nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Info())
}

// NewLogger builds the process logger from config.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

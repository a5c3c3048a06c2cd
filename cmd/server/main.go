package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tenantgate/internal/auth/handler"
	"tenantgate/internal/auth/metrics"
	authmiddleware "tenantgate/internal/auth/middleware"
	"tenantgate/internal/auth/service"
	authstatestore "tenantgate/internal/authstate/store"
	"tenantgate/internal/platform/config"
	"tenantgate/internal/platform/httpserver"
	"tenantgate/internal/platform/logger"
	platformmiddleware "tenantgate/internal/platform/middleware"
	"tenantgate/internal/platform/postgres"
	platformredis "tenantgate/internal/platform/redis"
	"tenantgate/internal/provider"
	"tenantgate/internal/session"
	sessionstore "tenantgate/internal/session/store"
	"tenantgate/internal/tenant"
	"tenantgate/pkg/httputil"
)

// main wires configuration, stores, and the HTTP surface, then owns the
// server lifecycle. The login flow itself lives in internal/auth.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := tenant.NewRegistry(cfg.Tenants, cfg.BaseURL)

	// Shared backends are opened lazily: a pool or client only exists when a
	// configured store needs it.
	var pool *pgxpool.Pool
	openPool := func() (*pgxpool.Pool, error) {
		if pool != nil {
			return pool, nil
		}
		pool, err = postgres.New(ctx, cfg.DatabaseURL)
		return pool, err
	}

	policy, err := session.ParseTerminationPolicy(cfg.SessionTermination)
	if err != nil {
		return err
	}

	var sessions sessionstore.Store
	switch cfg.SessionStore {
	case config.StoreMemory:
		sessions = sessionstore.NewInMemory(policy)
	case config.StorePostgres:
		p, err := openPool()
		if err != nil {
			return fmt.Errorf("session store: %w", err)
		}
		sessions = sessionstore.NewPostgres(p, policy)
	case config.StoreJWT:
		sessions, err = sessionstore.NewJWT(cfg.SessionJWTKey, cfg.BaseURL)
		if err != nil {
			return fmt.Errorf("session store: %w", err)
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", cfg.SessionStore)
	}

	var redisClient *platformredis.Client
	var authStates authstatestore.Store
	switch cfg.AuthStateStore {
	case config.StoreMemory:
		authStates = authstatestore.NewInMemory()
	case config.StorePostgres:
		p, err := openPool()
		if err != nil {
			return fmt.Errorf("auth state store: %w", err)
		}
		authStates = authstatestore.NewPostgres(p)
	case config.StoreRedis:
		redisClient, err = platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("auth state store: %w", err)
		}
		if redisClient == nil {
			return errors.New("AUTH_STATE_STORE=redis requires REDIS_URL")
		}
		authStates = authstatestore.NewRedis(redisClient.Client)
	case config.StoreCookie:
		authStates, err = authstatestore.NewCookie(cfg.AuthStateCookieKey)
		if err != nil {
			return fmt.Errorf("auth state store: %w", err)
		}
	default:
		return fmt.Errorf("unknown AUTH_STATE_STORE %q", cfg.AuthStateStore)
	}
	if pool != nil {
		defer pool.Close()
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	m := metrics.New()
	oidcClient := provider.NewClient(log)
	svc := service.New(registry, oidcClient, authStates, sessions, log,
		service.WithMetrics(m))

	secure := cfg.Production()
	guard := authmiddleware.NewGuard(registry, sessions, cfg.ProtectedPrefixes, log, m, secure)
	authHandler := handler.New(svc, registry, log, secure)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(platformmiddleware.ClientMetadata)
	r.Use(platformmiddleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := postgres.Health(r.Context(), pool); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(guard.Handler)
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			httputil.WriteJSON(w, http.StatusOK, map[string]any{
				"service": "tenantgate",
				"tenants": registry.Tenants(),
			})
		})
		authHandler.Register(r)
	})

	srv := httpserver.New(cfg.Addr, r)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

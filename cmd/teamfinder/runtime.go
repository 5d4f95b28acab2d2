package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"

	teamsdomain "github.com/felixgeelhaar/teamfinder/internal/teams/domain"
	teamspersistence "github.com/felixgeelhaar/teamfinder/internal/teams/infrastructure/persistence"
	usersdomain "github.com/felixgeelhaar/teamfinder/internal/users/domain"
	userspersistence "github.com/felixgeelhaar/teamfinder/internal/users/infrastructure/persistence"
	"github.com/felixgeelhaar/teamfinder/pkg/config"
	"github.com/felixgeelhaar/teamfinder/pkg/observability"
)

// Durable queue names, one per consumer. Stable identifiers; renaming
// one orphans its queue on the broker.
const (
	teamServiceUserEventsQueue         = "team_service_user_events"
	notificationServiceUserEventsQueue = "notification_service_user_events"
	notificationServiceTeamEventsQueue = "notification_service_team_events"
)

func loadRuntime(service string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewServiceLogger(service, cfg.LogLevel, cfg.AppEnv)
	return cfg, logger, nil
}

func isPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

func sqlitePath(url string) string {
	path := strings.TrimPrefix(url, "sqlite://")
	if path == "" {
		return "teamfinder.db"
	}
	return path
}

// openUserStore opens the user repository selected by the URL scheme
// and returns it with a cleanup func and a health checker.
func openUserStore(ctx context.Context, url string) (usersdomain.Repository, func(), observability.HealthChecker, error) {
	if isPostgresURL(url) {
		pool, err := openPgxPool(ctx, url)
		if err != nil {
			return nil, nil, nil, err
		}
		repo := userspersistence.NewPostgresUserRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, pool.Close, pgxHealth(pool), nil
	}

	db, err := openSQLite(url)
	if err != nil {
		return nil, nil, nil, err
	}
	repo := userspersistence.NewSQLiteUserRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, func() { _ = db.Close() }, sqlHealth(db), nil
}

// openTeamStore opens the team store selected by the URL scheme.
func openTeamStore(ctx context.Context, url string) (teamsdomain.Store, func(), observability.HealthChecker, error) {
	if isPostgresURL(url) {
		pool, err := openPgxPool(ctx, url)
		if err != nil {
			return nil, nil, nil, err
		}
		store := teamspersistence.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, pool.Close, pgxHealth(pool), nil
	}

	db, err := openSQLite(url)
	if err != nil {
		return nil, nil, nil, err
	}
	store := teamspersistence.NewSQLiteStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, func() { _ = db.Close() }, sqlHealth(db), nil
}

func openPgxPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func openSQLite(url string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", sqlitePath(url))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serializes writes through a single connection.
	db.SetMaxOpenConns(1)
	return db, nil
}

func pgxHealth(pool *pgxpool.Pool) observability.HealthChecker {
	return func(ctx context.Context) observability.HealthCheckResult {
		if err := pool.Ping(ctx); err != nil {
			return observability.Unhealthy(err)
		}
		return observability.Healthy("connected")
	}
}

func sqlHealth(db *sql.DB) observability.HealthChecker {
	return func(ctx context.Context) observability.HealthCheckResult {
		if err := db.PingContext(ctx); err != nil {
			return observability.Unhealthy(err)
		}
		return observability.Healthy("connected")
	}
}

// serveHTTP runs the handler until the context is cancelled, then
// shuts the server down gracefully.
func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func healthMux(registry *observability.HealthRegistry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", registry.Handler())
	return mux
}

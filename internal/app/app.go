package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/slugshortener/internal/config"
	"github.com/sundayezeilo/slugshortener/internal/counter"
	"github.com/sundayezeilo/slugshortener/internal/db"
	"github.com/sundayezeilo/slugshortener/internal/idgen"
	"github.com/sundayezeilo/slugshortener/internal/server"
	"github.com/sundayezeilo/slugshortener/internal/shortener"
	"github.com/sundayezeilo/slugshortener/sluggen"
)

// App holds the application dependencies and configuration.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	DBPool  *pgxpool.Pool // nil unless the postgres backend is selected
	Redis   *redis.Client // nil unless the redis backend is selected
	Server  *server.Server
	Handler *shortener.Handler
}

// stores is what a backend contributes to the service.
type stores struct {
	repo    shortener.Repository
	counter sluggen.StateStore
	health  server.HealthFunc
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	loadEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"service", cfg.App.ServiceName,
		"version", cfg.App.ServiceVersion,
		"store", cfg.Store.Backend,
	)

	gen, err := sluggen.New(sluggen.WithMaxAttempts(cfg.Slug.MaxAttempts))
	if err != nil {
		return nil, fmt.Errorf("failed to create slug generator: %w", err)
	}

	a := &App{Config: cfg, Logger: logger}

	st, err := a.openStores(ctx, gen.Alphabets())
	if err != nil {
		a.Shutdown()
		return nil, err
	}

	svc, err := shortener.NewService(st.repo, &shortener.ServiceConfig{
		Counter:   st.counter,
		Generator: gen,
		Logger:    logger,
	})
	if err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	a.Handler = shortener.NewHandler(shortener.HandlerConfig{
		Service:            svc,
		Logger:             logger,
		BaseURL:            cfg.Server.BaseURL,
		LegacyRedirectBase: cfg.Redirect.LegacyNumericBase,
	})
	a.Server = server.New(cfg, logger, a.Handler, st.health)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"slug_space", gen.Alphabets().Space(),
		"slug_max_attempts", gen.MaxAttempts(),
	)

	return a, nil
}

// openStores connects the configured backend and provisions it.
func (a *App) openStores(ctx context.Context, alphabets sluggen.Alphabets) (stores, error) {
	newID, err := idgen.ForVersion(a.Config.Store.IDVersion)
	if err != nil {
		return stores{}, err
	}
	repoCfg := &shortener.RepositoryConfig{NewID: newID}

	switch a.Config.Store.Backend {
	case config.BackendPostgres:
		pool, err := connectDatabase(ctx, a.Config, a.Logger)
		if err != nil {
			return stores{}, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DBPool = pool

		if err := db.EnsureSchema(ctx, pool); err != nil {
			return stores{}, fmt.Errorf("failed to provision schema: %w", err)
		}

		q := db.New(pool)
		return stores{
			repo:    shortener.NewPostgresRepository(q, repoCfg),
			counter: counter.NewPostgres(q, alphabets),
			health:  pool.Ping,
		}, nil

	case config.BackendRedis:
		client, err := connectRedis(ctx, a.Config, a.Logger)
		if err != nil {
			return stores{}, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.Redis = client

		return stores{
			repo:    shortener.NewRedisRepository(client, a.Config.Redis.URLKeyPrefix(), repoCfg),
			counter: counter.NewRedis(client, a.Config.Redis.CounterKey(), alphabets),
			health:  func(ctx context.Context) error { return client.Ping(ctx).Err() },
		}, nil

	case config.BackendMemory:
		a.Logger.Warn("using in-memory store, data is lost on restart")
		return stores{
			repo:    shortener.NewMemoryRepository(repoCfg),
			counter: counter.NewMemory(alphabets),
		}, nil

	default:
		return stores{}, fmt.Errorf("unsupported store backend %q", a.Config.Store.Backend)
	}
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown releases store connections. It is safe to call on a partly built App.
func (a *App) Shutdown() {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("failed to close redis client", "error", err)
		} else {
			a.Logger.Info("redis connection closed")
		}
	}
}

// loadEnv loads a .env file in development and test environments.
func loadEnv() {
	env := os.Getenv("APP_ENV")
	if env != "development" && env != "test" {
		return
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}
}

// setupLogger creates a JSON logger on stdout at the given level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")
	return pool, nil
}

func connectRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	logger.Info("connecting to redis",
		"addr", cfg.Redis.Addr,
		"db", cfg.Redis.DB,
	)

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("redis connection established")
	return client, nil
}

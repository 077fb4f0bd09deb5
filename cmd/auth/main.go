package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/socialfeed/socialfeed-auth/internal/cache"
	"github.com/socialfeed/socialfeed-auth/internal/config"
	httptransport "github.com/socialfeed/socialfeed-auth/internal/http"
	"github.com/socialfeed/socialfeed-auth/internal/http/handler"
	"github.com/socialfeed/socialfeed-auth/internal/http/middleware"
	"github.com/socialfeed/socialfeed-auth/internal/migrations"
	"github.com/socialfeed/socialfeed-auth/internal/repository"
	"github.com/socialfeed/socialfeed-auth/internal/server"
	"github.com/socialfeed/socialfeed-auth/internal/service"
	"github.com/socialfeed/socialfeed-auth/internal/telemetry"
	"github.com/socialfeed/socialfeed-auth/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newPGXPool,
			newUserRepository,
			newSessionCache,
			newTokenCodec,
			newSessionManager,
			handler.NewAuthHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := migrations.Run(ctx, cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newSessionCache(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (cache.SessionCache, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		sessions cache.SessionCache
		err      error
	)
	if cfg.UseRESTCache() {
		sessions, err = cache.NewRESTCache(ctx, cfg.UpstashRESTURL, cfg.UpstashRESTToken)
		logger.Info("session cache: rest client")
	} else {
		sessions, err = cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		logger.Info("session cache: redis client", zap.String("addr", cfg.RedisAddr))
	}
	if err != nil {
		return nil, fmt.Errorf("connect session cache: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return sessions.Close()
		},
	})

	return sessions, nil
}

func newTokenCodec(cfg config.Config) *token.Codec {
	return token.NewCodec(cfg.AccessTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenSecret, cfg.RefreshTokenTTL)
}

func newSessionManager(users repository.UserRepository, sessions cache.SessionCache, codec *token.Codec, cfg config.Config, logger *zap.Logger) *service.SessionManager {
	return service.NewSessionManager(users, sessions, codec, cfg.RefreshTokenTTL, logger)
}

func newAuthMiddleware(sessions cache.SessionCache, codec *token.Codec, logger *zap.Logger) *middleware.Auth {
	return middleware.NewAuth(sessions, codec, logger)
}

// useTelemetry forces the trace pipeline into the dependency graph.
func useTelemetry(*telemetry.Provider) {}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

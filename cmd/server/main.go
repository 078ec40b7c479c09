// Command tt-server starts the tasktracker HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/tasktracker/internal/config"
	pkgcrypto "github.com/and161185/tasktracker/internal/crypto"
	"github.com/and161185/tasktracker/internal/limiter"
	"github.com/and161185/tasktracker/internal/migrate"
	"github.com/and161185/tasktracker/internal/repository"
	"github.com/and161185/tasktracker/internal/repository/memory"
	"github.com/and161185/tasktracker/internal/repository/postgres"
	httpserver "github.com/and161185/tasktracker/internal/server/http"
	"github.com/and161185/tasktracker/internal/service"
	"github.com/and161185/tasktracker/internal/token"
	"github.com/and161185/tasktracker/internal/validate"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, prepares storage and serves HTTP until signalled.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.Bool("postgres", cfg.DSN != ""),
		zap.String("limiter", cfg.LimiterBackend),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		users repository.UserRepository
		tasks repository.TaskRepository
		lim   limiter.Limiter
	)
	if cfg.DSN != "" {
		pool, err := postgres.Connect(ctx, cfg.DSN, cfg.DBConnectAttempts)
		if err != nil {
			logger.Fatal("connect", zap.Error(err))
		}
		defer pool.Close()

		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}

		db := &postgres.DB{Pool: pool}
		users, tasks = postgres.NewUserRepo(db), postgres.NewTaskRepo(db)

		if cfg.LimiterBackend == config.LimiterPostgres {
			pg := limiter.NewPG(pool, cfg.RateLimitWindow, cfg.RateLimitMax)
			go purgeLoop(ctx, pg, cfg.RateLimitWindow, logger)
			lim = pg
		}
	} else {
		logger.Warn("no dsn configured, using in-memory storage")
		db := memory.New()
		users, tasks = db.Users(), db.Tasks()
	}
	if lim == nil {
		mem := limiter.NewMemory(cfg.RateLimitWindow, cfg.RateLimitMax)
		defer mem.Close()
		lim = mem
	}

	hasher, err := pkgcrypto.NewHasher(cfg.BcryptCost)
	if err != nil {
		logger.Fatal("hasher", zap.Error(err))
	}
	tokens, err := token.NewService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Fatal("token service", zap.Error(err))
	}
	v, err := validate.New()
	if err != nil {
		logger.Fatal("schemas", zap.Error(err))
	}

	// Services
	authSvc := service.NewAuthService(users, hasher, tokens)
	taskSvc := service.NewTaskService(tasks)

	app := httpserver.New(authSvc, taskSvc, v, lim, logger, httpserver.WithTrustProxy(cfg.TrustProxy))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown timed out", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

// purgeLoop deletes expired limiter rows once per window.
func purgeLoop(ctx context.Context, pg *limiter.PG, every time.Duration, log *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := pg.Purge(ctx)
			if err != nil {
				log.Warn("rate limit purge", zap.Error(err))
				continue
			}
			log.Debug("rate limit purge", zap.Int64("rows", n))
		}
	}
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avoronin/cineseat/internal/config"
	"github.com/avoronin/cineseat/internal/notify"
	"github.com/avoronin/cineseat/internal/postgres"
	redisx "github.com/avoronin/cineseat/internal/redis"
	postgresrepo "github.com/avoronin/cineseat/internal/repository/postgres"
	redisrepo "github.com/avoronin/cineseat/internal/repository/redis"
	"github.com/avoronin/cineseat/internal/service"
	"github.com/avoronin/cineseat/internal/service/holds"
	"github.com/avoronin/cineseat/internal/service/settlement"
	"github.com/avoronin/cineseat/internal/sweeper"
	httpgin "github.com/avoronin/cineseat/internal/transport/http/gin"
	"github.com/avoronin/cineseat/internal/uow"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	sweeper    *sweeper.Sweeper
	producer   *notify.Producer
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: cfg.Postgres.DSN()})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redisx.New(context.Background(), redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	store := postgresrepo.NewStore(pgxPool)
	u := uow.NewUoW(store)
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewShowsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "rl", cfg.RateLimit.Limit, cfg.RateLimit.Window)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)
	producer := notify.NewProducer(cfg.Kafka.Brokers)

	services := service.NewServices(store, u, cache, pubsub, producer, service.Config{
		Holds: holds.Config{
			HoldTimeout: cfg.Booking.HoldTimeout,
			SweepBatch:  cfg.Booking.SweepBatch,
		},
		Settlement: settlement.Config{
			CancelCutoff:       cfg.Booking.CancelCutoff,
			RefundRate:         cfg.Booking.RefundRate,
			DefaultBalance:     cfg.Booking.DefaultBalance,
			NotificationsTopic: cfg.Kafka.NotificationsTopic,
		},
	}, logger)

	router := httpgin.NewRouter(services, idempotencyStore, limiter, cfg.Server.AdminToken, logger)

	return &App{
		cfg:      cfg,
		logger:   logger,
		sweeper:  sweeper.New(services.Holds, cfg.Booking.SweepInterval, logger),
		producer: producer,
		httpServer: &http.Server{
			Addr:    cfg.Server.Addr(),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Start expiry sweeper
	g.Go(func() error {
		if err := a.sweeper.Run(gCtx); err != nil && err != context.Canceled {
			return fmt.Errorf("sweeper stopped: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(ctx); err != nil {
			return err
		}
		return a.producer.Close()
	})

	return g.Wait()
}

// Package app wires every component into two fx dependency graphs: the
// HTTP API (APIModule) and the background dispatcher (WorkerModule).
// Wrapper constructors here exist only to thread a single *config.Config
// field into a component's constructor, or to expose a concrete
// implementation as the domain interface its consumers depend on.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/durablenotify/notifysvc/internal/config"
	deliveryHTTP "github.com/durablenotify/notifysvc/internal/delivery/http"
	"github.com/durablenotify/notifysvc/internal/domain/events"
	"github.com/durablenotify/notifysvc/internal/domain/queue"
	repo "github.com/durablenotify/notifysvc/internal/domain/repository"
	"github.com/durablenotify/notifysvc/internal/logger"
	"github.com/durablenotify/notifysvc/internal/monitor"
	"github.com/durablenotify/notifysvc/internal/notifier"
	"github.com/durablenotify/notifysvc/internal/provider"
	"github.com/durablenotify/notifysvc/internal/reclaimer"
	"github.com/durablenotify/notifysvc/internal/service"
	"github.com/durablenotify/notifysvc/internal/storage/postgres"
	"github.com/durablenotify/notifysvc/internal/storage/rabbitmq"
	"github.com/durablenotify/notifysvc/internal/storage/redis"
	"github.com/durablenotify/notifysvc/internal/workerpool"
)

// CommonModule provides dependencies shared by the API and worker
// binaries: config, logging, storage adapters, the integration event
// bus, and the ingress service layer.
var CommonModule = fx.Options(
	fx.Provide(
		config.NewConfig,
		logger.NewLogger,
		provideContext,

		postgres.NewPool,
		redis.NewClient,
		redis.NewNotificationCache,
		postgres.NewNotificationRepository,
		newUserRepository,
		newNotificationRepository,

		rabbitmq.NewPublisher,

		newNotificationService,
	),
)

// APIModule wires the HTTP-facing application: ingress over REST plus
// a one-shot migration run on startup.
var APIModule = fx.Options(
	CommonModule,
	fx.Provide(
		deliveryHTTP.NewHandlers,
		deliveryHTTP.NewServer,
	),

	fx.Invoke(runMigrations),

	fx.Invoke(func(server *deliveryHTTP.Server, lc fx.Lifecycle) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						panic(err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return server.Shutdown(ctx)
			},
		})
	}),
)

// WorkerModule wires the background dispatcher: the database job
// queue, the notifier worker body, the worker pool, the job monitor
// that glues them together, and the optional orphan reclaimer.
var WorkerModule = fx.Options(
	CommonModule,
	fx.Provide(
		newJobQueue,
		newRetryScheduler,
		newOrphanReclaimer,

		provider.New,
		newNotifierProcessor,
		newWorkerPool,
		monitor.New,
	),

	fx.Invoke(runMigrations),

	fx.Invoke(func(m *monitor.JobMonitor, lc fx.Lifecycle) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				m.Start(ctx)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				m.Stop()
				return m.Join(ctx)
			},
		})
	}),

	fx.Invoke(startReclaimer),
)

func provideContext() context.Context {
	return context.Background()
}

func runMigrations(cfg *config.Config) error {
	if err := postgres.Migrate(cfg.Postgres.MasterDSN); err != nil {
		return fmt.Errorf("app: run migrations: %w", err)
	}
	return nil
}

func newUserRepository(pool *pgxpool.Pool, logger *zerolog.Logger) repo.UserRepository {
	return postgres.NewUserRepository(pool, logger)
}

// newNotificationRepository wraps the Postgres repository in a
// cache-aside decorator: Postgres is always the source of truth,
// Redis fronts GetByID for read latency.
func newNotificationRepository(
	pgRepo *postgres.NotificationRepository,
	cache *redis.NotificationCache,
	cfg *config.Config,
	logger *zerolog.Logger,
) repo.NotificationRepository {
	return redis.NewCachedNotificationRepository(pgRepo, cache, cfg.Redis.TTL, logger)
}

func newNotificationService(
	notifications repo.NotificationRepository,
	users repo.UserRepository,
	cfg *config.Config,
	logger *zerolog.Logger,
) *service.NotificationService {
	return service.New(notifications, users, cfg.Job.MaxRetryAttempts, logger)
}

func newJobQueue(pool *pgxpool.Pool, cfg *config.Config, logger *zerolog.Logger) queue.JobQueue {
	return postgres.NewDatabaseJobQueue(pool, cfg, logger)
}

func newRetryScheduler(pool *pgxpool.Pool) queue.RetryScheduler {
	return postgres.NewRetryScheduler(pool)
}

func newOrphanReclaimer(pool *pgxpool.Pool) queue.Reclaimer {
	return postgres.NewOrphanReclaimer(pool)
}

func newNotifierProcessor(
	notifications repo.NotificationRepository,
	users repo.UserRepository,
	p provider.Provider,
	publisher events.Publisher,
	retries queue.RetryScheduler,
	cfg *config.Config,
	logger *zerolog.Logger,
) workerpool.Processor {
	retryDelay := time.Duration(cfg.Job.RetrySeconds) * time.Second
	return notifier.New(notifications, users, p, publisher, retries, retryDelay, logger)
}

func newWorkerPool(processor workerpool.Processor, cfg *config.Config, logger *zerolog.Logger) monitor.Pool {
	return workerpool.New(cfg.Notifier.Threads, processor, logger)
}

func startReclaimer(cfg *config.Config, r queue.Reclaimer, logger *zerolog.Logger, lc fx.Lifecycle) {
	if !cfg.Reclaimer.Enabled {
		return
	}
	sweeper := reclaimer.New(r, cfg.Reclaimer.Interval, cfg.Reclaimer.OrphanAfter, logger)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sweeper.Start(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			sweeper.Stop()
			return nil
		},
	})
}

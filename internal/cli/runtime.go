package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/go-redis/redis/v8"

	"rentdesk/internal/app"
	"rentdesk/internal/app/middleware"
	"rentdesk/internal/app/policies"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/infra/broker/kafka"
	"rentdesk/internal/infra/broker/rabbitmq"
	"rentdesk/internal/infra/config"
	mongostore "rentdesk/internal/infra/db/mongo"
	pgstore "rentdesk/internal/infra/db/postgres"
	"rentdesk/internal/infra/ical"
	redislock "rentdesk/internal/infra/lock/redis"
	infraoutbox "rentdesk/internal/infra/outbox"
	"rentdesk/internal/infra/storage/memory"
	"rentdesk/internal/infra/validation"
)

const rabbitExchange = "rentdesk.events"

// Runtime holds the wired application and the adapters it owns.
type Runtime struct {
	Config config.Config
	Logger *slog.Logger
	App    *app.Application
	Worker *infraoutbox.Worker

	// Purge removes expired idempotency keys where the store needs it.
	Purge func(ctx context.Context) error

	readiness []func(ctx context.Context) error
	closers   []func(ctx context.Context) error
}

type storage struct {
	factory     uow.UoWFactory
	idempotency middleware.IdempotencyStore
	queue       infraoutbox.Queue
}

// Build connects the configured storage, broker and locker and assembles the application.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			rt.Close(context.WithoutCancel(ctx))
		}
	}()

	st, err := rt.openStorage(ctx)
	if err != nil {
		return nil, err
	}
	producer, err := rt.openProducer()
	if err != nil {
		return nil, err
	}
	locker := rt.openLocker()

	rt.Worker = &infraoutbox.Worker{
		Queue:       st.queue,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger.With("component", "outbox"),
	}
	rt.App = app.New(app.Options{
		UoWFactory:      st.factory,
		Idempotency:     st.idempotency,
		Flusher:         rt.Worker,
		Locker:          locker,
		Validator:       validation.New(),
		Fetcher:         ical.NewHTTPFetcher(cfg.CalendarFetchTimeout),
		Logger:          logger,
		DefaultCurrency: cfg.DefaultCurrency,
		SyncTimeout:     cfg.CalendarFetchTimeout,
		SyncConcurrency: cfg.CalendarSyncConcurrency,
		CancelMissing:   cfg.CalendarCancelMissing,
	})
	ok = true
	return rt, nil
}

func (rt *Runtime) openStorage(ctx context.Context) (storage, error) {
	cfg := rt.Config
	switch cfg.StorageDriver {
	case config.StorageMongo:
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return storage{}, fmt.Errorf("connect mongo: %w", err)
		}
		rt.closers = append(rt.closers, client.Close)
		if err := client.EnsureIndexes(ctx); err != nil {
			return storage{}, fmt.Errorf("mongo indexes: %w", err)
		}
		idem, err := mongostore.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
		if err != nil {
			return storage{}, fmt.Errorf("mongo idempotency store: %w", err)
		}
		factory := mongostore.NewFactory(client.DB)
		rt.readiness = append(rt.readiness, client.Ping)
		rt.Logger.Info("storage ready", "driver", cfg.StorageDriver, "database", cfg.MongoDB)
		return storage{factory: factory, idempotency: idem, queue: factory.OutboxStore}, nil

	case config.StoragePostgres:
		db, err := pgstore.Open(cfg.PostgresDSN)
		if err != nil {
			return storage{}, fmt.Errorf("connect postgres: %w", err)
		}
		rt.closers = append(rt.closers, func(context.Context) error { return pgstore.Close(db) })
		if err := pgstore.Migrate(ctx, db); err != nil {
			return storage{}, fmt.Errorf("postgres migrate: %w", err)
		}
		idem := pgstore.IdempotencyStore{DB: db, TTL: cfg.IdempotencyTTL}
		rt.Purge = func(ctx context.Context) error {
			n, err := idem.Purge(ctx)
			if err == nil && n > 0 {
				rt.Logger.Info("idempotency keys purged", "count", n)
			}
			return err
		}
		rt.readiness = append(rt.readiness, func(ctx context.Context) error { return pgstore.Ping(ctx, db) })
		rt.Logger.Info("storage ready", "driver", cfg.StorageDriver)
		return storage{factory: pgstore.Factory{DB: db}, idempotency: idem, queue: pgstore.OutboxQueue{DB: db}}, nil

	default:
		store := memory.NewStore()
		rt.readiness = append(rt.readiness, store.Ping)
		rt.Logger.Info("storage ready", "driver", config.StorageMemory)
		return storage{
			factory:     memory.Factory{Store: store},
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
			queue:       store.Outbox,
		}, nil
	}
}

func (rt *Runtime) openProducer() (infraoutbox.Producer, error) {
	cfg := rt.Config
	switch cfg.EventBroker {
	case config.BrokerKafka:
		p, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		rt.closers = append(rt.closers, func(context.Context) error { return p.Close() })
		return p, nil
	case config.BrokerRabbitMQ:
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, rabbitExchange)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return p.Close() })
		return p, nil
	default:
		return &infraoutbox.LogProducer{Logger: rt.Logger.With("component", "events")}, nil
	}
}

func (rt *Runtime) openLocker() policies.Locker {
	if rt.Config.RedisAddr == "" {
		return memory.NewLocker()
	}
	client := goredis.NewClient(&goredis.Options{Addr: rt.Config.RedisAddr})
	locker := redislock.NewLocker(client, rt.Config.LockTTL)
	rt.readiness = append(rt.readiness, locker.Ping)
	rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })
	return locker
}

// Ready checks every backing service.
func (rt *Runtime) Ready(ctx context.Context) error {
	for _, check := range rt.readiness {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases adapters in reverse order of opening.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	if err := errors.Join(errs...); err != nil {
		rt.Logger.Warn("shutdown incomplete", "err", err)
		return err
	}
	return nil
}

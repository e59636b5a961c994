package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"kitchen-sync/internal/common/config"
	"kitchen-sync/internal/common/httpx"
	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/connections/database"
	"kitchen-sync/internal/connections/kafka"
	"kitchen-sync/internal/connections/ordersapi"
	"kitchen-sync/internal/connections/rabbitmq"
	"kitchen-sync/internal/connections/redis"
	"kitchen-sync/internal/microservices/board/handler"
	"kitchen-sync/internal/microservices/board/metrics"
	"kitchen-sync/internal/microservices/board/models"
	"kitchen-sync/internal/microservices/board/notifier"
	"kitchen-sync/internal/microservices/board/repository"
	"kitchen-sync/internal/microservices/board/rules"
	"kitchen-sync/internal/microservices/board/service"
	"kitchen-sync/internal/microservices/board/view"
)

const drainTTL = 10 * time.Second

// Connect builds the orders API client and logs in when credentials are set.
func Connect(ctx context.Context, cfg *config.Config) (*ordersapi.Client, error) {
	client := ordersapi.New(cfg.API.BaseURL, cfg.API.Timeout, logger.New("ordersapi"))
	if cfg.API.Email != "" {
		if _, err := client.Login(ctx, cfg.API.Email, cfg.API.Password); err != nil {
			return nil, err
		}
	}
	return client, nil
}

// Serve runs the kitchen board until ctx is done.
func Serve(ctx context.Context, cfg *config.Config) error {
	lg := logger.New("kitchen-sync")

	client, err := Connect(ctx, cfg)
	if err != nil {
		return err
	}

	var pool *pgxpool.Pool
	if cfg.Database.Enabled() {
		if pool, err = database.Connect(ctx, cfg.Database); err != nil {
			return err
		}
		defer pool.Close()
		lg.Info("db_connected", map[string]any{"host": cfg.Database.Host, "database": cfg.Database.Database})
	}
	var rdb *goredis.Client
	if cfg.Redis.Enabled() {
		if rdb, err = redis.Connect(ctx, cfg.Redis); err != nil {
			return err
		}
		defer rdb.Close()
		lg.Info("redis_connected", map[string]any{"addr": cfg.Redis.Addr})
	}

	repo := repository.New(pool, rdb, cfg.Redis.InflightTTL)
	if repo.Journal != nil {
		if err := repo.Journal.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	hub := handler.NewHub()

	sinks := []service.EventSink{hub}
	if s, ok := repo.Journal.(service.EventSink); ok {
		sinks = append(sinks, s)
	}
	if cfg.RabbitMQ.Enabled() {
		rmq, err := rabbitmq.Dial(cfg.RabbitMQ)
		if err != nil {
			return err
		}
		defer rmq.Close()
		if err := rmq.DeclareFanout(notifier.Exchange); err != nil {
			return fmt.Errorf("declare %s: %w", notifier.Exchange, err)
		}
		sinks = append(sinks, notifier.NewRabbitPublisher(rmq))
		lg.Info("rabbitmq_connected", map[string]any{"host": cfg.RabbitMQ.Host, "vhost": cfg.RabbitMQ.VHost})
	}
	if cfg.Kafka.Enabled() {
		w := kafka.NewWriter(cfg.Kafka)
		defer w.Close()
		sinks = append(sinks, notifier.NewKafkaPublisher(w))
	}

	opts := []service.Option{
		service.WithSinks(sinks...),
		service.WithMetrics(m),
		service.WithLogger(lg),
		service.WithActor(cfg.Board.Actor),
	}
	if repo.Gate != nil {
		opts = append(opts, service.WithGate(repo.Gate))
	}
	coordinator := service.NewCoordinator(repo.Store, client, opts...)
	svc := service.New(coordinator, service.NewBoardService(client, coordinator, m, lg))

	bh := handler.NewBoardHandler(repo.Store, svc.Coordinator, svc.Board, repo.Journal, hub, lg)
	unsubscribe := repo.Store.Subscribe(bh.OnStoreChange)
	defer unsubscribe()
	go hub.Run(ctx)

	// the board starts empty when the backend is down; the refresher retries
	_ = svc.Board.Load(ctx)
	go svc.Board.RunRefresher(ctx, cfg.Board.RefreshInterval)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	lg.Info("service_started", map[string]any{"service": "kitchen-sync", "addr": addr, "api": cfg.API.BaseURL})
	srvErr := httpx.New(addr, handler.Router(handler.New(bh), reg, lg)).Run(ctx)

	dctx, cancel := context.WithTimeout(context.Background(), drainTTL)
	defer cancel()
	if err := svc.Coordinator.Drain(dctx); err != nil {
		lg.Warn("drain_incomplete", map[string]any{"err": err.Error()})
	}
	lg.Info("service_stopped", nil)
	return srvErr
}

// Snapshot fetches the active orders once and projects them.
func Snapshot(ctx context.Context, cfg *config.Config, table string) (view.Board, error) {
	client, err := Connect(ctx, cfg)
	if err != nil {
		return view.Board{}, err
	}
	store := repository.NewOrderStore()
	coordinator := service.NewCoordinator(store, client, service.WithLogger(logger.New("kitchen-sync")))
	if err := service.NewBoardService(client, coordinator, nil, logger.New("kitchen-sync")).Load(ctx); err != nil {
		return view.Board{}, err
	}
	return view.Project(view.ForTable(store.List(), table), coordinator.Pending), nil
}

// AdvanceOnce loads the board, applies one action and waits for the backend.
func AdvanceOnce(ctx context.Context, cfg *config.Config, orderID int64, action rules.Action) (models.Order, error) {
	client, err := Connect(ctx, cfg)
	if err != nil {
		return models.Order{}, err
	}
	lg := logger.New("kitchen-sync")
	store := repository.NewOrderStore()
	coordinator := service.NewCoordinator(store, client, service.WithLogger(lg), service.WithActor(cfg.Board.Actor))
	if err := service.NewBoardService(client, coordinator, nil, lg).Load(ctx); err != nil {
		return models.Order{}, err
	}
	t, err := coordinator.Advance(ctx, orderID, action)
	if err != nil {
		return models.Order{}, err
	}
	out, err := t.Wait(ctx)
	if err != nil {
		return models.Order{}, err
	}
	return out.Order, out.Err
}

// Subscribe consumes the status fanout and logs every event.
func Subscribe(ctx context.Context, cfg *config.Config) error {
	if !cfg.RabbitMQ.Enabled() {
		return errors.New("rabbitmq is not configured")
	}
	rmq, err := rabbitmq.Dial(cfg.RabbitMQ)
	if err != nil {
		return err
	}
	defer rmq.Close()
	if err := rmq.DeclareFanout(notifier.Exchange); err != nil {
		return err
	}
	deliveries, err := rmq.BindQueue(notifier.Queue, notifier.Exchange, "kitchen-sync-notify", 10)
	if err != nil {
		return err
	}
	lg := logger.New("notification-subscriber")
	lg.Info("service_started", map[string]any{"queue": notifier.Queue, "exchange": notifier.Exchange})
	return notifier.NewSubscriber(lg, nil).Run(ctx, deliveries)
}

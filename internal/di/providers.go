package di

import (
	"context"
	"fmt"
	"time"

	"HotelRevenue/internal/domain/models"
	domrepo "HotelRevenue/internal/domain/repository"
	"HotelRevenue/internal/domain/service"
	"HotelRevenue/internal/handler/api"
	internalrepo "HotelRevenue/internal/repository"
	"HotelRevenue/internal/service/ratelimit"
	"HotelRevenue/internal/services/export"
	"HotelRevenue/internal/services/forecasting"
	"HotelRevenue/internal/services/kpi"
	"HotelRevenue/internal/services/pricing"
	"HotelRevenue/internal/usecase"
	"HotelRevenue/pkg/cache"
	pkgch "HotelRevenue/pkg/clickhouse"
	"HotelRevenue/pkg/config"
	"HotelRevenue/pkg/database"
	xhttp "HotelRevenue/pkg/http"
	pkgkafka "HotelRevenue/pkg/kafka"
	applogger "HotelRevenue/pkg/logger"
	"HotelRevenue/pkg/metrics"
	"HotelRevenue/pkg/queue"
	"HotelRevenue/pkg/server"
)

// ProvideLogger builds the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient connects to ClickHouse and creates the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(context.Background(), pkgch.ClientConfig{
		Host:        cfg.ClickHouse.Host,
		Port:        cfg.ClickHouse.Port,
		Database:    cfg.ClickHouse.Database,
		User:        cfg.ClickHouse.User,
		Password:    cfg.ClickHouse.Password,
		UseHTTP:     cfg.ClickHouse.UseHTTP,
		DialTimeout: cfg.ClickHouse.DialTimeout,
		ReadTimeout: cfg.ClickHouse.ReadTimeout,
		MaxExecTime: cfg.ClickHouse.MaxExecutionTime,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideStore selects the persistence backend from store.driver and runs its
// schema setup.
func ProvideStore(cfg *config.Config, log *applogger.Logger) (domrepo.Store, func(), error) {
	var store domrepo.Store
	switch cfg.Store.Driver {
	case "memory":
		store = internalrepo.NewMemoryStore()
	case "clickhouse":
		client, err := ProvideClickHouseClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		store = internalrepo.NewClickHouseStore(client, log)
	case "sqlite", "postgres", "mysql":
		db, err := database.Open(database.Config{
			Driver:       cfg.Store.Driver,
			DSN:          cfg.Database.DSN,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			LogSQL:       cfg.Logging.Level == "debug",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		store = internalrepo.NewGormStore(db, cfg.Database.AutoMigrate)
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("store init: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Warn("store close error", applogger.Error(err))
		}
	}
	return store, cleanup, nil
}

// ProvideCache builds the KPI cache and run-lock holder. Redis-backed modes
// let several instances share the run lock.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	var c cache.Service
	switch cfg.Cache.Mode {
	case "memory":
		c = cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
	case "redis", "layered":
		rc, err := cache.NewRedisCache(context.Background(), redisConfig(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		c = rc
		if cfg.Cache.Mode == "layered" {
			c = cache.NewLayeredCache(rc,
				cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
				cache.WithLayeredL1TTL(cfg.Cache.KPITTL),
			)
		}
	default:
		return nil, nil, fmt.Errorf("unsupported cache mode %q", cfg.Cache.Mode)
	}
	return c, func() { _ = c.Close() }, nil
}

func redisConfig(cfg *config.Config) cache.RedisConfig {
	return cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	}
}

// ProvideKafkaProducer creates a Kafka producer, or nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) == 0 {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RequiredAcks: cfg.Kafka.RequiredAcks,
		Compression:  cfg.Kafka.Compression,
		MaxAttempts:  cfg.Kafka.Producer.MaxAttempts,
		WriteTimeout: cfg.Kafka.Producer.WriteTimeout,
		BatchSize:    cfg.Kafka.Producer.BatchSize,
		BatchBytes:   cfg.Kafka.Producer.BatchBytes,
		Linger:       cfg.Kafka.Producer.Linger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideEventPublisher publishes pipeline events to kafka when a producer exists.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer, log *applogger.Logger) domrepo.EventPublisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	if cfg.Logging.Collect {
		log.AddCollector(&applogger.CollectionConfig{
			Service:        "hotel-revenue",
			TimeInterval:   time.Minute,
			CountThreshold: 100,
			Topic:          cfg.Kafka.Topics.Logs,
			Publisher:      producer,
		})
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topics.Recommendations, cfg.Kafka.Topics.Exports)
}

// ProvideOccupancyModel selects the native seasonal model or the remote model service.
func ProvideOccupancyModel(cfg *config.Config) (service.OccupancyModel, error) {
	sc := forecasting.SeasonalConfigFrom(cfg.Forecasting)
	switch cfg.Forecasting.Model {
	case "remote":
		if cfg.Forecasting.RemoteURL == "" {
			return nil, fmt.Errorf("forecasting.remote_url is required for the remote model")
		}
		return forecasting.NewRemoteModel(cfg.Forecasting.RemoteURL, cfg.Forecasting.RemoteTimeout, sc), nil
	default:
		return forecasting.NewSeasonalModel(sc), nil
	}
}

// RoomTypes converts configured room types.
func RoomTypes(cfg *config.Config) []models.RoomType {
	out := make([]models.RoomType, 0, len(cfg.RoomTypes))
	for _, r := range cfg.RoomTypes {
		out = append(out, models.RoomType{ID: r.ID, Code: r.Code, Name: r.Name, Capacity: r.Capacity, Units: r.Units, BaseRate: r.BaseRate})
	}
	return out
}

// Channels converts the active configured channels.
func Channels(cfg *config.Config) []models.Channel {
	active := cfg.ActiveChannels()
	out := make([]models.Channel, 0, len(active))
	for _, ch := range active {
		out = append(out, models.Channel{Name: ch.Name, Commission: ch.Commission, Priority: ch.Priority, Active: true})
	}
	return out
}

func channelNames(chs []models.Channel) []string {
	out := make([]string, len(chs))
	for i, ch := range chs {
		out[i] = ch.Name
	}
	return out
}

func ProvideKPICalculator(cfg *config.Config, store domrepo.Store, log *applogger.Logger) *kpi.Calculator {
	return kpi.NewCalculator(store, models.SeasonCalendar(cfg.MonthSeasons()), log.With(applogger.String("component", "kpi")))
}

func ProvideForecastEngine(cfg *config.Config, store domrepo.Store, model service.OccupancyModel, m domrepo.Metrics, log *applogger.Logger) *forecasting.Engine {
	return forecasting.NewEngine(store, store, model, forecasting.EngineConfig{
		Horizon:       cfg.Forecasting.ForecastDays,
		Workers:       cfg.Forecasting.Workers,
		ProtectManual: cfg.Forecasting.ProtectManual,
	}, m, log.With(applogger.String("component", "forecasting")))
}

func ProvidePricingEngine(cfg *config.Config, store domrepo.Store, m domrepo.Metrics, log *applogger.Logger) (*pricing.Engine, error) {
	channels := Channels(cfg)
	defs, err := pricing.DefaultRules(cfg.Pricing, channels)
	if err != nil {
		return nil, fmt.Errorf("default pricing rules: %w", err)
	}
	return pricing.NewEngine(store, pricing.Config{
		Bounds:         pricing.Bounds{Min: cfg.Pricing.MinPriceFactor, Max: cfg.Pricing.MaxPriceFactor},
		DirectChannel:  cfg.Pricing.DirectChannel,
		DirectDiscount: cfg.Pricing.DirectChannelDiscount,
		Expand: pricing.ExpandConfig{
			Seasons:         models.SeasonCalendar(cfg.MonthSeasons()),
			DefaultSeason:   cfg.Pricing.DefaultSeason,
			DefaultBaseRate: cfg.Pricing.DefaultBaseRate,
		},
		Channels: channels,
		Defaults: defs,
	}, m, log.With(applogger.String("component", "pricing"))), nil
}

func ProvideExporter(cfg *config.Config, store domrepo.Store, log *applogger.Logger) *export.Exporter {
	return export.NewExporter(store, export.Config{
		Dir:      cfg.Export.Dir,
		Hotel:    cfg.Hotel.Name,
		Channels: channelNames(Channels(cfg)),
	}, log.With(applogger.String("component", "export")))
}

func ProvideRevenueUseCase(
	cfg *config.Config,
	store domrepo.Store,
	calc *kpi.Calculator,
	forecasts *forecasting.Engine,
	pricer *pricing.Engine,
	exporter *export.Exporter,
	events domrepo.EventPublisher,
	c cache.Service,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.RevenueUseCase {
	return usecase.NewRevenueUseCase(store, calc, forecasts, pricer, exporter, events, c, m, usecase.Config{
		ForecastDays: cfg.Forecasting.ForecastDays,
		HistoryDays:  cfg.Forecasting.HistoryDays,
		KPITTL:       cfg.Cache.KPITTL,
		RunLockTTL:   cfg.Cache.RunLockTTL,
	}, log)
}

// ProvideStatusConsumer wires the status topic consumer, or nil when kafka is disabled.
func ProvideStatusConsumer(cfg *config.Config, uc *usecase.RevenueUseCase, m domrepo.Metrics, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	opts := []pkgkafka.ConsumerOption{
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
	}
	if cfg.Kafka.Consumer.DLQTopic != "" {
		opts = append(opts, pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic))
	}
	consumer, err := pkgkafka.NewConsumer(log, opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewStatusHandler(cfg.Kafka.Topics.Status, uc, m, log))
	return consumer, nil
}

// ProvideRunQueue builds the background run queue, or nil when disabled.
func ProvideRunQueue(cfg *config.Config, uc *usecase.RevenueUseCase, log *applogger.Logger) (*queue.RedisQueue, func(), error) {
	if !cfg.Queue.Enabled {
		return nil, func() {}, nil
	}
	client, err := cache.Dial(context.Background(), redisConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("run queue: %w", err)
	}
	q := queue.NewRedisQueue(log.With(applogger.String("component", "queue")), queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
		StatusTTL:  cfg.Queue.StatusTTL,
	}, client, queue.WithKeyPrefix(cfg.Queue.KeyPrefix))
	q.RegisterJob(usecase.NewRunJob(uc, log))
	return q, func() { _ = client.Close() }, nil
}

// ProvideHTTPServer registers the revenue API on the shared echo server.
func ProvideHTTPServer(cfg *config.Config, uc *usecase.RevenueUseCase, runs *queue.RedisQueue, log *applogger.Logger) *xhttp.Server {
	var hopts []api.HandlerOption
	if cfg.Server.RateLimitBurst > 0 {
		hopts = append(hopts, api.WithRateLimit(ratelimit.New(cfg.Server.RateLimitBurst, cfg.Server.RateLimitPerSec)))
	}
	if runs != nil {
		hopts = append(hopts, api.WithRunQueue(runs))
	}

	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithRequestTimeout(cfg.Server.RequestTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	}
	return xhttp.NewServer(log, []xhttp.Handler{api.NewRevenueEchoHandler(log, uc, hopts...)}, opts...)
}

// ProvideApp creates the application.
func ProvideApp(cfg *config.Config, log *applogger.Logger, store domrepo.Store, uc *usecase.RevenueUseCase, srv *xhttp.Server, consumer *pkgkafka.Consumer, runs *queue.RedisQueue) *server.App {
	return server.New(cfg, log, store, uc, srv, consumer, runs, RoomTypes(cfg))
}

package di

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	domrepo "FinEdge/internal/domain/repository"
	"FinEdge/internal/handler/api"
	mid "FinEdge/internal/middleware"
	internalrepo "FinEdge/internal/repository"
	"FinEdge/internal/service/binance"
	"FinEdge/internal/services/features"
	"FinEdge/internal/services/positions"
	"FinEdge/internal/services/strategy"
	"FinEdge/internal/usecase"
	pkgcache "FinEdge/pkg/cache"
	pkgch "FinEdge/pkg/clickhouse"
	"FinEdge/pkg/config"
	xhttp "FinEdge/pkg/http"
	pkgkafka "FinEdge/pkg/kafka"
	applogger "FinEdge/pkg/logger"
	"FinEdge/pkg/metrics"
	"FinEdge/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) domrepo.Metrics {
	return metrics.NewWithRegisterer(reg)
}

// ProvideClickHouseClient creates a ClickHouse client and its schema.
// It returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideRedisCache connects to Redis. It returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.KeyPrefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

func ProvideCHStore(ch *pkgch.Client, l *applogger.Logger) *internalrepo.CHStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHStore(ch, l)
}

// ProvideSignalStore persists signals to ClickHouse, or only assigns ids
// when storage is disabled.
func ProvideSignalStore(store *internalrepo.CHStore) domrepo.SignalStore {
	if store == nil {
		return internalrepo.LocalSignalStore{}
	}
	return store
}

// ProvideArmStore prefers Redis snapshots and falls back to rebuilding arms
// from the ClickHouse performance table.
func ProvideArmStore(rc *pkgcache.RedisCache, store *internalrepo.CHStore, l *applogger.Logger) domrepo.ArmStore {
	switch {
	case rc != nil:
		return internalrepo.NewRedisArmStore(rc.Client(), rc.Prefix(), l)
	case store != nil:
		return store
	default:
		return nil
	}
}

// ProvideAsyncGateway wraps the ClickHouse store in the best-effort write
// queue. It returns nil when storage is disabled.
func ProvideAsyncGateway(
	cfg *config.Config,
	store *internalrepo.CHStore,
	rc *pkgcache.RedisCache,
	arms domrepo.ArmStore,
	m domrepo.Metrics,
	l *applogger.Logger,
) *internalrepo.AsyncGateway {
	if store == nil {
		return nil
	}
	opts := []internalrepo.AsyncOption{
		internalrepo.WithQueueSize(cfg.Persistence.QueueSize),
		internalrepo.WithWriteTimeout(cfg.Persistence.WriteTimeout),
		internalrepo.WithAsyncMetrics(m),
		internalrepo.WithAsyncLogger(l),
	}
	if rc != nil && arms != nil {
		opts = append(opts, internalrepo.WithArmSnapshots(arms))
	}
	return internalrepo.NewAsyncGateway(store, opts...)
}

// ProvideKafkaProducer creates a Kafka producer. It returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher publishes signals and exits to Kafka when a producer exists.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.EventPublisher {
	if producer == nil {
		return domrepo.Noop{}
	}
	return internalrepo.NewKafkaEvents(producer, cfg.Kafka.SignalsTopic, cfg.Kafka.ExitsTopic)
}

func ProvideFeatureEngine(cfg *config.Config, gw *internalrepo.AsyncGateway, l *applogger.Logger) *features.Engine {
	opts := []features.Option{
		features.WithMaxHistory(cfg.Engine.Features.MaxHistory),
		features.WithBaseSymbol(cfg.Engine.Features.BaseSymbol),
		features.WithLogger(l),
	}
	if gw != nil {
		opts = append(opts, features.WithFeatureSink(gw))
	}
	return features.NewEngine(opts...)
}

func ProvideOrchestrator(
	cfg *config.Config,
	store domrepo.SignalStore,
	gw *internalrepo.AsyncGateway,
	m domrepo.Metrics,
	l *applogger.Logger,
) *strategy.Orchestrator {
	sc := cfg.Engine.Strategy
	scfg := strategy.DefaultConfig()
	scfg.ExplorationRate = sc.ExplorationRate
	scfg.MinConfidence = sc.MinConfidence
	scfg.MaxSignalsPerSymbol = sc.MaxSignalsPerSymbol
	scfg.SignalCooldown = sc.SignalCooldown
	scfg.SignalWindow = sc.SignalWindow
	scfg.SaveTimeout = sc.SaveTimeout

	opts := []strategy.Option{strategy.WithMetrics(m), strategy.WithLogger(l)}
	if sc.Seed != 0 {
		opts = append(opts, strategy.WithRandomSource(rand.New(rand.NewSource(sc.Seed))))
	}
	if gw != nil {
		opts = append(opts, strategy.WithPerformanceSink(gw))
	}
	return strategy.NewOrchestrator(scfg, store, opts...)
}

func ProvidePositionEngine(cfg *config.Config, gw *internalrepo.AsyncGateway, m domrepo.Metrics, l *applogger.Logger) *positions.Engine {
	pc := cfg.Engine.Positions
	opts := []positions.Option{positions.WithMetrics(m), positions.WithLogger(l)}
	if gw != nil {
		opts = append(opts, positions.WithPositionSink(gw))
	}
	return positions.NewEngine(positions.Config{
		MaxPositions:          pc.MaxPositions,
		MaxPerSymbol:          pc.MaxPerSymbol,
		StopLossPct:           pc.StopLossPct,
		TakeProfitMultiplier:  pc.TakeProfitMultiplier,
		ATRPeriod:             pc.ATRPeriod,
		TrailingStopPct:       pc.TrailingStopPct,
		EdgeDecayRate:         pc.EdgeDecayRate,
		MinPositionAge:        pc.MinPositionAge,
		EdgeDecayGrace:        pc.EdgeDecayGrace,
		UpdatePersistInterval: pc.UpdatePersistInterval,
		ClosedHistory:         pc.ClosedHistory,
	}, opts...)
}

func ProvideTradingEngine(
	cfg *config.Config,
	fe *features.Engine,
	orch *strategy.Orchestrator,
	pe *positions.Engine,
	pub domrepo.EventPublisher,
	arms domrepo.ArmStore,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.TradingEngine {
	return usecase.NewTradingEngine(
		usecase.EngineConfig{
			AccountEquity:       cfg.Engine.AccountEquity,
			RiskPerTrade:        cfg.Engine.Positions.RiskPerTrade,
			MaintenanceInterval: cfg.Engine.MaintenanceInterval,
			PublishTimeout:      cfg.Engine.PublishTimeout,
			PublishQueueSize:    cfg.Engine.PublishQueueSize,
			Symbols:             cfg.Feed.Symbols,
		},
		fe, orch, pe,
		usecase.WithEventPublisher(pub),
		usecase.WithArmStore(arms),
		usecase.WithEngineMetrics(m),
		usecase.WithEngineLogger(l),
	)
}

// ProvidePipeline builds the validation and throttling stage in front of the engine.
func ProvidePipeline(cfg *config.Config, engine *usecase.TradingEngine, m domrepo.Metrics, l *applogger.Logger) *mid.RealtimePipeline {
	return mid.NewRealtimePipeline(engine, m,
		mid.WithMaxRPS(cfg.Feed.MaxRPS),
		mid.WithBufferSize(cfg.Feed.BufferSize),
		mid.WithPipelineLogger(l),
	)
}

// ProvideMarketCollector reads the Binance websocket. It returns nil when
// the feed comes from Kafka.
func ProvideMarketCollector(cfg *config.Config, pipe *mid.RealtimePipeline, m domrepo.Metrics, l *applogger.Logger) *usecase.MarketCollector {
	if cfg.Feed.Source != "binance" {
		return nil
	}
	stream := binance.New(cfg.Feed.WebSocketURL, cfg.Feed.Symbols,
		binance.WithDepthSymbols(cfg.Feed.DepthSymbols),
		binance.WithTiming(cfg.Feed.ReconnectDelay, cfg.Feed.PingInterval),
		binance.WithBufferSize(cfg.Feed.BufferSize),
		binance.WithLogger(l),
	)
	return usecase.NewMarketCollector(stream, pipe, m, l)
}

// ProvideKafkaConsumer creates the ticks consumer. It returns nil unless
// feed.source is kafka.
func ProvideKafkaConsumer(cfg *config.Config, reg *prometheus.Registry, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Feed.Source != "kafka" {
		return nil, nil
	}
	cc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cc.GroupID),
		pkgkafka.WithConsumerWorkers(cc.Workers),
		pkgkafka.WithConsumerBufferSize(cc.BufferSize),
		pkgkafka.WithConsumerRetry(cc.RetryMax, cc.BackoffMin, cc.BackoffMax),
		pkgkafka.WithConsumerFetch(cc.MinBytes, cc.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaTicksHandler feeds the ticks topic into the pipeline.
func ProvideKafkaTicksHandler(cfg *config.Config, pipe *mid.RealtimePipeline, m domrepo.Metrics) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.TicksTopic, pipe, m)
}

// ProvideAnalyticsCache caches analytics reads in Redis when it is enabled,
// in process otherwise.
func ProvideAnalyticsCache(rc *pkgcache.RedisCache) pkgcache.Service {
	if rc != nil {
		return rc
	}
	return pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(time.Minute))
}

func ProvideHTTPHandler(
	cfg *config.Config,
	engine *usecase.TradingEngine,
	store *internalrepo.CHStore,
	cache pkgcache.Service,
	l *applogger.Logger,
) *api.EngineHandler {
	opts := []api.HandlerOption{api.WithRateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)}
	if store != nil {
		opts = append(opts, api.WithAnalytics(store, cache, cfg.Persistence.CacheTTL))
	}
	return api.NewEngineHandler(l, engine, opts...)
}

func ProvideHTTPServer(
	cfg *config.Config,
	h *api.EngineHandler,
	reg *prometheus.Registry,
	ch *pkgch.Client,
	rc *pkgcache.RedisCache,
	collector *usecase.MarketCollector,
	l *applogger.Logger,
) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, reg, reg))
	} else {
		opts = append(opts, xhttp.WithMetrics("", nil, nil))
	}
	if ch != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", ch.Health))
	}
	if rc != nil {
		opts = append(opts, xhttp.WithHealthCheck("redis", func(ctx context.Context) error {
			return rc.Client().Ping(ctx).Err()
		}))
	}
	if collector != nil {
		opts = append(opts, xhttp.WithHealthCheck("feed", func(context.Context) error {
			if !collector.IsConnected() {
				return errors.New("websocket disconnected")
			}
			return nil
		}))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	engine *usecase.TradingEngine,
	collector *usecase.MarketCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	httpServer *xhttp.Server,
	gw *internalrepo.AsyncGateway,
	pub domrepo.EventPublisher,
	ch *pkgch.Client,
	rc *pkgcache.RedisCache,
	cache pkgcache.Service,
	l *applogger.Logger,
) *server.App {
	deps := server.Deps{
		Engine:    engine,
		Collector: collector,
		Consumer:  consumer,
		HTTP:      httpServer,
		Persist:   gw,
		Events:    pub,
		Logger:    l,
	}
	if consumer != nil {
		deps.Ticks = kh
	}
	if _, ok := cache.(*pkgcache.MemoryCache); ok {
		deps.Closers = append(deps.Closers, server.Closer{Name: "memory cache", Close: cache.Close})
	}
	if rc != nil {
		deps.Closers = append(deps.Closers, server.Closer{Name: "redis", Close: rc.Close})
	}
	if ch != nil {
		deps.Closers = append(deps.Closers, server.Closer{Name: "clickhouse", Close: ch.Close})
	}
	return server.New(cfg, deps)
}

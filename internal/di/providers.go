package di

import (
	"context"
	"fmt"
	"time"

	"AaveRisk/internal/handler/api"
	internalrepo "AaveRisk/internal/repository"
	"AaveRisk/internal/service/coingecko"
	"AaveRisk/internal/service/ratelimit"
	"AaveRisk/internal/services/reserves"
	"AaveRisk/internal/usecase"
	"AaveRisk/pkg/cache"
	pkgch "AaveRisk/pkg/clickhouse"
	"AaveRisk/pkg/config"
	xhttp "AaveRisk/pkg/http"
	pkgkafka "AaveRisk/pkg/kafka"
	applogger "AaveRisk/pkg/logger"
	"AaveRisk/pkg/metrics"
	pkgpg "AaveRisk/pkg/postgres"
	"AaveRisk/pkg/queue"
	"AaveRisk/pkg/scheduler"
	"AaveRisk/pkg/server"
)

const initTimeout = 10 * time.Second

// ProvideLogger creates the application logger from the log section. When
// the collector is enabled, error logs are aggregated onto a Kafka topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			Service:        "aaverisk",
			Environment:    cfg.Environment,
			TimeInterval:   cfg.Log.Collector.FlushInterval,
			CountThreshold: cfg.Log.Collector.MaxBatch,
			Topic:          cfg.Log.Collector.Topic,
			Publisher:      producer,
		})
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5, 5*time.Minute),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSeriesStore creates the OHLC store and ensures its table.
func ProvideSeriesStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (*internalrepo.CHSeriesStore, error) {
	store := internalrepo.NewCHSeriesStore(ch, cfg.ClickHouse.Database, cfg.ClickHouse.Table)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvidePostgresClient connects to the registry database and ensures its schema.
func ProvidePostgresClient(cfg *config.Config) (*pkgpg.Client, error) {
	client, err := pkgpg.NewClient(
		pkgpg.WithDSN(cfg.PostgresDSN()),
		pkgpg.WithPool(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns, cfg.Postgres.ConnMaxLifetime),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := client.InitSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return client, nil
}

func ProvideMarketRegistry(pg *pkgpg.Client, l *applogger.Logger) *internalrepo.PGMarketRegistry {
	r := internalrepo.NewPGMarketRegistry(pg)
	r.SetLogger(l)
	return r
}

func ProvideAddressBook(cfg *config.Config) *internalrepo.StaticAddressBook {
	return internalrepo.NewAddressBookFromConfig(cfg)
}

// ProvideRedisCache connects to Redis. It returns nil when Redis is disabled;
// the layered cache then runs memory only.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
		cache.WithRedisPrefix("aaverisk"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

func ProvideLayeredCache(rc *cache.RedisCache) *cache.LayeredCache {
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(2000),
		cache.WithLayeredMemoryTTL(10*time.Minute),
	)
}

// ProvideKafkaProducer creates a Kafka producer. It returns nil when no
// brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideCandleSink routes candles to ClickHouse or to the candles topic.
func ProvideCandleSink(producer *pkgkafka.Producer, store *internalrepo.CHSeriesStore, rec *metrics.Recorder, cfg *config.Config) *usecase.CandleSink {
	if producer == nil {
		return usecase.NewCandleSink(nil, store, rec, cfg.Backend.Type)
	}
	return usecase.NewCandleSink(internalrepo.NewKafkaCandlePublisher(producer, cfg.Kafka.CandlesTopic), store, rec, cfg.Backend.Type)
}

// ProvideKafkaConsumer creates the candle consumer. It returns nil unless
// kafka.consumer.enabled is set.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers, cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l)
	consumer.SetHook(pkgkafka.NewHookChain(pkgkafka.LoggingHook{Logger: l}))
	return consumer, nil
}

// ProvideKafkaCandlesHandler stores candles read from the candles topic.
func ProvideKafkaCandlesHandler(store *internalrepo.CHSeriesStore, rec *metrics.Recorder, cfg *config.Config) *usecase.KafkaCandlesHandler {
	return usecase.NewKafkaCandlesHandler(cfg.Kafka.CandlesTopic, store, rec)
}

// ProvideCoinCatalogue creates the CoinGecko client. The coin list is cached
// in the layered cache.
func ProvideCoinCatalogue(cfg *config.Config, lc *cache.LayeredCache, l *applogger.Logger) *coingecko.Client {
	hc := xhttp.NewClient(
		xhttp.WithBaseURL(cfg.Coingecko.BaseURL),
		xhttp.WithTimeout(cfg.Coingecko.Timeout),
		xhttp.WithRetry(cfg.Coingecko.RetryAttempts, time.Second),
		xhttp.WithHeader("Accept", "application/json"),
	)
	return coingecko.New(hc, lc, ratelimit.New(),
		coingecko.WithAPIKey(cfg.Coingecko.APIKey),
		coingecko.WithCoinsListTTL(cfg.Coingecko.CoinsListTTL),
		coingecko.WithRateLimit(cfg.Coingecko.RatePerSec, cfg.Coingecko.Burst),
		coingecko.WithLogger(l),
	)
}

func ProvideReserveGateway(cfg *config.Config, l *applogger.Logger) *internalrepo.ReserveGateway {
	g := internalrepo.NewReserveGatewayFromURL(cfg.ReserveReader.BaseURL, cfg.ReserveReader.Timeout, cfg.ReserveReader.RetryAttempts)
	g.SetLogger(l)
	return g
}

func ProvideBandUseCase(store *internalrepo.CHSeriesStore, cfg *config.Config, l *applogger.Logger) *usecase.BandUseCase {
	uc := usecase.NewBandUseCase(store, cfg.Scenario.BollingerWindow, cfg.Scenario.BollingerMultiplier)
	uc.SetLogger(l)
	return uc
}

// ProvideMarketStatusUseCase assembles the stress scenario pipeline.
func ProvideMarketStatusUseCase(
	cfg *config.Config,
	book *internalrepo.StaticAddressBook,
	gateway *internalrepo.ReserveGateway,
	bands *usecase.BandUseCase,
	registry *internalrepo.PGMarketRegistry,
	rec *metrics.Recorder,
	l *applogger.Logger,
) *usecase.MarketStatusUseCase {
	return usecase.NewMarketStatusUseCase(
		book,
		gateway,
		reserves.NewClassifier(),
		bands,
		reserves.NewScenarioCalculator(cfg.Scenario.SafetyMultiplier),
		usecase.WithScenarioTimeout(cfg.Scenario.Timeout),
		usecase.WithBandConcurrency(cfg.Scenario.BandConcurrency),
		usecase.WithStatusRegistry(registry),
		usecase.WithStatusMetrics(rec),
		usecase.WithStatusLogger(l),
	)
}

// ProvideOHLCIngestion creates the daily ingestion. The layered cache doubles
// as the cross-instance lock.
func ProvideOHLCIngestion(
	cfg *config.Config,
	book *internalrepo.StaticAddressBook,
	catalogue *coingecko.Client,
	sink *usecase.CandleSink,
	lc *cache.LayeredCache,
	registry *internalrepo.PGMarketRegistry,
	rec *metrics.Recorder,
	l *applogger.Logger,
) *usecase.OHLCIngestion {
	return usecase.NewOHLCIngestion(book, catalogue, sink,
		usecase.WithInterAssetDelay(cfg.Ingestion.InterAssetDelay),
		usecase.WithMarketChartDays(cfg.Ingestion.MarketChartDays),
		usecase.WithVsCurrency(cfg.Ingestion.VsCurrency),
		usecase.WithLocker(lc, cfg.Ingestion.LockTTL),
		usecase.WithIngestionRegistry(registry),
		usecase.WithIngestionMetrics(rec),
		usecase.WithIngestionLogger(l),
	)
}

func ProvideHistoricalPricesUseCase(store *internalrepo.CHSeriesStore, sink *usecase.CandleSink, bands *usecase.BandUseCase) *usecase.HistoricalPricesUseCase {
	return usecase.NewHistoricalPricesUseCase(store, sink, bands)
}

// ProvideRefreshQueue creates the Redis job queue that runs single market
// refreshes. It returns nil when Redis is disabled.
func ProvideRefreshQueue(rc *cache.RedisCache, cfg *config.Config, ingestion *usecase.OHLCIngestion, l *applogger.Logger) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(rc.Client(), queue.Config{
		Workers:       cfg.Queue.Workers,
		RetryLimit:    cfg.Queue.MaxRetries,
		RetryDelay:    cfg.Queue.RetryDelay,
		MaxRetryDelay: cfg.Queue.MaxRetryDelay,
		PollInterval:  cfg.Queue.PollInterval,
		DeadLetterMax: cfg.Queue.DeadLetterMax,
	}, queue.WithKeyPrefix("aaverisk:queue:"+cfg.Queue.Name), queue.WithLogger(l))
	if err := q.Register(usecase.NewRefreshMarketJob(ingestion, l)); err != nil {
		l.Error("register refresh job", applogger.Error(err))
	}
	return q
}

func ProvideMarketRefresher(q *queue.RedisQueue) *usecase.MarketRefresher {
	if q == nil {
		return usecase.NewMarketRefresher(nil)
	}
	return usecase.NewMarketRefresher(q)
}

func ProvideScheduler(l *applogger.Logger) *scheduler.Scheduler {
	return scheduler.New(scheduler.WithLogger(l))
}

func ProvideAaveMarketsHandler(l *applogger.Logger, uc *usecase.MarketStatusUseCase) *api.AaveMarketsHandler {
	return api.NewAaveMarketsHandler(l, uc)
}

func ProvideHistoricalPricesHandler(l *applogger.Logger, uc *usecase.HistoricalPricesUseCase) *api.HistoricalPricesHandler {
	return api.NewHistoricalPricesHandler(l, uc)
}

// ProvideIngestionHandler reports the next run of the daily task on the status route.
func ProvideIngestionHandler(
	l *applogger.Logger,
	ingestion *usecase.OHLCIngestion,
	refresher *usecase.MarketRefresher,
	book *internalrepo.StaticAddressBook,
	sched *scheduler.Scheduler,
) *api.IngestionHandler {
	h := api.NewIngestionHandler(l, ingestion, refresher, book)
	h.SetNextRun(func() (string, bool) {
		next, ok := sched.Next(server.DailyOHLCTask)
		if !ok {
			return "", false
		}
		return next.UTC().Format(time.RFC3339), true
	})
	return h
}

// ProvideHTTPServer mounts the API handlers with readiness checks on every store.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	markets *api.AaveMarketsHandler,
	prices *api.HistoricalPricesHandler,
	ingestion *api.IngestionHandler,
	store *internalrepo.CHSeriesStore,
	registry *internalrepo.PGMarketRegistry,
	rc *cache.RedisCache,
) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithSlowThreshold(cfg.Server.SlowRequest),
		xhttp.WithHealthCheck("clickhouse", store.Health),
		xhttp.WithHealthCheck("postgres", registry.Health),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	if rc != nil {
		opts = append(opts, xhttp.WithHealthCheck("redis", func(ctx context.Context) error {
			return rc.Client().Ping(ctx).Err()
		}))
	}
	return xhttp.NewServer([]xhttp.Handler{markets, prices, ingestion}, opts...)
}

// ProvideApp assembles the application lifecycle.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	sched *scheduler.Scheduler,
	ingestion *usecase.OHLCIngestion,
	q *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	candlesHandler *usecase.KafkaCandlesHandler,
	sink *usecase.CandleSink,
	ch *pkgch.Client,
	pg *pkgpg.Client,
	lc *cache.LayeredCache,
) *server.App {
	app := server.New(cfg, l, httpServer, sched, ingestion)
	if q != nil {
		app.SetQueue(q)
	}
	if consumer != nil {
		app.SetConsumer(consumer, candlesHandler)
	}
	app.AddCloser("candle sink", func() error {
		sink.Close()
		return nil
	})
	app.AddCloser("cache", lc.Close)
	app.AddCloser("postgres", pg.Close)
	app.AddCloser("clickhouse", ch.Close)
	return app
}

package di

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"TradePulse/internal/domain/repository"
	"TradePulse/internal/engine/arbiter"
	"TradePulse/internal/handler/api"
	mid "TradePulse/internal/middleware"
	internalrepo "TradePulse/internal/repository"
	"TradePulse/internal/service/binance"
	icache "TradePulse/internal/service/cache"
	"TradePulse/internal/service/telegram"
	"TradePulse/internal/usecase"
	pkgcache "TradePulse/pkg/cache"
	pkgch "TradePulse/pkg/clickhouse"
	"TradePulse/pkg/config"
	xhttp "TradePulse/pkg/http"
	pkgkafka "TradePulse/pkg/kafka"
	applogger "TradePulse/pkg/logger"
	"TradePulse/pkg/metrics"
	pkgqueue "TradePulse/pkg/queue"
	"TradePulse/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment != "production" {
		level = "debug"
		format = "console"
	}
	l, err := applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// engine schema exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
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

	if err := internalrepo.InitSchema(ctx, client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideCacheService creates the layered cache service backing the
// mutable state store. Locks and counters always hit Redis, so dedup
// stays correct; only plain reads are served from the L1.
func ProvideCacheService(cfg *config.Config) (pkgcache.Service, error) {
	host, port := splitAddr(cfg.Redis.Addr)
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(c), nil
}

func splitAddr(addr string) (string, int) {
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideBytesCache creates the raw-bytes cache used for threshold
// overrides, exchangeInfo caching and HTTP response caching.
func ProvideBytesCache(cfg *config.Config) icache.BytesCache {
	if cfg.Redis.Addr != "" {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideStateStore creates the Redis-backed mutable state store.
func ProvideStateStore(c pkgcache.Service) repository.StateStore {
	return internalrepo.NewCacheStateStore(c)
}

// ProvideKlineStore creates the ClickHouse kline store.
func ProvideKlineStore(chClient *pkgch.Client) repository.KlineStore {
	return internalrepo.NewCHKlineStore(chClient)
}

// ProvideSignalLog creates the ClickHouse signal/trade log.
func ProvideSignalLog(chClient *pkgch.Client) repository.SignalLog {
	return internalrepo.NewCHSignalLog(chClient)
}

// ProvideKafkaProducer creates a Kafka producer partitioned by symbol
// so per-symbol event order is preserved.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
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
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher creates the Kafka bar-close event bus.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config, l *applogger.Logger) repository.EventPublisher {
	bus := internalrepo.NewKafkaEventBus(producer, cfg.Kafka.Topic)
	bus.SetLogger(l)
	return bus
}

// ProvideKafkaConsumer creates the decision-event consumer.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideExchange creates the Binance futures client with cached
// symbol filters.
func ProvideExchange(cfg *config.Config, bc icache.BytesCache, l *applogger.Logger) repository.Exchange {
	client := binance.New(
		cfg.Binance.BaseURL,
		cfg.Binance.APIKey,
		cfg.Binance.APISecret,
		cfg.Binance.Timeout,
		binance.WithLogger(l),
		binance.WithRecvWindow(int64(cfg.Binance.RecvWindowMS)),
	)
	return binance.NewCachedExchange(client, bc)
}

// ProvideMarketStream creates the Binance continuous-kline WebSocket
// stream for the configured symbols and timeframes.
func ProvideMarketStream(cfg *config.Config, l *applogger.Logger) repository.MarketStream {
	tfs := make([]repository.Timeframe, 0, len(cfg.Engine.Timeframes))
	for _, s := range cfg.Engine.Timeframes {
		tfs = append(tfs, repository.NormalizeTimeframe(s))
	}
	return binance.NewKlineStream(
		cfg.Binance.WebSocketURL,
		cfg.Engine.Symbols,
		tfs,
		cfg.Binance.ReconnectDelay,
		cfg.Binance.PingInterval,
		l,
	)
}

// ProvideNotifier creates the Telegram notifier. Disabled config
// yields a no-op notifier. With Redis available, sends go through the
// job queue so delivery retries stay off the decision path.
func ProvideNotifier(cfg *config.Config, svc pkgcache.Service, l *applogger.Logger) repository.Notifier {
	if !cfg.Telegram.Enabled {
		return telegram.New("", "", l)
	}
	direct := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.ChatID, l)

	rc, ok := svc.(interface{ Client() *redis.Client })
	if !ok {
		return direct
	}
	q := pkgqueue.NewRedisQueue(l, &pkgqueue.QueueConfig{
		Workers:    1,
		RetryLimit: 3,
		RetryDelay: 5 * time.Second,
	}, rc.Client(), pkgqueue.ModeProducerConsumer, pkgqueue.WithKeyPrefix("tradepulse:notify"))
	q.RegisterJob(telegram.NewSendJob(direct))
	if err := q.Start(); err != nil {
		l.Warn("notify queue start failed; sending direct", applogger.Error(err))
		return direct
	}
	q.StartRetryProcessor()

	n := telegram.NewQueued(q, direct, l)
	n.SetCloseFunc(q.Stop)
	return n
}

// ProvideAdminState creates the operator control state.
func ProvideAdminState(store repository.StateStore, cfg *config.Config) *usecase.AdminState {
	return usecase.NewAdminState(store, cfg.Engine.TradeEnabled)
}

// ProvideThresholds creates the arbiter threshold profiles, hydrated
// with persisted overrides.
func ProvideThresholds(bc icache.BytesCache, l *applogger.Logger) *arbiter.Thresholds {
	th := arbiter.NewThresholds()
	if err := internalrepo.NewThresholdStore(bc).Hydrate(th); err != nil {
		l.Warn("threshold hydrate failed", applogger.Error(err))
	}
	return th
}

// ProvideThresholdStore creates the threshold override persistence.
func ProvideThresholdStore(bc icache.BytesCache) *internalrepo.ThresholdStore {
	return internalrepo.NewThresholdStore(bc)
}

// ProvideArbiter creates the regime arbitration controller.
func ProvideArbiter(store repository.StateStore, th *arbiter.Thresholds, l *applogger.Logger) *arbiter.Controller {
	return arbiter.NewController(store, th, l)
}

// ProvideExecution creates the order execution service.
func ProvideExecution(
	ex repository.Exchange,
	store repository.StateStore,
	siglog repository.SignalLog,
	notify repository.Notifier,
	m repository.Metrics,
	admin *usecase.AdminState,
	l *applogger.Logger,
) *usecase.Execution {
	return usecase.NewExecution(ex, store, siglog, notify, m, admin, l)
}

// ProvideDecisionWorker creates the per-bar decision worker. The
// exchange doubles as the candle source so decisions always see the
// venue's latest closed bars.
func ProvideDecisionWorker(
	ex repository.Exchange,
	store repository.StateStore,
	siglog repository.SignalLog,
	exec *usecase.Execution,
	admin *usecase.AdminState,
	notify repository.Notifier,
	m repository.Metrics,
	arb *arbiter.Controller,
	l *applogger.Logger,
) *usecase.DecisionWorker {
	w := usecase.NewDecisionWorker(ex, store, siglog, exec, admin, notify, m, l)
	w.SetArbiter(arb)
	return w
}

// ProvideBarCloseHandler registers the decision worker on the
// bar-close topic.
func ProvideBarCloseHandler(worker *usecase.DecisionWorker, m repository.Metrics, cfg *config.Config) *usecase.BarCloseHandler {
	return usecase.NewBarCloseHandler(cfg.Kafka.Topic, worker, m)
}

// ProvideBarCollector creates the WebSocket bar collector feeding the
// event bus through the buffering pipeline.
func ProvideBarCollector(
	stream repository.MarketStream,
	pub repository.EventPublisher,
	m repository.Metrics,
) *usecase.BarCollector {
	pipe := mid.NewRealtimePipeline(usecase.NewPublisherProc(pub), m,
		mid.WithBufferSize(2000),
	)
	return usecase.NewBarCollector(stream, pub, m, pipe)
}

// ProvideCandlesUseCase creates the stored-candles query use case.
func ProvideCandlesUseCase(store repository.KlineStore) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(store)
}

// ProvideEngineSnapshot creates the unified dashboard snapshot use
// case.
func ProvideEngineSnapshot(
	ex repository.Exchange,
	store repository.StateStore,
	siglog repository.SignalLog,
	admin *usecase.AdminState,
) *usecase.EngineSnapshotUseCase {
	return usecase.NewEngineSnapshotUseCase(ex, store, siglog, admin)
}

// ProvideHTTPHandler assembles every HTTP route.
func ProvideHTTPHandler(
	cfg *config.Config,
	l *applogger.Logger,
	store repository.StateStore,
	pub repository.EventPublisher,
	admin *usecase.AdminState,
	snapshot *usecase.EngineSnapshotUseCase,
	th *arbiter.Thresholds,
	thStore *internalrepo.ThresholdStore,
	candles *usecase.CandlesUseCase,
	siglog repository.SignalLog,
	bc icache.BytesCache,
) xhttp.Handler {
	webhook := api.NewWebhookEchoHandler(l, store, pub, cfg.Engine.WebhookSecret)
	adminH := api.NewAdminEchoHandler(l, admin, snapshot, store, th, thStore, cfg.Engine.AdminSecret)
	dashboard := api.NewDashboardEchoHandler(l, candles, siglog)
	dashboard.SetCache(bc)
	return api.NewRoutes(webhook, adminH, dashboard)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	collector *usecase.BarCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.BarCloseHandler,
	chClient *pkgch.Client,
	handler xhttp.Handler,
	pub repository.EventPublisher,
	notify repository.Notifier,
	l *applogger.Logger,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, collector, consumer, kh, chClient, handler, l)
	if bus, ok := pub.(*internalrepo.KafkaEventBus); ok {
		app.AddCloser(bus)
	}
	if c, ok := notify.(server.Closer); ok {
		app.AddCloser(c)
	}
	return app
}

package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"security-monitor/internal/config"
	"security-monitor/internal/detect"
	"security-monitor/internal/event"
	"security-monitor/internal/geo"
	"security-monitor/internal/monitor"
	"security-monitor/internal/sink"
	"security-monitor/internal/util"
)

// Factory manages the lifecycle of all application dependencies.
type Factory struct {
	config *config.Config

	redisClient *redis.Client
	store       detect.CounterStore
	memoryStore *detect.MemoryStore
	suspicious  *detect.SuspiciousIPs
	audit       *sink.AuditLog
	sinks       []sink.Sink
	monitor     *monitor.Monitor

	closeOnce sync.Once
}

// NewFactory creates and initializes all application dependencies.
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()
	util.Init(cfg.Environment, "info")

	f := &Factory{config: cfg}

	if cfg.Redis.URL != "" {
		client, err := newRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		f.redisClient = client
	}

	if err := f.initDetection(); err != nil {
		return nil, err
	}
	if err := f.initSinks(); err != nil {
		return nil, err
	}

	resolver := f.newGeoResolver()
	enricher := event.NewEnricher(cfg.ServiceName, resolver)
	engine := detect.NewEngine(cfg.Detection, f.store, f.suspicious)
	dispatcher := sink.NewDispatcher(f.sinks, f.audit, cfg.Sinks.Timeout)
	f.monitor = monitor.New(cfg.Detection, enricher, engine, dispatcher)

	util.Info("Security monitor initialized",
		util.String("environment", cfg.Environment),
		util.String("counter_store", cfg.Detection.CounterStore),
		util.Any("sinks", dispatcher.Sinks()),
	)

	return f, nil
}

func (f *Factory) Config() *config.Config    { return f.config }
func (f *Factory) Monitor() *monitor.Monitor { return f.monitor }

func (f *Factory) initDetection() error {
	cfg := f.config.Detection

	switch cfg.CounterStore {
	case "redis":
		if f.redisClient == nil {
			return fmt.Errorf("counter store %q requires REDIS_URL", cfg.CounterStore)
		}
		f.store = detect.NewRedisStore(f.redisClient)
	default:
		f.memoryStore = detect.NewMemoryStore(cfg.CounterShards, cfg.BruteForceWindow, cfg.RateLimitWindow)
		f.store = f.memoryStore
	}

	f.suspicious = detect.NewSuspiciousIPs(f.redisClient)
	return nil
}

// initSinks builds an adapter per configured vendor. An empty endpoint
// disables that vendor; with nothing configured the dispatcher reduces to
// the local audit write.
func (f *Factory) initSinks() error {
	cfg := f.config

	audit, err := sink.NewAuditLog(cfg.Audit)
	if err != nil {
		return fmt.Errorf("failed to initialize audit log: %w", err)
	}
	f.audit = audit

	if cfg.Sinks.Splunk.Endpoint != "" {
		f.sinks = append(f.sinks, sink.NewSplunkSink(cfg.Sinks.Splunk))
	}
	if cfg.Sinks.Elastic.URL != "" {
		es, err := sink.NewElasticSink(cfg.Sinks.Elastic)
		if err != nil {
			return fmt.Errorf("failed to initialize elasticsearch sink: %w", err)
		}
		f.sinks = append(f.sinks, es)
	}
	if cfg.Sinks.Azure.Endpoint != "" {
		f.sinks = append(f.sinks, sink.NewAzureSink(cfg.Sinks.Azure))
	}
	if cfg.Sinks.Sumo.Endpoint != "" {
		f.sinks = append(f.sinks, sink.NewSumoSink(cfg.Sinks.Sumo))
	}
	if cfg.Sinks.Datadog.Endpoint != "" {
		f.sinks = append(f.sinks, sink.NewDatadogSink(cfg.Sinks.Datadog))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		f.sinks = append(f.sinks, sink.NewKafkaSink(cfg.Kafka))
	}
	if cfg.Clickhouse.URL != "" {
		chSink, err := sink.NewClickHouseSink(cfg.Clickhouse)
		if err != nil {
			return fmt.Errorf("failed to initialize clickhouse sink: %w", err)
		}
		f.sinks = append(f.sinks, chSink)
	}

	return nil
}

func (f *Factory) newGeoResolver() geo.Resolver {
	if f.config.Geo.Endpoint == "" {
		return geo.NoopResolver{}
	}
	return geo.NewHTTPResolver(f.config.Geo)
}

func newRedisClient(cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if opts.Password == "" && cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	opts.DB = cfg.Redis.DB
	opts.PoolSize = cfg.Redis.PoolSize
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	util.Info("Redis client initialized", util.String("url", cfg.Redis.URL))
	return client, nil
}

// Close shuts everything down in reverse dependency order: the monitor
// drains first so late events still reach the sinks.
func (f *Factory) Close() {
	f.closeOnce.Do(func() {
		if f.monitor != nil {
			f.monitor.Close()
		}
		for _, s := range f.sinks {
			if closer, ok := s.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					util.Error("Failed to close sink", util.ErrorField(err))
				}
			}
		}
		if f.audit != nil {
			f.audit.Close()
		}
		if f.memoryStore != nil {
			f.memoryStore.Close()
		}
		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}
		util.Info("Factory closed")
		util.Sync()
	})
}

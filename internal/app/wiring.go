package app

import (
	"context"
	"fmt"
	"strings"

	"dexindexer/internal/aggregate"
	"dexindexer/internal/api/http"
	"dexindexer/internal/buffer"
	"dexindexer/internal/cache"
	"dexindexer/internal/chain"
	"dexindexer/internal/config"
	"dexindexer/internal/decode"
	"dexindexer/internal/dedupe"
	rdbdedupe "dexindexer/internal/dedupe/redis"
	ingest "dexindexer/internal/ingest/nats"
	"dexindexer/internal/metrics"
	"dexindexer/internal/service"
	"dexindexer/internal/stores"
	"dexindexer/internal/stores/clickhouse"
	"dexindexer/internal/stores/migrations"
	"dexindexer/internal/stores/postgres"
	"dexindexer/internal/stores/redis"

	"github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus"
	lgcfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

type Container struct {
	app *App
	log logger.Logger

	// infra
	redis *redis.Client
	ch    *clickhouse.Conn
	pg    *postgres.Pool
	sub   *ingest.Subscriber

	// services
	svc     *service.IndexerService
	httpSrv *http.Server

	// metrics
	profiler *pyroscope.Profiler

	closers []func()
}

func (c *Container) Start(ctx context.Context) error {
	return c.app.Start(ctx)
}

func (c *Container) Stop(ctx context.Context) error {
	if err := c.app.Shutdown(ctx); err != nil {
		c.cleanup()
		return fmt.Errorf("app shutdown is failed, error=%w", err)
	}

	c.cleanup()
	return nil
}

func (c *Container) onClose(f func()) {
	c.closers = append(c.closers, f)
}

// cleanup releases dependencies in reverse construction order
func (c *Container) cleanup() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
	c.log.Info("Successfully cleaned up dependency")
}

// Construct image app
func Build(ctx context.Context, cfg *config.Config) (c *Container, err error) {
	lg := logger.New(lgcfg.LoggerCfg{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	lg.Info("Successfully initialize logger")

	c = &Container{log: lg}
	built := c
	defer func() {
		if err != nil {
			built.cleanup()
		}
	}()

	c.profiler, err = metrics.StartProfiler(cfg.Metrics.Pyroscope, cfg.App.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("pyroscope initialize failed: %w", err)
	}
	if c.profiler != nil {
		profiler := c.profiler
		c.onClose(func() {
			if err := profiler.Stop(); err != nil {
				lg.Errorf("Failed to stop profiler: %v", err)
			}
		})
		lg.Infof("Successfully initialize Pyroscope to %s as %s", cfg.Metrics.Pyroscope.ServerAddr, cfg.Metrics.Pyroscope.AppName)
	}

	m := metrics.NewIndexer(prometheus.DefaultRegisterer)
	health := map[string]service.HealthChecker{}

	// Redis client
	c.redis, err = redis.New(ctx, cfg.Stores.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis client: %w", err)
	}
	rdb := c.redis
	c.onClose(func() {
		if err := rdb.Close(); err != nil {
			lg.Errorf("Failed to close redis client: %v", err)
		}
	})
	health["redis"] = c.redis
	lg.Infof("Successfully initialize redis client, addr=%s", cfg.Stores.Redis.Addr)

	hot := redis.NewStore(c.redis, cfg.Stores.Redis.Prefix)
	chainState := redis.NewChainState(c.redis, cfg.Chain.StatePrefix)

	sinks := stores.NewMulti()
	var markets stores.MarketReader = hot

	// ClickHouse history
	if cfg.Stores.ClickHouse.Enabled {
		c.ch, err = clickhouse.New(ctx, cfg.Stores.ClickHouse)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize clickhouse client: %w", err)
		}
		chConn := c.ch
		c.onClose(func() {
			if err := chConn.Close(); err != nil {
				lg.Errorf("Failed to close clickhouse client: %v", err)
			}
		})
		if err = migrations.Run(ctx, migrations.ClickhouseFS, "clickhouse", c.ch); err != nil {
			return nil, fmt.Errorf("failed to migrate clickhouse: %w", err)
		}
		health["clickhouse"] = c.ch
		sinks.Add("clickhouse", clickhouse.NewHistorySink(clickhouse.NewWriter(lg, c.ch.Native, cfg.Stores.ClickHouse)))

		url := strings.Split(cfg.Stores.ClickHouse.DSN, "?")
		lg.Infof("Successfully initialize clickhouse client, url=%s", url[0])
	}

	// Postgres markets
	if cfg.Stores.Postgres.Enabled {
		c.pg, err = postgres.NewPool(ctx, cfg.Stores.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres pool: %w", err)
		}
		c.onClose(c.pg.Close)
		if err = c.pg.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		health["postgres"] = c.pg

		marketStore := postgres.NewMarketStore(c.pg)
		sinks.Add("postgres", marketStore)
		markets = marketStore
		lg.Info("Successfully initialize postgres market store")
	}

	// hot state goes last so totals only advance once history is stored
	sinks.Add("redis", hot)
	if err = sinks.Validate(); err != nil {
		return nil, err
	}

	// Dedupe
	var deduper dedupe.Deduper
	switch cfg.Ingest.Dedupe.Backend {
	case "redis":
		rd, err := rdbdedupe.NewRedisDeduper(lg, &cfg.Ingest.Dedupe, c.redis)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis deduper: %w", err)
		}
		// ids become seen together with the totals they produced
		hot.WithSeenMarks(rd.Prefix(), rd.TTL())
		deduper = rd
		lg.Infof("Successfully initialize Deduper redis_client by prefix %s", cfg.Ingest.Dedupe.Prefix)
	case "memory":
		deduper = dedupe.NewInMemoryDedupe(lg, cfg.Ingest.Dedupe.Capacity)
		lg.Info("Successfully initialize in-memory Deduper")
	}

	// NATS ingest
	c.sub, err = ingest.New(lg, &cfg.Ingest.NATS, deduper, m)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize nats subscriber: %w", err)
	}
	sub := c.sub
	c.onClose(func() {
		if err := sub.Close(); err != nil {
			lg.Errorf("Failed to close nats subscriber: %v", err)
		}
	})
	health["nats"] = c.sub
	lg.Infof("Successfully initialize nats subscriber, url=%s", cfg.Ingest.NATS.URL)

	// Service Layer
	buf := buffer.New()
	engine, err := aggregate.NewEngine(lg, buf, hot)
	if err != nil {
		return nil, err
	}

	c.svc, err = service.NewIndexerService(service.Deps{
		Log:      lg,
		Registry: decode.NewDefaultRegistry(),
		Heights:  chain.NewOffsetResolver(cfg.Chain.ParachainStart),
		State:    chainState,
		Caches:   cache.New(chainState),
		Buffer:   buf,
		Engine:   engine,
		Markets:  markets,
		Sink:     sinks,
		Metrics:  m,
		Health:   health,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize indexer service: %w", err)
	}

	runner := service.NewRunner(lg, c.svc, service.RunnerConfig{
		FlushInterval: cfg.Processor.FlushInterval,
		FlushSize:     cfg.Processor.FlushSize,
		FlushTimeout:  cfg.Processor.FlushTimeout,
	})

	// HTTP Server
	c.httpSrv = http.NewServer(&http.ServerDeps{
		Logger:  lg,
		Cfg:     cfg.API.HTTP,
		Checker: c.svc,
	})
	lg.Info("Successfully initialize HTTP server")

	c.app = New(lg, c.httpSrv, service.NewPipeline(c.sub, runner))

	lg.Info("Successfully initialize Wiring")
	return c, nil
}

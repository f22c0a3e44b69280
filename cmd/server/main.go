package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	jwttoken "tokenledger/internal/jwt_token"
	"tokenledger/internal/ledger/handler"
	"tokenledger/internal/ledger/ports"
	"tokenledger/internal/ledger/store/memory"
	pgledger "tokenledger/internal/ledger/store/postgres"
	"tokenledger/internal/oracle"
	"tokenledger/internal/platform/config"
	"tokenledger/internal/platform/httpserver"
	"tokenledger/internal/platform/kafka"
	"tokenledger/internal/platform/logger"
	"tokenledger/internal/platform/metrics"
	"tokenledger/internal/platform/middleware"
	"tokenledger/internal/platform/postgres"
	ledgerredis "tokenledger/internal/platform/redis"
	"tokenledger/internal/registry"
	"tokenledger/internal/system"
	"tokenledger/internal/transfer"
	"tokenledger/internal/txid"
	"tokenledger/pkg/platform/audit/publisher"
	kafkapublisher "tokenledger/pkg/platform/audit/publishers/kafka"
	auditmemory "tokenledger/pkg/platform/audit/store/memory"
	auditpg "tokenledger/pkg/platform/audit/store/postgres"
	"tokenledger/pkg/platform/audit/worker"
)

const throttleSweepInterval = 5 * time.Minute

// main wires the ledger's dependencies and keeps the process lifecycle small.
// Ledger rules live in the internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tokenledger:", err)
		os.Exit(1)
	}
}

// storage is the backend chosen at startup.
type storage struct {
	uow    ports.UnitOfWork
	events handler.EventLister
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	checks := map[string]httpserver.Check{}

	rdb, err := ledgerredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var cache *oracle.RedisCache
	if rdb != nil {
		defer rdb.Close()
		cache = oracle.NewRedisCache(rdb.Client, cfg.Redis.RateTTL,
			oracle.WithCacheMetrics(m),
			oracle.WithCacheLogger(log),
		)
		checks["redis"] = rdb.Health
	}
	resolver := oracle.NewResolver(
		oracle.WithHTTPClient(&http.Client{Timeout: cfg.Oracle.HTTPTimeout}),
		oracle.WithCache(cache),
		oracle.WithLogger(log),
	)

	var store storage
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(db, log); err != nil {
			return err
		}
		auditStore := auditpg.New(db)
		ledger, err := pgledger.New(db, auditStore, pgledger.WithTimeout(cfg.Ledger.TxTimeout))
		if err != nil {
			return err
		}
		store = storage{uow: ledger, events: auditStore}

		if cfg.Kafka.Enabled() {
			client, err := kafka.NewClient(ctx, cfg.Kafka)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic, 3, 1); err != nil {
				return err
			}
			sink, err := kafkapublisher.New(client, cfg.Kafka.Topic, kafkapublisher.WithLogger(log))
			if err != nil {
				return err
			}
			relay := worker.NewRelay(auditStore, sink,
				worker.WithInterval(cfg.Kafka.RelayInterval),
				worker.WithBatchSize(cfg.Kafka.RelayBatchSize),
				worker.WithLogger(log),
			)
			g.Go(func() error { return relay.Run(gctx) })
			log.Info("outbox relay started", "topic", cfg.Kafka.Topic)
		}
	default:
		if cfg.Kafka.Enabled() {
			log.Warn("kafka relay needs the postgres outbox; events stay in memory", "backend", cfg.Storage.Backend)
		}
		auditStore := auditmemory.NewInMemoryStore()
		pub := publisher.NewPublisher(auditStore, publisher.WithLogger(log))
		defer pub.Close()
		store = storage{
			uow:    memory.New(memory.WithPublisher(pub), memory.WithLogger(log)),
			events: auditStore,
		}
	}
	checks["storage"] = func(ctx context.Context) error {
		return store.uow.View(ctx, func(context.Context, ports.Stores) error { return nil })
	}

	gen := txid.NewGenerator()
	ctrl, err := system.New(store.uow, gen, resolver, system.WithLogger(log), system.WithMetrics(m))
	if err != nil {
		return err
	}
	state, err := ctrl.Bootstrap(ctx, cfg.Ledger.Owner, cfg.Oracle.Ref)
	if err != nil {
		return fmt.Errorf("bootstrap ledger: %w", err)
	}
	reg, err := registry.New(store.uow, registry.WithLogger(log), registry.WithMetrics(m))
	if err != nil {
		return err
	}
	engine, err := transfer.New(store.uow, gen, resolver, cfg.Ledger,
		transfer.WithLogger(log),
		transfer.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	refresher, err := oracle.NewRefresher(resolver, func(ctx context.Context) (string, error) {
		current, err := ctrl.State(ctx)
		if err != nil {
			return "", err
		}
		return current.OracleRef, nil
	}, cfg.Oracle.RefreshSchedule, log)
	if err != nil {
		return err
	}
	refresher.Start()
	defer refresher.Stop()

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	throttle := middleware.NewThrottle(cfg.Throttle.RequestsPerSecond, cfg.Throttle.Burst, log)

	r := chi.NewRouter()
	r.Use(middleware.ClientIP)
	r.Use(throttle.Handler)
	r.Get("/health", httpserver.Health(checks))
	r.Handle("/metrics", promhttp.Handler())
	handler.New(reg, ctrl, engine, store.events, log, jwttoken.NewAdapter(jwtService)).Register(r)

	srv := httpserver.New(cfg.Server.Addr, r)
	g.Go(func() error {
		log.Info("tokenledger listening",
			"addr", cfg.Server.Addr,
			"backend", cfg.Storage.Backend,
			"owner", state.Owner.String(),
			"active", state.Active,
		)
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		sweepThrottle(gctx, throttle, log)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("tokenledger stopped")
	return nil
}

func sweepThrottle(ctx context.Context, t *middleware.Throttle, log *slog.Logger) {
	ticker := time.NewTicker(throttleSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.Sweep(); n > 0 {
				log.Debug("throttle sweep", "removed", n)
			}
		}
	}
}

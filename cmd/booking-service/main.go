package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredislib "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	invapp "github.com/dmehra2102/Ticket-Booking-System/internal/inventory/application"
	invhttp "github.com/dmehra2102/Ticket-Booking-System/internal/inventory/infrastructure/http"
	"github.com/dmehra2102/Ticket-Booking-System/internal/inventory/infrastructure/lock"
	invpg "github.com/dmehra2102/Ticket-Booking-System/internal/inventory/infrastructure/postgres"
	invredis "github.com/dmehra2102/Ticket-Booking-System/internal/inventory/infrastructure/redis"
	"github.com/dmehra2102/Ticket-Booking-System/internal/order/application"
	orderhttp "github.com/dmehra2102/Ticket-Booking-System/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/Ticket-Booking-System/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/Ticket-Booking-System/internal/order/infrastructure/postgres"
	orderredis "github.com/dmehra2102/Ticket-Booking-System/internal/order/infrastructure/redis"
	"github.com/dmehra2102/Ticket-Booking-System/migrations"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/config"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/logging"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/outbox"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/shutdown"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/tracing"
)

const serviceName = "booking-service"

func main() {
	cfg, err := config.LoadBooking()
	log := logging.New(serviceName, cfg.LogLevel)
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, serviceName, cfg.OTLPEndpoint, cfg.Environment, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.WithoutCancel(ctx)) }()

	// Postgres setup
	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	// Redis: one client for the cache, one per Redlock node
	rdb := goredislib.NewClient(&goredislib.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	lockClients := make([]goredislib.UniversalClient, 0, len(cfg.LockAddrs))
	for _, addr := range cfg.LockAddrs {
		c := goredislib.NewClient(&goredislib.Options{Addr: addr})
		defer c.Close()
		lockClients = append(lockClients, c)
	}
	locker := lock.New(log, lockClients,
		lock.WithTTL(cfg.LockTTL),
		lock.WithRetry(cfg.LockRetryCount, cfg.LockRetryDelay, cfg.LockJitter),
	)

	// Kafka producer
	writer := orderkafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	// Inventory
	events := invpg.NewRepository(log, pool)
	availability := invapp.NewAvailability(log, invredis.NewCache(rdb), events, cfg.AvailabilityTTL)
	catalog := invapp.NewCatalog(log, events)

	// Orders & outbox
	orders := orderpg.NewRepository(log, pool)
	store := orderpg.NewOutboxStore(log, pool, serviceName)
	dispatch := outbox.NewDispatcher(log, writer, cfg.OrderCreatedTopic)
	relay := outbox.NewRelay(log, store, dispatch, serviceName+"-relay")

	svc := application.NewService(log, application.Deps{
		Orders:       orders,
		Events:       events,
		Stock:        events,
		Availability: availability,
		Locker:       locker,
		Publisher:    orderkafka.NewPublisher(writer, cfg.OrderCreatedTopic, serviceName),
		Gaps:         store,
		Markers:      orderredis.NewExpirationMarker(rdb),
	}, application.WithHoldWindow(cfg.HoldWindow))
	sweeper := application.NewSweeper(log, svc, cfg.SweepInterval, cfg.SweepBatchSize)

	// HTTP server
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/", orderhttp.NewHandler(log, svc).Routes())
	r.Mount("/catalog", invhttp.NewHandler(log, catalog).Routes())

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("booking-service stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("booking-service shutdown complete")
}

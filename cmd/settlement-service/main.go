package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredislib "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	invapp "github.com/dmehra2102/Ticket-Booking-System/internal/inventory/application"
	"github.com/dmehra2102/Ticket-Booking-System/internal/inventory/infrastructure/lock"
	invpg "github.com/dmehra2102/Ticket-Booking-System/internal/inventory/infrastructure/postgres"
	invredis "github.com/dmehra2102/Ticket-Booking-System/internal/inventory/infrastructure/redis"
	orderapp "github.com/dmehra2102/Ticket-Booking-System/internal/order/application"
	orderpg "github.com/dmehra2102/Ticket-Booking-System/internal/order/infrastructure/postgres"
	orderredis "github.com/dmehra2102/Ticket-Booking-System/internal/order/infrastructure/redis"
	"github.com/dmehra2102/Ticket-Booking-System/internal/payment/application"
	"github.com/dmehra2102/Ticket-Booking-System/internal/payment/domain"
	paymentkafka "github.com/dmehra2102/Ticket-Booking-System/internal/payment/infrastructure/kafka"
	"github.com/dmehra2102/Ticket-Booking-System/migrations"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/config"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/idempotency"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/logging"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/shutdown"
	"github.com/dmehra2102/Ticket-Booking-System/pkg/tracing"
)

const serviceName = "settlement-service"

func main() {
	cfg, err := config.LoadSettlement()
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

	// Lifecycle manager: settlement never books, so no publisher is wired.
	events := invpg.NewRepository(log, pool)
	lifecycle := orderapp.NewService(log, orderapp.Deps{
		Orders:       orderpg.NewRepository(log, pool),
		Events:       events,
		Stock:        events,
		Availability: invapp.NewAvailability(log, invredis.NewCache(rdb), events, cfg.AvailabilityTTL),
		Locker:       locker,
		Markers:      orderredis.NewExpirationMarker(rdb),
	})

	svc := application.NewService(log, domain.NewRandom(cfg.ApproveRate), lifecycle)
	reader := paymentkafka.NewReader(cfg.KafkaBrokers, cfg.OrderCreatedTopic, cfg.ConsumerGroup)
	consumer := paymentkafka.NewConsumer(log, reader, svc,
		idempotency.NewStore(rdb, cfg.IdempotencyTTL),
		paymentkafka.WithBackoff(0, cfg.MaxRetryBackoff),
	)

	// gRPC health
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen failed", "addr", cfg.GRPCAddr, "err", err)
		os.Exit(1)
	}
	grpcSrv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, hs)
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer hs.Shutdown()
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		log.Info("grpc health listening", "addr", cfg.GRPCAddr)
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		log.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		grpcSrv.GracefulStop()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("settlement-service stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("settlement-service shutdown complete")
}

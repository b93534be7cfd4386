package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/rl1809/library-lending/internal/adapter/auth"
	"github.com/rl1809/library-lending/internal/adapter/handler"
	"github.com/rl1809/library-lending/internal/adapter/messaging"
	"github.com/rl1809/library-lending/internal/adapter/storage"
	"github.com/rl1809/library-lending/internal/config"
	"github.com/rl1809/library-lending/internal/core/service"
	"github.com/rl1809/library-lending/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to load config")
	}
	log := cfg.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	store, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN,
		storage.WithLogger(log),
		storage.WithPool(cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnLifetime),
	)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to connect database")
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("connected to database")

	// Initialize request guard
	var guard port.RequestGuard
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect redis")
		}
		guard = storage.NewRedisAdapter(rdb, cfg.IdempotencyTTL)
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	} else {
		guard = storage.NewLRUGuard(0, cfg.IdempotencyTTL)
		log.Info().Msg("using in-process request guard")
	}

	// Initialize event publisher
	var publisher port.EventPublisher
	var rabbit *messaging.RabbitPublisher
	if cfg.AMQPURL != "" {
		rabbit, err = messaging.NewRabbitPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect rabbitmq")
		}
		publisher = rabbit
		log.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing lending events")
	}

	engine := service.NewEngine(store,
		service.WithLogger(log),
		service.WithOpTimeout(cfg.OpTimeout),
		service.WithRequestGuard(guard),
		service.WithEventPublisher(publisher),
	)

	var authenticator port.Authenticator
	if cfg.AuthEnabled() {
		authenticator = auth.NewStatic(cfg.AdminUser, cfg.AdminPassword)
	}

	// Initialize gRPC server
	interceptors := []grpc.UnaryServerInterceptor{handler.UnaryLogger(log)}
	if authenticator != nil {
		interceptors = append(interceptors, handler.UnaryBasicAuth(authenticator))
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	handler.RegisterLendingServer(grpcServer, handler.NewGRPCHandler(engine))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("failed to listen")
	}

	go func() {
		log.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC server error")
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(engine, log)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler.Routes(authenticator),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	log.Info().Msg("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info().Msg("gRPC server stopped")

	// Close connections
	if rabbit != nil {
		rabbit.Close()
	}
	if rdb != nil {
		rdb.Close()
	}
	store.Close()
	log.Info().Msg("connections closed")
}

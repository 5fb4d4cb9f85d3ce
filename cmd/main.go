package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/pcidesk/chat-presence/internal/activity"
	"github.com/pcidesk/chat-presence/internal/broker"
	"github.com/pcidesk/chat-presence/internal/config"
	"github.com/pcidesk/chat-presence/internal/dedup"
	"github.com/pcidesk/chat-presence/internal/handler"
	"github.com/pcidesk/chat-presence/internal/hub"
	"github.com/pcidesk/chat-presence/internal/idgen"
	"github.com/pcidesk/chat-presence/internal/presence"
	"github.com/pcidesk/chat-presence/internal/router"
	"github.com/pcidesk/chat-presence/internal/service"
	"github.com/pcidesk/chat-presence/pkg/database"
	"github.com/pcidesk/chat-presence/pkg/jwt"
	pkglog "github.com/pcidesk/chat-presence/pkg/log"
)

const serviceName = "chat-presence"

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: serviceName,
		InstanceID:  cfg.Server.InstanceID,
	})
	logger := pkglog.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Redis, only when a store needs it
	var rdb *redis.Client
	if cfg.Dedup.Driver == "redis" || cfg.Activity.Driver == "redis" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Redis.Address).Msg("failed to connect to redis")
		}
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	// 4. Dedup and activity stores
	dedupStore, err := newDedupStore(cfg, rdb, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create dedup store")
	}

	activityStore, db, err := newActivityStore(cfg, rdb)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create activity store")
	}

	// 5. ID generator and broker
	ids, err := idgen.New(cfg.IDGen.Kind)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create id generator")
	}

	publisher, err := broker.NewPublisher(ctx, cfg.Broker, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Broker.Driver).Msg("failed to create publisher")
	}
	logger.Info().Str("driver", cfg.Broker.Driver).Msg("publisher ready")

	// 6. Hub, registry, router, service
	h := hub.NewHub(cfg.WebSocket, logger)
	registry := presence.NewRegistry()
	rt := router.New(h, registry, publisher, ids, router.Config{
		InstanceID:     cfg.Server.InstanceID,
		PublishTimeout: cfg.Broker.PublishTimeout,
	}, logger)
	chatSvc := service.NewChatService(h, rt, dedupStore, registry, activityStore, cfg.Server.InstanceID, logger)

	// 7. Background tasks
	monitor := presence.NewMonitor(registry, h, activityStore, presence.MonitorConfig{
		HeartbeatInterval: cfg.Presence.HeartbeatInterval,
		StaleThreshold:    cfg.Presence.StaleThreshold,
	}, logger)
	monitor.Start(ctx)

	sweeper := dedup.NewSweeper(dedupStore, cfg.Dedup.CleanupInterval, cfg.Dedup.Retention, logger)
	sweeper.Start(ctx)

	logger.Info().
		Dur("heartbeat_interval", cfg.Presence.HeartbeatInterval).
		Dur("stale_threshold", cfg.Presence.StaleThreshold).
		Dur("dedup_cleanup_interval", cfg.Dedup.CleanupInterval).
		Msg("presence monitor and dedup sweeper started")

	// 8. Replay consumer
	var consumer *broker.KafkaConsumer
	if cfg.Broker.Driver == "kafka" && cfg.Broker.Kafka.Consume {
		groupID := cfg.Broker.Kafka.GroupID + "-" + cfg.Server.InstanceID
		kc, err := broker.NewKafkaConsumer(cfg.Broker.Kafka.Brokers, cfg.Broker.Kafka.Topic, groupID, chatSvc, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka consumer, cross-instance replay disabled")
		} else if err := kc.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to start kafka consumer")
		} else {
			consumer = kc
			logger.Info().Str("topic", cfg.Broker.Kafka.Topic).Str("group_id", groupID).Msg("kafka replay consumer started")
		}
	}

	// 9. Auth and HTTP routes
	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, time.Hour)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token manager")
	}

	r := mux.NewRouter()
	r.Use(pkglog.HTTPMiddleware(logger))
	handler.NewWSHandler(h, chatSvc, tokens, ids, cfg.WebSocket, logger).RegisterRoutes(r)
	handler.NewHTTPHandler(registry, cfg.Server.InstanceID).RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.Run()
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", addr).Str("instance_id", cfg.Server.InstanceID).Msg("chat-presence starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// 10. Wait for shutdown signal or a failed runner
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info().Msg("shutdown signal received")
	case <-gctx.Done():
		logger.Error().Msg("background runner exited, shutting down")
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		monitor.Stop()
		<-monitor.Done()
		sweeper.Stop()
		<-sweeper.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}

		cancel()
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing kafka consumer")
			}
		}

		h.Stop()
		if err := g.Wait(); err != nil {
			logger.Error().Err(err).Msg("background runner failed")
		}

		if err := publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing publisher")
		}
		if db != nil {
			if err := database.Close(db); err != nil {
				logger.Warn().Err(err).Msg("error closing database")
			}
		}
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis")
			}
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("chat-presence stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}

func newDedupStore(cfg *config.Config, rdb *redis.Client, logger zerolog.Logger) (dedup.Store, error) {
	switch cfg.Dedup.Driver {
	case "", "memory":
		return dedup.NewMemoryStore(), nil
	case "redis":
		return dedup.NewRedisStore(rdb, cfg.Dedup.RedisKey, logger), nil
	default:
		return nil, fmt.Errorf("unknown dedup driver: %s", cfg.Dedup.Driver)
	}
}

// newActivityStore returns the store and, for the database driver, the
// connection the caller must close.
func newActivityStore(cfg *config.Config, rdb *redis.Client) (activity.Store, *gorm.DB, error) {
	switch cfg.Activity.Driver {
	case "", "memory":
		return activity.NewMemoryStore(), nil, nil
	case "redis":
		return activity.NewRedisStore(rdb, cfg.Activity.RedisPrefix, cfg.Activity.RedisTTL), nil, nil
	case "database":
		db, err := database.New(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		store := activity.NewGormStore(db)
		if err := store.Migrate(); err != nil {
			database.Close(db)
			return nil, nil, fmt.Errorf("migrate activity: %w", err)
		}
		return store, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown activity driver: %s", cfg.Activity.Driver)
	}
}

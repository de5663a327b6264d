package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	mqcontracts "taskboard/contracts/mq"
	"taskboard/internal/config"
	"taskboard/internal/events"
	"taskboard/internal/handler"
	"taskboard/internal/httpserver"
	"taskboard/internal/mqhandler"
	"taskboard/internal/reconcile"
	"taskboard/internal/repository"
	"taskboard/internal/service"
	pkgconfig "taskboard/pkg/config"
	"taskboard/pkg/db"
	"taskboard/pkg/logger"
	"taskboard/pkg/mq"
	"taskboard/pkg/otel"
	"taskboard/pkg/outbox"
	"taskboard/pkg/redis"
	"taskboard/pkg/util"
)

const projectDeletedQueue = "project.deleted.purge.q"

func main() {
	cfg, err := config.Load(pkgconfig.GetEnv("CONFIG_DIR", "config"), pkgconfig.GetConfigEnv())
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()

	if cfg.JWT.Secret == "" {
		log.Fatal("JWT secret is not configured")
	}

	log.Info("Starting taskboard...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.Bool("mq_enabled", cfg.MQ.Enabled),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := otel.Init(otel.Config{
		ServiceName:    "taskboard",
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.OTel.Endpoint,
		Enabled:        cfg.OTel.Enabled,
	}, log)
	if err != nil {
		log.Warn("Failed to init OpenTelemetry, continuing without tracing", zap.Error(err))
	} else {
		defer shutdownOTel()
	}

	// DB
	dbConn, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	if cfg.DB.AutoMigrate {
		if err := db.Migrate(ctx, dbConn, repository.Schema, log); err != nil {
			log.Fatal("Failed to migrate DB", zap.Error(err))
		}
	}

	// Redis（可选）：用户信息缓存、消费去重、补偿任务锁
	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewRedisClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn("Redis unavailable, running without cache and locks", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	userRepo := repository.NewUserRepository(dbConn)
	taskRepo := repository.NewTaskRepository(dbConn)

	var directory service.UserDirectory = userRepo
	if rdb != nil {
		directory = repository.NewCachedUserResolver(userRepo, rdb, cfg.Cache.UserTTL(), log)
	}

	// MQ（可选）：outbox 事件发布与 project.deleted 消费
	var (
		outboxRepo *outbox.Repository
		notifier   service.Notifier = events.Nop{}
		publisher  *mq.Publisher
		workers    sync.WaitGroup
	)
	checks := []httpserver.ReadinessCheck{{Name: "db", Check: dbConn.Ping}}
	if cfg.MQ.Enabled {
		outboxRepo = outbox.NewRepository(dbConn)
		notifier = events.NewOutboxNotifier(outboxRepo)

		publisher, err = mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Fatal("Failed to init publisher", zap.Error(err))
		}
		defer publisher.Close()
		checks = append(checks, httpserver.ReadinessCheck{Name: "mq", Check: func(context.Context) error {
			if !publisher.IsConnected() {
				return errors.New("publisher disconnected")
			}
			return nil
		}})

		dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log).
			WithInterval(cfg.Outbox.Interval()).
			WithBatchSize(cfg.Outbox.BatchSize).
			WithMaxRetries(cfg.Outbox.MaxRetries)
		workers.Add(1)
		go func() {
			defer workers.Done()
			dispatcher.Start(ctx)
		}()

		consumer, err := mq.NewConsumer(cfg.MQ.URL, projectDeletedQueue, mqcontracts.RoutingProjectDeleted, log)
		if err != nil {
			log.Fatal("Failed to init project.deleted consumer", zap.Error(err))
		}
		defer consumer.Close()

		var dedup mqhandler.Deduper
		if rdb != nil {
			dedup = util.NewDeduper(rdb, cfg.Reconcile.DedupTTL(), log)
		}
		purgeHandler := mqhandler.NewProjectDeletedHandler(taskRepo, dedup, log)
		if rdb != nil {
			purgeHandler.WithRetryCounter(util.NewRetryCounter(rdb, time.Hour), cfg.Outbox.MaxRetries)
		}
		consumer.SetHandler(purgeHandler.Handle)
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := consumer.StartConsuming(ctx); err != nil {
				log.Error("project.deleted consumer stopped", zap.Error(err))
			}
		}()
	}

	projectRepo := repository.NewProjectRepository(dbConn, outboxRepo, log)

	// Reconciler
	if cfg.Reconcile.Enabled {
		reconciler := reconcile.NewReconciler(projectRepo, taskRepo, log).
			WithGrace(cfg.Reconcile.Grace()).
			WithInterval(cfg.Reconcile.Interval())
		if rdb != nil {
			reconciler.WithLocker(util.NewDeduper(rdb, cfg.Reconcile.LockTTL(), log))
		}
		workers.Add(1)
		go func() {
			defer workers.Done()
			reconciler.Run(ctx)
		}()
	}

	// Services
	guard := service.NewGuard(projectRepo, log)
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.TTL(), log)
	projectService := service.NewProjectService(projectRepo, taskRepo, userRepo, directory, guard, notifier, log)
	boardService := service.NewBoardService(taskRepo, directory, guard, notifier, log)

	// HTTP Server
	router := httpserver.NewRouter(
		handler.NewAuthHandler(authService, log),
		handler.NewProjectHandler(projectService, log),
		handler.NewTaskHandler(boardService, log),
		authService,
		log,
		checks...,
	)
	srv := router.Server(cfg.Server.Port)

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 优雅退出处理
	<-ctx.Done()
	log.Info("Shutting down taskboard gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	workers.Wait()
	log.Info("taskboard shutdown complete")
}

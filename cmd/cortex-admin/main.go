package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FallyxInc/cortex-behaviours/internal/config"
	"github.com/FallyxInc/cortex-behaviours/internal/database"
	"github.com/FallyxInc/cortex-behaviours/internal/events"
	httpapi "github.com/FallyxInc/cortex-behaviours/internal/http"
	"github.com/FallyxInc/cortex-behaviours/internal/logger"
	"github.com/FallyxInc/cortex-behaviours/internal/pipeline"
	"github.com/FallyxInc/cortex-behaviours/internal/repository"
	"github.com/FallyxInc/cortex-behaviours/internal/service"
	"github.com/FallyxInc/cortex-behaviours/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const eventStreamMaxLen = 10000

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "cortex-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	docs := store.NewDocumentStore(store.NewRedisKV(redisClient), cfg.StorePrefix)
	homesRepo := repository.NewStoreHomesRepo(docs)

	// Users live in the document store unless Postgres is enabled and reachable.
	var usersRepo repository.UsersRepository = repository.NewStoreUsersRepo(docs)
	var db *sql.DB
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(context.Background(), &cfg.Database); err == nil {
			pgUsers := repository.NewPostgresUsersRepo(d)
			if err := pgUsers.EnsureSchema(context.Background()); err != nil {
				log.Warn("Users schema bootstrap failed, falling back to document store", zap.Error(err))
				_ = d.Close()
			} else {
				db = d
				usersRepo = pgUsers
				log.Info("DB enabled for users")
			}
		} else {
			log.Warn("DB enabled but connection failed, falling back to document store", zap.Error(err))
		}
	}

	publishers := events.Multi{events.NewStreamPublisher(redisClient, cfg.Events.Stream, eventStreamMaxLen)}
	var mqttPub *events.MQTTPublisher
	if cfg.MQTT.Enabled {
		if p, err := events.NewMQTTPublisher(&cfg.MQTT); err == nil {
			mqttPub = p
			publishers = append(publishers, p)
			log.Info("MQTT ingestion events enabled", zap.String("topic", cfg.MQTT.Topic))
		} else {
			log.Warn("MQTT enabled but connection failed", zap.Error(err))
		}
	}

	invoker := pipeline.NewInvoker(
		pipeline.DefaultSteps(cfg.Pipeline.Python, cfg.Pipeline.PipPackages),
		pipeline.NewExecRunner(cfg.Pipeline.OutputLimit),
		cfg.Pipeline.StepTimeout,
		log.Named("pipeline"),
	)

	homeSvc := service.NewHomeService(homesRepo, log)
	userSvc := service.NewUserService(usersRepo, homeSvc, log)
	ingestionSvc := service.NewIngestionService(
		service.NewMetricsService(homesRepo, log),
		service.NewMaterializer(cfg.Pipeline.ProcessingRoot, log),
		invoker,
		publishers,
		log.Named("ingestion"),
	)

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes(httpapi.NewHealthHandler(docs, log))
	router.RegisterHomesRoutes(httpapi.NewHomesHandler(homeSvc, log))
	router.RegisterUsersRoutes(httpapi.NewUsersHandler(userSvc, log))
	router.RegisterIngestionRoutes(httpapi.NewIngestionHandler(ingestionSvc, cfg.HTTP.MaxUploadSize, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("HTTP server stopped", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if mqttPub != nil {
		mqttPub.Close()
	}
	_ = redisClient.Close()
	if db != nil {
		_ = db.Close()
	}
}

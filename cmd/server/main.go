package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/pickperfect/api/internal/client"
	"github.com/pickperfect/api/internal/config"
	"github.com/pickperfect/api/internal/events"
	"github.com/pickperfect/api/internal/handler"
	"github.com/pickperfect/api/internal/logger"
	"github.com/pickperfect/api/internal/middleware"
	"github.com/pickperfect/api/internal/repository"
	"github.com/pickperfect/api/internal/service"
	"github.com/pickperfect/api/internal/worker"
	ws "github.com/pickperfect/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New("", "info").WithError(err).Fatal("Failed to load config")
	}

	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis not available")
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(worker.RedisOpt(cfg.Redis))
	defer asynqClient.Close()

	// Initialize job store
	mongoClient, err := repository.Connect(ctx, &cfg.Mongo)
	if err != nil {
		log.WithError(err).Fatal("MongoDB not available")
	}
	defer mongoClient.Disconnect(context.Background())

	jobs := repository.NewMongoJobRepository(mongoClient.Database(cfg.Mongo.Database), cfg.Mongo.Collection, log)
	if err := jobs.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Warn("Failed to ensure job indexes")
	}

	// Initialize object storage
	storage, err := client.NewS3Client(ctx, &cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("Storage client not initialized")
	}

	validate := validator.New()

	// Initialize WebSocket hub, fed by worker status events
	hub := ws.NewHub(log)
	go hub.Run(ctx.Done())

	subscriber := events.NewSubscriber(redisClient, log)
	go func() {
		if err := subscriber.Run(ctx, hub.BroadcastStatus); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Status event relay stopped")
		}
	}()

	// Initialize services
	uploadService := service.NewUploadService(storage, jobs, cfg.Storage.UploadURLTTL, log)
	videoService := service.NewVideoService(jobs, asynqClient, storage.Bucket(), cfg.Worker, log)

	// Initialize handlers
	routes := &handler.Routes{
		Health: handler.NewHealthHandler(map[string]handler.Check{
			"redis":   func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			"mongodb": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
			"storage": storage.Ping,
		}, log),
		Videos:      handler.NewVideoHandler(uploadService, videoService, validate),
		Hub:         hub,
		UploadLimit: middleware.NewRateLimiter(redisClient, log).UploadLimit(cfg.RateLimit.UploadPerHour),
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: handler.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if cfg.Server.LogLevel == "debug" {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
	}
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	routes.Mount(app)

	// Development setups can run the analysis worker in-process
	var workerServer *asynq.Server
	if cfg.Server.EmbeddedWorker {
		srv, mux := worker.Setup(cfg, worker.Deps{
			Storage:   storage,
			Jobs:      jobs,
			Publisher: events.NewRedisPublisher(redisClient),
			Logger:    log,
		})
		if err := srv.Start(mux); err != nil {
			log.WithError(err).Fatal("Embedded worker failed to start")
		}
		workerServer = srv
		log.Info("Embedded analysis worker started")
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("Server shutdown error")
		}
		if workerServer != nil {
			workerServer.Shutdown()
		}
		stop()
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.WithField("addr", addr).Info("Server starting")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("Server error")
	}
}

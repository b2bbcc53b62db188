package main

import (
	"context"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/pickperfect/api/internal/client"
	"github.com/pickperfect/api/internal/config"
	"github.com/pickperfect/api/internal/events"
	"github.com/pickperfect/api/internal/logger"
	"github.com/pickperfect/api/internal/repository"
	"github.com/pickperfect/api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("", "info").WithError(err).Fatal("Failed to load config")
	}

	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	ctx := context.Background()

	mongoClient, err := repository.Connect(ctx, &cfg.Mongo)
	if err != nil {
		log.WithError(err).Fatal("MongoDB not available")
	}
	defer mongoClient.Disconnect(context.Background())

	jobs := repository.NewMongoJobRepository(mongoClient.Database(cfg.Mongo.Database), cfg.Mongo.Collection, log)
	if err := jobs.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Warn("Failed to ensure job indexes")
	}

	storage, err := client.NewS3Client(ctx, &cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("Storage client not initialized")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis not available, status events will be dropped")
	}

	srv, mux := worker.Setup(cfg, worker.Deps{
		Storage:   storage,
		Jobs:      jobs,
		Publisher: events.NewRedisPublisher(redisClient),
		Logger:    log,
	})

	log.WithField("queue", cfg.Worker.Queue).
		WithField("concurrency", cfg.Worker.Concurrency).
		Info("Analysis worker starting")

	// Run handles SIGTERM/SIGINT itself and waits for in-flight tasks
	if err := srv.Run(mux); err != nil {
		log.WithError(err).Error("Analysis worker stopped")
		os.Exit(1)
	}
}

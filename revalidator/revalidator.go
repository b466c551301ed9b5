package main

import (
	"context"
	"hsmeta/pkg/cards"
	"hsmeta/pkg/config"
	"hsmeta/pkg/logger"
	"hsmeta/pkg/redis"
	"hsmeta/scheduler/jobs"
	"log"
	"time"
)

// Load the config and just revalidate the reference card cache.
// Used when a patch lands before the scheduled revalidation.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Couldn't initialize the configuration: %v", err)
	}

	runLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Couldn't create the logger: %v", err)
	}
	defer runLogger.Close()

	redisClient := redis.NewClient(cfg.Redis)
	defer redisClient.Close()

	service := cards.NewService(&cards.ServiceDeps{
		Redis:        redisClient,
		ReferenceURL: cfg.Cards.ReferenceURL,
		CacheTTL:     cfg.Cards.CacheTTL,
		Logger:       runLogger.Logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := jobs.RevalidateCards(ctx, service, runLogger.Logger); err != nil {
		log.Fatal("Couldn't download the reference cards to revalidate the cache")
	}
}

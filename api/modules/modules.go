package modules

import (
	"fmt"
	"hsmeta/aggregator/repositories"
	rollupservice "hsmeta/aggregator/services/rollup"
	"hsmeta/api/cache"
	"hsmeta/api/handlers"
	archetypeservice "hsmeta/api/services/archetype"
	deckservice "hsmeta/api/services/deck"
	"hsmeta/pkg/bucket"
	"hsmeta/pkg/config"
	"hsmeta/pkg/database"
	"hsmeta/pkg/models/meta"
	"hsmeta/pkg/redis"
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Module containing the necessary handlers.
type Module struct {
	Router           *gin.Engine
	DeckHandler      *handlers.DeckHandler
	ArchetypeHandler *handlers.ArchetypeHandler

	db                *gorm.DB
	redis             *redis.RedisClient
	deckMemCache      cache.MemCache[*meta.DeckStat]
	archetypeMemCache cache.MemCache[*meta.ArchetypeStat]
}

type ModuleDependencies struct {
	Config *config.Config
	Logger *slog.Logger
}

// Create a new module with all the necessary handlers initialized.
func NewModule(deps *ModuleDependencies) (*Module, error) {
	cfg := deps.Config

	db, err := database.NewConnection(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("couldn't connect to the database: %w", err)
	}

	m := &Module{
		Router:            gin.Default(),
		db:                db,
		redis:             redis.NewClient(cfg.Redis),
		deckMemCache:      cache.NewMemCache[*meta.DeckStat](),
		archetypeMemCache: cache.NewMemCache[*meta.ArchetypeStat](),
	}

	stats := bucket.NewClient(cfg.Bucket, cfg.Bucket.Name)
	prefix := rollupservice.KeyPlanner{Prefix: cfg.Bucket.KeyPrefix}.KeyPrefix()

	deckClasses := cache.NewDeckClassCache(&cache.DeckClassCacheDeps{
		Objects: stats,
		Prefix:  prefix,
		TTL:     cfg.API.DeckClassTTL,
		Logger:  deps.Logger,
	})

	deckService := deckservice.NewDeckService(&deckservice.DeckServiceDeps{
		MemCache:    m.deckMemCache,
		Redis:       m.redis,
		Snapshots:   repositories.NewDeckSnapshotRepository(db),
		Classes:     deckClasses,
		Objects:     stats,
		Prefix:      prefix,
		MemCacheTTL: cfg.API.MemCacheTTL,
		RedisTTL:    cfg.API.RedisTTL,
		DBFreshness: cfg.API.DBFreshness,
		Logger:      deps.Logger,
	})

	archetypeService := archetypeservice.NewArchetypeService(&archetypeservice.ArchetypeServiceDeps{
		MemCache:    m.archetypeMemCache,
		Redis:       m.redis,
		Objects:     stats,
		Prefix:      prefix,
		MemCacheTTL: cfg.API.MemCacheTTL,
		RedisTTL:    cfg.API.RedisTTL,
	})

	m.DeckHandler = handlers.NewDeckHandler(&handlers.DeckHandlerDependencies{
		DeckService: deckService,
	})
	m.ArchetypeHandler = handlers.NewArchetypeHandler(&handlers.ArchetypeHandlerDependencies{
		ArchetypeService: archetypeService,
	})

	return m, nil
}

// Close the caches and connections of the module.
func (m *Module) Close() {
	m.deckMemCache.Close()
	m.archetypeMemCache.Close()
	m.redis.Close()
	if sqlDB, err := m.db.DB(); err == nil {
		sqlDB.Close()
	}
}

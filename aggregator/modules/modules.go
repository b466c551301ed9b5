package modules

import (
	"context"
	"fmt"
	"hsmeta/aggregator/repositories"
	archetypeservice "hsmeta/aggregator/services/archetype"
	persistservice "hsmeta/aggregator/services/persist"
	rollupservice "hsmeta/aggregator/services/rollup"
	"hsmeta/pkg/bucket"
	"hsmeta/pkg/cards"
	"hsmeta/pkg/config"
	"hsmeta/pkg/database"
	"hsmeta/pkg/metrics"
	"hsmeta/pkg/redis"
	"hsmeta/scheduler/jobs"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Module containing the rollup pipeline and its connections.
type Module struct {
	DB         *gorm.DB
	Redis      *redis.RedisClient
	Stats      *bucket.Client
	Logs       *bucket.Client
	Cards      *cards.Service
	Metrics    *metrics.Rollup
	Keys       rollupservice.KeyPlanner
	Rollup     *rollupservice.RollupService
	Persist    *persistservice.PersistService
	RollupJobs *jobs.RollupJobs
}

type ModuleDependencies struct {
	Config *config.Config
	Logger *slog.Logger
	// Nil skips the metrics.
	Registerer prometheus.Registerer
}

// Create a new module with every connection opened and the services wired.
func NewModule(ctx context.Context, deps *ModuleDependencies) (*Module, error) {
	cfg := deps.Config
	logger := deps.Logger

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	lastPatch, err := cfg.Rollup.LastPatch()
	if err != nil {
		return nil, err
	}

	db, err := database.NewConnection(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	m := &Module{
		DB:    db,
		Redis: redis.NewClient(cfg.Redis),
		Stats: bucket.NewClient(cfg.Bucket, cfg.Bucket.Name),
		Keys: rollupservice.KeyPlanner{
			Prefix:    cfg.Bucket.KeyPrefix,
			LastPatch: lastPatch,
		},
	}
	if cfg.Bucket.LogBucket != "" {
		m.Logs = bucket.NewClient(cfg.Bucket, cfg.Bucket.LogBucket)
	}
	if deps.Registerer != nil {
		m.Metrics = metrics.NewRollup(deps.Registerer)
	}

	m.Cards = cards.NewService(&cards.ServiceDeps{
		Redis:        m.Redis,
		ReferenceURL: cfg.Cards.ReferenceURL,
		CacheTTL:     cfg.Cards.CacheTTL,
		Logger:       logger,
	})
	if err := m.Cards.Load(ctx); err != nil {
		m.Close()
		return nil, fmt.Errorf("couldn't load the card reference: %w", err)
	}

	archetypeService := archetypeservice.NewArchetypeService(&archetypeservice.ArchetypeServiceDeps{
		Normalizer: m.Cards,
		Decoder:    cards.NewDecoder(m.Cards),
		Logger:     logger,
	})

	m.Rollup = rollupservice.NewRollupService(&rollupservice.RollupServiceDeps{
		Shards:           repositories.NewShardRepository(m.Stats),
		Archetypes:       repositories.NewArchetypeRepository(db),
		ArchetypeService: archetypeService,
		Normalizer:       m.Cards,
		Metrics:          m.Metrics,
		Logger:           logger,
		BatchSize:        cfg.Rollup.BatchSize,
		MinDeckCards:     cfg.Rollup.MinDeckCards,
	})

	m.Persist = persistservice.NewPersistService(&persistservice.PersistServiceDeps{
		Objects:             m.Stats,
		Snapshots:           repositories.NewDeckSnapshotRepository(db),
		Keys:                m.Keys,
		Logger:              logger,
		GamesFloor:          cfg.Rollup.GamesFloor,
		DetailedCardDivisor: cfg.Rollup.DetailedCardDivisor,
		UpsertBatchSize:     cfg.Rollup.UpsertBatchSize,
		UpsertRetries:       cfg.Rollup.UpsertRetries,
		UpsertBackoff:       cfg.Rollup.UpsertBackoff,
	})

	m.RollupJobs = jobs.NewRollupJobs(&jobs.RollupJobsDeps{
		Rollup:  m.Rollup,
		Persist: m.Persist,
		Keys:    m.Keys,
		Logger:  logger,
	})

	return m, nil
}

// Close the connections of the module.
func (m *Module) Close() {
	if m.Redis != nil {
		m.Redis.Close()
	}
	if m.DB != nil {
		if sqlDB, err := m.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

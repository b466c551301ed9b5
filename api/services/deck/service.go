package deckservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hsmeta/api/cache"
	"hsmeta/pkg/bucket"
	"hsmeta/pkg/models/meta"
	"log/slog"
	"strings"
	"time"
)

const (
	DeckMemoryCacheDuration = 15 * time.Minute
	DeckRedisCacheDuration  = time.Hour
	DefaultDBFreshness      = 24 * time.Hour
)

var ErrDeckNotFound = errors.New("deck not found")

type DeckRedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type DeckSnapshotStore interface {
	GetDeck(ctx context.Context, key meta.DeckSnapshotKey) (*meta.DeckSnapshotRow, error)
	UpsertDecks(ctx context.Context, rows []meta.DeckSnapshotRow) error
}

type DeckClassResolver interface {
	ClassOf(ctx context.Context, window meta.Selector, deckID string, now time.Time) (string, bool, error)
}

type ObjectReader interface {
	GetJSON(ctx context.Context, key string, out any) error
}

// Deck service reading through the memory cache, redis, the database and the stats bucket.
type DeckService struct {
	memCache    cache.MemCache[*meta.DeckStat]
	redis       DeckRedisClient
	snapshots   DeckSnapshotStore
	classes     DeckClassResolver
	objects     ObjectReader
	prefix      string
	memCacheTTL time.Duration
	redisTTL    time.Duration
	dbFreshness time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// DeckServiceDeps is the dependency list for the deck service.
type DeckServiceDeps struct {
	MemCache    cache.MemCache[*meta.DeckStat]
	Redis       DeckRedisClient
	Snapshots   DeckSnapshotStore
	Classes     DeckClassResolver
	Objects     ObjectReader
	Prefix      string
	MemCacheTTL time.Duration
	RedisTTL    time.Duration
	DBFreshness time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

// NewDeckService creates a deck service.
func NewDeckService(deps *DeckServiceDeps) *DeckService {
	ds := &DeckService{
		memCache:    deps.MemCache,
		redis:       deps.Redis,
		snapshots:   deps.Snapshots,
		classes:     deps.Classes,
		objects:     deps.Objects,
		prefix:      deps.Prefix,
		memCacheTTL: deps.MemCacheTTL,
		redisTTL:    deps.RedisTTL,
		dbFreshness: deps.DBFreshness,
		logger:      deps.Logger,
		now:         deps.Now,
	}
	if ds.memCacheTTL <= 0 {
		ds.memCacheTTL = DeckMemoryCacheDuration
	}
	if ds.redisTTL <= 0 {
		ds.redisTTL = DeckRedisCacheDuration
	}
	if ds.dbFreshness <= 0 {
		ds.dbFreshness = DefaultDBFreshness
	}
	if ds.logger == nil {
		ds.logger = slog.Default()
	}
	if ds.now == nil {
		ds.now = time.Now
	}
	return ds
}

// GetDeck returns the detailed stats of one deck of the window.
// The deck id is the decklist with "/" replaced by "-".
func (ds *DeckService) GetDeck(ctx context.Context, window meta.Selector, deckID string) (*meta.DeckStat, error) {
	deckID = meta.DeckID(deckID)
	key := ds.getDeckKey(window, deckID)

	if mem := ds.memCache.Get(key); mem != nil {
		return mem, nil
	}

	if redisData := ds.getFromRedis(ctx, key); redisData != nil {
		ds.memCache.Set(key, redisData, ds.memCacheTTL)
		return redisData, nil
	}

	snapshotKey := meta.DeckSnapshotKey{
		Format:      window.Format,
		RankBracket: window.RankBracket,
		TimePeriod:  window.TimePeriod,
		DeckID:      deckID,
	}

	if deck := ds.getFromDatabase(ctx, snapshotKey); deck != nil {
		ds.populateCaches(ctx, key, deck)
		return deck, nil
	}

	deck, err := ds.getFromBucket(ctx, window, deckID)
	if err != nil {
		return nil, err
	}

	ds.storeSnapshot(ctx, snapshotKey, deck)
	ds.populateCaches(ctx, key, deck)

	return deck, nil
}

// getFromRedis retrieves the data from the redis.
func (ds *DeckService) getFromRedis(ctx context.Context, key string) *meta.DeckStat {
	ctx, cancel := context.WithTimeout(ctx, time.Millisecond*200)
	defer cancel()

	redisCached, err := ds.redis.Get(ctx, key)
	if err != nil || redisCached == "" {
		return nil
	}

	var deck meta.DeckStat
	if err := json.Unmarshal([]byte(redisCached), &deck); err != nil {
		return nil
	}
	return &deck
}

// getFromDatabase only returns rows refreshed within the freshness window.
func (ds *DeckService) getFromDatabase(ctx context.Context, key meta.DeckSnapshotKey) *meta.DeckStat {
	row, err := ds.snapshots.GetDeck(ctx, key)
	if err != nil {
		ds.logger.Warn("Couldn't read the deck snapshot", "deck", key.DeckID, "error", err)
		return nil
	}
	if row == nil || ds.now().Sub(row.LastUpdate) > ds.dbFreshness {
		return nil
	}

	var deck meta.DeckStat
	if err := json.Unmarshal(row.Payload, &deck); err != nil {
		ds.logger.Warn("Invalid deck snapshot", "deck", key.DeckID, "error", err)
		return nil
	}
	return &deck
}

// getFromBucket resolves the class of the deck and reads its detailed blob.
func (ds *DeckService) getFromBucket(ctx context.Context, window meta.Selector, deckID string) (*meta.DeckStat, error) {
	class, exists, err := ds.classes.ClassOf(ctx, window, deckID, ds.now())
	if err != nil {
		return nil, fmt.Errorf("couldn't resolve the deck class: %w", err)
	}
	if !exists {
		return nil, ErrDeckNotFound
	}

	sel := window
	sel.PlayerClass = class
	objectKey := meta.OutputKeys{Prefix: ds.prefix, Selector: sel}.DeckDetail(deckID)

	var deck meta.DeckStat
	err = ds.objects.GetJSON(ctx, objectKey, &deck)
	if errors.Is(err, bucket.ErrNotFound) {
		return nil, ErrDeckNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't read the deck: %w", err)
	}
	return &deck, nil
}

// storeSnapshot refreshes the database row, failures only lose the shortcut for the next read.
func (ds *DeckService) storeSnapshot(ctx context.Context, key meta.DeckSnapshotKey, deck *meta.DeckStat) {
	payload, err := json.Marshal(deck)
	if err != nil {
		return
	}

	row := meta.DeckSnapshotRow{
		Key:        key,
		Payload:    payload,
		LastUpdate: ds.now(),
	}
	if err := ds.snapshots.UpsertDecks(ctx, []meta.DeckSnapshotRow{row}); err != nil {
		ds.logger.Warn("Couldn't store the deck snapshot", "deck", key.DeckID, "error", err)
	}
}

// getDeckKey generates the cache key.
func (ds *DeckService) getDeckKey(window meta.Selector, deckID string) string {
	var builder strings.Builder
	builder.WriteString("deck")
	builder.WriteString(":" + string(window.Format))
	builder.WriteString(":" + string(window.RankBracket))
	builder.WriteString(":" + string(window.TimePeriod))
	builder.WriteString(":" + deckID)
	return builder.String()
}

// populateCaches will set the mem cache and redis cache.
func (ds *DeckService) populateCaches(ctx context.Context, key string, deck *meta.DeckStat) {
	ds.memCache.Set(key, deck, ds.memCacheTTL)

	if j, err := json.Marshal(deck); err == nil {
		ds.redis.Set(ctx, key, string(j), ds.redisTTL)
	}
}

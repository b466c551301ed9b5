package archetypeservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hsmeta/api/cache"
	"hsmeta/pkg/bucket"
	"hsmeta/pkg/models/meta"
	"time"
)

const (
	ArchetypeMemoryCacheDuration = 15 * time.Minute
	ArchetypeRedisCacheDuration  = time.Hour
)

var ErrArchetypeNotFound = errors.New("archetype not found")

type ArchetypeRedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type ObjectReader interface {
	GetJSON(ctx context.Context, key string, out any) error
}

type ArchetypeService struct {
	memCache    cache.MemCache[*meta.ArchetypeStat]
	redis       ArchetypeRedisClient
	objects     ObjectReader
	prefix      string
	memCacheTTL time.Duration
	redisTTL    time.Duration
}

type ArchetypeServiceDeps struct {
	MemCache    cache.MemCache[*meta.ArchetypeStat]
	Redis       ArchetypeRedisClient
	Objects     ObjectReader
	Prefix      string
	MemCacheTTL time.Duration
	RedisTTL    time.Duration
}

func NewArchetypeService(deps *ArchetypeServiceDeps) *ArchetypeService {
	as := &ArchetypeService{
		memCache:    deps.MemCache,
		redis:       deps.Redis,
		objects:     deps.Objects,
		prefix:      deps.Prefix,
		memCacheTTL: deps.MemCacheTTL,
		redisTTL:    deps.RedisTTL,
	}
	if as.memCacheTTL <= 0 {
		as.memCacheTTL = ArchetypeMemoryCacheDuration
	}
	if as.redisTTL <= 0 {
		as.redisTTL = ArchetypeRedisCacheDuration
	}
	return as
}

// GetArchetype returns the detailed stats of one archetype of the window.
func (as *ArchetypeService) GetArchetype(ctx context.Context, window meta.Selector, id int) (*meta.ArchetypeStat, error) {
	key := as.getArchetypeKey(window, id)

	if mem := as.memCache.Get(key); mem != nil {
		return mem, nil
	}

	if redisData := as.getFromRedis(ctx, key); redisData != nil {
		as.memCache.Set(key, redisData, as.memCacheTTL)
		return redisData, nil
	}

	sel := meta.Selector{
		Format:      window.Format,
		RankBracket: window.RankBracket,
		TimePeriod:  window.TimePeriod,
	}
	objectKey := meta.OutputKeys{Prefix: as.prefix, Selector: sel}.ArchetypeDetail(id)

	var archetype meta.ArchetypeStat
	err := as.objects.GetJSON(ctx, objectKey, &archetype)
	if errors.Is(err, bucket.ErrNotFound) {
		return nil, ErrArchetypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't read the archetype: %w", err)
	}

	as.populateCaches(ctx, key, &archetype)
	return &archetype, nil
}

// getFromRedis retrieves the data from the redis.
func (as *ArchetypeService) getFromRedis(ctx context.Context, key string) *meta.ArchetypeStat {
	ctx, cancel := context.WithTimeout(ctx, time.Millisecond*200)
	defer cancel()

	redisCached, err := as.redis.Get(ctx, key)
	if err != nil || redisCached == "" {
		return nil
	}

	var archetype meta.ArchetypeStat
	if err := json.Unmarshal([]byte(redisCached), &archetype); err != nil {
		return nil
	}
	return &archetype
}

func (as *ArchetypeService) getArchetypeKey(window meta.Selector, id int) string {
	return fmt.Sprintf("archetype:%s:%s:%s:%d", window.Format, window.RankBracket, window.TimePeriod, id)
}

// populateCaches will set the mem cache and redis cache.
func (as *ArchetypeService) populateCaches(ctx context.Context, key string, archetype *meta.ArchetypeStat) {
	as.memCache.Set(key, archetype, as.memCacheTTL)

	if j, err := json.Marshal(archetype); err == nil {
		as.redis.Set(ctx, key, string(j), as.redisTTL)
	}
}

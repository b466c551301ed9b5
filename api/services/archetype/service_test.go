package archetypeservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hsmeta/api/services/testutil"
	"hsmeta/pkg/bucket"
	"hsmeta/pkg/models/meta"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testPrefix = "api/constructed/stats"

var testWindow = meta.Selector{Format: "wild", RankBracket: "diamond", TimePeriod: "last-patch"}

func setupTestService() (*ArchetypeService, *testutil.MockMemCache[*meta.ArchetypeStat], *testutil.MockRedisClient, *testutil.MockObjectReader) {
	memCache := new(testutil.MockMemCache[*meta.ArchetypeStat])
	redis := new(testutil.MockRedisClient)
	objects := new(testutil.MockObjectReader)

	service := NewArchetypeService(&ArchetypeServiceDeps{
		MemCache: memCache,
		Redis:    redis,
		Objects:  objects,
		Prefix:   testPrefix,
	})
	return service, memCache, redis, objects
}

func createTestArchetype() *meta.ArchetypeStat {
	winrate := 0.5
	return &meta.ArchetypeStat{
		ID:            7,
		Name:          "Big Rogue",
		Format:        "wild",
		HeroCardClass: "rogue",
		TotalGames:    400,
		TotalWins:     200,
		Winrate:       &winrate,
		CoreCards:     []string{"CS2_072", "EX1_144"},
		CardsData:     []meta.CardStat{},
		MatchupInfo:   []meta.MatchupInfo{},
	}
}

func TestGetArchetype(t *testing.T) {
	archetype := createTestArchetype()
	archetypeJSON, err := json.Marshal(archetype)
	require.NoError(t, err)

	cacheKey := "archetype:wild:diamond:last-patch:7"
	objectKey := fmt.Sprintf("%s/archetypes/wild/diamond/last-patch/archetype/7.gz.json", testPrefix)

	tests := []struct {
		name          string
		setup         func(mc *testutil.MockMemCache[*meta.ArchetypeStat], redis *testutil.MockRedisClient, objects *testutil.MockObjectReader)
		expected      *meta.ArchetypeStat
		expectedError error
	}{
		{
			name: "fromMemCache",
			setup: func(mc *testutil.MockMemCache[*meta.ArchetypeStat], redis *testutil.MockRedisClient, objects *testutil.MockObjectReader) {
				mc.On("Get", cacheKey).Return(archetype)
			},
			expected: archetype,
		},
		{
			name: "fromRedis",
			setup: func(mc *testutil.MockMemCache[*meta.ArchetypeStat], redis *testutil.MockRedisClient, objects *testutil.MockObjectReader) {
				mc.On("Get", cacheKey).Return(nil)
				redis.On("Get", mock.AnythingOfType(testutil.DefaultTimerCtx), cacheKey).Return(string(archetypeJSON), nil)
				mc.On("Set", cacheKey, archetype, ArchetypeMemoryCacheDuration).Return()
			},
			expected: archetype,
		},
		{
			name: "fromBucket",
			setup: func(mc *testutil.MockMemCache[*meta.ArchetypeStat], redis *testutil.MockRedisClient, objects *testutil.MockObjectReader) {
				mc.On("Get", cacheKey).Return(nil)
				redis.On("Get", mock.AnythingOfType(testutil.DefaultTimerCtx), cacheKey).Return("", nil)
				objects.On("GetJSON", mock.Anything, objectKey, mock.Anything).Return(func(out any) {
					_ = json.Unmarshal(archetypeJSON, out)
				}, nil)
				mc.On("Set", cacheKey, archetype, ArchetypeMemoryCacheDuration).Return()
				redis.On("Set", mock.Anything, cacheKey, string(archetypeJSON), ArchetypeRedisCacheDuration).Return(nil)
			},
			expected: archetype,
		},
		{
			name: "notFound",
			setup: func(mc *testutil.MockMemCache[*meta.ArchetypeStat], redis *testutil.MockRedisClient, objects *testutil.MockObjectReader) {
				mc.On("Get", cacheKey).Return(nil)
				redis.On("Get", mock.AnythingOfType(testutil.DefaultTimerCtx), cacheKey).Return("", nil)
				objects.On("GetJSON", mock.Anything, objectKey, mock.Anything).Return(nil, fmt.Errorf("%w: %s", bucket.ErrNotFound, objectKey))
			},
			expectedError: ErrArchetypeNotFound,
		},
		{
			name: "bucketError",
			setup: func(mc *testutil.MockMemCache[*meta.ArchetypeStat], redis *testutil.MockRedisClient, objects *testutil.MockObjectReader) {
				mc.On("Get", cacheKey).Return(nil)
				redis.On("Get", mock.AnythingOfType(testutil.DefaultTimerCtx), cacheKey).Return("", nil)
				objects.On("GetJSON", mock.Anything, objectKey, mock.Anything).Return(nil, errors.New("access denied"))
			},
			expectedError: errors.New("couldn't read the archetype: access denied"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, memCache, redis, objects := setupTestService()
			tt.setup(memCache, redis, objects)

			// The class of the selector is ignored.
			window := testWindow
			window.PlayerClass = "rogue"
			result, err := service.GetArchetype(context.Background(), window, 7)

			switch {
			case tt.expectedError == nil:
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			case errors.Is(tt.expectedError, ErrArchetypeNotFound):
				assert.ErrorIs(t, err, ErrArchetypeNotFound)
				assert.Nil(t, result)
			default:
				assert.EqualError(t, err, tt.expectedError.Error())
				assert.Nil(t, result)
			}

			testutil.VerifyAllMocks(t, memCache, redis, objects)
		})
	}
}

package cards

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReferenceRedisClient struct {
	mock.Mock
}

func (m *MockReferenceRedisClient) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockReferenceRedisClient) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

var referenceCards = []ReferenceCard{
	{ID: "CORE_A", DbfID: 100},
	{ID: "LEGACY_B", DbfID: 200},
	{ID: "CORE_B", DbfID: 201, DeckDuplicateDbfID: 200},
	{ID: "ORPHAN", DbfID: 202, DeckDuplicateDbfID: 999},
}

func referenceServer(t *testing.T, status int, cards []ReferenceCard) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	calls := new(atomic.Int32)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(cards)
	}))
	t.Cleanup(server.Close)
	return server, calls
}

func TestBaseCardID(t *testing.T) {
	service := NewStaticService(referenceCards)

	tests := []struct {
		cardID   string
		expected string
	}{
		{cardID: "CORE_A", expected: "CORE_A"},
		{cardID: "CORE_B", expected: "LEGACY_B"},
		{cardID: "ORPHAN", expected: "ORPHAN"},
		{cardID: "UNKNOWN", expected: "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.cardID, func(t *testing.T) {
			assert.Equal(t, tt.expected, service.BaseCardID(tt.cardID))
		})
	}
}

func TestLoadFromRedis(t *testing.T) {
	mockRedis := new(MockReferenceRedisClient)
	cached, _ := json.Marshal(referenceCards)
	mockRedis.On("Get", mock.Anything, ReferenceCacheKey).Return(string(cached), nil)

	service := NewService(&ServiceDeps{Redis: mockRedis, ReferenceURL: "http://unused.invalid"})
	require.NoError(t, service.Load(context.Background()))

	assert.True(t, service.Loaded())
	card, ok := service.CardByDbfID(201)
	assert.True(t, ok)
	assert.Equal(t, "CORE_B", card.ID)
	mockRedis.AssertExpectations(t)
}

func TestLoadDownloadsOnCacheMiss(t *testing.T) {
	server, calls := referenceServer(t, http.StatusOK, referenceCards)

	mockRedis := new(MockReferenceRedisClient)
	mockRedis.On("Get", mock.Anything, ReferenceCacheKey).Return("", nil)
	mockRedis.On("Set", mock.Anything, ReferenceCacheKey, mock.AnythingOfType("string"), time.Hour).Return(nil)

	service := NewService(&ServiceDeps{
		Redis:        mockRedis,
		ReferenceURL: server.URL,
		CacheTTL:     time.Hour,
	})
	require.NoError(t, service.Load(context.Background()))

	assert.Equal(t, int32(1), calls.Load())
	_, ok := service.Card("CORE_A")
	assert.True(t, ok)
	mockRedis.AssertExpectations(t)
}

func TestRevalidateCacheErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		cards  []ReferenceCard
		setErr error
		errMsg string
	}{
		{name: "bad status", status: http.StatusBadGateway, cards: referenceCards, errMsg: "unexpected status"},
		{name: "empty list", status: http.StatusOK, cards: []ReferenceCard{}, errMsg: ErrEmptyReference.Error()},
		{name: "redis failure", status: http.StatusOK, cards: referenceCards, setErr: errors.New("redis down"), errMsg: "redis down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := referenceServer(t, tt.status, tt.cards)
			mockRedis := new(MockReferenceRedisClient)
			if tt.setErr != nil {
				mockRedis.On("Set", mock.Anything, ReferenceCacheKey, mock.Anything, DefaultCacheTTL).Return(tt.setErr)
			}

			service := NewService(&ServiceDeps{Redis: mockRedis, ReferenceURL: server.URL})
			err := service.RevalidateCache(context.Background())

			assert.ErrorContains(t, err, tt.errMsg)
			mockRedis.AssertExpectations(t)
		})
	}
}

package testutil

import (
	"context"
	"hsmeta/pkg/models/meta"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
)

const (
	DatabaseError = "database error occurred"
	// Context type produced by context.WithTimeout.
	DefaultTimerCtx = "*context.timerCtx"
)

// Assert the expectations of all mocks.
func VerifyAllMocks(t *testing.T, mocks ...any) {
	t.Helper()

	for _, m := range mocks {
		if mockObj, ok := m.(interface{ AssertExpectations(*testing.T) bool }); ok {
			mockObj.AssertExpectations(t)
		}
	}
}

// ============================================================================
// Mock implementations shared by the deck and archetype service tests.
// ============================================================================

// MemCache mock implementation.
type MockMemCache[T any] struct {
	mock.Mock
}

func (m *MockMemCache[T]) Close() {
	m.Called()
}

func (m *MockMemCache[T]) Set(key string, value T, ttl time.Duration) {
	m.Called(key, value, ttl)
}

func (m *MockMemCache[T]) Get(key string) T {
	args := m.Called(key)
	if args.Get(0) == nil {
		var zero T
		return zero
	}
	return args.Get(0).(T)
}

// Redis client mock implementation.
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

// Object storage mock implementation.
// The first return value, when set, is a func(out any) filling the output.
type MockObjectReader struct {
	mock.Mock
}

func (m *MockObjectReader) GetJSON(ctx context.Context, key string, out any) error {
	args := m.Called(ctx, key, out)
	if fill, ok := args.Get(0).(func(out any)); ok && fill != nil {
		fill(out)
	}
	return args.Error(1)
}

// ============================================================================
// Mock implementations used on the deck service tests.
// ============================================================================

type MockDeckSnapshotStore struct {
	mock.Mock
}

func (m *MockDeckSnapshotStore) GetDeck(ctx context.Context, key meta.DeckSnapshotKey) (*meta.DeckSnapshotRow, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*meta.DeckSnapshotRow), args.Error(1)
}

func (m *MockDeckSnapshotStore) UpsertDecks(ctx context.Context, rows []meta.DeckSnapshotRow) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

type MockDeckClassResolver struct {
	mock.Mock
}

func (m *MockDeckClassResolver) ClassOf(ctx context.Context, window meta.Selector, deckID string, now time.Time) (string, bool, error) {
	args := m.Called(ctx, window, deckID, now)
	return args.String(0), args.Bool(1), args.Error(2)
}

// ============================================================================
// Mock implementations used on the handler tests.
// ============================================================================

type MockDeckService struct {
	mock.Mock
}

func (m *MockDeckService) GetDeck(ctx context.Context, window meta.Selector, deckID string) (*meta.DeckStat, error) {
	args := m.Called(ctx, window, deckID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*meta.DeckStat), args.Error(1)
}

type MockArchetypeService struct {
	mock.Mock
}

func (m *MockArchetypeService) GetArchetype(ctx context.Context, window meta.Selector, id int) (*meta.ArchetypeStat, error) {
	args := m.Called(ctx, window, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*meta.ArchetypeStat), args.Error(1)
}

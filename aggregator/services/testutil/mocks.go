package testutil

import (
	"context"
	"hsmeta/pkg/models/meta"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
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
// Mock implementations used on the rollup service tests.
// ============================================================================

type MockArchetypeSource struct {
	mock.Mock
}

func (m *MockArchetypeSource) ListArchetypes(ctx context.Context) ([]meta.ArchetypeRef, error) {
	args := m.Called(ctx)
	return args.Get(0).([]meta.ArchetypeRef), args.Error(1)
}

// In memory shard source, tracking how many fetches run at the same time.
type FakeShardSource struct {
	Shards map[string]*meta.DeckStats
	Errors map[string]error

	mu          sync.Mutex
	inFlight    int
	MaxInFlight int
	Fetched     []string
	// Optional hook called while a fetch is in flight.
	During func(key string)
}

func (f *FakeShardSource) FetchDeckStats(ctx context.Context, key string) (*meta.DeckStats, error) {
	f.mu.Lock()
	f.inFlight++
	f.MaxInFlight = max(f.MaxInFlight, f.inFlight)
	f.Fetched = append(f.Fetched, key)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.During != nil {
		f.During(key)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.Errors[key]; ok {
		return nil, err
	}
	return f.Shards[key], nil
}

type MockDeckDecoder struct {
	mock.Mock
}

func (m *MockDeckDecoder) DecodeCardIDs(decklist string) ([]string, error) {
	args := m.Called(decklist)
	return args.Get(0).([]string), args.Error(1)
}

// ============================================================================
// Mock implementations used on the persist service tests.
// ============================================================================

type MockObjectWriter struct {
	mock.Mock
}

func (m *MockObjectWriter) PutJSON(ctx context.Context, key string, value any) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

type MockDeckSnapshotRepository struct {
	mock.Mock
}

func (m *MockDeckSnapshotRepository) UpsertDecks(ctx context.Context, rows []meta.DeckSnapshotRow) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

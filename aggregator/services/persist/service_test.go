package persistservice

import (
	"context"
	"errors"
	"hsmeta/aggregator/repositories"
	rollupservice "hsmeta/aggregator/services/rollup"
	"hsmeta/aggregator/services/testutil"
	"hsmeta/pkg/gamevalues"
	"hsmeta/pkg/models/meta"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testSelector = meta.Selector{
	Format:      gamevalues.FormatStandard,
	RankBracket: gamevalues.RankLegend,
	TimePeriod:  gamevalues.PeriodPast7,
	PlayerClass: "mage",
}

const (
	archetypeDetailKey   = "test/archetypes/standard/legend/past-7/archetype/1.gz.json"
	deckDetailKey        = "test/decks/standard/legend/past-7/mage/deck/AAE-CAR.gz.json"
	allDecksKey          = "test/decks/standard/legend/past-7/all-decks-mage.gz.json"
	allDeckIDsKey        = "test/decks/standard/legend/past-7/all-decks-ids-mage.gz.json"
	archetypeOverviewKey = "test/archetypes/standard/legend/past-7/overview-from-hourly-mage.gz.json"
	deckOverviewKey      = "test/decks/standard/legend/past-7/overview-from-hourly-mage.gz.json"
	upsertEvent          = "upsert"
)

// Records the order of every write.
type recorder struct {
	mu      sync.Mutex
	events  []string
	written map[string]any
	rows    [][]meta.DeckSnapshotRow
}

func (r *recorder) put(args mock.Arguments) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := args.String(1)
	r.events = append(r.events, key)
	r.written[key] = args.Get(2)
}

func (r *recorder) upsert(args mock.Arguments) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, upsertEvent)
	r.rows = append(r.rows, args.Get(1).([]meta.DeckSnapshotRow))
}

func setupTestService() (*PersistService, *testutil.MockObjectWriter, *testutil.MockDeckSnapshotRepository, *recorder, *int) {
	writer := new(testutil.MockObjectWriter)
	repo := new(testutil.MockDeckSnapshotRepository)
	rec := &recorder{written: map[string]any{}}
	sleeps := 0

	service := NewPersistService(&PersistServiceDeps{
		Objects:   writer,
		Snapshots: repo,
		Keys:      rollupservice.KeyPlanner{Prefix: "test"},
		Now: func() time.Time {
			return time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
		},
		Sleep: func(ctx context.Context, d time.Duration) error {
			sleeps++
			return nil
		},
		GamesFloor:      DefaultGamesFloor,
		UpsertBatchSize: 1,
		UpsertRetries:   3,
	})
	return service, writer, repo, rec, &sleeps
}

func testSnapshot() *rollupservice.Snapshot {
	winrate := 0.5
	return &rollupservice.Snapshot{
		Selector:   testSelector,
		LastUpdate: meta.NewTimestamp(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)),
		Decks: []meta.DeckStat{
			{
				Decklist:    "AAE/CAR",
				ArchetypeID: 1,
				TotalGames:  60,
				TotalWins:   30,
				Winrate:     &winrate,
				CardsData: []meta.CardStat{
					{CardID: "A", InStartingDeck: 60},
					{CardID: "B", InStartingDeck: 1},
				},
				MatchupInfo: []meta.MatchupInfo{{OpponentClass: "rogue", TotalGames: 60}},
			},
			{Decklist: "AAE/RARE", ArchetypeID: 2, TotalGames: 10, TotalWins: 4},
		},
		Archetypes: []meta.ArchetypeStat{
			{ID: 1, Name: "tempo-mage", TotalGames: 100, CoreCards: []string{"A"}},
			{ID: 2, Name: "big-mage", TotalGames: 20},
		},
		Shards: 3,
	}
}

func TestSaveWindow(t *testing.T) {
	service, writer, repo, rec, _ := setupTestService()
	writer.On("PutJSON", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Run(rec.put).Return(nil)
	repo.On("UpsertDecks", mock.Anything, mock.Anything).Run(rec.upsert).Return(nil)

	require.NoError(t, service.SaveWindow(context.Background(), testSnapshot()))

	// Overviews come last, after the detail and the database.
	assert.Equal(t, []string{
		archetypeDetailKey,
		deckDetailKey,
		allDecksKey,
		allDeckIDsKey,
		upsertEvent,
		archetypeOverviewKey,
		deckOverviewKey,
	}, rec.events)

	detailed := rec.written[allDecksKey].([]meta.DeckStat)
	require.Len(t, detailed, 1)
	assert.Equal(t, []meta.CardStat{{CardID: "A", InStartingDeck: 60}}, detailed[0].CardsData)
	assert.Equal(t, []string{"AAE-CAR"}, rec.written[allDeckIDsKey])

	deckOverview := rec.written[deckOverviewKey].(meta.DeckOverview)
	assert.Equal(t, int64(70), deckOverview.DataPoints)
	require.Len(t, deckOverview.DeckStats, 1)
	assert.Equal(t, "AAE/CAR", deckOverview.DeckStats[0].Decklist)
	assert.Equal(t, gamevalues.PeriodPast7, deckOverview.TimePeriod)

	archetypeOverview := rec.written[archetypeOverviewKey].(meta.ArchetypeOverview)
	assert.Equal(t, int64(120), archetypeOverview.DataPoints)
	require.Len(t, archetypeOverview.ArchetypeStats, 1)
	assert.Equal(t, "tempo-mage", archetypeOverview.ArchetypeStats[0].Name)

	require.Len(t, rec.rows, 1)
	row := rec.rows[0][0]
	assert.Equal(t, meta.DeckSnapshotKey{
		Format:      gamevalues.FormatStandard,
		RankBracket: gamevalues.RankLegend,
		TimePeriod:  gamevalues.PeriodPast7,
		DeckID:      "AAE-CAR",
	}, row.Key)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), row.LastUpdate)
	assert.Contains(t, string(row.Payload), `"decklist":"AAE/CAR"`)

	testutil.VerifyAllMocks(t, writer, repo)
}

func TestSaveWindowUpsertRetries(t *testing.T) {
	transient := errors.Join(repositories.ErrTransientContention, errors.New("deadlock detected"))

	tests := []struct {
		name           string
		failures       []error
		expectedErr    string
		expectedSleeps int
		overviews      bool
	}{
		{
			name:           "recovers after contention",
			failures:       []error{transient, transient},
			expectedSleeps: 2,
			overviews:      true,
		},
		{
			name:           "gives up after the retries",
			failures:       []error{transient, transient, transient, transient},
			expectedErr:    "max retries exceeded",
			expectedSleeps: 3,
		},
		{
			name:        "permanent error",
			failures:    []error{errors.New("value too long")},
			expectedErr: "value too long",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, writer, repo, rec, sleeps := setupTestService()
			writer.On("PutJSON", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Run(rec.put).Return(nil)
			for _, failure := range tt.failures {
				repo.On("UpsertDecks", mock.Anything, mock.Anything).Return(failure).Once()
			}
			repo.On("UpsertDecks", mock.Anything, mock.Anything).Return(nil).Maybe()

			err := service.SaveWindow(context.Background(), testSnapshot())

			if tt.expectedErr != "" {
				assert.ErrorContains(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedSleeps, *sleeps)
			_, written := rec.written[deckOverviewKey]
			assert.Equal(t, tt.overviews, written)
		})
	}
}

func TestSaveWindowStopsOnWriteError(t *testing.T) {
	service, writer, repo, _, _ := setupTestService()
	writer.On("PutJSON", mock.Anything, archetypeDetailKey, mock.Anything).Return(errors.New("bucket unavailable"))

	err := service.SaveWindow(context.Background(), testSnapshot())

	assert.ErrorContains(t, err, "bucket unavailable")
	repo.AssertNotCalled(t, "UpsertDecks", mock.Anything, mock.Anything)
	writer.AssertNotCalled(t, "PutJSON", mock.Anything, deckOverviewKey, mock.Anything)
}

func TestSaveWindowWithoutDatabase(t *testing.T) {
	writer := new(testutil.MockObjectWriter)
	writer.On("PutJSON", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil)

	service := NewPersistService(&PersistServiceDeps{
		Objects:    writer,
		Keys:       rollupservice.KeyPlanner{Prefix: "test"},
		GamesFloor: DefaultGamesFloor,
	})

	require.NoError(t, service.SaveWindow(context.Background(), testSnapshot()))
	writer.AssertNumberOfCalls(t, "PutJSON", 6)
}

func TestSaveDay(t *testing.T) {
	service, writer, _, rec, _ := setupTestService()
	writer.On("PutJSON", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Run(rec.put).Return(nil)

	snapshot := testSnapshot()
	snapshot.Selector.TimePeriod = ""
	day := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)

	require.NoError(t, service.SaveDay(context.Background(), snapshot, day))

	deckKey := "test/decks/standard/legend/daily/2024-05-01T00:00:00.000Z-mage.gz.json"
	archetypeKey := "test/archetypes/standard/legend/daily/2024-05-01T00:00:00.000Z-mage.gz.json"
	assert.Equal(t, []string{deckKey, archetypeKey}, rec.events)

	// The daily documents keep every deck, with its full detail.
	decks := rec.written[deckKey].(meta.DeckStats)
	assert.Len(t, decks.DeckStats, 2)
	assert.Equal(t, int64(70), decks.DataPoints)
	assert.Len(t, decks.DeckStats[0].CardsData, 2)

	archetypes := rec.written[archetypeKey].(meta.ArchetypeStats)
	assert.Len(t, archetypes.ArchetypeStats, 2)
	assert.Equal(t, int64(120), archetypes.DataPoints)
}

func TestSaveWindowWithZeroFloorAndRetries(t *testing.T) {
	writer := new(testutil.MockObjectWriter)
	repo := new(testutil.MockDeckSnapshotRepository)
	rec := &recorder{written: map[string]any{}}
	sleeps := 0
	writer.On("PutJSON", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Run(rec.put).Return(nil)
	repo.On("UpsertDecks", mock.Anything, mock.Anything).Run(rec.upsert).Return(nil)

	service := NewPersistService(&PersistServiceDeps{
		Objects:   writer,
		Snapshots: repo,
		Keys:      rollupservice.KeyPlanner{Prefix: "test"},
		Sleep: func(ctx context.Context, d time.Duration) error {
			sleeps++
			return nil
		},
	})
	assert.Equal(t, int64(0), service.gamesFloor)
	assert.Equal(t, 0, service.upsertRetries)

	require.NoError(t, service.SaveWindow(context.Background(), testSnapshot()))

	// Every aggregate passes a floor of zero, the 10 games deck included.
	deckOverview := rec.written[deckOverviewKey].(meta.DeckOverview)
	require.Len(t, deckOverview.DeckStats, 2)
	assert.Equal(t, "AAE/RARE", deckOverview.DeckStats[1].Decklist)
	archetypeOverview := rec.written[archetypeOverviewKey].(meta.ArchetypeOverview)
	assert.Len(t, archetypeOverview.ArchetypeStats, 2)

	// Without retries a contention fails on the first attempt.
	failing := new(testutil.MockDeckSnapshotRepository)
	failing.On("UpsertDecks", mock.Anything, mock.Anything).Return(repositories.ErrTransientContention).Once()
	service.snapshots = failing

	err := service.SaveWindow(context.Background(), testSnapshot())
	assert.ErrorContains(t, err, "max retries exceeded")
	assert.Zero(t, sleeps)
	failing.AssertNumberOfCalls(t, "UpsertDecks", 1)
}

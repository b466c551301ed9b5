package persistservice

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hsmeta/aggregator/repositories"
	rollupservice "hsmeta/aggregator/services/rollup"
	"hsmeta/pkg/models/meta"
	"io"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultGamesFloor          = 50
	DefaultDetailedCardDivisor = 50
	DefaultUpsertBatchSize     = 50
	DefaultUpsertRetries       = 15
	DefaultUpsertBackoff       = 200 * time.Millisecond

	blobWriteConcurrency = 10
)

type ObjectWriter interface {
	PutJSON(ctx context.Context, key string, value any) error
}

type DeckSnapshotWriter interface {
	UpsertDecks(ctx context.Context, rows []meta.DeckSnapshotRow) error
}

// Writes the rollup snapshots to the object storage and the database.
type PersistService struct {
	objects   ObjectWriter
	snapshots DeckSnapshotWriter
	keys      rollupservice.KeyPlanner
	logger    *slog.Logger

	gamesFloor          int64
	detailedCardDivisor int64
	upsertBatchSize     int
	upsertRetries       int
	upsertBackoff       time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// PersistServiceDeps is the dependency list for the persist service.
type PersistServiceDeps struct {
	Objects ObjectWriter
	// Nil skips the database upsert.
	Snapshots DeckSnapshotWriter
	Keys      rollupservice.KeyPlanner
	Logger    *slog.Logger

	// Used as given, zero keeps every aggregate and disables the retries.
	GamesFloor    int64
	UpsertRetries int
	UpsertBackoff time.Duration
	// Zero falls back to the defaults.
	DetailedCardDivisor int64
	UpsertBatchSize     int

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewPersistService(deps *PersistServiceDeps) *PersistService {
	ps := &PersistService{
		objects:             deps.Objects,
		snapshots:           deps.Snapshots,
		keys:                deps.Keys,
		logger:              deps.Logger,
		gamesFloor:          max(deps.GamesFloor, 0),
		detailedCardDivisor: cmp.Or(deps.DetailedCardDivisor, DefaultDetailedCardDivisor),
		upsertBatchSize:     cmp.Or(deps.UpsertBatchSize, DefaultUpsertBatchSize),
		upsertRetries:       max(deps.UpsertRetries, 0),
		upsertBackoff:       max(deps.UpsertBackoff, 0),
		now:                 deps.Now,
		sleep:               deps.Sleep,
	}
	if ps.logger == nil {
		ps.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if ps.now == nil {
		ps.now = time.Now
	}
	if ps.sleep == nil {
		ps.sleep = sleepContext
	}
	return ps
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SaveWindow writes every output of a rolling window.
// The detail documents go first and the overviews last, so a listing never
// points at a deck or archetype that wasn't written.
func (ps *PersistService) SaveWindow(ctx context.Context, snapshot *rollupservice.Snapshot) error {
	keys := meta.OutputKeys{Prefix: ps.keys.KeyPrefix(), Selector: snapshot.Selector}
	logger := ps.logger.With("selector", snapshot.Selector.String())

	archetypes := ps.detailedArchetypes(snapshot.Archetypes)
	if err := ps.writeAll(ctx, len(archetypes), func(i int) (string, any) {
		return keys.ArchetypeDetail(archetypes[i].ID), archetypes[i]
	}); err != nil {
		return fmt.Errorf("failed to save the archetype details: %w", err)
	}
	logger.Info("Saved detailed archetypes", "count", len(archetypes))

	decks := ps.detailedDecks(snapshot.Decks)
	if err := ps.writeAll(ctx, len(decks), func(i int) (string, any) {
		return keys.DeckDetail(meta.DeckID(decks[i].Decklist)), decks[i]
	}); err != nil {
		return fmt.Errorf("failed to save the deck details: %w", err)
	}

	deckIDs := make([]string, len(decks))
	for i, deck := range decks {
		deckIDs[i] = meta.DeckID(deck.Decklist)
	}
	if err := ps.objects.PutJSON(ctx, keys.AllDecks(), decks); err != nil {
		return fmt.Errorf("failed to save all decks: %w", err)
	}
	if err := ps.objects.PutJSON(ctx, keys.AllDeckIDs(), deckIDs); err != nil {
		return fmt.Errorf("failed to save the deck ids: %w", err)
	}
	logger.Info("Saved detailed decks", "count", len(decks))

	if err := ps.upsertDecks(ctx, logger, snapshot, decks); err != nil {
		return err
	}

	if err := ps.objects.PutJSON(ctx, keys.ArchetypeOverview(), ps.archetypeOverview(snapshot)); err != nil {
		return fmt.Errorf("failed to save the archetype overview: %w", err)
	}
	if err := ps.objects.PutJSON(ctx, keys.DeckOverview(), ps.deckOverview(snapshot)); err != nil {
		return fmt.Errorf("failed to save the deck overview: %w", err)
	}
	logger.Info("Saved overviews", "decks", len(snapshot.Decks), "archetypes", len(snapshot.Archetypes))

	return nil
}

// SaveDay writes the full daily documents read back by the rolling windows.
func (ps *PersistService) SaveDay(ctx context.Context, snapshot *rollupservice.Snapshot, day time.Time) error {
	sel := snapshot.Selector

	deckDoc := meta.DeckStats{
		LastUpdated: snapshot.LastUpdate,
		RankBracket: sel.RankBracket,
		TimePeriod:  sel.TimePeriod,
		Format:      sel.Format,
		DataPoints:  deckDataPoints(snapshot.Decks),
		DeckStats:   snapshot.Decks,
	}
	deckKey := ps.keys.DailyKey(sel.Format, sel.RankBracket, day, sel.PlayerClass)
	if err := ps.objects.PutJSON(ctx, deckKey, deckDoc); err != nil {
		return fmt.Errorf("failed to save the daily decks: %w", err)
	}

	archetypeDoc := meta.ArchetypeStats{
		LastUpdated:    snapshot.LastUpdate,
		RankBracket:    sel.RankBracket,
		TimePeriod:     sel.TimePeriod,
		Format:         sel.Format,
		DataPoints:     archetypeDataPoints(snapshot.Archetypes),
		ArchetypeStats: snapshot.Archetypes,
	}
	archetypeKey := ps.keys.ArchetypeDailyKey(sel.Format, sel.RankBracket, day, sel.PlayerClass)
	if err := ps.objects.PutJSON(ctx, archetypeKey, archetypeDoc); err != nil {
		return fmt.Errorf("failed to save the daily archetypes: %w", err)
	}

	ps.logger.Info("Saved daily rollup", "selector", sel.String(), "key", deckKey, "decks", len(snapshot.Decks))
	return nil
}

// Write n documents with bounded concurrency.
func (ps *PersistService) writeAll(ctx context.Context, n int, doc func(i int) (string, any)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(blobWriteConcurrency)
	for i := range n {
		key, value := doc(i)
		g.Go(func() error {
			return ps.objects.PutJSON(gctx, key, value)
		})
	}
	return g.Wait()
}

func (ps *PersistService) detailedArchetypes(archetypes []meta.ArchetypeStat) []meta.ArchetypeStat {
	detailed := make([]meta.ArchetypeStat, 0, len(archetypes))
	for _, archetype := range archetypes {
		if archetype.TotalGames >= ps.gamesFloor {
			detailed = append(detailed, archetype)
		}
	}
	return detailed
}

// Decks above the games floor, with the negligible cards removed, most played first.
func (ps *PersistService) detailedDecks(decks []meta.DeckStat) []meta.DeckStat {
	detailed := make([]meta.DeckStat, 0, len(decks))
	for _, deck := range decks {
		if deck.TotalGames < ps.gamesFloor {
			continue
		}

		cards := make([]meta.CardStat, 0, len(deck.CardsData))
		for _, card := range deck.CardsData {
			if card.InStartingDeck*ps.detailedCardDivisor > deck.TotalGames {
				cards = append(cards, card)
			}
		}
		deck.CardsData = cards
		detailed = append(detailed, deck)
	}

	slices.SortStableFunc(detailed, func(a, b meta.DeckStat) int {
		return cmp.Or(
			cmp.Compare(b.TotalGames, a.TotalGames),
			cmp.Compare(a.Decklist, b.Decklist),
		)
	})
	return detailed
}

func (ps *PersistService) upsertDecks(ctx context.Context, logger *slog.Logger, snapshot *rollupservice.Snapshot, decks []meta.DeckStat) error {
	if ps.snapshots == nil || len(decks) == 0 {
		return nil
	}

	lastUpdate := snapshot.LastUpdate.Time
	if !snapshot.LastUpdate.Valid {
		lastUpdate = ps.now().UTC()
	}

	rows := make([]meta.DeckSnapshotRow, 0, len(decks))
	for _, deck := range decks {
		payload, err := json.Marshal(deck)
		if err != nil {
			return fmt.Errorf("failed to encode deck %s: %w", deck.Decklist, err)
		}
		rows = append(rows, meta.DeckSnapshotRow{
			Key: meta.DeckSnapshotKey{
				Format:      snapshot.Selector.Format,
				RankBracket: snapshot.Selector.RankBracket,
				TimePeriod:  snapshot.Selector.TimePeriod,
				DeckID:      meta.DeckID(deck.Decklist),
			},
			Payload:    payload,
			LastUpdate: lastUpdate,
		})
	}

	for batch := range slices.Chunk(rows, ps.upsertBatchSize) {
		if err := ps.upsertWithRetry(ctx, logger, batch); err != nil {
			return err
		}
	}
	logger.Info("Upserted decks", "count", len(rows))
	return nil
}

// Retry the batch while the database reports transient contention.
func (ps *PersistService) upsertWithRetry(ctx context.Context, logger *slog.Logger, batch []meta.DeckSnapshotRow) error {
	var err error
	for attempt := 0; attempt <= ps.upsertRetries; attempt++ {
		err = ps.snapshots.UpsertDecks(ctx, batch)
		if err == nil {
			if attempt > 0 {
				logger.Info("Upsert succeeded after retrying", "attempts", attempt+1)
			}
			return nil
		}
		if !errors.Is(err, repositories.ErrTransientContention) {
			return fmt.Errorf("failed to upsert decks: %w", err)
		}

		logger.Warn("Contention on the deck upsert, retrying", "attempt", attempt+1, "error", err)
		if attempt < ps.upsertRetries {
			if err := ps.sleep(ctx, ps.upsertBackoff); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("max retries exceeded on the deck upsert: %w", err)
}

func (ps *PersistService) archetypeOverview(snapshot *rollupservice.Snapshot) meta.ArchetypeOverview {
	summaries := make([]meta.ArchetypeSummary, 0, len(snapshot.Archetypes))
	for _, archetype := range snapshot.Archetypes {
		if archetype.TotalGames >= ps.gamesFloor {
			summaries = append(summaries, meta.ToArchetypeSummary(archetype))
		}
	}

	return meta.ArchetypeOverview{
		LastUpdated:    snapshot.LastUpdate,
		RankBracket:    snapshot.Selector.RankBracket,
		TimePeriod:     snapshot.Selector.TimePeriod,
		Format:         snapshot.Selector.Format,
		DataPoints:     archetypeDataPoints(snapshot.Archetypes),
		ArchetypeStats: summaries,
	}
}

func (ps *PersistService) deckOverview(snapshot *rollupservice.Snapshot) meta.DeckOverview {
	summaries := make([]meta.DeckSummary, 0, len(snapshot.Decks))
	for _, deck := range snapshot.Decks {
		if deck.TotalGames >= ps.gamesFloor {
			summaries = append(summaries, meta.ToDeckSummary(deck))
		}
	}

	return meta.DeckOverview{
		LastUpdated: snapshot.LastUpdate,
		RankBracket: snapshot.Selector.RankBracket,
		TimePeriod:  snapshot.Selector.TimePeriod,
		Format:      snapshot.Selector.Format,
		DataPoints:  deckDataPoints(snapshot.Decks),
		DeckStats:   summaries,
	}
}

func deckDataPoints(decks []meta.DeckStat) int64 {
	var total int64
	for _, deck := range decks {
		total += deck.TotalGames
	}
	return total
}

func archetypeDataPoints(archetypes []meta.ArchetypeStat) int64 {
	var total int64
	for _, archetype := range archetypes {
		total += archetype.TotalGames
	}
	return total
}

package rollupservice

import (
	"context"
	"errors"
	"fmt"
	"hsmeta/aggregator/merge"
	archetypeservice "hsmeta/aggregator/services/archetype"
	deckservice "hsmeta/aggregator/services/deck"
	"hsmeta/pkg/metrics"
	"hsmeta/pkg/models/meta"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const DefaultBatchSize = 5

// A rollup window without any deck. Callers treat it as a no-op, never as a zero snapshot.
var ErrNoData = errors.New("no deck found for the rollup window")

// Reads one shard document.
// A shard that doesn't exist is returned as nil without error.
type ShardSource interface {
	FetchDeckStats(ctx context.Context, key string) (*meta.DeckStats, error)
}

type ArchetypeSource interface {
	ListArchetypes(ctx context.Context) ([]meta.ArchetypeRef, error)
}

// Result of a rollup invocation.
type Snapshot struct {
	Selector   meta.Selector
	LastUpdate meta.Timestamp
	Decks      []meta.DeckStat
	Archetypes []meta.ArchetypeStat
	// Shards that existed and were folded in.
	Shards int
}

// Streams the shards of a window through the deck accumulator, batch by batch,
// so only one batch of raw shards is ever held in memory.
type RollupService struct {
	shards           ShardSource
	archetypes       ArchetypeSource
	archetypeService *archetypeservice.ArchetypeService
	normalizer       merge.Normalizer
	metrics          *metrics.Rollup
	logger           *slog.Logger
	batchSize        int
	minDeckCards     int
	onTransition     func(State)
}

// RollupServiceDeps is the dependency list for the rollup service.
type RollupServiceDeps struct {
	Shards           ShardSource
	Archetypes       ArchetypeSource
	ArchetypeService *archetypeservice.ArchetypeService
	Normalizer       merge.Normalizer
	Metrics          *metrics.Rollup
	Logger           *slog.Logger
	BatchSize        int
	// Decks with this many card records or less are dropped after folding. 0 disables it.
	MinDeckCards int
	// Called on every state change of a run.
	OnTransition func(State)
}

func NewRollupService(deps *RollupServiceDeps) *RollupService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	batchSize := deps.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	archetypeService := deps.ArchetypeService
	if archetypeService == nil {
		archetypeService = archetypeservice.NewArchetypeService(&archetypeservice.ArchetypeServiceDeps{
			Normalizer: deps.Normalizer,
			Logger:     logger,
		})
	}

	return &RollupService{
		shards:           deps.Shards,
		archetypes:       deps.Archetypes,
		archetypeService: archetypeService,
		normalizer:       deps.Normalizer,
		metrics:          deps.Metrics,
		logger:           logger,
		batchSize:        batchSize,
		minDeckCards:     deps.MinDeckCards,
		onTransition:     deps.OnTransition,
	}
}

type rollupRun struct {
	service *RollupService
	logger  *slog.Logger
	state   State
}

func (r *rollupRun) transition(to State) {
	r.logger.Debug("Rollup state change", "from", r.state.String(), "to", to.String())
	r.state = to
	if r.service.onTransition != nil {
		r.service.onTransition(to)
	}
}

// Run the rollup of the given shards for the selector.
// Returns ErrNoData when no deck survives the filters.
func (rs *RollupService) Run(ctx context.Context, sel meta.Selector, keys []string) (*Snapshot, error) {
	start := time.Now()
	snapshot, err := rs.run(ctx, sel, keys)

	switch {
	case err == nil:
		rs.metrics.RollupFinished(metrics.RollupSuccess, time.Since(start))
	case errors.Is(err, ErrNoData):
		rs.metrics.RollupFinished(metrics.RollupEmpty, time.Since(start))
	default:
		rs.metrics.RollupFinished(metrics.RollupFailed, time.Since(start))
	}
	return snapshot, err
}

func (rs *RollupService) run(ctx context.Context, sel meta.Selector, keys []string) (*Snapshot, error) {
	logger := rs.logger.With("selector", sel.String())
	r := &rollupRun{service: rs, logger: logger, state: StateIdle}
	acc := deckservice.NewAccumulator(rs.normalizer, logger)
	found := 0

	logger.Info("Starting rollup", "shards", len(keys), "batchSize", rs.batchSize)
	for batchStart := 0; batchStart < len(keys); batchStart += rs.batchSize {
		batch := keys[batchStart:min(batchStart+rs.batchSize, len(keys))]

		r.transition(StateFetchingBatch)
		docs, err := rs.fetchBatch(ctx, logger, batch)
		if err != nil {
			return nil, err
		}

		r.transition(StateFolding)
		for i, doc := range docs {
			if doc == nil {
				continue
			}
			found++
			for _, deck := range doc.DeckStats {
				if !matchesSelector(deck, sel) {
					continue
				}
				acc.Add(deck, batch[i])
			}
		}
	}

	r.transition(StateFinalizing)
	rs.metrics.DecksRejected("missing_card_id", acc.Rejected())
	if acc.Len() == 0 {
		logger.Info("No deck for the rollup window, nothing to do", "shardsFound", found)
		return nil, ErrNoData
	}

	decks, err := acc.Finalize()
	if err != nil {
		return nil, fmt.Errorf("failed to finalize decks for %s: %w", sel, err)
	}
	decks = rs.dropSmallDecks(decks)
	if len(decks) == 0 {
		logger.Info("Every deck was filtered out, nothing to do", "shardsFound", found)
		return nil, ErrNoData
	}
	for i := range decks {
		decks[i].Format = sel.Format
		decks[i].RankBracket = sel.RankBracket
		decks[i].TimePeriod = sel.TimePeriod
	}

	r.transition(StateEnriching)
	refs, err := rs.archetypes.ListArchetypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load archetypes: %w", err)
	}
	archetypes := rs.archetypeService.Build(decks, refs)
	decks = rs.archetypeService.Enrich(decks, archetypes)

	lastUpdate := meta.Timestamp{}
	for _, deck := range decks {
		lastUpdate = lastUpdate.Max(deck.LastUpdate)
	}

	r.transition(StateDone)
	logger.Info("Rollup done", "shardsFound", found, "decks", len(decks), "archetypes", len(archetypes))

	return &Snapshot{
		Selector:   sel,
		LastUpdate: lastUpdate,
		Decks:      decks,
		Archetypes: archetypes,
		Shards:     found,
	}, nil
}

// Fetch every shard of the batch concurrently.
// A failing shard is logged and treated as absent, only a cancelled context aborts the batch.
func (rs *RollupService) fetchBatch(ctx context.Context, logger *slog.Logger, batch []string) ([]*meta.DeckStats, error) {
	docs := make([]*meta.DeckStats, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(batch))
	for i, key := range batch {
		g.Go(func() error {
			doc, err := rs.shards.FetchDeckStats(gctx, key)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				rs.metrics.ShardFetched(metrics.ShardFailed)
				logger.Warn("Failed to fetch shard, skipping it", "shard", key, "error", err)
				return nil
			}
			if doc == nil {
				rs.metrics.ShardFetched(metrics.ShardMissing)
				logger.Debug("Shard not found", "shard", key)
				return nil
			}

			rs.metrics.ShardFetched(metrics.ShardFound)
			docs[i] = doc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rollup cancelled: %w", err)
	}
	return docs, nil
}

func (rs *RollupService) dropSmallDecks(decks []meta.DeckStat) []meta.DeckStat {
	if rs.minDeckCards <= 0 {
		return decks
	}

	kept := decks[:0]
	for _, deck := range decks {
		if len(deck.CardsData) > rs.minDeckCards {
			kept = append(kept, deck)
		}
	}
	rs.metrics.DecksRejected("too_few_cards", len(decks)-len(kept))
	return kept
}

func matchesSelector(deck meta.DeckStat, sel meta.Selector) bool {
	if deck.Decklist == "" {
		return false
	}
	if sel.PlayerClass != "" && deck.PlayerClass != sel.PlayerClass {
		return false
	}
	return true
}

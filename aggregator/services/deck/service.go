package deckservice

import (
	"fmt"
	"hsmeta/aggregator/merge"
	"hsmeta/pkg/models/meta"
	"io"
	"log/slog"
	"slices"
)

// Raised when a merged deck breaks the card multiplicity invariant.
// It always means that something upstream produced corrupted counters.
type InvariantError struct {
	Decklist   string
	CardID     string
	Field      string
	Value      int64
	TotalGames int64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("decklist %s: card %s has %s=%d, expected a non-zero multiple of %d",
		e.Decklist, e.CardID, e.Field, e.Value, e.TotalGames)
}

type deckGroup struct {
	deck        meta.DeckStat
	heroCardIDs map[string]struct{}
	lastUpdate  meta.Timestamp
	totalGames  int64
	totalWins   int64
	cards       *merge.CardAccumulator
	matchups    *merge.MatchupAccumulator
	discover    *merge.DiscoverAccumulator
	coinPlay    *merge.CoinPlayAccumulator
}

// Folds partial deck aggregates into one aggregate per decklist.
// Not safe for concurrent use, a single goroutine owns it for a whole rollup.
type Accumulator struct {
	normalizer merge.Normalizer
	logger     *slog.Logger
	decks      map[string]*deckGroup
	rejected   int
}

func NewAccumulator(normalizer merge.Normalizer, logger *slog.Logger) *Accumulator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Accumulator{
		normalizer: normalizer,
		logger:     logger,
		decks:      make(map[string]*deckGroup),
	}
}

// Fold one partial aggregate. The source identifies where the data came from, for the logs.
// Returns false when the contribution is rejected by the data quality gate.
func (a *Accumulator) Add(deck meta.DeckStat, source string) bool {
	if hasMissingCardID(deck) {
		a.rejected++
		a.logger.Warn("Rejecting deck contribution with a missing card id",
			"decklist", deck.Decklist, "shard", source)
		return false
	}
	if deck.LastUpdate.Malformed() {
		a.logger.Warn("Ignoring unparseable lastUpdate",
			"decklist", deck.Decklist, "shard", source, "lastUpdate", deck.LastUpdate.Raw)
	}

	group, ok := a.decks[deck.Decklist]
	if !ok {
		group = a.newGroup(deck)
		a.decks[deck.Decklist] = group
	} else if group.deck.ArchetypeID != deck.ArchetypeID {
		a.logger.Warn("Archetype mismatch for the same decklist, keeping the first one",
			"decklist", deck.Decklist, "shard", source,
			"archetypeId", group.deck.ArchetypeID, "otherArchetypeId", deck.ArchetypeID)
	}

	for _, heroCardID := range deck.HeroCardIDs {
		group.heroCardIDs[heroCardID] = struct{}{}
	}
	if group.deck.ArchetypeName == "" {
		group.deck.ArchetypeName = deck.ArchetypeName
	}
	group.lastUpdate = group.lastUpdate.Max(deck.LastUpdate)
	group.totalGames += deck.TotalGames
	group.totalWins += deck.TotalWins
	group.cards.Add(deck.CardsData)
	group.matchups.Add(deck.MatchupInfo)
	group.discover.Add(deck.DiscoverData)
	group.coinPlay.Add(deck.CoinPlayInfo)
	return true
}

func (a *Accumulator) newGroup(deck meta.DeckStat) *deckGroup {
	return &deckGroup{
		deck: meta.DeckStat{
			PlayerClass:   deck.PlayerClass,
			ArchetypeID:   deck.ArchetypeID,
			ArchetypeName: deck.ArchetypeName,
			Decklist:      deck.Decklist,
			RankBracket:   deck.RankBracket,
			TimePeriod:    deck.TimePeriod,
			Format:        deck.Format,
		},
		heroCardIDs: make(map[string]struct{}),
		cards:       merge.NewCardAccumulator(a.normalizer),
		matchups:    merge.NewMatchupAccumulator(a.normalizer),
		discover:    merge.NewDiscoverAccumulator(a.normalizer),
		coinPlay:    merge.NewCoinPlayAccumulator(a.normalizer),
	}
}

// Number of distinct decklists.
func (a *Accumulator) Len() int {
	return len(a.decks)
}

// Number of contributions dropped by the data quality gate.
func (a *Accumulator) Rejected() int {
	return a.rejected
}

// Build the finished aggregates, sorted by decklist.
// The first decklist breaking the multiplicity invariant aborts the build.
func (a *Accumulator) Finalize() ([]meta.DeckStat, error) {
	decklists := make([]string, 0, len(a.decks))
	for decklist := range a.decks {
		decklists = append(decklists, decklist)
	}
	slices.Sort(decklists)

	result := make([]meta.DeckStat, 0, len(decklists))
	for _, decklist := range decklists {
		deck := a.decks[decklist].finish()
		if err := CheckMultiplicity(deck); err != nil {
			a.logger.Error("Deck breaks the card multiplicity invariant", "decklist", decklist, "error", err)
			return nil, err
		}
		result = append(result, deck)
	}
	return result, nil
}

func (g *deckGroup) finish() meta.DeckStat {
	deck := g.deck
	deck.HeroCardIDs = sortedKeys(g.heroCardIDs)
	deck.LastUpdate = g.lastUpdate
	deck.TotalGames = g.totalGames
	deck.TotalWins = g.totalWins
	deck.Winrate = merge.Winrate(g.totalWins, g.totalGames)
	deck.CardsData = g.cards.Result()
	deck.MatchupInfo = g.matchups.Result()
	deck.DiscoverData = g.discover.Result()
	deck.CoinPlayInfo = g.coinPlay.Result()
	return deck
}

// Check that every card slot of the deck was in the starting deck on every game.
func CheckMultiplicity(deck meta.DeckStat) error {
	if deck.TotalGames == 0 {
		return nil
	}

	for _, card := range deck.CardsData {
		if card.InStartingDeck == 0 || card.InStartingDeck%deck.TotalGames != 0 {
			return &InvariantError{
				Decklist:   deck.Decklist,
				CardID:     card.CardID,
				Field:      "inStartingDeck",
				Value:      card.InStartingDeck,
				TotalGames: deck.TotalGames,
			}
		}
		if deck.TotalWins != 0 && (card.Wins == 0 || card.Wins%deck.TotalWins != 0) {
			return &InvariantError{
				Decklist:   deck.Decklist,
				CardID:     card.CardID,
				Field:      "wins",
				Value:      card.Wins,
				TotalGames: deck.TotalWins,
			}
		}
	}
	return nil
}

// Group and fold every input in one go.
func Build(inputs []meta.DeckStat, normalizer merge.Normalizer, logger *slog.Logger) ([]meta.DeckStat, error) {
	acc := NewAccumulator(normalizer, logger)
	for _, input := range inputs {
		acc.Add(input, "")
	}
	return acc.Finalize()
}

func hasMissingCardID(deck meta.DeckStat) bool {
	if merge.HasMissingCardID(deck.CardsData) {
		return true
	}
	for _, matchup := range deck.MatchupInfo {
		if merge.HasMissingCardID(matchup.CardsData) {
			return true
		}
		for _, coinPlay := range matchup.CoinPlayInfo {
			if merge.HasMissingCardID(coinPlay.CardsData) {
				return true
			}
		}
	}
	for _, coinPlay := range deck.CoinPlayInfo {
		if merge.HasMissingCardID(coinPlay.CardsData) {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}

	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

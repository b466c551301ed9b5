package archetypeservice

import (
	"errors"
	"hsmeta/aggregator/merge"
	"hsmeta/pkg/gamevalues"
	"hsmeta/pkg/models/meta"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

const (
	// Average copies per deck needed for a card to be part of the archetype skeleton.
	CoreCardThreshold = 0.9

	// Tolerance on the threshold comparison, for the float accumulation of copies.
	coreCardEpsilon = 1e-9

	// Cards seen in less than one game out of this are dropped from the archetype detail.
	negligibleCardRatio = 1000
)

// Decodes a decklist signature into the card ids it contains, one entry per copy.
type DeckDecoder interface {
	DecodeCardIDs(decklist string) ([]string, error)
}

type ArchetypeService struct {
	normalizer merge.Normalizer
	decoder    DeckDecoder
	logger     *slog.Logger
}

// ArchetypeServiceDeps is the dependency list for the archetype service.
type ArchetypeServiceDeps struct {
	Normalizer merge.Normalizer
	Decoder    DeckDecoder
	Logger     *slog.Logger
}

func NewArchetypeService(deps *ArchetypeServiceDeps) *ArchetypeService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ArchetypeService{
		normalizer: deps.Normalizer,
		decoder:    deps.Decoder,
		logger:     logger,
	}
}

// Build one aggregate per archetype id out of the finished deck aggregates.
// Archetypes without any game are omitted. The result is sorted by archetype id.
func (as *ArchetypeService) Build(decks []meta.DeckStat, refs []meta.ArchetypeRef) []meta.ArchetypeStat {
	names := make(map[int]string, len(refs))
	for _, ref := range refs {
		names[ref.ID] = ref.Name
	}

	groups := make(map[int][]meta.DeckStat)
	for _, deck := range decks {
		groups[deck.ArchetypeID] = append(groups[deck.ArchetypeID], deck)
	}

	ids := slices.Sorted(maps.Keys(groups))
	result := make([]meta.ArchetypeStat, 0, len(ids))
	for _, id := range ids {
		name, ok := names[id]
		if !ok {
			as.logger.Warn("Archetype missing from the reference table", "archetypeId", id)
		}

		archetype := as.buildArchetype(id, name, groups[id])
		if archetype.TotalGames == 0 {
			continue
		}
		result = append(result, archetype)
	}
	return result
}

func (as *ArchetypeService) buildArchetype(id int, name string, decks []meta.DeckStat) meta.ArchetypeStat {
	cards := merge.NewCardAccumulator(as.normalizer)
	matchups := merge.NewMatchupAccumulator(as.normalizer)
	discover := merge.NewDiscoverAccumulator(as.normalizer)
	coinPlay := merge.NewCoinPlayAccumulator(as.normalizer)
	heroCardIDs := make(map[string]struct{})

	var totalGames, totalWins int64
	for _, deck := range decks {
		totalGames += deck.TotalGames
		totalWins += deck.TotalWins
		cards.Add(deck.CardsData)
		matchups.Add(deck.MatchupInfo)
		discover.Add(deck.DiscoverData)
		coinPlay.Add(deck.CoinPlayInfo)
		for _, heroCardID := range deck.HeroCardIDs {
			heroCardIDs[heroCardID] = struct{}{}
		}
	}

	coreCards := []string{}
	if !IsGenericClass(name) {
		coreCards = CoreCards(decks)
	}

	archetype := meta.ArchetypeStat{
		ID:           id,
		Name:         name,
		TotalGames:   totalGames,
		TotalWins:    totalWins,
		Winrate:      merge.Winrate(totalWins, totalGames),
		CoreCards:    coreCards,
		CardsData:    dropNegligibleCards(cards.Result(), totalGames),
		MatchupInfo:  matchups.Result(),
		DiscoverData: discover.Result(),
		CoinPlayInfo: coinPlay.Result(),
	}
	if len(decks) > 0 {
		archetype.Format = decks[0].Format
		archetype.HeroCardClass = decks[0].PlayerClass
	}
	if len(heroCardIDs) > 0 {
		archetype.HeroCardIDs = slices.Sorted(maps.Keys(heroCardIDs))
	}
	return archetype
}

func dropNegligibleCards(cards []meta.CardStat, totalGames int64) []meta.CardStat {
	kept := make([]meta.CardStat, 0, len(cards))
	for _, card := range cards {
		if card.InStartingDeck*negligibleCardRatio > totalGames {
			kept = append(kept, card)
		}
	}
	return kept
}

// Derive the archetype skeleton from the average number of copies each deck runs.
// A card is listed twice when it is core at 2 copies. Decks without games are ignored.
func CoreCards(decks []meta.DeckStat) []string {
	copies := make(map[string]float64)
	numberOfDecks := 0
	for _, deck := range decks {
		if deck.TotalGames == 0 {
			continue
		}
		numberOfDecks++

		inStartingDeck := make(map[string]int64)
		for _, card := range deck.CardsData {
			inStartingDeck[card.CardID] += card.InStartingDeck
		}
		for cardID, total := range inStartingDeck {
			copies[cardID] += float64(total) / float64(deck.TotalGames)
		}
	}

	coreCards := []string{}
	if numberOfDecks == 0 {
		return coreCards
	}

	for _, cardID := range slices.Sorted(maps.Keys(copies)) {
		average := copies[cardID] / float64(numberOfDecks)
		switch {
		case average >= 2*CoreCardThreshold-coreCardEpsilon:
			coreCards = append(coreCards, cardID, cardID)
		case average >= CoreCardThreshold-coreCardEpsilon:
			coreCards = append(coreCards, cardID)
		}
	}
	return coreCards
}

// Check if the archetype is a catch-all bucket named after a class, like "Mage" or "Mage-XL".
func IsGenericClass(name string) bool {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)
	normalized = strings.TrimSuffix(normalized, "xl")
	return gamevalues.IsClass(normalized)
}

// Return copies of the decks with their archetype information filled in.
// Decks whose decklist can't be decoded get an empty variation list.
func (as *ArchetypeService) Enrich(decks []meta.DeckStat, archetypes []meta.ArchetypeStat) []meta.DeckStat {
	byID := make(map[int]meta.ArchetypeStat, len(archetypes))
	for _, archetype := range archetypes {
		byID[archetype.ID] = archetype
	}

	result := make([]meta.DeckStat, 0, len(decks))
	for _, deck := range decks {
		archetype, ok := byID[deck.ArchetypeID]
		if !ok {
			deck.CardVariations = nil
			deck.ArchetypeCoreCards = nil
			result = append(result, deck)
			continue
		}

		variations := meta.CardVariations{Added: []string{}, Removed: []string{}}
		cardIDs, err := as.decodeCardIDs(deck.Decklist)
		if err != nil {
			as.logger.Warn("Treating deck as cardless", "decklist", deck.Decklist, "error", err)
		} else {
			variations = CardVariations(cardIDs, archetype.CoreCards)
		}

		deck.ArchetypeName = archetype.Name
		deck.ArchetypeCoreCards = slices.Clone(archetype.CoreCards)
		deck.CardVariations = &variations
		result = append(result, deck)
	}
	return result
}

func (as *ArchetypeService) decodeCardIDs(decklist string) ([]string, error) {
	if as.decoder == nil {
		return nil, errors.New("no deck decoder configured")
	}

	cardIDs, err := as.decoder.DecodeCardIDs(decklist)
	if err != nil {
		return nil, err
	}

	normalized := make([]string, 0, len(cardIDs))
	for _, cardID := range cardIDs {
		if as.normalizer != nil {
			cardID = as.normalizer.BaseCardID(cardID)
		}
		normalized = append(normalized, cardID)
	}
	return normalized, nil
}

// Multiset difference between the deck cards and the archetype core, one for one.
func CardVariations(deckCards, coreCards []string) meta.CardVariations {
	deckCounts := countCards(deckCards)
	coreCounts := countCards(coreCards)

	added := []string{}
	for _, cardID := range sortedCopy(deckCards) {
		if coreCounts[cardID] > 0 {
			coreCounts[cardID]--
			continue
		}
		added = append(added, cardID)
	}

	removed := []string{}
	for _, cardID := range sortedCopy(coreCards) {
		if deckCounts[cardID] > 0 {
			deckCounts[cardID]--
			continue
		}
		removed = append(removed, cardID)
	}

	return meta.CardVariations{Added: added, Removed: removed}
}

func countCards(cardIDs []string) map[string]int {
	counts := make(map[string]int, len(cardIDs))
	for _, cardID := range cardIDs {
		counts[cardID]++
	}
	return counts
}

func sortedCopy(cardIDs []string) []string {
	sorted := slices.Clone(cardIDs)
	slices.Sort(sorted)
	return sorted
}

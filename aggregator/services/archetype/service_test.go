package archetypeservice

import (
	"errors"
	"hsmeta/pkg/models/meta"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDecoder map[string][]string

func (f fakeDecoder) DecodeCardIDs(decklist string) ([]string, error) {
	if cards, ok := f[decklist]; ok {
		return cards, nil
	}
	return nil, errors.New("unparseable decklist")
}

func testDeck(decklist string, archetypeID int, games, wins int64, cardIDs ...string) meta.DeckStat {
	cards := make([]meta.CardStat, 0, len(cardIDs))
	for _, cardID := range cardIDs {
		cards = append(cards, meta.CardStat{CardID: cardID, InStartingDeck: games, Wins: wins})
	}
	return meta.DeckStat{
		Decklist:    decklist,
		ArchetypeID: archetypeID,
		PlayerClass: "mage",
		Format:      "standard",
		TotalGames:  games,
		TotalWins:   wins,
		CardsData:   cards,
	}
}

// Build n decks with the given cards, plus m decks without them.
func decksWithRatio(with, without int, cardIDs ...string) []meta.DeckStat {
	decks := make([]meta.DeckStat, 0, with+without)
	for i := 0; i < with; i++ {
		decks = append(decks, testDeck("with", 1, 10, 5, append([]string{"FILLER"}, cardIDs...)...))
	}
	for i := 0; i < without; i++ {
		decks = append(decks, testDeck("without", 1, 10, 5, "FILLER"))
	}
	return decks
}

func TestCoreCardsThreshold(t *testing.T) {
	tests := []struct {
		name     string
		decks    []meta.DeckStat
		expected []string
	}{
		{
			name:     "exactly 0.9 is core at one copy",
			decks:    decksWithRatio(9, 1, "A"),
			expected: []string{"A", "FILLER"},
		},
		{
			name:     "below 0.9 is excluded",
			decks:    decksWithRatio(8, 2, "A"),
			expected: []string{"FILLER"},
		},
		{
			name:     "exactly 1.8 is core at two copies",
			decks:    decksWithRatio(9, 1, "A", "A"),
			expected: []string{"A", "A", "FILLER"},
		},
		{
			name:     "half the decks at two copies is one copy",
			decks:    decksWithRatio(5, 5, "A", "A"),
			expected: []string{"A", "FILLER"},
		},
		{
			name:     "no deck",
			decks:    nil,
			expected: []string{},
		},
		{
			name:     "decks without games are ignored",
			decks:    append(decksWithRatio(1, 0, "A"), testDeck("empty", 1, 0, 0)),
			expected: []string{"A", "FILLER"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CoreCards(tt.decks))
		})
	}
}

func TestCoreCardsUsesDeckCopiesNotSlots(t *testing.T) {
	// 30 games of the deck folded from several shards still count as one deck with 2 copies.
	deck := testDeck("D", 1, 30, 10, "A", "A", "B")
	assert.Equal(t, []string{"A", "A", "B"}, CoreCards([]meta.DeckStat{deck}))
}

func TestIsGenericClass(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"Mage", true},
		{"Mage-XL", true},
		{"mage xl", true},
		{"Demon Hunter", true},
		{"death-knight", true},
		{"Big Spell Mage", false},
		{"Pirate Warrior", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsGenericClass(tt.name))
		})
	}
}

func TestBuild(t *testing.T) {
	service := NewArchetypeService(&ArchetypeServiceDeps{})

	first := testDeck("D1", 7, 10, 6, "A", "A", "B")
	first.HeroCardIDs = []string{"HERO_08"}
	second := testDeck("D2", 7, 5, 1, "A", "C")
	second.HeroCardIDs = []string{"HERO_08b"}
	other := testDeck("D3", 9, 4, 4, "Z")
	empty := testDeck("D4", 11, 0, 0)

	refs := []meta.ArchetypeRef{{ID: 7, Name: "Spell Mage"}, {ID: 9, Name: "Mage-XL"}, {ID: 11, Name: "Nothing"}}
	archetypes := service.Build([]meta.DeckStat{other, first, empty, second}, refs)

	require.Len(t, archetypes, 2)

	spell := archetypes[0]
	assert.Equal(t, 7, spell.ID)
	assert.Equal(t, "Spell Mage", spell.Name)
	assert.Equal(t, "mage", spell.HeroCardClass)
	assert.Equal(t, []string{"HERO_08", "HERO_08b"}, spell.HeroCardIDs)
	assert.Equal(t, int64(15), spell.TotalGames)
	assert.Equal(t, int64(7), spell.TotalWins)
	require.NotNil(t, spell.Winrate)
	assert.InDelta(t, 7.0/15.0, *spell.Winrate, 1e-12)

	// First copies merge together, the second copy of A only comes from D1.
	require.Len(t, spell.CardsData, 4)
	assert.Equal(t, meta.CardStat{CardID: "A", InStartingDeck: 15, Wins: 7}, spell.CardsData[0])
	assert.Equal(t, meta.CardStat{CardID: "A", InStartingDeck: 10, Wins: 6}, spell.CardsData[1])
	assert.Equal(t, "B", spell.CardsData[2].CardID)
	assert.Equal(t, "C", spell.CardsData[3].CardID)

	// A averages 1.5 copies, B and C 0.5.
	assert.Equal(t, []string{"A"}, spell.CoreCards)

	generic := archetypes[1]
	assert.Equal(t, 9, generic.ID)
	assert.Equal(t, []string{}, generic.CoreCards)
}

func TestBuildDropsNegligibleCards(t *testing.T) {
	service := NewArchetypeService(&ArchetypeServiceDeps{})

	common := testDeck("D1", 1, 5000, 2500, "A")
	rare := testDeck("D2", 1, 2, 1, "A", "RARE")

	archetypes := service.Build([]meta.DeckStat{common, rare}, nil)
	require.Len(t, archetypes, 1)

	// RARE was in 2 starting decks out of 5002 games.
	require.Len(t, archetypes[0].CardsData, 1)
	assert.Equal(t, "A", archetypes[0].CardsData[0].CardID)
	assert.Equal(t, "", archetypes[0].Name)
}

func TestCardVariations(t *testing.T) {
	tests := []struct {
		name      string
		deckCards []string
		coreCards []string
		expected  meta.CardVariations
	}{
		{
			name:      "identical",
			deckCards: []string{"A", "A", "B"},
			coreCards: []string{"A", "B", "A"},
			expected:  meta.CardVariations{Added: []string{}, Removed: []string{}},
		},
		{
			name:      "one copy swapped",
			deckCards: []string{"A", "B", "C"},
			coreCards: []string{"A", "A", "B"},
			expected:  meta.CardVariations{Added: []string{"C"}, Removed: []string{"A"}},
		},
		{
			name:      "empty core",
			deckCards: []string{"B", "A"},
			coreCards: []string{},
			expected:  meta.CardVariations{Added: []string{"A", "B"}, Removed: []string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CardVariations(tt.deckCards, tt.coreCards))
		})
	}
}

func TestEnrich(t *testing.T) {
	decoder := fakeDecoder{
		"D1": {"A", "A", "C"},
	}
	service := NewArchetypeService(&ArchetypeServiceDeps{Decoder: decoder})

	decks := []meta.DeckStat{
		testDeck("D1", 7, 10, 5, "A", "A", "C"),
		testDeck("UNPARSEABLE", 7, 10, 5, "A"),
		testDeck("ORPHAN", 99, 10, 5, "A"),
	}
	archetypes := []meta.ArchetypeStat{{ID: 7, Name: "Spell Mage", CoreCards: []string{"A", "A", "B"}}}

	enriched := service.Enrich(decks, archetypes)
	require.Len(t, enriched, 3)

	assert.Equal(t, "Spell Mage", enriched[0].ArchetypeName)
	assert.Equal(t, []string{"A", "A", "B"}, enriched[0].ArchetypeCoreCards)
	require.NotNil(t, enriched[0].CardVariations)
	assert.Equal(t, []string{"C"}, enriched[0].CardVariations.Added)
	assert.Equal(t, []string{"B"}, enriched[0].CardVariations.Removed)

	require.NotNil(t, enriched[1].CardVariations)
	assert.Empty(t, enriched[1].CardVariations.Added)
	assert.Empty(t, enriched[1].CardVariations.Removed)

	assert.Nil(t, enriched[2].CardVariations)
	assert.Nil(t, enriched[2].ArchetypeCoreCards)

	// The input decks are never modified.
	assert.Nil(t, decks[0].CardVariations)
}

func TestReEnrichmentIsIdempotent(t *testing.T) {
	decoder := fakeDecoder{
		"D1": {"A", "A", "B"},
		"D2": {"A", "B", "C"},
	}
	service := NewArchetypeService(&ArchetypeServiceDeps{Decoder: decoder})
	refs := []meta.ArchetypeRef{{ID: 1, Name: "Tempo"}}

	decks := []meta.DeckStat{
		testDeck("D1", 1, 10, 5, "A", "A", "B"),
		testDeck("D2", 1, 10, 5, "A", "B", "C"),
	}

	archetypes := service.Build(decks, refs)
	once := service.Enrich(decks, archetypes)

	rebuilt := service.Build(once, refs)
	twice := service.Enrich(once, rebuilt)

	assert.Equal(t, archetypes, rebuilt)
	assert.Equal(t, once, twice)
}

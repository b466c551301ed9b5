package meta

import (
	"fmt"
)

// Object keys of the documents written for one selector.
type OutputKeys struct {
	Prefix   string
	Selector Selector
}

func (k OutputKeys) decksDir() string {
	return fmt.Sprintf("%s/decks/%s/%s/%s", k.Prefix, k.Selector.Format, k.Selector.RankBracket, k.Selector.TimePeriod)
}

func (k OutputKeys) archetypesDir() string {
	return fmt.Sprintf("%s/archetypes/%s/%s/%s", k.Prefix, k.Selector.Format, k.Selector.RankBracket, k.Selector.TimePeriod)
}

func (k OutputKeys) classSuffix() string {
	if k.Selector.PlayerClass == "" {
		return ""
	}
	return "-" + k.Selector.PlayerClass
}

func (k OutputKeys) ArchetypeDetail(id int) string {
	return fmt.Sprintf("%s/archetype/%d.gz.json", k.archetypesDir(), id)
}

// Without a player class the deck sits directly under the period.
func (k OutputKeys) DeckDetail(deckID string) string {
	if k.Selector.PlayerClass == "" {
		return fmt.Sprintf("%s/deck/%s.gz.json", k.decksDir(), deckID)
	}
	return fmt.Sprintf("%s/%s/deck/%s.gz.json", k.decksDir(), k.Selector.PlayerClass, deckID)
}

func (k OutputKeys) AllDecks() string {
	return fmt.Sprintf("%s/all-decks%s.gz.json", k.decksDir(), k.classSuffix())
}

func (k OutputKeys) AllDeckIDs() string {
	return fmt.Sprintf("%s/all-decks-ids%s.gz.json", k.decksDir(), k.classSuffix())
}

func (k OutputKeys) ArchetypeOverview() string {
	return fmt.Sprintf("%s/overview-from-hourly%s.gz.json", k.archetypesDir(), k.classSuffix())
}

func (k OutputKeys) DeckOverview() string {
	return fmt.Sprintf("%s/overview-from-hourly%s.gz.json", k.decksDir(), k.classSuffix())
}

package meta

import (
	"hsmeta/pkg/gamevalues"
	"strings"
)

type CardVariations struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Aggregate of every game played with one exact decklist.
type DeckStat struct {
	HeroCardIDs   []string               `json:"heroCardIds,omitempty"`
	PlayerClass   string                 `json:"playerClass"`
	ArchetypeID   int                    `json:"archetypeId"`
	ArchetypeName string                 `json:"archetypeName,omitempty"`
	LastUpdate    Timestamp              `json:"lastUpdate"`
	Decklist      string                 `json:"decklist"`
	RankBracket   gamevalues.RankBracket `json:"rankBracket"`
	TimePeriod    gamevalues.TimePeriod  `json:"timePeriod"`
	Format        gamevalues.Format      `json:"format"`
	TotalGames    int64                  `json:"totalGames"`
	TotalWins     int64                  `json:"totalWins"`
	Winrate       *float64               `json:"winrate"`
	CardsData     []CardStat             `json:"cardsData"`
	MatchupInfo   []MatchupInfo          `json:"matchupInfo"`
	DiscoverData  []DiscoverStat         `json:"discoverData,omitempty"`
	CoinPlayInfo  []CoinPlayInfo         `json:"coinPlayInfo,omitempty"`

	// Only set by the enrichment step, once the archetypes are built.
	CardVariations     *CardVariations `json:"cardVariations,omitempty"`
	ArchetypeCoreCards []string        `json:"archetypeCoreCards,omitempty"`
}

// URL safe identifier of a decklist.
func DeckID(decklist string) string {
	return strings.ReplaceAll(decklist, "/", "-")
}

// Document holding every deck of a partition.
// Used both as the shard input and as the daily/overview outputs.
type DeckStats struct {
	LastUpdated Timestamp              `json:"lastUpdated"`
	RankBracket gamevalues.RankBracket `json:"rankBracket"`
	TimePeriod  gamevalues.TimePeriod  `json:"timePeriod"`
	Format      gamevalues.Format      `json:"format"`
	DataPoints  int64                  `json:"dataPoints"`
	DeckStats   []DeckStat             `json:"deckStats"`
}

package meta

import (
	"hsmeta/pkg/gamevalues"
)

// Aggregate of every deck sharing the same archetype id.
type ArchetypeStat struct {
	ID            int               `json:"id"`
	Name          string            `json:"name"`
	Format        gamevalues.Format `json:"format"`
	HeroCardClass string            `json:"heroCardClass"`
	HeroCardIDs   []string          `json:"heroCardIds,omitempty"`
	TotalGames    int64             `json:"totalGames"`
	TotalWins     int64             `json:"totalWins"`
	Winrate       *float64          `json:"winrate"`
	CoreCards     []string          `json:"coreCards"`
	CardsData     []CardStat        `json:"cardsData"`
	MatchupInfo   []MatchupInfo     `json:"matchupInfo"`
	DiscoverData  []DiscoverStat    `json:"discoverData,omitempty"`
	CoinPlayInfo  []CoinPlayInfo    `json:"coinPlayInfo,omitempty"`
}

type ArchetypeStats struct {
	LastUpdated    Timestamp              `json:"lastUpdated"`
	RankBracket    gamevalues.RankBracket `json:"rankBracket"`
	TimePeriod     gamevalues.TimePeriod  `json:"timePeriod"`
	Format         gamevalues.Format      `json:"format"`
	DataPoints     int64                  `json:"dataPoints"`
	ArchetypeStats []ArchetypeStat        `json:"archetypeStats"`
}

// Entry of the archetype reference table.
type ArchetypeRef struct {
	ID   int
	Name string
}

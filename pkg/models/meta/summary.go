package meta

import (
	"hsmeta/pkg/gamevalues"
)

// Lightweight projections used on the overview documents.
// They carry the headline numbers only, never the card or matchup detail.

type CoinPlaySummary struct {
	CoinPlay   string   `json:"coinPlay"`
	TotalGames int64    `json:"totalGames"`
	Wins       int64    `json:"wins"`
	Losses     int64    `json:"losses"`
	Winrate    *float64 `json:"winrate"`
}

type DeckSummary struct {
	HeroCardIDs        []string               `json:"heroCardIds,omitempty"`
	PlayerClass        string                 `json:"playerClass"`
	ArchetypeID        int                    `json:"archetypeId"`
	ArchetypeName      string                 `json:"archetypeName,omitempty"`
	LastUpdate         Timestamp              `json:"lastUpdate"`
	Decklist           string                 `json:"decklist"`
	RankBracket        gamevalues.RankBracket `json:"rankBracket"`
	TimePeriod         gamevalues.TimePeriod  `json:"timePeriod"`
	Format             gamevalues.Format      `json:"format"`
	TotalGames         int64                  `json:"totalGames"`
	TotalWins          int64                  `json:"totalWins"`
	Winrate            *float64               `json:"winrate"`
	CoinPlayInfo       []CoinPlaySummary      `json:"coinPlayInfo,omitempty"`
	CardVariations     *CardVariations        `json:"cardVariations,omitempty"`
	ArchetypeCoreCards []string               `json:"archetypeCoreCards,omitempty"`
}

type ArchetypeSummary struct {
	ID            int               `json:"id"`
	Name          string            `json:"name"`
	Format        gamevalues.Format `json:"format"`
	HeroCardClass string            `json:"heroCardClass"`
	HeroCardIDs   []string          `json:"heroCardIds,omitempty"`
	TotalGames    int64             `json:"totalGames"`
	TotalWins     int64             `json:"totalWins"`
	Winrate       *float64          `json:"winrate"`
	CoreCards     []string          `json:"coreCards"`
	CoinPlayInfo  []CoinPlaySummary `json:"coinPlayInfo,omitempty"`
}

type DeckOverview struct {
	LastUpdated Timestamp              `json:"lastUpdated"`
	RankBracket gamevalues.RankBracket `json:"rankBracket"`
	TimePeriod  gamevalues.TimePeriod  `json:"timePeriod"`
	Format      gamevalues.Format      `json:"format"`
	DataPoints  int64                  `json:"dataPoints"`
	DeckStats   []DeckSummary          `json:"deckStats"`
}

type ArchetypeOverview struct {
	LastUpdated    Timestamp              `json:"lastUpdated"`
	RankBracket    gamevalues.RankBracket `json:"rankBracket"`
	TimePeriod     gamevalues.TimePeriod  `json:"timePeriod"`
	Format         gamevalues.Format      `json:"format"`
	DataPoints     int64                  `json:"dataPoints"`
	ArchetypeStats []ArchetypeSummary     `json:"archetypeStats"`
}

func toCoinPlaySummaries(infos []CoinPlayInfo) []CoinPlaySummary {
	if len(infos) == 0 {
		return nil
	}

	summaries := make([]CoinPlaySummary, 0, len(infos))
	for _, info := range infos {
		summaries = append(summaries, CoinPlaySummary{
			CoinPlay:   info.CoinPlay,
			TotalGames: info.TotalGames,
			Wins:       info.Wins,
			Losses:     info.Losses,
			Winrate:    info.Winrate,
		})
	}
	return summaries
}

func ToDeckSummary(deck DeckStat) DeckSummary {
	return DeckSummary{
		HeroCardIDs:        deck.HeroCardIDs,
		PlayerClass:        deck.PlayerClass,
		ArchetypeID:        deck.ArchetypeID,
		ArchetypeName:      deck.ArchetypeName,
		LastUpdate:         deck.LastUpdate,
		Decklist:           deck.Decklist,
		RankBracket:        deck.RankBracket,
		TimePeriod:         deck.TimePeriod,
		Format:             deck.Format,
		TotalGames:         deck.TotalGames,
		TotalWins:          deck.TotalWins,
		Winrate:            deck.Winrate,
		CoinPlayInfo:       toCoinPlaySummaries(deck.CoinPlayInfo),
		CardVariations:     deck.CardVariations,
		ArchetypeCoreCards: deck.ArchetypeCoreCards,
	}
}

func ToArchetypeSummary(archetype ArchetypeStat) ArchetypeSummary {
	return ArchetypeSummary{
		ID:            archetype.ID,
		Name:          archetype.Name,
		Format:        archetype.Format,
		HeroCardClass: archetype.HeroCardClass,
		HeroCardIDs:   archetype.HeroCardIDs,
		TotalGames:    archetype.TotalGames,
		TotalWins:     archetype.TotalWins,
		Winrate:       archetype.Winrate,
		CoreCards:     archetype.CoreCards,
		CoinPlayInfo:  toCoinPlaySummaries(archetype.CoinPlayInfo),
	}
}

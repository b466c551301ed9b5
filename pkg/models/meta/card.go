package meta

// Stats of one copy slot of a card inside a deck aggregate.
// A 2-copy card is represented by two records with the same CardID.
// InStartingDeck is the number of copies in the starting deck, summed over every game.
type CardStat struct {
	CardID                     string `json:"cardId"`
	InStartingDeck             int64  `json:"inStartingDeck"`
	Wins                       int64  `json:"wins"`
	DrawnBeforeMulligan        int64  `json:"drawnBeforeMulligan"`
	KeptInMulligan             int64  `json:"keptInMulligan"`
	InHandAfterMulligan        int64  `json:"inHandAfterMulligan"`
	InHandAfterMulliganThenWin int64  `json:"inHandAfterMulliganThenWin"`
	Drawn                      int64  `json:"drawn"`
	DrawnThenWin               int64  `json:"drawnThenWin"`
}

// Add every counter of other into c.
func (c *CardStat) Add(other CardStat) {
	c.InStartingDeck += other.InStartingDeck
	c.Wins += other.Wins
	c.DrawnBeforeMulligan += other.DrawnBeforeMulligan
	c.KeptInMulligan += other.KeptInMulligan
	c.InHandAfterMulligan += other.InHandAfterMulligan
	c.InHandAfterMulliganThenWin += other.InHandAfterMulliganThenWin
	c.Drawn += other.Drawn
	c.DrawnThenWin += other.DrawnThenWin
}

type DiscoverStat struct {
	CardID            string `json:"cardId"`
	Discovered        int64  `json:"discovered"`
	DiscoveredThenWin int64  `json:"discoveredThenWin"`
}

const (
	Coin = "coin"
	Play = "play"
)

type CoinPlayInfo struct {
	CoinPlay   string     `json:"coinPlay"`
	TotalGames int64      `json:"totalGames"`
	Wins       int64      `json:"wins"`
	Losses     int64      `json:"losses"`
	Winrate    *float64   `json:"winrate"`
	CardsData  []CardStat `json:"cardsData"`
}

type MatchupInfo struct {
	OpponentClass       string         `json:"opponentClass"`
	OpponentArchetypeID int            `json:"opponentArchetypeId,omitempty"`
	TotalGames          int64          `json:"totalGames"`
	Wins                int64          `json:"wins"`
	Losses              int64          `json:"losses"`
	Winrate             *float64       `json:"winrate"`
	CardsData           []CardStat     `json:"cardsData"`
	DiscoverData        []DiscoverStat `json:"discoverData,omitempty"`
	CoinPlayInfo        []CoinPlayInfo `json:"coinPlayInfo,omitempty"`
}

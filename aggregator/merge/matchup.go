package merge

import (
	"cmp"
	"hsmeta/pkg/models/meta"
	"slices"
	"strings"
)

type matchupKey struct {
	opponentClass       string
	opponentArchetypeID int
}

type matchupGroup struct {
	totalGames int64
	wins       int64
	losses     int64
	cards      *CardAccumulator
	discover   *DiscoverAccumulator
	coinPlay   *CoinPlayAccumulator
}

// Groups matchups by opponent class and opponent archetype.
type MatchupAccumulator struct {
	normalizer Normalizer
	groups     map[matchupKey]*matchupGroup
}

func NewMatchupAccumulator(normalizer Normalizer) *MatchupAccumulator {
	return &MatchupAccumulator{
		normalizer: normalizer,
		groups:     make(map[matchupKey]*matchupGroup),
	}
}

func (a *MatchupAccumulator) Add(infos []meta.MatchupInfo) {
	for _, info := range infos {
		key := matchupKey{opponentClass: info.OpponentClass, opponentArchetypeID: info.OpponentArchetypeID}
		group, ok := a.groups[key]
		if !ok {
			group = &matchupGroup{
				cards:    NewCardAccumulator(a.normalizer),
				discover: NewDiscoverAccumulator(a.normalizer),
				coinPlay: NewCoinPlayAccumulator(a.normalizer),
			}
			a.groups[key] = group
		}

		group.totalGames += info.TotalGames
		group.wins += info.Wins
		group.losses += info.Losses
		group.cards.Add(info.CardsData)
		group.discover.Add(info.DiscoverData)
		group.coinPlay.Add(info.CoinPlayInfo)
	}
}

// Return the merged matchups sorted by opponent class then archetype.
func (a *MatchupAccumulator) Result() []meta.MatchupInfo {
	keys := make([]matchupKey, 0, len(a.groups))
	for key := range a.groups {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(x, y matchupKey) int {
		if c := strings.Compare(x.opponentClass, y.opponentClass); c != 0 {
			return c
		}
		return cmp.Compare(x.opponentArchetypeID, y.opponentArchetypeID)
	})

	result := make([]meta.MatchupInfo, 0, len(keys))
	for _, key := range keys {
		group := a.groups[key]
		result = append(result, meta.MatchupInfo{
			OpponentClass:       key.opponentClass,
			OpponentArchetypeID: key.opponentArchetypeID,
			TotalGames:          group.totalGames,
			Wins:                group.wins,
			Losses:              group.losses,
			Winrate:             Winrate(group.wins, group.totalGames),
			CardsData:           group.cards.Result(),
			DiscoverData:        group.discover.Result(),
			CoinPlayInfo:        group.coinPlay.Result(),
		})
	}
	return result
}

func Matchups(normalizer Normalizer, groups ...[]meta.MatchupInfo) []meta.MatchupInfo {
	acc := NewMatchupAccumulator(normalizer)
	for _, group := range groups {
		acc.Add(group)
	}
	return acc.Result()
}

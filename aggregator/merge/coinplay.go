package merge

import (
	"hsmeta/pkg/models/meta"
	"slices"
	"strings"
)

type coinPlayGroup struct {
	totalGames int64
	wins       int64
	losses     int64
	cards      *CardAccumulator
}

type CoinPlayAccumulator struct {
	normalizer Normalizer
	groups     map[string]*coinPlayGroup
}

func NewCoinPlayAccumulator(normalizer Normalizer) *CoinPlayAccumulator {
	return &CoinPlayAccumulator{
		normalizer: normalizer,
		groups:     make(map[string]*coinPlayGroup),
	}
}

func (a *CoinPlayAccumulator) Add(infos []meta.CoinPlayInfo) {
	for _, info := range infos {
		group, ok := a.groups[info.CoinPlay]
		if !ok {
			group = &coinPlayGroup{cards: NewCardAccumulator(a.normalizer)}
			a.groups[info.CoinPlay] = group
		}
		group.totalGames += info.TotalGames
		group.wins += info.Wins
		group.losses += info.Losses
		group.cards.Add(info.CardsData)
	}
}

// Return the merged records, coin first, then play, then any unexpected key.
func (a *CoinPlayAccumulator) Result() []meta.CoinPlayInfo {
	if len(a.groups) == 0 {
		return nil
	}

	keys := make([]string, 0, len(a.groups))
	for key := range a.groups {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, compareCoinPlay)

	result := make([]meta.CoinPlayInfo, 0, len(keys))
	for _, key := range keys {
		group := a.groups[key]
		result = append(result, meta.CoinPlayInfo{
			CoinPlay:   key,
			TotalGames: group.totalGames,
			Wins:       group.wins,
			Losses:     group.losses,
			Winrate:    Winrate(group.wins, group.totalGames),
			CardsData:  group.cards.Result(),
		})
	}
	return result
}

func compareCoinPlay(x, y string) int {
	rank := func(key string) int {
		switch key {
		case meta.Coin:
			return 0
		case meta.Play:
			return 1
		default:
			return 2
		}
	}
	if rx, ry := rank(x), rank(y); rx != ry {
		return rx - ry
	}
	return strings.Compare(x, y)
}

func CoinPlays(normalizer Normalizer, groups ...[]meta.CoinPlayInfo) []meta.CoinPlayInfo {
	acc := NewCoinPlayAccumulator(normalizer)
	for _, group := range groups {
		acc.Add(group)
	}
	return acc.Result()
}

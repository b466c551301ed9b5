package merge

import (
	"hsmeta/pkg/models/meta"
	"slices"
	"strings"
)

type DiscoverAccumulator struct {
	normalizer Normalizer
	stats      map[string]*meta.DiscoverStat
}

func NewDiscoverAccumulator(normalizer Normalizer) *DiscoverAccumulator {
	return &DiscoverAccumulator{
		normalizer: normalizer,
		stats:      make(map[string]*meta.DiscoverStat),
	}
}

func (a *DiscoverAccumulator) Add(records []meta.DiscoverStat) {
	for _, record := range records {
		cardID := normalize(a.normalizer, record.CardID)
		stat, ok := a.stats[cardID]
		if !ok {
			stat = &meta.DiscoverStat{CardID: cardID}
			a.stats[cardID] = stat
		}
		stat.Discovered += record.Discovered
		stat.DiscoveredThenWin += record.DiscoveredThenWin
	}
}

// Return the merged records sorted by card id.
// Nil when nothing was discovered, so the field is omitted on the documents.
func (a *DiscoverAccumulator) Result() []meta.DiscoverStat {
	if len(a.stats) == 0 {
		return nil
	}

	result := make([]meta.DiscoverStat, 0, len(a.stats))
	for _, stat := range a.stats {
		result = append(result, *stat)
	}
	slices.SortFunc(result, func(x, y meta.DiscoverStat) int {
		return strings.Compare(x.CardID, y.CardID)
	})
	return result
}

func Discovers(normalizer Normalizer, groups ...[]meta.DiscoverStat) []meta.DiscoverStat {
	acc := NewDiscoverAccumulator(normalizer)
	for _, group := range groups {
		acc.Add(group)
	}
	return acc.Result()
}

package merge

import (
	"cmp"
	"hsmeta/pkg/models/meta"
	"slices"
	"strings"
)

// Maps a raw card id to the id used for deckbuilding, so reprints merge together.
type Normalizer interface {
	BaseCardID(cardID string) string
}

func normalize(normalizer Normalizer, cardID string) string {
	if normalizer == nil {
		return cardID
	}
	return normalizer.BaseCardID(cardID)
}

type slotKey struct {
	cardID string
	slot   int
}

// Slot aware accumulator of card stats.
// Records sharing a card id inside one contribution are assigned to slots by order of appearance,
// and each slot only ever accumulates with the same slot of other contributions.
type CardAccumulator struct {
	normalizer Normalizer
	stats      map[slotKey]*meta.CardStat
}

func NewCardAccumulator(normalizer Normalizer) *CardAccumulator {
	return &CardAccumulator{
		normalizer: normalizer,
		stats:      make(map[slotKey]*meta.CardStat),
	}
}

// Add the card records of one deck coming from one source.
// The output of Result is itself a valid contribution.
func (a *CardAccumulator) Add(contribution []meta.CardStat) {
	if len(contribution) == 0 {
		return
	}

	seen := make(map[string]int, len(contribution))
	for _, card := range contribution {
		cardID := normalize(a.normalizer, card.CardID)
		slot := seen[cardID]
		seen[cardID] = slot + 1

		key := slotKey{cardID: cardID, slot: slot}
		stat, ok := a.stats[key]
		if !ok {
			stat = &meta.CardStat{CardID: cardID}
			a.stats[key] = stat
		}
		stat.Add(card)
	}
}

// Return the merged records, sorted by card id then slot.
func (a *CardAccumulator) Result() []meta.CardStat {
	keys := make([]slotKey, 0, len(a.stats))
	for key := range a.stats {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(x, y slotKey) int {
		if c := strings.Compare(x.cardID, y.cardID); c != 0 {
			return c
		}
		return cmp.Compare(x.slot, y.slot)
	})

	result := make([]meta.CardStat, 0, len(keys))
	for _, key := range keys {
		result = append(result, *a.stats[key])
	}
	return result
}

func (a *CardAccumulator) Len() int {
	return len(a.stats)
}

// Merge every contribution slot aware.
func Cards(normalizer Normalizer, contributions ...[]meta.CardStat) []meta.CardStat {
	acc := NewCardAccumulator(normalizer)
	for _, contribution := range contributions {
		acc.Add(contribution)
	}
	return acc.Result()
}

// Check if any record misses its card id.
func HasMissingCardID(cards []meta.CardStat) bool {
	for _, card := range cards {
		if strings.TrimSpace(card.CardID) == "" {
			return true
		}
	}
	return false
}

// Compute wins / games, nil when no game was played.
func Winrate(wins, games int64) *float64 {
	if games == 0 {
		return nil
	}
	winrate := float64(wins) / float64(games)
	return &winrate
}

package cards

import (
	"encoding/base64"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hunterDeckstring = "AAECAR8GxwPJBLsFmQfZB/gIDI0B2AGoArUDhwSSBe0G6wfbCe0JgQr+DAA="

func TestDecode(t *testing.T) {
	deck, err := Decode(hunterDeckstring)
	require.NoError(t, err)

	assert.Equal(t, 2, deck.Format)
	assert.Equal(t, []int{31}, deck.Heroes)
	assert.Len(t, deck.Cards, 18)
	assert.Equal(t, DeckCard{DbfID: 455, Copies: 1}, deck.Cards[0])
	assert.Equal(t, DeckCard{DbfID: 141, Copies: 2}, deck.Cards[6])
	assert.Equal(t, DeckCard{DbfID: 1662, Copies: 2}, deck.Cards[17])

	total := 0
	for _, card := range deck.Cards {
		total += card.Copies
	}
	assert.Equal(t, 30, total)
}

func TestEncodeKeepsCardGroups(t *testing.T) {
	deck := &Deck{
		Format: 2,
		Heroes: []int{7},
		Cards: []DeckCard{
			{DbfID: 100, Copies: 1},
			{DbfID: 200, Copies: 2},
			{DbfID: 300, Copies: 3},
			{DbfID: 400, Copies: 40},
		},
	}

	decoded, err := Decode(Encode(deck))
	require.NoError(t, err)
	assert.Equal(t, deck, decoded)
}

// Deckstring of the given varints, after the reserved byte.
func rawDeckstring(values ...uint64) string {
	buf := []byte{0}
	for _, value := range values {
		buf = binary.AppendUvarint(buf, value)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name       string
		deckstring string
	}{
		{name: "not base64", deckstring: "!!!"},
		{name: "empty", deckstring: ""},
		{name: "bad header", deckstring: "AQEC"},
		{name: "truncated", deckstring: hunterDeckstring[:12]},
		{name: "copies beyond the varint range", deckstring: rawDeckstring(1, 2, 1, 7, 0, 0, 1, 300, 1<<40)},
		{name: "copies above int64", deckstring: rawDeckstring(1, 2, 1, 7, 0, 0, 1, 300, 1<<63+5)},
		{name: "too many copies", deckstring: rawDeckstring(1, 2, 1, 7, 0, 0, 1, 300, 41)},
		{name: "zero copies", deckstring: rawDeckstring(1, 2, 1, 7, 0, 0, 1, 300, 0)},
		{name: "hero count beyond the data", deckstring: rawDeckstring(1, 2, 1_000_000, 7)},
		{name: "section count beyond the data", deckstring: rawDeckstring(1, 2, 1, 7, 500, 100, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.deckstring)
			assert.ErrorIs(t, err, ErrUnparseableDecklist)
		})
	}
}

func TestDecodeCardIDs(t *testing.T) {
	reference := NewStaticService([]ReferenceCard{
		{ID: "CORE_A", DbfID: 100},
		{ID: "LEGACY_B", DbfID: 200},
		{ID: "CORE_B", DbfID: 201, DeckDuplicateDbfID: 200},
		{ID: "CORE_C", DbfID: 300},
	})
	decoder := NewDecoder(reference)

	t.Run("expands copies and normalizes", func(t *testing.T) {
		decklist := Encode(&Deck{
			Format: 2,
			Heroes: []int{7},
			Cards: []DeckCard{
				{DbfID: 100, Copies: 1},
				{DbfID: 201, Copies: 2},
			},
		})

		cardIDs, err := decoder.DecodeCardIDs(decklist)
		require.NoError(t, err)
		assert.Equal(t, []string{"CORE_A", "LEGACY_B", "LEGACY_B"}, cardIDs)
	})

	t.Run("unknown card", func(t *testing.T) {
		decklist := Encode(&Deck{Format: 2, Heroes: []int{7}, Cards: []DeckCard{{DbfID: 999, Copies: 1}}})

		_, err := decoder.DecodeCardIDs(decklist)
		assert.ErrorIs(t, err, ErrUnparseableDecklist)
	})

	t.Run("legacy truncated decklist", func(t *testing.T) {
		_, err := decoder.DecodeCardIDs(strings.Repeat("A", truncatedDecklistLength))
		assert.ErrorIs(t, err, ErrUnparseableDecklist)
	})
}

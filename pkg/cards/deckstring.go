package cards

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// Length of the decklists truncated by the legacy database column.
	truncatedDecklistLength = 145
	maxVarint               = math.MaxInt32
	maxCopies               = 40
)

var ErrUnparseableDecklist = errors.New("unparseable decklist")

// Card of a decoded deckstring with its number of copies.
type DeckCard struct {
	DbfID  int
	Copies int
}

type Deck struct {
	Format int
	Heroes []int
	Cards  []DeckCard
}

type deckReader struct {
	data []byte
	pos  int
}

func (r *deckReader) varint() (int, error) {
	value, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("invalid varint at offset %d", r.pos)
	}
	if value > maxVarint {
		return 0, fmt.Errorf("varint out of range at offset %d", r.pos)
	}
	r.pos += n
	return int(value), nil
}

// Reads a section length, each entry takes at least one of the remaining bytes.
func (r *deckReader) count() (int, error) {
	count, err := r.varint()
	if err != nil {
		return 0, err
	}
	if count > len(r.data)-r.pos {
		return 0, fmt.Errorf("section of %d entries exceeds the data", count)
	}
	return count, nil
}

// Decode a deckstring: a reserved byte, the version, the format, the heroes
// and the cards grouped by 1, 2 and n copies.
func Decode(deckstring string) (*Deck, error) {
	data, err := decodeBase64(deckstring)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableDecklist, err)
	}
	if len(data) == 0 || data[0] != 0 {
		return nil, fmt.Errorf("%w: invalid header", ErrUnparseableDecklist)
	}

	r := &deckReader{data: data, pos: 1}
	deck, err := r.deck()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableDecklist, err)
	}
	return deck, nil
}

func (r *deckReader) deck() (*Deck, error) {
	version, err := r.varint()
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, fmt.Errorf("unsupported version %d", version)
	}

	deck := &Deck{}
	if deck.Format, err = r.varint(); err != nil {
		return nil, err
	}

	heroCount, err := r.count()
	if err != nil {
		return nil, err
	}
	for range heroCount {
		hero, err := r.varint()
		if err != nil {
			return nil, err
		}
		deck.Heroes = append(deck.Heroes, hero)
	}

	for _, copies := range []int{1, 2} {
		count, err := r.count()
		if err != nil {
			return nil, err
		}
		for range count {
			dbfID, err := r.varint()
			if err != nil {
				return nil, err
			}
			deck.Cards = append(deck.Cards, DeckCard{DbfID: dbfID, Copies: copies})
		}
	}

	count, err := r.count()
	if err != nil {
		return nil, err
	}
	for range count {
		dbfID, err := r.varint()
		if err != nil {
			return nil, err
		}
		copies, err := r.varint()
		if err != nil {
			return nil, err
		}
		if copies < 1 || copies > maxCopies {
			return nil, fmt.Errorf("invalid copy count %d for card %d", copies, dbfID)
		}
		deck.Cards = append(deck.Cards, DeckCard{DbfID: dbfID, Copies: copies})
	}

	return deck, nil
}

// Encode the deck back to its deckstring.
func Encode(deck *Deck) string {
	buf := []byte{0}
	buf = binary.AppendUvarint(buf, 1)
	buf = binary.AppendUvarint(buf, uint64(deck.Format))
	buf = binary.AppendUvarint(buf, uint64(len(deck.Heroes)))
	for _, hero := range deck.Heroes {
		buf = binary.AppendUvarint(buf, uint64(hero))
	}

	var singles, doubles, multiples []DeckCard
	for _, card := range deck.Cards {
		switch card.Copies {
		case 1:
			singles = append(singles, card)
		case 2:
			doubles = append(doubles, card)
		default:
			multiples = append(multiples, card)
		}
	}
	for _, group := range [][]DeckCard{singles, doubles} {
		buf = binary.AppendUvarint(buf, uint64(len(group)))
		for _, card := range group {
			buf = binary.AppendUvarint(buf, uint64(card.DbfID))
		}
	}
	buf = binary.AppendUvarint(buf, uint64(len(multiples)))
	for _, card := range multiples {
		buf = binary.AppendUvarint(buf, uint64(card.DbfID))
		buf = binary.AppendUvarint(buf, uint64(card.Copies))
	}

	return base64.StdEncoding.EncodeToString(buf)
}

func decodeBase64(deckstring string) ([]byte, error) {
	deckstring = strings.TrimSpace(deckstring)
	if data, err := base64.StdEncoding.DecodeString(deckstring); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(deckstring, "="))
}

type CardLookup interface {
	CardByDbfID(dbfID int) (ReferenceCard, bool)
	BaseCardID(cardID string) string
}

// Turns decklist signatures into normalized card ids.
type Decoder struct {
	cards CardLookup
}

func NewDecoder(cards CardLookup) *Decoder {
	return &Decoder{cards: cards}
}

// DecodeCardIDs returns one card id per copy in the decklist, in deckstring order.
func (d *Decoder) DecodeCardIDs(decklist string) ([]string, error) {
	if len(decklist) == truncatedDecklistLength {
		return nil, fmt.Errorf("%w: truncated decklist", ErrUnparseableDecklist)
	}

	deck, err := Decode(decklist)
	if err != nil {
		return nil, err
	}

	var cardIDs []string
	for _, card := range deck.Cards {
		ref, ok := d.cards.CardByDbfID(card.DbfID)
		if !ok {
			return nil, fmt.Errorf("%w: unknown dbfId %d", ErrUnparseableDecklist, card.DbfID)
		}
		cardID := d.cards.BaseCardID(ref.ID)
		for range card.Copies {
			cardIDs = append(cardIDs, cardID)
		}
	}
	return cardIDs, nil
}

package meta

import (
	"encoding/json"
	"hsmeta/pkg/gamevalues"
	"time"
)

// Key of one persisted deck snapshot.
type DeckSnapshotKey struct {
	Format      gamevalues.Format
	RankBracket gamevalues.RankBracket
	TimePeriod  gamevalues.TimePeriod
	DeckID      string
}

type DeckSnapshotRow struct {
	Key        DeckSnapshotKey
	Payload    json.RawMessage
	LastUpdate time.Time
}

package meta

import (
	"encoding/json"
	"time"
)

// Layout used for every date written by the pipeline, matching the upstream shards.
const ISOLayout = "2006-01-02T15:04:05.000Z"

var timestampLayouts = []string{
	ISOLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Date coming from shard data.
// Unparseable values never fail the decoding of a document, they are kept in Raw with Valid set to false.
type Timestamp struct {
	Time  time.Time
	Valid bool
	Raw   string
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC(), Valid: true}
}

func ParseTimestamp(raw string) Timestamp {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return Timestamp{Time: parsed.UTC(), Valid: true, Raw: raw}
		}
	}
	return Timestamp{Raw: raw}
}

// Check if the timestamp is set but couldn't be parsed.
func (t Timestamp) Malformed() bool {
	return !t.Valid && t.Raw != ""
}

// Return the latest of both timestamps, ignoring invalid ones.
func (t Timestamp) Max(other Timestamp) Timestamp {
	if !other.Valid {
		return t
	}
	if !t.Valid || other.Time.After(t.Time) {
		return other
	}
	return t
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*t = Timestamp{Raw: string(data)}
		return nil
	}

	*t = ParseTimestamp(raw)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.UTC().Format(ISOLayout))
}

package repositories

import (
	"context"
	"errors"
	"hsmeta/pkg/bucket"
	"hsmeta/pkg/models/meta"
)

type ObjectReader interface {
	GetJSON(ctx context.Context, key string, out any) error
}

// Reads deck stats shards from the object storage.
type ShardRepository struct {
	reader ObjectReader
}

func NewShardRepository(reader ObjectReader) *ShardRepository {
	return &ShardRepository{reader: reader}
}

// FetchDeckStats returns nil without error when the shard doesn't exist.
func (sr *ShardRepository) FetchDeckStats(ctx context.Context, key string) (*meta.DeckStats, error) {
	var stats meta.DeckStats
	if err := sr.reader.GetJSON(ctx, key, &stats); err != nil {
		if errors.Is(err, bucket.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &stats, nil
}

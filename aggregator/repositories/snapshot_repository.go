package repositories

import (
	"context"
	"errors"
	"fmt"
	"hsmeta/pkg/database/models"
	"hsmeta/pkg/models/meta"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Lock contention that is expected to clear by retrying.
var ErrTransientContention = errors.New("transient database contention")

// Deadlock, serialization failure and lock not available.
var transientCodes = map[string]bool{
	"40P01": true,
	"40001": true,
	"55P03": true,
}

// Public Interface.
type DeckSnapshotRepository interface {
	UpsertDecks(ctx context.Context, rows []meta.DeckSnapshotRow) error
	GetDeck(ctx context.Context, key meta.DeckSnapshotKey) (*meta.DeckSnapshotRow, error)
}

type deckSnapshotRepository struct {
	db *gorm.DB
}

func NewDeckSnapshotRepository(db *gorm.DB) DeckSnapshotRepository {
	return &deckSnapshotRepository{db: db}
}

// UpsertDecks inserts the rows, replacing the data of the ones already stored.
func (r *deckSnapshotRepository) UpsertDecks(ctx context.Context, rows []meta.DeckSnapshotRow) error {
	if len(rows) == 0 {
		return nil
	}

	snapshots := make([]models.DeckSnapshot, len(rows))
	for i, row := range rows {
		snapshots[i] = models.DeckSnapshot{
			Format:         string(row.Key.Format),
			RankBracket:    string(row.Key.RankBracket),
			TimePeriod:     string(row.Key.TimePeriod),
			DeckID:         row.Key.DeckID,
			DeckData:       datatypes.JSON(row.Payload),
			LastUpdateDate: row.LastUpdate.UTC(),
		}
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "format"},
				{Name: "rank_bracket"},
				{Name: "time_period"},
				{Name: "deck_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"deck_data", "last_update_date"}),
		}).
		Create(&snapshots).Error
	if err != nil {
		return classifyError(fmt.Errorf("failed to upsert %d decks: %w", len(rows), err))
	}
	return nil
}

// GetDeck returns nil without error when the deck isn't stored.
func (r *deckSnapshotRepository) GetDeck(ctx context.Context, key meta.DeckSnapshotKey) (*meta.DeckSnapshotRow, error) {
	var snapshot models.DeckSnapshot
	err := r.db.WithContext(ctx).
		Where("format = ? AND rank_bracket = ? AND time_period = ? AND deck_id = ?",
			string(key.Format), string(key.RankBracket), string(key.TimePeriod), key.DeckID).
		First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to get deck %s: %w", key.DeckID, err))
	}

	return &meta.DeckSnapshotRow{
		Key:        key,
		Payload:    []byte(snapshot.DeckData),
		LastUpdate: snapshot.LastUpdateDate.UTC(),
	}, nil
}

func classifyError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && transientCodes[pgErr.Code] {
		return fmt.Errorf("%w: %w", ErrTransientContention, err)
	}
	return err
}

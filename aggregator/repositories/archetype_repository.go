package repositories

import (
	"context"
	"fmt"
	"hsmeta/pkg/database/models"
	"hsmeta/pkg/models/meta"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ArchetypeRepository interface {
	ListArchetypes(ctx context.Context) ([]meta.ArchetypeRef, error)
	SaveArchetypes(ctx context.Context, refs []meta.ArchetypeRef) error
}

type archetypeRepository struct {
	db *gorm.DB
}

func NewArchetypeRepository(db *gorm.DB) ArchetypeRepository {
	return &archetypeRepository{db: db}
}

// ListArchetypes returns every known archetype, ordered by id.
func (r *archetypeRepository) ListArchetypes(ctx context.Context) ([]meta.ArchetypeRef, error) {
	var archetypes []models.ConstructedArchetype
	if err := r.db.WithContext(ctx).Order("id").Find(&archetypes).Error; err != nil {
		return nil, fmt.Errorf("failed to list archetypes: %w", err)
	}

	refs := make([]meta.ArchetypeRef, len(archetypes))
	for i, archetype := range archetypes {
		refs[i] = meta.ArchetypeRef{ID: archetype.ID, Name: archetype.Archetype}
	}
	return refs, nil
}

// SaveArchetypes inserts or renames the given archetypes.
func (r *archetypeRepository) SaveArchetypes(ctx context.Context, refs []meta.ArchetypeRef) error {
	if len(refs) == 0 {
		return nil
	}

	archetypes := make([]models.ConstructedArchetype, len(refs))
	for i, ref := range refs {
		archetypes[i] = models.ConstructedArchetype{ID: ref.ID, Archetype: ref.Name}
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"archetype"}),
		}).
		Create(&archetypes).Error
}

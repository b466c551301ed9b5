package models

import (
	"time"

	"gorm.io/datatypes"
)

// Database model for the detailed deck stats of a deck in one format, rank bracket and period.
type DeckSnapshot struct {
	ID             uint64         `gorm:"primaryKey"`
	Format         string         `gorm:"type:varchar(20);not null;uniqueIndex:idx_deck_stats_key,priority:1"`
	RankBracket    string         `gorm:"type:varchar(40);not null;uniqueIndex:idx_deck_stats_key,priority:2"`
	TimePeriod     string         `gorm:"type:varchar(40);not null;uniqueIndex:idx_deck_stats_key,priority:3"`
	DeckID         string         `gorm:"type:varchar(400);not null;uniqueIndex:idx_deck_stats_key,priority:4"`
	DeckData       datatypes.JSON `gorm:"type:jsonb;not null"`
	LastUpdateDate time.Time      `gorm:"not null"`
}

func (DeckSnapshot) TableName() string {
	return "constructed_deck_stats"
}

// Reference names of the archetypes.
type ConstructedArchetype struct {
	ID        int    `gorm:"primaryKey;autoIncrement:false"`
	Archetype string `gorm:"type:varchar(200);not null;default:''"`
}

func (ConstructedArchetype) TableName() string {
	return "constructed_archetypes"
}

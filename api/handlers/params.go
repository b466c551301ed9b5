package handlers

import (
	"hsmeta/pkg/models/meta"
)

type deckParams struct {
	Format string `uri:"format" binding:"required"`
	Rank   string `uri:"rank" binding:"required"`
	Period string `uri:"period" binding:"required"`
	DeckID string `uri:"deckId" binding:"required"`
}

type archetypeParams struct {
	Format string `uri:"format" binding:"required"`
	Rank   string `uri:"rank" binding:"required"`
	Period string `uri:"period" binding:"required"`
	ID     int    `uri:"id" binding:"required,min=1"`
}

// Window of the path, the class stays empty.
func windowSelector(format, rank, period string) (meta.Selector, error) {
	return meta.ParseSelector(format, rank, period, "")
}

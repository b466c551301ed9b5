package handlers

import (
	"context"
	"errors"
	deckservice "hsmeta/api/services/deck"
	"hsmeta/pkg/models/meta"
	"net/http"

	"github.com/gin-gonic/gin"
)

type DeckService interface {
	GetDeck(ctx context.Context, window meta.Selector, deckID string) (*meta.DeckStat, error)
}

// Deck handler.
type DeckHandler struct {
	deckService DeckService
}

type DeckHandlerDependencies struct {
	DeckService DeckService
}

// Create a new instance of the deck handler.
func NewDeckHandler(deps *DeckHandlerDependencies) *DeckHandler {
	return &DeckHandler{
		deckService: deps.DeckService,
	}
}

// Handler for getting the detailed stats of a deck.
func (h *DeckHandler) GetDeck(c *gin.Context) {
	var params deckParams
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	window, err := windowSelector(params.Format, params.Rank, params.Period)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deck, err := h.deckService.GetDeck(c.Request.Context(), window, params.DeckID)
	if err != nil {
		if errors.Is(err, deckservice.ErrDeckNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, deck)
}

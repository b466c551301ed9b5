package handlers

import (
	"context"
	"errors"
	archetypeservice "hsmeta/api/services/archetype"
	"hsmeta/pkg/models/meta"
	"net/http"

	"github.com/gin-gonic/gin"
)

type ArchetypeService interface {
	GetArchetype(ctx context.Context, window meta.Selector, id int) (*meta.ArchetypeStat, error)
}

// Archetype handler.
type ArchetypeHandler struct {
	archetypeService ArchetypeService
}

type ArchetypeHandlerDependencies struct {
	ArchetypeService ArchetypeService
}

// Create a new instance of the archetype handler.
func NewArchetypeHandler(deps *ArchetypeHandlerDependencies) *ArchetypeHandler {
	return &ArchetypeHandler{
		archetypeService: deps.ArchetypeService,
	}
}

// Handler for getting the detailed stats of an archetype.
func (h *ArchetypeHandler) GetArchetype(c *gin.Context) {
	var params archetypeParams
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	window, err := windowSelector(params.Format, params.Rank, params.Period)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	archetype, err := h.archetypeService.GetArchetype(c.Request.Context(), window, params.ID)
	if err != nil {
		if errors.Is(err, archetypeservice.ErrArchetypeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, archetype)
}

package routes

import (
	"hsmeta/api/handlers"

	"github.com/gin-gonic/gin"
)

type Router struct {
	Engine *gin.Engine
	api    *gin.RouterGroup
}

func NewRouter(engine *gin.Engine) *Router {
	return &Router{
		api:    engine.Group("/api/v1"),
		Engine: engine,
	}
}

func (r *Router) SetupRoutes(handlerList ...any) {
	for _, h := range handlerList {
		switch handler := h.(type) {
		case *handlers.DeckHandler:
			r.registerDeckHandler(handler)
		case *handlers.ArchetypeHandler:
			r.registerArchetypeHandler(handler)
		}
	}
}

// Register the deck handler.
func (r *Router) registerDeckHandler(handler *handlers.DeckHandler) {
	decks := r.api.Group("/decks")
	{
		decks.GET("/:format/:rank/:period/:deckId", handler.GetDeck)
	}
}

// Register the archetype handler.
func (r *Router) registerArchetypeHandler(handler *handlers.ArchetypeHandler) {
	archetypes := r.api.Group("/archetypes")
	{
		archetypes.GET("/:format/:rank/:period/:id", handler.GetArchetype)
	}
}

// Start the router.
func (r *Router) Run(addr string) error {
	return r.Engine.Run(addr)
}

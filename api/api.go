package main

import (
	"hsmeta/api/modules"
	"hsmeta/api/routes"
	"hsmeta/pkg/config"
	"hsmeta/pkg/logger"
	"log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Couldn't initialize the configuration: %v", err)
	}

	runLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Couldn't create the logger: %v", err)
	}
	defer runLogger.Close()

	// Create a module with all necessary handlers.
	module, err := modules.NewModule(&modules.ModuleDependencies{
		Config: cfg,
		Logger: runLogger.Logger,
	})
	if err != nil {
		log.Fatalf("Couldn't create the api module: %v", err)
	}
	defer module.Close()

	// Create a new router with the routes setup.
	router := routes.NewRouter(module.Router)
	router.SetupRoutes(
		module.DeckHandler,
		module.ArchetypeHandler,
	)

	// Start the server.
	if err := router.Run(":" + cfg.API.Port); err != nil {
		runLogger.Error("Server stopped", "error", err)
	}
}

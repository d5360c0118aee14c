/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the agenda engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load YAML configuration
  3. Initialize SQLite store and flyer asset store
  4. Create API handler and purge scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config   YAML config path (missing file = defaults)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the purge scheduler, close the database
  4. Exit
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ritmo/agenda-engine/api"
	"github.com/ritmo/agenda-engine/assets"
	"github.com/ritmo/agenda-engine/config"
	"github.com/ritmo/agenda-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "agenda.yaml", "YAML config path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	flyers, err := assets.NewDisk(cfg.AssetDir, cfg.PublicBaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize flyer storage: %v", err)
	}

	handler := api.NewHandler(api.Deps{
		Dates:     store,
		Profiles:  store,
		Locations: store,
		Assets:    flyers,
		Seeder:    store,
	})

	purger := api.NewPurgeScheduler(handler.Batches, cfg.PurgeCron,
		time.Duration(cfg.StaleAfterHours)*time.Hour)
	purger.Start()
	defer purger.Stop()

	router := api.NewRouter(handler, cfg.AssetDir)

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://%s", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

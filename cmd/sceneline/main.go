// Command sceneline runs the scene ingestion service: it loads the identity
// profiles, opens the configured state store, and serves the ingestion API.
// When an upstream narrator URL is configured it also polls that service for
// new payloads.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scrypster/sceneline/internal/config"
	"github.com/scrypster/sceneline/internal/engine"
	"github.com/scrypster/sceneline/internal/narrator"
	"github.com/scrypster/sceneline/internal/resolve"
	"github.com/scrypster/sceneline/internal/server"
	"github.com/scrypster/sceneline/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.OpenStateStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	profiles := storage.LoadProfiles(cfg)
	log.Printf("Loaded %d identity profiles from %s", profiles.Len(), cfg.Storage.IdentitiesPath)

	sceneEngine, err := engine.NewSceneEngine(store, resolve.NewResolver(profiles))
	if err != nil {
		log.Fatalf("Failed to initialize scene engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, _, err := server.Start(ctx, cfg, sceneEngine)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("sceneline API running at http://%s", addr)

	if cfg.Narrator.URL != "" {
		client := narrator.NewClient(narrator.ClientConfig{
			BaseURL: cfg.Narrator.URL,
			APIKey:  cfg.Narrator.APIKey,
		})
		poller := narrator.NewPoller(client, sceneEngine, cfg.Narrator.PollInterval)
		go poller.Run(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

// Command sceneline-ingest performs a one-shot ingestion: it reads a raw
// payload document from a file (or stdin), folds it into the configured scene
// state, and prints a short summary of the result.
//
// Usage:
//
//	sceneline-ingest payload.json
//	cat payload.json | sceneline-ingest
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/scrypster/sceneline/internal/config"
	"github.com/scrypster/sceneline/internal/engine"
	"github.com/scrypster/sceneline/internal/resolve"
	"github.com/scrypster/sceneline/internal/storage"
)

func main() {
	flag.Parse()

	data, err := readPayload(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to read payload: %v", err)
	}

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
	sceneEngine, err := engine.NewSceneEngine(store, resolve.NewResolver(profiles))
	if err != nil {
		log.Fatalf("Failed to initialize scene engine: %v", err)
	}

	state, err := sceneEngine.IngestJSON(context.Background(), data)
	if err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}

	fmt.Printf("Ingested payload: timeline has %d events, world state tracks %d entities\n",
		len(state.Timeline), len(state.WorldState))
}

func readPayload(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

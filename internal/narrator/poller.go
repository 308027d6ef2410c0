package narrator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/scrypster/sceneline/internal/engine"
)

// Poller periodically fetches payloads from the perception service and feeds
// them to the scene engine. It runs until its context is cancelled.
type Poller struct {
	client   *Client
	engine   *engine.SceneEngine
	interval time.Duration
}

// NewPoller creates a poller. A zero interval defaults to 10 seconds.
func NewPoller(client *Client, eng *engine.SceneEngine, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{client: client, engine: eng, interval: interval}
}

// Run polls until ctx is cancelled. Fetch and ingest failures are logged and
// the loop continues; a single bad payload must not stop the feed.
func (p *Poller) Run(ctx context.Context) {
	log.Printf("narrator: polling every %s", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("narrator: poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	data, err := p.client.FetchPayload(ctx)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoPayload):
			// Quiet scene; nothing to do.
		case errors.Is(err, ErrCircuitOpen):
			log.Println("narrator: upstream circuit open, skipping poll")
		default:
			log.Printf("narrator: fetch failed: %v", err)
		}
		return
	}

	state, err := p.engine.IngestJSON(ctx, data)
	if err != nil {
		log.Printf("narrator: ingest failed: %v", err)
		return
	}
	log.Printf("narrator: ingested payload, timeline now has %d events", len(state.Timeline))
}

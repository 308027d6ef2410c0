package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/scrypster/sceneline/internal/config"
	"github.com/scrypster/sceneline/internal/engine"
)

// Start initializes and starts the HTTP server. It returns the actual address
// being listened on (useful for testing with port 0) and the WebSocketHub,
// already wired to the engine's ingestion notifications. The server shuts
// down when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, eng *engine.SceneEngine) (string, *WebSocketHub, error) {
	mux := http.NewServeMux()

	wsHub := NewWebSocketHub()
	go wsHub.Run()

	eng.SetOnEventIngested(func(eventID string) {
		wsHub.Broadcast(map[string]string{
			"type":     "event_ingested",
			"event_id": eventID,
		})
	})

	handlers := NewHandlers(eng)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/ingest", handlers.Ingest)
	apiMux.HandleFunc("GET /api/state", handlers.GetState)
	apiMux.HandleFunc("GET /api/timeline", handlers.GetTimeline)
	apiMux.HandleFunc("GET /api/entities", handlers.ListEntities)
	apiMux.HandleFunc("GET /api/entities/{id}", handlers.GetEntity)

	// Health endpoint outside the auth wrapper, for monitoring.
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.Handle("/api/", RequireAuth(apiMux, cfg))
	mux.Handle("/ws", wsHub)

	rateLimiter := NewRateLimiter(float64(cfg.Server.IngestRPS), cfg.Server.IngestBurst)
	handler := RateLimitMiddleware(mux, rateLimiter)
	handler = securityHeadersMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		wsHub.Stop()
		return "", nil, fmt.Errorf("server: failed to listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("server: serve error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	log.Printf("server: listening on %s", actualAddr)
	return actualAddr, wsHub, nil
}

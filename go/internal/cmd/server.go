package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mcdev12/eventclock/go/internal/gateway"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg *Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	// Register timer routes
	services.Gateway.RegisterRoutes(mux)

	// Add health check endpoint
	setupHealthCheck(mux)
	setupInfo(mux, cfg, services)

	// Wrap with CORS
	handler := c.Handler(mux)

	// Setup HTTP/2 server
	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

// ServiceInfo is the body of GET /info
type ServiceInfo struct {
	Service             string                  `json:"service"`
	Version             string                  `json:"version"`
	BroadcastIntervalMs int64                   `json:"broadcast_interval_ms"`
	Journal             bool                    `json:"journal"`
	NATS                bool                    `json:"nats"`
	Subscribers         gateway.ConnectionStats `json:"subscribers"`
}

func setupInfo(mux *http.ServeMux, cfg *Config, services *Services) {
	mux.HandleFunc("GET /info", func(w http.ResponseWriter, r *http.Request) {
		info := ServiceInfo{
			Service:             "eventclock",
			Version:             version,
			BroadcastIntervalMs: cfg.BroadcastInterval.Milliseconds(),
			Journal:             cfg.JournalEnabled,
			NATS:                cfg.NATSURL != "",
			Subscribers:         services.Gateway.Stats(),
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(info); err != nil {
			log.Error().Err(err).Msg("failed to write info response")
		}
	})
}

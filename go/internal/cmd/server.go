package main

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/config"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/lobby"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg *config.Config, services *Services) *http.Server {
	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: newHandler(services),
	}
}

func newHandler(services *Services) http.Handler {
	router := mux.NewRouter()

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

	// Register services
	registerServices(router, services)

	// Add health check endpoint
	setupHealthCheck(router, services)

	// Wrap with CORS, then serve HTTP/2 without TLS for Connect clients
	return h2c.NewHandler(c.Handler(router), &http2.Server{})
}

func registerServices(router *mux.Router, services *Services) {
	// Register lobby service
	lobbyPath, lobbyHandler := lobby.NewHandler(services.Lobby)
	router.PathPrefix(lobbyPath).Handler(lobbyHandler)

	// Register websocket gateway
	services.Gateway.RegisterRoutes(router)
}

func setupHealthCheck(router *mux.Router, services *Services) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status, body := http.StatusOK, "OK"
		if services.jetStream != nil && !services.jetStream.Connected() {
			status, body = http.StatusServiceUnavailable, "NATS disconnected"
		}
		w.WriteHeader(status)
		if _, err := w.Write([]byte(body)); err != nil {
			log.Warn().Err(err).Msg("failed to write health check response")
		}
	}).Methods(http.MethodGet, http.MethodHead)
}

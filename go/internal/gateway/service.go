package gateway

import (
	"context"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/race"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/room"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/session"
	"github.com/rs/zerolog/log"
)

// Service is the race gateway: websocket transport, intent handling and the
// phase scheduler that drives each room.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	handler           *Handler
	scheduler         *race.Scheduler
	store             *room.Store
	sessions          *session.Directory
}

// Config holds configuration for the race gateway
type Config struct {
	ConnectionConfig ConnectionConfig
	RaceConfig       race.Config
}

// DefaultConfig returns default configuration for the race gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		RaceConfig:       race.DefaultConfig(),
	}
}

// NewService wires the connection manager, scheduler and intent handler together
func NewService(config Config, store *room.Store, sessions *session.Directory, events race.EventSink, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	connectionManager := NewConnectionManager(config.ConnectionConfig)
	scheduler := race.NewScheduler(store, NewNotifier(connectionManager), events, clock, config.RaceConfig)
	handler := NewHandler(store, sessions, scheduler, connectionManager, events, clock)
	connectionManager.SetIntentHandler(handler)

	s := &Service{
		connectionManager: connectionManager,
		handler:           handler,
		scheduler:         scheduler,
		store:             store,
		sessions:          sessions,
	}
	s.wsHandler = NewWebSocketHandler(connectionManager, s.GetStats)
	return s
}

// Start runs the broadcast loop until ctx is cancelled, then stops every timer
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting race gateway service")

	s.connectionManager.Start(ctx)

	log.Info().Msg("race gateway service shutting down")
	return s.Stop()
}

// Stop cancels every phase timer
func (s *Service) Stop() error {
	s.scheduler.Shutdown()
	log.Info().Msg("race gateway service stopped")
	return nil
}

// RegisterRoutes registers the websocket HTTP routes
func (s *Service) RegisterRoutes(r *mux.Router) {
	s.wsHandler.RegisterRoutes(r)
	log.Info().Msg("race gateway routes registered")
}

// Stats is the payload of the stats endpoint
type Stats struct {
	ConnectionStats
	Rooms    int    `json:"rooms"`
	Sessions int    `json:"sessions"`
	Service  string `json:"service"`
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() Stats {
	return Stats{
		ConnectionStats: s.connectionManager.GetConnectionStats(),
		Rooms:           s.store.Count(),
		Sessions:        s.sessions.Len(),
		Service:         "race_gateway",
	}
}

// Scheduler exposes the phase scheduler
func (s *Service) Scheduler() *race.Scheduler {
	return s.scheduler
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/config"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/gateway"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/lobby"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/race"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/relay"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/results"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/room"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type Services struct {
	Store   *room.Store
	Gateway *gateway.Service
	Lobby   *lobby.Service
	Relay   *relay.Worker
	Results results.Repository

	jetStream *relay.JetStreamPublisher
	pool      *pgxpool.Pool
}

func setupServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Results repository → Relay publishers → Room store → Gateway → Lobby
	s := &Services{}
	clock := clockwork.NewRealClock()

	// Results
	repo, err := s.setupResults(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.Results = repo

	// Relay
	publishers := []relay.Publisher{results.NewSink(repo)}
	if cfg.NATSEnabled {
		jsConfig := relay.DefaultJetStreamConfig()
		jsConfig.URL = cfg.NATSURL
		js, err := relay.NewJetStreamPublisher(ctx, jsConfig)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to jetstream: %w", err)
		}
		s.jetStream = js
		publishers = append(publishers, js)
	} else {
		publishers = append(publishers, relay.NewLogPublisher())
	}
	s.Relay = relay.NewWorker(relay.DefaultConfig(), publishers...)
	if err := s.Relay.Start(context.WithoutCancel(ctx)); err != nil {
		s.Close()
		return nil, err
	}

	// Rooms
	s.Store = room.NewStore(room.Config{
		RoundSeconds: cfg.RoundSeconds,
		Texts:        cfg.Texts,
	}, room.WithClock(clock))

	// Gateway
	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.ConnectionConfig.ProgressRate = rate.Limit(cfg.ProgressRate)
	gatewayConfig.ConnectionConfig.ProgressBurst = cfg.ProgressBurst
	gatewayConfig.RaceConfig = race.Config{
		CountdownFrom: cfg.CountdownFrom,
		Interval:      time.Second,
	}
	s.Gateway = gateway.NewService(gatewayConfig, s.Store, session.NewDirectory(), s.Relay, clock)

	// Lobby
	s.Lobby = lobby.NewService(s.Store, repo)

	log.Info().
		Int("round_seconds", cfg.RoundSeconds).
		Int("countdown_from", cfg.CountdownFrom).
		Str("results_store", cfg.ResultsStore).
		Bool("nats_enabled", cfg.NATSEnabled).
		Msg("services ready")
	return s, nil
}

func (s *Services) setupResults(ctx context.Context, cfg *config.Config) (results.Repository, error) {
	if cfg.ResultsStore != config.ResultsStorePostgres {
		return results.NewMemoryRepository(cfg.ResultsCapacity), nil
	}

	pool, err := setupDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	s.pool = pool

	repo := results.NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// Close flushes the relay and releases external connections
func (s *Services) Close() {
	if s.Relay != nil {
		if err := s.Relay.Stop(); err != nil {
			log.Warn().Err(err).Msg("relay stop failed")
		}
	}
	if s.jetStream != nil {
		if err := s.jetStream.Close(); err != nil {
			log.Warn().Err(err).Msg("jetstream close failed")
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

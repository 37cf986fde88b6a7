package results

import (
	"context"
	"fmt"

	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/relay"
	"github.com/rs/zerolog/log"
)

// Sink is a relay publisher that records RoundFinished events
type Sink struct {
	repo Repository
}

func NewSink(repo Repository) *Sink {
	return &Sink{repo: repo}
}

func (s *Sink) Publish(ctx context.Context, event relay.Event) error {
	if event.EventType != relay.EventTypeRoundFinished {
		return nil
	}

	result, err := relay.DecodeRoundFinished(event)
	if err != nil {
		// undecodable payloads are not retried
		log.Error().Err(err).Str("event_id", event.ID.String()).Msg("dropping undecodable round result")
		return nil
	}
	if err := s.repo.SaveRound(ctx, result); err != nil {
		return fmt.Errorf("save round %s/%d: %w", result.RoomCode, result.Round, err)
	}

	log.Info().
		Str("room_code", result.RoomCode).
		Int("round", result.Round).
		Int("placements", len(result.Placements)).
		Msg("round result recorded")
	return nil
}

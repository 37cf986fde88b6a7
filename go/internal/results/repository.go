package results

import (
	"context"
	"errors"

	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/models"
)

// DefaultListLimit caps ListRecent when the caller passes no limit
const DefaultListLimit = 20

// ErrInvalidResult is returned for results that cannot be recorded
var ErrInvalidResult = errors.New("invalid round result")

// Repository records finished rounds
type Repository interface {
	SaveRound(ctx context.Context, result models.RoundResult) error
	// ListRecent returns the most recently finished rounds, newest first
	ListRecent(ctx context.Context, limit int) ([]models.RoundResult, error)
}

func validate(result models.RoundResult) error {
	if result.RoomCode == "" {
		return errors.Join(ErrInvalidResult, errors.New("missing room code"))
	}
	if result.FinishedAt.IsZero() {
		return errors.Join(ErrInvalidResult, errors.New("missing finish time"))
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

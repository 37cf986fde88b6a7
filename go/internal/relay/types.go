package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/models"
)

// Event types carried on the relay
const (
	EventTypeRoomCreated   = "RoomCreated"
	EventTypeRoundStarted  = "RoundStarted"
	EventTypeRoundFinished = "RoundFinished"
	EventTypeRoomClosed    = "RoomClosed"
)

// Event is one room lifecycle event waiting to be published
type Event struct {
	ID        uuid.UUID       `json:"id"`
	RoomCode  string          `json:"room_code"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Publisher delivers events to a downstream sink
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// RoomCreatedPayload is the payload of RoomCreated
type RoomCreatedPayload struct {
	Host string `json:"host"`
	Text string `json:"text"`
}

// RoundStartedPayload is the payload of RoundStarted
type RoundStartedPayload struct {
	Round     int       `json:"round"`
	Players   int       `json:"players"`
	Text      string    `json:"text"`
	StartedAt time.Time `json:"started_at"`
}

// RoundFinishedPayload is the payload of RoundFinished
type RoundFinishedPayload struct {
	Round      int                `json:"round"`
	Text       string             `json:"text"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Placements []models.Placement `json:"placements"`
}

// RoomClosedPayload is the payload of RoomClosed
type RoomClosedPayload struct {
	ClosedAt time.Time `json:"closed_at"`
}

// Envelope is the wire shape published to external sinks
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	RoomCode  string          `json:"roomCode"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Envelope wraps the event for publishing
func (e Event) Envelope() Envelope {
	return Envelope{
		EventID:   e.ID.String(),
		EventType: e.EventType,
		RoomCode:  e.RoomCode,
		Timestamp: e.CreatedAt.UTC(),
		Payload:   e.Payload,
	}
}

func newEvent(eventType, code string, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		RoomCode:  code,
		EventType: eventType,
		Payload:   data,
		CreatedAt: at,
	}, nil
}

// RoomCreated builds the event for a freshly created room
func RoomCreated(room *models.Room, at time.Time) (Event, error) {
	p := RoomCreatedPayload{Text: room.Text}
	if host := room.Host(); host != nil {
		p.Host = host.Username
	}
	return newEvent(EventTypeRoomCreated, room.ID, at, p)
}

// RoundStarted builds the event for a room entering play
func RoundStarted(room *models.Room, at time.Time) (Event, error) {
	return newEvent(EventTypeRoundStarted, room.ID, at, RoundStartedPayload{
		Round:     room.Round,
		Players:   len(room.Players),
		Text:      room.Text,
		StartedAt: startedAt(room, at),
	})
}

// RoundFinished builds the event for a finished round with its standings
func RoundFinished(room *models.Room, at time.Time) (Event, error) {
	return newEvent(EventTypeRoundFinished, room.ID, at, RoundFinishedPayload{
		Round:      room.Round,
		Text:       room.Text,
		StartedAt:  startedAt(room, at),
		FinishedAt: at.UTC(),
		Placements: models.Standings(room.Players),
	})
}

// RoomClosed builds the event for a room whose last player left
func RoomClosed(code string, at time.Time) (Event, error) {
	return newEvent(EventTypeRoomClosed, code, at, RoomClosedPayload{ClosedAt: at.UTC()})
}

// DecodeRoundFinished turns a RoundFinished event back into a result record
func DecodeRoundFinished(e Event) (models.RoundResult, error) {
	if e.EventType != EventTypeRoundFinished {
		return models.RoundResult{}, fmt.Errorf("unexpected event type %q", e.EventType)
	}
	var p RoundFinishedPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return models.RoundResult{}, fmt.Errorf("unmarshal RoundFinished payload: %w", err)
	}
	return models.RoundResult{
		RoomCode:   e.RoomCode,
		Round:      p.Round,
		Text:       p.Text,
		StartedAt:  p.StartedAt,
		FinishedAt: p.FinishedAt,
		Placements: p.Placements,
	}, nil
}

func startedAt(room *models.Room, fallback time.Time) time.Time {
	if room.StartTime == nil {
		return fallback.UTC()
	}
	return time.UnixMilli(*room.StartTime).UTC()
}

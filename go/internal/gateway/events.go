package gateway

import "encoding/json"

// EventType names a websocket message in either direction
type EventType string

// Intents sent by clients
const (
	IntentCreateRoom   EventType = "create_room"
	IntentJoinRoom     EventType = "join_room"
	IntentStartGame    EventType = "start_game"
	IntentPlayerUpdate EventType = "player_update"
	IntentPlayerReady  EventType = "player_ready"
)

// Events sent by the server
const (
	EventRoomCreated EventType = "room_created"
	EventRoomJoined  EventType = "room_joined"
	EventRoomUpdated EventType = "room_updated"
	EventGameStarted EventType = "game_started"
	EventCountdown   EventType = "countdown"
	EventTimerUpdate EventType = "timer_update"
	EventGameOver    EventType = "game_over"
	EventError       EventType = "error"
)

// Message is the frame shape for every websocket text message
type Message[T any] struct {
	Type EventType `json:"type"`
	Data T         `json:"data"`
}

// Inbound is a client frame with its payload left undecoded
type Inbound = Message[json.RawMessage]

type CreateRoomPayload struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type StartGamePayload struct {
	RoomID string `json:"roomId"`
}

type PlayerUpdatePayload struct {
	RoomID   string  `json:"roomId"`
	Progress float64 `json:"progress"`
	WPM      float64 `json:"wpm"`
}

type PlayerReadyPayload struct {
	RoomID string `json:"roomId"`
}

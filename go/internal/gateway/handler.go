package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/models"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/race"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/relay"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/room"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/session"
	"github.com/rs/zerolog/log"
)

var (
	// ErrAlreadyInRoom is returned when a connection that already occupies a
	// room tries to create or join another
	ErrAlreadyInRoom = errors.New("already in a room")
	// ErrNotInRoom is returned when an intent names a room the sender is not in
	ErrNotInRoom = errors.New("not in this room")

	errMalformedPayload = errors.New("malformed payload")
)

const (
	maxUsernameLen  = 24
	maxAvatarLen    = 32
	defaultUsername = "Player"
)

// RoomStore defines what the handler needs from the room store
type RoomStore interface {
	Create(host models.Player) (*models.Room, error)
	Join(code string, player models.Player) (*models.Room, error)
	Leave(code, playerID string) (*models.Room, bool)
	ReportProgress(code, playerID string, progress, wpm float64) (*models.Room, error)
	MarkReady(code, playerID string) (*models.Room, bool, error)
}

// Scheduler defines what the handler needs from the phase scheduler
type Scheduler interface {
	StartCountdown(ctx context.Context, code, playerID string) error
	Rematch(ctx context.Context, code string) error
	CancelRoom(code string)
}

// Sender delivers frames to connections and room groups
type Sender interface {
	SendToConnection(connID string, eventType EventType, data any)
	BroadcastToRoom(code string, eventType EventType, data any)
	JoinRoom(connID, code string)
	LeaveRoom(connID string)
}

// Handler turns client intents into room store and scheduler calls
type Handler struct {
	store     RoomStore
	sessions  *session.Directory
	scheduler Scheduler
	sender    Sender
	events    race.EventSink
	clock     clockwork.Clock
}

func NewHandler(store RoomStore, sessions *session.Directory, scheduler Scheduler, sender Sender, events race.EventSink, clock clockwork.Clock) *Handler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Handler{
		store:     store,
		sessions:  sessions,
		scheduler: scheduler,
		sender:    sender,
		events:    events,
		clock:     clock,
	}
}

// HandleMessage decodes one client frame and dispatches it. Errors are sent
// back to the originating connection only.
func (h *Handler) HandleMessage(ctx context.Context, c *Connection, raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("ignoring malformed frame")
		return
	}

	var err error
	switch in.Type {
	case IntentCreateRoom:
		err = h.createRoom(c.ID, in.Data)
	case IntentJoinRoom:
		err = h.joinRoom(c.ID, in.Data)
	case IntentStartGame:
		err = h.startGame(ctx, c.ID, in.Data)
	case IntentPlayerUpdate:
		if !c.AllowProgress() {
			log.Debug().Str("connection_id", c.ID).Msg("progress update rate exceeded, dropping")
			return
		}
		err = h.playerUpdate(c.ID, in.Data)
	case IntentPlayerReady:
		err = h.playerReady(ctx, c.ID, in.Data)
	default:
		log.Debug().Str("connection_id", c.ID).Str("event_type", string(in.Type)).Msg("ignoring unknown intent")
		return
	}

	if err != nil {
		h.fail(c.ID, in.Type, err)
	}
}

// HandleDisconnect removes the connection's player from its room
func (h *Handler) HandleDisconnect(ctx context.Context, connID string) {
	entry, ok := h.sessions.Remove(connID)
	if !ok {
		return
	}
	h.sender.LeaveRoom(connID)

	r, alive := h.store.Leave(entry.RoomCode, entry.PlayerID)
	if !alive {
		h.scheduler.CancelRoom(entry.RoomCode)
		h.emit(relay.RoomClosed(entry.RoomCode, h.clock.Now()))
		return
	}
	h.sender.BroadcastToRoom(r.ID, EventRoomUpdated, r)
}

func (h *Handler) createRoom(connID string, data json.RawMessage) error {
	var p CreateRoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if _, ok := h.sessions.Get(connID); ok {
		return ErrAlreadyInRoom
	}

	r, err := h.store.Create(newPlayer(connID, p.Username, p.Avatar))
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}

	h.sessions.Set(connID, session.Entry{RoomCode: r.ID, PlayerID: connID})
	h.sender.JoinRoom(connID, r.ID)
	h.sender.SendToConnection(connID, EventRoomCreated, r)
	h.emit(relay.RoomCreated(r, h.clock.Now()))
	return nil
}

func (h *Handler) joinRoom(connID string, data json.RawMessage) error {
	var p JoinRoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if _, ok := h.sessions.Get(connID); ok {
		return ErrAlreadyInRoom
	}

	code := strings.ToUpper(strings.TrimSpace(p.RoomID))
	if !room.ValidCode(code) {
		return fmt.Errorf("join room %q: %w", code, room.ErrRoomNotFound)
	}
	r, err := h.store.Join(code, newPlayer(connID, p.Username, p.Avatar))
	if err != nil {
		return fmt.Errorf("join room %s: %w", code, err)
	}

	h.sessions.Set(connID, session.Entry{RoomCode: r.ID, PlayerID: connID})
	h.sender.JoinRoom(connID, r.ID)
	h.sender.BroadcastToRoom(r.ID, EventRoomUpdated, r)
	h.sender.SendToConnection(connID, EventRoomJoined, r)
	return nil
}

func (h *Handler) startGame(ctx context.Context, connID string, data json.RawMessage) error {
	var p StartGamePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	entry, err := h.requireRoom(connID, p.RoomID)
	if err != nil {
		return err
	}
	if err := h.scheduler.StartCountdown(ctx, entry.RoomCode, entry.PlayerID); err != nil {
		return fmt.Errorf("start game: %w", err)
	}
	return nil
}

// playerUpdate accepts progress only while the round is playing. Anything
// else is a stale report and is dropped.
func (h *Handler) playerUpdate(connID string, data json.RawMessage) error {
	var p PlayerUpdatePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	entry, ok := h.sessions.Get(connID)
	if !ok {
		log.Debug().Str("connection_id", connID).Msg("progress update outside a room, dropping")
		return nil
	}

	r, err := h.store.ReportProgress(entry.RoomCode, entry.PlayerID, p.Progress, p.WPM)
	if err != nil {
		log.Debug().Err(err).Str("connection_id", connID).Str("room_code", entry.RoomCode).Msg("progress update ignored")
		return nil
	}
	h.sender.BroadcastToRoom(r.ID, EventRoomUpdated, r)
	return nil
}

func (h *Handler) playerReady(ctx context.Context, connID string, data json.RawMessage) error {
	var p PlayerReadyPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	entry, ok := h.sessions.Get(connID)
	if !ok {
		log.Debug().Str("connection_id", connID).Msg("ready vote outside a room, dropping")
		return nil
	}

	r, allReady, err := h.store.MarkReady(entry.RoomCode, entry.PlayerID)
	if err != nil {
		log.Debug().Err(err).Str("connection_id", connID).Str("room_code", entry.RoomCode).Msg("ready vote ignored")
		return nil
	}
	h.sender.BroadcastToRoom(r.ID, EventRoomUpdated, r)

	if allReady {
		if err := h.scheduler.Rematch(ctx, r.ID); err != nil {
			return fmt.Errorf("rematch: %w", err)
		}
	}
	return nil
}

// requireRoom returns the sender's session, checking it matches roomID when one is given
func (h *Handler) requireRoom(connID, roomID string) (session.Entry, error) {
	entry, ok := h.sessions.Get(connID)
	if !ok {
		return session.Entry{}, ErrNotInRoom
	}
	if roomID != "" && !strings.EqualFold(strings.TrimSpace(roomID), entry.RoomCode) {
		return session.Entry{}, ErrNotInRoom
	}
	return entry, nil
}

func (h *Handler) fail(connID string, intent EventType, err error) {
	if errors.Is(err, errMalformedPayload) {
		log.Warn().Err(err).Str("connection_id", connID).Str("event_type", string(intent)).Msg("ignoring malformed intent")
		return
	}
	log.Info().Err(err).Str("connection_id", connID).Str("event_type", string(intent)).Msg("intent rejected")
	h.sender.SendToConnection(connID, EventError, userMessage(err))
}

func (h *Handler) emit(event relay.Event, err error) {
	if err != nil {
		log.Error().Err(err).Msg("failed to build race event")
		return
	}
	if h.events != nil {
		h.events.Emit(event)
	}
}

// userMessage maps an intent error to the string shown to players
func userMessage(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, room.ErrRoomNotJoinable):
		return "Game already started"
	case errors.Is(err, room.ErrRoundInProgress):
		return "Game already in progress"
	case errors.Is(err, race.ErrNotHost):
		return "Only the host can start the game"
	case errors.Is(err, ErrAlreadyInRoom):
		return "You are already in a room"
	case errors.Is(err, ErrNotInRoom):
		return "You are not in this room"
	default:
		return "Something went wrong"
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformedPayload, err)
	}
	return nil
}

func newPlayer(connID, username, avatar string) models.Player {
	username = strings.TrimSpace(username)
	if username == "" {
		username = defaultUsername
	}
	return models.NewPlayer(connID, truncate(username, maxUsernameLen), truncate(strings.TrimSpace(avatar), maxAvatarLen))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

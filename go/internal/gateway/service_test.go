package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/models"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/race"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/room"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func startServer(t *testing.T, roundSeconds int) (*Service, string) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RaceConfig = race.Config{CountdownFrom: 3, Interval: 20 * time.Millisecond}

	store := room.NewStore(room.Config{RoundSeconds: roundSeconds})
	svc := NewService(cfg, store, session.NewDirectory(), nil, clockwork.NewRealClock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Start(ctx)
	}()

	router := mux.NewRouter()
	svc.RegisterRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})

	return svc, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *wsClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(typ EventType, data any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(Message[any]{Type: typ, Data: data}))
}

// next returns the next frame from the server
func (c *wsClient) next() Inbound {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Inbound
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	return msg
}

// until skips frames until one of type typ arrives
func (c *wsClient) until(typ EventType) json.RawMessage {
	c.t.Helper()
	for {
		msg := c.next()
		if msg.Type == typ {
			return msg.Data
		}
	}
}

func (c *wsClient) room(typ EventType) *models.Room {
	c.t.Helper()
	var r models.Room
	require.NoError(c.t, json.Unmarshal(c.until(typ), &r))
	return &r
}

func TestGatewayRace(t *testing.T) {
	svc, url := startServer(t, 60)
	alice, bob := dial(t, url), dial(t, url)

	alice.send(IntentCreateRoom, CreateRoomPayload{Username: "Alice", Avatar: "fox"})
	created := alice.room(EventRoomCreated)
	assert.Equal(t, models.RoomStatusWaiting, created.Status)
	assert.Equal(t, 60, created.Timer)
	assert.NotEmpty(t, created.Text)

	bob.send(IntentJoinRoom, JoinRoomPayload{RoomID: "NOPE00", Username: "Bob"})
	errMsg := bob.next()
	require.Equal(t, EventError, errMsg.Type)
	assert.JSONEq(t, `"Room not found"`, string(errMsg.Data))

	bob.send(IntentJoinRoom, JoinRoomPayload{RoomID: created.ID, Username: "Bob", Avatar: "owl"})
	updated := alice.next()
	require.Equal(t, EventRoomUpdated, updated.Type, "the failed join produced nothing for alice")
	joined := bob.room(EventRoomJoined)
	require.Len(t, joined.Players, 2)
	assert.Equal(t, "Alice", joined.Players[0].Username)

	bob.send(IntentStartGame, StartGamePayload{RoomID: created.ID})
	notHost := bob.until(EventError)
	assert.JSONEq(t, `"Only the host can start the game"`, string(notHost))

	alice.send(IntentStartGame, StartGamePayload{RoomID: created.ID})
	countdown := alice.room(EventRoomUpdated)
	assert.Equal(t, models.RoomStatusCountdown, countdown.Status)

	var counts []int
	for len(counts) < 3 {
		var n int
		require.NoError(t, json.Unmarshal(bob.until(EventCountdown), &n))
		counts = append(counts, n)
	}
	assert.Equal(t, []int{3, 2, 1}, counts)

	started := bob.room(EventGameStarted)
	assert.Equal(t, models.RoomStatusPlaying, started.Status)
	require.NotNil(t, started.StartTime)

	bob.send(IntentPlayerUpdate, PlayerUpdatePayload{RoomID: created.ID, Progress: 100, WPM: 88})
	alice.send(IntentPlayerUpdate, PlayerUpdatePayload{RoomID: created.ID, Progress: 100, WPM: 70})

	over := alice.room(EventGameOver)
	assert.Equal(t, models.RoomStatusFinished, over.Status)
	for _, p := range over.Players {
		assert.Equal(t, 100.0, p.Progress)
		assert.NotNil(t, p.FinishedTime)
	}
	assert.Greater(t, over.Timer, 0)

	alice.send(IntentPlayerReady, PlayerReadyPayload{RoomID: created.ID})
	bob.send(IntentPlayerReady, PlayerReadyPayload{RoomID: created.ID})

	var n int
	require.NoError(t, json.Unmarshal(alice.until(EventCountdown), &n))
	assert.Equal(t, 3, n)

	stats := svc.GetStats()
	assert.Equal(t, 2, stats.TotalConnections)
	assert.Equal(t, 1, stats.Rooms)
	assert.Equal(t, 2, stats.Sessions)
}

func TestGatewayDisconnectLeavesRoom(t *testing.T) {
	svc, url := startServer(t, 60)
	alice, bob := dial(t, url), dial(t, url)

	alice.send(IntentCreateRoom, CreateRoomPayload{Username: "Alice"})
	created := alice.room(EventRoomCreated)
	bob.send(IntentJoinRoom, JoinRoomPayload{RoomID: created.ID, Username: "Bob"})
	bob.room(EventRoomJoined)

	require.NoError(t, alice.conn.Close())

	after := bob.room(EventRoomUpdated)
	require.Len(t, after.Players, 1)
	assert.Equal(t, "Bob", after.Players[0].Username, "bob is promoted to host")

	require.NoError(t, bob.conn.Close())
	assert.Eventually(t, func() bool { return svc.GetStats().Rooms == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, svc.GetStats().Sessions)
}

func TestGatewayRoundRunsOutOfTime(t *testing.T) {
	_, url := startServer(t, 3)
	alice := dial(t, url)

	alice.send(IntentCreateRoom, CreateRoomPayload{Username: "Alice"})
	created := alice.room(EventRoomCreated)
	alice.send(IntentStartGame, StartGamePayload{RoomID: created.ID})
	alice.until(EventGameStarted)

	alice.send(IntentPlayerUpdate, PlayerUpdatePayload{Progress: 40, WPM: 30})

	var ticks []int
	for len(ticks) < 3 {
		var n int
		require.NoError(t, json.Unmarshal(alice.until(EventTimerUpdate), &n))
		ticks = append(ticks, n)
	}
	assert.Equal(t, []int{2, 1, 0}, ticks)

	over := alice.room(EventGameOver)
	assert.Equal(t, 40.0, over.Players[0].Progress)
	assert.Nil(t, over.Players[0].FinishedTime)

	final := alice.room(EventRoomUpdated)
	assert.Equal(t, models.RoomStatusFinished, final.Status)
}

package race

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/models"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/relay"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	poll    = 2 * time.Millisecond
)

type broadcast struct {
	kind string
	code string
	n    int
	room *models.Room
}

type recorder struct {
	mu     sync.Mutex
	sent   []broadcast
	events []relay.Event
}

func (r *recorder) add(b broadcast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, b)
}

func (r *recorder) RoomUpdated(rm *models.Room) {
	r.add(broadcast{kind: "room_updated", code: rm.ID, room: rm})
}
func (r *recorder) Countdown(code string, n int) { r.add(broadcast{kind: "countdown", code: code, n: n}) }
func (r *recorder) GameStarted(rm *models.Room) {
	r.add(broadcast{kind: "game_started", code: rm.ID, room: rm})
}
func (r *recorder) TimerUpdate(code string, n int) {
	r.add(broadcast{kind: "timer_update", code: code, n: n})
}
func (r *recorder) GameOver(rm *models.Room) { r.add(broadcast{kind: "game_over", code: rm.ID, room: rm}) }

func (r *recorder) Emit(e relay.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) of(kind string) []broadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []broadcast
	for _, b := range r.sent {
		if b.kind == kind {
			out = append(out, b)
		}
	}
	return out
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, b := range r.sent {
		out[i] = b.kind
	}
	return out
}

func (r *recorder) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

type fixture struct {
	clock *clockwork.FakeClock
	store *room.Store
	rec   *recorder
	sched *Scheduler
	code  string
}

var (
	alice = models.NewPlayer("conn-alice", "Alice", "fox")
	bob   = models.NewPlayer("conn-bob", "Bob", "owl")
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := room.NewStore(room.Config{RoundSeconds: 60}, room.WithClock(clock))
	rec := &recorder{}
	sched := NewScheduler(store, rec, rec, clock, DefaultConfig())
	t.Cleanup(sched.Shutdown)

	r, err := store.Create(alice)
	require.NoError(t, err)
	_, err = store.Join(r.ID, bob)
	require.NoError(t, err)

	return &fixture{clock: clock, store: store, rec: rec, sched: sched, code: r.ID}
}

// tick advances the fake clock one interval and waits until kind has been
// broadcast want times.
func (f *fixture) tick(t *testing.T, kind string, want int) {
	t.Helper()
	f.clock.Advance(time.Second)
	require.Eventually(t, func() bool { return len(f.rec.of(kind)) >= want }, waitFor, poll,
		"waiting for %d %s broadcasts", want, kind)
}

func (f *fixture) startRound(t *testing.T) {
	t.Helper()
	require.NoError(t, f.sched.StartCountdown(context.Background(), f.code, alice.ID))
	f.tick(t, "countdown", 2)
	f.tick(t, "countdown", 3)
	f.tick(t, "game_started", 1)
}

func (f *fixture) room(t *testing.T) *models.Room {
	t.Helper()
	r, ok := f.store.Get(f.code)
	require.True(t, ok)
	return r
}

func TestRaceScenario(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.sched.StartCountdown(context.Background(), f.code, alice.ID))
	assert.Equal(t, []string{"room_updated", "countdown"}, f.rec.kinds())
	assert.Equal(t, models.RoomStatusCountdown, f.rec.of("room_updated")[0].room.Status)
	assert.Equal(t, 3, f.rec.of("countdown")[0].n)

	f.tick(t, "countdown", 2)
	f.tick(t, "countdown", 3)
	f.tick(t, "game_started", 1)

	counts := f.rec.of("countdown")
	assert.Equal(t, []int{3, 2, 1}, []int{counts[0].n, counts[1].n, counts[2].n})

	r := f.room(t)
	assert.Equal(t, models.RoomStatusPlaying, r.Status)
	require.NotNil(t, r.StartTime)
	assert.Equal(t, f.clock.Now().UnixMilli(), *r.StartTime)

	_, err := f.store.ReportProgress(f.code, alice.ID, 42, 55)
	require.NoError(t, err)

	for i := 1; i <= 60; i++ {
		f.tick(t, "timer_update", i)
	}
	require.Eventually(t, func() bool { return len(f.rec.of("room_updated")) == 2 }, waitFor, poll)
	require.Len(t, f.rec.of("game_over"), 1)

	updates := f.rec.of("timer_update")
	assert.Equal(t, 59, updates[0].n)
	assert.Equal(t, 0, updates[59].n)

	kinds := f.rec.kinds()
	assert.Equal(t, []string{"timer_update", "game_over", "room_updated"}, kinds[len(kinds)-3:])

	r = f.room(t)
	assert.Equal(t, models.RoomStatusFinished, r.Status)
	assert.Equal(t, 42.0, r.Players[0].Progress, "progress survives the end of the round")
	assert.Nil(t, r.Players[1].FinishedTime)

	assert.Equal(t, []string{relay.EventTypeRoundStarted, relay.EventTypeRoundFinished}, f.rec.eventTypes())
	assert.Eventually(t, func() bool { return f.sched.ActiveTimers(f.code) == 0 }, waitFor, poll)
}

func TestRoundEndsWhenEveryoneFinishes(t *testing.T) {
	f := newFixture(t)
	f.startRound(t)

	_, err := f.store.ReportProgress(f.code, alice.ID, 100, 80)
	require.NoError(t, err)
	_, err = f.store.ReportProgress(f.code, bob.ID, 100, 65)
	require.NoError(t, err)

	f.tick(t, "game_over", 1)

	over := f.rec.of("game_over")[0].room
	assert.Equal(t, 59, over.Timer)
	assert.Equal(t, models.RoomStatusFinished, over.Status)
	assert.Eventually(t, func() bool { return f.sched.ActiveTimers(f.code) == 0 }, waitFor, poll)

	f.clock.Advance(5 * time.Second)
	assert.Len(t, f.rec.of("game_over"), 1, "round ends once")
}

func TestDoubleStartLeavesOneTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sched.StartCountdown(ctx, f.code, alice.ID))
	require.NoError(t, f.sched.StartCountdown(ctx, f.code, alice.ID))

	assert.Eventually(t, func() bool { return f.sched.ActiveTimers(f.code) == 1 }, waitFor, poll)

	f.tick(t, "countdown", 3)
	f.tick(t, "countdown", 4)
	f.tick(t, "game_started", 1)

	assert.Eventually(t, func() bool { return f.sched.ActiveTimers(f.code) == 1 }, waitFor, poll)
	assert.Len(t, f.rec.of("game_started"), 1)
	assert.Len(t, f.rec.of("countdown"), 4)
}

func TestStartRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.sched.StartCountdown(ctx, f.code, bob.ID)
	assert.ErrorIs(t, err, ErrNotHost)

	err = f.sched.StartCountdown(ctx, "NOPE00", alice.ID)
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	f.startRound(t)
	err = f.sched.StartCountdown(ctx, f.code, alice.ID)
	assert.ErrorIs(t, err, room.ErrRoundInProgress)
	assert.Eventually(t, func() bool { return f.sched.ActiveTimers(f.code) == 1 }, waitFor, poll)

	f.tick(t, "timer_update", 1)
}

func TestRematchAfterReadyUp(t *testing.T) {
	f := newFixture(t)
	f.startRound(t)

	_, err := f.store.ReportProgress(f.code, alice.ID, 100, 80)
	require.NoError(t, err)
	_, err = f.store.ReportProgress(f.code, bob.ID, 100, 65)
	require.NoError(t, err)
	f.tick(t, "game_over", 1)

	_, all, err := f.store.MarkReady(f.code, alice.ID)
	require.NoError(t, err)
	assert.False(t, all)
	assert.Equal(t, models.RoomStatusFinished, f.room(t).Status, "one vote short does not reset")

	_, all, err = f.store.MarkReady(f.code, bob.ID)
	require.NoError(t, err)
	require.True(t, all)

	require.NoError(t, f.sched.Rematch(context.Background(), f.code))

	r := f.room(t)
	assert.Equal(t, models.RoomStatusCountdown, r.Status)
	for _, p := range r.Players {
		assert.Zero(t, p.Progress)
		assert.Nil(t, p.FinishedTime)
		assert.False(t, p.IsReady)
	}
	assert.Len(t, f.rec.of("countdown"), 4)

	f.tick(t, "countdown", 5)
	f.tick(t, "countdown", 6)
	f.tick(t, "game_started", 2)
	assert.Equal(t, 2, f.room(t).Round)
}

func TestRematchRunsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sched.Rematch(ctx, f.code), "waiting room")
	assert.Empty(t, f.rec.of("countdown"))

	f.startRound(t)
	require.NoError(t, f.sched.Rematch(ctx, f.code), "playing room")
	assert.Equal(t, models.RoomStatusPlaying, f.room(t).Status)

	_, err := f.store.ReportProgress(f.code, alice.ID, 100, 80)
	require.NoError(t, err)
	_, err = f.store.ReportProgress(f.code, bob.ID, 100, 65)
	require.NoError(t, err)
	f.tick(t, "game_over", 1)
	require.Eventually(t, func() bool { return len(f.rec.of("room_updated")) == 2 }, waitFor, poll)

	_, _, err = f.store.MarkReady(f.code, alice.ID)
	require.NoError(t, err)
	require.NoError(t, f.sched.Rematch(ctx, f.code), "one vote short")
	assert.Equal(t, models.RoomStatusFinished, f.room(t).Status)

	_, _, err = f.store.MarkReady(f.code, bob.ID)
	require.NoError(t, err)
	updates := len(f.rec.of("room_updated"))

	require.NoError(t, f.sched.Rematch(ctx, f.code))
	require.NoError(t, f.sched.Rematch(ctx, f.code))

	assert.Len(t, f.rec.of("countdown"), 4, "one fresh countdown")
	assert.Len(t, f.rec.of("room_updated"), updates+2, "reset and countdown broadcast once each")
	assert.Equal(t, models.RoomStatusCountdown, f.room(t).Status)
	assert.Eventually(t, func() bool { return f.sched.ActiveTimers(f.code) == 1 }, waitFor, poll)
}

func TestRoomDeletedMidRound(t *testing.T) {
	f := newFixture(t)
	f.startRound(t)

	f.store.Leave(f.code, alice.ID)
	f.store.Leave(f.code, bob.ID)

	f.clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return f.sched.ActiveTimers(f.code) == 0 }, waitFor, poll,
		"timer stops itself once the room is gone")
	assert.Empty(t, f.rec.of("timer_update"))
}

func TestCancelRoom(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sched.StartCountdown(context.Background(), f.code, alice.ID))

	f.sched.CancelRoom(f.code)
	assert.Eventually(t, func() bool { return f.sched.ActiveTimers(f.code) == 0 }, waitFor, poll)

	f.clock.Advance(5 * time.Second)
	assert.Len(t, f.rec.of("countdown"), 1)
}

func TestShutdownStopsEveryTimer(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sched.StartCountdown(context.Background(), f.code, alice.ID))

	f.sched.Shutdown()
	assert.Zero(t, f.sched.ActiveTimers(f.code))
}

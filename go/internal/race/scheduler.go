package race

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/models"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/relay"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/room"
	"github.com/rs/zerolog/log"
)

// ErrNotHost is returned when a non-host player tries to start the round
var ErrNotHost = errors.New("only the host can start the game")

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// RoomStore defines what the scheduler needs from the room store
type RoomStore interface {
	Get(code string) (*models.Room, bool)
	ResetForRematch(code string) (*models.Room, error)
	BeginCountdown(code string) (*models.Room, error)
	BeginRound(code string) (*models.Room, error)
	TickRound(code string) (*models.Room, bool, bool)
}

// Broadcaster fans phase changes out to the members of a room
type Broadcaster interface {
	RoomUpdated(room *models.Room)
	Countdown(code string, n int)
	GameStarted(room *models.Room)
	TimerUpdate(code string, seconds int)
	GameOver(room *models.Room)
}

// EventSink receives lifecycle events for the relay
type EventSink interface {
	Emit(event relay.Event)
}

type Config struct {
	CountdownFrom int
	Interval      time.Duration
}

func DefaultConfig() Config {
	return Config{
		CountdownFrom: 3,
		Interval:      time.Second,
	}
}

// Scheduler drives each room through countdown, play and results.
//
// Every room has at most one current phase timer. Transitions and ticks for a
// room run under that room's lock, and a tick only acts if its timer is still
// the current one.
type Scheduler struct {
	store  RoomStore
	out    Broadcaster
	events EventSink
	clock  Clock
	config Config

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	activeTimersMu sync.Mutex
	activeTimers   map[string]*phaseTimer
	running        map[string]int // live timer goroutines per room
	nextTimerID    uint64

	roomLocksMu sync.Mutex
	roomLocks   map[string]*roomLock
}

func NewScheduler(store RoomStore, out Broadcaster, events EventSink, clock Clock, cfg Config) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.CountdownFrom <= 0 {
		cfg.CountdownFrom = DefaultConfig().CountdownFrom
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:        store,
		out:          out,
		events:       events,
		clock:        clock,
		config:       cfg,
		baseCtx:      ctx,
		baseCancel:   cancel,
		activeTimers: make(map[string]*phaseTimer),
		running:      make(map[string]int),
		roomLocks:    make(map[string]*roomLock),
	}
}

// StartCountdown begins the pre-round countdown on behalf of playerID, who
// must be the room host.
func (s *Scheduler) StartCountdown(ctx context.Context, code, playerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.lockRoom(code)
	defer unlock()

	r, ok := s.store.Get(code)
	if !ok {
		return fmt.Errorf("start countdown %s: %w", code, room.ErrRoomNotFound)
	}
	if !r.IsHost(playerID) {
		return fmt.Errorf("start countdown %s: %w", code, ErrNotHost)
	}
	return s.startCountdownLocked(code)
}

// Rematch resets a finished room whose players are all ready and immediately
// starts the next countdown. Any other room is left alone.
func (s *Scheduler) Rematch(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.lockRoom(code)
	defer unlock()

	r, err := s.store.ResetForRematch(code)
	switch {
	case errors.Is(err, room.ErrRoundNotFinished), errors.Is(err, room.ErrNotAllReady):
		log.Debug().Err(err).Str("room_code", code).Msg("rematch skipped")
		return nil
	case err != nil:
		return fmt.Errorf("rematch %s: %w", code, err)
	}
	s.out.RoomUpdated(r)

	log.Info().Str("room_code", code).Msg("all players ready, starting rematch")
	return s.startCountdownLocked(code)
}

// CancelRoom stops and forgets the room's timer
func (s *Scheduler) CancelRoom(code string) {
	unlock := s.lockRoom(code)
	defer unlock()
	s.cancelTimer(code)
}

// ActiveTimers returns the number of live timer goroutines for a room
func (s *Scheduler) ActiveTimers(code string) int {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()
	return s.running[code]
}

// Shutdown cancels every timer and waits for their goroutines to exit
func (s *Scheduler) Shutdown() {
	s.baseCancel()

	s.activeTimersMu.Lock()
	for code, t := range s.activeTimers {
		t.stop()
		delete(s.activeTimers, code)
	}
	s.activeTimersMu.Unlock()

	s.wg.Wait()
	log.Info().Msg("phase scheduler stopped")
}

func (s *Scheduler) startCountdownLocked(code string) error {
	r, err := s.store.BeginCountdown(code)
	if err != nil {
		return fmt.Errorf("start countdown %s: %w", code, err)
	}

	s.startTimer(code, phaseCountdown)
	s.out.RoomUpdated(r)
	s.out.Countdown(code, s.config.CountdownFrom)

	log.Info().Str("room_code", code).Int("from", s.config.CountdownFrom).Msg("countdown started")
	return nil
}

// onCountdownTick runs with the room lock held. It returns false once the
// timer is done.
func (s *Scheduler) onCountdownTick(code string, t *phaseTimer) bool {
	t.remaining--
	if t.remaining > 0 {
		s.out.Countdown(code, t.remaining)
		return true
	}

	s.dropTimer(code, t)

	r, err := s.store.BeginRound(code)
	if err != nil {
		log.Warn().Err(err).Str("room_code", code).Msg("countdown ended but round could not start")
		return false
	}

	s.startTimer(code, phasePlaying)
	s.out.GameStarted(r)
	s.emit(relay.RoundStarted(r, s.clock.Now()))
	return false
}

// onRoundTick runs with the room lock held
func (s *Scheduler) onRoundTick(code string, t *phaseTimer) bool {
	r, ended, ok := s.store.TickRound(code)
	if !ok {
		s.dropTimer(code, t)
		log.Debug().Str("room_code", code).Msg("round timer stopped, room gone or not playing")
		return false
	}

	s.out.TimerUpdate(code, r.Timer)
	if !ended {
		return true
	}

	s.dropTimer(code, t)
	s.out.GameOver(r)
	s.out.RoomUpdated(r)
	s.emit(relay.RoundFinished(r, s.clock.Now()))
	return false
}

func (s *Scheduler) emit(event relay.Event, err error) {
	if err != nil {
		log.Error().Err(err).Msg("failed to build race event")
		return
	}
	if s.events != nil {
		s.events.Emit(event)
	}
}

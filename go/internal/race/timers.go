package race

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type phase int

const (
	phaseCountdown phase = iota
	phasePlaying
)

func (p phase) String() string {
	if p == phaseCountdown {
		return "countdown"
	}
	return "playing"
}

type phaseTimer struct {
	id        uint64
	phase     phase
	remaining int // countdown only
	ticker    clockwork.Ticker
	cancel    context.CancelFunc
	stopOnce  sync.Once
}

// stop cancels the timer goroutine and releases the ticker. Safe to call twice.
func (t *phaseTimer) stop() {
	t.stopOnce.Do(func() {
		t.cancel()
		t.ticker.Stop()
	})
}

// startTimer replaces the room's current timer with a new ticker for ph. The
// ticker is created before the goroutine starts so a fake clock sees it at once.
func (s *Scheduler) startTimer(code string, ph phase) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	t := &phaseTimer{
		phase:     ph,
		remaining: s.config.CountdownFrom,
		ticker:    s.clock.NewTicker(s.config.Interval),
		cancel:    cancel,
	}

	s.activeTimersMu.Lock()
	s.nextTimerID++
	t.id = s.nextTimerID
	if existing, ok := s.activeTimers[code]; ok {
		existing.stop()
		log.Debug().Str("room_code", code).Str("phase", existing.phase.String()).Msg("replaced existing timer")
	}
	s.activeTimers[code] = t
	s.running[code]++
	s.activeTimersMu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, code, t)
}

func (s *Scheduler) run(ctx context.Context, code string, t *phaseTimer) {
	defer s.wg.Done()
	defer s.timerExited(code)
	defer t.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.ticker.Chan():
			if !s.tick(code, t) {
				return
			}
		}
	}
}

func (s *Scheduler) tick(code string, t *phaseTimer) bool {
	unlock := s.lockRoom(code)
	defer unlock()

	if !s.isCurrent(code, t) {
		return false
	}

	switch t.phase {
	case phaseCountdown:
		return s.onCountdownTick(code, t)
	default:
		return s.onRoundTick(code, t)
	}
}

func (s *Scheduler) isCurrent(code string, t *phaseTimer) bool {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()
	current, ok := s.activeTimers[code]
	return ok && current.id == t.id
}

// dropTimer removes t if it is still the room's current timer
func (s *Scheduler) dropTimer(code string, t *phaseTimer) {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()
	if current, ok := s.activeTimers[code]; ok && current.id == t.id {
		delete(s.activeTimers, code)
	}
	t.stop()
}

// cancelTimer cancels and removes the room's current timer
func (s *Scheduler) cancelTimer(code string) {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()

	if t, ok := s.activeTimers[code]; ok {
		t.stop()
		delete(s.activeTimers, code)
		log.Debug().Str("room_code", code).Str("phase", t.phase.String()).Msg("cancelled timer")
	}
}

func (s *Scheduler) timerExited(code string) {
	s.activeTimersMu.Lock()
	defer s.activeTimersMu.Unlock()
	if s.running[code] <= 1 {
		delete(s.running, code)
		return
	}
	s.running[code]--
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

// lockRoom serializes phase work for one room and returns the unlock func.
// Lock entries are reference counted so idle rooms leave nothing behind.
func (s *Scheduler) lockRoom(code string) func() {
	s.roomLocksMu.Lock()
	l, ok := s.roomLocks[code]
	if !ok {
		l = &roomLock{}
		s.roomLocks[code] = l
	}
	l.refs++
	s.roomLocksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.roomLocksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.roomLocks, code)
		}
		s.roomLocksMu.Unlock()
	}
}

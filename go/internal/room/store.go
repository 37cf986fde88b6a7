package room

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultRoundSeconds is the length of a round when none is configured
	DefaultRoundSeconds = 60

	maxCodeAttempts = 64
)

// Config holds the round settings the store applies to new and reset rooms
type Config struct {
	RoundSeconds int
	Texts        []string
}

// Option customizes a Store
type Option func(*Store)

// WithClock sets the clock used for finish timestamps and round start times
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithCodeGenerator replaces the room code source
func WithCodeGenerator(gen CodeGenerator) Option {
	return func(s *Store) { s.codes = gen }
}

// WithTextPicker replaces the random text selection, n is the corpus size
func WithTextPicker(pick func(n int) int) Option {
	return func(s *Store) { s.pick = pick }
}

// PlayerUpdate carries the fields to merge into a player. Nil fields are left alone.
type PlayerUpdate struct {
	Username     *string
	Avatar       *string
	Progress     *float64
	WPM          *float64
	IsReady      *bool
	FinishedTime *int64
}

// Store is the in-memory authority over live rooms.
//
// Every method is atomic under a single mutex and returns deep copies. Callers
// never hold a reference to live room state.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*models.Room

	roundSeconds int
	texts        []string
	clock        clockwork.Clock
	codes        CodeGenerator
	pick         func(n int) int
}

// NewStore creates an empty Store
func NewStore(cfg Config, opts ...Option) *Store {
	s := &Store{
		rooms:        make(map[string]*models.Room),
		roundSeconds: cfg.RoundSeconds,
		texts:        cfg.Texts,
		clock:        clockwork.NewRealClock(),
		codes:        RandomCode,
		pick:         rand.Intn,
	}
	if s.roundSeconds <= 0 {
		s.roundSeconds = DefaultRoundSeconds
	}
	if len(s.texts) == 0 {
		s.texts = DefaultTexts
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RoundSeconds returns the configured round length
func (s *Store) RoundSeconds() int {
	return s.roundSeconds
}

// Create opens a new room with host as its only player
func (s *Store) Create(host models.Player) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.uniqueCodeLocked()
	if err != nil {
		return nil, err
	}

	host.ResetRoundState()
	r := &models.Room{
		ID:      code,
		Players: []models.Player{host.Clone()},
		Status:  models.RoomStatusWaiting,
		Text:    s.randomText(),
		Timer:   s.roundSeconds,
	}
	s.rooms[code] = r

	log.Info().Str("room_code", code).Str("player_id", host.ID).Msg("room created")
	return r.Clone(), nil
}

// Join appends player to the room. Only waiting rooms accept players.
func (s *Store) Join(code string, player models.Player) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if r.Status != models.RoomStatusWaiting {
		return nil, ErrRoomNotJoinable
	}
	if r.FindPlayer(player.ID) >= 0 {
		return r.Clone(), nil
	}

	player.ResetRoundState()
	r.Players = append(r.Players, player.Clone())

	log.Info().Str("room_code", code).Str("player_id", player.ID).Int("players", len(r.Players)).Msg("player joined")
	return r.Clone(), nil
}

// Leave removes playerID from the room. It returns false when the room is
// absent or was deleted because its last player left.
func (s *Store) Leave(code, playerID string) (*models.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return nil, false
	}
	if idx := r.FindPlayer(playerID); idx >= 0 {
		r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
		log.Info().Str("room_code", code).Str("player_id", playerID).Int("players", len(r.Players)).Msg("player left")
	}
	if len(r.Players) == 0 {
		delete(s.rooms, code)
		log.Info().Str("room_code", code).Msg("room deleted")
		return nil, false
	}
	return r.Clone(), true
}

// Get returns a snapshot of the room
func (s *Store) Get(code string) (*models.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[code]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// UpdatePlayer merges upd into the player. The room snapshot is returned
// whenever the room exists, even if the player is absent.
func (s *Store) UpdatePlayer(code, playerID string, upd PlayerUpdate) (*models.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return nil, false
	}
	idx := r.FindPlayer(playerID)
	if idx < 0 {
		return r.Clone(), true
	}

	p := &r.Players[idx]
	if upd.Username != nil {
		p.Username = *upd.Username
	}
	if upd.Avatar != nil {
		p.Avatar = *upd.Avatar
	}
	if upd.Progress != nil {
		p.Progress = clampProgress(*upd.Progress)
	}
	if upd.WPM != nil {
		p.WPM = *upd.WPM
	}
	if upd.IsReady != nil {
		p.IsReady = *upd.IsReady
	}
	if upd.FinishedTime != nil && p.FinishedTime == nil {
		ft := *upd.FinishedTime
		p.FinishedTime = &ft
	}
	return r.Clone(), true
}

// Reset returns the room to waiting with a fresh text and cleared round stats
func (s *Store) Reset(code string) (*models.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return nil, false
	}
	s.resetLocked(r)
	return r.Clone(), true
}

// ResetForRematch resets a finished room once every player has voted ready.
// Any other room is left untouched.
func (s *Store) ResetForRematch(code string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if r.Status != models.RoomStatusFinished {
		return nil, ErrRoundNotFinished
	}
	if !r.AllReady() {
		return nil, ErrNotAllReady
	}
	s.resetLocked(r)
	return r.Clone(), nil
}

// ReportProgress records a client progress report during a round.
//
// Progress is clamped to [0,100] and never moves backwards. The first report
// reaching 100 stamps finishedTime; after that the player's stats are final.
func (s *Store) ReportProgress(code, playerID string, progress, wpm float64) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if r.Status != models.RoomStatusPlaying {
		return nil, ErrRoundNotActive
	}
	idx := r.FindPlayer(playerID)
	if idx < 0 {
		return nil, ErrPlayerNotFound
	}

	p := &r.Players[idx]
	if p.Finished() {
		return r.Clone(), nil
	}
	if progress = clampProgress(progress); progress > p.Progress {
		p.Progress = progress
	}
	if wpm >= 0 {
		p.WPM = wpm
	}
	if p.Progress >= 100 {
		now := s.clock.Now().UnixMilli()
		p.FinishedTime = &now
		log.Info().Str("room_code", code).Str("player_id", playerID).Float64("wpm", p.WPM).Msg("player finished")
	}
	return r.Clone(), nil
}

// MarkReady records a rematch vote and reports whether every player is ready
func (s *Store) MarkReady(code, playerID string) (*models.Room, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return nil, false, ErrRoomNotFound
	}
	if r.Status != models.RoomStatusFinished {
		return nil, false, ErrRoundNotFinished
	}
	idx := r.FindPlayer(playerID)
	if idx < 0 {
		return nil, false, ErrPlayerNotFound
	}
	r.Players[idx].IsReady = true
	return r.Clone(), r.AllReady(), nil
}

// BeginCountdown moves the room into countdown. A finished room is reset
// first and a room already counting down stays there.
func (s *Store) BeginCountdown(code string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	switch r.Status {
	case models.RoomStatusPlaying:
		return nil, ErrRoundInProgress
	case models.RoomStatusFinished:
		s.resetLocked(r)
	}
	r.Status = models.RoomStatusCountdown
	return r.Clone(), nil
}

// BeginRound moves a counting-down room into play and stamps its start time
func (s *Store) BeginRound(code string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if r.Status != models.RoomStatusCountdown {
		return nil, ErrRoundNotActive
	}
	now := s.clock.Now().UnixMilli()
	r.Status = models.RoomStatusPlaying
	r.StartTime = &now
	r.Timer = s.roundSeconds
	r.Round++

	log.Info().Str("room_code", code).Int("round", r.Round).Int("players", len(r.Players)).Msg("round started")
	return r.Clone(), nil
}

// TickRound advances the round clock by one second.
//
// ok is false when the room is gone or no longer playing. ended is true exactly
// once per round, on the tick that moves the room to finished.
func (s *Store) TickRound(code string) (snapshot *models.Room, ended bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.rooms[code]
	if !exists || r.Status != models.RoomStatusPlaying {
		return nil, false, false
	}
	if r.Timer > 0 {
		r.Timer--
	}
	if r.Timer == 0 || r.AllFinished() {
		r.Status = models.RoomStatusFinished
		ended = true
		log.Info().Str("room_code", code).Int("round", r.Round).Int("timer", r.Timer).Msg("round finished")
	}
	return r.Clone(), ended, true
}

// List returns summaries of every live room ordered by code
func (s *Store) List() []models.RoomSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.RoomSummary, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of live rooms
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

func (s *Store) resetLocked(r *models.Room) {
	r.Status = models.RoomStatusWaiting
	r.Text = s.randomText()
	r.StartTime = nil
	r.Timer = s.roundSeconds
	for i := range r.Players {
		r.Players[i].ResetRoundState()
	}
}

func (s *Store) uniqueCodeLocked() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := s.codes()
		if _, taken := s.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func (s *Store) randomText() string {
	return s.texts[s.pick(len(s.texts))]
}

func clampProgress(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

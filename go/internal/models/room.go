package models

// RoomStatus defines the phase a room is in.
type RoomStatus string

const (
	RoomStatusWaiting   RoomStatus = "waiting"
	RoomStatusCountdown RoomStatus = "countdown"
	RoomStatusPlaying   RoomStatus = "playing"
	RoomStatusFinished  RoomStatus = "finished"
)

// Room represents a race session.
//
// Players keeps arrival order and Players[0] is the host. A room never exists
// with an empty player list.
type Room struct {
	ID        string     `json:"id"`
	Players   []Player   `json:"players"`
	Status    RoomStatus `json:"status"`
	Text      string     `json:"text"`
	StartTime *int64     `json:"startTime,omitempty"` // unix millis, set while playing
	Timer     int        `json:"timer"`               // seconds remaining in the round

	// Round counts rounds started in this room. Not part of the wire shape.
	Round int `json:"-"`
}

// Host returns the player at index 0, or nil for an empty room.
func (r *Room) Host() *Player {
	if len(r.Players) == 0 {
		return nil
	}
	return &r.Players[0]
}

// IsHost reports whether playerID is the room host.
func (r *Room) IsHost(playerID string) bool {
	host := r.Host()
	return host != nil && host.ID == playerID
}

// FindPlayer returns the index of playerID in Players or -1.
func (r *Room) FindPlayer(playerID string) int {
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			return i
		}
	}
	return -1
}

// AllFinished reports whether every player has a finish time.
func (r *Room) AllFinished() bool {
	if len(r.Players) == 0 {
		return false
	}
	for i := range r.Players {
		if !r.Players[i].Finished() {
			return false
		}
	}
	return true
}

// AllReady reports whether every player voted for a rematch.
func (r *Room) AllReady() bool {
	if len(r.Players) == 0 {
		return false
	}
	for i := range r.Players {
		if !r.Players[i].IsReady {
			return false
		}
	}
	return true
}

// Clone returns a deep copy safe to hand out of the store.
func (r *Room) Clone() *Room {
	c := *r
	c.Players = make([]Player, len(r.Players))
	for i := range r.Players {
		c.Players[i] = r.Players[i].Clone()
	}
	if r.StartTime != nil {
		st := *r.StartTime
		c.StartTime = &st
	}
	return &c
}

// RoomSummary is the lobby listing view of a room
type RoomSummary struct {
	ID      string     `json:"id"`
	Host    string     `json:"host"`
	Players int        `json:"players"`
	Status  RoomStatus `json:"status"`
}

// Summary returns the listing view of the room.
func (r *Room) Summary() RoomSummary {
	s := RoomSummary{
		ID:      r.ID,
		Players: len(r.Players),
		Status:  r.Status,
	}
	if host := r.Host(); host != nil {
		s.Host = host.Username
	}
	return s
}

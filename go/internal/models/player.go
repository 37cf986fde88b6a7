package models

// Player represents a racer occupying a room for the lifetime of one connection
type Player struct {
	ID           string  `json:"id"` // same as the owning connection id
	Username     string  `json:"username"`
	Avatar       string  `json:"avatar"`
	Progress     float64 `json:"progress"` // 0-100
	WPM          float64 `json:"wpm"`
	IsReady      bool    `json:"isReady"`
	FinishedTime *int64  `json:"finishedTime,omitempty"` // unix millis
}

// NewPlayer returns a player with zeroed race stats
func NewPlayer(id, username, avatar string) Player {
	return Player{
		ID:       id,
		Username: username,
		Avatar:   avatar,
	}
}

// Finished reports whether the player completed the current round
func (p *Player) Finished() bool {
	return p.FinishedTime != nil
}

// ResetRoundState clears everything a round accumulates
func (p *Player) ResetRoundState() {
	p.Progress = 0
	p.WPM = 0
	p.FinishedTime = nil
	p.IsReady = false
}

// Clone returns a deep copy of the player
func (p Player) Clone() Player {
	if p.FinishedTime != nil {
		ft := *p.FinishedTime
		p.FinishedTime = &ft
	}
	return p
}

package models

import (
	"sort"
	"time"
)

// Placement is one player's standing at the end of a round.
type Placement struct {
	Place        int     `json:"place"`
	PlayerID     string  `json:"player_id"`
	Username     string  `json:"username"`
	Avatar       string  `json:"avatar"`
	Progress     float64 `json:"progress"`
	WPM          float64 `json:"wpm"`
	FinishedTime *int64  `json:"finished_time,omitempty"`
}

// RoundResult is the recorded outcome of a finished round.
type RoundResult struct {
	RoomCode   string      `json:"room_code"`
	Round      int         `json:"round"`
	Text       string      `json:"text"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Placements []Placement `json:"placements"`
}

// Standings ranks players: finishers by finish time, then the rest by progress.
func Standings(players []Player) []Placement {
	ranked := make([]Player, len(players))
	copy(ranked, players)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		switch {
		case a.Finished() && b.Finished():
			return *a.FinishedTime < *b.FinishedTime
		case a.Finished() != b.Finished():
			return a.Finished()
		default:
			return a.Progress > b.Progress
		}
	})

	placements := make([]Placement, len(ranked))
	for i, p := range ranked {
		p = p.Clone()
		placements[i] = Placement{
			Place:        i + 1,
			PlayerID:     p.ID,
			Username:     p.Username,
			Avatar:       p.Avatar,
			Progress:     p.Progress,
			WPM:          p.WPM,
			FinishedTime: p.FinishedTime,
		}
	}
	return placements
}

package gateway

import "github.com/kubby-exe/SWIFT-ROYALE/go/internal/models"

// Notifier sends scheduler phase changes to room broadcast groups
type Notifier struct {
	sender Sender
}

func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

func (n *Notifier) RoomUpdated(r *models.Room) {
	n.sender.BroadcastToRoom(r.ID, EventRoomUpdated, r)
}

func (n *Notifier) Countdown(code string, count int) {
	n.sender.BroadcastToRoom(code, EventCountdown, count)
}

func (n *Notifier) GameStarted(r *models.Room) {
	n.sender.BroadcastToRoom(r.ID, EventGameStarted, r)
}

func (n *Notifier) TimerUpdate(code string, seconds int) {
	n.sender.BroadcastToRoom(code, EventTimerUpdate, seconds)
}

func (n *Notifier) GameOver(r *models.Room) {
	n.sender.BroadcastToRoom(r.ID, EventGameOver, r)
}

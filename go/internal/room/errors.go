package room

import "errors"

var (
	// ErrRoomNotFound is returned when no live room has the given code
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomNotJoinable is returned when a room already left the waiting phase
	ErrRoomNotJoinable = errors.New("room is not accepting players")
	// ErrPlayerNotFound is returned when the player is not a member of the room
	ErrPlayerNotFound = errors.New("player not in room")
	// ErrRoundInProgress is returned when a countdown is requested mid-round
	ErrRoundInProgress = errors.New("round already in progress")
	// ErrRoundNotActive is returned for round operations outside the playing phase
	ErrRoundNotActive = errors.New("round not active")
	// ErrRoundNotFinished is returned for ready votes outside the results phase
	ErrRoundNotFinished = errors.New("round not finished")
	// ErrNotAllReady is returned when a rematch is requested before every player voted
	ErrNotAllReady = errors.New("not every player is ready")
	// ErrCodeSpaceExhausted is returned when no free room code could be generated
	ErrCodeSpaceExhausted = errors.New("could not allocate a room code")
)

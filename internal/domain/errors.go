package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room code references no live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrDuplicateName is returned when a join collides with an existing
	// player name (case-insensitive, trimmed).
	ErrDuplicateName = errors.New("name already taken in this room")
	// ErrInvalidTransition is returned when a lifecycle operation is
	// attempted from the wrong state. The room state is left unchanged.
	ErrInvalidTransition = errors.New("invalid room status transition")
	// ErrPlayerNotFound is returned when a player id is unknown to the room.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrGroupRequired is returned when group progress is submitted
	// without a group id.
	ErrGroupRequired = errors.New("group id required for group progress")
	// ErrInvalidProgress is returned for malformed progress values:
	// negative counts or scores, counts beyond the puzzle total, or
	// scores that are not a multiple of 100.
	ErrInvalidProgress = errors.New("invalid progress values")
	// ErrGameNotFound indicates the game content could not be loaded.
	ErrGameNotFound = errors.New("game not found")
)

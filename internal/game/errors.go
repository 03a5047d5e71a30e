package game

import "errors"

// Validation errors surfaced by the join path and the registry. They are
// reported to the originating connection only; no room state changes.
var (
	ErrRoomNotFound  = errors.New("game not found")
	ErrGameStarted   = errors.New("game already started")
	ErrRoomFull      = errors.New("game is full")
	ErrMissingFields = errors.New("missing required fields")
)

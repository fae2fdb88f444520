package labyrinth

import "errors"

// Command rejections. Each one is turned into a "message" notice for the
// connection that issued the command; none of them end a session.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionFull         = errors.New("session already has a helper")
	ErrOutOfBounds         = errors.New("position outside the maze")
	ErrWrongRole           = errors.New("command not allowed for this role")
	ErrNoActivePuzzle      = errors.New("no active puzzle")
	ErrPuzzleAlreadyActive = errors.New("a puzzle is already active")
	ErrUnknownBranch       = errors.New("unknown branch option")
	ErrUnregisteredDoor    = errors.New("riddle door without a registered riddle")

	ErrWall              = errors.New("wall in the way")
	ErrWaitingForHelper  = errors.New("helper has not joined yet")
	ErrAwaitingBranch    = errors.New("a branch must be chosen first")
	ErrNoDecisionPending = errors.New("no branch decision pending")
	ErrUnknownDirection  = errors.New("unknown direction")
	ErrNotInSession      = errors.New("connection is not in a session")
	ErrAlreadyInSession  = errors.New("connection is already in a session")
	ErrUnknownCommand    = errors.New("unknown command")
)

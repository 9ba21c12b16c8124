package apperror

import "errors"

var (
	ErrGameIsNotStarted   = errors.New("game is not started")
	ErrGameFinished       = errors.New("game is already finished")
	ErrGameAlreadyStarted = errors.New("game has already started")
	ErrNotYourTurn        = errors.New("it's not your turn")
	ErrInvalidCell        = errors.New("invalid cell index")
	ErrCellOccupied       = errors.New("cell is already occupied")
	ErrIdentityMismatch   = errors.New("connection is not bound to that mark")
	ErrNotHost            = errors.New("only the host can start the game")
	ErrNotEnoughPlayers   = errors.New("not enough players")
	ErrRoomFull           = errors.New("room is already full")
	ErrRoomNotFound       = errors.New("room not found")
	ErrInvalidName        = errors.New("name must be between 2 and 20 characters")
	ErrStoreUnavailable   = errors.New("room store is unavailable")
)

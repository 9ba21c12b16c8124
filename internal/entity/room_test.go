package entity

import (
	"testing"

	"github.com/rocketscienceinc/gridroom-backend/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func playingRoom(fadingMoves bool) *Room {
	room := NewRoom("ABC123", fadingMoves)
	room.Players[MarkX] = &PlayerBinding{ConnectionID: "conn-x", Name: "Ann"}
	room.Players[MarkO] = &PlayerBinding{ConnectionID: "conn-o", Name: "Bob"}
	room.Status = StatusPlaying

	return room
}

func connOf(room *Room, mark string) string {
	return room.Players[mark].ConnectionID
}

func TestValidPlayerName(t *testing.T) {
	t.Run("Accepts names between 2 and 20 characters", func(t *testing.T) {
		assert.True(t, ValidPlayerName("Jo"))
		assert.True(t, ValidPlayerName("Ann"))
		assert.True(t, ValidPlayerName("ExactlyTwentyChars20"))
	})

	t.Run("Rejects names outside the bounds", func(t *testing.T) {
		assert.False(t, ValidPlayerName(""))
		assert.False(t, ValidPlayerName("A"))
		assert.False(t, ValidPlayerName("ThisNameIsLongerThanTwenty"))
	})
}

func TestRoom_AssignOrRecognize(t *testing.T) {
	t.Run("First connection becomes the host mark", func(t *testing.T) {
		// Given: an empty room
		room := NewRoom("ABC123", false)

		// When: the first connection joins
		mark, created, err := room.AssignOrRecognize("conn-1", "Ann")

		// Then: it is bound to X, the host mark
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, MarkX, mark)
		assert.Equal(t, "conn-1", connOf(room, MarkX))
	})

	t.Run("Second distinct connection becomes the guest mark", func(t *testing.T) {
		// Given: a room with a bound host
		room := NewRoom("ABC123", false)
		_, _, err := room.AssignOrRecognize("conn-1", "Ann")
		require.NoError(t, err)

		// When: a second connection with a different name joins
		mark, created, err := room.AssignOrRecognize("conn-2", "Bob")

		// Then: it is bound to O and the room is complete
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, MarkO, mark)
		assert.True(t, room.BothBound())
	})

	t.Run("Returning name is recognized with a fresh connection id", func(t *testing.T) {
		// Given: a full room where Bob's connection has gone away
		room := playingRoom(false)
		room.Players[MarkO].ConnectionID = ""

		// When: Bob joins again from a new connection
		mark, created, err := room.AssignOrRecognize("conn-new", "Bob")

		// Then: he keeps O and only the connection id is refreshed
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, MarkO, mark)
		assert.Equal(t, "conn-new", connOf(room, MarkO))
	})

	t.Run("Returning connection id is recognized even under a stale name lookup", func(t *testing.T) {
		// Given: a room with a bound host
		room := NewRoom("ABC123", false)
		_, _, err := room.AssignOrRecognize("conn-1", "Ann")
		require.NoError(t, err)

		// When: the same connection joins again
		mark, created, err := room.AssignOrRecognize("conn-1", "Ann")

		// Then: it is still the host, not a second binding
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, MarkX, mark)
	})

	t.Run("Third distinct connection is rejected", func(t *testing.T) {
		// Given: a full room
		room := playingRoom(false)

		// When: a third name tries to join
		_, _, err := room.AssignOrRecognize("conn-3", "Eve")

		// Then: the join is refused with ErrRoomFull
		assert.ErrorIs(t, err, apperror.ErrRoomFull)
	})

	t.Run("Reserving a seat twice with the same name is a no-op", func(t *testing.T) {
		// Given: a room created over HTTP with the host seat reserved
		room := NewRoom("ABC123", false)
		mark, err := room.Reserve("Ann")
		require.NoError(t, err)
		require.Equal(t, MarkX, mark)

		// When: the same name reserves again
		again, err := room.Reserve("Ann")

		// Then: the seat is unchanged and still unbound
		require.NoError(t, err)
		assert.Equal(t, MarkX, again)
		assert.Empty(t, connOf(room, MarkX))
	})
}

func TestRoom_MakeTurn_Rejections(t *testing.T) {
	t.Run("Rejects a move before the game started", func(t *testing.T) {
		// Given: a waiting room
		room := NewRoom("ABC123", false)
		room.Players[MarkX] = &PlayerBinding{ConnectionID: "conn-x", Name: "Ann"}
		before := room.Clone()

		// When: the host tries to move
		err := room.MakeTurn(MarkX, "conn-x", 0)

		// Then: the move is rejected and the room is untouched
		assert.ErrorIs(t, err, apperror.ErrGameIsNotStarted)
		assert.Equal(t, before, room)
	})

	t.Run("Rejects a move after the game ended", func(t *testing.T) {
		// Given: an ended room
		room := playingRoom(false)
		room.Status = StatusEnded
		before := room.Clone()

		// When: a move arrives
		err := room.MakeTurn(MarkX, "conn-x", 0)

		// Then: it is rejected with ErrGameFinished
		assert.ErrorIs(t, err, apperror.ErrGameFinished)
		assert.Equal(t, before, room)
	})

	t.Run("Rejects a move out of turn", func(t *testing.T) {
		// Given: a playing room where it is X's turn
		room := playingRoom(false)
		before := room.Clone()

		// When: O moves anyway
		err := room.MakeTurn(MarkO, "conn-o", 0)

		// Then: it is rejected with ErrNotYourTurn
		assert.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.Equal(t, before, room)
	})

	t.Run("Rejects an out of range cell", func(t *testing.T) {
		// Given: a playing room
		room := playingRoom(false)
		before := room.Clone()

		// When: X plays outside the board
		err := room.MakeTurn(MarkX, "conn-x", 9)

		// Then: it is rejected with ErrInvalidCell
		assert.ErrorIs(t, err, apperror.ErrInvalidCell)
		assert.Equal(t, before, room)

		err = room.MakeTurn(MarkX, "conn-x", -1)
		assert.ErrorIs(t, err, apperror.ErrInvalidCell)
		assert.Equal(t, before, room)
	})

	t.Run("Rejects a move on an occupied cell", func(t *testing.T) {
		// Given: a playing room with cell 4 taken
		room := playingRoom(false)
		require.NoError(t, room.MakeTurn(MarkX, "conn-x", 4))
		before := room.Clone()

		// When: O plays the same cell
		err := room.MakeTurn(MarkO, "conn-o", 4)

		// Then: it is rejected with ErrCellOccupied
		assert.ErrorIs(t, err, apperror.ErrCellOccupied)
		assert.Equal(t, before, room)
	})

	t.Run("Rejects a mark not bound to the sending connection", func(t *testing.T) {
		// Given: a playing room
		room := playingRoom(false)
		before := room.Clone()

		// When: O's connection claims to be X
		err := room.MakeTurn(MarkX, "conn-o", 0)

		// Then: it is rejected with ErrIdentityMismatch
		assert.ErrorIs(t, err, apperror.ErrIdentityMismatch)
		assert.Equal(t, before, room)
	})
}

func TestRoom_MakeTurn(t *testing.T) {
	t.Run("Applies a valid move and passes the turn", func(t *testing.T) {
		// Given: a playing room
		room := playingRoom(false)

		// When: X plays the center
		err := room.MakeTurn(MarkX, "conn-x", 4)

		// Then: the mark is placed and it is O's turn
		require.NoError(t, err)
		assert.Equal(t, MarkX, room.Board[4])
		assert.Equal(t, MarkO, room.Turn)
		assert.Equal(t, StatusPlaying, room.Status)
	})

	t.Run("Turn alternates strictly while the game is playing", func(t *testing.T) {
		// Given: a playing room
		room := playingRoom(false)

		// When: a sequence of valid moves is applied
		for i, cell := range []int{0, 1, 3, 4, 7} {
			mark := MarkX
			if i%2 == 1 {
				mark = MarkO
			}

			require.Equal(t, mark, room.Turn)
			require.NoError(t, room.MakeTurn(mark, connOf(room, mark), cell))
		}

		// Then: the next turn belongs to O
		assert.Equal(t, MarkO, room.Turn)
	})

	t.Run("Detects a win and ends the game", func(t *testing.T) {
		// Given: a playing room where X threatens the top row
		room := playingRoom(false)
		require.NoError(t, room.MakeTurn(MarkX, "conn-x", 0))
		require.NoError(t, room.MakeTurn(MarkO, "conn-o", 3))
		require.NoError(t, room.MakeTurn(MarkX, "conn-x", 1))
		require.NoError(t, room.MakeTurn(MarkO, "conn-o", 4))

		// When: X completes the row
		require.NoError(t, room.MakeTurn(MarkX, "conn-x", 2))

		// Then: the game is ended with X recorded as the winner
		assert.Equal(t, StatusEnded, room.Status)
		assert.Equal(t, MarkX, room.Winner)
		assert.Empty(t, room.Turn)
	})

	t.Run("Detects a draw on a full board with no line", func(t *testing.T) {
		// Given: a playing room
		room := playingRoom(false)

		// When: nine moves fill the board without a three-in-a-row
		for i, cell := range []int{0, 1, 2, 4, 3, 5, 7, 6, 8} {
			mark := MarkX
			if i%2 == 1 {
				mark = MarkO
			}

			require.NoError(t, room.MakeTurn(mark, connOf(room, mark), cell))
		}

		// Then: the game is ended with no winner
		assert.Equal(t, StatusEnded, room.Status)
		assert.Empty(t, room.Winner)
	})

	t.Run("Rejecting any precondition keeps the board length at nine", func(t *testing.T) {
		room := playingRoom(false)
		_ = room.MakeTurn(MarkO, "conn-o", 0)

		assert.Len(t, room.Board, BoardSize)
		for _, cell := range room.Board {
			assert.Contains(t, []string{EmptyCell, MarkX, MarkO}, cell)
		}
	})
}

func TestRoom_FadingMoves(t *testing.T) {
	// legal sequence with no three-in-a-row even as old marks fade
	moves := []int{0, 4, 1, 2, 6, 3, 5, 8, 7, 0}

	t.Run("Oldest mark fades once the window is exceeded", func(t *testing.T) {
		// Given: a playing room with the fading variant enabled
		room := playingRoom(true)

		// When: an eighth move is made
		for i, cell := range moves[:8] {
			mark := MarkX
			if i%2 == 1 {
				mark = MarkO
			}

			require.NoError(t, room.MakeTurn(mark, connOf(room, mark), cell))
		}

		// Then: the first move's cell is empty again and seven marks remain
		assert.Equal(t, EmptyCell, room.Board[0])
		assert.Len(t, room.Moves, MoveWindow)

		marks := 0
		for _, cell := range room.Board {
			if cell != EmptyCell {
				marks++
			}
		}
		assert.Equal(t, MoveWindow, marks)
	})

	t.Run("A faded cell can be played again", func(t *testing.T) {
		// Given: a fading room after nine moves, where cell 0 has faded
		room := playingRoom(true)
		for i, cell := range moves[:9] {
			mark := MarkX
			if i%2 == 1 {
				mark = MarkO
			}

			require.NoError(t, room.MakeTurn(mark, connOf(room, mark), cell))
		}

		// When: O replays the faded cell 0
		require.NoError(t, room.MakeTurn(MarkO, "conn-o", 0))

		// Then: the board still holds exactly the window of marks
		assert.Equal(t, MarkO, room.Board[0])

		marks := 0
		for _, cell := range room.Board {
			if cell != EmptyCell {
				marks++
			}
		}
		assert.Equal(t, MoveWindow, marks)
		assert.Equal(t, StatusPlaying, room.Status)
	})

	t.Run("Plain rooms never fade marks", func(t *testing.T) {
		// Given: a playing room without the variant
		room := playingRoom(false)

		// When: eight moves are made
		for i, cell := range moves[:8] {
			mark := MarkX
			if i%2 == 1 {
				mark = MarkO
			}

			require.NoError(t, room.MakeTurn(mark, connOf(room, mark), cell))
		}

		// Then: all eight marks are still on the board
		assert.Equal(t, MarkX, room.Board[0])
		assert.Len(t, room.Moves, 8)
	})
}

func TestRoom_Start(t *testing.T) {
	t.Run("Starts a waiting room with both seats taken", func(t *testing.T) {
		// Given: a waiting room with two bindings and a dirty board
		room := NewRoom("ABC123", false)
		room.Players[MarkX] = &PlayerBinding{ConnectionID: "conn-x", Name: "Ann"}
		room.Players[MarkO] = &PlayerBinding{ConnectionID: "conn-o", Name: "Bob"}
		room.Board[3] = MarkO
		room.Winner = MarkO

		// When: the game starts
		err := room.Start()

		// Then: the board is reset and X moves first
		require.NoError(t, err)
		assert.Equal(t, StatusPlaying, room.Status)
		assert.Equal(t, MarkX, room.Turn)
		assert.Empty(t, room.Winner)
		for _, cell := range room.Board {
			assert.Equal(t, EmptyCell, cell)
		}
	})

	t.Run("Refuses to start with a single player", func(t *testing.T) {
		// Given: a waiting room with only the host
		room := NewRoom("ABC123", false)
		room.Players[MarkX] = &PlayerBinding{ConnectionID: "conn-x", Name: "Ann"}

		// When: the game is started
		err := room.Start()

		// Then: it is refused with ErrNotEnoughPlayers
		assert.ErrorIs(t, err, apperror.ErrNotEnoughPlayers)
		assert.Equal(t, StatusWaiting, room.Status)
	})

	t.Run("Refuses to start twice", func(t *testing.T) {
		// Given: a playing room
		room := playingRoom(false)

		// When: start arrives again
		err := room.Start()

		// Then: it is refused with ErrGameAlreadyStarted
		assert.ErrorIs(t, err, apperror.ErrGameAlreadyStarted)
	})

	t.Run("Refuses to start an ended room", func(t *testing.T) {
		// Given: an ended room
		room := playingRoom(false)
		room.Status = StatusEnded

		// When: start arrives
		err := room.Start()

		// Then: it is refused with ErrGameFinished
		assert.ErrorIs(t, err, apperror.ErrGameFinished)
	})
}

func TestRoom_Snapshot(t *testing.T) {
	t.Run("Snapshot strips connection ids and shares no state", func(t *testing.T) {
		// Given: a playing room
		room := playingRoom(false)

		// When: taking a snapshot and mutating it
		snapshot := room.Snapshot()
		snapshot.Board[0] = MarkO
		snapshot.Players[MarkX].Name = "changed"

		// Then: connection ids are hidden and the room is unaffected
		assert.Empty(t, snapshot.Players[MarkX].ConnectionID)
		assert.Empty(t, snapshot.Players[MarkO].ConnectionID)
		assert.Equal(t, EmptyCell, room.Board[0])
		assert.Equal(t, "Ann", room.Players[MarkX].Name)
	})
}

package entity

import (
	"fmt"
	"unicode/utf8"

	"github.com/rocketscienceinc/gridroom-backend/internal/apperror"
)

const (
	StatusWaiting = "waiting"
	StatusPlaying = "playing"
	StatusEnded   = "ended"

	// MarkX is the host mark; the host always joins first and moves first.
	MarkX = "X"
	MarkO = "O"

	EmptyCell = ""

	BoardSize = 9

	// MoveWindow bounds the board in the fading-moves variant: once more
	// marks than this are on the board, the oldest one is removed.
	MoveWindow = 7

	minNameLength = 2
	maxNameLength = 20
)

var WinLines = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// PlayerBinding ties a mark to a player. Name is the stable identity chosen at
// join time; ConnectionID is refreshed on every reconnect and may be empty
// while the player is offline or has only reserved a seat over HTTP.
type PlayerBinding struct {
	ConnectionID string `json:"connection_id,omitempty"`
	Name         string `json:"name"`
}

type Room struct {
	Code        string                    `json:"code"`
	Board       [BoardSize]string         `json:"board"`
	Moves       []int                     `json:"moves,omitempty"`
	Players     map[string]*PlayerBinding `json:"players"`
	Turn        string                    `json:"player_turn,omitempty"`
	Status      string                    `json:"status"`
	Winner      string                    `json:"winner,omitempty"`
	FadingMoves bool                      `json:"fading_moves,omitempty"`
}

func NewRoom(code string, fadingMoves bool) *Room {
	return &Room{
		Code:        code,
		Players:     make(map[string]*PlayerBinding),
		Turn:        MarkX,
		Status:      StatusWaiting,
		FadingMoves: fadingMoves,
	}
}

// ValidPlayerName reports whether a display name is acceptable: 2-20 characters.
func ValidPlayerName(name string) bool {
	length := utf8.RuneCountInString(name)
	return length >= minNameLength && length <= maxNameLength
}

// AssignOrRecognize binds a connection to a mark, or recognizes a returning
// player. Recognition is keyed by name first (connection ids are ephemeral and
// change across reconnects) and the stored connection id is refreshed on every
// match. Returns the mark and whether a new binding was created.
func (that *Room) AssignOrRecognize(connID, name string) (string, bool, error) {
	for _, mark := range []string{MarkX, MarkO} {
		binding, ok := that.Players[mark]
		if !ok {
			continue
		}

		if binding.Name == name || (connID != "" && binding.ConnectionID == connID) {
			if connID != "" {
				binding.ConnectionID = connID
			}
			return mark, false, nil
		}
	}

	if _, ok := that.Players[MarkX]; !ok {
		that.Players[MarkX] = &PlayerBinding{ConnectionID: connID, Name: name}
		return MarkX, true, nil
	}

	if _, ok := that.Players[MarkO]; !ok {
		that.Players[MarkO] = &PlayerBinding{ConnectionID: connID, Name: name}
		return MarkO, true, nil
	}

	return "", false, apperror.ErrRoomFull
}

// Reserve holds a seat for a name without a live connection, used by the HTTP
// surface where the socket join happens later. Reserving the same name twice
// is a no-op.
func (that *Room) Reserve(name string) (string, error) {
	mark, _, err := that.AssignOrRecognize("", name)
	if err != nil {
		return "", err
	}

	return mark, nil
}

// MakeTurn validates and applies one move. Preconditions are checked in a
// fixed order and the room is left untouched when any of them fails.
func (that *Room) MakeTurn(mark, connID string, cell int) error {
	switch that.Status {
	case StatusWaiting:
		return apperror.ErrGameIsNotStarted
	case StatusEnded:
		return apperror.ErrGameFinished
	}

	if that.Turn != mark {
		return apperror.ErrNotYourTurn
	}

	if cell < 0 || cell >= BoardSize {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if that.Board[cell] != EmptyCell {
		return apperror.ErrCellOccupied
	}

	binding, ok := that.Players[mark]
	if !ok || binding.ConnectionID != connID {
		return apperror.ErrIdentityMismatch
	}

	that.Board[cell] = mark
	that.Moves = append(that.Moves, cell)

	if that.FadingMoves && len(that.Moves) > MoveWindow {
		oldest := that.Moves[0]
		that.Moves = that.Moves[1:]
		that.Board[oldest] = EmptyCell
	}

	that.updateOutcome()

	if that.Status == StatusPlaying {
		that.Turn = that.otherMark(mark)
	}

	return nil
}

// Start resets the board and begins play. Only meaningful from the waiting
// state with both seats taken; the caller checks who asked.
func (that *Room) Start() error {
	if that.Status == StatusEnded {
		return apperror.ErrGameFinished
	}

	if that.Status == StatusPlaying {
		return apperror.ErrGameAlreadyStarted
	}

	if !that.BothBound() {
		return apperror.ErrNotEnoughPlayers
	}

	that.Board = [BoardSize]string{}
	that.Moves = nil
	that.Turn = MarkX
	that.Status = StatusPlaying
	that.Winner = ""

	return nil
}

// DetermineResult returns the winning mark, "-" for a draw, or "" while the
// game can still continue.
func (that *Room) DetermineResult() string {
	for _, line := range WinLines {
		a, b, c := that.Board[line[0]], that.Board[line[1]], that.Board[line[2]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	for _, cell := range that.Board {
		if cell == EmptyCell {
			return ""
		}
	}

	return "-"
}

func (that *Room) updateOutcome() {
	switch result := that.DetermineResult(); result {
	case MarkX, MarkO:
		that.Winner = result
		that.Status = StatusEnded
		that.Turn = ""
	case "-":
		// draw: ended with no winner recorded
		that.Status = StatusEnded
		that.Turn = ""
	}
}

func (that *Room) otherMark(mark string) string {
	if mark == MarkX {
		return MarkO
	}
	return MarkX
}

// MarkOfConnection returns the mark bound to a live connection, or "".
func (that *Room) MarkOfConnection(connID string) string {
	if connID == "" {
		return ""
	}

	for mark, binding := range that.Players {
		if binding.ConnectionID == connID {
			return mark
		}
	}

	return ""
}

func (that *Room) IsHostConnection(connID string) bool {
	binding, ok := that.Players[MarkX]
	return ok && connID != "" && binding.ConnectionID == connID
}

func (that *Room) BothBound() bool {
	return that.Players[MarkX] != nil && that.Players[MarkO] != nil
}

// HasLiveConnections reports whether any seat still has a live connection.
func (that *Room) HasLiveConnections() bool {
	for _, binding := range that.Players {
		if binding.ConnectionID != "" {
			return true
		}
	}

	return false
}

func (that *Room) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Room) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *Room) IsEnded() bool {
	return that.Status == StatusEnded
}

// Roster maps marks to display names for player-list events.
func (that *Room) Roster() map[string]string {
	roster := make(map[string]string, len(that.Players))
	for mark, binding := range that.Players {
		roster[mark] = binding.Name
	}

	return roster
}

// Snapshot returns the client-facing view of the room: a deep copy with the
// volatile connection ids stripped.
func (that *Room) Snapshot() *Room {
	snapshot := that.Clone()
	for _, binding := range snapshot.Players {
		binding.ConnectionID = ""
	}

	return snapshot
}

// Clone returns a deep copy, so stores can hand out rooms without sharing
// mutable state with their callers.
func (that *Room) Clone() *Room {
	clone := *that

	clone.Players = make(map[string]*PlayerBinding, len(that.Players))
	for mark, binding := range that.Players {
		boundCopy := *binding
		clone.Players[mark] = &boundCopy
	}

	if that.Moves != nil {
		clone.Moves = make([]int, len(that.Moves))
		copy(clone.Moves, that.Moves)
	}

	return &clone
}

package entity

import (
	"time"
)

const (
	StatusPlaying  = "playing"
	StatusFinished = "finished"

	PlayerX = "X"
	PlayerO = "O"

	WinnerDraw = "draw"
	WinnerNone = "none"

	EmptyCell = ""
)

// AnyBoard marks an open choice of sub-board for the next move.
const AnyBoard = -1

// BoardSize is the number of cells per grid, for both the macro board and each sub-board.
const BoardSize = 9

// WinCombos holds the 8 canonical lines of a 3x3 grid: rows, columns, diagonals.
var WinCombos = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Board is the nested 9x9 grid. Macro[i] carries the winner of sub-board i,
// or EmptyCell while the sub-board is open or drawn.
type Board struct {
	Cells       [BoardSize][BoardSize]string `json:"cells"`
	Macro       [BoardSize]string            `json:"macro"`
	ActiveBoard int                          `json:"activeBoard"`
}

// GameState is the authoritative state of one match. It holds no references,
// so a plain value copy is a full independent copy.
type GameState struct {
	GameID        string    `json:"gameId"`
	Board         Board     `json:"board"`
	CurrentPlayer string    `json:"currentPlayer"`
	Status        string    `json:"status"`
	Winner        string    `json:"winner"`
	CreatedAt     time.Time `json:"createdAt"`
	LastMoveAt    time.Time `json:"lastMoveAt"`
}

type Move struct {
	Player     string `json:"player"`
	BoardIndex int    `json:"boardIndex"`
	CellIndex  int    `json:"cellIndex"`
}

// StoredMove is one entry of the append-only move log.
type StoredMove struct {
	MoveNumber int       `json:"moveNumber"`
	Player     string    `json:"player"`
	BoardIndex int       `json:"boardIndex"`
	CellIndex  int       `json:"cellIndex"`
	Notation   string    `json:"notation"`
	Timestamp  time.Time `json:"timestamp"`
}

func (that *StoredMove) Move() Move {
	return Move{Player: that.Player, BoardIndex: that.BoardIndex, CellIndex: that.CellIndex}
}

func (that *GameState) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *GameState) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *Board) IsAnyBoard() bool {
	return that.ActiveBoard == AnyBoard
}

// Opponent returns the other symbol.
func Opponent(mark string) string {
	if mark == PlayerX {
		return PlayerO
	}
	return PlayerX
}

func IsValidSymbol(mark string) bool {
	return mark == PlayerX || mark == PlayerO
}

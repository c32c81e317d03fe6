package tictactoe

import (
	"fmt"
	"time"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
)

// NewGame - returns an empty game where X moves first on any sub-board.
func NewGame(id string, now time.Time) entity.GameState {
	return entity.GameState{
		GameID: id,
		Board: entity.Board{
			ActiveBoard: entity.AnyBoard,
		},
		CurrentPlayer: entity.PlayerX,
		Status:        entity.StatusPlaying,
		Winner:        entity.WinnerNone,
		CreatedAt:     now,
	}
}

// IsLegal - checks every precondition of a move without touching the state.
func IsLegal(state *entity.GameState, move entity.Move) bool {
	if !state.IsPlaying() {
		return false
	}

	if move.Player != state.CurrentPlayer {
		return false
	}

	if !inRange(move.BoardIndex) || !inRange(move.CellIndex) {
		return false
	}

	if !state.Board.IsAnyBoard() && move.BoardIndex != state.Board.ActiveBoard {
		return false
	}

	if SubBoardCompleted(&state.Board, move.BoardIndex) {
		return false
	}

	return state.Board.Cells[move.BoardIndex][move.CellIndex] == entity.EmptyCell
}

// Apply - returns the state after the move. The caller's state is never modified,
// so it stays valid if the move is rejected downstream.
func Apply(state *entity.GameState, move entity.Move, now time.Time) (entity.GameState, error) {
	if !IsLegal(state, move) {
		return entity.GameState{}, apperror.ErrIllegalMove
	}

	next := *state
	board := &next.Board

	board.Cells[move.BoardIndex][move.CellIndex] = move.Player

	if winner := LineWinner(board.Cells[move.BoardIndex]); winner != entity.EmptyCell {
		board.Macro[move.BoardIndex] = winner
	}

	// the cell just played names the sub-board the opponent is sent to
	if SubBoardCompleted(board, move.CellIndex) {
		board.ActiveBoard = entity.AnyBoard
	} else {
		board.ActiveBoard = move.CellIndex
	}

	next.LastMoveAt = now
	updateGameStatus(&next)

	return next, nil
}

// Replay - rebuilds a game from its stored move log.
func Replay(gameID string, createdAt time.Time, moves []entity.StoredMove) (entity.GameState, error) {
	state := NewGame(gameID, createdAt)

	for i := range moves {
		next, err := Apply(&state, moves[i].Move(), moves[i].Timestamp)
		if err != nil {
			return entity.GameState{}, fmt.Errorf("move %d does not replay: %w", moves[i].MoveNumber, err)
		}
		state = next
	}

	return state, nil
}

// LineWinner - returns the owner of the first complete line, or EmptyCell.
func LineWinner(cells [entity.BoardSize]string) string {
	for _, combo := range entity.WinCombos {
		a, b, c := cells[combo[0]], cells[combo[1]], cells[combo[2]]
		if a != entity.EmptyCell && a == b && b == c {
			return a
		}
	}

	return entity.EmptyCell
}

// IsFull - reports whether no cell of the grid is empty.
func IsFull(cells [entity.BoardSize]string) bool {
	for _, cell := range cells {
		if cell == entity.EmptyCell {
			return false
		}
	}

	return true
}

// SubBoardCompleted - a sub-board is completed when it has been won or is full.
func SubBoardCompleted(board *entity.Board, index int) bool {
	if board.Macro[index] != entity.EmptyCell {
		return true
	}

	return IsFull(board.Cells[index])
}

// updateGameStatus - checks the macro board after a move and passes the turn.
func updateGameStatus(state *entity.GameState) {
	if winner := LineWinner(state.Board.Macro); winner != entity.EmptyCell {
		state.Winner = winner
		state.Status = entity.StatusFinished
		return
	}

	if allCompleted(&state.Board) {
		state.Winner = entity.WinnerDraw
		state.Status = entity.StatusFinished
		return
	}

	state.CurrentPlayer = entity.Opponent(state.CurrentPlayer)
}

func allCompleted(board *entity.Board) bool {
	for i := range entity.BoardSize {
		if !SubBoardCompleted(board, i) {
			return false
		}
	}

	return true
}

func inRange(index int) bool {
	return index >= 0 && index < entity.BoardSize
}

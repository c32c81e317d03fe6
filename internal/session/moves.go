package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/notation"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/tictactoe"
)

const invalidMove = "invalid move"

var errMalformedFrame = errors.New("malformed frame")

// inbound is the closed set of frames a player may send.
type inbound interface {
	inbound()
}

type makeMove struct {
	boardIndex int
	cellIndex  int
	sequence   int64
	hasSeq     bool
	valid      bool
}

type unknownMessage struct {
	frameType string
}

func (makeMove) inbound()       {}
func (unknownMessage) inbound() {}

func decodeInbound(data []byte) (inbound, error) {
	var envelope entity.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errMalformedFrame
	}

	switch envelope.Type {
	case entity.TypeMakeMove:
		return decodeMakeMove(envelope.Payload), nil
	default:
		return unknownMessage{frameType: envelope.Type}, nil
	}
}

// decodeMakeMove - never fails; a structurally invalid payload yields valid == false.
func decodeMakeMove(raw json.RawMessage) makeMove {
	var payload entity.MakeMovePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return makeMove{}
	}

	boardIndex, ok := parseInteger(payload.BoardIndex)
	if !ok || boardIndex < 0 || boardIndex >= entity.BoardSize {
		return makeMove{}
	}

	cellIndex, ok := parseInteger(payload.CellIndex)
	if !ok || cellIndex < 0 || cellIndex >= entity.BoardSize {
		return makeMove{}
	}

	move := makeMove{boardIndex: int(boardIndex), cellIndex: int(cellIndex), valid: true}

	if len(payload.SequenceNumber) > 0 && !bytes.Equal(payload.SequenceNumber, []byte("null")) {
		sequence, ok := parseInteger(payload.SequenceNumber)
		if !ok || sequence < 0 {
			return makeMove{}
		}

		move.sequence = sequence
		move.hasSeq = true
	}

	return move
}

// parseInteger - accepts JSON integers only: no strings, fractions or exponents.
func parseInteger(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' || bytes.ContainsAny(raw, ".eE") {
		return 0, false
	}

	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return 0, false
	}

	value, err := number.Int64()
	if err != nil {
		return 0, false
	}

	return value, true
}

func (that *Session) handleMakeMove(ctx context.Context, conn *connection, msg makeMove) {
	log := that.logger.With("method", "handleMakeMove", "playerID", conn.playerID)
	now := that.clock.Now()

	if ok, retryAfter := that.limiter.Allow(conn.playerID, now); !ok {
		log.Warn("move rate limited")
		that.sendError(conn, "too many requests", retryAfter)
		return
	}

	if !msg.valid {
		log.Info("move rejected", "reason", "malformed payload")
		that.rejectMove(conn)
		return
	}

	move := entity.Move{Player: conn.symbol, BoardIndex: msg.boardIndex, CellIndex: msg.cellIndex}

	if reason := that.rejectReason(conn, msg, move); reason != "" {
		log.Info("move rejected", "reason", reason, "board", move.BoardIndex, "cell", move.CellIndex)
		that.rejectMove(conn)
		return
	}

	next, err := tictactoe.Apply(&that.state, move, now)
	if err != nil {
		log.Info("move rejected", "reason", "illegal", "board", move.BoardIndex, "cell", move.CellIndex)
		that.rejectMove(conn)
		return
	}

	code, err := notation.Encode(move.BoardIndex, move.CellIndex)
	if err != nil {
		log.Error("failed to encode notation", "error", err)
	}

	stored := entity.StoredMove{
		MoveNumber: len(that.moves) + 1,
		Player:     move.Player,
		BoardIndex: move.BoardIndex,
		CellIndex:  move.CellIndex,
		Notation:   code,
		Timestamp:  now,
	}

	storeCtx, cancel := context.WithTimeout(ctx, that.cfg.StorageTimeout)
	defer cancel()

	if err = that.repo.AppendMove(storeCtx, that.gameID, &stored); err != nil {
		log.Error("failed to persist move", "error", err)
		that.sendError(conn, "move could not be saved, please retry", 0)
		return
	}

	// commit only after the move is durable
	that.state = next
	that.moves = append(that.moves, stored)
	if msg.hasSeq {
		that.lastSeq[conn.playerID] = msg.sequence
	}

	log.Info("move applied", "moveNumber", stored.MoveNumber, "notation", stored.Notation)

	that.broadcast(entity.TypeMoveResult, func(*connection) any {
		return entity.MoveResultPayload{
			Valid:         true,
			Board:         that.state.Board,
			CurrentPlayer: that.state.CurrentPlayer,
			Status:        that.state.Status,
			Move:          &stored,
		}
	})

	if that.state.IsFinished() {
		that.finish()
	}
}

// rejectReason - checks run in a fixed order: finished game, sequence number,
// replayed content, turn. The engine checks board legality afterwards.
func (that *Session) rejectReason(conn *connection, msg makeMove, move entity.Move) string {
	if that.state.IsFinished() {
		return "finished"
	}

	if msg.hasSeq {
		if last, ok := that.lastSeq[conn.playerID]; ok && msg.sequence <= last {
			return "stale sequence"
		}
	}

	if that.isReplayedMove(move) {
		return "duplicate"
	}

	if conn.symbol != that.state.CurrentPlayer {
		return "not your turn"
	}

	return ""
}

// isReplayedMove - an identical move among the most recent log entries within the window.
func (that *Session) isReplayedMove(move entity.Move) bool {
	now := that.clock.Now()

	start := max(len(that.moves)-that.cfg.DuplicateDepth, 0)

	for i := len(that.moves) - 1; i >= start; i-- {
		stored := that.moves[i]
		if now.Sub(stored.Timestamp) > that.cfg.DuplicateWindow {
			break
		}

		if stored.Player == move.Player && stored.BoardIndex == move.BoardIndex && stored.CellIndex == move.CellIndex {
			return true
		}
	}

	return false
}

func (that *Session) rejectMove(conn *connection) {
	that.send(conn, entity.TypeMoveResult, entity.MoveResultPayload{
		Valid:         false,
		Board:         that.state.Board,
		CurrentPlayer: that.state.CurrentPlayer,
		Status:        that.state.Status,
		Error:         invalidMove,
	})
}

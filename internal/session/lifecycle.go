package session

import (
	"context"
	"time"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
)

func (that *Session) send(conn *connection, frameType string, payload any) {
	if !conn.connected {
		return
	}

	frame, err := entity.NewEnvelope(frameType, payload)
	if err != nil {
		that.logger.Error("failed to encode frame", "type", frameType, "error", err)
		return
	}

	if err = conn.channel.Send(frame); err != nil {
		that.logger.Warn("failed to send frame", "playerID", conn.playerID, "type", frameType, "error", err)

		_ = conn.channel.Close()
		that.markDisconnected(conn)
	}
}

func (that *Session) broadcast(frameType string, payload func(conn *connection) any) {
	for _, conn := range that.conns {
		if conn.connected {
			that.send(conn, frameType, payload(conn))
		}
	}
}

func (that *Session) sendError(conn *connection, message string, retryAfter time.Duration) {
	seconds := int(retryAfter / time.Second)
	if retryAfter%time.Second != 0 {
		seconds++
	}

	that.send(conn, entity.TypeError, entity.ErrorPayload{Message: message, RetryAfterSeconds: seconds})
}

func (that *Session) broadcastGameState() {
	moveLog := make([]entity.StoredMove, len(that.moves))
	copy(moveLog, that.moves)

	that.broadcast(entity.TypeGameState, func(conn *connection) any {
		return entity.GameStatePayload{
			GameID:            that.gameID,
			YourSymbol:        conn.symbol,
			Board:             that.state.Board,
			CurrentPlayer:     that.state.CurrentPlayer,
			Status:            that.state.Status,
			Winner:            that.state.Winner,
			OpponentConnected: that.opponentConnected(conn.playerID),
			MoveLog:           moveLog,
		}
	})
}

func (that *Session) opponentConnected(playerID string) bool {
	for id, conn := range that.conns {
		if id != playerID && conn.connected {
			return true
		}
	}

	return false
}

func (that *Session) markDisconnected(conn *connection) {
	if !conn.connected {
		return
	}

	conn.connected = false
	conn.lastSeenAt = that.clock.Now()

	that.logger.Info("player disconnected", "playerID", conn.playerID)

	that.broadcastGameState()
	that.armTeardown()
}

// finish - announces the result exactly once and schedules cleanup.
func (that *Session) finish() {
	if that.gameOverSent {
		return
	}

	that.gameOverSent = true

	reason := entity.ReasonLine
	if that.state.Winner == entity.WinnerDraw {
		reason = entity.ReasonDraw
	}

	that.logger.Info("match finished", "winner", that.state.Winner, "reason", reason)

	that.broadcast(entity.TypeGameOver, func(*connection) any {
		return entity.GameOverPayload{
			Winner:     that.state.Winner,
			Reason:     reason,
			FinalBoard: that.state.Board,
		}
	})

	that.armCompletion()
}

func (that *Session) armTeardown() {
	that.cancelTeardown()

	delay := that.cfg.TeardownOneGone
	if that.connectedCount() == 0 {
		delay = that.cfg.TeardownBothGone
	}

	generation := that.teardownGen
	that.teardown = that.clock.AfterFunc(delay, func() {
		that.mailbox.Post(func() {
			if that.reclaimed || generation != that.teardownGen {
				return
			}

			that.onTeardown()
		})
	})
}

// cancelTeardown - bumps the generation so a timer that already fired is ignored.
func (that *Session) cancelTeardown() {
	that.teardownGen++

	if that.teardown != nil {
		that.teardown.Stop()
		that.teardown = nil
	}
}

func (that *Session) onTeardown() {
	that.teardown = nil

	if that.connectedCount() > 0 {
		that.armTeardown()
		return
	}

	if that.state.IsFinished() {
		that.complete()
		return
	}

	that.logger.Info("tearing down idle match")
	that.reclaim()
}

func (that *Session) armCompletion() {
	that.cancelCompletion()

	generation := that.completionGen
	that.completion = that.clock.AfterFunc(that.cfg.CompletionCleanup, func() {
		that.mailbox.Post(func() {
			if that.reclaimed || generation != that.completionGen {
				return
			}

			that.complete()
		})
	})
}

func (that *Session) cancelCompletion() {
	that.completionGen++

	if that.completion != nil {
		that.completion.Stop()
		that.completion = nil
	}
}

// complete - keeps the finished match around for FinishedRetention after its final
// move, then lets the store drop it. Completing a restored match never extends that.
func (that *Session) complete() {
	ctx, cancel := context.WithTimeout(context.Background(), that.cfg.StorageTimeout)
	defer cancel()

	if err := that.repo.Expire(ctx, that.gameID, that.remainingRetention()); err != nil {
		that.logger.Error("failed to set retention", "error", err)
	}

	that.logger.Info("completed match cleaned up")
	that.reclaim()
}

func (that *Session) remainingRetention() time.Duration {
	retention := that.cfg.FinishedRetention
	if n := len(that.moves); n > 0 {
		retention -= that.clock.Now().Sub(that.moves[n-1].Timestamp)
	}

	// redis EXPIRE works in whole seconds
	return max(retention, time.Second)
}

// reclaimIfUnknown - a session for a game that was never admitted is not worth keeping.
func (that *Session) reclaimIfUnknown() {
	if that.admission == nil && len(that.moves) == 0 {
		that.reclaim()
	}
}

// reclaim - drops every volatile bit of the actor and hands it back to the registry.
func (that *Session) reclaim() {
	if that.reclaimed {
		return
	}

	that.reclaimed = true

	that.cancelTeardown()
	that.cancelCompletion()

	for _, conn := range that.conns {
		if conn.connected {
			_ = conn.channel.Close()
		}
	}

	that.conns = make(map[string]*connection)
	that.lastSeq = make(map[string]int64)
	that.limiter.Reset()
	that.moves = nil
	that.state = entity.GameState{}

	that.mailbox.Stop()

	if that.onReclaim != nil {
		that.onReclaim(that.gameID, that)
	}
}

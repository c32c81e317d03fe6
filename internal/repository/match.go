package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
)

type MatchRepository interface {
	Load(ctx context.Context, gameID string) (*entity.MatchSnapshot, error)
	SaveAdmission(ctx context.Context, admission *entity.MatchAdmission) error
	AppendMove(ctx context.Context, gameID string, move *entity.StoredMove) error
	Expire(ctx context.Context, gameID string, ttl time.Duration) error
}

type dbMatch struct {
	client *redis.Client
}

func NewMatchRepository(client *redis.Client) MatchRepository {
	return &dbMatch{
		client: client,
	}
}

func admissionKey(gameID string) string {
	return "match:" + gameID + ":admission"
}

func movesKey(gameID string) string {
	return "match:" + gameID + ":moves"
}

func (that *dbMatch) Load(ctx context.Context, gameID string) (*entity.MatchSnapshot, error) {
	var (
		admissionCmd *redis.StringCmd
		movesCmd     *redis.StringSliceCmd
	)

	_, err := that.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		admissionCmd = pipe.Get(ctx, admissionKey(gameID))
		movesCmd = pipe.LRange(ctx, movesKey(gameID), 0, -1)

		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load match: %w", err)
	}

	snapshot := &entity.MatchSnapshot{}

	response, err := admissionCmd.Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("failed to get admission: %w", err)
	default:
		var admission entity.MatchAdmission
		if err = json.Unmarshal([]byte(response), &admission); err != nil {
			return nil, fmt.Errorf("failed to unmarshal admission: %w", err)
		}

		snapshot.Admission = &admission
	}

	rawMoves, err := movesCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get moves: %w", err)
	}

	for _, raw := range rawMoves {
		var move entity.StoredMove
		if err = json.Unmarshal([]byte(raw), &move); err != nil {
			return nil, fmt.Errorf("failed to unmarshal move: %w", err)
		}

		snapshot.Moves = append(snapshot.Moves, move)
	}

	if snapshot.Admission == nil && len(snapshot.Moves) == 0 {
		return nil, apperror.ErrMatchNotFound
	}

	return snapshot, nil
}

func (that *dbMatch) SaveAdmission(ctx context.Context, admission *entity.MatchAdmission) error {
	admissionJSON, err := json.Marshal(admission)
	if err != nil {
		return fmt.Errorf("could not marshal admission: %w", err)
	}

	if err = that.client.Set(ctx, admissionKey(admission.GameID), admissionJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set admission: %w", err)
	}

	return nil
}

func (that *dbMatch) AppendMove(ctx context.Context, gameID string, move *entity.StoredMove) error {
	moveJSON, err := json.Marshal(move)
	if err != nil {
		return fmt.Errorf("could not marshal move: %w", err)
	}

	if err = that.client.RPush(ctx, movesKey(gameID), moveJSON).Err(); err != nil {
		return fmt.Errorf("failed to append move: %w", err)
	}

	return nil
}

// Expire - the match keys disappear after ttl.
func (that *dbMatch) Expire(ctx context.Context, gameID string, ttl time.Duration) error {
	_, err := that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Expire(ctx, admissionKey(gameID), ttl)
		pipe.Expire(ctx, movesKey(gameID), ttl)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to expire match: %w", err)
	}

	return nil
}

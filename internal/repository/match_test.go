package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/testing/suite"
)

func newAdmission(gameID string, createdAt time.Time) *entity.MatchAdmission {
	return &entity.MatchAdmission{
		GameID: gameID,
		Players: []entity.Admission{
			{PlayerID: "player-one", Symbol: entity.PlayerX, Token: "token-x"},
			{PlayerID: "player-two", Symbol: entity.PlayerO, Token: "token-o"},
		},
		CreatedAt: createdAt,
	}
}

func TestMatchRepository_Load(t *testing.T) {
	t.Run("Load_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		matchRepo := NewMatchRepository(st.Storage)

		// When: Load is called for a game that was never stored
		snapshot, err := matchRepo.Load(ctx, "missing")

		// Then: ErrMatchNotFound is returned
		require.ErrorIs(t, err, apperror.ErrMatchNotFound)
		assert.Nil(t, snapshot)
	})

	t.Run("Load_AdmissionAndMoves", func(t *testing.T) {
		ctx, st := suite.New(t)

		matchRepo := NewMatchRepository(st.Storage)

		// Given: an admission list and two moves
		admission := newAdmission("game-1", st.Clock.Now())
		require.NoError(t, matchRepo.SaveAdmission(ctx, admission))

		first := &entity.StoredMove{MoveNumber: 1, Player: entity.PlayerX, BoardIndex: 4, CellIndex: 4, Notation: "C/C", Timestamp: st.Clock.Now()}
		second := &entity.StoredMove{MoveNumber: 2, Player: entity.PlayerO, BoardIndex: 4, CellIndex: 0, Notation: "C/NW", Timestamp: st.Clock.Now()}
		require.NoError(t, matchRepo.AppendMove(ctx, "game-1", first))
		require.NoError(t, matchRepo.AppendMove(ctx, "game-1", second))

		// When: Load is called
		snapshot, err := matchRepo.Load(ctx, "game-1")

		// Then: both are returned, moves in append order
		require.NoError(t, err)
		require.NotNil(t, snapshot.Admission)
		assert.Equal(t, admission.Players, snapshot.Admission.Players)
		require.Len(t, snapshot.Moves, 2)
		assert.Equal(t, 1, snapshot.Moves[0].MoveNumber)
		assert.Equal(t, "C/NW", snapshot.Moves[1].Notation)
	})

	t.Run("Load_KeyLayout", func(t *testing.T) {
		ctx, st := suite.New(t)

		matchRepo := NewMatchRepository(st.Storage)

		// Given: a stored admission and move
		require.NoError(t, matchRepo.SaveAdmission(ctx, newAdmission("game-2", st.Clock.Now())))
		require.NoError(t, matchRepo.AppendMove(ctx, "game-2", &entity.StoredMove{MoveNumber: 1, Player: entity.PlayerX}))

		// Then: exactly the admission and move keys exist
		assert.Equal(t, []string{"match:game-2:admission", "match:game-2:moves"}, st.MatchKeys(ctx, "game-2"))
	})
}

func TestMatchRepository_Expire(t *testing.T) {
	ctx, st := suite.New(t)

	matchRepo := NewMatchRepository(st.Storage)

	// Given: a stored match
	require.NoError(t, matchRepo.SaveAdmission(ctx, newAdmission("game-3", st.Clock.Now())))
	require.NoError(t, matchRepo.AppendMove(ctx, "game-3", &entity.StoredMove{MoveNumber: 1, Player: entity.PlayerX}))

	// When: Expire is called
	err := matchRepo.Expire(ctx, "game-3", time.Hour)

	// Then: both keys carry a ttl
	require.NoError(t, err)

	keys := st.MatchKeys(ctx, "game-3")
	require.Len(t, keys, 2)

	for _, key := range keys {
		ttl, err := st.Storage.TTL(ctx, key).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0), key)
	}
}

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
)

func TestMemoryMatchRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Load_NotFound", func(t *testing.T) {
		matchRepo := NewMemoryMatchRepository(clockwork.NewFakeClock())

		_, err := matchRepo.Load(ctx, "missing")

		require.ErrorIs(t, err, apperror.ErrMatchNotFound)
	})

	t.Run("Load_ReturnsCopies", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		matchRepo := NewMemoryMatchRepository(clock)

		// Given: a stored match
		require.NoError(t, matchRepo.SaveAdmission(ctx, newAdmission("game-1", clock.Now())))
		require.NoError(t, matchRepo.AppendMove(ctx, "game-1", &entity.StoredMove{MoveNumber: 1, Player: entity.PlayerX, BoardIndex: 4, CellIndex: 4}))

		// When: the loaded snapshot is mutated
		snapshot, err := matchRepo.Load(ctx, "game-1")
		require.NoError(t, err)

		snapshot.Moves[0].CellIndex = 0
		snapshot.Admission.Players[0].Token = "changed"

		// Then: the stored data is unaffected
		reloaded, err := matchRepo.Load(ctx, "game-1")
		require.NoError(t, err)
		assert.Equal(t, 4, reloaded.Moves[0].CellIndex)
		assert.Equal(t, "token-x", reloaded.Admission.Players[0].Token)
	})

	t.Run("Expire_DropsAfterTTL", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		matchRepo := NewMemoryMatchRepository(clock)

		// Given: a match with a one-hour retention
		require.NoError(t, matchRepo.SaveAdmission(ctx, newAdmission("game-2", clock.Now())))
		require.NoError(t, matchRepo.Expire(ctx, "game-2", time.Hour))

		// When: less than the ttl has passed
		clock.Advance(59 * time.Minute)

		// Then: it is still there
		_, err := matchRepo.Load(ctx, "game-2")
		require.NoError(t, err)

		// When: the ttl has passed
		clock.Advance(time.Minute)

		// Then: it is gone
		_, err = matchRepo.Load(ctx, "game-2")
		require.ErrorIs(t, err, apperror.ErrMatchNotFound)
	})
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"wagerledger/models"
	"wagerledger/repository/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRepository_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDatabase(t)
	seeds := NewSeedPairRepository(testDB.DB)
	repo := NewRoundRepository(testDB.DB)
	ctx := context.Background()

	pair := testutil.CreateTestSeedPair(42)
	_, err := seeds.Create(ctx, pair)
	require.NoError(t, err)

	round := testutil.CreateTestRound(pair, "req-1", 0)
	round.Status = models.RoundStatusWon
	round.PayoutAmount = decimal.RequireFromString("19.8")
	round.PayoutMultiplier = decimal.RequireFromString("1.98")
	round.Result = json.RawMessage(`{"roll":12.34}`)
	now := time.Now()
	round.CompletedAt = &now
	require.NoError(t, repo.Create(ctx, round))

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, round.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, round.UserID, got.UserID)
		assert.Equal(t, models.RoundStatusWon, got.Status)
		assert.True(t, got.StakeAmount.Equal(decimal.NewFromInt(10)))
		assert.True(t, got.PayoutAmount.Equal(decimal.RequireFromString("19.8")))
		assert.True(t, got.PayoutMultiplier.Equal(decimal.RequireFromString("1.98")))
		assert.Equal(t, 0.75, got.RawValue)
		assert.JSONEq(t, `{"roll":12.34}`, string(got.Result))
		assert.JSONEq(t, `{"target":50,"condition":"under"}`, string(got.Params))
		assert.Nil(t, got.State)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("get by request id", func(t *testing.T) {
		got, err := repo.GetByRequestID(ctx, 42, "req-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, round.ID, got.ID)

		missing, err := repo.GetByRequestID(ctx, 43, "req-1")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("duplicate request id", func(t *testing.T) {
		dup := testutil.CreateTestRound(pair, "req-1", 1)
		err := repo.Create(ctx, dup)
		assert.ErrorIs(t, err, models.ErrDuplicateRequest)
	})

	t.Run("reused nonce", func(t *testing.T) {
		reuse := testutil.CreateTestRound(pair, "req-2", 0)
		err := repo.Create(ctx, reuse)
		assert.ErrorIs(t, err, models.ErrIntegrity)
	})

	t.Run("terminal round cannot be updated", func(t *testing.T) {
		round.Status = models.RoundStatusLost
		err := repo.Update(ctx, round)
		assert.ErrorIs(t, err, models.ErrRoundNotActive)
	})

	t.Run("missing round", func(t *testing.T) {
		got, err := repo.GetByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestRoundRepository_ActiveRounds(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDatabase(t)
	seeds := NewSeedPairRepository(testDB.DB)
	repo := NewRoundRepository(testDB.DB)
	ctx := context.Background()

	pair := testutil.CreateTestSeedPair(7)
	_, err := seeds.Create(ctx, pair)
	require.NoError(t, err)

	active := testutil.CreateTestRound(pair, "bj-1", 0)
	active.GameType = models.GameTypeBlackjack
	active.Status = models.RoundStatusActive
	active.State = json.RawMessage(`{"phase":"PLAYER_TURN"}`)
	require.NoError(t, repo.Create(ctx, active))

	t.Run("one active round per game", func(t *testing.T) {
		second := testutil.CreateTestRound(pair, "bj-2", 1)
		second.GameType = models.GameTypeBlackjack
		second.Status = models.RoundStatusInsurancePending
		err := repo.Create(ctx, second)
		assert.ErrorIs(t, err, models.ErrActiveRoundExists)
	})

	t.Run("get active", func(t *testing.T) {
		got, err := repo.GetActive(ctx, 7, models.GameTypeBlackjack)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, active.ID, got.ID)

		none, err := repo.GetActive(ctx, 7, models.GameTypeDice)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("update to completed", func(t *testing.T) {
		locked, err := repo.GetByIDForUpdate(ctx, active.ID)
		require.NoError(t, err)
		require.NotNil(t, locked)

		now := time.Now()
		locked.Status = models.RoundStatusCompleted
		locked.State = json.RawMessage(`{"phase":"COMPLETED"}`)
		locked.PayoutAmount = decimal.NewFromInt(25)
		locked.PayoutMultiplier = decimal.RequireFromString("2.5")
		locked.CompletedAt = &now
		require.NoError(t, repo.Update(ctx, locked))

		none, err := repo.GetActive(ctx, 7, models.GameTypeBlackjack)
		require.NoError(t, err)
		assert.Nil(t, none)

		got, err := repo.GetByID(ctx, active.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoundStatusCompleted, got.Status)
		assert.True(t, got.PayoutAmount.Equal(decimal.NewFromInt(25)))
	})

	t.Run("history newest first and limited", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			r := testutil.CreateTestRound(pair, fmt.Sprintf("dice-%d", i), int64(i))
			require.NoError(t, repo.Create(ctx, r))
		}

		rounds, err := repo.GetByUser(ctx, 7, 2)
		require.NoError(t, err)
		require.Len(t, rounds, 2)
		assert.False(t, rounds[0].CreatedAt.Before(rounds[1].CreatedAt))

		all, err := repo.GetByUser(ctx, 7, 100)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})
}

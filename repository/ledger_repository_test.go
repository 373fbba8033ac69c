package repository

import (
	"context"
	"testing"

	"wagerledger/models"
	"wagerledger/repository/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRepository_Balances(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDatabase(t)
	repo := NewLedgerRepository(testDB.DB)
	ctx := context.Background()

	t.Run("missing balance is zero", func(t *testing.T) {
		balance, err := repo.GetBalance(ctx, 1, "BTC")
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("debit without balance fails", func(t *testing.T) {
		_, _, err := repo.Debit(ctx, 1, "BTC", decimal.NewFromInt(1))
		assert.ErrorIs(t, err, models.ErrInsufficientBalance)
	})

	t.Run("credit creates balance", func(t *testing.T) {
		before, after, err := repo.Credit(ctx, 1, "BTC", decimal.RequireFromString("100.5"))
		require.NoError(t, err)
		assert.True(t, before.IsZero())
		assert.True(t, after.Equal(decimal.RequireFromString("100.5")))
	})

	t.Run("credit adds to balance", func(t *testing.T) {
		before, after, err := repo.Credit(ctx, 1, "BTC", decimal.RequireFromString("0.00000001"))
		require.NoError(t, err)
		assert.True(t, before.Equal(decimal.RequireFromString("100.5")))
		assert.True(t, after.Equal(decimal.RequireFromString("100.50000001")))
	})

	t.Run("debit subtracts", func(t *testing.T) {
		before, after, err := repo.Debit(ctx, 1, "BTC", decimal.RequireFromString("0.50000001"))
		require.NoError(t, err)
		assert.True(t, before.Equal(decimal.RequireFromString("100.50000001")))
		assert.True(t, after.Equal(decimal.NewFromInt(100)))
	})

	t.Run("debit beyond balance leaves it unchanged", func(t *testing.T) {
		_, _, err := repo.Debit(ctx, 1, "BTC", decimal.RequireFromString("100.00000001"))
		assert.ErrorIs(t, err, models.ErrInsufficientBalance)

		balance, err := repo.GetBalance(ctx, 1, "BTC")
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(100)))
	})

	t.Run("exact debit to zero", func(t *testing.T) {
		_, after, err := repo.Debit(ctx, 1, "BTC", decimal.NewFromInt(100))
		require.NoError(t, err)
		assert.True(t, after.IsZero())
	})

	t.Run("assets are separate", func(t *testing.T) {
		_, _, err := repo.Credit(ctx, 1, "ETH", decimal.NewFromInt(5))
		require.NoError(t, err)

		btc, err := repo.GetBalance(ctx, 1, "BTC")
		require.NoError(t, err)
		assert.True(t, btc.IsZero())
	})
}

func TestLedgerRepository_Operations(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDatabase(t)
	repo := NewLedgerRepository(testDB.DB)
	seeds := NewSeedPairRepository(testDB.DB)
	rounds := NewRoundRepository(testDB.DB)
	ctx := context.Background()

	t.Run("insert is idempotent on operation id", func(t *testing.T) {
		op := testutil.CreateTestOperation(1, "op-1", models.OperationKindCredit, "10")
		op.Metadata = map[string]any{models.MetadataComponent: "deposit"}

		inserted, err := repo.InsertOperation(ctx, op)
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.NotZero(t, op.ID)

		again := testutil.CreateTestOperation(1, "op-1", models.OperationKindCredit, "10")
		inserted, err = repo.InsertOperation(ctx, again)
		require.NoError(t, err)
		assert.False(t, inserted)
	})

	t.Run("balances recorded on operation", func(t *testing.T) {
		require.NoError(t, repo.SetBalances(ctx, "op-1", decimal.Zero, decimal.NewFromInt(10)))

		got, err := repo.GetOperation(ctx, "op-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.OperationKindCredit, got.Kind)
		assert.True(t, got.Amount.Equal(decimal.NewFromInt(10)))
		require.NotNil(t, got.BalanceBefore)
		require.NotNil(t, got.BalanceAfter)
		assert.True(t, got.BalanceBefore.IsZero())
		assert.True(t, got.BalanceAfter.Equal(decimal.NewFromInt(10)))
		assert.Equal(t, "deposit", got.Metadata[models.MetadataComponent])
		assert.Nil(t, got.RoundID)
	})

	t.Run("set balances on unknown operation", func(t *testing.T) {
		err := repo.SetBalances(ctx, "nope", decimal.Zero, decimal.Zero)
		assert.ErrorIs(t, err, models.ErrIntegrity)
	})

	t.Run("get missing operation", func(t *testing.T) {
		got, err := repo.GetOperation(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("operations by round in order", func(t *testing.T) {
		pair := testutil.CreateTestSeedPair(1)
		_, err := seeds.Create(ctx, pair)
		require.NoError(t, err)
		round := testutil.CreateTestRound(pair, "req-1", 0)
		require.NoError(t, rounds.Create(ctx, round))

		stake := testutil.CreateTestOperation(1, "req-1:stake", models.OperationKindDebit, "10")
		stake.RoundID = &round.ID
		payout := testutil.CreateTestOperation(1, "req-1:payout", models.OperationKindCredit, "19.8")
		payout.RoundID = &round.ID

		for _, op := range []*models.LedgerOperation{stake, payout} {
			inserted, err := repo.InsertOperation(ctx, op)
			require.NoError(t, err)
			require.True(t, inserted)
		}

		ops, err := repo.GetByRound(ctx, round.ID)
		require.NoError(t, err)
		require.Len(t, ops, 2)
		assert.Equal(t, "req-1:stake", ops[0].OperationID)
		assert.Equal(t, "req-1:payout", ops[1].OperationID)
		require.NotNil(t, ops[0].RoundID)
		assert.Equal(t, round.ID, *ops[0].RoundID)
	})
}

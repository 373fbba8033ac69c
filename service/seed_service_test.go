package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"wagerledger/fairness"
	"wagerledger/games"
	"wagerledger/games/blackjack"
	"wagerledger/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestSeedService(t *testing.T, m *serviceMocks) SeedService {
	return NewSeedService(m.factory, newTestLocker(t), LockSettings{TTL: 5 * time.Second}, games.NewRegistry(testEdges(t)), m.metrics)
}

func TestSeedService_GetActiveSeed_HidesServerSeed(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := newTestSeedService(t, m)

	pair := testSeedPair(42)
	pair.Nonce = 3
	m.seeds.On("GetActive", mock.Anything, int64(42)).Return(pair, nil)
	m.uow.On("Commit").Return(nil)

	commitment, err := svc.GetActiveSeed(ctx, 42)

	require.NoError(t, err)
	assert.Equal(t, pair.ServerSeedHash, commitment.ServerSeedHash)
	assert.Equal(t, int64(3), commitment.Nonce)
	assert.NotContains(t, commitment.ServerSeedHash, pair.ServerSeed)
}

func TestSeedService_GetActiveSeed_LosesCreateRace(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := newTestSeedService(t, m)

	winner := testSeedPair(42)
	m.seeds.On("GetActive", mock.Anything, int64(42)).Return(nil, nil).Once()
	m.seeds.On("Create", mock.Anything, mock.Anything).Return(false, nil)
	m.seeds.On("GetActive", mock.Anything, int64(42)).Return(winner, nil).Once()
	m.uow.On("Commit").Return(nil)

	commitment, err := svc.GetActiveSeed(ctx, 42)

	require.NoError(t, err)
	assert.Equal(t, winner.ID, commitment.SeedPairID)
	m.seeds.AssertExpectations(t)
}

func TestSeedService_RotateSeed_RevealsAndCommits(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := newTestSeedService(t, m)

	current := testSeedPair(42)
	m.rounds.On("GetActive", mock.Anything, int64(42), models.GameTypeBlackjack).Return(nil, nil)
	m.seeds.On("GetActive", mock.Anything, int64(42)).Return(current, nil)
	m.seeds.On("Reveal", mock.Anything, int64(7), mock.AnythingOfType("time.Time")).Return(nil)
	m.seeds.On("Create", mock.Anything, mock.MatchedBy(func(p *models.SeedPair) bool {
		return p.ClientSeed == "my-new-seed" && p.ServerSeed != current.ServerSeed
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.SeedPair).ID = 8
	}).Return(true, nil)
	m.bus.On("Publish", mock.AnythingOfType("events.SeedRotatedEvent"))
	m.uow.On("Commit").Return(nil)

	rotation, err := svc.RotateSeed(ctx, 42, "my-new-seed")

	require.NoError(t, err)
	assert.Equal(t, current.ServerSeed, rotation.Revealed.ServerSeed)
	assert.True(t, rotation.Revealed.IsRevealed())
	assert.Equal(t, int64(8), rotation.Next.SeedPairID)
	assert.Equal(t, "my-new-seed", rotation.Next.ClientSeed)
	assert.Equal(t, int64(0), rotation.Next.Nonce)
	m.assertExpectations(t)
}

func TestSeedService_RotateSeed_RejectedWhileBlackjackInPlay(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := newTestSeedService(t, m)

	m.rounds.On("GetActive", mock.Anything, int64(42), models.GameTypeBlackjack).
		Return(&models.WagerRound{ID: uuid.New(), Status: models.RoundStatusActive}, nil)

	_, err := svc.RotateSeed(ctx, 42, "")

	assert.True(t, errors.Is(err, models.ErrActiveRoundExists))
	m.seeds.AssertNotCalled(t, "Reveal", mock.Anything, mock.Anything, mock.Anything)
	m.uow.AssertNotCalled(t, "Commit")
}

func TestSeedService_RotateSeed_InvalidClientSeed(t *testing.T) {
	m := newServiceMocks()
	svc := newTestSeedService(t, m)

	for _, seed := range []string{"has:colon", "has space", string(make([]byte, fairness.MaxClientSeedLength+1))} {
		_, err := svc.RotateSeed(context.Background(), 42, seed)
		assert.True(t, errors.Is(err, models.ErrInvalidParameters), "seed %q: got %v", seed, err)
	}
	m.factory.AssertNotCalled(t, "Create")
}

func TestSeedService_RevealSeed(t *testing.T) {
	ctx := context.Background()

	t.Run("active pair stays hidden", func(t *testing.T) {
		m := newServiceMocks()
		svc := newTestSeedService(t, m)
		m.seeds.On("GetByID", mock.Anything, int64(7)).Return(testSeedPair(42), nil)

		_, err := svc.RevealSeed(ctx, 7)
		assert.True(t, errors.Is(err, models.ErrSeedNotRevealed))
	})

	t.Run("missing pair", func(t *testing.T) {
		m := newServiceMocks()
		svc := newTestSeedService(t, m)
		m.seeds.On("GetByID", mock.Anything, int64(7)).Return(nil, nil)

		_, err := svc.RevealSeed(ctx, 7)
		assert.True(t, errors.Is(err, models.ErrSeedPairNotFound))
	})

	t.Run("retired pair is revealed", func(t *testing.T) {
		m := newServiceMocks()
		svc := newTestSeedService(t, m)
		pair := testSeedPair(42)
		now := time.Now()
		pair.RevealedAt = &now
		m.seeds.On("GetByID", mock.Anything, int64(7)).Return(pair, nil)

		seed, err := svc.RevealSeed(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, pair.ServerSeed, seed)
	})
}

// settledRound resolves a single-step bet from pair and persists it the way PlaceBet does
func settledRound(t *testing.T, pair *models.SeedPair, gameType models.GameType, params string, nonce int64) *models.WagerRound {
	t.Helper()
	strategy, err := games.NewRegistry(testEdges(t)).Get(gameType)
	require.NoError(t, err)
	bet, err := strategy.Validate(json.RawMessage(params))
	require.NoError(t, err)

	outcome, err := fairness.DeriveOutcome(pair.ServerSeed, pair.ClientSeed, nonce, string(gameType))
	require.NoError(t, err)
	stream, err := fairness.NewStream(pair.ServerSeed, pair.ClientSeed, nonce)
	require.NoError(t, err)
	result, err := strategy.ComputeResult(bet, games.Draws{Outcome: outcome, Stream: stream})
	require.NoError(t, err)
	settlement := strategy.Settle(dec("10"), result)

	encodedBet, err := json.Marshal(bet)
	require.NoError(t, err)
	encodedResult, err := json.Marshal(result)
	require.NoError(t, err)

	return &models.WagerRound{
		ID:               uuid.New(),
		UserID:           pair.UserID,
		GameType:         gameType,
		StakeAmount:      dec("10"),
		Status:           settlement.Status,
		SeedPairID:       pair.ID,
		ServerSeedHash:   pair.ServerSeedHash,
		ClientSeed:       pair.ClientSeed,
		Nonce:            nonce,
		RawValue:         outcome.Value,
		Params:           encodedBet,
		Result:           encodedResult,
		PayoutAmount:     settlement.Payout,
		PayoutMultiplier: settlement.Multiplier,
	}
}

// playedBlackjackRound deals from pair's shoe and stands until the round completes
func playedBlackjackRound(t *testing.T, pair *models.SeedPair, nonce int64) (*models.WagerRound, *blackjack.State) {
	t.Helper()
	stream, err := fairness.NewStream(pair.ServerSeed, pair.ClientSeed, nonce)
	require.NoError(t, err)
	outcome, err := fairness.DeriveOutcome(pair.ServerSeed, pair.ClientSeed, nonce, string(models.GameTypeBlackjack))
	require.NoError(t, err)

	sideBets := blackjack.SideBetStakes{PerfectPairs: dec("1"), TwentyOnePlusThree: dec("1")}
	state, err := blackjack.Deal(stream, dec("10"), sideBets)
	require.NoError(t, err)
	for !state.IsCompleted() {
		action := blackjack.ActionStand
		if state.Phase == blackjack.PhaseInsurancePending {
			action = blackjack.ActionNoInsurance
		}
		_, err := state.Apply(stream, action)
		require.NoError(t, err)
	}
	settlement, err := blackjack.Settle(state)
	require.NoError(t, err)

	params, err := json.Marshal(blackjackParams{Stake: dec("10"), SideBets: sideBets})
	require.NoError(t, err)
	return &models.WagerRound{
		ID:               uuid.New(),
		UserID:           pair.UserID,
		GameType:         models.GameTypeBlackjack,
		StakeAmount:      dec("10"),
		Status:           models.RoundStatusCompleted,
		SeedPairID:       pair.ID,
		ServerSeedHash:   pair.ServerSeedHash,
		ClientSeed:       pair.ClientSeed,
		Nonce:            nonce,
		RawValue:         outcome.Value,
		Params:           params,
		PayoutAmount:     settlement.Total,
		PayoutMultiplier: settlement.Multiplier,
	}, state
}

func withState(t *testing.T, round *models.WagerRound, state *blackjack.State) *models.WagerRound {
	t.Helper()
	encoded, err := json.Marshal(state)
	require.NoError(t, err)
	round.State = encoded
	return round
}

func revealedSeedPair(userID int64) *models.SeedPair {
	pair := testSeedPair(userID)
	revealed := time.Now()
	pair.RevealedAt = &revealed
	return pair
}

func verifyStoredRound(t *testing.T, round *models.WagerRound, pair *models.SeedPair) *models.RoundVerification {
	t.Helper()
	m := newServiceMocks()
	svc := newTestSeedService(t, m)
	m.rounds.On("GetByID", mock.Anything, round.ID).Return(round, nil)
	m.seeds.On("GetByID", mock.Anything, round.SeedPairID).Return(pair, nil)

	v, err := svc.VerifyRound(context.Background(), round.ID)
	require.NoError(t, err)
	return v
}

func TestSeedService_VerifyRound_ReplaysSingleStepGames(t *testing.T) {
	pair := revealedSeedPair(42)
	tests := []struct {
		gameType models.GameType
		params   string
	}{
		{models.GameTypeDice, `{"target": "50", "condition": "under"}`},
		{models.GameTypeLimbo, `{"target_multiplier": "2"}`},
		{models.GameTypeRoulette, `{"bet_type": "red"}`},
		{models.GameTypePlinko, `{"rows": 16}`},
	}

	for _, tt := range tests {
		t.Run(string(tt.gameType), func(t *testing.T) {
			round := settledRound(t, pair, tt.gameType, tt.params, 5)

			v := verifyStoredRound(t, round, pair)

			assert.True(t, v.HashMatches)
			assert.True(t, v.ResultMatches, v.Mismatch)
			assert.True(t, v.Verified)
			assert.Equal(t, round.RawValue, v.ComputedValue)
		})
	}
}

func TestSeedService_VerifyRound_ForgedPlinkoResult(t *testing.T) {
	pair := revealedSeedPair(42)
	round := settledRound(t, pair, models.GameTypePlinko, `{"rows": 16}`, 5)
	round.Result = json.RawMessage(`{"won": true, "multiplier": "1000", "detail": {"path": [], "bucket": 0}}`)
	round.PayoutMultiplier = dec("1000")
	round.PayoutAmount = dec("10000")
	round.Status = models.RoundStatusWon

	v := verifyStoredRound(t, round, pair)

	assert.True(t, v.HashMatches)
	assert.Equal(t, round.RawValue, v.ComputedValue)
	assert.False(t, v.ResultMatches)
	assert.False(t, v.Verified)
	assert.NotEmpty(t, v.Mismatch)
}

func TestSeedService_VerifyRound_TamperedSingleStepRound(t *testing.T) {
	pair := revealedSeedPair(42)
	tests := []struct {
		name   string
		tamper func(r *models.WagerRound)
	}{
		{"raw value", func(r *models.WagerRound) { r.RawValue = 0.5 }},
		{"payout amount", func(r *models.WagerRound) { r.PayoutAmount = r.PayoutAmount.Add(dec("1")) }},
		{"status", func(r *models.WagerRound) {
			if r.Status == models.RoundStatusWon {
				r.Status = models.RoundStatusLost
			} else {
				r.Status = models.RoundStatusWon
			}
		}},
		{"pricing", func(r *models.WagerRound) {
			r.Params = json.RawMessage(`{"bet_type": "red", "house_edge": "2.7027", "win_chance": "48.648649", "multiplier": "3", "params": {"bet_type": "red"}}`)
		}},
		{"parameters", func(r *models.WagerRound) { r.Params = json.RawMessage(`{"params": "nonsense"}`) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			round := settledRound(t, pair, models.GameTypeRoulette, `{"bet_type": "red"}`, 5)
			tt.tamper(round)

			v := verifyStoredRound(t, round, pair)

			assert.True(t, v.HashMatches)
			assert.False(t, v.Verified)
		})
	}
}

func TestSeedService_VerifyRound_Blackjack(t *testing.T) {
	pair := revealedSeedPair(42)

	t.Run("played round verifies", func(t *testing.T) {
		round, state := playedBlackjackRound(t, pair, 3)
		v := verifyStoredRound(t, withState(t, round, state), pair)

		assert.True(t, v.ResultMatches, v.Mismatch)
		assert.True(t, v.Verified)
	})

	t.Run("forged dealer card", func(t *testing.T) {
		round, state := playedBlackjackRound(t, pair, 3)
		hole := state.Dealer[1]
		state.Dealer[1] = blackjack.CardFromIndex((int(hole.Suit)*13 + int(hole.Rank)) % 52)
		v := verifyStoredRound(t, withState(t, round, state), pair)

		assert.False(t, v.ResultMatches)
		assert.False(t, v.Verified)
	})

	t.Run("inflated payout", func(t *testing.T) {
		round, state := playedBlackjackRound(t, pair, 3)
		round.PayoutAmount = round.PayoutAmount.Add(dec("5"))
		v := verifyStoredRound(t, withState(t, round, state), pair)

		assert.False(t, v.ResultMatches)
		assert.False(t, v.Verified)
	})

	t.Run("forged side bet outcome", func(t *testing.T) {
		round, state := playedBlackjackRound(t, pair, 3)
		require.NotNil(t, state.PerfectPairs)
		if state.PerfectPairs.Outcome == blackjack.PairPerfect {
			state.PerfectPairs.Outcome = blackjack.PairNone
			state.PerfectPairs.Payout = dec("0")
		} else {
			state.PerfectPairs.Outcome = blackjack.PairPerfect
			state.PerfectPairs.Payout = dec("26")
		}
		v := verifyStoredRound(t, withState(t, round, state), pair)

		assert.False(t, v.Verified)
	})
}

func TestSeedService_VerifyRound_Unverifiable(t *testing.T) {
	ctx := context.Background()
	pair := revealedSeedPair(42)
	round := settledRound(t, pair, models.GameTypeRoulette, `{"bet_type": "red"}`, 5)

	t.Run("unrevealed seed", func(t *testing.T) {
		m := newServiceMocks()
		svc := newTestSeedService(t, m)
		m.rounds.On("GetByID", mock.Anything, round.ID).Return(round, nil)
		m.seeds.On("GetByID", mock.Anything, int64(7)).Return(testSeedPair(42), nil)

		_, err := svc.VerifyRound(ctx, round.ID)
		assert.True(t, errors.Is(err, models.ErrSeedNotRevealed))
	})

	t.Run("missing round", func(t *testing.T) {
		m := newServiceMocks()
		svc := newTestSeedService(t, m)
		m.rounds.On("GetByID", mock.Anything, round.ID).Return(nil, nil)

		_, err := svc.VerifyRound(ctx, round.ID)
		assert.True(t, errors.Is(err, models.ErrRoundNotFound))
	})
}

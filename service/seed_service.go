package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wagerledger/events"
	"wagerledger/fairness"
	"wagerledger/games"
	"wagerledger/games/blackjack"
	"wagerledger/lock"
	"wagerledger/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// seedLockOrder is the order rotation takes every game lock a user can hold.
// Blackjack comes first so an in-play round is detected before anything else.
var seedLockOrder = []models.GameType{
	models.GameTypeBlackjack,
	models.GameTypeDice,
	models.GameTypeLimbo,
	models.GameTypePlinko,
	models.GameTypeRoulette,
}

type seedService struct {
	uowFactory UnitOfWorkFactory
	env        *envelope
	registry   *games.Registry
}

// NewSeedService creates a new seed service. registry replays single-step rounds during verification.
func NewSeedService(uowFactory UnitOfWorkFactory, locker lock.Locker, lockSettings LockSettings, registry *games.Registry, metrics Metrics) SeedService {
	return &seedService{
		uowFactory: uowFactory,
		env:        newEnvelope(locker, uowFactory, lockSettings, metrics),
		registry:   registry,
	}
}

// GetActiveSeed returns the commitment for the user's active pair, creating it on first use
func (s *seedService) GetActiveSeed(ctx context.Context, userID int64) (*models.SeedCommitment, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pair, err := activeSeedPair(ctx, uow, userID)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	commitment := pair.Commitment()
	return &commitment, nil
}

// RotateSeed reveals the active pair and commits to a new one
func (s *seedService) RotateSeed(ctx context.Context, userID int64, newClientSeed string) (*models.SeedRotation, error) {
	if newClientSeed != "" {
		if err := fairness.ValidateClientSeed(newClientSeed); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidParameters, err)
		}
	}

	var rotation *models.SeedRotation
	err := s.env.runAll(ctx, userID, seedLockOrder, func(ctx context.Context, uow UnitOfWork) error {
		active, err := uow.RoundRepository().GetActive(ctx, userID, models.GameTypeBlackjack)
		if err != nil {
			return err
		}
		if active != nil {
			return fmt.Errorf("%w: blackjack round %s is still in play", models.ErrActiveRoundExists, active.ID)
		}

		current, err := activeSeedPair(ctx, uow, userID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := uow.SeedPairRepository().Reveal(ctx, current.ID, now); err != nil {
			return err
		}
		current.RevealedAt = &now

		next, err := newSeedPair(userID, newClientSeed)
		if err != nil {
			return err
		}
		created, err := uow.SeedPairRepository().Create(ctx, next)
		if err != nil {
			return err
		}
		if !created {
			return fmt.Errorf("%w: active seed pair reappeared during rotation for user %d", models.ErrIntegrity, userID)
		}

		uow.EventBus().Publish(events.SeedRotatedEvent{
			UserID:             userID,
			RevealedSeedPairID: current.ID,
			RevealedServerSeed: current.ServerSeed,
			NextSeedPairID:     next.ID,
			NextServerSeedHash: next.ServerSeedHash,
		})

		rotation = &models.SeedRotation{Revealed: current, Next: next.Commitment()}
		return nil
	})
	if err != nil {
		logFailure(err, "Seed rotation failed", log.Fields{"userID": userID})
		return nil, err
	}

	log.WithFields(log.Fields{
		"userID":         userID,
		"revealedPairID": rotation.Revealed.ID,
		"nextPairID":     rotation.Next.SeedPairID,
	}).Info("Seed pair rotated")
	return rotation, nil
}

// RevealSeed returns a retired pair's server seed
func (s *seedService) RevealSeed(ctx context.Context, seedPairID int64) (string, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pair, err := uow.SeedPairRepository().GetByID(ctx, seedPairID)
	if err != nil {
		return "", err
	}
	if pair == nil {
		return "", fmt.Errorf("%w: %d", models.ErrSeedPairNotFound, seedPairID)
	}
	if !pair.IsRevealed() {
		return "", fmt.Errorf("%w: %d", models.ErrSeedNotRevealed, seedPairID)
	}
	return pair.ServerSeed, nil
}

// VerifyRound recomputes a round's outcome from its revealed seed and replays the game
// against what was stored. A round verifies only if the commitment, the raw value and
// the replayed result and payout all match.
func (s *seedService) VerifyRound(ctx context.Context, roundID uuid.UUID) (*models.RoundVerification, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	round, err := uow.RoundRepository().GetByID(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrRoundNotFound, roundID)
	}

	pair, err := uow.SeedPairRepository().GetByID(ctx, round.SeedPairID)
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, fmt.Errorf("%w: round %s references missing seed pair %d", models.ErrIntegrity, roundID, round.SeedPairID)
	}
	if !pair.IsRevealed() {
		return nil, fmt.Errorf("%w: %d", models.ErrSeedNotRevealed, pair.ID)
	}

	outcome, err := fairness.DeriveOutcome(pair.ServerSeed, round.ClientSeed, round.Nonce, string(round.GameType))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIntegrity, err)
	}

	v := &models.RoundVerification{
		RoundID:        round.ID.String(),
		ServerSeed:     pair.ServerSeed,
		ServerSeedHash: round.ServerSeedHash,
		ClientSeed:     round.ClientSeed,
		Nonce:          round.Nonce,
		GameType:       string(round.GameType),
		StoredValue:    round.RawValue,
		ComputedValue:  outcome.Value,
		HashMatches:    fairness.Verify(pair.ServerSeed, round.ServerSeedHash),
	}

	err = s.replay(round, pair.ServerSeed, outcome)
	switch {
	case err == nil:
		v.ResultMatches = true
	case errors.Is(err, models.ErrReplayMismatch):
		v.Mismatch = err.Error()
		log.WithFields(log.Fields{
			"roundID":  round.ID,
			"gameType": round.GameType,
		}).WithError(err).Warn("Round failed verification")
	default:
		return nil, err
	}

	v.Verified = v.HashMatches && outcome.Value == round.RawValue && v.ResultMatches
	return v, nil
}

// replay re-runs the round's game from its seeds and compares it with the stored round
func (s *seedService) replay(round *models.WagerRound, serverSeed string, outcome fairness.Outcome) error {
	stream, err := fairness.NewStream(serverSeed, round.ClientSeed, round.Nonce)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIntegrity, err)
	}

	if round.GameType == models.GameTypeBlackjack {
		return replayBlackjack(round, stream)
	}

	strategy, err := s.registry.Get(round.GameType)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrReplayMismatch, err)
	}
	result, err := games.Replay(strategy, round.Params, games.Draws{Outcome: outcome, Stream: stream})
	if err != nil {
		return err
	}
	if err := games.MatchRecorded(result, round.Result); err != nil {
		return err
	}

	settlement := strategy.Settle(round.StakeAmount, result)
	if settlement.Status != round.Status || !settlement.Payout.Equal(round.PayoutAmount) || !settlement.Multiplier.Equal(round.PayoutMultiplier) {
		return fmt.Errorf("%w: recorded %s paying %s at %sx, replay %s paying %s at %sx", models.ErrReplayMismatch,
			round.Status, round.PayoutAmount, round.PayoutMultiplier,
			settlement.Status, settlement.Payout, settlement.Multiplier)
	}
	return nil
}

func replayBlackjack(round *models.WagerRound, stream *fairness.Stream) error {
	var params blackjackParams
	if err := json.Unmarshal(round.Params, &params); err != nil {
		return fmt.Errorf("%w: malformed blackjack parameters: %v", models.ErrReplayMismatch, err)
	}
	var state blackjack.State
	if err := json.Unmarshal(round.State, &state); err != nil {
		return fmt.Errorf("%w: malformed blackjack state: %v", models.ErrReplayMismatch, err)
	}

	if !params.Stake.Equal(state.MainStake) || !round.StakeAmount.Equal(state.MainStake) ||
		!params.SideBets.PerfectPairs.Equal(state.SideBets.PerfectPairs) ||
		!params.SideBets.TwentyOnePlusThree.Equal(state.SideBets.TwentyOnePlusThree) {
		return fmt.Errorf("%w: blackjack stakes differ between parameters and state", models.ErrReplayMismatch)
	}
	if err := state.VerifyDraws(stream); err != nil {
		return err
	}

	if !state.IsCompleted() {
		if round.Status.IsTerminal() {
			return fmt.Errorf("%w: round is %s but the hand is still in play", models.ErrReplayMismatch, round.Status)
		}
		return nil
	}
	settlement, err := blackjack.Settle(&state)
	if err != nil {
		return err
	}
	if round.Status != models.RoundStatusCompleted || !settlement.Total.Equal(round.PayoutAmount) || !settlement.Multiplier.Equal(round.PayoutMultiplier) {
		return fmt.Errorf("%w: recorded %s paying %s at %sx, cards pay %s at %sx", models.ErrReplayMismatch,
			round.Status, round.PayoutAmount, round.PayoutMultiplier, settlement.Total, settlement.Multiplier)
	}
	return nil
}

// activeSeedPair returns the user's active pair, creating one if needed
func activeSeedPair(ctx context.Context, uow UnitOfWork, userID int64) (*models.SeedPair, error) {
	repo := uow.SeedPairRepository()

	pair, err := repo.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pair != nil {
		return pair, nil
	}

	pair, err = newSeedPair(userID, "")
	if err != nil {
		return nil, err
	}
	created, err := repo.Create(ctx, pair)
	if err != nil {
		return nil, err
	}
	if created {
		log.WithFields(log.Fields{
			"userID":     userID,
			"seedPairID": pair.ID,
		}).Debug("Created seed pair")
		return pair, nil
	}

	// Another transaction created it first
	pair, err = repo.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, fmt.Errorf("%w: no active seed pair for user %d after create", models.ErrIntegrity, userID)
	}
	return pair, nil
}

func newSeedPair(userID int64, clientSeed string) (*models.SeedPair, error) {
	serverSeed, err := fairness.NewServerSeed()
	if err != nil {
		return nil, fmt.Errorf("failed to generate server seed: %w", err)
	}
	if clientSeed == "" {
		if clientSeed, err = fairness.NewClientSeed(); err != nil {
			return nil, fmt.Errorf("failed to generate client seed: %w", err)
		}
	}
	return &models.SeedPair{
		UserID:         userID,
		ServerSeed:     serverSeed,
		ServerSeedHash: fairness.HashServerSeed(serverSeed),
		ClientSeed:     clientSeed,
	}, nil
}

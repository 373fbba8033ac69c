package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wagerledger/events"
	"wagerledger/fairness"
	"wagerledger/games"
	"wagerledger/lock"
	"wagerledger/models"
	"wagerledger/payout"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// StakeLimits bounds every stake placed through the services. A zero Max means no upper bound.
type StakeLimits struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

type wageringService struct {
	env      *envelope
	registry *games.Registry
	limits   StakeLimits
	metrics  Metrics
}

// NewWageringService creates a new single-step wagering service
func NewWageringService(
	uowFactory UnitOfWorkFactory,
	locker lock.Locker,
	lockSettings LockSettings,
	registry *games.Registry,
	limits StakeLimits,
	metrics Metrics,
) WageringService {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &wageringService{
		env:      newEnvelope(locker, uowFactory, lockSettings, metrics),
		registry: registry,
		limits:   limits,
		metrics:  metrics,
	}
}

// PlaceBet resolves a single-step bet and settles it in one transaction
func (s *wageringService) PlaceBet(ctx context.Context, req PlaceBetRequest) (*models.RoundResult, error) {
	fields := log.Fields{
		"userID":    req.UserID,
		"gameType":  req.GameType,
		"requestID": req.RequestID,
		"asset":     req.Asset,
		"stake":     req.Stake.String(),
	}

	strategy, bet, err := s.validate(req)
	if err != nil {
		logFailure(err, "Bet rejected", fields)
		return nil, err
	}

	var result *models.RoundResult
	err = s.env.run(ctx, req.UserID, req.GameType, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		result, err = s.resolve(ctx, uow, req, strategy, bet)
		return err
	})
	if err != nil {
		logFailure(err, "Bet failed", fields)
		return nil, err
	}

	s.metrics.RecordBet(ctx, result.GameType, result.Status, result.Asset, result.Stake, result.PayoutAmount)

	log.WithFields(fields).WithFields(log.Fields{
		"roundID":    result.RoundID,
		"status":     result.Status,
		"payout":     result.PayoutAmount.String(),
		"multiplier": result.PayoutMultiplier.String(),
		"nonce":      result.Fairness.Nonce,
	}).Info("Bet settled")
	return result, nil
}

func (s *wageringService) validate(req PlaceBetRequest) (games.Strategy, *games.Prepared, error) {
	if err := validateRequest(req.UserID, req.Asset, req.RequestID); err != nil {
		return nil, nil, err
	}
	if err := payout.ValidateStake(req.Stake, s.limits.Min, s.limits.Max); err != nil {
		return nil, nil, err
	}

	strategy, err := s.registry.Get(req.GameType)
	if err != nil {
		return nil, nil, err
	}
	bet, err := strategy.Validate(req.Params)
	if err != nil {
		return nil, nil, err
	}
	return strategy, bet, nil
}

func (s *wageringService) resolve(ctx context.Context, uow UnitOfWork, req PlaceBetRequest, strategy games.Strategy, bet *games.Prepared) (*models.RoundResult, error) {
	rounds := uow.RoundRepository()

	existing, err := rounds.GetByRequestID(ctx, req.UserID, req.RequestID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: request %s already placed as round %s", models.ErrDuplicateRequest, req.RequestID, existing.ID)
	}

	pair, err := activeSeedPair(ctx, uow, req.UserID)
	if err != nil {
		return nil, err
	}
	nonce, err := uow.SeedPairRepository().IncrementNonce(ctx, pair.ID)
	if err != nil {
		return nil, err
	}

	outcome, err := fairness.DeriveOutcome(pair.ServerSeed, pair.ClientSeed, nonce, string(req.GameType))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIntegrity, err)
	}
	stream, err := fairness.NewStream(pair.ServerSeed, pair.ClientSeed, nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIntegrity, err)
	}

	gameResult, err := strategy.ComputeResult(bet, games.Draws{Outcome: outcome, Stream: stream})
	if err != nil {
		return nil, err
	}
	settlement := strategy.Settle(req.Stake, gameResult)

	params, err := json.Marshal(bet)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bet parameters: %w", err)
	}
	detail, err := json.Marshal(gameResult)
	if err != nil {
		return nil, fmt.Errorf("failed to encode game result: %w", err)
	}

	now := time.Now().UTC()
	round := &models.WagerRound{
		ID:               uuid.New(),
		UserID:           req.UserID,
		GameType:         req.GameType,
		RequestID:        req.RequestID,
		Asset:            req.Asset,
		StakeAmount:      req.Stake,
		Status:           settlement.Status,
		SeedPairID:       pair.ID,
		ServerSeedHash:   pair.ServerSeedHash,
		ClientSeed:       pair.ClientSeed,
		Nonce:            nonce,
		RawValue:         outcome.Value,
		Params:           params,
		Result:           detail,
		PayoutAmount:     settlement.Payout,
		PayoutMultiplier: settlement.Multiplier,
		CompletedAt:      &now,
	}
	if err := rounds.Create(ctx, round); err != nil {
		return nil, err
	}

	ops := []*models.LedgerOperation{{
		OperationID: fmt.Sprintf("%d:%s:stake", req.UserID, req.RequestID),
		UserID:      req.UserID,
		Asset:       req.Asset,
		Kind:        models.OperationKindDebit,
		Amount:      req.Stake,
		RoundID:     &round.ID,
		Metadata: map[string]any{
			models.MetadataGameType:          string(req.GameType),
			models.MetadataHouseEdgePercent:  bet.HouseEdge.String(),
			models.MetadataExpectedHouseTake: payout.ExpectedHouseTake(req.Stake, bet.HouseEdge).String(),
		},
	}}
	if settlement.Payout.IsPositive() {
		ops = append(ops, &models.LedgerOperation{
			OperationID: fmt.Sprintf("%d:%s:payout", req.UserID, req.RequestID),
			UserID:      req.UserID,
			Asset:       req.Asset,
			Kind:        models.OperationKindCredit,
			Amount:      settlement.Payout,
			RoundID:     &round.ID,
			Metadata: map[string]any{
				models.MetadataGameType: string(req.GameType),
			},
		})
	}

	ledger, err := applyOperations(ctx, uow, ops)
	if err != nil {
		return nil, err
	}
	if ledger.AlreadyApplied {
		// The round row was new, so its operations cannot have been recorded before
		return nil, fmt.Errorf("%w: operations for new round %s already recorded", models.ErrIntegrity, round.ID)
	}

	uow.EventBus().Publish(events.RoundSettledEvent{
		RoundID:    round.ID,
		UserID:     round.UserID,
		GameType:   string(round.GameType),
		Asset:      round.Asset,
		Stake:      round.StakeAmount,
		Payout:     round.PayoutAmount,
		Multiplier: round.PayoutMultiplier,
		Status:     string(round.Status),
	})

	result := models.NewRoundResult(round)
	result.NewBalance = &ledger.NewBalance
	result.Operations = ledger.Operations
	return result, nil
}

const (
	maxAssetLength     = 16
	maxRequestIDLength = 128
)

// validateRequest checks the fields every mutating request carries
func validateRequest(userID int64, asset, requestID string) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id must be positive", models.ErrInvalidParameters)
	}
	if asset == "" || len(asset) > maxAssetLength {
		return fmt.Errorf("%w: asset must be 1 to %d characters", models.ErrInvalidParameters, maxAssetLength)
	}
	if requestID == "" {
		return fmt.Errorf("%w: request id is required", models.ErrInvalidParameters)
	}
	if len(requestID) > maxRequestIDLength {
		return fmt.Errorf("%w: request id longer than %d characters", models.ErrInvalidParameters, maxRequestIDLength)
	}
	return nil
}

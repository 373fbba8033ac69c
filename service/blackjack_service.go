package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wagerledger/events"
	"wagerledger/fairness"
	"wagerledger/games/blackjack"
	"wagerledger/lock"
	"wagerledger/models"
	"wagerledger/payout"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type blackjackService struct {
	uowFactory UnitOfWorkFactory
	env        *envelope
	edges      *payout.EdgeTable
	limits     StakeLimits
	metrics    Metrics
}

// NewBlackjackService creates a new blackjack service. Debits are attributed the
// blackjack edge for their component, falling back to the game default.
func NewBlackjackService(
	uowFactory UnitOfWorkFactory,
	locker lock.Locker,
	lockSettings LockSettings,
	edges *payout.EdgeTable,
	limits StakeLimits,
	metrics Metrics,
) BlackjackService {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &blackjackService{
		uowFactory: uowFactory,
		env:        newEnvelope(locker, uowFactory, lockSettings, metrics),
		edges:      edges,
		limits:     limits,
		metrics:    metrics,
	}
}

// blackjackParams is what the round row records as its parameters
type blackjackParams struct {
	Stake    decimal.Decimal         `json:"stake"`
	SideBets blackjack.SideBetStakes `json:"side_bets"`
}

// StartRound deals a new round and debits every stake placed with it
func (s *blackjackService) StartRound(ctx context.Context, req StartRoundRequest) (*models.RoundState, error) {
	fields := log.Fields{
		"userID":    req.UserID,
		"requestID": req.RequestID,
		"asset":     req.Asset,
		"stake":     req.Stake.String(),
	}

	if err := s.validateStart(req); err != nil {
		logFailure(err, "Blackjack round rejected", fields)
		return nil, err
	}

	var state *models.RoundState
	var settled *models.WagerRound
	err := s.env.run(ctx, req.UserID, models.GameTypeBlackjack, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		state, settled, err = s.start(ctx, uow, req)
		return err
	})
	if err != nil {
		logFailure(err, "Blackjack round failed to start", fields)
		return nil, err
	}

	s.recordSettled(ctx, settled)
	log.WithFields(fields).WithFields(log.Fields{
		"roundID": state.RoundID,
		"status":  state.Status,
	}).Info("Blackjack round started")
	return state, nil
}

// SubmitAction applies one player decision to an in-play round
func (s *blackjackService) SubmitAction(ctx context.Context, userID int64, roundID uuid.UUID, action Action) (*models.RoundState, error) {
	fields := log.Fields{
		"userID":  userID,
		"roundID": roundID,
		"action":  action.Kind,
	}

	if action.Kind == "" {
		err := fmt.Errorf("%w: action is required", models.ErrInvalidParameters)
		logFailure(err, "Blackjack action rejected", fields)
		return nil, err
	}

	var state *models.RoundState
	var settled *models.WagerRound
	err := s.env.run(ctx, userID, models.GameTypeBlackjack, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		state, settled, err = s.act(ctx, uow, userID, roundID, action)
		return err
	})
	if err != nil {
		logFailure(err, "Blackjack action failed", fields)
		return nil, err
	}

	s.recordSettled(ctx, settled)
	log.WithFields(fields).WithField("status", state.Status).Debug("Blackjack action applied")
	return state, nil
}

// GetRoundState returns the player's view of one of their rounds
func (s *blackjackService) GetRoundState(ctx context.Context, userID int64, roundID uuid.UUID) (*models.RoundState, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	round, err := uow.RoundRepository().GetByID(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(round, userID, roundID); err != nil {
		return nil, err
	}

	game, err := decodeState(round)
	if err != nil {
		return nil, err
	}
	return roundState(round, game, nil), nil
}

func (s *blackjackService) validateStart(req StartRoundRequest) error {
	if err := validateRequest(req.UserID, req.Asset, req.RequestID); err != nil {
		return err
	}
	if err := payout.ValidateStake(req.Stake, s.limits.Min, s.limits.Max); err != nil {
		return err
	}
	for name, side := range map[string]decimal.Decimal{
		"perfect pairs": req.SideBets.PerfectPairs,
		"21+3":          req.SideBets.TwentyOnePlusThree,
	} {
		if side.IsZero() {
			continue
		}
		if err := payout.ValidateStake(side, s.limits.Min, s.limits.Max); err != nil {
			return fmt.Errorf("%s side bet: %w", name, err)
		}
	}
	return nil
}

func (s *blackjackService) start(ctx context.Context, uow UnitOfWork, req StartRoundRequest) (*models.RoundState, *models.WagerRound, error) {
	rounds := uow.RoundRepository()

	existing, err := rounds.GetByRequestID(ctx, req.UserID, req.RequestID)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("%w: request %s already placed as round %s", models.ErrDuplicateRequest, req.RequestID, existing.ID)
	}

	active, err := rounds.GetActive(ctx, req.UserID, models.GameTypeBlackjack)
	if err != nil {
		return nil, nil, err
	}
	if active != nil {
		return nil, nil, fmt.Errorf("%w: blackjack round %s", models.ErrActiveRoundExists, active.ID)
	}

	pair, err := activeSeedPair(ctx, uow, req.UserID)
	if err != nil {
		return nil, nil, err
	}
	nonce, err := uow.SeedPairRepository().IncrementNonce(ctx, pair.ID)
	if err != nil {
		return nil, nil, err
	}

	outcome, err := fairness.DeriveOutcome(pair.ServerSeed, pair.ClientSeed, nonce, string(models.GameTypeBlackjack))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrIntegrity, err)
	}
	stream, err := fairness.NewStream(pair.ServerSeed, pair.ClientSeed, nonce)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrIntegrity, err)
	}

	game, err := blackjack.Deal(stream, req.Stake, req.SideBets)
	if err != nil {
		return nil, nil, err
	}

	params, err := json.Marshal(blackjackParams{Stake: req.Stake, SideBets: req.SideBets})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode round parameters: %w", err)
	}

	round := &models.WagerRound{
		ID:               uuid.New(),
		UserID:           req.UserID,
		GameType:         models.GameTypeBlackjack,
		RequestID:        req.RequestID,
		Asset:            req.Asset,
		StakeAmount:      req.Stake,
		SeedPairID:       pair.ID,
		ServerSeedHash:   pair.ServerSeedHash,
		ClientSeed:       pair.ClientSeed,
		Nonce:            nonce,
		RawValue:         outcome.Value,
		Params:           params,
		PayoutAmount:     decimal.Zero,
		PayoutMultiplier: decimal.Zero,
	}

	settlement, err := applyState(round, game)
	if err != nil {
		return nil, nil, err
	}
	if err := rounds.Create(ctx, round); err != nil {
		return nil, nil, err
	}

	stakes := []struct {
		component string
		amount    decimal.Decimal
	}{
		{ComponentMain, req.Stake},
		{ComponentPerfectPairs, req.SideBets.PerfectPairs},
		{ComponentTwentyOnePlusThree, req.SideBets.TwentyOnePlusThree},
	}
	var ops []*models.LedgerOperation
	for _, stake := range stakes {
		if !stake.amount.IsPositive() {
			continue
		}
		opID := round.ID.String() + ":" + stake.component
		if stake.component == ComponentMain {
			opID = round.ID.String() + ":stake"
		}
		op, err := s.debit(round, opID, stake.amount, stake.component)
		if err != nil {
			return nil, nil, err
		}
		ops = append(ops, op)
	}
	if settlement != nil && settlement.Total.IsPositive() {
		ops = append(ops, s.settleCredit(round, settlement.Total))
	}

	ledger, err := applyOperations(ctx, uow, ops)
	if err != nil {
		return nil, nil, err
	}
	if ledger.AlreadyApplied {
		return nil, nil, fmt.Errorf("%w: operations for new round %s already recorded", models.ErrIntegrity, round.ID)
	}

	var settled *models.WagerRound
	if settlement != nil {
		publishSettled(uow, round, settlement)
		settled = round
	}
	return roundState(round, game, &ledger.NewBalance), settled, nil
}

func (s *blackjackService) act(ctx context.Context, uow UnitOfWork, userID int64, roundID uuid.UUID, action Action) (*models.RoundState, *models.WagerRound, error) {
	round, err := uow.RoundRepository().GetByIDForUpdate(ctx, roundID)
	if err != nil {
		return nil, nil, err
	}
	if err := checkOwnership(round, userID, roundID); err != nil {
		return nil, nil, err
	}
	if round.Status.IsTerminal() {
		return nil, nil, fmt.Errorf("%w: round %s is %s", models.ErrRoundNotActive, roundID, round.Status)
	}

	game, err := decodeState(round)
	if err != nil {
		return nil, nil, err
	}
	if action.Step != game.Step {
		return nil, nil, fmt.Errorf("%w: action for step %d but round is at step %d", models.ErrDuplicateRequest, action.Step, game.Step)
	}

	pair, err := uow.SeedPairRepository().GetByID(ctx, round.SeedPairID)
	if err != nil {
		return nil, nil, err
	}
	if pair == nil {
		return nil, nil, fmt.Errorf("%w: round %s references missing seed pair %d", models.ErrIntegrity, roundID, round.SeedPairID)
	}
	stream, err := fairness.NewStream(pair.ServerSeed, round.ClientSeed, round.Nonce)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrIntegrity, err)
	}

	effect, err := game.Apply(stream, action.Kind)
	if err != nil {
		return nil, nil, err
	}

	settlement, err := applyState(round, game)
	if err != nil {
		return nil, nil, err
	}

	var ops []*models.LedgerOperation
	if effect.ExtraStake.IsPositive() {
		opID := fmt.Sprintf("%s:%s:%d", round.ID, effect.Action, game.Step)
		op, err := s.debit(round, opID, effect.ExtraStake, string(effect.Action))
		if err != nil {
			return nil, nil, err
		}
		ops = append(ops, op)
	}
	if settlement != nil && settlement.Total.IsPositive() {
		ops = append(ops, s.settleCredit(round, settlement.Total))
	}

	var balance *decimal.Decimal
	if len(ops) > 0 {
		ledger, err := applyOperations(ctx, uow, ops)
		if err != nil {
			return nil, nil, err
		}
		if ledger.AlreadyApplied {
			return nil, nil, fmt.Errorf("%w: operations for step %d of round %s already recorded", models.ErrIntegrity, game.Step, round.ID)
		}
		balance = &ledger.NewBalance
	}

	if err := uow.RoundRepository().Update(ctx, round); err != nil {
		return nil, nil, err
	}

	var settled *models.WagerRound
	if settlement != nil {
		publishSettled(uow, round, settlement)
		settled = round
	}
	return roundState(round, game, balance), settled, nil
}

// Debit components. Doubles and splits are priced as the main hand.
const (
	ComponentMain               = "main"
	ComponentPerfectPairs       = "perfect_pairs"
	ComponentTwentyOnePlusThree = "twenty_one_plus_three"
)

func (s *blackjackService) debit(round *models.WagerRound, opID string, amount decimal.Decimal, component string) (*models.LedgerOperation, error) {
	betType := component
	switch blackjack.ActionKind(component) {
	case blackjack.ActionDouble, blackjack.ActionSplit:
		betType = ComponentMain
	}
	edge, err := s.edges.For(models.GameTypeBlackjack, betType)
	if err != nil {
		return nil, err
	}
	return &models.LedgerOperation{
		OperationID: opID,
		UserID:      round.UserID,
		Asset:       round.Asset,
		Kind:        models.OperationKindDebit,
		Amount:      amount,
		RoundID:     &round.ID,
		Metadata: map[string]any{
			models.MetadataGameType:          string(models.GameTypeBlackjack),
			models.MetadataComponent:         component,
			models.MetadataHouseEdgePercent:  edge.String(),
			models.MetadataExpectedHouseTake: payout.ExpectedHouseTake(amount, edge).String(),
		},
	}, nil
}

func (s *blackjackService) settleCredit(round *models.WagerRound, total decimal.Decimal) *models.LedgerOperation {
	return &models.LedgerOperation{
		OperationID: round.ID.String() + ":settle",
		UserID:      round.UserID,
		Asset:       round.Asset,
		Kind:        models.OperationKindCredit,
		Amount:      total,
		RoundID:     &round.ID,
		Metadata: map[string]any{
			models.MetadataGameType:  string(models.GameTypeBlackjack),
			models.MetadataComponent: "settle",
		},
	}
}

func (s *blackjackService) recordSettled(ctx context.Context, round *models.WagerRound) {
	if round == nil {
		return
	}
	var settlement blackjack.Settlement
	if err := json.Unmarshal(round.Result, &settlement); err != nil {
		return
	}
	s.metrics.RecordBet(ctx, round.GameType, round.Status, round.Asset, settlement.TotalStaked, round.PayoutAmount)
}

// applyState copies the game state onto the round, settling it if the game is over
func applyState(round *models.WagerRound, game *blackjack.State) (*blackjack.Settlement, error) {
	encoded, err := json.Marshal(game)
	if err != nil {
		return nil, fmt.Errorf("failed to encode blackjack state: %w", err)
	}
	round.State = encoded

	switch game.Phase {
	case blackjack.PhaseInsurancePending:
		round.Status = models.RoundStatusInsurancePending
		return nil, nil
	case blackjack.PhaseCompleted:
	default:
		round.Status = models.RoundStatusActive
		return nil, nil
	}

	settlement, err := blackjack.Settle(game)
	if err != nil {
		return nil, err
	}
	result, err := json.Marshal(settlement)
	if err != nil {
		return nil, fmt.Errorf("failed to encode blackjack settlement: %w", err)
	}

	now := time.Now().UTC()
	round.Status = models.RoundStatusCompleted
	round.Result = result
	round.PayoutAmount = settlement.Total
	round.PayoutMultiplier = settlement.Multiplier
	round.CompletedAt = &now
	return settlement, nil
}

func publishSettled(uow UnitOfWork, round *models.WagerRound, settlement *blackjack.Settlement) {
	uow.EventBus().Publish(events.RoundSettledEvent{
		RoundID:    round.ID,
		UserID:     round.UserID,
		GameType:   string(round.GameType),
		Asset:      round.Asset,
		Stake:      settlement.TotalStaked,
		Payout:     settlement.Total,
		Multiplier: settlement.Multiplier,
		Status:     string(round.Status),
	})
}

// checkOwnership hides rounds of other users and other games behind ErrRoundNotFound
func checkOwnership(round *models.WagerRound, userID int64, roundID uuid.UUID) error {
	if round == nil || round.UserID != userID || round.GameType != models.GameTypeBlackjack {
		return fmt.Errorf("%w: %s", models.ErrRoundNotFound, roundID)
	}
	return nil
}

func decodeState(round *models.WagerRound) (*blackjack.State, error) {
	if len(round.State) == 0 {
		return nil, fmt.Errorf("%w: round %s has no stored state", models.ErrIntegrity, round.ID)
	}
	var game blackjack.State
	if err := json.Unmarshal(round.State, &game); err != nil {
		return nil, fmt.Errorf("%w: round %s state is unreadable: %v", models.ErrIntegrity, round.ID, err)
	}
	return &game, nil
}

func roundState(round *models.WagerRound, game *blackjack.State, balance *decimal.Decimal) *models.RoundState {
	legal := make([]string, 0, 4)
	for _, a := range game.LegalActions() {
		legal = append(legal, string(a))
	}
	return &models.RoundState{
		RoundID:          round.ID,
		UserID:           round.UserID,
		GameType:         round.GameType,
		Asset:            round.Asset,
		Stake:            round.StakeAmount,
		Status:           round.Status,
		Table:            game.View(),
		LegalActions:     legal,
		PayoutAmount:     round.PayoutAmount,
		PayoutMultiplier: round.PayoutMultiplier,
		Fairness: models.FairnessProof{
			SeedPairID:     round.SeedPairID,
			ServerSeedHash: round.ServerSeedHash,
			ClientSeed:     round.ClientSeed,
			Nonce:          round.Nonce,
			RawValue:       round.RawValue,
		},
		NewBalance: balance,
	}
}

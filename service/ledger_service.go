package service

import (
	"context"
	"fmt"

	"wagerledger/events"
	"wagerledger/models"
	"wagerledger/payout"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type ledgerService struct {
	uowFactory UnitOfWorkFactory
	metrics    Metrics
}

// NewLedgerService creates a new ledger service
func NewLedgerService(uowFactory UnitOfWorkFactory, metrics Metrics) LedgerService {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &ledgerService{
		uowFactory: uowFactory,
		metrics:    metrics,
	}
}

// ApplyOperations applies an operation group in its own transaction
func (s *ledgerService) ApplyOperations(ctx context.Context, ops []*models.LedgerOperation) (*models.LedgerResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	result, err := applyOperations(ctx, uow, ops)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.metrics.RecordLedgerGroup(ctx, len(ops), result.AlreadyApplied)
	return result, nil
}

// GetBalance returns a user's balance of one asset
func (s *ledgerService) GetBalance(ctx context.Context, userID int64, asset string) (decimal.Decimal, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.LedgerRepository().GetBalance(ctx, userID, asset)
}

// applyOperations is the single entry point for balance changes. It runs inside
// the caller's unit of work so round persistence and ledger mutation commit together.
// A group whose every operation id is already recorded is reported as applied
// without mutating anything; a partially recorded group is an integrity failure.
func applyOperations(ctx context.Context, uow UnitOfWork, ops []*models.LedgerOperation) (*models.LedgerResult, error) {
	if err := validateOperations(ops); err != nil {
		return nil, err
	}

	repo := uow.LedgerRepository()
	userID, asset := ops[0].UserID, ops[0].Asset

	inserted := 0
	for _, op := range ops {
		ok, err := repo.InsertOperation(ctx, op)
		if err != nil {
			return nil, fmt.Errorf("failed to record operation %s: %w", op.OperationID, err)
		}
		if ok {
			inserted++
		}
	}

	if inserted == 0 {
		return replayedResult(ctx, repo, ops)
	}
	if inserted != len(ops) {
		log.WithFields(log.Fields{
			"userID":   userID,
			"asset":    asset,
			"inserted": inserted,
			"total":    len(ops),
		}).Error("Ledger operation group partially recorded")
		return nil, fmt.Errorf("%w: %d of %d operations already recorded", models.ErrIntegrity, len(ops)-inserted, len(ops))
	}

	var newBalance decimal.Decimal
	for _, op := range ops {
		var before, after decimal.Decimal
		var err error

		switch op.Kind {
		case models.OperationKindDebit:
			before, after, err = repo.Debit(ctx, userID, asset, op.Amount)
		case models.OperationKindCredit:
			before, after, err = repo.Credit(ctx, userID, asset, op.Amount)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to apply operation %s: %w", op.OperationID, err)
		}

		if err := repo.SetBalances(ctx, op.OperationID, before, after); err != nil {
			return nil, err
		}
		op.BalanceBefore = &before
		op.BalanceAfter = &after
		newBalance = after

		uow.EventBus().Publish(events.BalanceChangeEvent{
			OperationID: op.OperationID,
			UserID:      userID,
			Asset:       asset,
			Kind:        string(op.Kind),
			Amount:      op.Amount,
			OldBalance:  before,
			NewBalance:  after,
			RoundID:     op.RoundID,
		})
	}

	return &models.LedgerResult{NewBalance: newBalance, Operations: ops}, nil
}

// replayedResult returns the recorded form of a fully applied group, after
// checking the replay describes the same mutation
func replayedResult(ctx context.Context, repo LedgerRepository, ops []*models.LedgerOperation) (*models.LedgerResult, error) {
	recorded := make([]*models.LedgerOperation, 0, len(ops))
	for _, op := range ops {
		existing, err := repo.GetOperation(ctx, op.OperationID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: operation %s vanished during replay", models.ErrIntegrity, op.OperationID)
		}
		if existing.UserID != op.UserID || existing.Asset != op.Asset || existing.Kind != op.Kind || !existing.Amount.Equal(op.Amount) {
			return nil, fmt.Errorf("%w: operation %s replayed with different contents", models.ErrIntegrity, op.OperationID)
		}
		recorded = append(recorded, existing)
	}

	balance, err := repo.GetBalance(ctx, ops[0].UserID, ops[0].Asset)
	if err != nil {
		return nil, err
	}
	return &models.LedgerResult{AlreadyApplied: true, NewBalance: balance, Operations: recorded}, nil
}

func validateOperations(ops []*models.LedgerOperation) error {
	if len(ops) == 0 {
		return fmt.Errorf("%w: operation group is empty", models.ErrInvalidParameters)
	}

	seen := make(map[string]bool, len(ops))
	for _, op := range ops {
		if op == nil {
			return fmt.Errorf("%w: nil operation", models.ErrInvalidParameters)
		}
		if op.OperationID == "" {
			return fmt.Errorf("%w: operation id is required", models.ErrInvalidParameters)
		}
		if seen[op.OperationID] {
			return fmt.Errorf("%w: operation id %s repeated in group", models.ErrInvalidParameters, op.OperationID)
		}
		seen[op.OperationID] = true

		if op.UserID != ops[0].UserID || op.Asset != ops[0].Asset {
			return fmt.Errorf("%w: operation group spans more than one user or asset", models.ErrInvalidParameters)
		}
		if op.Asset == "" {
			return fmt.Errorf("%w: asset is required", models.ErrInvalidParameters)
		}
		if !op.Kind.Valid() {
			return fmt.Errorf("%w: unknown operation kind %q", models.ErrInvalidParameters, op.Kind)
		}
		if !op.Amount.IsPositive() {
			return fmt.Errorf("%w: operation %s amount must be positive", models.ErrInvalidParameters, op.OperationID)
		}
		if !op.Amount.Equal(op.Amount.Truncate(payout.AmountPlaces)) {
			return fmt.Errorf("%w: operation %s amount has more than %d decimal places", models.ErrInvalidParameters, op.OperationID, payout.AmountPlaces)
		}
	}
	return nil
}

package service

import (
	"context"
	"fmt"

	"wagerledger/models"
	"wagerledger/payout"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// HistoryLimits bounds round history pages
type HistoryLimits struct {
	Default int
	Max     int
}

type historyService struct {
	uowFactory UnitOfWorkFactory
	limits     HistoryLimits
	rates      RateLookup
}

// NewHistoryService creates a new history service. rates may be nil.
func NewHistoryService(uowFactory UnitOfWorkFactory, limits HistoryLimits, rates RateLookup) HistoryService {
	if limits.Max <= 0 {
		limits.Max = 100
	}
	if limits.Default <= 0 || limits.Default > limits.Max {
		limits.Default = min(20, limits.Max)
	}
	return &historyService{
		uowFactory: uowFactory,
		limits:     limits,
		rates:      rates,
	}
}

// GetRoundHistory returns the user's most recent rounds, newest first
func (s *historyService) GetRoundHistory(ctx context.Context, userID int64, limit int) ([]*models.RoundResult, error) {
	switch {
	case limit <= 0:
		limit = s.limits.Default
	case limit > s.limits.Max:
		limit = s.limits.Max
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	rounds, err := uow.RoundRepository().GetByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	results := make([]*models.RoundResult, 0, len(rounds))
	for _, round := range rounds {
		result := models.NewRoundResult(round)
		s.annotate(ctx, result)
		results = append(results, result)
	}
	return results, nil
}

// GetRoundByID returns one round with its ledger operations
func (s *historyService) GetRoundByID(ctx context.Context, roundID uuid.UUID) (*models.RoundResult, error) {
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

	ops, err := uow.LedgerRepository().GetByRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	result := models.NewRoundResult(round)
	result.Operations = ops
	s.annotate(ctx, result)
	return result, nil
}

// annotate adds the display-currency payout. A failed lookup leaves the result unannotated.
func (s *historyService) annotate(ctx context.Context, result *models.RoundResult) {
	if s.rates == nil {
		return
	}
	rate, currency, err := s.rates.Rate(ctx, result.Asset)
	if err != nil {
		log.WithError(err).WithField("asset", result.Asset).Warn("Rate lookup failed")
		return
	}
	display := result.PayoutAmount.Mul(rate).Round(payout.AmountPlaces)
	result.DisplayPayout = &display
	result.DisplayCurrency = currency
}
